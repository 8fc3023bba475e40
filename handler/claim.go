package handler

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/punnu35/expense-app/middleware"
	"github.com/punnu35/expense-app/service"
)

type ClaimHandler struct {
	claims       *service.LifecycleService
	minioService *service.MinioService
	export       *service.ExportService
}

func NewClaimHandler(claims *service.LifecycleService, minioSvc *service.MinioService, export *service.ExportService) *ClaimHandler {
	return &ClaimHandler{
		claims:       claims,
		minioService: minioSvc,
		export:       export,
	}
}

var allowedReceiptTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// uploadReceipts stores each uploaded file under the claim's prefix and
// returns the durable URLs, in the order the files were sent.
func (h *ClaimHandler) uploadReceipts(c *gin.Context, claimID string, files []*multipart.FileHeader) ([]string, error) {
	refs := make([]string, 0, len(files))
	for _, header := range files {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		expectedType, ok := allowedReceiptTypes[ext]
		if !ok {
			return nil, fmt.Errorf("unsupported receipt type %q", ext)
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = expectedType
		}

		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Filename, err)
		}

		objectName := service.ReceiptObjectName(claimID, header.Filename)
		err = h.minioService.UploadFile(c.Request.Context(), objectName, file, header.Size, contentType)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", header.Filename, err)
		}

		refs = append(refs, h.minioService.GetPublicURL(objectName))
	}
	return refs, nil
}

// Create handles claim submission: a multipart form with the claim fields
// and zero or more receipt files. The claim id is minted up front so the
// uploaded objects live under the claim's prefix.
func (h *ClaimHandler) Create(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	amount, err := strconv.ParseFloat(c.PostForm("amount"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a number"})
		return
	}

	claimID := uuid.New().String()

	var refs []string
	if files := form.File["receipts"]; len(files) > 0 {
		refs, err = h.uploadReceipts(c, claimID, files)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	claim, err := h.claims.CreateClaim(c.Request.Context(), identity, service.CreateClaimInput{
		ID:          claimID,
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Vendor:      c.PostForm("vendor"),
		Amount:      amount,
		OccurredOn:  c.PostForm("occurred_on"),
		ReceiptRefs: refs,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, claim)
}

// List returns the claims visible to the caller, newest first
func (h *ClaimHandler) List(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	claims, err := h.claims.ListClaims(c.Request.Context(), identity)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"claims": claims})
}

// Get returns a single claim if the caller may see it
func (h *ClaimHandler) Get(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	claim, err := h.claims.GetClaim(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, claim)
}

type EditClaimRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Vendor      *string  `json:"vendor"`
	Amount      *float64 `json:"amount"`
	OccurredOn  *string  `json:"occurred_on"`
	Comments    *string  `json:"comments"`
}

// Edit updates the editable fields of a claim. Absent fields are left
// untouched; editing a rejected claim resubmits it.
func (h *ClaimHandler) Edit(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	var req EditClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	claim, err := h.claims.EditClaim(c.Request.Context(), identity, c.Param("id"), service.EditClaimInput{
		Title:       req.Title,
		Description: req.Description,
		Vendor:      req.Vendor,
		Amount:      req.Amount,
		OccurredOn:  req.OccurredOn,
		Comments:    req.Comments,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, claim)
}

// AddReceipts uploads additional receipt files and appends their URLs to
// the claim
func (h *ClaimHandler) AddReceipts(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	id := c.Param("id")

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	files := form.File["receipts"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No receipt files provided"})
		return
	}

	refs, err := h.uploadReceipts(c, id, files)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claim, err := h.claims.AddReceipts(c.Request.Context(), identity, id, refs)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, claim)
}

type ResolveRequest struct {
	Comments string `json:"comments"`
}

func (h *ClaimHandler) resolveComments(c *gin.Context) string {
	// The body is optional; a missing or empty body means no comments
	var req ResolveRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&req)
	}
	return req.Comments
}

// Approve moves a pending claim to approved
func (h *ClaimHandler) Approve(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	claim, err := h.claims.Approve(c.Request.Context(), identity, c.Param("id"), h.resolveComments(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, claim)
}

// Reject moves a pending claim to rejected, usually with reviewer comments
func (h *ClaimHandler) Reject(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	claim, err := h.claims.Reject(c.Request.Context(), identity, c.Param("id"), h.resolveComments(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, claim)
}

// Pay moves an approved claim to paid
func (h *ClaimHandler) Pay(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	claim, err := h.claims.MarkPaid(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, claim)
}

// Close archives a claim outside the approval flow
func (h *ClaimHandler) Close(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	claim, err := h.claims.Close(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, claim)
}

// Export streams an XLSX workbook of the claims visible to the caller
func (h *ClaimHandler) Export(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	data, err := h.export.ClaimsXLSX(c.Request.Context(), identity)
	if err != nil {
		writeError(c, err)
		return
	}

	filename := fmt.Sprintf("claims-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
