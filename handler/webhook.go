package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/punnu35/expense-app/config"
	"github.com/punnu35/expense-app/service"
)

// WebhookHandler receives OCR notifications for uploaded receipts. The
// endpoint sits outside the JWT-protected API group; callers authenticate
// with the shared webhook secret instead.
type WebhookHandler struct {
	ingest *service.IngestService
	config *config.VisionConfig
}

func NewWebhookHandler(ingest *service.IngestService, cfg *config.VisionConfig) *WebhookHandler {
	return &WebhookHandler{
		ingest: ingest,
		config: cfg,
	}
}

type OCRWebhookRequest struct {
	ClaimID  string `json:"claim_id"`
	ImageURL string `json:"image_url"`
}

// HandleOCR runs the ingestion pipeline for one receipt image
func (h *WebhookHandler) HandleOCR(c *gin.Context) {
	secret := c.GetHeader("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.config.WebhookSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook secret"})
		return
	}

	var req OCRWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	extracted, err := h.ingest.Ingest(c.Request.Context(), req.ClaimID, req.ImageURL)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"parsed":  extracted,
	})
}
