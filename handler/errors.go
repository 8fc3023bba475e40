package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/punnu35/expense-app/model"
	"github.com/punnu35/expense-app/pkg/logger"
)

// writeError maps domain errors to HTTP responses. Anything unclassified is
// a 500 with a generic message; the detail goes to the log, not the client.
func writeError(c *gin.Context, err error) {
	var (
		validationErr *model.ValidationError
		forbiddenErr  *model.ForbiddenError
		transitionErr *model.InvalidTransitionError
		ingestErr     *model.IngestError
	)

	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Claim not found"})
	case errors.Is(err, model.ErrStoreConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Claim was modified concurrently, please retry"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, gin.H{"error": forbiddenErr.Error()})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Error()})
	case errors.As(err, &ingestErr):
		if ingestErr.Transient {
			c.JSON(http.StatusBadGateway, gin.H{"error": "Receipt processing temporarily unavailable, retry later"})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": ingestErr.Error()})
		}
	default:
		logger.Error(c.Request.Context(), "unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
