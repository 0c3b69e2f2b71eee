package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto HTTP responses
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var rejected *model.SubmissionRejectedError
	var invalid *model.ValidationError

	switch {
	case errors.As(err, &rejected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":        rejected.Verdict.Message,
			"verification": rejected.Verdict,
		})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error(), "field": invalid.Field})
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, model.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
	case errors.Is(err, model.ErrStateConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Listing was modified concurrently, retry"})
	default:
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
