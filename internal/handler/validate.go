package handler

import (
	"log/slog"
	"net/http"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/service"

	"github.com/gin-gonic/gin"
)

// ImageReport is the per-image part of a validation response
type ImageReport struct {
	Filename string `json:"filename"`
	model.ImageVerdict
	Error string `json:"error,omitempty"`
}

// ValidationResponse is the body of POST /api/v1/validate
type ValidationResponse struct {
	model.SubmissionVerdict
	Images []ImageReport `json:"images"`
}

// ValidationHandler exposes the classification gate on its own
type ValidationHandler struct {
	listings     *service.ListingService
	maxFileBytes int64
	logger       *slog.Logger
}

// NewValidationHandler creates a new validation handler
func NewValidationHandler(listings *service.ListingService, maxFileBytes int64, logger *slog.Logger) *ValidationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidationHandler{listings: listings, maxFileBytes: maxFileBytes, logger: logger}
}

// Validate handles POST /api/v1/validate. Both verdicts are a 200; the
// status field carries the outcome.
func (h *ValidationHandler) Validate(c *gin.Context) {
	attachments, err := readAttachments(c, h.maxFileBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload: " + err.Error()})
		return
	}

	eval, err := h.listings.Validate(c.Request.Context(), attachments)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := ValidationResponse{
		SubmissionVerdict: eval.Verdict,
		Images:            make([]ImageReport, len(eval.Images)),
	}
	for i, res := range eval.Images {
		report := ImageReport{Filename: res.Filename, ImageVerdict: res.Verdict}
		if res.Err != nil {
			report.Error = res.Err.Error()
		}
		resp.Images[i] = report
	}
	c.JSON(http.StatusOK, resp)
}
