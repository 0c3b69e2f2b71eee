package handler

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/service"

	"github.com/gin-gonic/gin"
)

// ListingHandler handles listing-related HTTP requests
type ListingHandler struct {
	listings     *service.ListingService
	maxFileBytes int64
	logger       *slog.Logger
}

// NewListingHandler creates a new listing handler
func NewListingHandler(listings *service.ListingService, maxFileBytes int64, logger *slog.Logger) *ListingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingHandler{
		listings:     listings,
		maxFileBytes: maxFileBytes,
		logger:       logger,
	}
}

// Create handles POST /api/v1/listings
func (h *ListingHandler) Create(c *gin.Context) {
	var input model.ListingInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	attachments, err := readAttachments(c, h.maxFileBytes)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload: " + err.Error()})
		return
	}

	resp, err := h.listings.Create(c.Request.Context(), ActorFrom(c), &input, attachments)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List handles GET /api/v1/listings
func (h *ListingHandler) List(c *gin.Context) {
	var query model.ListingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query: " + err.Error()})
		return
	}

	resp, err := h.listings.List(c.Request.Context(), ActorFrom(c), &query)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles GET /api/v1/listings/:id
func (h *ListingHandler) Get(c *gin.Context) {
	listingID, ok := parseListingID(c)
	if !ok {
		return
	}

	listing, err := h.listings.Get(c.Request.Context(), ActorFrom(c), listingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// Replace handles PUT /api/v1/listings/:id
func (h *ListingHandler) Replace(c *gin.Context) {
	listingID, ok := parseListingID(c)
	if !ok {
		return
	}

	var input model.ListingInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	patch := &model.ListingPatch{
		Title:       &input.Title,
		Description: &input.Description,
		Price:       &input.Price,
		Location:    &input.Location,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
	}
	h.update(c, listingID, patch)
}

// Patch handles PATCH /api/v1/listings/:id
func (h *ListingHandler) Patch(c *gin.Context) {
	listingID, ok := parseListingID(c)
	if !ok {
		return
	}

	var patch model.ListingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	h.update(c, listingID, &patch)
}

func (h *ListingHandler) update(c *gin.Context, listingID int64, patch *model.ListingPatch) {
	listing, err := h.listings.Update(c.Request.Context(), ActorFrom(c), listingID, patch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// Delete handles DELETE /api/v1/listings/:id
func (h *ListingHandler) Delete(c *gin.Context) {
	listingID, ok := parseListingID(c)
	if !ok {
		return
	}

	if err := h.listings.Delete(c.Request.Context(), ActorFrom(c), listingID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Approve handles POST /api/v1/listings/:id/approve
func (h *ListingHandler) Approve(c *gin.Context) {
	listingID, ok := parseListingID(c)
	if !ok {
		return
	}

	listing, err := h.listings.Approve(c.Request.Context(), ActorFrom(c), listingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// Reject handles POST /api/v1/listings/:id/reject
func (h *ListingHandler) Reject(c *gin.Context) {
	listingID, ok := parseListingID(c)
	if !ok {
		return
	}

	listing, err := h.listings.Reject(c.Request.Context(), ActorFrom(c), listingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// Images handles GET /api/v1/listings/:id/images
func (h *ListingHandler) Images(c *gin.Context) {
	listingID, ok := parseListingID(c)
	if !ok {
		return
	}

	images, err := h.listings.Images(c.Request.Context(), ActorFrom(c), listingID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": images, "total": len(images)})
}

func parseListingID(c *gin.Context) (int64, bool) {
	listingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || listingID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return 0, false
	}
	return listingID, true
}

// readAttachments collects uploaded files from the images field and the
// legacy single image field. Non-multipart requests carry no attachments.
func readAttachments(c *gin.Context, maxFileBytes int64) ([]service.Attachment, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}

	headers := append([]*multipart.FileHeader{}, form.File["images"]...)
	headers = append(headers, form.File["image"]...)

	attachments := make([]service.Attachment, 0, len(headers))
	for _, fh := range headers {
		data, err := readFile(fh, maxFileBytes)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		attachments = append(attachments, service.Attachment{Filename: fh.Filename, Data: data})
	}
	return attachments, nil
}

// readFile reads at most maxFileBytes+1 bytes so the service can report an
// oversized file without buffering all of it
func readFile(fh *multipart.FileHeader, maxFileBytes int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if maxFileBytes > 0 {
		r = io.LimitReader(f, maxFileBytes+1)
	}
	return io.ReadAll(r)
}
