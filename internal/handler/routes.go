package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Register mounts the listing API on group
func Register(group *gin.RouterGroup, listings *ListingHandler, validation *ValidationHandler) {
	group.POST("/validate", validation.Validate)

	group.GET("/listings", listings.List)
	group.POST("/listings", listings.Create)
	group.GET("/listings/:id", listings.Get)
	group.PUT("/listings/:id", listings.Replace)
	group.PATCH("/listings/:id", listings.Patch)
	group.DELETE("/listings/:id", listings.Delete)
	group.POST("/listings/:id/approve", listings.Approve)
	group.POST("/listings/:id/reject", listings.Reject)
	group.GET("/listings/:id/images", listings.Images)
}

// MediaSource serves stored image bytes by object key
type MediaSource interface {
	Get(key string) ([]byte, string, error)
}

// Media serves images from an in-process store under /media/*key
func Media(source MediaSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		data, contentType, err := source.Get(key)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
			return
		}
		c.Data(http.StatusOK, contentType, data)
	}
}
