// Package handlers implements the HTTP endpoints of the catalog.
package handlers

import (
	"errors"
	"net/http"

	"github.com/connvault/connvault/internal/connections"
	"github.com/gin-gonic/gin"
)

// getUserID extracts the authenticated user ID from gin context. Zero means
// anonymous (auth enforcement disabled).
func getUserID(c *gin.Context) uint64 {
	val, exists := c.Get("userID")
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// respondCatalogError maps catalog errors onto HTTP statuses.
func respondCatalogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, connections.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, connections.ErrBadFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, connections.ErrConflict), errors.Is(err, connections.ErrInvalidRating):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
