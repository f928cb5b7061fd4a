package handlers

import (
	"net/http"
	"strings"

	"github.com/connvault/connvault/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CatalogHandler serves the category and type lookup tables used to
// classify memos.
type CatalogHandler struct {
	db *gorm.DB
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(conn *gorm.DB) *CatalogHandler {
	return &CatalogHandler{db: conn}
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListCategories returns every category ordered by name.
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	var categories []models.Category
	if errList := h.db.Order("name").Find(&categories).Error; errList != nil {
		log.Errorf("could not list categories: %v", errList)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// CreateCategory adds a category.
func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req nameRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	category := models.Category{Name: strings.TrimSpace(req.Name)}
	if errCreate := h.db.Create(&category).Error; errCreate != nil {
		if isDuplicateError(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "category already exists"})
			return
		}
		log.Errorf("could not create category: %v", errCreate)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, category)
}

// DeleteCategory removes a category; memos keep a dangling reference cleared
// here first.
func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	errDelete := h.db.Transaction(func(tx *gorm.DB) error {
		if errClear := tx.Model(&models.Memo{}).
			Where("category_id = ?", id).
			Update("category_id", nil).Error; errClear != nil {
			return errClear
		}
		result := tx.Delete(&models.Category{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errDelete == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "category not found"})
		return
	}
	if errDelete != nil {
		log.Errorf("could not delete category: %v", errDelete)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
}

// ListTypes returns every type ordered by name.
func (h *CatalogHandler) ListTypes(c *gin.Context) {
	var types []models.Type
	if errList := h.db.Order("name").Find(&types).Error; errList != nil {
		log.Errorf("could not list types: %v", errList)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"types": types})
}

// CreateType adds a type.
func (h *CatalogHandler) CreateType(c *gin.Context) {
	var req nameRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	typ := models.Type{Name: strings.TrimSpace(req.Name)}
	if errCreate := h.db.Create(&typ).Error; errCreate != nil {
		if isDuplicateError(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "type already exists"})
			return
		}
		log.Errorf("could not create type: %v", errCreate)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, typ)
}

// DeleteType removes a type and clears it from referencing memos.
func (h *CatalogHandler) DeleteType(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	errDelete := h.db.Transaction(func(tx *gorm.DB) error {
		if errClear := tx.Model(&models.Memo{}).
			Where("type_id = ?", id).
			Update("type_id", nil).Error; errClear != nil {
			return errClear
		}
		result := tx.Delete(&models.Type{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errDelete == gorm.ErrRecordNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "type not found"})
		return
	}
	if errDelete != nil {
		log.Errorf("could not delete type: %v", errDelete)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "type deleted"})
}
