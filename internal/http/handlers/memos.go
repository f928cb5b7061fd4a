package handlers

import (
	"net/http"
	"strings"

	"github.com/connvault/connvault/internal/db"
	"github.com/connvault/connvault/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MemoHandler serves memo CRUD endpoints.
type MemoHandler struct {
	db *gorm.DB
}

// NewMemoHandler constructs a MemoHandler.
func NewMemoHandler(conn *gorm.DB) *MemoHandler {
	return &MemoHandler{db: conn}
}

type memoRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Content     string  `json:"content" binding:"required"`
	CategoryID  *uint64 `json:"category_id"`
	TypeID      *uint64 `json:"type_id"`
}

type listMemosQuery struct {
	Search     string `form:"search"`
	CategoryID uint64 `form:"category_id"`
	TypeID     uint64 `form:"type_id"`
	Page       int    `form:"page,default=1"`
	PerPage    int    `form:"per_page,default=50"`
}

// List returns one page of memos, optionally filtered by name substring,
// category, and type.
func (h *MemoHandler) List(c *gin.Context) {
	var q listMemosQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 || q.PerPage > 200 {
		q.PerPage = 50
	}

	scope := h.db.Model(&models.Memo{})
	if term := strings.TrimSpace(q.Search); term != "" {
		scope = scope.Where(db.CaseInsensitiveLikeExpr(h.db, "name"), db.NormalizeLikePattern(h.db, "%"+term+"%"))
	}
	if q.CategoryID != 0 {
		scope = scope.Where("category_id = ?", q.CategoryID)
	}
	if q.TypeID != 0 {
		scope = scope.Where("type_id = ?", q.TypeID)
	}

	var total int64
	if errCount := scope.Count(&total).Error; errCount != nil {
		log.Errorf("could not count memos: %v", errCount)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var memos []models.Memo
	errList := scope.
		Preload("Category").
		Preload("Type").
		Order("updated_at DESC").
		Offset((q.Page - 1) * q.PerPage).
		Limit(q.PerPage).
		Find(&memos).Error
	if errList != nil {
		log.Errorf("could not list memos: %v", errList)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"memos":    memos,
		"total":    total,
		"page":     q.Page,
		"per_page": q.PerPage,
	})
}

// Get returns one memo by id.
func (h *MemoHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var memo models.Memo
	errFind := h.db.Preload("Category").Preload("Type").First(&memo, id).Error
	if errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "memo not found"})
		return
	}
	c.JSON(http.StatusOK, memo)
}

// Create stores a new memo.
func (h *MemoHandler) Create(c *gin.Context) {
	var req memoRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and content are required"})
		return
	}
	memo := models.Memo{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Content:     req.Content,
		CategoryID:  req.CategoryID,
		TypeID:      req.TypeID,
	}
	if errCreate := h.db.Create(&memo).Error; errCreate != nil {
		log.Errorf("could not create memo: %v", errCreate)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, memo)
}

// Update replaces the editable fields of a memo.
func (h *MemoHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req memoRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and content are required"})
		return
	}

	var memo models.Memo
	if errFind := h.db.First(&memo, id).Error; errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "memo not found"})
		return
	}

	memo.Name = strings.TrimSpace(req.Name)
	memo.Description = req.Description
	memo.Content = req.Content
	memo.CategoryID = req.CategoryID
	memo.TypeID = req.TypeID
	if errSave := h.db.Save(&memo).Error; errSave != nil {
		log.Errorf("could not update memo: %v", errSave)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, memo)
}

// Delete removes a memo.
func (h *MemoHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	result := h.db.Delete(&models.Memo{}, id)
	if result.Error != nil {
		log.Errorf("could not delete memo: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "memo not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "memo deleted"})
}

type bulkCreateRequest struct {
	Memos []memoRequest `json:"memos" binding:"required"`
}

// BulkCreate stores a batch of memos in one transaction.
func (h *MemoHandler) BulkCreate(c *gin.Context) {
	var req bulkCreateRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil || len(req.Memos) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "memos are required"})
		return
	}

	memos := make([]models.Memo, 0, len(req.Memos))
	for _, item := range req.Memos {
		name := strings.TrimSpace(item.Name)
		if name == "" || item.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "every memo needs a name and content"})
			return
		}
		memos = append(memos, models.Memo{
			Name:        name,
			Description: item.Description,
			Content:     item.Content,
			CategoryID:  item.CategoryID,
			TypeID:      item.TypeID,
		})
	}

	if errCreate := h.db.Create(&memos).Error; errCreate != nil {
		log.Errorf("could not bulk create memos: %v", errCreate)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": len(memos)})
}

type bulkDeleteRequest struct {
	IDs []uint64 `json:"ids" binding:"required"`
}

// BulkDelete removes a set of memos in one call.
func (h *MemoHandler) BulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
		return
	}
	result := h.db.Delete(&models.Memo{}, req.IDs)
	if result.Error != nil {
		log.Errorf("could not bulk delete memos: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": result.RowsAffected})
}
