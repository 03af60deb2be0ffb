package categories

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/pkg/response"
)

// Handler serves category endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a categories handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

type createRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Create handles POST /categories (admin only).
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	cat := &models.Category{Name: req.Name, Description: req.Description}
	if err := h.repo.Create(c.Request.Context(), cat); err != nil {
		h.logger.Error("create category failed", zap.Error(err))
		response.Internal(c, "failed to create category")
		return
	}
	response.Created(c, cat)
}

// List handles GET /categories.
func (h *Handler) List(c *gin.Context) {
	cats, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list categories failed", zap.Error(err))
		response.Internal(c, "failed to list categories")
		return
	}
	if cats == nil {
		cats = []models.Category{}
	}
	response.OK(c, cats)
}
