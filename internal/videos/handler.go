package videos

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newtube/backend/internal/encoding"
	"github.com/newtube/backend/internal/middleware"
	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/pkg/apperr"
	"github.com/newtube/backend/pkg/response"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// UploadService is the encoding provider surface the handler needs.
type UploadService interface {
	CreateDirectUpload(ctx context.Context) (*encoding.DirectUpload, error)
	DeleteAsset(ctx context.Context, assetRef string) error
}

// Handler serves owner-scoped video CRUD and upload initiation.
type Handler struct {
	repo    *Repository
	uploads UploadService
	files   FileStore
	logger  *zap.Logger
}

// NewHandler creates a videos handler.
func NewHandler(repo *Repository, uploads UploadService, files FileStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, uploads: uploads, files: files, logger: logger}
}

// Create handles POST /videos: obtains a direct upload slot from the
// provider and inserts the asset row in waiting state. The upload token is
// persisted before the response is sent, so any webhook referencing it can
// already resolve.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	upload, err := h.uploads.CreateDirectUpload(c.Request.Context())
	if err != nil {
		h.logger.Error("create direct upload failed", zap.Error(err))
		response.ServiceUnavailable(c, "encoding provider unavailable")
		return
	}

	video := &models.Video{
		UserID:         userID,
		Title:          "Untitled",
		UploadToken:    upload.ID,
		EncodingStatus: models.EncodingStatusWaiting,
	}
	if err := h.repo.Create(c.Request.Context(), video); err != nil {
		h.logger.Error("create video failed", zap.Error(err), zap.String("upload_token", upload.ID))
		response.Internal(c, "failed to create video")
		return
	}
	response.Created(c, gin.H{"video": video, "upload_url": upload.URL})
}

// List handles GET /videos with keyset pagination. Query params: limit,
// cursor_id, cursor_updated_at (RFC3339Nano); both cursor params must be
// present together.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	limit := defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return
		}
		if n > maxPageLimit {
			n = maxPageLimit
		}
		limit = n
	}

	cursor, err := parseCursor(c.Query("cursor_id"), c.Query("cursor_updated_at"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	items, next, err := h.repo.List(c.Request.Context(), userID, cursor, limit)
	if err != nil {
		h.logger.Error("list videos failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to list videos")
		return
	}
	if items == nil {
		items = []models.Video{}
	}
	response.OK(c, gin.H{"items": items, "next_cursor": next})
}

// GetByID handles GET /videos/:id.
func (h *Handler) GetByID(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}
	video, err := h.repo.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.NotFound(c, "video not found")
			return
		}
		response.Internal(c, "failed to load video")
		return
	}
	response.OK(c, video)
}

type updateVideoRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	CategoryID  *uuid.UUID `json:"category_id"`
}

// Update handles PATCH /videos/:id with a partial metadata update.
func (h *Handler) Update(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}
	var req updateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	patch := models.VideoPatch{
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	}
	if patch.IsZero() {
		response.BadRequest(c, "no fields to update")
		return
	}
	if err := h.repo.Update(c.Request.Context(), id, userID, patch); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.NotFound(c, "video not found")
			return
		}
		h.logger.Error("update video failed", zap.Error(err), zap.String("video_id", id.String()))
		response.Internal(c, "failed to update video")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

// Delete handles DELETE /videos/:id: removes the row, then best-effort
// deletes the provider asset and the stored thumbnail object.
func (h *Handler) Delete(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}
	video, err := h.repo.Delete(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.NotFound(c, "video not found")
			return
		}
		h.logger.Error("delete video failed", zap.Error(err), zap.String("video_id", id.String()))
		response.Internal(c, "failed to delete video")
		return
	}
	if video.ExternalAssetRef != "" {
		if err := h.uploads.DeleteAsset(c.Request.Context(), video.ExternalAssetRef); err != nil {
			h.logger.Warn("provider asset delete failed",
				zap.String("video_id", id.String()),
				zap.String("asset_ref", video.ExternalAssetRef),
				zap.Error(err))
		}
	}
	if video.ThumbnailRef != "" && h.files != nil {
		if err := h.files.Delete(c.Request.Context(), video.ThumbnailRef); err != nil {
			h.logger.Warn("thumbnail delete failed",
				zap.String("video_id", id.String()),
				zap.String("thumbnail_ref", video.ThumbnailRef),
				zap.Error(err))
		}
	}
	response.NoContent(c)
}

func parseCursor(rawID, rawUpdatedAt string) (*Cursor, error) {
	if rawID == "" && rawUpdatedAt == "" {
		return nil, nil
	}
	if rawID == "" || rawUpdatedAt == "" {
		return nil, errors.New("cursor_id and cursor_updated_at must be provided together")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, errors.New("invalid cursor_id")
	}
	ts, err := time.Parse(time.RFC3339Nano, rawUpdatedAt)
	if err != nil {
		return nil, errors.New("invalid cursor_updated_at")
	}
	return &Cursor{ID: id, UpdatedAt: ts}, nil
}
