package workflow

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newtube/backend/internal/middleware"
	"github.com/newtube/backend/pkg/apperr"
	"github.com/newtube/backend/pkg/queue"
	"github.com/newtube/backend/pkg/response"
)

// Handler exposes the enrichment workflow triggers. The synchronous path
// returns once the full step sequence completes or fails; with ?async=1 the
// job is enqueued and executed by the worker, whose retries reuse the
// instance id so completed steps are not repeated.
type Handler struct {
	enricher *Enricher
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewHandler creates a workflow trigger handler. queue may be nil; async
// triggering is then rejected.
func NewHandler(enricher *Enricher, q *queue.Queue, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{enricher: enricher, queue: q, logger: logger}
}

type thumbnailRequest struct {
	Prompt string `json:"prompt"`
}

// Title handles POST /videos/:id/workflows/title.
func (h *Handler) Title(c *gin.Context) {
	h.trigger(c, queue.EnrichmentTitle, "")
}

// Description handles POST /videos/:id/workflows/description.
func (h *Handler) Description(c *gin.Context) {
	h.trigger(c, queue.EnrichmentDescription, "")
}

// Thumbnail handles POST /videos/:id/workflows/thumbnail. Requires a prompt.
func (h *Handler) Thumbnail(c *gin.Context) {
	var req thumbnailRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Prompt == "" {
		response.BadRequest(c, "prompt required")
		return
	}
	h.trigger(c, queue.EnrichmentThumbnail, req.Prompt)
}

func (h *Handler) trigger(c *gin.Context, kind, prompt string) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid video id")
		return
	}

	in := Input{
		InstanceID: uuid.New().String(),
		UserID:     userID,
		VideoID:    videoID,
		Prompt:     prompt,
	}

	if c.Query("async") == "1" {
		if h.queue == nil {
			response.ServiceUnavailable(c, "async execution unavailable")
			return
		}
		err := h.queue.EnqueueEnrichment(c.Request.Context(), queue.EnrichmentPayload{
			InstanceID: in.InstanceID,
			Kind:       kind,
			UserID:     in.UserID,
			VideoID:    in.VideoID,
			Prompt:     in.Prompt,
		})
		if err != nil {
			h.logger.Error("enqueue workflow failed", zap.String("kind", kind), zap.Error(err))
			response.Internal(c, "failed to enqueue workflow")
			return
		}
		response.OK(c, gin.H{"instance_id": in.InstanceID, "workflow": kind, "status": "queued"})
		return
	}

	if err := h.enricher.Run(c.Request.Context(), kind, in); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.NotFound(c, "video not found")
			return
		}
		response.Internal(c, "workflow failed: "+err.Error())
		return
	}
	response.OK(c, gin.H{"instance_id": in.InstanceID, "workflow": kind, "status": "completed"})
}
