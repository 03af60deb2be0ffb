package videos

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newtube/backend/internal/encoding"
	"github.com/newtube/backend/pkg/apperr"
	"github.com/newtube/backend/pkg/response"
)

// SignatureVerifier checks the provider signature over the raw body.
type SignatureVerifier interface {
	Verify(header string, body []byte) error
}

// WebhookHandler receives encoding provider lifecycle events. Signature
// verification runs before any reconciler logic; a failed signature is
// rejected, not logged-and-ignored.
type WebhookHandler struct {
	verifier   SignatureVerifier
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(verifier SignatureVerifier, reconciler *Reconciler, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{verifier: verifier, reconciler: reconciler, logger: logger}
}

// HandleEvent handles POST /webhooks/video-events.
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	if err := h.verifier.Verify(c.GetHeader(encoding.SignatureHeader), body); err != nil {
		h.logger.Warn("webhook signature rejected", zap.Error(err))
		response.Unauthorized(c, "invalid signature")
		return
	}

	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		response.BadRequest(c, "invalid payload: "+err.Error())
		return
	}

	if err := h.reconciler.Apply(c.Request.Context(), evt); err != nil {
		switch {
		case IsBadEvent(err):
			h.logger.Warn("malformed webhook event", zap.String("type", evt.Type), zap.Error(err))
			response.BadRequest(c, err.Error())
		case errors.Is(err, apperr.ErrNotFound):
			// No matching asset: report not-found rather than resurrecting
			// a deleted row or creating a placeholder.
			h.logger.Warn("webhook event for unknown asset",
				zap.String("type", evt.Type),
				zap.String("upload_token", evt.Data.UploadID),
				zap.String("asset_ref", evt.Data.AssetID))
			response.NotFound(c, "no matching video")
		default:
			h.logger.Error("webhook reconcile failed",
				zap.String("type", evt.Type),
				zap.String("upload_token", evt.Data.UploadID),
				zap.Error(err))
			response.Internal(c, "failed to process event")
		}
		return
	}

	h.logger.Info("webhook event processed",
		zap.String("type", evt.Type),
		zap.String("upload_token", evt.Data.UploadID))
	response.OK(c, gin.H{"received": true})
}
