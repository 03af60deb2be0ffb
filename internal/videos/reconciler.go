package videos

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/newtube/backend/internal/models"
)

// Store is the asset store surface the reconciler writes through. Updates
// apply the patch if and only if a matching row exists (apperr.ErrNotFound
// otherwise) and never create placeholders, so redelivered or out-of-order
// events converge to the same final state.
type Store interface {
	UpdateByUploadToken(ctx context.Context, token string, patch models.VideoPatch) error
	UpdateByExternalAssetRef(ctx context.Context, ref string, patch models.VideoPatch) error
	DeleteByUploadToken(ctx context.Context, token string) (*models.Video, error)
}

// FileStore deletes stored thumbnail objects by key.
type FileStore interface {
	Delete(ctx context.Context, key string) error
}

// LocatorSource derives public media locators from a playback ref.
type LocatorSource interface {
	ThumbnailURL(playbackRef string) string
	PreviewURL(playbackRef string) string
}

// Reconciler maps provider lifecycle events onto asset store transitions.
// Event kinds are handled independently: the provider gives no ordering
// guarantee between the asset family and the track family, and delivery is
// at-least-once within each.
type Reconciler struct {
	store    Store
	locators LocatorSource
	files    FileStore
	logger   *zap.Logger
}

// NewReconciler creates a webhook reconciler. files may be nil; thumbnail
// cleanup on deletion is then skipped.
func NewReconciler(store Store, locators LocatorSource, files FileStore, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, locators: locators, files: files, logger: logger}
}

// Apply translates one verified event into its store transition. Unknown
// event kinds are ignored explicitly (nil error) so the provider does not
// redeliver them forever.
func (r *Reconciler) Apply(ctx context.Context, evt WebhookEvent) error {
	switch evt.Type {
	case EventAssetCreated:
		if evt.Data.UploadID == "" {
			return fmt.Errorf("%w: missing upload_id", ErrBadEvent)
		}
		return r.store.UpdateByUploadToken(ctx, evt.Data.UploadID, createdPatch(evt.Data))

	case EventAssetReady:
		if evt.Data.UploadID == "" {
			return fmt.Errorf("%w: missing upload_id", ErrBadEvent)
		}
		patch, err := readyPatch(evt.Data, r.locators)
		if err != nil {
			return err
		}
		return r.store.UpdateByUploadToken(ctx, evt.Data.UploadID, patch)

	case EventAssetErrored:
		if evt.Data.UploadID == "" {
			return fmt.Errorf("%w: missing upload_id", ErrBadEvent)
		}
		return r.store.UpdateByUploadToken(ctx, evt.Data.UploadID, erroredPatch(evt.Data))

	case EventAssetDeleted:
		if evt.Data.UploadID == "" {
			return fmt.Errorf("%w: missing upload_id", ErrBadEvent)
		}
		deleted, err := r.store.DeleteByUploadToken(ctx, evt.Data.UploadID)
		if err != nil {
			return err
		}
		if deleted.ThumbnailRef != "" && r.files != nil {
			// Best effort: the row is already gone, a leaked object must not
			// fail the webhook and trigger redelivery.
			if err := r.files.Delete(ctx, deleted.ThumbnailRef); err != nil {
				r.logger.Warn("thumbnail cleanup after delete failed",
					zap.String("upload_token", evt.Data.UploadID),
					zap.String("thumbnail_ref", deleted.ThumbnailRef),
					zap.Error(err))
			}
		}
		return nil

	case EventAssetTrackReady:
		if evt.Data.AssetID == "" {
			return fmt.Errorf("%w: missing asset_id", ErrBadEvent)
		}
		return r.store.UpdateByExternalAssetRef(ctx, evt.Data.AssetID, trackReadyPatch(evt.Data))

	default:
		r.logger.Debug("ignoring unknown webhook event", zap.String("type", evt.Type))
		return nil
	}
}

// IsBadEvent reports whether err is a malformed-payload error.
func IsBadEvent(err error) bool {
	return errors.Is(err, ErrBadEvent)
}
