package models

import (
	"time"

	"github.com/google/uuid"
)

// EncodingStatus represents the provider-driven encoding lifecycle.
const (
	EncodingStatusWaiting   = "waiting"
	EncodingStatusPreparing = "preparing"
	EncodingStatusReady     = "ready"
	EncodingStatusErrored   = "errored"
)

// Video is a media asset: one uploaded video plus the state the encoding
// provider and the enrichment workflows attach to it over time.
type Video struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	CategoryID       *uuid.UUID `json:"category_id,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	UploadToken      string     `json:"upload_token,omitempty"`
	ExternalAssetRef string     `json:"external_asset_ref,omitempty"`
	EncodingStatus   string     `json:"encoding_status"`
	PlaybackRef      string     `json:"playback_ref,omitempty"`
	TrackRef         string     `json:"track_ref,omitempty"`
	TrackStatus      string     `json:"track_status,omitempty"`
	ThumbnailRef     string     `json:"thumbnail_ref,omitempty"`
	ThumbnailLocator string     `json:"thumbnail_url,omitempty"`
	PreviewLocator   string     `json:"preview_url,omitempty"`
	DurationMS       int64      `json:"duration_ms"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// VideoPatch is a partial update against one video row. Nil fields are left
// untouched; the store turns the rest into targeted column updates so that
// concurrent events writing disjoint fields never clobber each other.
type VideoPatch struct {
	CategoryID       *uuid.UUID
	Title            *string
	Description      *string
	ExternalAssetRef *string
	EncodingStatus   *string
	PlaybackRef      *string
	TrackRef         *string
	TrackStatus      *string
	ThumbnailRef     *string
	ThumbnailLocator *string
	PreviewLocator   *string
	DurationMS       *int64
}

// IsZero reports whether the patch carries no updates.
func (p VideoPatch) IsZero() bool {
	return p == VideoPatch{}
}
