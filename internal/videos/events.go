package videos

import (
	"errors"
	"fmt"
	"math"

	"github.com/newtube/backend/internal/models"
)

// Webhook event kinds emitted by the encoding provider. created/ready/
// errored/deleted correlate by upload token; track.ready is emitted by a
// different provider subsystem and correlates by asset id, on its own
// schedule relative to the others.
const (
	EventAssetCreated    = "video.asset.created"
	EventAssetReady      = "video.asset.ready"
	EventAssetErrored    = "video.asset.errored"
	EventAssetDeleted    = "video.asset.deleted"
	EventAssetTrackReady = "video.asset.track.ready"
)

// ErrBadEvent marks a webhook payload missing a required correlation field.
// Reported to the provider immediately, never retried.
var ErrBadEvent = errors.New("invalid webhook event")

// WebhookEvent is the inbound provider notification envelope.
type WebhookEvent struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData carries the union of fields the reconciler consumes. For asset
// events ID is the provider asset id; for track events ID is the track id
// and AssetID correlates back to the asset.
type EventData struct {
	ID          string       `json:"id"`
	UploadID    string       `json:"upload_id"`
	AssetID     string       `json:"asset_id"`
	Status      string       `json:"status"`
	Duration    float64      `json:"duration"`
	PlaybackIDs []PlaybackID `json:"playback_ids"`
}

// PlaybackID is one provider playback identifier.
type PlaybackID struct {
	ID string `json:"id"`
}

// Each event kind maps to a pure event -> patch function. Every field in a
// patch is a total overwrite of the event's values, not a delta, which is
// what makes redelivery and reordering within one event kind harmless.

func createdPatch(d EventData) models.VideoPatch {
	status := d.Status
	if status == "" {
		status = models.EncodingStatusPreparing
	}
	return models.VideoPatch{
		ExternalAssetRef: &d.ID,
		EncodingStatus:   &status,
	}
}

func readyPatch(d EventData, locators LocatorSource) (models.VideoPatch, error) {
	if len(d.PlaybackIDs) == 0 || d.PlaybackIDs[0].ID == "" {
		return models.VideoPatch{}, fmt.Errorf("%w: no playback id", ErrBadEvent)
	}
	playbackRef := d.PlaybackIDs[0].ID
	status := models.EncodingStatusReady
	// Locators are derived deterministically from the playback ref, never
	// fetched back from the provider.
	thumbnail := locators.ThumbnailURL(playbackRef)
	preview := locators.PreviewURL(playbackRef)
	duration := durationMS(d.Duration)
	return models.VideoPatch{
		EncodingStatus:   &status,
		ExternalAssetRef: &d.ID,
		PlaybackRef:      &playbackRef,
		ThumbnailLocator: &thumbnail,
		PreviewLocator:   &preview,
		DurationMS:       &duration,
	}, nil
}

func erroredPatch(d EventData) models.VideoPatch {
	status := d.Status
	if status == "" {
		status = models.EncodingStatusErrored
	}
	return models.VideoPatch{EncodingStatus: &status}
}

func trackReadyPatch(d EventData) models.VideoPatch {
	return models.VideoPatch{
		TrackRef:    &d.ID,
		TrackStatus: &d.Status,
	}
}

// durationMS normalizes the provider's float seconds to milliseconds.
func durationMS(seconds float64) int64 {
	if seconds <= 0 {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}
