package videos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtube/backend/internal/models"
)

type fakeLocators struct{}

func (fakeLocators) ThumbnailURL(playbackRef string) string {
	return "https://image.example.com/" + playbackRef + "/thumbnail.jpg"
}

func (fakeLocators) PreviewURL(playbackRef string) string {
	return "https://image.example.com/" + playbackRef + "/animated.gif"
}

func TestDurationMS(t *testing.T) {
	assert.Equal(t, int64(12500), durationMS(12.5))
	assert.Equal(t, int64(1), durationMS(0.0005))
	assert.Equal(t, int64(0), durationMS(0))
	assert.Equal(t, int64(0), durationMS(-3))
	assert.Equal(t, int64(3600000), durationMS(3600))
}

func TestCreatedPatch(t *testing.T) {
	p := createdPatch(EventData{ID: "ext1", Status: "preparing"})
	require.NotNil(t, p.ExternalAssetRef)
	assert.Equal(t, "ext1", *p.ExternalAssetRef)
	assert.Equal(t, models.EncodingStatusPreparing, *p.EncodingStatus)

	// Provider omitting status still moves the row off waiting.
	p = createdPatch(EventData{ID: "ext1"})
	assert.Equal(t, models.EncodingStatusPreparing, *p.EncodingStatus)
}

func TestReadyPatch(t *testing.T) {
	d := EventData{
		ID:          "ext1",
		UploadID:    "tok1",
		Status:      "ready",
		Duration:    12.5,
		PlaybackIDs: []PlaybackID{{ID: "pb1"}},
	}
	p, err := readyPatch(d, fakeLocators{})
	require.NoError(t, err)
	assert.Equal(t, models.EncodingStatusReady, *p.EncodingStatus)
	assert.Equal(t, "ext1", *p.ExternalAssetRef)
	assert.Equal(t, "pb1", *p.PlaybackRef)
	assert.Equal(t, "https://image.example.com/pb1/thumbnail.jpg", *p.ThumbnailLocator)
	assert.Equal(t, "https://image.example.com/pb1/animated.gif", *p.PreviewLocator)
	assert.Equal(t, int64(12500), *p.DurationMS)
}

func TestReadyPatchWithoutPlaybackID(t *testing.T) {
	_, err := readyPatch(EventData{ID: "ext1"}, fakeLocators{})
	assert.ErrorIs(t, err, ErrBadEvent)

	_, err = readyPatch(EventData{ID: "ext1", PlaybackIDs: []PlaybackID{{}}}, fakeLocators{})
	assert.ErrorIs(t, err, ErrBadEvent)
}

func TestErroredPatch(t *testing.T) {
	p := erroredPatch(EventData{Status: "errored"})
	assert.Equal(t, models.EncodingStatusErrored, *p.EncodingStatus)
	assert.Nil(t, p.ExternalAssetRef)

	p = erroredPatch(EventData{})
	assert.Equal(t, models.EncodingStatusErrored, *p.EncodingStatus)
}

func TestTrackReadyPatch(t *testing.T) {
	p := trackReadyPatch(EventData{ID: "trk1", AssetID: "ext1", Status: "ready"})
	assert.Equal(t, "trk1", *p.TrackRef)
	assert.Equal(t, "ready", *p.TrackStatus)
	assert.Nil(t, p.EncodingStatus)
	assert.Nil(t, p.PlaybackRef)
}
