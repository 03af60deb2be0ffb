package videos

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtube/backend/internal/encoding"
	"github.com/newtube/backend/internal/models"
)

const testWebhookSecret = "whsec_test"

func newWebhookRouter(t *testing.T, store Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reconciler := NewReconciler(store, fakeLocators{}, nil, nil)
	handler := NewWebhookHandler(encoding.NewVerifier(testWebhookSecret), reconciler, nil)
	router := gin.New()
	router.POST("/webhooks/video-events", handler.HandleEvent)
	return router
}

func postEvent(t *testing.T, router *gin.Engine, evt WebhookEvent, secret string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(evt)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/video-events", bytes.NewReader(body))
	req.Header.Set(encoding.SignatureHeader, encoding.Sign(secret, time.Now(), body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookAcceptsSignedEvent(t *testing.T) {
	video := waitingVideo("tok1")
	store := newFakeStore(video)
	router := newWebhookRouter(t, store)

	w := postEvent(t, router, readyEvent(), testWebhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EncodingStatusReady, store.get(video.ID).EncodingStatus)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	video := waitingVideo("tok1")
	store := newFakeStore(video)
	router := newWebhookRouter(t, store)

	w := postEvent(t, router, readyEvent(), "whsec_wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	// Row untouched.
	assert.Equal(t, models.EncodingStatusWaiting, store.get(video.ID).EncodingStatus)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	router := newWebhookRouter(t, newFakeStore())

	body, _ := json.Marshal(readyEvent())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/video-events", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookRejectsMalformedEvent(t *testing.T) {
	router := newWebhookRouter(t, newFakeStore(waitingVideo("tok1")))

	evt := WebhookEvent{Type: EventAssetReady} // no upload_id
	w := postEvent(t, router, evt, testWebhookSecret)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookUnknownAssetReturnsNotFound(t *testing.T) {
	router := newWebhookRouter(t, newFakeStore())

	w := postEvent(t, router, readyEvent(), testWebhookSecret)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookDuplicateDeliveryIsIdempotent(t *testing.T) {
	video := waitingVideo("tok1")
	store := newFakeStore(video)
	router := newWebhookRouter(t, store)

	w := postEvent(t, router, readyEvent(), testWebhookSecret)
	require.Equal(t, http.StatusOK, w.Code)
	first := *store.get(video.ID)

	w = postEvent(t, router, readyEvent(), testWebhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, *store.get(video.ID))
}

func TestWebhookUnknownKindAcknowledged(t *testing.T) {
	router := newWebhookRouter(t, newFakeStore())

	w := postEvent(t, router, WebhookEvent{Type: "video.live_stream.idle"}, testWebhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)
}
