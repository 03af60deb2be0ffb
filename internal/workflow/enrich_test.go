package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/pkg/apperr"
	"github.com/newtube/backend/pkg/queue"
)

// recorder collects the side-effect order across fakes.
type recorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *recorder) add(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

type fakeVideoStore struct {
	rec    *recorder
	mu     sync.Mutex
	videos map[uuid.UUID]*models.Video
}

func newFakeVideoStore(rec *recorder, videos ...*models.Video) *fakeVideoStore {
	s := &fakeVideoStore{rec: rec, videos: make(map[uuid.UUID]*models.Video)}
	for _, v := range videos {
		s.videos[v.ID] = v
	}
	return s
}

func (s *fakeVideoStore) find(id, userID uuid.UUID) (*models.Video, error) {
	v, ok := s.videos[id]
	if !ok || v.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	return v, nil
}

func (s *fakeVideoStore) GetByID(_ context.Context, id, userID uuid.UUID) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.find(id, userID)
	if err != nil {
		return nil, err
	}
	copied := *v
	return &copied, nil
}

func (s *fakeVideoStore) UpdateTitle(_ context.Context, id, userID uuid.UUID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.find(id, userID)
	if err != nil {
		return err
	}
	v.Title = title
	s.rec.add("videos.title " + title)
	return nil
}

func (s *fakeVideoStore) UpdateDescription(_ context.Context, id, userID uuid.UUID, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.find(id, userID)
	if err != nil {
		return err
	}
	v.Description = description
	s.rec.add("videos.description")
	return nil
}

func (s *fakeVideoStore) ClearThumbnail(_ context.Context, id, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.find(id, userID)
	if err != nil {
		return err
	}
	v.ThumbnailRef = ""
	v.ThumbnailLocator = ""
	s.rec.add("videos.clear-thumbnail")
	return nil
}

func (s *fakeVideoStore) SetThumbnail(_ context.Context, id, userID uuid.UUID, key, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.find(id, userID)
	if err != nil {
		return err
	}
	v.ThumbnailRef = key
	v.ThumbnailLocator = url
	s.rec.add("videos.set-thumbnail " + key)
	return nil
}

func (s *fakeVideoStore) get(id uuid.UUID) models.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.videos[id]
}

type fakeGenerator struct {
	text       string
	textErr    error
	imageURL   string
	imageErr   error
	imageCalls int
}

func (g *fakeGenerator) GenerateText(context.Context, string, string) (string, error) {
	return g.text, g.textErr
}

func (g *fakeGenerator) GenerateImage(context.Context, string) (string, error) {
	g.imageCalls++
	return g.imageURL, g.imageErr
}

type fakeObjectStore struct {
	rec       *recorder
	uploadErr error
	deleteErr error
}

func (f *fakeObjectStore) UploadFromURL(_ context.Context, key, _ string) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.rec.add("files.upload " + key)
	return "https://files.example.com/" + key, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.rec.add("files.delete " + key)
	return nil
}

type fakeTracks struct {
	transcript string
	err        error
}

func (f *fakeTracks) FetchTranscript(context.Context, string, string) (string, error) {
	return f.transcript, f.err
}

type enrichFixture struct {
	rec    *recorder
	store  *fakeVideoStore
	gen    *fakeGenerator
	files  *fakeObjectStore
	tracks *fakeTracks
	video  *models.Video
	in     Input
}

func newEnrichFixture(t *testing.T) *enrichFixture {
	t.Helper()
	rec := &recorder{}
	video := &models.Video{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Title:       "Untitled",
		Description: "A walkthrough of keyset pagination in PostgreSQL.",
		PlaybackRef: "pb1",
		TrackRef:    "trk1",
	}
	return &enrichFixture{
		rec:    rec,
		store:  newFakeVideoStore(rec, video),
		gen:    &fakeGenerator{text: "generated", imageURL: "https://tmp.example.com/img.png"},
		files:  &fakeObjectStore{rec: rec},
		tracks: &fakeTracks{transcript: "hello and welcome to the video"},
		video:  video,
		in: Input{
			InstanceID: uuid.New().String(),
			UserID:     video.UserID,
			VideoID:    video.ID,
			Prompt:     "a blue gopher",
		},
	}
}

func (f *enrichFixture) enricher(log StepLog) *Enricher {
	if log == nil {
		log = NewMemoryStepLog()
	}
	return NewEnricher(f.store, f.gen, f.files, f.tracks,
		log, Policy{MaxAttempts: 1, Backoff: time.Millisecond}, nil)
}

func TestTitleWorkflow(t *testing.T) {
	f := newEnrichFixture(t)
	f.gen.text = "\"Keyset Pagination Explained\"\nextra line"

	require.NoError(t, f.enricher(nil).RunTitle(context.Background(), f.in))
	assert.Equal(t, "Keyset Pagination Explained", f.store.get(f.video.ID).Title)
}

func TestTitleWorkflowBoundsLength(t *testing.T) {
	f := newEnrichFixture(t)
	f.gen.text = strings.Repeat("a", 300)

	require.NoError(t, f.enricher(nil).RunTitle(context.Background(), f.in))
	assert.Len(t, f.store.get(f.video.ID).Title, 100)
}

func TestTitleWorkflowFallsBackOnEmptyGeneration(t *testing.T) {
	f := newEnrichFixture(t)
	f.video.Title = "Original Title"
	f.gen.text = "  "

	require.NoError(t, f.enricher(nil).RunTitle(context.Background(), f.in))
	assert.Equal(t, "Original Title", f.store.get(f.video.ID).Title)
}

func TestTitleWorkflowVideoNotFound(t *testing.T) {
	f := newEnrichFixture(t)
	f.in.VideoID = uuid.New()

	err := f.enricher(nil).RunTitle(context.Background(), f.in)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, f.rec.ops)
}

func TestDescriptionWorkflow(t *testing.T) {
	f := newEnrichFixture(t)
	f.gen.text = "A concise summary of the video."

	require.NoError(t, f.enricher(nil).RunDescription(context.Background(), f.in))
	assert.Equal(t, "A concise summary of the video.", f.store.get(f.video.ID).Description)
}

func TestDescriptionWorkflowWithoutTrackIsTerminal(t *testing.T) {
	f := newEnrichFixture(t)
	f.video.TrackRef = ""

	err := f.enricher(nil).RunDescription(context.Background(), f.in)
	require.Error(t, err)
	assert.True(t, apperr.IsTerminal(err))
	assert.ErrorIs(t, err, apperr.ErrEmptyResult)
}

func TestDescriptionWorkflowEmptyTranscriptIsTerminal(t *testing.T) {
	f := newEnrichFixture(t)
	f.tracks.transcript = ""

	err := f.enricher(nil).RunDescription(context.Background(), f.in)
	require.Error(t, err)
	assert.True(t, apperr.IsTerminal(err))
}

func TestThumbnailWorkflowReplacesPreviousObject(t *testing.T) {
	f := newEnrichFixture(t)
	f.video.ThumbnailRef = "thumbnails/old/old.png"
	f.video.ThumbnailLocator = "https://files.example.com/thumbnails/old/old.png"

	require.NoError(t, f.enricher(nil).RunThumbnail(context.Background(), f.in))

	got := f.store.get(f.video.ID)
	assert.True(t, strings.HasPrefix(got.ThumbnailRef, "thumbnails/"+f.video.ID.String()+"/"))
	assert.Equal(t, "https://files.example.com/"+got.ThumbnailRef, got.ThumbnailLocator)

	// Old object is deleted and its reference cleared before the new one is
	// uploaded and attached.
	require.Len(t, f.rec.ops, 4)
	assert.Equal(t, "files.delete thumbnails/old/old.png", f.rec.ops[0])
	assert.Equal(t, "videos.clear-thumbnail", f.rec.ops[1])
	assert.Equal(t, "files.upload "+got.ThumbnailRef, f.rec.ops[2])
	assert.Equal(t, "videos.set-thumbnail "+got.ThumbnailRef, f.rec.ops[3])
}

func TestThumbnailWorkflowSkipsCleanupWithoutPrevious(t *testing.T) {
	f := newEnrichFixture(t)

	require.NoError(t, f.enricher(nil).RunThumbnail(context.Background(), f.in))
	for _, op := range f.rec.ops {
		assert.False(t, strings.HasPrefix(op, "files.delete"), "unexpected delete: %s", op)
	}
}

func TestThumbnailWorkflowUploadFailureLeavesNoDanglingRef(t *testing.T) {
	f := newEnrichFixture(t)
	f.video.ThumbnailRef = "thumbnails/old/old.png"
	f.files.uploadErr = apperr.Terminal(errors.New("bucket gone"))

	err := f.enricher(nil).RunThumbnail(context.Background(), f.in)
	require.Error(t, err)

	// The old reference was cleared during cleanup and nothing new was
	// attached: no row points at a missing object.
	got := f.store.get(f.video.ID)
	assert.Empty(t, got.ThumbnailRef)
	assert.Empty(t, got.ThumbnailLocator)
}

func TestThumbnailWorkflowResumeDoesNotRegenerate(t *testing.T) {
	f := newEnrichFixture(t)
	f.video.ThumbnailRef = "thumbnails/old/old.png"
	f.files.uploadErr = errors.New("status 503")
	log := NewMemoryStepLog()

	require.Error(t, f.enricher(log).RunThumbnail(context.Background(), f.in))
	require.Equal(t, 1, f.gen.imageCalls)

	// Retried with the same instance id: get-video, generate-image and
	// cleanup replay from the step log; only the upload and persist run.
	f.files.uploadErr = nil
	require.NoError(t, f.enricher(log).RunThumbnail(context.Background(), f.in))
	assert.Equal(t, 1, f.gen.imageCalls)

	var deletes int
	for _, op := range f.rec.ops {
		if strings.HasPrefix(op, "files.delete") {
			deletes++
		}
	}
	assert.Equal(t, 1, deletes)
	assert.NotEmpty(t, f.store.get(f.video.ID).ThumbnailRef)
}

func TestRunDispatchesKinds(t *testing.T) {
	f := newEnrichFixture(t)
	e := f.enricher(nil)

	require.NoError(t, e.Run(context.Background(), queue.EnrichmentTitle, f.in))

	err := e.Run(context.Background(), "transmogrify", f.in)
	require.Error(t, err)
	assert.True(t, apperr.IsTerminal(err))
}
