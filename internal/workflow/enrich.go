package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newtube/backend/internal/models"
	"github.com/newtube/backend/pkg/apperr"
	"github.com/newtube/backend/pkg/queue"
	"github.com/newtube/backend/pkg/storage"
)

// Step names per workflow, in execution order.
const (
	stepGetVideo            = "get-video"
	stepGenerateTitle       = "generate-title"
	stepPersistTitle        = "persist-title"
	stepGetTranscript       = "get-transcript"
	stepGenerateDescription = "generate-description"
	stepPersistDescription  = "persist-description"
	stepGenerateImage       = "generate-image"
	stepCleanupThumbnail    = "cleanup-previous-thumbnail"
	stepUploadThumbnail     = "upload-thumbnail"
	stepPersistThumbnail    = "persist-thumbnail"
)

// TitleSystemPrompt steers title generation.
const TitleSystemPrompt = `Your task is to generate an SEO-focused title for a video based on its description. Please follow these guidelines:
- Be concise but descriptive, using relevant keywords to improve discoverability.
- Highlight the most compelling or unique aspect of the video content.
- Avoid jargon or overly complex language unless it directly supports searchability.
- Use action-oriented phrasing or clear value propositions where applicable.
- ONLY return the title as plain text. Do not add quotes or any additional formatting.`

// DescriptionSystemPrompt steers transcript summarization.
const DescriptionSystemPrompt = `Your task is to summarize the transcript of a video. Please follow these guidelines:
- Be brief. Condense the content into a summary that captures the key points and main ideas without losing important details.
- Avoid jargon or overly complex language unless necessary for the context.
- Focus on the most critical information, ignoring filler, repetitive statements, or irrelevant tangents.
- ONLY return the summary, no other text, annotations, or comments.
- Aim for a summary that is 3-5 sentences long and no more than 200 characters.`

const maxTitleLength = 100

// VideoStore is the asset store surface the workflows use. Every call is
// scoped by id+owner; each workflow only writes its own fields so concurrent
// instances against the same video cannot lose each other's updates.
type VideoStore interface {
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Video, error)
	UpdateTitle(ctx context.Context, id, userID uuid.UUID, title string) error
	UpdateDescription(ctx context.Context, id, userID uuid.UUID, description string) error
	ClearThumbnail(ctx context.Context, id, userID uuid.UUID) error
	SetThumbnail(ctx context.Context, id, userID uuid.UUID, key, url string) error
}

// Generator is the generative AI surface the workflows use.
type Generator interface {
	GenerateText(ctx context.Context, system, user string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// FileStore persists and deletes thumbnail objects.
type FileStore interface {
	UploadFromURL(ctx context.Context, key, srcURL string) (string, error)
	Delete(ctx context.Context, key string) error
}

// TranscriptFetcher retrieves the derived text track for an asset.
type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, playbackRef, trackRef string) (string, error)
}

// Input triggers one enrichment workflow instance. InstanceID identifies the
// instance across retries; reusing it resumes from the recorded steps.
type Input struct {
	InstanceID string
	UserID     uuid.UUID
	VideoID    uuid.UUID
	Prompt     string
}

// Enricher owns the three enrichment workflow definitions: title,
// description and thumbnail. Each is a fixed sequence of orchestrator steps;
// a failing step fails the whole instance and leaves the video's prior
// metadata untouched.
type Enricher struct {
	videos VideoStore
	ai     Generator
	files  FileStore
	tracks TranscriptFetcher
	steps  StepLog
	policy Policy
	logger *zap.Logger
}

// NewEnricher creates the enrichment workflow definitions.
func NewEnricher(videos VideoStore, ai Generator, files FileStore, tracks TranscriptFetcher, steps StepLog, policy Policy, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{videos: videos, ai: ai, files: files, tracks: tracks, steps: steps, policy: policy, logger: logger}
}

func (e *Enricher) run(in Input) *Run {
	return NewRun(in.InstanceID, e.steps, e.logger, e.policy)
}

// Run dispatches a workflow kind to its definition.
func (e *Enricher) Run(ctx context.Context, kind string, in Input) error {
	switch kind {
	case queue.EnrichmentTitle:
		return e.RunTitle(ctx, in)
	case queue.EnrichmentDescription:
		return e.RunDescription(ctx, in)
	case queue.EnrichmentThumbnail:
		return e.RunThumbnail(ctx, in)
	default:
		return apperr.Terminal(errors.New("unknown workflow kind: " + kind))
	}
}

// RunTitle generates and persists a title from the video's description.
// An empty generation result falls back to the existing title.
func (e *Enricher) RunTitle(ctx context.Context, in Input) error {
	r := e.run(in)

	video, err := Step(ctx, r, stepGetVideo, func(ctx context.Context) (*models.Video, error) {
		return e.videos.GetByID(ctx, in.VideoID, in.UserID)
	})
	if err != nil {
		return e.fail(in, "title", err)
	}

	title, err := Step(ctx, r, stepGenerateTitle, func(ctx context.Context) (string, error) {
		prompt := video.Description
		if prompt == "" {
			prompt = video.Title
		}
		generated, err := e.ai.GenerateText(ctx, TitleSystemPrompt, prompt)
		if err != nil {
			return "", err
		}
		return normalizeTitle(generated), nil
	})
	if err != nil {
		return e.fail(in, "title", err)
	}

	_, err = Step(ctx, r, stepPersistTitle, func(ctx context.Context) (bool, error) {
		if title == "" {
			title = video.Title
		}
		return true, e.videos.UpdateTitle(ctx, in.VideoID, in.UserID, title)
	})
	if err != nil {
		return e.fail(in, "title", err)
	}

	e.logger.Info("title workflow completed",
		zap.String("instance_id", in.InstanceID),
		zap.String("video_id", in.VideoID.String()))
	return nil
}

// RunDescription summarizes the video's transcript into a description.
func (e *Enricher) RunDescription(ctx context.Context, in Input) error {
	r := e.run(in)

	video, err := Step(ctx, r, stepGetVideo, func(ctx context.Context) (*models.Video, error) {
		return e.videos.GetByID(ctx, in.VideoID, in.UserID)
	})
	if err != nil {
		return e.fail(in, "description", err)
	}

	transcript, err := Step(ctx, r, stepGetTranscript, func(ctx context.Context) (string, error) {
		if video.PlaybackRef == "" || video.TrackRef == "" {
			return "", apperr.Terminal(fmt.Errorf("no transcript track: %w", apperr.ErrEmptyResult))
		}
		text, err := e.tracks.FetchTranscript(ctx, video.PlaybackRef, video.TrackRef)
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", apperr.Terminal(fmt.Errorf("transcript: %w", apperr.ErrEmptyResult))
		}
		return text, nil
	})
	if err != nil {
		return e.fail(in, "description", err)
	}

	description, err := Step(ctx, r, stepGenerateDescription, func(ctx context.Context) (string, error) {
		generated, err := e.ai.GenerateText(ctx, DescriptionSystemPrompt, transcript)
		if err != nil {
			return "", err
		}
		generated = strings.TrimSpace(generated)
		if generated == "" {
			return "", apperr.Terminal(fmt.Errorf("description generation: %w", apperr.ErrEmptyResult))
		}
		return generated, nil
	})
	if err != nil {
		return e.fail(in, "description", err)
	}

	_, err = Step(ctx, r, stepPersistDescription, func(ctx context.Context) (bool, error) {
		return true, e.videos.UpdateDescription(ctx, in.VideoID, in.UserID, description)
	})
	if err != nil {
		return e.fail(in, "description", err)
	}

	e.logger.Info("description workflow completed",
		zap.String("instance_id", in.InstanceID),
		zap.String("video_id", in.VideoID.String()))
	return nil
}

// thumbnailObject is the recorded result of the upload-thumbnail step.
type thumbnailObject struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// RunThumbnail generates an image from the user prompt, replaces the stored
// thumbnail and persists the new reference. The previous object is deleted
// and its reference cleared before the new one is attached, so a crash
// mid-workflow cannot leave two live files referenced by stale state.
func (e *Enricher) RunThumbnail(ctx context.Context, in Input) error {
	r := e.run(in)

	video, err := Step(ctx, r, stepGetVideo, func(ctx context.Context) (*models.Video, error) {
		return e.videos.GetByID(ctx, in.VideoID, in.UserID)
	})
	if err != nil {
		return e.fail(in, "thumbnail", err)
	}

	tempURL, err := Step(ctx, r, stepGenerateImage, func(ctx context.Context) (string, error) {
		return e.ai.GenerateImage(ctx, in.Prompt)
	})
	if err != nil {
		return e.fail(in, "thumbnail", err)
	}

	_, err = Step(ctx, r, stepCleanupThumbnail, func(ctx context.Context) (bool, error) {
		if video.ThumbnailRef == "" {
			return true, nil
		}
		if err := e.files.Delete(ctx, video.ThumbnailRef); err != nil {
			return false, err
		}
		return true, e.videos.ClearThumbnail(ctx, in.VideoID, in.UserID)
	})
	if err != nil {
		return e.fail(in, "thumbnail", err)
	}

	uploaded, err := Step(ctx, r, stepUploadThumbnail, func(ctx context.Context) (thumbnailObject, error) {
		key := storage.ThumbnailKey(in.VideoID.String(), uuid.New().String())
		url, err := e.files.UploadFromURL(ctx, key, tempURL)
		if err != nil {
			return thumbnailObject{}, err
		}
		return thumbnailObject{Key: key, URL: url}, nil
	})
	if err != nil {
		return e.fail(in, "thumbnail", err)
	}

	_, err = Step(ctx, r, stepPersistThumbnail, func(ctx context.Context) (bool, error) {
		return true, e.videos.SetThumbnail(ctx, in.VideoID, in.UserID, uploaded.Key, uploaded.URL)
	})
	if err != nil {
		return e.fail(in, "thumbnail", err)
	}

	e.logger.Info("thumbnail workflow completed",
		zap.String("instance_id", in.InstanceID),
		zap.String("video_id", in.VideoID.String()))
	return nil
}

func (e *Enricher) fail(in Input, kind string, err error) error {
	e.logger.Error("workflow failed",
		zap.String("workflow", kind),
		zap.String("instance_id", in.InstanceID),
		zap.String("video_id", in.VideoID.String()),
		zap.Error(err))
	return err
}

// normalizeTitle strips wrapping quotes and whitespace and bounds the length.
func normalizeTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, "\r\n"); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	runes := []rune(s)
	if len(runes) > maxTitleLength {
		s = strings.TrimSpace(string(runes[:maxTitleLength]))
	}
	return s
}
