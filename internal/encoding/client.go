// Package encoding talks to the external video encoding provider: direct
// upload creation, asset deletion, derived media locators and transcript
// tracks. Encoding itself happens on the provider side; progress comes back
// through signed webhooks handled by the videos package.
package encoding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newtube/backend/config"
	"github.com/newtube/backend/pkg/apperr"
)

// DirectUpload is a provider upload slot: the ID is the correlation token
// echoed back by every webhook for the resulting asset, the URL is where the
// client PUTs the file.
type DirectUpload struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client is the encoding provider API client.
type Client struct {
	http   *http.Client
	cfg    config.EncodingConfig
	logger *zap.Logger
}

// NewClient creates an encoding provider client.
func NewClient(cfg config.EncodingConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		cfg:    cfg,
		logger: logger,
	}
}

type createUploadRequest struct {
	CORSOrigin       string           `json:"cors_origin"`
	NewAssetSettings newAssetSettings `json:"new_asset_settings"`
}

type newAssetSettings struct {
	PlaybackPolicy []string `json:"playback_policy"`
}

type createUploadResponse struct {
	Data DirectUpload `json:"data"`
}

// CreateDirectUpload asks the provider for a new direct upload slot.
func (c *Client) CreateDirectUpload(ctx context.Context) (*DirectUpload, error) {
	body, err := json.Marshal(createUploadRequest{
		CORSOrigin:       c.cfg.CORSOrigin,
		NewAssetSettings: newAssetSettings{PlaybackPolicy: []string{"public"}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+"/video/v1/uploads", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.TokenID, c.cfg.TokenSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	defer resp.Body.Close()
	if err := apperr.FromStatus("create upload", resp.StatusCode); err != nil {
		return nil, err
	}

	var out createUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Data.ID == "" || out.Data.URL == "" {
		return nil, apperr.Terminal(fmt.Errorf("create upload: %w", apperr.ErrEmptyResult))
	}
	return &out.Data, nil
}

// DeleteAsset removes an asset on the provider side. A provider 404 is
// treated as success: the asset is already gone.
func (c *Client) DeleteAsset(ctx context.Context, assetRef string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.APIBaseURL+"/video/v1/assets/"+assetRef, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.TokenID, c.cfg.TokenSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return apperr.FromStatus("delete asset", resp.StatusCode)
}

// ThumbnailURL returns the provider-derived still frame for a playback ref.
func (c *Client) ThumbnailURL(playbackRef string) string {
	return fmt.Sprintf("%s/%s/thumbnail.jpg", c.cfg.ImageBaseURL, playbackRef)
}

// PreviewURL returns the provider-derived animated preview for a playback ref.
func (c *Client) PreviewURL(playbackRef string) string {
	return fmt.Sprintf("%s/%s/animated.gif", c.cfg.ImageBaseURL, playbackRef)
}

// TranscriptURL returns the plain-text rendition of a subtitle track.
func (c *Client) TranscriptURL(playbackRef, trackRef string) string {
	return fmt.Sprintf("%s/%s/text/%s.txt", c.cfg.StreamBaseURL, playbackRef, trackRef)
}

// FetchTranscript downloads the text track derived for an asset.
func (c *Client) FetchTranscript(ctx context.Context, playbackRef, trackRef string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.TranscriptURL(playbackRef, trackRef), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()
	if err := apperr.FromStatus("fetch transcript", resp.StatusCode); err != nil {
		return "", err
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
