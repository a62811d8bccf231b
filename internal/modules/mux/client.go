package mux

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/echo-journal/core/internal/config"
)

// Client talks to the video platform's REST API using basic auth.
// Base URLs come from config so tests can point it at a local stub.
type Client struct {
	cfg        config.MuxConfig
	httpClient *http.Client
}

// NewClient creates a platform API client.
func NewClient(cfg config.MuxConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool { return c.cfg.Configured() }

// WebhookSecret returns the shared secret used to verify webhook signatures.
func (c *Client) WebhookSecret() string { return c.cfg.WebhookSecret }

// CreateDirectUpload creates a one-time upload target. New assets get a public
// playback policy, baseline encoding, and auto-generated captions so the
// transcript track exists once the asset is ready.
func (c *Client) CreateDirectUpload(ctx context.Context) (*DirectUpload, error) {
	body := createUploadRequest{
		CORSOrigin: c.cfg.CORSOrigin,
		NewAssetSettings: newAssetSettings{
			PlaybackPolicy: []string{"public"},
			EncodingTier:   "baseline",
			GeneratedSubtitles: []subtitleSettings{
				{LanguageCode: c.cfg.CaptionLanguage, Name: c.cfg.CaptionName},
			},
		},
	}

	var env uploadEnvelope
	if err := c.do(ctx, http.MethodPost, "/video/v1/uploads", body, &env); err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	if env.Data.ID == "" || env.Data.URL == "" {
		return nil, fmt.Errorf("create upload: platform returned empty id or url")
	}
	return &DirectUpload{ID: env.Data.ID, URL: env.Data.URL}, nil
}

// GetUpload fetches the state of an upload target.
func (c *Client) GetUpload(ctx context.Context, uploadID string) (*Upload, error) {
	var env uploadEnvelope
	if err := c.do(ctx, http.MethodGet, "/video/v1/uploads/"+uploadID, nil, &env); err != nil {
		return nil, fmt.Errorf("get upload %s: %w", uploadID, err)
	}
	return &Upload{ID: env.Data.ID, Status: env.Data.Status, AssetID: env.Data.AssetID}, nil
}

// GetAsset fetches the state of an asset.
func (c *Client) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	var env assetEnvelope
	if err := c.do(ctx, http.MethodGet, "/video/v1/assets/"+assetID, nil, &env); err != nil {
		return nil, fmt.Errorf("get asset %s: %w", assetID, err)
	}
	return &env.Data, nil
}

// FetchTranscript downloads the rendered text track for a playback ID and
// returns it with surrounding whitespace trimmed.
func (c *Client) FetchTranscript(ctx context.Context, playbackID, trackID string) (string, error) {
	url := c.TranscriptURL(playbackID, trackID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch transcript: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// StreamURL returns the HLS playlist URL for a playback ID.
func (c *Client) StreamURL(playbackID string) string {
	return fmt.Sprintf("%s/%s.m3u8", c.cfg.StreamBase, playbackID)
}

// ThumbnailURL returns a poster frame taken one second into the video.
func (c *Client) ThumbnailURL(playbackID string) string {
	return fmt.Sprintf("%s/%s/thumbnail.jpg?time=1", c.cfg.ImageBase, playbackID)
}

// GifURL returns an animated preview for a playback ID.
func (c *Client) GifURL(playbackID string) string {
	return fmt.Sprintf("%s/%s/animated.gif?width=320", c.cfg.ImageBase, playbackID)
}

// TranscriptURL returns the rendered text track URL for a playback ID.
func (c *Client) TranscriptURL(playbackID, trackID string) string {
	return fmt.Sprintf("%s/%s/text/%s.txt", c.cfg.StreamBase, playbackID, trackID)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if !c.Configured() {
		return fmt.Errorf("video platform credentials not configured")
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBase+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.TokenID, c.cfg.TokenSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("platform returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
