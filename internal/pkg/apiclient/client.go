// Package apiclient is a Go client for the journal API, used by the CLI and
// by integration tests. It covers the full recording flow: create an entry,
// upload the video blob, and poll until the platform reports a terminal state.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the API at baseURL (no trailing slash needed).
func New(baseURL string) *Client {
	return &Client{
		baseURL:    trimRightSlash(baseURL),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken attaches a bearer token for authenticated calls.
func (c *Client) SetToken(token string) { c.token = token }

// Token returns the current bearer token.
func (c *Client) Token() string { return c.token }

func trimRightSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Token
	return &out, nil
}

// CreateEntry starts a new diary entry and returns the upload target.
func (c *Client) CreateEntry(ctx context.Context, mood, date string) (*CreateEntryResult, error) {
	body := map[string]string{"mood": mood}
	if date != "" {
		body["date"] = date
	}
	var out CreateEntryResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/entries", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadBlob PUTs the recorded video to the one-time upload URL. The target
// URL belongs to the video platform, not the API, so no auth header is sent.
// Any non-2xx status fails; there is no retry, the caller records again.
func (c *Client) UploadBlob(ctx context.Context, uploadURL string, blob io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, blob)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "video/webm")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload blob: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload blob: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// CheckStatus asks the API to reconcile and report an entry's video state.
func (c *Client) CheckStatus(ctx context.Context, entryID string) (*EntryStatus, error) {
	var out EntryStatus
	if err := c.do(ctx, http.MethodPost, "/api/v1/entries/"+entryID+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetEntry fetches a single entry.
func (c *Client) GetEntry(ctx context.Context, entryID string) (*Entry, error) {
	var out Entry
	if err := c.do(ctx, http.MethodGet, "/api/v1/entries/"+entryID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListEntries fetches a page of the owner's entries.
func (c *Client) ListEntries(ctx context.Context, page, size int) ([]Entry, error) {
	var out struct {
		Data []Entry `json:"data"`
	}
	path := fmt.Sprintf("/api/v1/entries?page=%d&size=%d", page, size)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
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
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("api returned status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
