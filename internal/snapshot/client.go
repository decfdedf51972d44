package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client fetches the authoritative session snapshot over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a snapshot client for the given API base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the current snapshot for a session code.
func (c *Client) Fetch(ctx context.Context, sessionCode string) (Document, error) {
	url := fmt.Sprintf("%s/api/sessions/%s/state", c.baseURL, sessionCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Document{}, fmt.Errorf("build snapshot request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("snapshot fetch returned status %d", resp.StatusCode)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return doc, nil
}
