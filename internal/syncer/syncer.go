// Package syncer backs up study progress to the remote sync endpoint.
// Each save re-sends the full current snapshot rather than a delta, so
// the call is safe to retry; a failed save never touches local state.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/morvant/deckard/internal/domain"
)

// Client talks to the remote progress backup endpoint.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

// New creates a sync client. token is the bearer credential of the
// authenticated session established by the auth collaborator; endpoint
// may be empty when the user runs without a backup endpoint.
func New(endpoint, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// saveRequest is the wire shape of a snapshot upload.
type saveRequest struct {
	Progress []domain.StudyProgress `json:"progress"`
}

// SaveProgress uploads the full progress snapshot.
func (c *Client) SaveProgress(ctx context.Context, progress []domain.StudyProgress) error {
	if c.endpoint == "" {
		c.logger.Info("no sync endpoint configured, skipping backup", "records", len(progress))
		return nil
	}

	body, err := json.Marshal(saveRequest{Progress: progress})
	if err != nil {
		return fmt.Errorf("encode progress snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/progress", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sync request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sync endpoint returned %s", resp.Status)
	}

	c.logger.Info("progress synced", "records", len(progress))
	return nil
}
