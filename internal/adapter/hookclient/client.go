// Package hookclient forwards raw hook payloads to a running hookwatch
// server, over HTTP or JSON-RPC.
package hookclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/hookwatch/internal/domain"
)

// Client is an HTTP client for the ingestion endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new HTTP client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ingest posts a raw JSON hook payload to POST /ingest/hooks.
func (c *Client) Ingest(ctx context.Context, body []byte) (*domain.IngestResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest/hooks", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to post hook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var errResp domain.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("hookwatch error: %s", errResp.Error)
		}
		return nil, fmt.Errorf("hookwatch returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var ingestResp domain.IngestResponse
	if err := json.NewDecoder(resp.Body).Decode(&ingestResp); err != nil {
		return nil, fmt.Errorf("failed to decode ingest response: %w", err)
	}

	return &ingestResp, nil
}
