// Package client talks to a running predictor server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/atsushimemet/fridge-predictor/internal/metrics"
	"github.com/atsushimemet/fridge-predictor/internal/server"
)

const (
	DefaultServerURL = "http://127.0.0.1:5000"
	httpTimeout      = 5 * time.Second
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// Item is one category/day pair to predict.
type Item struct {
	CategoryID string
	Days       int
}

// Client talks to the predictor server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for baseURL. An empty baseURL uses PREDICTOR_URL,
// falling back to http://127.0.0.1:5000.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("PREDICTOR_URL")
	}
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: strings.TrimRight(baseURL, "/"),
	}
}

// URL returns the server base URL.
func (c *Client) URL() string {
	return c.serverURL
}

// Predict posts items to /predict.
func (c *Client) Predict(ctx context.Context, items []Item) (*server.PredictResponse, error) {
	req := server.PredictRequest{Items: make([]server.PredictItem, len(items))}
	for i, it := range items {
		cat, days := it.CategoryID, float64(it.Days)
		req.Items[i] = server.PredictItem{CategoryID: &cat, DaysSinceLastPurchase: &days}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var resp server.PredictResponse
	if err := c.do(ctx, http.MethodPost, "/predict", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Metrics fetches /metrics.
func (c *Client) Metrics(ctx context.Context) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/metrics", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, r)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}
