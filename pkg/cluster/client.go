package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable is returned when the clustering service cannot answer;
// callers fall back to Predict.
var ErrUnavailable = errors.New("clustering service unavailable")

// Client calls the clustering HTTP service.
type Client struct {
	baseURL string
	hc      *http.Client
}

// New returns a client for the service at baseURL (e.g. "http://localhost:8000").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

type healthResponse struct {
	ModelLoaded bool `json:"model_loaded"`
}

// Healthy reports whether the service is up with its model loaded.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return false
	}
	return h.ModelLoaded
}

type batchRequest struct {
	Schools []School `json:"schools"`
}

// ClusterBatch predicts clusters for all schools in one call. Any transport
// or decode failure comes back wrapped in ErrUnavailable.
func (c *Client) ClusterBatch(ctx context.Context, schools []School) (*BatchResponse, error) {
	body, err := json.Marshal(batchRequest{Schools: schools})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cluster-batch", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var out BatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &out, nil
}

// BatchOrFallback tries the service and silently degrades to the local
// rule-based prediction when it cannot answer.
func (c *Client) BatchOrFallback(ctx context.Context, schools []School) *BatchResponse {
	if resp, err := c.ClusterBatch(ctx, schools); err == nil {
		return resp
	}
	return Fallback(schools)
}
