// Package screening fetches sanctions/PEP/adverse-media results from the
// external screening service. Screening is mandatory input to risk scoring:
// when the service cannot be reached after the configured retries the caller
// receives an error, never an empty result set, because skipping screening
// would understate risk.
package screening

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"onboarding-engine/internal/model"
)

// Client calls the screening service over HTTP with a bounded timeout and a
// small number of retries with exponential backoff.
type Client struct {
	baseURL string
	client  *http.Client
	retries int
	backoff time.Duration
}

// NewClient builds a screening client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, retries int) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL: baseURL,
		retries: retries,
		backoff: 250 * time.Millisecond,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type screenRequest struct {
	Names []string `json:"names"`
}

type screenResponse struct {
	Results []model.ScreeningResult `json:"results"`
}

// Screen submits the sponsor and principal names and returns one result per
// screened name.
func (c *Client) Screen(ctx context.Context, names []string) ([]model.ScreeningResult, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("screening requires at least one name")
	}

	payload, err := json.Marshal(screenRequest{Names: names})
	if err != nil {
		return nil, fmt.Errorf("failed to encode screening request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("screening cancelled: %w", ctx.Err())
			case <-time.After(c.backoff << (attempt - 1)):
			}
		}

		results, err := c.screenOnce(ctx, payload)
		if err == nil {
			return results, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("screening failed after %d attempt(s): %w", c.retries+1, lastErr)
}

func (c *Client) screenOnce(ctx context.Context, payload []byte) ([]model.ScreeningResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/screen", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create screening request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("screening request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read screening response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("screening service returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed screenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse screening response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return nil, fmt.Errorf("screening service returned no results")
	}
	return parsed.Results, nil
}
