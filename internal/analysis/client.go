package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bodylog-backend/internal/bodylog"
	"bodylog-backend/internal/retry"
)

// ErrUnauthorized is returned when the analysis API rejects the user token.
var ErrUnauthorized = errors.New("analysis: unauthorized")

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	backoffs   []time.Duration
}

type AnalyzeRequest struct {
	ImageID string `json:"image_id"`
}

type AnalyzeResponse struct {
	Data bodylog.Metrics `json:"data"`
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithRetries(maxRetries int, backoffs []time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.backoffs = backoffs
	}
}

func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze asks the analysis service to compute metrics for a persisted image,
// acting as the user identified by authToken.
func (c *Client) Analyze(ctx context.Context, durableID, authToken string) (bodylog.Metrics, error) {
	if authToken == "" {
		return bodylog.Metrics{}, ErrUnauthorized
	}

	jsonData, err := json.Marshal(AnalyzeRequest{ImageID: durableID})
	if err != nil {
		return bodylog.Metrics{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	var metrics bodylog.Metrics
	err = retry.WithBackoff(ctx, func() error {
		var err error
		metrics, err = c.analyze(ctx, jsonData, authToken)
		return err
	}, c.maxRetries, c.backoffs)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return bodylog.Metrics{}, err
		}
		return bodylog.Metrics{}, fmt.Errorf("failed to analyze image %s: %w", durableID, err)
	}
	return metrics, nil
}

func (c *Client) analyze(ctx context.Context, jsonData []byte, authToken string) (bodylog.Metrics, error) {
	url := c.baseURL + "/body-log/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return bodylog.Metrics{}, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return bodylog.Metrics{}, retry.Permanent(fmt.Errorf("failed to execute request: %w", err))
		}
		return bodylog.Metrics{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return bodylog.Metrics{}, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return bodylog.Metrics{}, retry.Permanent(ErrUnauthorized)
	case resp.StatusCode >= http.StatusInternalServerError:
		return bodylog.Metrics{}, fmt.Errorf("analysis failed: status %d, body: %s", resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return bodylog.Metrics{}, retry.Permanent(fmt.Errorf("analysis failed: status %d, body: %s", resp.StatusCode, string(body)))
	}

	var result AnalyzeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return bodylog.Metrics{}, retry.Permanent(fmt.Errorf("failed to decode response: %w, body: %s", err, string(body)))
	}

	return result.Data, nil
}
