// Package gemini provides a thin HTTP adapter for the generative AI endpoint.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 1024

// Config carries the externally supplied endpoint settings. There are no
// embedded defaults: the endpoint URL and key always come from configuration.
type Config struct {
	EndpointURL string
	APIKey      string
	Timeout     time.Duration
}

// Client sends a single completion request per call. Retry policy lives with
// the caller, never here.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// NewClient constructs a Client with a timeout-bounded HTTP client.
func NewClient(cfg Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.EndpointURL,
		apiKey:     cfg.APIKey,
	}
}

// EndpointError reports a failed call to the AI endpoint. StatusCode is zero
// for transport-level failures.
type EndpointError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *EndpointError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai endpoint: %v", e.Err)
	}
	return fmt.Sprintf("ai endpoint: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *EndpointError) Unwrap() error { return e.Err }

// BadRequest reports whether the endpoint rejected the request shape itself.
// These failures are not worth retrying: an identical request costs another
// paid call and fails the same way.
func (e *EndpointError) BadRequest() bool {
	return e.StatusCode == http.StatusBadRequest
}

type contentRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// Complete sends the prompt to the endpoint and returns the raw response body.
// The body is opaque text here; envelope interpretation belongs to the parser.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(contentRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", &EndpointError{Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &EndpointError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &EndpointError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &EndpointError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &EndpointError{Err: fmt.Errorf("read response: %w", err)}
	}
	return string(raw), nil
}
