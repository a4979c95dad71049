package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// Client is a small JSON client for provider APIs that ship no Go SDK.
type Client struct {
	config     *Config
	httpClient *http.Client
}

func NewClient(options ...Option) *Client {
	config := DefaultConfig()

	for _, option := range options {
		option(config)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, result any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, result)
}

func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, result)
}

func (c *Client) Patch(ctx context.Context, path string, query url.Values, body any, result any) error {
	return c.Do(ctx, http.MethodPatch, path, query, body, result)
}

// Do sends a JSON request and decodes a JSON response into result. Server
// errors and rate limits are retried.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any, result any) error {
	var bodyBytes []byte

	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	target := c.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		err := c.send(ctx, method, target, bodyBytes, result)
		if err == nil {
			return nil
		}

		var apiErr *Error
		if !errors.As(err, &apiErr) || !apiErr.IsRetryable() {
			return err
		}

		log.Debug().Int("status_code", apiErr.StatusCode).Str("url", target).Int("attempt", attempt+1).Msg("Retrying provider request")

		lastErr = err
	}

	return fmt.Errorf("request failed after %d retries: %w", c.config.RetryAttempts, lastErr)
}

func (c *Client) send(ctx context.Context, method, target string, bodyBytes []byte, result any) error {
	var requestBody io.Reader
	if bodyBytes != nil {
		requestBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, requestBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.config.DefaultHeaders {
		req.Header.Set(key, value)
	}

	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	return handleResponse(resp, result)
}

func handleResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResponse struct {
			Error   any    `json:"error"`
			Message string `json:"message"`
		}

		message := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if json.Unmarshal(body, &errorResponse) == nil && errorResponse.Message != "" {
			message = errorResponse.Message
		}

		return &Error{
			StatusCode: resp.StatusCode,
			Message:    message,
			Body:       string(body),
		}
	}

	if result != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
