package rest

import (
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*Config)

type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	DefaultHeaders map[string]string
	HTTPClient     *http.Client
	UserAgent      string
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 2,
		RetryDelay:    500 * time.Millisecond,
		DefaultHeaders: map[string]string{
			"Accept": "application/json",
		},
		UserAgent: "flowbaker-automations/1.0",
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.BaseURL = baseURL
	}
}

func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Config) {
		c.RetryAttempts = attempts
		c.RetryDelay = delay
	}
}

func WithHeader(key, value string) Option {
	return func(c *Config) {
		if c.DefaultHeaders == nil {
			c.DefaultHeaders = make(map[string]string)
		}
		c.DefaultHeaders[key] = value
	}
}

// WithHTTPClient sets the transport, usually an oauth2 client carrying the
// credential's token.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = httpClient
	}
}
