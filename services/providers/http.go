package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of an upstream body is read
const maxResponseBytes = 4 << 20

// HTTPClient is the JSON-over-HTTP transport shared by provider adapters.
// Transport errors, 429 and 5xx responses are retried up to MaxRetries times.
type HTTPClient struct {
	id     ProviderID
	config ProviderConfig
	client *http.Client
}

// NewHTTPClient creates a transport for the provider id
func NewHTTPClient(id ProviderID, config ProviderConfig) *HTTPClient {
	defaults := DefaultProviderConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &HTTPClient{id: id, config: config, client: client}
}

// GetJSON performs a GET request and decodes a 200 response into out
func (c *HTTPClient) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	var (
		resp    *http.Response
		lastErr error
	)

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return NewProviderError(c.id, "CANCELLED", "request cancelled", 0, false, ctx.Err())
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return NewProviderError(c.id, "REQUEST_ERROR", "failed to create request", 0, false, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.config.UserAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, lastErr = c.client.Do(req)
		if lastErr != nil {
			if ctx.Err() != nil {
				return NewProviderError(c.id, "TIMEOUT", "request cancelled", 0, false, ctx.Err())
			}
			continue
		}
		if !retryableStatus(resp.StatusCode) {
			break
		}
		if attempt < c.config.MaxRetries {
			resp.Body.Close()
		}
	}

	if lastErr != nil {
		return NewProviderError(c.id, "HTTP_ERROR", "HTTP request failed", 0, true, lastErr)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return NewProviderError(c.id, "READ_ERROR", "failed to read response", resp.StatusCode, false, err)
	}

	if resp.StatusCode != http.StatusOK {
		return NewProviderError(c.id, "HTTP_STATUS",
			fmt.Sprintf("unexpected status %d", resp.StatusCode),
			resp.StatusCode, retryableStatus(resp.StatusCode), nil)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return NewProviderError(c.id, "UNMARSHAL_ERROR", "failed to decode response", resp.StatusCode, false, err)
	}

	return nil
}

// IsNotFound reports whether err is a provider 404
func IsNotFound(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.StatusCode == http.StatusNotFound
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
