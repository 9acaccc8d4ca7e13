package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quotesync/quote-sync-service/internal/config"
	"github.com/quotesync/quote-sync-service/internal/models"
)

// HTTPClient talks to the quote service over its HTTP API. Fetch and info
// calls use a bounded-timeout client; the event stream uses a separate
// client with no global timeout since it stays open indefinitely.
type HTTPClient struct {
	baseURL      *url.URL
	apiKey       string
	retryCount   int
	httpClient   *http.Client
	streamClient *http.Client
	logger       *slog.Logger
}

// NewHTTPClient validates the base endpoint eagerly and returns a client.
// A malformed base URL is a configuration error and fails construction.
func NewHTTPClient(cfg config.SourceConfig, logger *slog.Logger) (*HTTPClient, error) {
	base, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: expected http(s)://host", cfg.BaseURL)
	}

	retryCount := cfg.RetryCount
	if retryCount < 1 {
		retryCount = 1
	}

	return &HTTPClient{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		retryCount: retryCount,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		streamClient: &http.Client{},
		logger:       logger,
	}, nil
}

// FetchSince fetches paid quotes newer than since, retrying transient
// failures with a linear backoff before giving up.
func (c *HTTPClient) FetchSince(ctx context.Context, since int64) ([]models.RawRecord, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryCount; attempt++ {
		recs, err := c.fetchOnce(ctx, since)
		if err == nil {
			return recs, nil
		}

		lastErr = err
		if attempt < c.retryCount-1 {
			waitTime := time.Duration(attempt+1) * time.Second
			c.logger.Warn("fetch attempt failed, retrying",
				"attempt", attempt+1, "wait", waitTime, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", c.retryCount, lastErr)
}

// fetchOnce performs a single fetch attempt.
func (c *HTTPClient) fetchOnce(ctx context.Context, since int64) ([]models.RawRecord, error) {
	endpoint := c.endpoint("/v1/quotes")
	query := endpoint.Query()
	query.Set("status", "paid")
	query.Set("since", strconv.FormatInt(since, 10))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var recs []models.RawRecord
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return recs, nil
}

// Subscribe opens the NDJSON event stream. The reader goroutine calls
// onMessage per event line and onError exactly once if the stream dies for
// any reason other than the unsubscribe function being called.
func (c *HTTPClient) Subscribe(ctx context.Context, onMessage func([]byte), onError func(error)) (UnsubscribeFunc, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	endpoint := c.endpoint("/v1/events")
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	c.authorize(req)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("event stream returned status %d", resp.StatusCode)
	}

	go func() {
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue // keepalive
			}
			event := make([]byte, len(line))
			copy(event, line)
			onMessage(event)
		}

		if streamCtx.Err() != nil {
			return // unsubscribed, not an error
		}
		if err := scanner.Err(); err != nil {
			onError(fmt.Errorf("event stream read failed: %w", err))
			return
		}
		onError(fmt.Errorf("event stream closed by server"))
	}()

	return func() error {
		cancel()
		return nil
	}, nil
}

// Info fetches the service's capability metadata.
func (c *HTTPClient) Info(ctx context.Context) (*ServerInfo, error) {
	endpoint := c.endpoint("/v1/info")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote service returned status %d", resp.StatusCode)
	}

	var info ServerInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal info: %w", err)
	}
	return &info, nil
}

func (c *HTTPClient) endpoint(path string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return &u
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
