// Package crawl4ai provides a client for the Crawl4AI discovery service,
// which handles prompt parsing, multi-source company search, website
// crawling, and ICP fit scoring.
package crawl4ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Crawl4AI service operations.
type Client interface {
	// Health reports whether the service is reachable and ready.
	Health(ctx context.Context) bool
	// ParsePrompt converts a free-text prompt into structured ICP criteria.
	ParsePrompt(ctx context.Context, prompt string) (*ParsePromptResponse, error)
	// Search finds companies matching the criteria across the given sources.
	Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error)
	// CrawlWebsite deep-crawls a company website for enrichment data.
	CrawlWebsite(ctx context.Context, url string, opts CrawlOptions) (*CrawlResponse, error)
	// ScoreLeads scores a batch of leads against ICP criteria.
	ScoreLeads(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error)
}

// Option configures the Crawl4AI client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithCrawlRate overrides the outbound crawl throttle.
func WithCrawlRate(limit rate.Limit, burst int) Option {
	return func(c *httpClient) {
		c.crawlLimiter = rate.NewLimiter(limit, burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client

	// crawlLimiter throttles CrawlWebsite calls; crawling is the most
	// expensive operation on the provider side.
	crawlLimiter *rate.Limiter
}

// NewClient creates a new Crawl4AI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "http://localhost:8001",
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		crawlLimiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// postJSON executes a POST with exponential backoff retries on transient
// failures (429, 500, 502, 503). Returns the response body on success.
func (c *httpClient) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "crawl4ai: marshal request")
	}

	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
		if reqErr != nil {
			return nil, eris.Wrap(reqErr, "crawl4ai: create request")
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			lastErr = doErr
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, eris.Wrapf(lastErr, "crawl4ai: request %s failed", path)
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, eris.Wrap(readErr, "crawl4ai: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("crawl4ai: %s status %d: %s", path, resp.StatusCode, string(body))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("crawl4ai: %s unexpected status %d: %s", path, resp.StatusCode, string(body))
		}

		return body, nil
	}

	return nil, eris.Wrapf(lastErr, "crawl4ai: %s exhausted retries", path)
}

func (c *httpClient) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *httpClient) ParsePrompt(ctx context.Context, prompt string) (*ParsePromptResponse, error) {
	body, err := c.postJSON(ctx, "/discovery/parse-prompt", map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}

	var result ParsePromptResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "crawl4ai: unmarshal parse-prompt response")
	}
	return &result, nil
}

func (c *httpClient) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	body, err := c.postJSON(ctx, "/discovery/search", req)
	if err != nil {
		return nil, err
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "crawl4ai: unmarshal search response")
	}
	return &result, nil
}

func (c *httpClient) CrawlWebsite(ctx context.Context, url string, opts CrawlOptions) (*CrawlResponse, error) {
	if err := c.crawlLimiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "crawl4ai: crawl throttle")
	}

	payload := crawlRequest{
		URL:             url,
		ExtractContacts: opts.ExtractContacts,
		MaxPages:        opts.MaxPages,
	}
	body, err := c.postJSON(ctx, "/discovery/crawl", payload)
	if err != nil {
		return nil, err
	}

	var result CrawlResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "crawl4ai: unmarshal crawl response")
	}
	return &result, nil
}

func (c *httpClient) ScoreLeads(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error) {
	body, err := c.postJSON(ctx, "/discovery/score", req)
	if err != nil {
		return nil, err
	}

	var result ScoreResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "crawl4ai: unmarshal score response")
	}
	return &result, nil
}
