package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultASFBaseURL is the production ASF Search API endpoint.
const DefaultASFBaseURL = "https://api.daac.asf.alaska.edu"

// ASFClient queries the ASF Search param API for burst products.
type ASFClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewASFClient creates an ASF Search API client.
func NewASFClient(baseURL string, timeout time.Duration) *ASFClient {
	if baseURL == "" {
		baseURL = DefaultASFBaseURL
	}
	return &ASFClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the client.
func (c *ASFClient) WithLogger(logger *slog.Logger) *ASFClient {
	c.logger = logger
	return c
}

// Name identifies the backend in logs and errors.
func (c *ASFClient) Name() string { return "asf" }

// Search performs a burst search against the ASF API.
func (c *ASFClient) Search(ctx context.Context, params Params) ([]*Result, error) {
	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build search URL: %w", err)
	}

	c.logger.DebugContext(ctx, "executing ASF burst search",
		slog.String("url", searchURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "burst2safe/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "ASF API request failed",
			slog.String("error", err.Error()),
			slog.String("url", searchURL),
		)
		return nil, fmt.Errorf("ASF API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.ErrorContext(ctx, "ASF API returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		return nil, fmt.Errorf("ASF API returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded asfResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode ASF response: %w", err)
	}

	results := make([]*Result, 0, len(decoded.Features))
	for i := range decoded.Features {
		result, err := decoded.Features[i].toResult()
		if err != nil {
			return nil, fmt.Errorf("ASF feature %d: %w", i, err)
		}
		results = append(results, result)
	}

	c.logger.DebugContext(ctx, "ASF burst search completed",
		slog.Int("result_count", len(results)),
	)
	return results, nil
}

func (c *ASFClient) buildSearchURL(params Params) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	base.Path = "/services/search/param"
	base.RawQuery = params.ToQueryString()
	return base.String(), nil
}
