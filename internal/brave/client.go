// Package brave provides a client for the Brave Search API.
package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cosintapp/cosint/internal/httpkit"
)

const defaultBaseURL = "https://api.search.brave.com/res/v1"

// Client is a Brave Search API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Brave Search client.
func NewClient(apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		logger:  logger.With("client", "brave"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(15 * time.Second),
		),
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// Result is a single web search hit.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Search queries the web and returns up to count results.
func (c *Client) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if count <= 0 {
		count = 5
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprint(count))

	u := c.baseURL + "/web/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 2048)
		c.logger.Warn("brave API error", "status", resp.StatusCode, "body", body)
		return nil, fmt.Errorf("brave API error %d", resp.StatusCode)
	}

	var body struct {
		Web struct {
			Results []Result `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.Web.Results, nil
}

// FormatResults renders search results as readable text for the model,
// one numbered entry per hit with its link.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No web results found."
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
