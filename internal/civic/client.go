// Package civic provides a client for the Google Civic Information API,
// used to resolve a street address to its Congressional district.
package civic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cosintapp/cosint/internal/httpkit"
)

const defaultBaseURL = "https://www.googleapis.com/civicinfo/v2"

// Client is a Google Civic Information API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Civic Information client.
func NewClient(apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		logger:  logger.With("client", "civic"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(15 * time.Second),
		),
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// DivisionsByAddress queries OCD divisions for an address. The returned map
// is keyed by OCD division id (e.g. "ocd-division/country:us/state:nj/cd:12").
func (c *Client) DivisionsByAddress(ctx context.Context, address string) (map[string]any, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", c.apiKey)

	u := c.baseURL + "/divisionsByAddress?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 2048)
		c.logger.Warn("civic API error", "status", resp.StatusCode, "body", body)
		return nil, fmt.Errorf("civic API error %d", resp.StatusCode)
	}

	var body struct {
		Divisions map[string]any `json:"divisions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.Divisions, nil
}

// ExtractDistrictInfo scans OCD division ids for a Congressional district.
// Returns the upper-cased 2-letter state code and the district number.
// found is false when no cd: division is present; at-large states report
// district 0 when only a state division exists.
func ExtractDistrictInfo(divisions map[string]any) (state string, district int, found bool) {
	for id := range divisions {
		st, dist, ok := parseDivisionID(id)
		if !ok {
			continue
		}
		if dist >= 0 {
			return st, dist, true
		}
		// Remember the state in case only a state-level division exists.
		if state == "" {
			state = st
		}
	}
	if state != "" {
		return state, 0, true
	}
	return "", 0, false
}

// parseDivisionID picks state and congressional district out of an OCD id.
// District is -1 when the id carries no cd: segment.
func parseDivisionID(id string) (state string, district int, ok bool) {
	district = -1
	for _, seg := range strings.Split(id, "/") {
		switch {
		case strings.HasPrefix(seg, "state:"):
			state = strings.ToUpper(strings.TrimPrefix(seg, "state:"))
		case strings.HasPrefix(seg, "cd:"):
			n, err := strconv.Atoi(strings.TrimPrefix(seg, "cd:"))
			if err != nil {
				return "", 0, false
			}
			district = n
		}
	}
	if state == "" {
		return "", 0, false
	}
	return state, district, true
}
