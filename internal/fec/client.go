// Package fec provides a client for the Federal Election Commission API,
// used to answer campaign-finance questions about candidates.
package fec

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

const defaultBaseURL = "https://api.open.fec.gov/v1"

// Client is an FEC REST API client. The api.data.gov key used for
// Congress.gov authenticates here as well.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new FEC client.
func NewClient(apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		logger:  logger.With("client", "fec"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(20 * time.Second),
		),
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// Candidate is a summary FEC candidate record.
type Candidate struct {
	CandidateID   string `json:"candidate_id"`
	Name          string `json:"name"`
	Party         string `json:"party_full"`
	State         string `json:"state"`
	Office        string `json:"office_full"`
	BioguideID    string `json:"bioguide_id"`
	ActiveThrough int    `json:"active_through"`
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	u := fmt.Sprintf("%s/%s?%s", c.baseURL, strings.TrimLeft(endpoint, "/"), params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 2048)
		c.logger.Warn("fec API error", "endpoint", endpoint, "status", resp.StatusCode, "body", body)
		return fmt.Errorf("fec API error %d for %s", resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CandidateByBioguide finds a candidate record. With a name or state the
// general candidates search is used (the bioguide_id filter is unreliable
// upstream); a bioguide match in the results wins, then an active candidate,
// then the first hit.
func (c *Client) CandidateByBioguide(ctx context.Context, bioguideID, name, state string) (*Candidate, error) {
	params := url.Values{}
	endpoint := "candidates/search/"
	if name != "" || state != "" {
		endpoint = "candidates/"
		if name != "" {
			params.Set("q", name)
		}
		if state != "" {
			params.Set("state", state)
		}
	} else {
		params.Set("bioguide_id", bioguideID)
	}

	var body struct {
		Results []Candidate `json:"results"`
	}
	if err := c.get(ctx, endpoint, params, &body); err != nil {
		return nil, err
	}
	if len(body.Results) == 0 {
		return nil, nil
	}

	if name != "" {
		for i := range body.Results {
			if body.Results[i].BioguideID == bioguideID {
				return &body.Results[i], nil
			}
		}
		for i := range body.Results {
			if body.Results[i].ActiveThrough >= time.Now().Year()-1 {
				return &body.Results[i], nil
			}
		}
	}
	return &body.Results[0], nil
}

// CandidateTotals returns financial totals for a candidate in a cycle.
func (c *Client) CandidateTotals(ctx context.Context, candidateID string, cycle int) (map[string]any, error) {
	params := url.Values{}
	params.Set("cycle", fmt.Sprint(cycle))

	var body struct {
		Results []map[string]any `json:"results"`
	}
	if err := c.get(ctx, fmt.Sprintf("candidate/%s/totals/", candidateID), params, &body); err != nil {
		return nil, err
	}
	if len(body.Results) == 0 {
		return nil, nil
	}
	return body.Results[0], nil
}

// TopContributingCommittees returns committees that contributed to the
// candidate in a cycle. The FEC has no per-organization contributor
// rollup, so committee contributions are the closest available signal.
func (c *Client) TopContributingCommittees(ctx context.Context, candidateID string, cycle int) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("cycle", fmt.Sprint(cycle))

	var body struct {
		Results []map[string]any `json:"results"`
	}
	if err := c.get(ctx, fmt.Sprintf("candidate/%s/committees/", candidateID), params, &body); err != nil {
		return nil, err
	}
	return body.Results, nil
}
