// Package congress provides a client for the Congress.gov v3 API.
package congress

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

const defaultBaseURL = "https://api.congress.gov/v3"

// Client is a Congress.gov REST API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Congress.gov client.
func NewClient(apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		logger:  logger.With("client", "congress"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(30 * time.Second),
		),
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// Member is a summary record from the member list endpoints.
type Member struct {
	BioguideID string `json:"bioguideId"`
	Name       string `json:"name"`
	PartyName  string `json:"partyName"`
	State      string `json:"state"`
	District   *int   `json:"district"`
	URL        string `json:"url"`
}

// RollCallVote is a House roll call vote summary.
type RollCallVote struct {
	Congress        int    `json:"congress"`
	SessionNumber   int    `json:"sessionNumber"`
	RollCallNumber  int    `json:"rollCallNumber"`
	LegislationType string `json:"legislationType"`
	LegislationNum  string `json:"legislationNumber"`
	LegislationURL  string `json:"legislationUrl"`
	VoteQuestion    string `json:"voteQuestion"`
	Result          string `json:"result"`
	StartDate       string `json:"startDate"`
}

// get issues a GET to endpoint with the API key and format params applied,
// decoding the JSON response into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

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
		c.logger.Warn("congress API error", "endpoint", endpoint, "status", resp.StatusCode, "body", body)
		return fmt.Errorf("congress API error %d for %s", resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// MemberQuery filters the member list endpoints.
type MemberQuery struct {
	State         string
	District      *int
	CurrentMember bool
	Limit         int
}

// Members fetches a list of members. State and district filters use
// path-based endpoints when provided.
func (c *Client) Members(ctx context.Context, q MemberQuery) ([]Member, error) {
	endpoint := "member"
	if q.State != "" && q.District != nil {
		endpoint = fmt.Sprintf("member/%s/%d", q.State, *q.District)
	} else if q.State != "" {
		endpoint = "member/" + q.State
	}

	params := url.Values{}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	params.Set("limit", fmt.Sprint(limit))
	if q.CurrentMember {
		params.Set("currentMember", "true")
	}

	var body struct {
		Members []Member `json:"members"`
	}
	if err := c.get(ctx, endpoint, params, &body); err != nil {
		return nil, err
	}
	return body.Members, nil
}

// SearchMemberByName finds a member whose name contains every
// whitespace-separated part of name, case-insensitively.
func (c *Client) SearchMemberByName(ctx context.Context, name string) (*Member, error) {
	members, err := c.Members(ctx, MemberQuery{CurrentMember: true, Limit: 250})
	if err != nil {
		return nil, err
	}

	parts := strings.Fields(strings.ToLower(name))
	for i := range members {
		candidate := strings.ToLower(members[i].Name)
		matched := true
		for _, p := range parts {
			if !strings.Contains(candidate, p) {
				matched = false
				break
			}
		}
		if matched {
			return &members[i], nil
		}
	}
	return nil, nil
}

// MemberDetails fetches the full record for a member by Bioguide ID.
func (c *Client) MemberDetails(ctx context.Context, bioguideID string) (map[string]any, error) {
	var body struct {
		Member map[string]any `json:"member"`
	}
	if err := c.get(ctx, "member/"+bioguideID, nil, &body); err != nil {
		return nil, err
	}
	return body.Member, nil
}

// MemberCommittees fetches committee assignments for a member.
func (c *Client) MemberCommittees(ctx context.Context, bioguideID string) ([]map[string]any, error) {
	var body struct {
		Committees []map[string]any `json:"committees"`
	}
	if err := c.get(ctx, "member/"+bioguideID+"/committees", nil, &body); err != nil {
		return nil, err
	}
	return body.Committees, nil
}

// SponsoredLegislation fetches legislation sponsored by a member.
func (c *Client) SponsoredLegislation(ctx context.Context, bioguideID string, limit int) ([]map[string]any, error) {
	params := url.Values{}
	if limit <= 0 {
		limit = 10
	}
	params.Set("limit", fmt.Sprint(limit))

	var body struct {
		SponsoredLegislation []map[string]any `json:"sponsoredLegislation"`
	}
	if err := c.get(ctx, "member/"+bioguideID+"/sponsored-legislation", params, &body); err != nil {
		return nil, err
	}
	return body.SponsoredLegislation, nil
}

// BillDetails fetches details for a specific bill.
func (c *Client) BillDetails(ctx context.Context, congress int, billType, billNumber string) (map[string]any, error) {
	var body struct {
		Bill map[string]any `json:"bill"`
	}
	endpoint := fmt.Sprintf("bill/%d/%s/%s", congress, strings.ToLower(billType), billNumber)
	if err := c.get(ctx, endpoint, nil, &body); err != nil {
		return nil, err
	}
	return body.Bill, nil
}

// BillText fetches the text versions for a specific bill.
func (c *Client) BillText(ctx context.Context, congress int, billType, billNumber string) ([]map[string]any, error) {
	var body struct {
		TextVersions []map[string]any `json:"textVersions"`
	}
	endpoint := fmt.Sprintf("bill/%d/%s/%s/text", congress, strings.ToLower(billType), billNumber)
	if err := c.get(ctx, endpoint, nil, &body); err != nil {
		return nil, err
	}
	return body.TextVersions, nil
}

// BillActions fetches actions taken on a specific bill.
func (c *Client) BillActions(ctx context.Context, congress int, billType, billNumber string, limit int) ([]map[string]any, error) {
	params := url.Values{}
	if limit <= 0 {
		limit = 100
	}
	params.Set("limit", fmt.Sprint(limit))

	var body struct {
		Actions []map[string]any `json:"actions"`
	}
	endpoint := fmt.Sprintf("bill/%d/%s/%s/actions", congress, strings.ToLower(billType), billNumber)
	if err := c.get(ctx, endpoint, params, &body); err != nil {
		return nil, err
	}
	return body.Actions, nil
}

// BillCosponsors fetches cosponsors for a specific bill.
func (c *Client) BillCosponsors(ctx context.Context, congress int, billType, billNumber string) ([]map[string]any, error) {
	var body struct {
		Cosponsors []map[string]any `json:"cosponsors"`
	}
	endpoint := fmt.Sprintf("bill/%d/%s/%s/cosponsors", congress, strings.ToLower(billType), billNumber)
	if err := c.get(ctx, endpoint, nil, &body); err != nil {
		return nil, err
	}
	return body.Cosponsors, nil
}

// RecentHouseVotes fetches the most recent House roll call votes.
func (c *Client) RecentHouseVotes(ctx context.Context, limit int) ([]RollCallVote, error) {
	params := url.Values{}
	if limit <= 0 {
		limit = 5
	}
	params.Set("limit", fmt.Sprint(limit))

	var body struct {
		HouseRollCallVotes []RollCallVote `json:"houseRollCallVotes"`
	}
	if err := c.get(ctx, "house-vote", params, &body); err != nil {
		return nil, err
	}
	return body.HouseRollCallVotes, nil
}

// MemberVoteOnRollCall finds how a specific member voted on a specific
// House roll call. Returns "" when the member is not in the results.
func (c *Client) MemberVoteOnRollCall(ctx context.Context, congress, session, rollCall int, bioguideID string) (string, error) {
	endpoint := fmt.Sprintf("house-vote/%d/%d/%d/members", congress, session, rollCall)

	var body struct {
		HouseRollCallVoteMemberVotes struct {
			Results []struct {
				BioguideID string `json:"bioguideID"`
				VoteCast   string `json:"voteCast"`
			} `json:"results"`
		} `json:"houseRollCallVoteMemberVotes"`
	}
	if err := c.get(ctx, endpoint, nil, &body); err != nil {
		return "", err
	}

	for _, mv := range body.HouseRollCallVoteMemberVotes.Results {
		if mv.BioguideID == bioguideID {
			return mv.VoteCast, nil
		}
	}
	return "", nil
}

// BillTextContent fetches the "Formatted Text" version of a bill and
// extracts readable plain text, truncated to maxLen runes. Returns ""
// when no formatted text is published yet.
func (c *Client) BillTextContent(ctx context.Context, congress int, billType, billNumber string, maxLen int) (string, error) {
	versions, err := c.BillText(ctx, congress, billType, billNumber)
	if err != nil {
		return "", err
	}

	var textURL string
	for _, v := range versions {
		formats, _ := v["formats"].([]any)
		for _, f := range formats {
			fm, _ := f.(map[string]any)
			if t, _ := fm["type"].(string); t == "Formatted Text" {
				textURL, _ = fm["url"].(string)
				break
			}
		}
		if textURL != "" {
			break
		}
	}
	if textURL == "" {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", textURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch bill text: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bill text fetch error %d", resp.StatusCode)
	}

	text, err := extractReadableText(resp.Body)
	if err != nil {
		return "", err
	}

	if maxLen > 0 {
		runes := []rune(text)
		if len(runes) > maxLen {
			text = string(runes[:maxLen])
		}
	}
	return text, nil
}
