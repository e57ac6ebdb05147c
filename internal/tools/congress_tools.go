package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cosintapp/cosint/internal/congress"
)

func (r *Registry) registerCongressTools() {
	r.Register(&Tool{
		Name:        "search_congress_member_by_name",
		Description: "Search for a Congress member by name to get their Bioguide ID and basic info",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "The name of the Congress member to search for",
				},
			},
			"required": []string{"name"},
		},
		Handler: r.handleMemberSearch,
	})

	r.Register(&Tool{
		Name:        "search_congress_members_by_state",
		Description: "Get a list of Congress members representing a specific state using its 2-letter code",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"state_code": map[string]any{
					"type":        "string",
					"description": "The 2-letter state code (e.g., 'NJ', 'NY', 'CA')",
				},
			},
			"required": []string{"state_code"},
		},
		Handler: r.handleMemberStateSearch,
	})

	r.Register(&Tool{
		Name:        "get_congress_member_details",
		Description: "Get detailed information about a Congress member using their Bioguide ID",
		Parameters:  bioguideParams(),
		Handler:     r.handleMemberDetails,
	})

	r.Register(&Tool{
		Name:        "get_member_sponsored_legislation",
		Description: "Get a list of legislation sponsored by a Congress member using their Bioguide ID",
		Parameters:  bioguideParams(),
		Handler:     r.handleMemberLegislation,
	})

	r.Register(&Tool{
		Name:        "get_member_committees",
		Description: "Get the committee assignments for a Congress member using their Bioguide ID",
		Parameters:  bioguideParams(),
		Handler:     r.handleMemberCommittees,
	})

	r.Register(&Tool{
		Name:        "get_member_recent_votes",
		Description: "Get the most recent House roll call votes for a representative using their Bioguide ID",
		Parameters:  bioguideParams(),
		Handler:     r.handleMemberVotes,
	})

	r.Register(&Tool{
		Name:        "summarize_congressional_bill",
		Description: "Fetch the text of a specific bill and provide a summary. Useful for complex legislation.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"congress": map[string]any{
					"type":        "integer",
					"description": "The Congress number (e.g., 118)",
				},
				"bill_type": map[string]any{
					"type":        "string",
					"description": "The type of bill (e.g., 'hr', 's', 'hres')",
				},
				"bill_number": map[string]any{
					"type":        "string",
					"description": "The bill number (e.g., '1')",
				},
			},
			"required": []string{"congress", "bill_type", "bill_number"},
		},
		Handler: r.handleSummarizeBill,
	})
}

func bioguideParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"bioguide_id": map[string]any{
				"type":        "string",
				"description": "The Bioguide ID of the Congress member",
			},
		},
		"required": []string{"bioguide_id"},
	}
}

func (r *Registry) handleMemberSearch(ctx context.Context, args map[string]any) (string, error) {
	name, err := stringArg(args, "name")
	if err != nil {
		return "", err
	}

	member, err := r.congress.SearchMemberByName(ctx, name)
	if err != nil {
		return "", err
	}
	if member == nil {
		return fmt.Sprintf("No member found with name: %s", name), nil
	}
	return marshalResult(member)
}

func (r *Registry) handleMemberStateSearch(ctx context.Context, args map[string]any) (string, error) {
	state, err := stringArg(args, "state_code")
	if err != nil {
		return "", err
	}

	members, err := r.congress.Members(ctx, congress.MemberQuery{
		State:         strings.ToUpper(state),
		CurrentMember: true,
		Limit:         100,
	})
	if err != nil {
		return "", err
	}
	if len(members) == 0 {
		return fmt.Sprintf("No members found for state: %s", state), nil
	}

	// Return a concise list to avoid overwhelming the model.
	type entry struct {
		Name       string `json:"name"`
		BioguideID string `json:"bioguideId"`
		Party      string `json:"party"`
	}
	concise := make([]entry, 0, len(members))
	for _, m := range members {
		concise = append(concise, entry{Name: m.Name, BioguideID: m.BioguideID, Party: m.PartyName})
	}
	return marshalResult(concise)
}

func (r *Registry) handleMemberDetails(ctx context.Context, args map[string]any) (string, error) {
	bioguideID, err := stringArg(args, "bioguide_id")
	if err != nil {
		return "", err
	}

	details, err := r.congress.MemberDetails(ctx, bioguideID)
	if err != nil {
		return "", err
	}
	if len(details) == 0 {
		return fmt.Sprintf("No details found for Bioguide ID: %s", bioguideID), nil
	}
	return marshalResult(details)
}

func (r *Registry) handleMemberLegislation(ctx context.Context, args map[string]any) (string, error) {
	bioguideID, err := stringArg(args, "bioguide_id")
	if err != nil {
		return "", err
	}

	legislation, err := r.congress.SponsoredLegislation(ctx, bioguideID, 5)
	if err != nil {
		return "", err
	}
	if len(legislation) == 0 {
		return fmt.Sprintf("No sponsored legislation found for Bioguide ID: %s", bioguideID), nil
	}
	return marshalResult(legislation)
}

func (r *Registry) handleMemberCommittees(ctx context.Context, args map[string]any) (string, error) {
	bioguideID, err := stringArg(args, "bioguide_id")
	if err != nil {
		return "", err
	}

	committees, err := r.congress.MemberCommittees(ctx, bioguideID)
	if err != nil {
		return "", fmt.Errorf("fetching committees: %w", err)
	}
	if len(committees) == 0 {
		return fmt.Sprintf("No committee assignments found for Bioguide ID: %s", bioguideID), nil
	}
	return marshalResult(committees)
}

func (r *Registry) handleMemberVotes(ctx context.Context, args map[string]any) (string, error) {
	bioguideID, err := stringArg(args, "bioguide_id")
	if err != nil {
		return "", err
	}

	recent, err := r.congress.RecentHouseVotes(ctx, 5)
	if err != nil {
		return "", fmt.Errorf("fetching voting records: %w", err)
	}
	if len(recent) == 0 {
		return "No recent House roll call votes found.", nil
	}

	type voteResult struct {
		Legislation string `json:"legislation"`
		Question    string `json:"question"`
		Vote        string `json:"vote"`
		Result      string `json:"result"`
		Date        string `json:"date"`
	}

	results := make([]voteResult, 0, len(recent))
	for _, v := range recent {
		cast, err := r.congress.MemberVoteOnRollCall(ctx, v.Congress, v.SessionNumber, v.RollCallNumber, bioguideID)
		if err != nil {
			return "", fmt.Errorf("fetching voting records: %w", err)
		}
		if cast == "" {
			cast = "Not Found/Did not vote"
		}
		leg := strings.TrimSpace(v.LegislationType + " " + v.LegislationNum)
		if leg == "" {
			leg = "N/A"
		}
		results = append(results, voteResult{
			Legislation: leg,
			Question:    v.VoteQuestion,
			Vote:        cast,
			Result:      v.Result,
			Date:        v.StartDate,
		})
	}
	return marshalResult(results)
}

func (r *Registry) handleSummarizeBill(ctx context.Context, args map[string]any) (string, error) {
	congressNum, err := intArg(args, "congress")
	if err != nil {
		return "", err
	}
	billType, err := stringArg(args, "bill_type")
	if err != nil {
		return "", err
	}
	billNumber, err := stringArg(args, "bill_number")
	if err != nil {
		return "", err
	}

	details, err := r.congress.BillDetails(ctx, congressNum, billType, billNumber)
	if err != nil {
		return "", fmt.Errorf("fetching bill summary: %w", err)
	}
	title, _ := details["title"].(string)
	if title == "" {
		title = "Unknown Bill"
	}

	versions, err := r.congress.BillText(ctx, congressNum, billType, billNumber)
	if err != nil {
		return "", fmt.Errorf("fetching bill summary: %w", err)
	}
	if len(versions) == 0 {
		return fmt.Sprintf("Summary for %s %s: %s\n\nNote: Official text is not yet available for this bill in the API.",
			strings.ToUpper(billType), billNumber, title), nil
	}

	latestAction := ""
	if la, ok := details["latestAction"].(map[string]any); ok {
		latestAction, _ = la["text"].(string)
	}
	return fmt.Sprintf("Bill Title: %s\nLatest Action: %s\nText versions found: %d", title, latestAction, len(versions)), nil
}
