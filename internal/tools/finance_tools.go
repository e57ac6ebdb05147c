package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (r *Registry) registerFinanceTools() {
	r.Register(&Tool{
		Name:        "get_campaign_finance",
		Description: "Get campaign finance totals and top contributing committees for a Congress member",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"bioguide_id": map[string]any{
					"type":        "string",
					"description": "The Bioguide ID of the Congress member",
				},
				"name": map[string]any{
					"type":        "string",
					"description": "The member's name, used to narrow the candidate search",
				},
				"state": map[string]any{
					"type":        "string",
					"description": "The member's 2-letter state code, used to narrow the candidate search",
				},
			},
			"required": []string{"bioguide_id"},
		},
		Handler: r.handleCampaignFinance,
	})
}

func (r *Registry) handleCampaignFinance(ctx context.Context, args map[string]any) (string, error) {
	bioguideID, err := stringArg(args, "bioguide_id")
	if err != nil {
		return "", err
	}
	name, _ := args["name"].(string)
	state, _ := args["state"].(string)

	candidate, err := r.fec.CandidateByBioguide(ctx, bioguideID, name, state)
	if err != nil {
		return "", fmt.Errorf("fetching campaign finance: %w", err)
	}
	if candidate == nil {
		return fmt.Sprintf("No FEC candidate record found for Bioguide ID: %s", bioguideID), nil
	}

	cycle := currentElectionCycle(time.Now())

	var b strings.Builder
	fmt.Fprintf(&b, "Candidate: %s (%s), %s\n", candidate.Name, candidate.Party, candidate.Office)
	fmt.Fprintf(&b, "FEC Candidate ID: %s\n", candidate.CandidateID)

	totals, err := r.fec.CandidateTotals(ctx, candidate.CandidateID, cycle)
	if err != nil {
		return "", fmt.Errorf("fetching campaign finance: %w", err)
	}
	if totals == nil {
		fmt.Fprintf(&b, "No financial totals reported for the %d cycle.\n", cycle)
	} else {
		fmt.Fprintf(&b, "Totals for the %d cycle:\n", cycle)
		for _, field := range []struct{ key, label string }{
			{"receipts", "Total receipts"},
			{"disbursements", "Total disbursements"},
			{"cash_on_hand_end_period", "Cash on hand"},
			{"individual_contributions", "Individual contributions"},
		} {
			if v, ok := totals[field.key].(float64); ok {
				fmt.Fprintf(&b, "  %s: $%.2f\n", field.label, v)
			}
		}
	}

	committees, err := r.fec.TopContributingCommittees(ctx, candidate.CandidateID, cycle)
	if err != nil {
		return "", fmt.Errorf("fetching campaign finance: %w", err)
	}
	if len(committees) > 0 {
		b.WriteString("Top contributing committees:\n")
		for _, cm := range committees {
			cname, _ := cm["committee_name"].(string)
			total, _ := cm["total"].(float64)
			fmt.Fprintf(&b, "  %s: $%.2f\n", cname, total)
		}
	}
	return b.String(), nil
}

// currentElectionCycle returns the even year the given time falls in. FEC
// reporting cycles end on even years.
func currentElectionCycle(now time.Time) int {
	year := now.Year()
	if year%2 != 0 {
		year++
	}
	return year
}
