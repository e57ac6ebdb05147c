package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cosintapp/cosint/internal/civic"
	"github.com/cosintapp/cosint/internal/congress"
)

func (r *Registry) registerCivicTools() {
	r.Register(&Tool{
		Name:        "get_representatives_by_address",
		Description: "Find the congressional district and current representatives for a specific street address",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"address": map[string]any{
					"type":        "string",
					"description": "The full street address (e.g., '123 Main St, Trenton, NJ')",
				},
			},
			"required": []string{"address"},
		},
		Handler: r.handleRepresentativesByAddress,
	})
}

func (r *Registry) handleRepresentativesByAddress(ctx context.Context, args map[string]any) (string, error) {
	address, err := stringArg(args, "address")
	if err != nil {
		return "", err
	}

	divisions, err := r.civic.DivisionsByAddress(ctx, address)
	if err != nil {
		return "", fmt.Errorf("looking up address: %w", err)
	}

	state, district, found := civic.ExtractDistrictInfo(divisions)
	if !found {
		return fmt.Sprintf("Could not determine a congressional district for address: %s", address), nil
	}

	members, err := r.congress.Members(ctx, congress.MemberQuery{
		State:         strings.ToUpper(state),
		CurrentMember: true,
		Limit:         100,
	})
	if err != nil {
		return "", fmt.Errorf("fetching members for district: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Address is in %s Congressional District %d.\n", strings.ToUpper(state), district)

	var rep *congress.Member
	var senators []congress.Member
	for i, m := range members {
		switch {
		case m.District == nil:
			senators = append(senators, m)
		case *m.District == district:
			rep = &members[i]
		}
	}

	if rep != nil {
		fmt.Fprintf(&b, "Representative: %s (%s) [Bioguide ID: %s]\n", rep.Name, rep.PartyName, rep.BioguideID)
	} else {
		b.WriteString("Representative: Not found in current data.\n")
	}
	for _, s := range senators {
		fmt.Fprintf(&b, "Senator: %s (%s) [Bioguide ID: %s]\n", s.Name, s.PartyName, s.BioguideID)
	}
	return b.String(), nil
}
