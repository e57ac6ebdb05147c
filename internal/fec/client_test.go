package fec

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("demo-key", nil)
	c.SetBaseURL(srv.URL)
	return c
}

func TestCandidateByBioguidePrefersExactMatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/candidates/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"results": [
			{"candidate_id": "H0NJ01", "name": "Other, Person", "bioguide_id": "X000001", "active_through": 2026},
			{"candidate_id": "S4NJ02", "name": "Booker, Cory", "bioguide_id": "B001288", "active_through": 2026}
		]}`)
	})

	cand, err := c.CandidateByBioguide(context.Background(), "B001288", "Cory Booker", "NJ")
	if err != nil {
		t.Fatalf("candidate: %v", err)
	}
	if cand == nil || cand.CandidateID != "S4NJ02" {
		t.Errorf("candidate = %+v", cand)
	}
}

func TestCandidateByBioguideNoResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": []}`)
	})

	cand, err := c.CandidateByBioguide(context.Background(), "Z999999", "", "")
	if err != nil {
		t.Fatalf("candidate: %v", err)
	}
	if cand != nil {
		t.Errorf("expected nil, got %+v", cand)
	}
}

func TestCandidateTotals(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/candidate/S4NJ02/totals/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("cycle") != "2024" {
			t.Errorf("cycle = %q", r.URL.Query().Get("cycle"))
		}
		fmt.Fprint(w, `{"results": [{"receipts": 1234567.89, "disbursements": 1000000.0}]}`)
	})

	totals, err := c.CandidateTotals(context.Background(), "S4NJ02", 2024)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals["receipts"] != 1234567.89 {
		t.Errorf("totals = %v", totals)
	}
}

func TestTopContributingCommittees(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [{"name": "Example PAC"}, {"name": "Another PAC"}]}`)
	})

	committees, err := c.TopContributingCommittees(context.Background(), "S4NJ02", 2024)
	if err != nil {
		t.Fatalf("committees: %v", err)
	}
	if len(committees) != 2 {
		t.Errorf("committees = %d, want 2", len(committees))
	}
}
