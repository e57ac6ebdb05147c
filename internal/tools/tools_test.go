package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cosintapp/cosint/internal/brave"
	"github.com/cosintapp/cosint/internal/civic"
	"github.com/cosintapp/cosint/internal/congress"
)

func TestNewRegistryNilClients(t *testing.T) {
	cg := congress.NewClient("key", nil)

	r := NewRegistry(cg, nil, nil, nil)

	if r.Get("search_congress_member_by_name") == nil {
		t.Error("expected congress tools to be registered")
	}
	if r.Get("get_representatives_by_address") != nil {
		t.Error("civic tool registered without a civic client")
	}
	if r.Get("web_search") != nil {
		t.Error("web_search registered without a brave client")
	}
	if r.Get("get_campaign_finance") != nil {
		t.Error("finance tool registered without an fec client")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(nil, nil, nil, nil)

	_, err := r.Execute(context.Background(), "does_not_exist", "{}")
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !strings.Contains(err.Error(), "unknown tool") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExecuteInvalidArguments(t *testing.T) {
	r := NewRegistry(nil, nil, nil, nil)
	r.Register(&Tool{
		Name: "echo",
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			return fmt.Sprint(args["value"]), nil
		},
	})

	if _, err := r.Execute(context.Background(), "echo", "{not json"); err == nil {
		t.Fatal("expected error for malformed arguments")
	}

	got, err := r.Execute(context.Background(), "echo", `{"value":"hi"}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got != "hi" {
		t.Errorf("got %q, want %q", got, "hi")
	}
}

func TestListFunctionFormat(t *testing.T) {
	r := NewRegistry(nil, nil, nil, nil)
	r.Register(&Tool{
		Name:        "sample",
		Description: "a sample tool",
		Parameters:  map[string]any{"type": "object"},
	})

	list := r.List()
	if len(list) != 1 {
		t.Fatalf("got %d tools, want 1", len(list))
	}
	if list[0]["type"] != "function" {
		t.Errorf("type = %v, want function", list[0]["type"])
	}
	fn, ok := list[0]["function"].(map[string]any)
	if !ok {
		t.Fatal("function entry missing")
	}
	if fn["name"] != "sample" {
		t.Errorf("name = %v, want sample", fn["name"])
	}
}

func TestRepresentativesByAddress(t *testing.T) {
	civicSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/divisionsByAddress" {
			t.Errorf("unexpected civic path %s", req.URL.Path)
		}
		fmt.Fprint(w, `{"divisions": {
			"ocd-division/country:us/state:nj": {"name": "New Jersey"},
			"ocd-division/country:us/state:nj/cd:12": {"name": "New Jersey's 12th congressional district"}
		}}`)
	}))
	defer civicSrv.Close()

	congressSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/member/NJ" {
			t.Errorf("unexpected congress path %s", req.URL.Path)
		}
		fmt.Fprint(w, `{"members": [
			{"bioguideId": "W000822", "name": "Watson Coleman, Bonnie", "partyName": "Democratic", "state": "New Jersey", "district": 12},
			{"bioguideId": "K000394", "name": "Kim, Andy", "partyName": "Democratic", "state": "New Jersey"},
			{"bioguideId": "S001234", "name": "Other, Senator", "partyName": "Democratic", "state": "New Jersey"},
			{"bioguideId": "P000000", "name": "Someone, Else", "partyName": "Republican", "state": "New Jersey", "district": 4}
		]}`)
	}))
	defer congressSrv.Close()

	cv := civic.NewClient("key", nil)
	cv.SetBaseURL(civicSrv.URL)
	cg := congress.NewClient("key", nil)
	cg.SetBaseURL(congressSrv.URL)

	r := NewRegistry(cg, cv, nil, nil)
	got, err := r.Execute(context.Background(), "get_representatives_by_address", `{"address": "123 Main St, Trenton, NJ"}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	for _, want := range []string{
		"NJ Congressional District 12",
		"Representative: Watson Coleman, Bonnie",
		"Senator: Kim, Andy",
		"Senator: Other, Senator",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("result missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Someone, Else") {
		t.Errorf("result includes representative from another district:\n%s", got)
	}
}

func TestMemberRecentVotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/house-vote":
			fmt.Fprint(w, `{"houseRollCallVotes": [
				{"congress": 118, "sessionNumber": 2, "rollCallNumber": 17,
				 "legislationType": "HR", "legislationNumber": "1234",
				 "voteQuestion": "On Passage", "result": "Passed", "startDate": "2024-02-01"}
			]}`)
		case "/house-vote/118/2/17/members":
			fmt.Fprint(w, `{"houseRollCallVoteMemberVotes": {"results": [
				{"bioguideID": "W000822", "voteCast": "Yea"}
			]}}`)
		default:
			t.Errorf("unexpected path %s", req.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cg := congress.NewClient("key", nil)
	cg.SetBaseURL(srv.URL)
	r := NewRegistry(cg, nil, nil, nil)

	got, err := r.Execute(context.Background(), "get_member_recent_votes", `{"bioguide_id": "W000822"}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(got, `"vote":"Yea"`) {
		t.Errorf("result missing cast vote:\n%s", got)
	}
	if !strings.Contains(got, "HR 1234") {
		t.Errorf("result missing legislation label:\n%s", got)
	}

	got, err = r.Execute(context.Background(), "get_member_recent_votes", `{"bioguide_id": "X999999"}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(got, "Not Found/Did not vote") {
		t.Errorf("absent member should report a missing vote:\n%s", got)
	}
}

func TestWebSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if got := req.URL.Query().Get("q"); got != "farm bill news" {
			t.Errorf("q = %q", got)
		}
		fmt.Fprint(w, `{"web": {"results": [
			{"title": "Farm Bill Update", "url": "https://example.com/farm", "description": "Latest on the farm bill."}
		]}}`)
	}))
	defer srv.Close()

	br := brave.NewClient("key", nil)
	br.SetBaseURL(srv.URL)
	r := NewRegistry(nil, nil, br, nil)

	got, err := r.Execute(context.Background(), "web_search", `{"query": "farm bill news"}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(got, "Farm Bill Update") || !strings.Contains(got, "https://example.com/farm") {
		t.Errorf("unexpected search result:\n%s", got)
	}
}

func TestCurrentElectionCycle(t *testing.T) {
	tests := []struct {
		year int
		want int
	}{
		{2023, 2024},
		{2024, 2024},
		{2026, 2026},
	}
	for _, tt := range tests {
		now := time.Date(tt.year, time.June, 1, 0, 0, 0, 0, time.UTC)
		if got := currentElectionCycle(now); got != tt.want {
			t.Errorf("cycle for %d = %d, want %d", tt.year, got, tt.want)
		}
	}
}

func TestIntArg(t *testing.T) {
	args := map[string]any{"n": float64(118), "s": "hi"}

	if got, err := intArg(args, "n"); err != nil || got != 118 {
		t.Errorf("intArg(n) = %d, %v", got, err)
	}
	if _, err := intArg(args, "s"); err == nil {
		t.Error("expected error for non-numeric argument")
	}
	if _, err := intArg(args, "missing"); err == nil {
		t.Error("expected error for missing argument")
	}
}
