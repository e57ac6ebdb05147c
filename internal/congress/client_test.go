package congress

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
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

func TestMembersStateDistrictEndpoint(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.URL.Query().Get("api_key") != "demo-key" {
			t.Errorf("api_key = %q", r.URL.Query().Get("api_key"))
		}
		fmt.Fprint(w, `{"members": [{"bioguideId": "S001234", "name": "Smith, Jane", "partyName": "Independent", "state": "NJ"}]}`)
	})

	d := 12
	members, err := c.Members(context.Background(), MemberQuery{State: "NJ", District: &d, CurrentMember: true})
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if gotPath != "/member/NJ/12" {
		t.Errorf("path = %q, want /member/NJ/12", gotPath)
	}
	if len(members) != 1 || members[0].BioguideID != "S001234" {
		t.Errorf("members = %+v", members)
	}
}

func TestSearchMemberByName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"members": [
			{"bioguideId": "A000001", "name": "Adams, Alma"},
			{"bioguideId": "B001288", "name": "Booker, Cory A."}
		]}`)
	})

	m, err := c.SearchMemberByName(context.Background(), "cory booker")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if m == nil || m.BioguideID != "B001288" {
		t.Errorf("member = %+v", m)
	}

	m, err = c.SearchMemberByName(context.Background(), "nobody here")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil for no match, got %+v", m)
	}
}

func TestMemberVoteOnRollCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/house-vote/118/1/42/members") {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"houseRollCallVoteMemberVotes": {"results": [
			{"bioguideID": "A000001", "voteCast": "Nay"},
			{"bioguideID": "B001288", "voteCast": "Yea"}
		]}}`)
	})

	vote, err := c.MemberVoteOnRollCall(context.Background(), 118, 1, 42, "B001288")
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if vote != "Yea" {
		t.Errorf("vote = %q, want Yea", vote)
	}

	vote, err = c.MemberVoteOnRollCall(context.Background(), 118, 1, 42, "Z999999")
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	if vote != "" {
		t.Errorf("vote = %q, want empty for absent member", vote)
	}
}

func TestBillDetailsLowercasesType(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"bill": {"title": "Example Act"}}`)
	})

	bill, err := c.BillDetails(context.Background(), 118, "HR", "1234")
	if err != nil {
		t.Fatalf("bill details: %v", err)
	}
	if gotPath != "/bill/118/hr/1234" {
		t.Errorf("path = %q", gotPath)
	}
	if bill["title"] != "Example Act" {
		t.Errorf("bill = %v", bill)
	}
}

func TestAPIErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "exceeded rate limit", http.StatusTooManyRequests)
	})

	_, err := c.MemberDetails(context.Background(), "B001288")
	if err == nil {
		t.Fatal("expected error for 429")
	}
}

func TestBillTextContent(t *testing.T) {
	var srvURL string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/text"):
			fmt.Fprintf(w, `{"textVersions": [{"formats": [
				{"type": "PDF", "url": "%s/bill.pdf"},
				{"type": "Formatted Text", "url": "%s/bill.htm"}
			]}]}`, srvURL, srvURL)
		case strings.HasSuffix(r.URL.Path, "/bill.htm"):
			fmt.Fprint(w, `<html><head><title>x</title><script>junk()</script></head>
				<body><h1>An Act</h1><p>To require   things.</p></body></html>`)
		default:
			http.NotFound(w, r)
		}
	})
	srvURL = c.baseURL

	text, err := c.BillTextContent(context.Background(), 118, "hr", "1", 0)
	if err != nil {
		t.Fatalf("bill text: %v", err)
	}
	if !strings.Contains(text, "An Act") || !strings.Contains(text, "To require things.") {
		t.Errorf("text = %q", text)
	}
	if strings.Contains(text, "junk") {
		t.Errorf("script content leaked into text: %q", text)
	}
}

func TestBillTextContentTruncates(t *testing.T) {
	var srvURL string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/text"):
			fmt.Fprintf(w, `{"textVersions": [{"formats": [{"type": "Formatted Text", "url": "%s/bill.htm"}]}]}`, srvURL)
		default:
			fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", strings.Repeat("word ", 100))
		}
	})
	srvURL = c.baseURL

	text, err := c.BillTextContent(context.Background(), 118, "hr", "1", 50)
	if err != nil {
		t.Fatalf("bill text: %v", err)
	}
	if len([]rune(text)) > 50 {
		t.Errorf("text length = %d, want <= 50", len([]rune(text)))
	}
}

func TestBillTextContentNoFormattedText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"textVersions": []}`)
	})

	text, err := c.BillTextContent(context.Background(), 118, "hr", "1", 0)
	if err != nil {
		t.Fatalf("bill text: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}
