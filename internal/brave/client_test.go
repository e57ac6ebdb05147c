package brave

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Subscription-Token"); got != "bsk" {
			t.Errorf("token = %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "hr 1234 example act" {
			t.Errorf("q = %q", got)
		}
		fmt.Fprint(w, `{"web": {"results": [
			{"title": "Example Act — Congress.gov", "url": "https://congress.gov/x", "description": "A bill"},
			{"title": "News", "url": "https://example.com", "description": "Coverage"}
		]}}`)
	}))
	defer srv.Close()

	c := NewClient("bsk", nil)
	c.SetBaseURL(srv.URL)

	results, err := c.Search(context.Background(), "hr 1234 example act", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Title != "Example Act — Congress.gov" {
		t.Errorf("title = %q", results[0].Title)
	}
}

func TestFormatResults(t *testing.T) {
	got := FormatResults([]Result{
		{Title: "A", URL: "https://a", Description: "first"},
		{Title: "B", URL: "https://b", Description: "second"},
	})

	if !strings.Contains(got, "1. A") || !strings.Contains(got, "2. B") {
		t.Errorf("formatted = %q", got)
	}
	if !strings.Contains(got, "https://a") {
		t.Errorf("missing url in %q", got)
	}
}

func TestFormatResultsEmpty(t *testing.T) {
	if got := FormatResults(nil); got != "No web results found." {
		t.Errorf("got %q", got)
	}
}

func TestSearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("bsk", nil)
	c.SetBaseURL(srv.URL)

	if _, err := c.Search(context.Background(), "x", 5); err == nil {
		t.Fatal("expected error for 429")
	}
}
