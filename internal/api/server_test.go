package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/cosintapp/cosint/internal/agent"
	"github.com/cosintapp/cosint/internal/intel"
	"github.com/cosintapp/cosint/internal/llm"
	"github.com/cosintapp/cosint/internal/store"
	"github.com/cosintapp/cosint/internal/tools"
)

// staticVerifier maps tokens to user IDs without any cryptography.
type staticVerifier map[string]string

func (v staticVerifier) Verify(_ context.Context, token string) (string, error) {
	if user, ok := v[token]; ok {
		return user, nil
	}
	return "", fmt.Errorf("unknown token")
}

// fakeLLM services both the agent loop (ChatStream) and the extraction
// pass (ChatStructured). When the scripted responses run out and
// streamErr is set, the next call emits streamErrTokens and then fails,
// simulating a provider dying mid-stream.
type fakeLLM struct {
	streamResponses []*llm.ChatResponse
	streamErr       error
	streamErrTokens string
	structured      string
	structuredErr   error
}

func (f *fakeLLM) Chat(ctx context.Context, model string, messages []llm.Message, toolDefs []map[string]any) (*llm.ChatResponse, error) {
	return f.ChatStream(ctx, model, messages, toolDefs, nil)
}

func (f *fakeLLM) ChatStream(ctx context.Context, model string, messages []llm.Message, toolDefs []map[string]any, callback llm.StreamCallback) (*llm.ChatResponse, error) {
	if len(f.streamResponses) == 0 {
		if f.streamErr != nil {
			if callback != nil && f.streamErrTokens != "" {
				callback(llm.StreamEvent{Kind: llm.KindToken, Token: f.streamErrTokens})
			}
			return nil, f.streamErr
		}
		return nil, fmt.Errorf("no scripted response left")
	}
	resp := f.streamResponses[0]
	f.streamResponses = f.streamResponses[1:]
	if callback != nil && resp.Message.Content != "" {
		callback(llm.StreamEvent{Kind: llm.KindToken, Token: resp.Message.Content})
	}
	return resp, nil
}

func (f *fakeLLM) ChatStructured(ctx context.Context, model string, messages []llm.Message, schemaName string, schema map[string]any) (string, error) {
	return f.structured, f.structuredErr
}

func (f *fakeLLM) Ping(ctx context.Context) error { return nil }

func assistantText(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message: llm.Message{Role: "assistant", Content: content},
		Done:    true,
	}
}

func newTestServer(t *testing.T, client *fakeLLM) (*Server, *store.Store) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st, err := store.NewStoreWithDB(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	reg := tools.NewRegistry(nil, nil, nil, nil)
	exec := agent.NewExecutor(nil, client, reg, "gpt-4o-mini", 5)
	ext := intel.NewExtractor(nil, client, "gpt-4o-mini")

	srv := NewServer(nil, Options{
		Verifier:  staticVerifier{"tok-alice": "alice", "tok-bob": "bob"},
		Store:     st,
		Executor:  exec,
		Extractor: ext,
		LLM:       client,
		Model:     "gpt-4o-mini",
		Retention: 10,
	})
	return srv, st
}

func doJSON(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t, &fakeLLM{})
	h := srv.Handler()

	rec := doJSON(t, h, "GET", "/tracked-bills", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, "GET", "/tracked-bills", "bogus", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeLLM{})
	rec := doJSON(t, srv.Handler(), "GET", "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestChatStreamNewConversation(t *testing.T) {
	client := &fakeLLM{
		streamResponses: []*llm.ChatResponse{
			assistantText("Tracking it now.\n\n[TRACK_BILL: 118 | HR | 1234 | Farm Bill Extension]"),
		},
		structured: `{"title": "Bill Tracked", "content": "HR 1234: Farm Bill Extension", "is_useful": true}`,
	}
	srv, st := newTestServer(t, client)

	rec := doJSON(t, srv.Handler(), "POST", "/chat/stream", "tok-alice",
		`{"message": "Please track HR 1234 for me, the farm bill extension"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	convID := rec.Header().Get("X-Conversation-Id")
	if convID == "" {
		t.Fatal("X-Conversation-Id header missing")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "Tracking it now.") {
		t.Errorf("stream missing tokens: %s", body)
	}
	if !strings.Contains(body, "[INTEL_PACKET: Bill Tracked | HR 1234: Farm Bill Extension |END_PACKET]") {
		t.Errorf("stream missing intel packet: %s", body)
	}

	// Both turns persisted, intel tag included in the saved text.
	msgs, err := st.Messages(convID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "human" {
		t.Errorf("first role = %q, want human", msgs[0].Role)
	}
	if msgs[1].Role != "assistant" || !strings.Contains(msgs[1].Content, "INTEL_PACKET") {
		t.Errorf("assistant message = %+v", msgs[1])
	}

	// The TRACK_BILL directive landed in the watchlist.
	bills, err := st.ListTrackedBills("alice")
	if err != nil {
		t.Fatalf("tracked bills: %v", err)
	}
	if len(bills) != 1 || bills[0].BillID != "118-hr-1234" {
		t.Fatalf("tracked bills = %+v", bills)
	}
	if bills[0].Title != "Farm Bill Extension" {
		t.Errorf("bill title = %q", bills[0].Title)
	}

	// New conversations take their title from the first message.
	conv, err := st.GetConversation(convID, "alice")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if !strings.HasSuffix(conv.Title, "...") {
		t.Errorf("title = %q", conv.Title)
	}
}

func TestChatStreamErrorPersistsPartialAnswer(t *testing.T) {
	client := &fakeLLM{
		streamErr:       fmt.Errorf("model overloaded"),
		streamErrTokens: "Partial answer so far. ",
	}
	srv, st := newTestServer(t, client)

	rec := doJSON(t, srv.Handler(), "POST", "/chat/stream", "tok-alice",
		`{"message": "What committees does Watson Coleman serve on?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "Partial answer so far.") {
		t.Errorf("stream missing partial tokens: %s", body)
	}
	if !strings.Contains(body, "Error:") {
		t.Errorf("stream missing inline error: %s", body)
	}

	// The accumulated text survives the failure as the assistant message.
	convID := rec.Header().Get("X-Conversation-Id")
	msgs, err := st.Messages(convID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[1].Role != "assistant" {
		t.Errorf("second role = %q, want assistant", msgs[1].Role)
	}
	if !strings.Contains(msgs[1].Content, "Partial answer so far.") {
		t.Errorf("assistant message lost the partial answer: %q", msgs[1].Content)
	}
	if !strings.Contains(msgs[1].Content, "Error:") {
		t.Errorf("assistant message missing the inline error: %q", msgs[1].Content)
	}
}

func TestChatStreamExtractionFailureSuppressed(t *testing.T) {
	client := &fakeLLM{
		streamResponses: []*llm.ChatResponse{assistantText("Senators serve six-year terms.")},
		structuredErr:   fmt.Errorf("extraction backend down"),
	}
	srv, st := newTestServer(t, client)

	rec := doJSON(t, srv.Handler(), "POST", "/chat/stream", "tok-alice",
		`{"message": "How long is a Senate term?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "INTEL_PACKET") {
		t.Errorf("failed extraction leaked a packet tag: %s", rec.Body.String())
	}

	convID := rec.Header().Get("X-Conversation-Id")
	msgs, err := st.Messages(convID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[1].Content != "Senators serve six-year terms." {
		t.Errorf("assistant message = %q", msgs[1].Content)
	}
}

func TestChatStreamOwnership(t *testing.T) {
	client := &fakeLLM{streamResponses: []*llm.ChatResponse{assistantText("hi")}}
	srv, st := newTestServer(t, client)

	conv, err := st.CreateConversation("bob", "Bob's research", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doJSON(t, srv.Handler(), "POST", "/chat/stream", "tok-alice",
		fmt.Sprintf(`{"message": "hello", "conversation_id": %q}`, conv.ID))
	if rec.Code != http.StatusForbidden {
		t.Errorf("cross-user stream: status = %d, want 403", rec.Code)
	}

	rec = doJSON(t, srv.Handler(), "POST", "/chat/stream", "tok-alice",
		`{"message": "hello", "conversation_id": "no-such-id"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing conversation: status = %d, want 404", rec.Code)
	}
}

func TestChatStreamRetitlesPlaceholder(t *testing.T) {
	client := &fakeLLM{
		streamResponses: []*llm.ChatResponse{assistantText("Sure.")},
		structured:      `{"title": "x", "content": "y", "is_useful": false}`,
	}
	srv, st := newTestServer(t, client)

	conv, _ := st.CreateConversation("alice", "New Chat", "")
	rec := doJSON(t, srv.Handler(), "POST", "/chat/stream", "tok-alice",
		fmt.Sprintf(`{"message": "Who represents Trenton NJ?", "conversation_id": %q}`, conv.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	got, _ := st.GetConversation(conv.ID, "alice")
	if got.Title == "New Chat" {
		t.Error("placeholder title was not replaced")
	}
	if !strings.HasPrefix(got.Title, "Who represents Trenton NJ?") {
		t.Errorf("title = %q", got.Title)
	}
}

func TestChatStreamPrunesHistory(t *testing.T) {
	client := &fakeLLM{
		streamResponses: []*llm.ChatResponse{assistantText("ok")},
		structured:      `{"title": "x", "content": "y", "is_useful": false}`,
	}
	srv, st := newTestServer(t, client)

	conv, _ := st.CreateConversation("alice", "Long chat", "")
	for i := range 12 {
		if err := st.AppendMessage(conv.ID, "human", fmt.Sprintf("old %d", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rec := doJSON(t, srv.Handler(), "POST", "/chat/stream", "tok-alice",
		fmt.Sprintf(`{"message": "newest", "conversation_id": %q}`, conv.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	msgs, _ := st.Messages(conv.ID)
	if len(msgs) != 10 {
		t.Errorf("got %d messages after turn, want 10", len(msgs))
	}
	if msgs[len(msgs)-1].Content != "ok" {
		t.Errorf("newest message = %q", msgs[len(msgs)-1].Content)
	}
}

func TestMessagesEndpoint(t *testing.T) {
	srv, st := newTestServer(t, &fakeLLM{})
	conv, _ := st.CreateConversation("alice", "Chat", "")
	_ = st.AppendMessage(conv.ID, "human", "hello")
	_ = st.AppendMessage(conv.ID, "assistant", "hi there")

	rec := doJSON(t, srv.Handler(), "GET", "/conversations/"+conv.ID+"/messages", "tok-alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"role":"human"`) || !strings.Contains(body, "hi there") {
		t.Errorf("body = %s", body)
	}

	rec = doJSON(t, srv.Handler(), "GET", "/conversations/"+conv.ID+"/messages", "tok-bob", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("cross-user: status = %d, want 403", rec.Code)
	}
}

func TestNotebookLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, &fakeLLM{})
	h := srv.Handler()

	// Member page create is idempotent.
	rec := doJSON(t, h, "POST", "/member/W000822/conversation?name=Watson+Coleman", "tok-alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("create member page: %d", rec.Code)
	}
	first := rec.Body.String()

	rec = doJSON(t, h, "POST", "/member/W000822/conversation", "tok-alice", "")
	if rec.Body.String() != first {
		t.Errorf("second create returned a different page: %s vs %s", rec.Body.String(), first)
	}

	rec = doJSON(t, h, "GET", "/member/W000822/conversation", "tok-alice", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"`) {
		t.Errorf("member lookup: %d %s", rec.Code, rec.Body.String())
	}

	// Unknown member pages respond with a null id, not an error.
	rec = doJSON(t, h, "GET", "/member/X000000/conversation", "tok-alice", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":null`) {
		t.Errorf("unknown member lookup: %d %s", rec.Code, rec.Body.String())
	}

	// Registry lists the member page.
	rec = doJSON(t, h, "GET", "/conversations", "tok-alice", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "W000822") {
		t.Errorf("registry: %d %s", rec.Code, rec.Body.String())
	}

	// Bills.
	rec = doJSON(t, h, "POST", "/tracked-bills", "tok-alice",
		`{"bill_id": "118-hr-1", "bill_type": "HR", "bill_number": "1", "congress": 118, "title": "An Act"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("track bill: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, "PATCH", "/tracked-bills/118-hr-1", "tok-alice", `{"title": "Renamed Act"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("rename bill: %d", rec.Code)
	}
	rec = doJSON(t, h, "DELETE", "/tracked-bills/118-hr-1", "tok-bob", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-user untrack: %d, want 404", rec.Code)
	}
	rec = doJSON(t, h, "DELETE", "/tracked-bills/118-hr-1", "tok-alice", "")
	if rec.Code != http.StatusOK {
		t.Errorf("untrack: %d", rec.Code)
	}
}

func TestNotesAndExport(t *testing.T) {
	srv, _ := newTestServer(t, &fakeLLM{})
	h := srv.Handler()

	rec := doJSON(t, h, "POST", "/member/W000822/notes", "tok-alice",
		`{"title": "Committee Work", "content": "Serves on **Appropriations**."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create note: %d %s", rec.Code, rec.Body.String())
	}
	var note struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &note); err != nil {
		t.Fatalf("decode note: %v", err)
	}

	rec = doJSON(t, h, "GET", "/notes/"+note.ID+"/export", "tok-alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	html := rec.Body.String()
	if !strings.Contains(html, "<strong>Appropriations</strong>") {
		t.Errorf("markdown not rendered: %s", html)
	}
	if !strings.Contains(html, "<title>Committee Work</title>") {
		t.Errorf("export missing title: %s", html)
	}

	rec = doJSON(t, h, "GET", "/notes/"+note.ID+"/export", "tok-bob", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("cross-user export: %d, want 403", rec.Code)
	}

	rec = doJSON(t, h, "PATCH", "/notes/"+note.ID, "tok-alice", `{"content": "Updated."}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Updated.") {
		t.Errorf("update note: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, "DELETE", "/notes/"+note.ID, "tok-alice", "")
	if rec.Code != http.StatusOK {
		t.Errorf("delete note: %d", rec.Code)
	}
}
