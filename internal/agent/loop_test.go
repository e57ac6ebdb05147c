package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cosintapp/cosint/internal/llm"
	"github.com/cosintapp/cosint/internal/tools"
)

// scriptedClient returns canned responses in order and records the messages
// of each call.
type scriptedClient struct {
	responses []*llm.ChatResponse
	calls     [][]llm.Message
	toolDefs  [][]map[string]any
}

func (c *scriptedClient) Chat(ctx context.Context, model string, messages []llm.Message, toolDefs []map[string]any) (*llm.ChatResponse, error) {
	return c.ChatStream(ctx, model, messages, toolDefs, nil)
}

func (c *scriptedClient) ChatStream(ctx context.Context, model string, messages []llm.Message, toolDefs []map[string]any, callback llm.StreamCallback) (*llm.ChatResponse, error) {
	c.calls = append(c.calls, messages)
	c.toolDefs = append(c.toolDefs, toolDefs)
	if len(c.responses) == 0 {
		return nil, fmt.Errorf("no scripted response left")
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	if callback != nil && resp.Message.Content != "" {
		callback(llm.StreamEvent{Kind: llm.KindToken, Token: resp.Message.Content})
	}
	return resp, nil
}

func (c *scriptedClient) ChatStructured(ctx context.Context, model string, messages []llm.Message, schemaName string, schema map[string]any) (string, error) {
	return "", fmt.Errorf("not implemented")
}

func (c *scriptedClient) Ping(ctx context.Context) error { return nil }

func textResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message:      llm.Message{Role: "assistant", Content: content},
		Done:         true,
		InputTokens:  10,
		OutputTokens: 5,
	}
}

func toolCallResponse(id, name string, args map[string]any) *llm.ChatResponse {
	tc := llm.ToolCall{ID: id}
	tc.Function.Name = name
	tc.Function.Arguments = args
	return &llm.ChatResponse{
		Message:      llm.Message{Role: "assistant", ToolCalls: []llm.ToolCall{tc}},
		Done:         true,
		InputTokens:  10,
		OutputTokens: 5,
	}
}

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry(nil, nil, nil, nil)
	reg.Register(&tools.Tool{
		Name:        "lookup_member",
		Description: "test tool",
		Parameters:  map[string]any{"type": "object"},
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			id, _ := args["id"].(string)
			if id == "" {
				return "", fmt.Errorf("id is required")
			}
			return "Member record for " + id, nil
		},
	})
	return reg
}

func TestRunDirectAnswer(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		textResponse("Bonnie Watson Coleman represents NJ-12."),
	}}
	e := NewExecutor(nil, client, newTestRegistry(t), "gpt-4o-mini", 5)

	res, err := e.Run(context.Background(), Request{Message: "Who represents NJ-12?"}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Answer != "Bonnie Watson Coleman represents NJ-12." {
		t.Errorf("unexpected answer: %q", res.Answer)
	}
	if res.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", res.Iterations)
	}
	if res.Exhausted {
		t.Error("single-call run should not be exhausted")
	}

	// System prompt leads, user message last.
	msgs := client.calls[0]
	if msgs[0].Role != "system" || !strings.Contains(msgs[0].Content, "US Congress") {
		t.Errorf("first message should be the system prompt, got role %q", msgs[0].Role)
	}
	if last := msgs[len(msgs)-1]; last.Role != "user" || last.Content != "Who represents NJ-12?" {
		t.Errorf("last message should be the user question, got %+v", last)
	}
}

func TestRunToolLoop(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolCallResponse("call_1", "lookup_member", map[string]any{"id": "W000822"}),
		textResponse("Found the member."),
	}}
	e := NewExecutor(nil, client, newTestRegistry(t), "gpt-4o-mini", 5)

	var events []llm.StreamEvent
	res, err := e.Run(context.Background(), Request{Message: "Look up W000822"}, func(ev llm.StreamEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Answer != "Found the member." {
		t.Errorf("unexpected answer: %q", res.Answer)
	}
	if res.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", res.Iterations)
	}
	if res.InputTokens != 20 || res.OutputTokens != 10 {
		t.Errorf("usage = %d/%d, want 20/10", res.InputTokens, res.OutputTokens)
	}

	// Second call must carry the tool observation.
	second := client.calls[1]
	obs := second[len(second)-1]
	if obs.Role != "tool" || obs.ToolCallID != "call_1" {
		t.Fatalf("expected tool observation, got %+v", obs)
	}
	if obs.Content != "Member record for W000822" {
		t.Errorf("observation = %q", obs.Content)
	}

	var sawStart, sawDone bool
	for _, ev := range events {
		switch ev.Kind {
		case llm.KindToolCallStart:
			sawStart = true
			if ev.ToolCall == nil || ev.ToolCall.Function.Name != "lookup_member" {
				t.Errorf("tool start event missing call info: %+v", ev)
			}
		case llm.KindToolCallDone:
			sawDone = true
			if ev.ToolName != "lookup_member" {
				t.Errorf("tool done event name = %q", ev.ToolName)
			}
		}
	}
	if !sawStart || !sawDone {
		t.Errorf("missing tool lifecycle events (start=%v done=%v)", sawStart, sawDone)
	}
}

func TestRunToolErrorBecomesObservation(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolCallResponse("call_1", "lookup_member", nil),
		textResponse("I could not look that up."),
	}}
	e := NewExecutor(nil, client, newTestRegistry(t), "gpt-4o-mini", 5)

	res, err := e.Run(context.Background(), Request{Message: "Look up someone"}, nil)
	if err != nil {
		t.Fatalf("tool failure must not abort the run: %v", err)
	}
	if res.Answer != "I could not look that up." {
		t.Errorf("unexpected answer: %q", res.Answer)
	}

	second := client.calls[1]
	obs := second[len(second)-1]
	if !strings.HasPrefix(obs.Content, "Error: ") {
		t.Errorf("tool error should surface as an Error observation, got %q", obs.Content)
	}
}

func TestRunMaxIterationsForcesAnswer(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolCallResponse("call_1", "lookup_member", map[string]any{"id": "A"}),
		toolCallResponse("call_2", "lookup_member", map[string]any{"id": "B"}),
		textResponse("Best effort answer."),
	}}
	e := NewExecutor(nil, client, newTestRegistry(t), "gpt-4o-mini", 2)

	res, err := e.Run(context.Background(), Request{Message: "Dig deep"}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Exhausted {
		t.Error("run should be marked exhausted")
	}
	if res.Answer != "Best effort answer." {
		t.Errorf("unexpected answer: %q", res.Answer)
	}

	// The forced final call must not offer tools.
	if last := client.toolDefs[len(client.toolDefs)-1]; last != nil {
		t.Errorf("final call should pass nil tools, got %d defs", len(last))
	}
}

func TestRunEmptyMessage(t *testing.T) {
	e := NewExecutor(nil, &scriptedClient{}, newTestRegistry(t), "gpt-4o-mini", 5)
	if _, err := e.Run(context.Background(), Request{}, nil); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestSystemPromptHint(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{textResponse("ok")}}
	e := NewExecutor(nil, client, newTestRegistry(t), "gpt-4o-mini", 5)

	_, err := e.Run(context.Background(), Request{
		Message: "hi",
		Hint:    "Researching Bonnie Watson Coleman (W000822)",
	}, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	sys := client.calls[0][0].Content
	if !strings.Contains(sys, "Researching Bonnie Watson Coleman (W000822)") {
		t.Errorf("system prompt missing hint:\n%s", sys)
	}
	if !strings.Contains(sys, "TRACK_BILL") || !strings.Contains(sys, "CREATE_PAGE_ACTION") {
		t.Error("system prompt missing directive instructions")
	}
}
