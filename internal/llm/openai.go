package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cosintapp/cosint/internal/httpkit"
)

// OpenAIClient is a client for OpenAI-compatible chat-completions APIs.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a new OpenAI-compatible client. baseURL defaults
// to the official endpoint when empty.
func NewOpenAIClient(apiKey, baseURL string, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	// Model responses can take significant time before sending headers
	// (long prompts, tool-heavy turns). Use a custom transport with a
	// generous response header timeout.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("provider", "openai"),
		httpClient: httpkit.NewClient(
			// No global timeout, streaming responses can be long-lived.
			// Rely on ctx deadlines/cancellation for timeout control.
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

// OpenAI request/response wire types

type openaiRequest struct {
	Model          string           `json:"model"`
	Messages       []openaiMessage  `json:"messages"`
	Tools          []map[string]any `json:"tools,omitempty"`
	Stream         bool             `json:"stream,omitempty"`
	StreamOptions  *streamOptions   `json:"stream_options,omitempty"`
	Temperature    *float64         `json:"temperature,omitempty"`
	ResponseFormat map[string]any   `json:"response_format,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	Index    *int   `json:"index,omitempty"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type openaiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage *openaiUsage `json:"usage"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openaiStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta        openaiMessage `json:"delta"`
		FinishReason *string       `json:"finish_reason"`
	} `json:"choices"`
	Usage *openaiUsage `json:"usage"`
}

// Chat sends a non-streaming chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	return c.ChatStream(ctx, model, messages, tools, nil)
}

// ChatStream sends a chat request, optionally streaming tokens via callback.
func (c *OpenAIClient) ChatStream(ctx context.Context, model string, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResponse, error) {
	stream := callback != nil

	zero := 0.0
	req := openaiRequest{
		Model:       model,
		Messages:    convertToOpenAI(messages),
		Tools:       tools,
		Stream:      stream,
		Temperature: &zero,
	}
	if stream {
		req.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	body, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if !stream {
		return c.handleNonStreaming(ctx, body)
	}
	return c.handleStreaming(ctx, body, callback)
}

// ChatStructured sends a non-streaming request constrained to a JSON schema
// and returns the raw JSON text emitted by the model.
func (c *OpenAIClient) ChatStructured(ctx context.Context, model string, messages []Message, schemaName string, schema map[string]any) (string, error) {
	zero := 0.0
	req := openaiRequest{
		Model:       model,
		Messages:    convertToOpenAI(messages),
		Temperature: &zero,
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"strict": true,
				"schema": schema,
			},
		},
	}

	body, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var resp openaiResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Ping checks if the API is reachable with the configured key.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status from API: %d", resp.StatusCode)
	}
	return nil
}

// send marshals req, posts it and returns the response body on 200.
func (c *OpenAIClient) send(ctx context.Context, req openaiRequest) (io.ReadCloser, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("openai API error %d: %s", resp.StatusCode, errBody)
	}

	return resp.Body, nil
}

func (c *OpenAIClient) handleNonStreaming(ctx context.Context, body io.Reader) (*ChatResponse, error) {
	var resp openaiResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	result := convertFromOpenAI(&resp)

	c.logger.Debug("response received",
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"tool_calls", len(result.Message.ToolCalls),
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", result.Message.Content)

	return result, nil
}

func (c *OpenAIClient) handleStreaming(ctx context.Context, body io.Reader, callback StreamCallback) (*ChatResponse, error) {
	scanner := bufio.NewScanner(body)
	// Increase scanner buffer for large responses
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		contentBuilder strings.Builder
		// Index-keyed in-progress tool calls; arguments arrive as JSON fragments.
		toolIDs    []string
		toolNames  []string
		toolArgs   []strings.Builder
		stopReason string
		usage      openaiUsage
		model      string
	)

	for scanner.Scan() {
		line := scanner.Text()

		// SSE format: "data: <json>" lines, finished by "data: [DONE]"
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if data == "[DONE]" {
			break
		}

		var chunk openaiStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // Skip malformed events
		}

		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			contentBuilder.WriteString(choice.Delta.Content)
			if callback != nil {
				callback(StreamEvent{Kind: KindToken, Token: choice.Delta.Content})
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			for len(toolArgs) <= idx {
				toolIDs = append(toolIDs, "")
				toolNames = append(toolNames, "")
				toolArgs = append(toolArgs, strings.Builder{})
			}
			if tc.ID != "" {
				toolIDs[idx] = tc.ID
			}
			if tc.Function.Name != "" {
				toolNames[idx] = tc.Function.Name
			}
			toolArgs[idx].WriteString(tc.Function.Arguments)
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			stopReason = *choice.FinishReason
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	var toolCalls []ToolCall
	for i := range toolNames {
		if toolNames[i] == "" {
			continue
		}
		var args map[string]any
		raw := toolArgs[i].String()
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				args = map[string]any{"_raw": raw}
			}
		}
		tc := ToolCall{ID: toolIDs[i]}
		tc.Function.Name = toolNames[i]
		tc.Function.Arguments = args
		toolCalls = append(toolCalls, tc)
	}

	result := &ChatResponse{
		Model:     model,
		CreatedAt: time.Now(),
		Message: Message{
			Role:      "assistant",
			Content:   contentBuilder.String(),
			ToolCalls: toolCalls,
		},
		Done:         true,
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
	}

	c.logger.Debug("stream complete",
		"model", model,
		"stop_reason", stopReason,
		"tool_calls", len(toolCalls),
		"content_len", contentBuilder.Len(),
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", result.Message.Content)

	return result, nil
}

// convertToOpenAI maps provider-neutral messages to the wire format.
func convertToOpenAI(messages []Message) []openaiMessage {
	out := make([]openaiMessage, 0, len(messages))
	for _, m := range messages {
		om := openaiMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			otc := openaiToolCall{ID: tc.ID, Type: "function"}
			otc.Function.Name = tc.Function.Name
			if tc.Function.Arguments != nil {
				argBytes, _ := json.Marshal(tc.Function.Arguments)
				otc.Function.Arguments = string(argBytes)
			} else {
				otc.Function.Arguments = "{}"
			}
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		out = append(out, om)
	}
	return out
}

// convertFromOpenAI maps a non-streaming wire response to the neutral form.
func convertFromOpenAI(resp *openaiResponse) *ChatResponse {
	result := &ChatResponse{
		Model:     resp.Model,
		CreatedAt: time.Unix(resp.Created, 0),
		Done:      true,
	}
	if resp.Usage != nil {
		result.InputTokens = resp.Usage.PromptTokens
		result.OutputTokens = resp.Usage.CompletionTokens
	}
	if len(resp.Choices) == 0 {
		return result
	}

	msg := resp.Choices[0].Message
	result.Message = Message{Role: "assistant", Content: msg.Content}
	for _, otc := range msg.ToolCalls {
		var args map[string]any
		if otc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(otc.Function.Arguments), &args); err != nil {
				args = map[string]any{"_raw": otc.Function.Arguments}
			}
		}
		tc := ToolCall{ID: otc.ID}
		tc.Function.Name = otc.Function.Name
		tc.Function.Arguments = args
		result.Message.ToolCalls = append(result.Message.ToolCalls, tc)
	}
	return result
}
