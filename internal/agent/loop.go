package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cosintapp/cosint/internal/llm"
	"github.com/cosintapp/cosint/internal/tools"
)

const defaultMaxIter = 15

// Request is a single question posed to the agent, plus the prior
// conversation turns and any page-level context hint.
type Request struct {
	Message string
	History []llm.Message
	Hint    string
}

// Result is the outcome of one agent run.
type Result struct {
	Answer       string
	Model        string
	Iterations   int
	InputTokens  int
	OutputTokens int
	Exhausted    bool
}

// Executor answers questions with a bounded tool-calling loop. Tokens and
// tool lifecycle events stream through the callback as they happen; the
// returned Result carries the final assistant text and usage totals.
type Executor struct {
	logger   *slog.Logger
	llm      llm.Client
	registry *tools.Registry
	model    string
	maxIter  int
}

// NewExecutor creates an agent executor. maxIter <= 0 selects the default.
func NewExecutor(logger *slog.Logger, llmClient llm.Client, reg *tools.Registry, model string, maxIter int) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}
	return &Executor{
		logger:   logger,
		llm:      llmClient,
		registry: reg,
		model:    model,
		maxIter:  maxIter,
	}
}

// Run executes the agent loop for one request.
func (e *Executor) Run(ctx context.Context, req Request, callback llm.StreamCallback) (*Result, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	runID, _ := uuid.NewV7()
	rid := runID.String()

	toolDefs := e.registry.List()

	e.logger.Info("agent run started",
		"run_id", rid,
		"message", truncate(req.Message, 200),
		"history", len(req.History),
		"tools_available", len(toolDefs),
	)

	messages := make([]llm.Message, 0, len(req.History)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt(req.Hint, time.Now())})
	messages = append(messages, req.History...)
	messages = append(messages, llm.Message{Role: "user", Content: req.Message})

	startTime := time.Now()
	var totalInput, totalOutput int
	var answer strings.Builder

	for i := range e.maxIter {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("agent run cancelled: %w", err)
		}

		iterStart := time.Now()

		e.logger.Info("agent llm call",
			"run_id", rid,
			"iter", i,
			"model", e.model,
			"msgs", len(messages),
		)

		resp, err := e.llm.ChatStream(ctx, e.model, messages, toolDefs, callback)
		if err != nil {
			return nil, fmt.Errorf("agent llm call failed (iter %d): %w", i, err)
		}

		totalInput += resp.InputTokens
		totalOutput += resp.OutputTokens
		answer.WriteString(resp.Message.Content)

		e.logger.Info("agent llm response",
			"run_id", rid,
			"iter", i,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
			"tool_calls", len(resp.Message.ToolCalls),
			"elapsed", time.Since(iterStart).Round(time.Millisecond),
		)

		// No tool calls means the model produced its final answer.
		if len(resp.Message.ToolCalls) == 0 {
			e.logger.Info("agent run completed",
				"run_id", rid,
				"total_iter", i+1,
				"input_tokens", totalInput,
				"output_tokens", totalOutput,
				"elapsed", time.Since(startTime).Round(time.Millisecond),
			)
			return &Result{
				Answer:       answer.String(),
				Model:        e.model,
				Iterations:   i + 1,
				InputTokens:  totalInput,
				OutputTokens: totalOutput,
			}, nil
		}

		messages = append(messages, resp.Message)
		for _, tc := range resp.Message.ToolCalls {
			if callback != nil {
				callback(llm.StreamEvent{Kind: llm.KindToolCallStart, ToolCall: &tc})
			}

			argsJSON := ""
			if tc.Function.Arguments != nil {
				argsBytes, _ := json.Marshal(tc.Function.Arguments)
				argsJSON = string(argsBytes)
			}

			toolStart := time.Now()
			result, err := e.registry.Execute(ctx, tc.Function.Name, argsJSON)
			if err != nil {
				result = "Error: " + err.Error()
				e.logger.Error("agent tool exec failed",
					"run_id", rid,
					"tool", tc.Function.Name,
					"error", err,
				)
				if callback != nil {
					callback(llm.StreamEvent{Kind: llm.KindToolCallDone, ToolName: tc.Function.Name, ToolError: err.Error()})
				}
			} else {
				e.logger.Debug("agent tool exec done",
					"run_id", rid,
					"tool", tc.Function.Name,
					"result_len", len(result),
					"elapsed", time.Since(toolStart).Round(time.Millisecond),
				)
				if callback != nil {
					callback(llm.StreamEvent{Kind: llm.KindToolCallDone, ToolName: tc.Function.Name, ToolResult: truncate(result, 500)})
				}
			}

			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	// Iteration budget exhausted. Make one last call without tools so the
	// model has to answer with what it has gathered.
	e.logger.Warn("agent max iterations reached",
		"run_id", rid,
		"max_iter", e.maxIter,
	)

	resp, err := e.llm.ChatStream(ctx, e.model, messages, nil, callback)
	if err != nil {
		return nil, fmt.Errorf("agent final call failed: %w", err)
	}
	totalInput += resp.InputTokens
	totalOutput += resp.OutputTokens
	answer.WriteString(resp.Message.Content)

	e.logger.Info("agent run completed",
		"run_id", rid,
		"total_iter", e.maxIter,
		"input_tokens", totalInput,
		"output_tokens", totalOutput,
		"exhausted", true,
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)
	return &Result{
		Answer:       answer.String(),
		Model:        e.model,
		Iterations:   e.maxIter,
		InputTokens:  totalInput,
		OutputTokens: totalOutput,
		Exhausted:    true,
	}, nil
}

// truncate shortens a string to maxLen characters, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
