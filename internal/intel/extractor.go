// Package intel runs the post-response extraction pass that turns agent
// answers into concise notebook facts.
package intel

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cosintapp/cosint/internal/llm"
)

const extractionPrompt = "You are an OSINT Intelligence Analyst. Your job is to extract specific facts from the AI response about a Congressional representative or legislative activity. " +
	"If the response contains a significant, new fact (district details, committee roles, career milestones, specific votes, or important links), set is_useful to true. " +
	"CRITICAL: Do NOT capture meta-information like the current date, time, user greetings, or off-topic conversational content. " +
	"CRITICAL: The 'content' must be EXTREMELY CONCISE. Use a 'Label: Value' format. " +
	"If the response contains a relevant link (e.g., to a speech, a video, or an official document), ALWAYS include it in the content using Markdown format: [Source Name](URL). " +
	"Example: 'Senate Term: Jan 2025 - Jan 2031' or 'Inauguration Speech: [Read here](URL)'. " +
	"If the response is vague, lacks a specific new fact about the member, or is just conversational, set is_useful to false."

// Packet is one extracted fact.
type Packet struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsUseful bool   `json:"is_useful"`
}

var packetSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title": map[string]any{
			"type":        "string",
			"description": "Short category title (e.g., 'Legal Record', 'Senate Term')",
		},
		"content": map[string]any{
			"type":        "string",
			"description": "Extremely concise summarized fact or key-value pair. No full sentences.",
		},
		"is_useful": map[string]any{
			"type":        "boolean",
			"description": "Whether this information is significant enough to be pinned",
		},
	},
	"required":             []string{"title", "content", "is_useful"},
	"additionalProperties": false,
}

// Extractor distills agent responses into notebook facts.
type Extractor struct {
	logger *slog.Logger
	llm    llm.Client
	model  string
}

// NewExtractor creates an extractor using the given model.
func NewExtractor(logger *slog.Logger, llmClient llm.Client, model string) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger, llm: llmClient, model: model}
}

// Extract runs the extraction pass over a finished response. A nil return
// means nothing worth pinning: either the model flagged the response as not
// useful or the pass itself failed. Extraction failures are logged and
// swallowed here so a broken side channel never breaks the chat.
func (e *Extractor) Extract(ctx context.Context, response string) *Packet {
	if response == "" {
		return nil
	}

	messages := []llm.Message{
		{Role: "system", Content: extractionPrompt},
		{Role: "user", Content: "Extract the key fact from this response: " + response},
	}

	raw, err := e.llm.ChatStructured(ctx, e.model, messages, "intel_packet", packetSchema)
	if err != nil {
		e.logger.Warn("intel extraction failed", "error", err)
		return nil
	}

	var p Packet
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		e.logger.Warn("intel extraction returned invalid JSON", "error", err, "raw", raw)
		return nil
	}
	if !p.IsUseful || p.Title == "" || p.Content == "" {
		return nil
	}
	return &p
}
