package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cosintapp/cosint/internal/agent"
	"github.com/cosintapp/cosint/internal/directive"
	"github.com/cosintapp/cosint/internal/llm"
	"github.com/cosintapp/cosint/internal/store"
	"github.com/cosintapp/cosint/internal/stream"
)

// chatRequest is the body of POST /chat/stream.
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	InitialContext string `json:"initial_context"`
	BioguideID     string `json:"bioguide_id"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, userID string) {
	id := r.PathValue("id")

	if _, err := s.store.GetConversation(id, userID); err != nil {
		s.storeError(w, err, "Conversation not found")
		return
	}

	msgs, err := s.store.Messages(id)
	if err != nil {
		s.storeError(w, err, "Conversation not found")
		return
	}

	out := make([]map[string]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, map[string]string{"role": m.Role, "content": m.Content})
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, out, s.logger)
}

// handleChatStream runs one agent turn and streams the answer as raw text
// chunks. The response is annotated in-line with data source notices while
// tools run, and closed out with an INTEL_PACKET tag when the extraction
// pass finds a pinnable fact.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request, userID string) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	conv, err := s.resolveConversation(req, userID)
	if err != nil {
		s.storeError(w, err, "Conversation not found")
		return
	}

	history, err := s.loadHistory(conv.ID)
	if err != nil {
		s.logger.Error("failed to load history", "conversation", conv.ID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.store.AppendMessage(conv.ID, "human", req.Message); err != nil {
		s.logger.Error("failed to save user message", "conversation", conv.ID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.Header().Set("X-Conversation-Id", conv.ID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorResponse(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	rc := http.NewResponseController(w)

	mux := stream.New(func(chunk string) error {
		if _, err := fmt.Fprint(w, chunk); err != nil {
			return err
		}
		flusher.Flush()
		// Reset the write deadline so long tool loops do not trip the
		// server write timeout.
		if err := rc.SetWriteDeadline(time.Now().Add(120 * time.Second)); err != nil {
			s.logger.Debug("failed to reset write deadline", "error", err)
		}
		return nil
	})

	hint := req.InitialContext
	if hint == "" {
		hint = "General inquiry mode."
	}

	result, err := s.executor.Run(r.Context(), agent.Request{
		Message: req.Message,
		History: history,
		Hint:    hint,
	}, mux.Handle)
	if err != nil {
		s.logger.Error("agent run failed", "conversation", conv.ID, "error", err)
		mux.Append(fmt.Sprintf("\n\nError: %s", err))
		// Persist whatever was accumulated before the failure, including
		// the inline error note. Extraction and directives are skipped.
		// A client disconnect cancels the run and lands here too; the
		// store does not observe the request context, so the save still
		// completes.
		if saveErr := s.store.AppendMessage(conv.ID, "assistant", mux.Text()); saveErr != nil {
			s.logger.Error("failed to save assistant message", "conversation", conv.ID, "error", saveErr)
		}
		return
	}

	s.logger.Debug("agent turn finished",
		"conversation", conv.ID,
		"iterations", result.Iterations,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
	)

	// Post-stream work continues even if the client has gone away.
	ctx := context.WithoutCancel(r.Context())

	if s.extractor != nil {
		if packet := s.extractor.Extract(ctx, mux.Text()); packet != nil {
			mux.Append(directive.FormatIntelPacket(packet.Title, packet.Content))
		}
	}

	full := mux.Text()
	if err := s.store.AppendMessage(conv.ID, "assistant", full); err != nil {
		s.logger.Error("failed to save assistant message", "conversation", conv.ID, "error", err)
	}

	if tb, ok := directive.ParseTrackBill(full); ok {
		_, err := s.store.TrackBill(userID, store.TrackedBill{
			BillID:     tb.BillID(),
			Congress:   tb.Congress,
			BillType:   tb.BillType,
			BillNumber: tb.Number,
			Title:      tb.Title,
		})
		if err != nil {
			s.logger.Error("failed to track bill", "bill", tb.BillID(), "error", err)
		}
	}

	if err := s.store.PruneMessages(conv.ID, s.retention); err != nil {
		s.logger.Warn("message pruning failed", "conversation", conv.ID, "error", err)
	}
}

// resolveConversation finds or creates the conversation for a chat turn.
// New conversations are titled from the first message; placeholder titles
// get replaced the same way.
func (s *Server) resolveConversation(req chatRequest, userID string) (*store.Conversation, error) {
	if req.ConversationID == "" {
		return s.store.CreateConversation(userID, titleFromMessage(req.Message), req.BioguideID)
	}

	conv, err := s.store.GetConversation(req.ConversationID, userID)
	if err != nil {
		return nil, err
	}
	if conv.Title == "New Chat" {
		if err := s.store.RenameConversation(conv.ID, userID, titleFromMessage(req.Message)); err != nil {
			s.logger.Warn("failed to retitle conversation", "conversation", conv.ID, "error", err)
		}
	}
	return conv, nil
}

// loadHistory converts stored messages into LLM turns. Stored user turns
// use the role "human".
func (s *Server) loadHistory(conversationID string) ([]llm.Message, error) {
	msgs, err := s.store.Messages(conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		if role == "human" {
			role = "user"
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out, nil
}

// titleFromMessage derives a conversation title from its opening message.
func titleFromMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= 30 {
		return message + "..."
	}
	return string(runes[:30]) + "..."
}
