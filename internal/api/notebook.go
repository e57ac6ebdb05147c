package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/cosintapp/cosint/internal/store"
)

// markdown renders note content for HTML export.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

func (s *Server) handleConversationCreate(w http.ResponseWriter, r *http.Request, userID string) {
	conv, err := s.store.CreateConversation(userID, "New Chat", "")
	if err != nil {
		s.storeError(w, err, "Conversation not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"id": conv.ID, "title": conv.Title}, s.logger)
}

func (s *Server) handleConversationList(w http.ResponseWriter, r *http.Request, userID string) {
	convs, err := s.store.ListConversations(userID)
	if err != nil {
		s.storeError(w, err, "Conversation not found")
		return
	}
	if convs == nil {
		convs = []store.Conversation{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, convs, s.logger)
}

func (s *Server) handleConversationUpdate(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
		s.errorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	id := r.PathValue("id")
	if err := s.store.RenameConversation(id, userID, body.Title); err != nil {
		s.storeError(w, err, "Conversation not found")
		return
	}
	conv, err := s.store.GetConversation(id, userID)
	if err != nil {
		s.storeError(w, err, "Conversation not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, conv, s.logger)
}

func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.store.DeleteConversation(r.PathValue("id"), userID); err != nil {
		s.storeError(w, err, "Conversation not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "success"}, s.logger)
}

func (s *Server) handleMemberConversationGet(w http.ResponseWriter, r *http.Request, userID string) {
	conv, err := s.store.FindMemberConversation(userID, r.PathValue("bioguideId"))
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		// No page yet is a normal state, not an error.
		writeJSON(w, map[string]any{"id": nil}, s.logger)
		return
	}
	writeJSON(w, map[string]string{"id": conv.ID}, s.logger)
}

func (s *Server) handleMemberConversationCreate(w http.ResponseWriter, r *http.Request, userID string) {
	bioguideID := r.PathValue("bioguideId")

	if conv, err := s.store.FindMemberConversation(userID, bioguideID); err == nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, map[string]string{"id": conv.ID}, s.logger)
		return
	}

	title := r.URL.Query().Get("name")
	if title == "" {
		title = "Briefing: " + bioguideID
	}
	conv, err := s.store.CreateConversation(userID, title, bioguideID)
	if err != nil {
		s.storeError(w, err, "Conversation not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"id": conv.ID}, s.logger)
}

func (s *Server) handleTrackedBillList(w http.ResponseWriter, r *http.Request, userID string) {
	bills, err := s.store.ListTrackedBills(userID)
	if err != nil {
		s.storeError(w, err, "Tracked bill not found")
		return
	}
	if bills == nil {
		bills = []store.TrackedBill{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, bills, s.logger)
}

func (s *Server) handleTrackedBillCreate(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		BillID     string `json:"bill_id"`
		BillType   string `json:"bill_type"`
		BillNumber string `json:"bill_number"`
		Congress   int    `json:"congress"`
		Title      string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.BillID == "" {
		s.errorResponse(w, http.StatusBadRequest, "bill_id is required")
		return
	}

	bill, err := s.store.TrackBill(userID, store.TrackedBill{
		BillID:     body.BillID,
		Congress:   body.Congress,
		BillType:   body.BillType,
		BillNumber: body.BillNumber,
		Title:      body.Title,
	})
	if err != nil {
		s.storeError(w, err, "Tracked bill not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, bill, s.logger)
}

func (s *Server) handleTrackedBillUpdate(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Title *string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == nil {
		s.errorResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if err := s.store.RenameTrackedBill(userID, r.PathValue("billId"), *body.Title); err != nil {
		s.storeError(w, err, "Tracked bill not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "success"}, s.logger)
}

func (s *Server) handleTrackedBillDelete(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.store.UntrackBill(userID, r.PathValue("billId")); err != nil {
		s.storeError(w, err, "Tracked bill not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "success"}, s.logger)
}

func (s *Server) handleRegistryOrder(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Items []store.PositionUpdate `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.store.UpdatePositions(userID, body.Items); err != nil {
		s.storeError(w, err, "not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "success"}, s.logger)
}

func (s *Server) handleNoteList(w http.ResponseWriter, r *http.Request, userID string) {
	notes, err := s.store.ListNotes(userID, r.PathValue("bioguideId"))
	if err != nil {
		s.storeError(w, err, "Note not found")
		return
	}
	if notes == nil {
		notes = []store.ResearchNote{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, notes, s.logger)
}

func (s *Server) handleNoteCreate(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == "" {
		s.errorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	note, err := s.store.CreateNote(userID, r.PathValue("bioguideId"), body.Title, body.Content)
	if err != nil {
		s.storeError(w, err, "Note not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, note, s.logger)
}

func (s *Server) handleNoteUpdate(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	note, err := s.store.UpdateNote(r.PathValue("id"), userID, body.Title, body.Content)
	if err != nil {
		s.storeError(w, err, "Note not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, note, s.logger)
}

func (s *Server) handleNoteDelete(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.store.DeleteNote(r.PathValue("id"), userID); err != nil {
		s.storeError(w, err, "Note not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "success"}, s.logger)
}

// handleNoteExport renders a note's markdown content as a standalone HTML
// document for download or printing.
func (s *Server) handleNoteExport(w http.ResponseWriter, r *http.Request, userID string) {
	note, err := s.store.GetNote(r.PathValue("id"), userID)
	if err != nil {
		s.storeError(w, err, "Note not found")
		return
	}

	var body bytes.Buffer
	if err := markdown.Convert([]byte(note.Content), &body); err != nil {
		s.logger.Error("markdown render failed", "note", note.ID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "render failed")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n<h1>%s</h1>\n%s</body>\n</html>\n",
		html.EscapeString(note.Title), html.EscapeString(note.Title), body.String())
}
