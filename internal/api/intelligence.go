package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cosintapp/cosint/internal/llm"
)

// handleMemberDashboard aggregates a member's profile, sponsored bills and
// recent floor votes into one payload for the member page.
func (s *Server) handleMemberDashboard(w http.ResponseWriter, r *http.Request) {
	if s.congress == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "congressional data source not configured")
		return
	}

	bioguideID := r.PathValue("bioguideId")
	ctx := r.Context()

	details, err := s.congress.MemberDetails(ctx, bioguideID)
	if err != nil {
		s.logger.Error("member dashboard failed", "bioguide_id", bioguideID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	bills, err := s.congress.SponsoredLegislation(ctx, bioguideID, 10)
	if err != nil {
		s.logger.Error("member dashboard failed", "bioguide_id", bioguideID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	recent, err := s.congress.RecentHouseVotes(ctx, 15)
	if err != nil {
		s.logger.Error("member dashboard failed", "bioguide_id", bioguideID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	votes := make([]map[string]any, 0, len(recent))
	for _, v := range recent {
		// Amendment votes carry little context on a member dashboard.
		if strings.Contains(strings.ToUpper(v.LegislationType), "AMDT") {
			continue
		}

		title := "No title available"
		if v.LegislationNum != "" && v.LegislationType != "" {
			if details, err := s.congress.BillDetails(ctx, v.Congress, v.LegislationType, v.LegislationNum); err == nil {
				if t, ok := details["title"].(string); ok && t != "" {
					title = t
				}
			}
		}

		cast, err := s.congress.MemberVoteOnRollCall(ctx, v.Congress, v.SessionNumber, v.RollCallNumber, bioguideID)
		if err != nil {
			s.logger.Warn("vote lookup failed", "roll_call", v.RollCallNumber, "error", err)
		}
		if cast == "" {
			cast = "Not Voting"
		}

		votes = append(votes, map[string]any{
			"legislation":      v.LegislationNum,
			"legislationUrl":   v.LegislationURL,
			"legislationTitle": title,
			"congress":         v.Congress,
			"type":             v.LegislationType,
			"number":           v.LegislationNum,
			"question":         v.VoteQuestion,
			"vote":             cast,
			"result":           v.Result,
			"date":             v.StartDate,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"details": details,
		"bills":   bills,
		"votes":   votes,
	}, s.logger)
}

// handleBillDashboard aggregates a bill's metadata, history and text, with
// an AI-written summary when the bill text is available.
func (s *Server) handleBillDashboard(w http.ResponseWriter, r *http.Request) {
	if s.congress == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "congressional data source not configured")
		return
	}

	congressNum, err := strconv.Atoi(r.PathValue("congress"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid congress number")
		return
	}
	billType := sanitizeBillType(r.PathValue("billType"))
	billNumber := r.PathValue("billNumber")
	ctx := r.Context()

	details, err := s.congress.BillDetails(ctx, congressNum, billType, billNumber)
	if err != nil {
		s.logger.Error("bill dashboard failed", "bill", billNumber, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	actions, err := s.congress.BillActions(ctx, congressNum, billType, billNumber, 20)
	if err != nil {
		s.logger.Error("bill dashboard failed", "bill", billNumber, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	cosponsors, err := s.congress.BillCosponsors(ctx, congressNum, billType, billNumber)
	if err != nil {
		s.logger.Error("bill dashboard failed", "bill", billNumber, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	textVersions, err := s.congress.BillText(ctx, congressNum, billType, billNumber)
	if err != nil {
		s.logger.Error("bill dashboard failed", "bill", billNumber, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The AI summary is best effort. A missing summary never fails the
	// dashboard.
	var aiSummary any
	if raw, err := s.congress.BillTextContent(ctx, congressNum, billType, billNumber, 30000); err == nil && raw != "" {
		if summary, err := s.summarizeBillText(ctx, raw); err == nil {
			aiSummary = summary
		} else {
			s.logger.Warn("bill analysis failed", "bill", billNumber, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"details":    details,
		"actions":    actions,
		"cosponsors": cosponsors,
		"text":       textVersions,
		"ai_summary": aiSummary,
	}, s.logger)
}

const billAnalysisPrompt = "You are a legislative analyst. Summarize the following bill text in plain language for a general audience. " +
	"Cover what the bill does, who it affects, and any notable provisions. Keep it under 300 words."

func (s *Server) summarizeBillText(ctx context.Context, text string) (string, error) {
	if s.llm == nil {
		return "", fmt.Errorf("no llm client configured")
	}
	resp, err := s.llm.Chat(ctx, s.model, []llm.Message{
		{Role: "system", Content: billAnalysisPrompt},
		{Role: "user", Content: text},
	}, nil)
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// sanitizeBillType strips punctuation from bill type slugs, so "H.R." and
// "hr" address the same bill.
func sanitizeBillType(t string) string {
	var b strings.Builder
	for _, r := range t {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}
