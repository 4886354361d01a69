package http

import (
	"net/http"
	"strings"

	"splittab/internal/core"
)

const (
	summaryKey       = "summary"
	rollupOwingKey   = "rollup:owing"
	rollupSettledKey = "rollup:settled"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if cached, ok := s.summaryCache.Get(summaryKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	summary, err := s.bills.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.summaryCache.Set(summaryKey, summary)
	writeJSON(w, http.StatusOK, summary)
}

type rollupResponse struct {
	Status  string             `json:"status"`
	Entries []core.RollupEntry `json:"entries"`
}

func (s *Server) handleRollup(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	settled := status == "settled"
	if status == "" {
		status = "owing"
	}
	if status != "owing" && status != "settled" {
		writeError(w, http.StatusBadRequest, "status must be owing or settled")
		return
	}

	key := rollupOwingKey
	if settled {
		key = rollupSettledKey
	}
	if cached, ok := s.rollupCache.Get(key); ok {
		writeJSON(w, http.StatusOK, rollupResponse{Status: status, Entries: cached})
		return
	}

	entries, err := s.bills.Rollup(r.Context(), settled)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.rollupCache.Set(key, entries)
	writeJSON(w, http.StatusOK, rollupResponse{Status: status, Entries: entries})
}

type debtsResponse struct {
	Participant string          `json:"participant"`
	Total       float64         `json:"total"`
	Items       []core.DebtItem `json:"items"`
}

func (s *Server) handleParticipantDebts(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "participant name required")
		return
	}

	items, total, err := s.bills.ParticipantDebts(r.Context(), name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, debtsResponse{
		Participant: name,
		Total:       total,
		Items:       items,
	})
}

type remindersResponse struct {
	Sent int `json:"sent"`
}

// handleReminders publishes a reminder for one participant, or for
// every outstanding debtor when no participant is named.
func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	var payload reminderPayload
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if name := strings.TrimSpace(payload.Participant); name != "" {
		if err := s.reminders.RemindParticipant(r.Context(), name); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, remindersResponse{Sent: 1})
		return
	}

	sent, err := s.reminders.RemindAllDebtors(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, remindersResponse{Sent: sent})
}
