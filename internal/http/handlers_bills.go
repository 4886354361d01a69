package http

import (
	"net/http"
	"strconv"
	"strings"

	"splittab/internal/core"
)

// pageCacheKey flattens filter and page into a cache key.
func pageCacheKey(filter core.BillFilter, page int) string {
	var b strings.Builder
	b.WriteString(string(filter.Status))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(filter.Query))
	b.WriteByte('|')
	b.WriteString(string(filter.Mode))
	b.WriteByte('|')
	b.WriteString(core.NormalizeName(filter.Participant))
	b.WriteByte('|')
	b.WriteString(string(filter.Summary))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(page))
	return b.String()
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	filter, page := parseBillFilter(r.URL.Query())

	key := pageCacheKey(filter, page)
	if cached, ok := s.pageCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	result, err := s.bills.QueryBills(r.Context(), filter, page)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.pageCache.Set(key, result)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var payload billPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bill := payload.toBill()
	if err := s.bills.CreateBill(r.Context(), &bill); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.FlushCaches()
	writeJSON(w, http.StatusCreated, bill)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := s.bills.GetBill(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	var payload billPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := s.bills.GetBill(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	bill := payload.toBill()
	bill.ID = existing.ID
	bill.Status = existing.Status
	if bill.CreatedAt == 0 {
		bill.CreatedAt = existing.CreatedAt
	}
	if err := s.bills.UpdateBill(r.Context(), &bill); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.FlushCaches()
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := s.bills.DeleteBill(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.FlushCaches()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleParticipantPaid(w http.ResponseWriter, r *http.Request) {
	var payload paidPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.bills.SetParticipantPaid(r.Context(), r.PathValue("id"), r.PathValue("pid"), payload.Paid); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.FlushCaches()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchiveBill(w http.ResponseWriter, r *http.Request) {
	if err := s.bills.ArchiveBill(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.FlushCaches()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnarchiveBill(w http.ResponseWriter, r *http.Request) {
	if err := s.bills.UnarchiveBill(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.FlushCaches()
	w.WriteHeader(http.StatusNoContent)
}
