package http

import (
	"net/http"
	"time"

	"splittab/internal/core"
)

// importedBillView decorates an imported bill with its snapshot
// freshness, computed at read time.
type importedBillView struct {
	core.ImportedBill
	LiveStatus core.LiveStatus `json:"liveStatus"`
}

func (s *Server) handleListImported(w http.ResponseWriter, r *http.Request) {
	imported, err := s.bills.ListImportedBills(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	now := time.Now()
	views := make([]importedBillView, 0, len(imported))
	for _, ib := range imported {
		views = append(views, importedBillView{
			ImportedBill: ib,
			LiveStatus:   ib.LiveStatus(now, s.freshnessWindow),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// handleReceiveImported merges a bill shared by another user.
func (s *Server) handleReceiveImported(w http.ResponseWriter, r *http.Request) {
	var ib core.ImportedBill
	if err := decodeJSON(r, &ib); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	action, err := s.bills.ReceiveImportedBill(r.Context(), &ib)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.FlushCaches()
	writeJSON(w, http.StatusOK, map[string]string{"id": ib.ID, "action": string(action)})
}

func (s *Server) handleImportedPortionPaid(w http.ResponseWriter, r *http.Request) {
	var payload paidPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.bills.SetImportedPortionPaid(r.Context(), r.PathValue("id"), payload.Paid); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.FlushCaches()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportedArchive(w http.ResponseWriter, r *http.Request) {
	if err := s.bills.SetImportedStatus(r.Context(), r.PathValue("id"), core.StatusArchived); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.FlushCaches()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImportedUnarchive(w http.ResponseWriter, r *http.Request) {
	if err := s.bills.SetImportedStatus(r.Context(), r.PathValue("id"), core.StatusActive); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.FlushCaches()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteImported(w http.ResponseWriter, r *http.Request) {
	if err := s.bills.DeleteImportedBill(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.FlushCaches()
	w.WriteHeader(http.StatusNoContent)
}
