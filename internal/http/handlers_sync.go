package http

import (
	"net/http"

	"splittab/internal/core"
)

// handleImport reconciles a batch of exported bills. The response
// reports how many records were added, updated and skipped.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var payload []billPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bills := make([]core.Bill, 0, len(payload))
	for _, p := range payload {
		bills = append(bills, p.toBill())
	}

	counts, err := s.bills.Import(r.Context(), bills)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.FlushCaches()
	writeJSON(w, http.StatusOK, counts)
}

// handleExport returns the full collection as a portable JSON document.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	bills, err := s.bills.ListBills(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if bills == nil {
		bills = []core.Bill{}
	}

	w.Header().Set("Content-Disposition", `attachment; filename="bills.json"`)
	writeJSON(w, http.StatusOK, bills)
}

type sheetsExportResponse struct {
	Bills int `json:"bills"`
	Rows  int `json:"rows"`
}

// handleExportSheets appends the collection to the configured
// spreadsheet.
func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "spreadsheet export not configured")
		return
	}

	bills, err := s.bills.ListBills(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	rows, err := s.exporter.ExportBills(r.Context(), bills)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sheetsExportResponse{Bills: len(bills), Rows: rows})
}
