// Package memory provides an in-memory bill exporter for local runs
// and tests where no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"splittab/internal/core"
)

type Store struct {
	mu   sync.Mutex
	rows int
	last []core.Bill
}

func New() *Store {
	return &Store{}
}

// ExportBills records the bills and returns the number of participant
// rows that a real spreadsheet append would have produced.
func (s *Store) ExportBills(_ context.Context, bills []core.Bill) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := 0
	for _, b := range bills {
		rows += len(b.Participants)
	}
	s.rows += rows
	s.last = append([]core.Bill(nil), bills...)
	return rows, nil
}

// Rows returns the total number of rows exported so far.
func (s *Store) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// LastExport returns the bills from the most recent export.
func (s *Store) LastExport() []core.Bill {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Bill(nil), s.last...)
}
