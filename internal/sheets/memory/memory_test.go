package memory

import (
	"context"
	"testing"

	"splittab/internal/core"
)

func TestExportBills(t *testing.T) {
	s := New()
	bills := []core.Bill{
		{
			ID:          "b1",
			Description: "Dinner",
			TotalAmount: 30,
			Participants: []core.Participant{
				{Name: "Me", AmountOwed: 10},
				{Name: "Bob", AmountOwed: 20},
			},
		},
		{
			ID:           "b2",
			Description:  "Taxi",
			TotalAmount:  12,
			Participants: []core.Participant{{Name: "Amy", AmountOwed: 12}},
		},
	}

	rows, err := s.ExportBills(context.Background(), bills)
	if err != nil {
		t.Fatalf("ExportBills() error = %v", err)
	}
	if rows != 3 {
		t.Errorf("rows = %d, want one per participant (3)", rows)
	}
	if s.Rows() != 3 {
		t.Errorf("Rows() = %d, want 3", s.Rows())
	}

	last := s.LastExport()
	if len(last) != 2 || last[0].ID != "b1" {
		t.Errorf("LastExport() = %+v, want the two exported bills", last)
	}
}

func TestExportBillsEmpty(t *testing.T) {
	s := New()
	rows, err := s.ExportBills(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExportBills() error = %v", err)
	}
	if rows != 0 {
		t.Errorf("rows = %d, want 0", rows)
	}
}
