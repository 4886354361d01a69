package core

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummarize(t *testing.T) {
	bills := []Bill{
		{
			ID: "b1", Description: "Dinner", TotalAmount: 30, Status: StatusActive,
			Participants: []Participant{
				{Name: "Me", AmountOwed: 10},
				{Name: "Bob", AmountOwed: 20},
			},
		},
	}
	s := Summarize(bills, nil, "Me")
	if !almostEqual(s.TotalTracked, 30) || !almostEqual(s.OthersOweMe, 20) || !almostEqual(s.IOwe, 10) {
		t.Fatalf("got %+v, want {30 20 10}", s)
	}
}

func TestSummarizeSkipsArchivedAndPaid(t *testing.T) {
	bills := []Bill{
		{
			ID: "b1", Description: "Old trip", TotalAmount: 100, Status: StatusArchived,
			Participants: []Participant{{Name: "Bob", AmountOwed: 100}},
		},
		{
			ID: "b2", Description: "Lunch", TotalAmount: 40, Status: StatusActive,
			Participants: []Participant{
				{Name: "Bob", AmountOwed: 15, Paid: true},
				{Name: "Carol", AmountOwed: 25},
			},
		},
	}
	s := Summarize(bills, nil, "Me")
	if !almostEqual(s.TotalTracked, 40) {
		t.Fatalf("TotalTracked = %v, want 40 (archived bills excluded)", s.TotalTracked)
	}
	if !almostEqual(s.OthersOweMe, 25) {
		t.Fatalf("OthersOweMe = %v, want 25 (paid shares excluded)", s.OthersOweMe)
	}
	if s.IOwe != 0 {
		t.Fatalf("IOwe = %v, want 0", s.IOwe)
	}
}

func TestSummarizeNameMatchingIsTrimmedCaseInsensitive(t *testing.T) {
	bills := []Bill{
		{
			ID: "b1", Description: "Coffee", TotalAmount: 10, Status: StatusActive,
			Participants: []Participant{{Name: "  me ", AmountOwed: 10}},
		},
	}
	s := Summarize(bills, nil, "Me")
	if !almostEqual(s.IOwe, 10) || s.OthersOweMe != 0 {
		t.Fatalf("got %+v, want iOwe=10 othersOweMe=0", s)
	}
}

// The owner's portion of an imported bill counts only when the local flag
// and the remote participant record both say unpaid.
func TestSummarizeImportedDualGate(t *testing.T) {
	snapshot := func(remotePaid bool) Bill {
		return Bill{
			ID: "r1", Description: "Shared dinner", TotalAmount: 60, Status: StatusActive,
			Participants: []Participant{
				{ID: "rp1", Name: "Sharer", AmountOwed: 40},
				{ID: "rp2", Name: "Me", AmountOwed: 20, Paid: remotePaid},
			},
		}
	}
	cases := []struct {
		name          string
		myPortionPaid bool
		remotePaid    bool
		status        BillStatus
		want          float64
	}{
		{"both unpaid", false, false, StatusActive, 20},
		{"local paid only", true, false, StatusActive, 0},
		{"remote paid only", false, true, StatusActive, 0},
		{"both paid", true, true, StatusActive, 0},
		{"archived locally", false, false, StatusArchived, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			imported := []ImportedBill{{
				ID:              "i1",
				Bill:            snapshot(tc.remotePaid),
				MyParticipantID: "rp2",
				MyPortionPaid:   tc.myPortionPaid,
				Status:          tc.status,
			}}
			s := Summarize(nil, imported, "Me")
			if !almostEqual(s.IOwe, tc.want) {
				t.Fatalf("IOwe = %v, want %v", s.IOwe, tc.want)
			}
		})
	}
}

// Every unpaid participant on an active bill lands in exactly one of
// IOwe and OthersOweMe.
func TestSummarizePartitionCompleteness(t *testing.T) {
	bills := []Bill{
		{
			ID: "b1", Description: "Trip", TotalAmount: 90, Status: StatusActive,
			Participants: []Participant{
				{Name: "Me", AmountOwed: 30},
				{Name: "Bob", AmountOwed: 30},
				{Name: "Carol", AmountOwed: 30},
			},
		},
	}
	s := Summarize(bills, nil, "Me")
	var unpaidTotal float64
	for _, b := range bills {
		for _, p := range b.Participants {
			if !p.Paid {
				unpaidTotal += p.AmountOwed
			}
		}
	}
	if !almostEqual(s.IOwe+s.OthersOweMe, unpaidTotal) {
		t.Fatalf("iOwe+othersOweMe = %v, want %v", s.IOwe+s.OthersOweMe, unpaidTotal)
	}
}
