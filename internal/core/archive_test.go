package core

import (
	"reflect"
	"testing"
)

func TestArchiveEligible(t *testing.T) {
	cases := []struct {
		name string
		bill Bill
		want bool
	}{
		{
			"all paid",
			Bill{Status: StatusActive, Participants: []Participant{
				{Name: "a", Paid: true}, {Name: "b", Paid: true}, {Name: "c", Paid: true},
			}},
			true,
		},
		{
			"one unpaid",
			Bill{Status: StatusActive, Participants: []Participant{
				{Name: "a", Paid: true}, {Name: "b", Paid: false}, {Name: "c", Paid: true},
			}},
			false,
		},
		{
			"no participants",
			Bill{Status: StatusActive},
			false,
		},
		{
			"already archived",
			Bill{Status: StatusArchived, Participants: []Participant{{Name: "a", Paid: true}}},
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ArchiveEligible(tc.bill); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestArchiveCandidates(t *testing.T) {
	bills := []Bill{
		{ID: "b1", Status: StatusActive, Participants: []Participant{{Name: "a", Paid: true}}},
		{ID: "b2", Status: StatusActive, Participants: []Participant{{Name: "a"}}},
		{ID: "b3", Status: StatusActive, Participants: []Participant{{Name: "a", Paid: true}, {Name: "b", Paid: true}}},
	}
	got := ArchiveCandidates(bills)
	want := []string{"b1", "b3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if ArchiveCandidates(nil) != nil {
		t.Fatalf("expected nil for empty input")
	}
}
