package core

import (
	"sort"
	"strings"
)

const (
	// SearchByDescription matches the query against bill descriptions.
	SearchByDescription SearchMode = "description"
	// SearchByParticipant matches the query against participant names.
	SearchByParticipant SearchMode = "participant"
)

const (
	FilterNone        SummaryFilter = ""
	FilterOthersOweMe SummaryFilter = "othersOweMe"
	FilterIOwe        SummaryFilter = "iOwe"
)

type (
	SearchMode string

	SummaryFilter string

	// BillFilter is the full set of filter dimensions applied to a bill
	// list. Zero values pass everything through.
	BillFilter struct {
		Status      BillStatus
		Query       string
		Mode        SearchMode
		Participant string        // exact name match (normalized)
		Summary     SummaryFilter // requires Owner
		Owner       string
	}
)

// FilterBills applies f to bills and returns a new sorted slice. The
// input is never mutated. Ordering is CreatedAt descending with ID
// descending as tiebreak, so paginated views stay stable.
func FilterBills(bills []Bill, f BillFilter) []Bill {
	out := make([]Bill, 0, len(bills))
	for _, b := range bills {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if !matchesQuery(b, f.Query, f.Mode) {
			continue
		}
		if f.Participant != "" && !hasParticipant(b, f.Participant) {
			continue
		}
		if !matchesSummaryFilter(b, f.Summary, f.Owner) {
			continue
		}
		out = append(out, b)
	}
	sortBillsInPlace(out)
	return out
}

// SortBills returns a copy of bills in the canonical list order.
func SortBills(bills []Bill) []Bill {
	out := make([]Bill, len(bills))
	copy(out, bills)
	sortBillsInPlace(out)
	return out
}

func sortBillsInPlace(bills []Bill) {
	sort.Slice(bills, func(i, j int) bool {
		if bills[i].CreatedAt != bills[j].CreatedAt {
			return bills[i].CreatedAt > bills[j].CreatedAt
		}
		return bills[i].ID > bills[j].ID
	})
}

// matchesQuery applies the search predicate. The query is trimmed and
// lowercased; an empty query is a pass-through.
func matchesQuery(b Bill, query string, mode SearchMode) bool {
	q := NormalizeName(query)
	if q == "" {
		return true
	}
	if mode == SearchByParticipant {
		for _, p := range b.Participants {
			if strings.Contains(NormalizeName(p.Name), q) {
				return true
			}
		}
		return false
	}
	return strings.Contains(strings.ToLower(b.Description), q)
}

func hasParticipant(b Bill, name string) bool {
	for _, p := range b.Participants {
		if SameName(p.Name, name) {
			return true
		}
	}
	return false
}

// matchesSummaryFilter checks membership in one of the two summary
// categories: bills where others owe the owner, or bills where the owner
// owes. Both apply only to active bills.
func matchesSummaryFilter(b Bill, f SummaryFilter, owner string) bool {
	if f == FilterNone {
		return true
	}
	if b.Status != StatusActive {
		return false
	}
	ownerUnpaid, otherUnpaid := false, false
	for _, p := range b.Participants {
		if p.Paid {
			continue
		}
		if SameName(p.Name, owner) {
			ownerUnpaid = true
		} else {
			otherUnpaid = true
		}
	}
	switch f {
	case FilterIOwe:
		return ownerUnpaid
	case FilterOthersOweMe:
		return !ownerUnpaid && otherUnpaid
	}
	return false
}
