package core

import "sort"

// RollupEntry is one participant's aggregate in a rollup.
type RollupEntry struct {
	// Name is the display spelling from the oldest bill naming this
	// participant, so it does not depend on the listing order.
	Name string

	// Amount is the outstanding debt in the debtor rollup, or the total
	// billed in the settled rollup.
	Amount float64

	// Phone and Email are the first non-empty values found for this
	// name while scanning the bills in order.
	Phone string
	Email string
}

// participantTotals is the per-name aggregate built from a full scan.
type participantTotals struct {
	display     string
	displayAt   int64 // CreatedAt of the bill the display spelling came from
	phone       string
	email       string
	outstanding float64 // sum of unpaid amounts
	totalBilled float64 // sum of all amounts, paid or not
}

// scanParticipants aggregates all bills regardless of status, keyed by
// normalized name and excluding the owner. Contact info is first-wins.
// The display spelling comes from the oldest bill so it stays stable
// whether the input arrives newest-first or oldest-first.
func scanParticipants(bills []Bill, ownerName string) map[string]*participantTotals {
	totals := make(map[string]*participantTotals)
	for _, b := range bills {
		for _, p := range b.Participants {
			key := NormalizeName(p.Name)
			if key == "" || key == NormalizeName(ownerName) {
				continue
			}
			t, ok := totals[key]
			if !ok {
				t = &participantTotals{display: p.Name, displayAt: b.CreatedAt}
				totals[key] = t
			} else if b.CreatedAt < t.displayAt {
				t.display = p.Name
				t.displayAt = b.CreatedAt
			}
			if t.phone == "" {
				t.phone = p.Phone
			}
			if t.email == "" {
				t.email = p.Email
			}
			t.totalBilled += p.AmountOwed
			if !p.Paid {
				t.outstanding += p.AmountOwed
			}
		}
	}
	return totals
}

// DebtorRollup sums unpaid amounts per participant name across all bills
// regardless of bill status. Amounts below MinOwedThreshold are dropped.
// Entries are sorted by amount descending, then name ascending.
func DebtorRollup(bills []Bill, ownerName string) []RollupEntry {
	var out []RollupEntry
	for _, t := range scanParticipants(bills, ownerName) {
		if t.outstanding < MinOwedThreshold {
			continue
		}
		out = append(out, RollupEntry{
			Name:   t.display,
			Amount: t.outstanding,
			Phone:  t.phone,
			Email:  t.email,
		})
	}
	sortRollup(out)
	return out
}

// SettledRollup lists participants whose aggregate outstanding debt is
// below SettledThreshold while having been billed a positive total: the
// people who are fully settled with the owner. Amount carries the total
// billed. Sorted like DebtorRollup.
func SettledRollup(bills []Bill, ownerName string) []RollupEntry {
	var out []RollupEntry
	for _, t := range scanParticipants(bills, ownerName) {
		if !amountsEqual(t.outstanding, 0) || t.totalBilled <= 0 {
			continue
		}
		out = append(out, RollupEntry{
			Name:   t.display,
			Amount: t.totalBilled,
			Phone:  t.phone,
			Email:  t.email,
		})
	}
	sortRollup(out)
	return out
}

func sortRollup(entries []RollupEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Amount != entries[j].Amount {
			return entries[i].Amount > entries[j].Amount
		}
		return NormalizeName(entries[i].Name) < NormalizeName(entries[j].Name)
	})
}

// DebtItem is one unpaid bill share for a single participant.
type DebtItem struct {
	BillID      string
	Description string
	Amount      float64
}

// ParticipantDebts returns exactly the unpaid bills and amounts for one
// participant, newest bill first, along with their total. This is the
// input contract of the reminder pipeline; formatting is the consumer's
// concern.
func ParticipantDebts(bills []Bill, name string) ([]DebtItem, float64) {
	var (
		items []DebtItem
		total float64
	)
	for _, b := range SortBills(bills) {
		for _, p := range b.Participants {
			if p.Paid || !SameName(p.Name, name) {
				continue
			}
			if p.AmountOwed < MinOwedThreshold {
				continue
			}
			items = append(items, DebtItem{
				BillID:      b.ID,
				Description: b.Description,
				Amount:      p.AmountOwed,
			})
			total += p.AmountOwed
		}
	}
	return items, total
}
