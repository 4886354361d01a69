package core

// Summary holds the dashboard totals derived from the current collection.
type Summary struct {
	// TotalTracked is the sum of TotalAmount over active bills.
	TotalTracked float64

	// OthersOweMe is the sum of unpaid participant amounts on active
	// bills, excluding participants matching the owner's name.
	OthersOweMe float64

	// IOwe is the sum of unpaid amounts for the owner across active
	// bills and active imported bills.
	IOwe float64
}

// Summarize computes the dashboard totals. ownerName partitions
// participants into self and others via the canonical name match.
//
// For imported bills the owner's portion counts toward IOwe only when the
// local MyPortionPaid flag is false AND the remote participant record is
// also unpaid. Both flags must agree; a remote-side payment alone does not
// zero the amount locally.
func Summarize(bills []Bill, imported []ImportedBill, ownerName string) Summary {
	var s Summary
	for _, b := range bills {
		if b.Status != StatusActive {
			continue
		}
		s.TotalTracked += b.TotalAmount
		for _, p := range b.Participants {
			if p.Paid {
				continue
			}
			if SameName(p.Name, ownerName) {
				s.IOwe += p.AmountOwed
			} else {
				s.OthersOweMe += p.AmountOwed
			}
		}
	}
	for _, ib := range imported {
		if ib.Status != StatusActive || ib.MyPortionPaid {
			continue
		}
		if p, ok := ib.MyParticipant(); ok && !p.Paid {
			s.IOwe += p.AmountOwed
		}
	}
	return s
}
