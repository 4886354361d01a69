package core

// ArchiveEligible reports whether a bill qualifies for auto-archive: it
// is active, has at least one participant, and every participant has
// paid. The decision is pure; the delay and batching live in the
// services layer.
func ArchiveEligible(b Bill) bool {
	if b.Status != StatusActive || len(b.Participants) == 0 {
		return false
	}
	for _, p := range b.Participants {
		if !p.Paid {
			return false
		}
	}
	return true
}

// ArchiveCandidates returns the IDs of every bill eligible for
// auto-archive, in input order.
func ArchiveCandidates(bills []Bill) []string {
	var ids []string
	for _, b := range bills {
		if ArchiveEligible(b) {
			ids = append(ids, b.ID)
		}
	}
	return ids
}
