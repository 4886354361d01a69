package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusActive   BillStatus = "active"
	StatusArchived BillStatus = "archived"
)

const (
	LiveStatusLive    LiveStatus = "live"
	LiveStatusExpired LiveStatus = "expired"
	LiveStatusUnknown LiveStatus = "unknown"
)

// DefaultFreshnessWindow is how long an imported bill's snapshot is
// considered live after its last refresh.
const DefaultFreshnessWindow = 24 * time.Hour

type (
	BillStatus string

	LiveStatus string

	Participant struct {
		ID         string  `json:"id"`
		Name       string  `json:"name"`
		Phone      string  `json:"phone,omitempty"`
		Email      string  `json:"email,omitempty"`
		AmountOwed float64 `json:"amountOwed"`
		Paid       bool    `json:"paid"`
	}

	Bill struct {
		ID          string     `json:"id"`
		Description string     `json:"description"`
		CreatedAt   int64      `json:"createdAt"` // Unix seconds
		TotalAmount float64    `json:"totalAmount"`
		Status      BillStatus `json:"status"`
		// Participants keeps insertion order; the order is display-relevant
		// but carries no other meaning.
		Participants []Participant `json:"participants"`
	}

	// ImportedBill is a bill shared by another user and mirrored locally.
	// Bill is an immutable snapshot owned by the sharer; only the local
	// status fields may be mutated here.
	ImportedBill struct {
		ID              string     `json:"id"`
		Bill            Bill       `json:"bill"`
		MyParticipantID string     `json:"myParticipantId"`
		MyPortionPaid   bool       `json:"myPortionPaid"`
		Status          BillStatus `json:"status"`
		LastUpdatedAt   int64      `json:"lastUpdatedAt"` // Unix seconds of the last snapshot refresh
	}
)

var (
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrNegativeAmount     = errors.New("negative amount")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrEmptyName          = errors.New("empty participant name")
	ErrInvalidAmount      = errors.New("invalid amount")
)

func (s BillStatus) Validate() error {
	switch s {
	case StatusActive, StatusArchived:
		return nil
	}
	return ErrInvalidStatus
}

func (p Participant) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if p.AmountOwed < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (b Bill) Validate() error {
	if strings.TrimSpace(b.Description) == "" {
		return ErrEmptyDescription
	}
	if len(b.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if b.TotalAmount < 0 {
		return ErrNegativeAmount
	}
	if err := b.Status.Validate(); err != nil {
		return err
	}
	for _, p := range b.Participants {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (ib ImportedBill) Validate() error {
	if err := ib.Status.Validate(); err != nil {
		return err
	}
	return ib.Bill.Validate()
}

// MyParticipant resolves MyParticipantID against the snapshot's participants.
func (ib ImportedBill) MyParticipant() (Participant, bool) {
	for _, p := range ib.Bill.Participants {
		if p.ID == ib.MyParticipantID {
			return p, true
		}
	}
	return Participant{}, false
}

// LiveStatus reports whether the imported snapshot is still fresh.
// A zero LastUpdatedAt means the sharer never reported a refresh time.
func (ib ImportedBill) LiveStatus(now time.Time, window time.Duration) LiveStatus {
	if ib.LastUpdatedAt == 0 {
		return LiveStatusUnknown
	}
	if now.Sub(time.Unix(ib.LastUpdatedAt, 0)) <= window {
		return LiveStatusLive
	}
	return LiveStatusExpired
}

// Equal reports whether two bills carry the same content, participants
// included. Import reconciliation uses this to tell unchanged duplicates
// from updated records.
func (b Bill) Equal(o Bill) bool {
	if b.ID != o.ID || b.Description != o.Description || b.CreatedAt != o.CreatedAt ||
		b.TotalAmount != o.TotalAmount || b.Status != o.Status ||
		len(b.Participants) != len(o.Participants) {
		return false
	}
	for i := range b.Participants {
		if b.Participants[i] != o.Participants[i] {
			return false
		}
	}
	return true
}

// NormalizeName is the canonical form used for all participant name
// comparisons: trimmed, lowercased, no fuzzy matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SameName reports whether two participant names refer to the same person
// under the canonical comparison rules.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
