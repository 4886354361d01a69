package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"splittab/internal/core"
)

// Amount accepts JSON numbers as well as strings with a dot or comma
// decimal separator ("12.50", "12,50").
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		*a = Amount(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

type participantPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	AmountOwed Amount `json:"amountOwed"`
	Paid       bool   `json:"paid"`
}

type billPayload struct {
	Description  string               `json:"description"`
	CreatedAt    int64                `json:"createdAt"`
	TotalAmount  Amount               `json:"totalAmount"`
	Participants []participantPayload `json:"participants"`
}

func (p billPayload) toBill() core.Bill {
	bill := core.Bill{
		Description: sanitizeInput(p.Description),
		CreatedAt:   p.CreatedAt,
		TotalAmount: float64(p.TotalAmount),
	}
	for _, pp := range p.Participants {
		bill.Participants = append(bill.Participants, core.Participant{
			ID:         pp.ID,
			Name:       sanitizeInput(pp.Name),
			Phone:      strings.TrimSpace(pp.Phone),
			Email:      strings.TrimSpace(pp.Email),
			AmountOwed: float64(pp.AmountOwed),
			Paid:       pp.Paid,
		})
	}
	return bill
}

type paidPayload struct {
	Paid bool `json:"paid"`
}

type reminderPayload struct {
	Participant string `json:"participant"`
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, 1<<20)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// parseBillFilter builds the filter from listing query parameters.
// Unknown status, mode or filter values fall back to defaults instead
// of erroring; the listing stays usable with a stale client.
func parseBillFilter(query url.Values) (core.BillFilter, int) {
	filter := core.BillFilter{
		Status: core.StatusActive,
		Mode:   core.SearchByDescription,
	}

	if v := strings.TrimSpace(query.Get("status")); v != "" {
		if status := core.BillStatus(v); status.Validate() == nil {
			filter.Status = status
		}
	}
	filter.Query = strings.TrimSpace(query.Get("q"))
	if v := strings.TrimSpace(query.Get("mode")); v == string(core.SearchByParticipant) {
		filter.Mode = core.SearchByParticipant
	}
	filter.Participant = strings.TrimSpace(query.Get("participant"))
	switch core.SummaryFilter(strings.TrimSpace(query.Get("filter"))) {
	case core.FilterOthersOweMe:
		filter.Summary = core.FilterOthersOweMe
	case core.FilterIOwe:
		filter.Summary = core.FilterIOwe
	}

	page := 1
	if v := strings.TrimSpace(query.Get("page")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			page = p
		}
	}

	return filter, page
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
