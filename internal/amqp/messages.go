package amqp

import (
	"encoding/json"
	"time"

	"splittab/internal/core"
)

// ReminderMessage asks the worker to nudge one participant. It carries
// the rendered debt breakdown so the worker does not need database
// access to build the notification.
type ReminderMessage struct {
	ParticipantName string          `json:"participantName"`
	Phone           string          `json:"phone,omitempty"`
	Email           string          `json:"email,omitempty"`
	Total           float64         `json:"total"`
	Items           []core.DebtItem `json:"items"`
	Timestamp       time.Time       `json:"timestamp"`
}

func NewReminderMessage(name, phone, email string, items []core.DebtItem, total float64) *ReminderMessage {
	return &ReminderMessage{
		ParticipantName: name,
		Phone:           phone,
		Email:           email,
		Total:           total,
		Items:           items,
		Timestamp:       time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
