package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"splittab/internal/amqp"
	"splittab/internal/core"
	"splittab/internal/storage"
)

// ErrNothingOwed is returned when a reminder is requested for someone
// with no outstanding balance.
var ErrNothingOwed = errors.New("participant owes nothing")

// ReminderPublisher publishes reminder messages for async delivery.
type ReminderPublisher interface {
	PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error
}

// ReminderService builds payment reminders from the debtor rollup and
// hands them to the message queue. Delivery happens in the worker.
type ReminderService struct {
	storage   *storage.SQLiteRepository
	publisher ReminderPublisher
	owner     string
}

func NewReminderService(storage *storage.SQLiteRepository, publisher ReminderPublisher, owner string) *ReminderService {
	return &ReminderService{
		storage:   storage,
		publisher: publisher,
		owner:     owner,
	}
}

// RemindParticipant publishes one reminder with the participant's full
// unpaid breakdown and contact info.
func (s *ReminderService) RemindParticipant(ctx context.Context, name string) error {
	bills, err := s.storage.ListBills(ctx)
	if err != nil {
		return fmt.Errorf("list bills: %w", err)
	}

	items, total := core.ParticipantDebts(bills, name)
	if total < core.MinOwedThreshold {
		return fmt.Errorf("%s: %w", name, ErrNothingOwed)
	}

	entry, ok := findDebtor(core.DebtorRollup(bills, s.owner), name)
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNothingOwed)
	}

	return s.publish(ctx, entry, items, total)
}

// RemindAllDebtors publishes a reminder for every outstanding debtor
// and returns how many were sent. A publish failure stops the run.
func (s *ReminderService) RemindAllDebtors(ctx context.Context) (int, error) {
	bills, err := s.storage.ListBills(ctx)
	if err != nil {
		return 0, fmt.Errorf("list bills: %w", err)
	}

	sent := 0
	for _, entry := range core.DebtorRollup(bills, s.owner) {
		items, total := core.ParticipantDebts(bills, entry.Name)
		if err := s.publish(ctx, entry, items, total); err != nil {
			return sent, err
		}
		sent++
	}

	slog.InfoContext(ctx, "Reminders published", "count", sent)
	return sent, nil
}

func (s *ReminderService) publish(ctx context.Context, entry core.RollupEntry, items []core.DebtItem, total float64) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Reminder publisher not available, skipping", "participant", entry.Name)
		return nil
	}

	msg := amqp.NewReminderMessage(entry.Name, entry.Phone, entry.Email, items, total)
	if err := s.publisher.PublishReminder(ctx, msg); err != nil {
		return fmt.Errorf("publish reminder for %s: %w", entry.Name, err)
	}
	return nil
}

func findDebtor(entries []core.RollupEntry, name string) (core.RollupEntry, bool) {
	for _, e := range entries {
		if core.SameName(e.Name, name) {
			return e, true
		}
	}
	return core.RollupEntry{}, false
}
