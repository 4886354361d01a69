package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"splittab/internal/amqp"
	"splittab/internal/core"
)

type fakeNotifier struct {
	recipient string
	message   string
	err       error
}

func (f *fakeNotifier) Notify(_ context.Context, recipient, message string) error {
	if f.err != nil {
		return f.err
	}
	f.recipient = recipient
	f.message = message
	return nil
}

func reminderFixture() *amqp.ReminderMessage {
	return &amqp.ReminderMessage{
		ParticipantName: "Bob",
		Phone:           "555-0100",
		Total:           27,
		Items: []core.DebtItem{
			{BillID: "b1", Description: "Dinner", Amount: 20},
			{BillID: "b2", Description: "Taxi", Amount: 7},
		},
	}
}

func TestRenderReminder(t *testing.T) {
	text := RenderReminder(reminderFixture())

	if !strings.Contains(text, "Bob") || !strings.Contains(text, "27.00") {
		t.Errorf("reminder text missing name or total: %q", text)
	}
	if !strings.Contains(text, "Dinner: 20.00") || !strings.Contains(text, "Taxi: 7.00") {
		t.Errorf("reminder text missing breakdown: %q", text)
	}
}

func TestRenderReminderNoItems(t *testing.T) {
	msg := &amqp.ReminderMessage{ParticipantName: "Amy", Total: 5}
	text := RenderReminder(msg)
	if strings.Contains(text, "\n") {
		t.Errorf("reminder without items should be a single line: %q", text)
	}
}

func TestHandleReminderDelivers(t *testing.T) {
	notifier := &fakeNotifier{}
	w := NewReminderWorker(notifier)

	if err := w.HandleReminder(context.Background(), reminderFixture()); err != nil {
		t.Fatalf("HandleReminder() error = %v", err)
	}
	if notifier.recipient != "555-0100" {
		t.Errorf("recipient = %q, want the phone number", notifier.recipient)
	}
	if !strings.Contains(notifier.message, "Dinner") {
		t.Errorf("message = %q, want breakdown included", notifier.message)
	}
}

func TestHandleReminderFallsBackToEmail(t *testing.T) {
	notifier := &fakeNotifier{}
	w := NewReminderWorker(notifier)

	msg := reminderFixture()
	msg.Phone = ""
	msg.Email = "bob@example.com"
	if err := w.HandleReminder(context.Background(), msg); err != nil {
		t.Fatalf("HandleReminder() error = %v", err)
	}
	if notifier.recipient != "bob@example.com" {
		t.Errorf("recipient = %q, want the email address", notifier.recipient)
	}
}

func TestHandleReminderWithoutChannel(t *testing.T) {
	w := NewReminderWorker(nil)

	// No notifier configured: the reminder is logged, not failed,
	// so the queue message still gets acked.
	if err := w.HandleReminder(context.Background(), reminderFixture()); err != nil {
		t.Errorf("HandleReminder() error = %v, want nil", err)
	}
}

func TestHandleReminderNotifyFailure(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("smtp down")}
	w := NewReminderWorker(notifier)

	if err := w.HandleReminder(context.Background(), reminderFixture()); err == nil {
		t.Error("HandleReminder() should surface notifier errors for requeue")
	}
}
