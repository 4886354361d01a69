// Package worker delivers payment reminders consumed from the message
// queue. Delivery here means rendering the notification text and
// handing it to whatever channel is configured; with none, reminders
// are logged.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"splittab/internal/amqp"
)

// Notifier sends one rendered reminder to a participant.
type Notifier interface {
	Notify(ctx context.Context, recipient, message string) error
}

// ReminderWorker turns queued reminder messages into notifications.
type ReminderWorker struct {
	notifier Notifier
}

func NewReminderWorker(notifier Notifier) *ReminderWorker {
	return &ReminderWorker{notifier: notifier}
}

// HandleReminder processes a single reminder message from the queue.
func (w *ReminderWorker) HandleReminder(ctx context.Context, msg *amqp.ReminderMessage) error {
	text := RenderReminder(msg)
	recipient := msg.Phone
	if recipient == "" {
		recipient = msg.Email
	}

	if w.notifier == nil || recipient == "" {
		// No delivery channel; the log line is the notification.
		slog.InfoContext(ctx, "Reminder ready",
			"participant", msg.ParticipantName,
			"total", msg.Total,
			"message", text)
		return nil
	}

	if err := w.notifier.Notify(ctx, recipient, text); err != nil {
		return fmt.Errorf("notify %s: %w", msg.ParticipantName, err)
	}

	slog.InfoContext(ctx, "Reminder delivered",
		"participant", msg.ParticipantName,
		"recipient", recipient,
		"total", msg.Total)
	return nil
}

// RenderReminder builds the human-readable reminder text with the
// per-bill breakdown.
func RenderReminder(msg *amqp.ReminderMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s, you have %.2f outstanding", msg.ParticipantName, msg.Total)
	if len(msg.Items) > 0 {
		b.WriteString(":")
		for _, item := range msg.Items {
			fmt.Fprintf(&b, "\n- %s: %.2f", item.Description, item.Amount)
		}
	}
	return b.String()
}
