package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"splittab/internal/amqp"
	"splittab/internal/core"
	"splittab/internal/storage"
)

type fakePublisher struct {
	published []*amqp.ReminderMessage
	err       error
}

func (f *fakePublisher) PublishReminder(ctx context.Context, msg *amqp.ReminderMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func newReminderFixture(t *testing.T) (*ReminderService, *fakePublisher, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	pub := &fakePublisher{}
	return NewReminderService(repo, pub, "Me"), pub, repo
}

func seedDebts(t *testing.T, repo *storage.SQLiteRepository) {
	t.Helper()
	ctx := context.Background()
	bills := []*core.Bill{
		{
			Description: "Dinner",
			CreatedAt:   100,
			TotalAmount: 30,
			Participants: []core.Participant{
				{Name: "Me", AmountOwed: 10, Paid: true},
				{Name: "Bob", Phone: "555-0100", AmountOwed: 20},
			},
		},
		{
			Description: "Taxi",
			CreatedAt:   200,
			TotalAmount: 12,
			Participants: []core.Participant{
				{Name: "bob", AmountOwed: 7},
				{Name: "Amy", Email: "amy@example.com", AmountOwed: 5},
			},
		},
	}
	for _, b := range bills {
		if err := repo.CreateBill(ctx, b); err != nil {
			t.Fatalf("CreateBill() error = %v", err)
		}
	}
}

func TestRemindParticipant(t *testing.T) {
	svc, pub, repo := newReminderFixture(t)
	seedDebts(t, repo)

	if err := svc.RemindParticipant(context.Background(), "Bob"); err != nil {
		t.Fatalf("RemindParticipant() error = %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published = %d messages, want 1", len(pub.published))
	}

	msg := pub.published[0]
	if msg.ParticipantName != "Bob" {
		t.Errorf("ParticipantName = %q, want Bob", msg.ParticipantName)
	}
	if msg.Total != 27 {
		t.Errorf("Total = %v, want 27 across both bills", msg.Total)
	}
	if msg.Phone != "555-0100" {
		t.Errorf("Phone = %q, want contact info from rollup", msg.Phone)
	}
	if len(msg.Items) != 2 {
		t.Errorf("Items = %d, want one per unpaid bill", len(msg.Items))
	}
}

func TestRemindParticipantNothingOwed(t *testing.T) {
	svc, pub, repo := newReminderFixture(t)
	seedDebts(t, repo)

	err := svc.RemindParticipant(context.Background(), "Unknown")
	if !errors.Is(err, ErrNothingOwed) {
		t.Errorf("RemindParticipant() error = %v, want ErrNothingOwed", err)
	}
	if len(pub.published) != 0 {
		t.Errorf("published = %d messages, want 0", len(pub.published))
	}
}

func TestRemindAllDebtors(t *testing.T) {
	svc, pub, repo := newReminderFixture(t)
	seedDebts(t, repo)

	sent, err := svc.RemindAllDebtors(context.Background())
	if err != nil {
		t.Fatalf("RemindAllDebtors() error = %v", err)
	}
	if sent != 2 {
		t.Errorf("sent = %d, want Bob and Amy", sent)
	}
	// Largest debt first, matching the rollup order.
	if pub.published[0].ParticipantName != "Bob" || pub.published[1].ParticipantName != "Amy" {
		t.Errorf("order = %q, %q; want Bob, Amy", pub.published[0].ParticipantName, pub.published[1].ParticipantName)
	}
}

func TestRemindAllDebtorsPublishFailure(t *testing.T) {
	svc, pub, repo := newReminderFixture(t)
	seedDebts(t, repo)
	pub.err = errors.New("broker down")

	sent, err := svc.RemindAllDebtors(context.Background())
	if err == nil {
		t.Fatal("RemindAllDebtors() should surface the publish error")
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
}

func TestRemindWithoutPublisher(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	seedDebts(t, repo)

	svc := NewReminderService(repo, nil, "Me")
	// Without a broker the reminder is skipped, not failed.
	if err := svc.RemindParticipant(context.Background(), "Bob"); err != nil {
		t.Errorf("RemindParticipant() error = %v, want nil", err)
	}
}
