package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"splittab/internal/core"
)

// fakeArchiveStore is an in-memory BillArchiveStore for timing tests.
type fakeArchiveStore struct {
	mu       sync.Mutex
	bills    []core.Bill
	archived [][]string
}

func (f *fakeArchiveStore) ListBills(ctx context.Context) ([]core.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Bill, len(f.bills))
	copy(out, f.bills)
	return out, nil
}

func (f *fakeArchiveStore) ArchiveBills(ctx context.Context, billIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived = append(f.archived, billIDs)
	for i := range f.bills {
		for _, id := range billIDs {
			if f.bills[i].ID == id {
				f.bills[i].Status = core.StatusArchived
			}
		}
	}
	return nil
}

func (f *fakeArchiveStore) setBills(bills []core.Bill) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bills = bills
}

func (f *fakeArchiveStore) archiveCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.archived))
	copy(out, f.archived)
	return out
}

func paidBill(id string) core.Bill {
	return core.Bill{
		ID:          id,
		Description: "Bill " + id,
		CreatedAt:   100,
		TotalAmount: 10,
		Status:      core.StatusActive,
		Participants: []core.Participant{
			{ID: id + "-p", Name: "Bob", AmountOwed: 10, Paid: true},
		},
	}
}

func startArchiver(t *testing.T, store BillArchiveStore, delay time.Duration, onArchived func([]string)) *Archiver {
	t.Helper()
	a := NewArchiver(store, delay, onArchived)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		a.Stop(ctx)
	})
	return a
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestArchiverArchivesAfterDelay(t *testing.T) {
	store := &fakeArchiveStore{}
	store.setBills([]core.Bill{paidBill("b1")})

	done := make(chan []string, 1)
	a := startArchiver(t, store, 20*time.Millisecond, func(ids []string) { done <- ids })
	a.Schedule()

	select {
	case ids := <-done:
		if len(ids) != 1 || ids[0] != "b1" {
			t.Errorf("archived = %v, want [b1]", ids)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bill was not archived within deadline")
	}
}

func TestArchiverBatchesCandidates(t *testing.T) {
	store := &fakeArchiveStore{}
	store.setBills([]core.Bill{paidBill("b1"), paidBill("b2")})

	done := make(chan []string, 1)
	a := startArchiver(t, store, 20*time.Millisecond, func(ids []string) { done <- ids })
	a.Schedule()

	select {
	case ids := <-done:
		if len(ids) != 2 {
			t.Errorf("archived = %v, want both bills in one batch", ids)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bills were not archived within deadline")
	}

	if calls := store.archiveCalls(); len(calls) != 1 {
		t.Errorf("ArchiveBills called %d times, want 1", len(calls))
	}
}

func TestArchiverCancelsWhenSetEmpties(t *testing.T) {
	store := &fakeArchiveStore{}
	store.setBills([]core.Bill{paidBill("b1")})

	a := startArchiver(t, store, 100*time.Millisecond, nil)
	a.Schedule()

	// Flip the paid flag back before the countdown elapses.
	time.Sleep(20 * time.Millisecond)
	unpaid := paidBill("b1")
	unpaid.Participants[0].Paid = false
	store.setBills([]core.Bill{unpaid})
	a.Schedule()

	time.Sleep(300 * time.Millisecond)
	if calls := store.archiveCalls(); len(calls) != 0 {
		t.Errorf("ArchiveBills called %d times, want 0 after cancel", len(calls))
	}
}

func TestArchiverRechecksOnFire(t *testing.T) {
	store := &fakeArchiveStore{}
	store.setBills([]core.Bill{paidBill("b1")})

	a := startArchiver(t, store, 50*time.Millisecond, nil)
	a.Schedule()

	// Regress eligibility without a second Schedule call. The timer
	// still fires, but the re-check must skip the bill.
	unpaid := paidBill("b1")
	unpaid.Participants[0].Paid = false
	store.setBills([]core.Bill{unpaid})

	time.Sleep(300 * time.Millisecond)
	if calls := store.archiveCalls(); len(calls) != 0 {
		t.Errorf("ArchiveBills called %d times, want 0 after regression", len(calls))
	}
}

func TestArchiverScheduleCoalesces(t *testing.T) {
	store := &fakeArchiveStore{}
	store.setBills([]core.Bill{paidBill("b1")})

	a := startArchiver(t, store, 20*time.Millisecond, nil)
	for i := 0; i < 10; i++ {
		a.Schedule()
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(store.archiveCalls()) > 0 }) {
		t.Fatal("bill was not archived within deadline")
	}
	// Coalesced kicks must still produce a single commit.
	time.Sleep(100 * time.Millisecond)
	if calls := store.archiveCalls(); len(calls) != 1 {
		t.Errorf("ArchiveBills called %d times, want 1", len(calls))
	}
}

func TestArchiverLifecycle(t *testing.T) {
	store := &fakeArchiveStore{}
	a := NewArchiver(store, 20*time.Millisecond, nil)
	ctx := context.Background()

	if a.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !a.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if err := a.Start(ctx); err == nil {
		t.Error("second Start() should fail while running")
	}
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if a.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	// Stop on a stopped archiver is a no-op.
	if err := a.Stop(ctx); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	// Schedule after Stop must not panic.
	a.Schedule()
}

func TestArchiverStopDiscardsPendingCountdown(t *testing.T) {
	store := &fakeArchiveStore{}
	store.setBills([]core.Bill{paidBill("b1")})

	a := NewArchiver(store, 100*time.Millisecond, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	a.Schedule()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if calls := store.archiveCalls(); len(calls) != 0 {
		t.Errorf("ArchiveBills called %d times, want 0 after Stop", len(calls))
	}
}
