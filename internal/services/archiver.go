package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"splittab/internal/core"
)

// DefaultArchiveDelay is the grace period between a bill becoming fully
// paid and the automatic archive commit. Long enough to absorb a
// mis-tap on the paid toggle, short enough to feel immediate.
const DefaultArchiveDelay = 600 * time.Millisecond

// BillArchiveStore is the slice of storage the archiver needs.
type BillArchiveStore interface {
	ListBills(ctx context.Context) ([]core.Bill, error)
	ArchiveBills(ctx context.Context, billIDs []string) error
}

// Archiver watches for bills whose participants are all paid and
// archives them as a batch after a short delay. Every Schedule call
// restarts the countdown, and eligibility is checked again when the
// timer fires, so a paid flag flipped back during the grace period
// cancels the archive for that bill.
type Archiver struct {
	store      BillArchiveStore
	delay      time.Duration
	onArchived func(billIDs []string)

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	kickCh  chan struct{}
}

// NewArchiver creates an archiver. onArchived may be nil; when set it
// runs after each successful batch commit (cache invalidation hooks).
func NewArchiver(store BillArchiveStore, delay time.Duration, onArchived func(billIDs []string)) *Archiver {
	if delay <= 0 {
		delay = DefaultArchiveDelay
	}
	return &Archiver{
		store:      store,
		delay:      delay,
		onArchived: onArchived,
	}
}

// Start begins the archive loop. Returns an error if already running.
func (a *Archiver) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("archiver is already running")
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	a.kickCh = make(chan struct{}, 1)
	a.mu.Unlock()

	go a.runLoop(ctx)

	slog.InfoContext(ctx, "Archiver started", "delay", a.delay)
	return nil
}

// Stop gracefully stops the archiver. A pending countdown is discarded
// without archiving.
func (a *Archiver) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	close(a.stopCh)

	select {
	case <-a.doneCh:
		slog.InfoContext(ctx, "Archiver stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Archiver stop timed out")
		return ctx.Err()
	}

	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	return nil
}

// IsRunning returns whether the archiver loop is active.
func (a *Archiver) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Schedule asks the archiver to re-evaluate eligibility. Safe to call
// after every bill mutation; signals coalesce, and a no-op evaluation
// is cheap.
func (a *Archiver) Schedule() {
	a.mu.Lock()
	running := a.running
	kickCh := a.kickCh
	a.mu.Unlock()
	if !running {
		return
	}
	select {
	case kickCh <- struct{}{}:
	default:
	}
}

func (a *Archiver) runLoop(ctx context.Context) {
	defer close(a.doneCh)

	timer := time.NewTimer(a.delay)
	if !timer.Stop() {
		<-timer.C
	}
	armed := false

	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case <-a.kickCh:
			ids, err := a.candidates(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to evaluate archive candidates", "error", err)
				continue
			}
			if len(ids) == 0 {
				if armed {
					if !timer.Stop() {
						<-timer.C
					}
					armed = false
					slog.DebugContext(ctx, "Pending archive cancelled")
				}
				continue
			}
			// Restart the countdown on every change to the eligible set.
			if armed && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(a.delay)
			armed = true
			slog.DebugContext(ctx, "Archive countdown started", "candidates", len(ids))
		case <-timer.C:
			armed = false
			a.fire(ctx)
		}
	}
}

func (a *Archiver) candidates(ctx context.Context) ([]string, error) {
	bills, err := a.store.ListBills(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return core.ArchiveCandidates(bills), nil
}

// fire re-checks eligibility and commits the surviving candidates in
// one batch. Bills that regressed during the countdown are left alone.
func (a *Archiver) fire(ctx context.Context) {
	ids, err := a.candidates(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to re-check archive candidates", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	if err := a.store.ArchiveBills(ctx, ids); err != nil {
		slog.ErrorContext(ctx, "Failed to archive bills", "count", len(ids), "error", err)
		return
	}

	slog.InfoContext(ctx, "Bills auto-archived", "count", len(ids))

	if a.onArchived != nil {
		a.onArchived(ids)
	}
}
