package services

import (
	"context"
	"fmt"
	"log/slog"

	"splittab/internal/core"
	"splittab/internal/storage"
)

// DefaultPageSize is the number of bills per page in listings.
const DefaultPageSize = 15

// BillPage is one page of a filtered bill listing.
type BillPage struct {
	Bills      []core.Bill `json:"bills"`
	Page       int         `json:"page"`
	TotalPages int         `json:"totalPages"`
	TotalBills int         `json:"totalBills"`
}

// BillService orchestrates bill operations across SQLite, the archiver
// and the derived aggregations. Every mutation nudges the archiver so
// fully paid bills get picked up without polling.
type BillService struct {
	storage  *storage.SQLiteRepository
	archiver *Archiver
	owner    string
	pageSize int
}

func NewBillService(storage *storage.SQLiteRepository, archiver *Archiver, owner string, pageSize int) *BillService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &BillService{
		storage:  storage,
		archiver: archiver,
		owner:    owner,
		pageSize: pageSize,
	}
}

// Owner returns the configured owner display name.
func (s *BillService) Owner() string {
	return s.owner
}

func (s *BillService) schedule() {
	if s.archiver != nil {
		s.archiver.Schedule()
	}
}

// CreateBill validates and persists a new bill.
func (s *BillService) CreateBill(ctx context.Context, bill *core.Bill) error {
	if bill.Status == "" {
		bill.Status = core.StatusActive
	}
	if err := bill.Validate(); err != nil {
		return err
	}
	if err := s.storage.CreateBill(ctx, bill); err != nil {
		return fmt.Errorf("create bill: %w", err)
	}
	s.schedule()
	return nil
}

func (s *BillService) GetBill(ctx context.Context, billID string) (*core.Bill, error) {
	return s.storage.GetBill(ctx, billID)
}

func (s *BillService) ListBills(ctx context.Context) ([]core.Bill, error) {
	return s.storage.ListBills(ctx)
}

// UpdateBill validates and replaces an existing bill.
func (s *BillService) UpdateBill(ctx context.Context, bill *core.Bill) error {
	if err := bill.Validate(); err != nil {
		return err
	}
	if err := s.storage.UpdateBill(ctx, bill); err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	s.schedule()
	return nil
}

func (s *BillService) DeleteBill(ctx context.Context, billID string) error {
	if err := s.storage.DeleteBill(ctx, billID); err != nil {
		return err
	}
	s.schedule()
	return nil
}

// SetParticipantPaid toggles a participant's paid flag. This is the
// mutation that most often makes a bill archive-eligible.
func (s *BillService) SetParticipantPaid(ctx context.Context, billID, participantID string, paid bool) error {
	if err := s.storage.SetParticipantPaid(ctx, billID, participantID, paid); err != nil {
		return err
	}
	s.schedule()
	return nil
}

// ArchiveBill archives a bill manually, ahead of the automatic policy.
func (s *BillService) ArchiveBill(ctx context.Context, billID string) error {
	if err := s.storage.SetBillStatus(ctx, billID, core.StatusArchived); err != nil {
		return err
	}
	s.schedule()
	return nil
}

// UnarchiveBill restores an archived bill to the active collection.
func (s *BillService) UnarchiveBill(ctx context.Context, billID string) error {
	if err := s.storage.SetBillStatus(ctx, billID, core.StatusActive); err != nil {
		return err
	}
	s.schedule()
	return nil
}

// Summary computes the owner's dashboard totals over active bills and
// active imported bills.
func (s *BillService) Summary(ctx context.Context) (core.Summary, error) {
	bills, err := s.storage.ListBills(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list bills: %w", err)
	}
	imported, err := s.storage.ListImportedBills(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list imported bills: %w", err)
	}
	return core.Summarize(bills, imported, s.owner), nil
}

// Rollup returns the per-participant aggregation, either outstanding
// debtors or settled-up participants.
func (s *BillService) Rollup(ctx context.Context, settled bool) ([]core.RollupEntry, error) {
	bills, err := s.storage.ListBills(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	if settled {
		return core.SettledRollup(bills, s.owner), nil
	}
	return core.DebtorRollup(bills, s.owner), nil
}

// ParticipantDebts returns the unpaid bill breakdown for one person.
func (s *BillService) ParticipantDebts(ctx context.Context, name string) ([]core.DebtItem, float64, error) {
	bills, err := s.storage.ListBills(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}
	items, total := core.ParticipantDebts(bills, name)
	return items, total, nil
}

// QueryBills applies the filter and returns the requested page.
// Out-of-range pages clamp to the nearest valid page.
func (s *BillService) QueryBills(ctx context.Context, filter core.BillFilter, page int) (BillPage, error) {
	bills, err := s.storage.ListBills(ctx)
	if err != nil {
		return BillPage{}, fmt.Errorf("list bills: %w", err)
	}

	filter.Owner = s.owner
	matched := core.FilterBills(bills, filter)

	total := len(matched)
	totalPages := (total + s.pageSize - 1) / s.pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * s.pageSize
	end := start + s.pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return BillPage{
		Bills:      matched[start:end],
		Page:       page,
		TotalPages: totalPages,
		TotalBills: total,
	}, nil
}

// Import reconciles a batch of exported bills into the collection.
func (s *BillService) Import(ctx context.Context, bills []core.Bill) (storage.ImportCounts, error) {
	counts, err := s.storage.ImportBills(ctx, bills)
	if err != nil {
		return storage.ImportCounts{}, err
	}
	s.schedule()
	return counts, nil
}

// ListImportedBills returns bills shared by other people.
func (s *BillService) ListImportedBills(ctx context.Context) ([]core.ImportedBill, error) {
	return s.storage.ListImportedBills(ctx)
}

func (s *BillService) GetImportedBill(ctx context.Context, id string) (*core.ImportedBill, error) {
	return s.storage.GetImportedBill(ctx, id)
}

// ReceiveImportedBill merges a shared bill snapshot from another user.
func (s *BillService) ReceiveImportedBill(ctx context.Context, ib *core.ImportedBill) (storage.ImportAction, error) {
	action, err := s.storage.MergeImportedBill(ctx, ib)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Imported bill merged", "id", ib.ID, "action", string(action))
	return action, nil
}

func (s *BillService) SetImportedPortionPaid(ctx context.Context, id string, paid bool) error {
	return s.storage.SetImportedPortionPaid(ctx, id, paid)
}

func (s *BillService) SetImportedStatus(ctx context.Context, id string, status core.BillStatus) error {
	return s.storage.SetImportedStatus(ctx, id, status)
}

func (s *BillService) DeleteImportedBill(ctx context.Context, id string) error {
	return s.storage.DeleteImportedBill(ctx, id)
}

// Close closes the underlying storage.
func (s *BillService) Close() error {
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			return fmt.Errorf("close bill service: %w", err)
		}
	}
	return nil
}
