// Package storage provides the SQLite-backed persistence layer.
//
// The aggregation code never touches the database directly: it works on
// bill collections read from here, and every write is expected to be
// visible to the next read.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"splittab/internal/core"
)

// ErrNotFound is returned when a bill or imported bill does not exist.
var ErrNotFound = errors.New("not found")

// ImportAction describes what the import merge did with one record.
type ImportAction string

const (
	ImportAdded   ImportAction = "added"
	ImportUpdated ImportAction = "updated"
	ImportSkipped ImportAction = "skipped"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateBill persists a new bill with its participants. Missing IDs and
// timestamps are filled in here.
func (r *SQLiteRepository) CreateBill(ctx context.Context, bill *core.Bill) error {
	fillBillDefaults(bill)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertBillTx(ctx, tx, bill); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Bill saved",
		"id", bill.ID,
		"description", bill.Description,
		"total_amount", bill.TotalAmount,
		"participants", len(bill.Participants))

	return nil
}

// GetBill retrieves a bill by ID with its participants in display order.
func (r *SQLiteRepository) GetBill(ctx context.Context, billID string) (*core.Bill, error) {
	bill := &core.Bill{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, description, created_at, total_amount, status FROM bills WHERE id = ?",
		billID,
	).Scan(&bill.ID, &bill.Description, &bill.CreatedAt, &bill.TotalAmount, &bill.Status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bill %s: %w", billID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, phone, email, amount_owed, paid FROM participants WHERE bill_id = ? ORDER BY position",
		billID,
	)
	if err != nil {
		return nil, fmt.Errorf("get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p core.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.AmountOwed, &p.Paid); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		bill.Participants = append(bill.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return bill, nil
}

// ListBills returns every bill with participants, newest first.
func (r *SQLiteRepository) ListBills(ctx context.Context) ([]core.Bill, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, description, created_at, total_amount, status FROM bills ORDER BY created_at DESC, id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var bills []core.Bill
	index := make(map[string]int)
	for rows.Next() {
		var b core.Bill
		if err := rows.Scan(&b.ID, &b.Description, &b.CreatedAt, &b.TotalAmount, &b.Status); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		index[b.ID] = len(bills)
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bills: %w", err)
	}

	prows, err := r.db.QueryContext(ctx,
		"SELECT bill_id, id, name, phone, email, amount_owed, paid FROM participants ORDER BY bill_id, position",
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var (
			billID string
			p      core.Participant
		)
		if err := prows.Scan(&billID, &p.ID, &p.Name, &p.Phone, &p.Email, &p.AmountOwed, &p.Paid); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		if i, ok := index[billID]; ok {
			bills[i].Participants = append(bills[i].Participants, p)
		}
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}

	return bills, nil
}

// UpdateBill replaces an existing bill and its participant list.
func (r *SQLiteRepository) UpdateBill(ctx context.Context, bill *core.Bill) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateBillTx(ctx, tx, bill); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteBill removes a bill permanently. Participants go with it via the
// foreign key cascade; there is no tombstone.
func (r *SQLiteRepository) DeleteBill(ctx context.Context, billID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", billID)
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bill %s: %w", billID, ErrNotFound)
	}
	slog.InfoContext(ctx, "Bill deleted", "id", billID)
	return nil
}

// SetParticipantPaid flips one participant's paid flag.
func (r *SQLiteRepository) SetParticipantPaid(ctx context.Context, billID, participantID string, paid bool) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE participants SET paid = ? WHERE bill_id = ? AND id = ?",
		paid, billID, participantID,
	)
	if err != nil {
		return fmt.Errorf("set participant paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("participant %s of bill %s: %w", participantID, billID, ErrNotFound)
	}
	return nil
}

// SetBillStatus archives or unarchives a single bill.
func (r *SQLiteRepository) SetBillStatus(ctx context.Context, billID string, status core.BillStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, "UPDATE bills SET status = ? WHERE id = ?", status, billID)
	if err != nil {
		return fmt.Errorf("set bill status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bill %s: %w", billID, ErrNotFound)
	}
	return nil
}

// ArchiveBills marks all given bills archived in one commit. Unknown IDs
// are ignored so a bill deleted between the decision and the commit does
// not fail the batch.
func (r *SQLiteRepository) ArchiveBills(ctx context.Context, billIDs []string) error {
	if len(billIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range billIDs {
		if _, err := tx.ExecContext(ctx,
			"UPDATE bills SET status = ? WHERE id = ? AND status = ?",
			core.StatusArchived, id, core.StatusActive,
		); err != nil {
			return fmt.Errorf("archive bill %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Bills archived", "count", len(billIDs))
	return nil
}

// ImportCounts reports the outcome of an import merge.
type ImportCounts struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// ImportBills reconciles a batch of bills against the stored collection
// in a single transaction: new IDs are added, changed records updated,
// unchanged duplicates skipped. The first invalid record aborts the
// whole batch.
func (r *SQLiteRepository) ImportBills(ctx context.Context, bills []core.Bill) (ImportCounts, error) {
	var counts ImportCounts

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range bills {
		bill := bills[i]
		fillBillDefaults(&bill)
		if err := bill.Validate(); err != nil {
			return ImportCounts{}, fmt.Errorf("import bill %q: %w", bill.ID, err)
		}

		existing, err := getBillTx(ctx, tx, bill.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			if err := insertBillTx(ctx, tx, &bill); err != nil {
				return ImportCounts{}, err
			}
			counts.Added++
		case err != nil:
			return ImportCounts{}, err
		case existing.Equal(bill):
			counts.Skipped++
		default:
			if err := updateBillTx(ctx, tx, &bill); err != nil {
				return ImportCounts{}, err
			}
			counts.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return ImportCounts{}, fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Bills imported",
		"added", counts.Added, "updated", counts.Updated, "skipped", counts.Skipped)
	return counts, nil
}

func fillBillDefaults(bill *core.Bill) {
	if bill.ID == "" {
		bill.ID = uuid.New().String()
	}
	if bill.CreatedAt == 0 {
		bill.CreatedAt = time.Now().Unix()
	}
	if bill.Status == "" {
		bill.Status = core.StatusActive
	}
	for i := range bill.Participants {
		if bill.Participants[i].ID == "" {
			bill.Participants[i].ID = uuid.New().String()
		}
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBillTx(ctx context.Context, tx *sql.Tx, bill *core.Bill) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO bills (id, description, created_at, total_amount, status) VALUES (?, ?, ?, ?, ?)",
		bill.ID, bill.Description, bill.CreatedAt, bill.TotalAmount, bill.Status,
	)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return insertParticipants(ctx, tx, bill)
}

func updateBillTx(ctx context.Context, tx *sql.Tx, bill *core.Bill) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE bills SET description = ?, created_at = ?, total_amount = ?, status = ? WHERE id = ?",
		bill.Description, bill.CreatedAt, bill.TotalAmount, bill.Status, bill.ID,
	)
	if err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bill %s: %w", bill.ID, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM participants WHERE bill_id = ?", bill.ID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	return insertParticipants(ctx, tx, bill)
}

func insertParticipants(ctx context.Context, e execer, bill *core.Bill) error {
	for i, p := range bill.Participants {
		_, err := e.ExecContext(ctx,
			"INSERT INTO participants (id, bill_id, name, phone, email, amount_owed, paid, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			p.ID, bill.ID, p.Name, p.Phone, p.Email, p.AmountOwed, p.Paid, i,
		)
		if err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	return nil
}

func getBillTx(ctx context.Context, tx *sql.Tx, billID string) (*core.Bill, error) {
	bill := &core.Bill{}
	err := tx.QueryRowContext(ctx,
		"SELECT id, description, created_at, total_amount, status FROM bills WHERE id = ?",
		billID,
	).Scan(&bill.ID, &bill.Description, &bill.CreatedAt, &bill.TotalAmount, &bill.Status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("bill %s: %w", billID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT id, name, phone, email, amount_owed, paid FROM participants WHERE bill_id = ? ORDER BY position",
		billID,
	)
	if err != nil {
		return nil, fmt.Errorf("get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p core.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.Email, &p.AmountOwed, &p.Paid); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		bill.Participants = append(bill.Participants, p)
	}
	return bill, rows.Err()
}

// --- Imported bills ---
//
// The remote snapshot is stored as JSON: it is immutable locally and is
// only ever replaced wholesale on refresh, so relational columns would
// buy nothing.

// MergeImportedBill reconciles one received imported bill. Local-only
// state (portion paid, local archive status) is preserved on update.
func (r *SQLiteRepository) MergeImportedBill(ctx context.Context, ib *core.ImportedBill) (ImportAction, error) {
	if ib.ID == "" {
		ib.ID = uuid.New().String()
	}
	if ib.Status == "" {
		ib.Status = core.StatusActive
	}
	if err := ib.Validate(); err != nil {
		return "", fmt.Errorf("imported bill %q: %w", ib.ID, err)
	}

	snapshot, err := json.Marshal(ib.Bill)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	existing, err := r.GetImportedBill(ctx, ib.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO imported_bills (id, snapshot, my_participant_id, my_portion_paid, status, last_updated_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			ib.ID, string(snapshot), ib.MyParticipantID, ib.MyPortionPaid, ib.Status, ib.LastUpdatedAt, time.Now().Unix(),
		)
		if err != nil {
			return "", fmt.Errorf("insert imported bill: %w", err)
		}
		return ImportAdded, nil
	case err != nil:
		return "", err
	case existing.Bill.Equal(ib.Bill) && existing.LastUpdatedAt == ib.LastUpdatedAt:
		return ImportSkipped, nil
	default:
		_, err := r.db.ExecContext(ctx,
			"UPDATE imported_bills SET snapshot = ?, my_participant_id = ?, last_updated_at = ? WHERE id = ?",
			string(snapshot), ib.MyParticipantID, ib.LastUpdatedAt, ib.ID,
		)
		if err != nil {
			return "", fmt.Errorf("update imported bill: %w", err)
		}
		return ImportUpdated, nil
	}
}

func (r *SQLiteRepository) GetImportedBill(ctx context.Context, id string) (*core.ImportedBill, error) {
	var (
		ib       core.ImportedBill
		snapshot string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, snapshot, my_participant_id, my_portion_paid, status, last_updated_at FROM imported_bills WHERE id = ?",
		id,
	).Scan(&ib.ID, &snapshot, &ib.MyParticipantID, &ib.MyPortionPaid, &ib.Status, &ib.LastUpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("imported bill %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get imported bill: %w", err)
	}
	if err := json.Unmarshal([]byte(snapshot), &ib.Bill); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &ib, nil
}

// ListImportedBills returns all imported bills, newest snapshot first.
func (r *SQLiteRepository) ListImportedBills(ctx context.Context) ([]core.ImportedBill, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, snapshot, my_participant_id, my_portion_paid, status, last_updated_at FROM imported_bills ORDER BY created_at DESC, id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("list imported bills: %w", err)
	}
	defer rows.Close()

	var out []core.ImportedBill
	for rows.Next() {
		var (
			ib       core.ImportedBill
			snapshot string
		)
		if err := rows.Scan(&ib.ID, &snapshot, &ib.MyParticipantID, &ib.MyPortionPaid, &ib.Status, &ib.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("scan imported bill: %w", err)
		}
		if err := json.Unmarshal([]byte(snapshot), &ib.Bill); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		out = append(out, ib)
	}
	return out, rows.Err()
}

// SetImportedPortionPaid flips the local-only "my portion paid" flag.
// The remote snapshot is untouched.
func (r *SQLiteRepository) SetImportedPortionPaid(ctx context.Context, id string, paid bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE imported_bills SET my_portion_paid = ? WHERE id = ?", paid, id)
	if err != nil {
		return fmt.Errorf("set portion paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("imported bill %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetImportedStatus archives or unarchives an imported bill locally,
// independent of the remote bill's state.
func (r *SQLiteRepository) SetImportedStatus(ctx context.Context, id string, status core.BillStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, "UPDATE imported_bills SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("set imported status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("imported bill %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteImportedBill(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM imported_bills WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete imported bill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("imported bill %s: %w", id, ErrNotFound)
	}
	return nil
}
