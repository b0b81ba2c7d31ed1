package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	cashbook "transport-ledger/internal/cashbook/domain"
	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/records"
)

const entryColumns = `id, seq, entry_type, category, amount, entry_date, running_balance, narration,
	bill_id, memo_id, loading_slip_id, party_id, supplier_id, vehicle_no, created_at, updated_at`

var indexedColumns = map[string]string{
	"type":            "entry_type",
	"category":        "category",
	"party_id":        "party_id",
	"supplier_id":     "supplier_id",
	"vehicle_no":      "vehicle_no",
	"bill_id":         "bill_id",
	"memo_id":         "memo_id",
	"loading_slip_id": "loading_slip_id",
}

// Repository persists cashbook entries in Postgres.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Append inserts e inside a transaction holding the cashbook advisory lock, so
// the predecessor read and the insert cannot interleave with another writer.
func (r *Repository) Append(ctx context.Context, e *cashbook.Entry) error {
	if r == nil || r.db == nil {
		return errors.New("cashbook repo: nil db")
	}
	if e == nil {
		return cashbook.ErrNilEntry
	}
	records.Stamp(&e.Meta, r.now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, cashbook.Scope); err != nil {
		_ = tx.Rollback()
		return err
	}

	var latest *cashbook.Entry
	row := tx.QueryRowContext(ctx, `
SELECT `+entryColumns+`
FROM cashbook_entries
ORDER BY entry_date DESC, created_at DESC, seq DESC
LIMIT 1`)
	latest, err = scanEntry(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return err
	}
	e.RunningBalance = cashbook.NextBalance(latest, e)

	err = tx.QueryRowContext(ctx, `
INSERT INTO cashbook_entries (
	id, entry_type, category, amount, entry_date, running_balance, narration,
	bill_id, memo_id, loading_slip_id, party_id, supplier_id, vehicle_no, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
RETURNING seq`,
		e.ID, string(e.Type), e.Category, e.Amount, e.Date, e.RunningBalance, e.Narration,
		e.BillID, e.MemoID, e.LoadingSlipID, e.PartyID, e.SupplierID, e.VehicleNo, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.Seq)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// List returns entries in chronological order.
func (r *Repository) List(ctx context.Context) ([]*cashbook.Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("cashbook repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+entryColumns+`
FROM cashbook_entries
ORDER BY entry_date ASC, created_at ASC, seq ASC`)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// ListBy returns entries whose indexed field equals value.
func (r *Repository) ListBy(ctx context.Context, field, value string) ([]*cashbook.Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("cashbook repo: nil db")
	}
	column, ok := indexedColumns[field]
	if !ok {
		return nil, fmt.Errorf("cashbook repo: field %q is not indexed", field)
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM cashbook_entries
WHERE %s = $1
ORDER BY entry_date ASC, created_at ASC, seq ASC`, entryColumns, column), value)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// Get loads an entry.
func (r *Repository) Get(ctx context.Context, id string) (*cashbook.Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("cashbook repo: nil db")
	}
	e, err := scanEntry(r.db.QueryRowContext(ctx, `
SELECT `+entryColumns+`
FROM cashbook_entries
WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrNotFound
	}
	return e, err
}

// Update overwrites an entry as-is.
func (r *Repository) Update(ctx context.Context, e *cashbook.Entry) error {
	if r == nil || r.db == nil {
		return errors.New("cashbook repo: nil db")
	}
	if e == nil {
		return cashbook.ErrNilEntry
	}
	e.UpdatedAt = r.now()
	err := r.db.QueryRowContext(ctx, `
UPDATE cashbook_entries
SET entry_type = $1, category = $2, amount = $3, entry_date = $4, running_balance = $5,
	narration = $6, bill_id = $7, memo_id = $8, loading_slip_id = $9, party_id = $10,
	supplier_id = $11, vehicle_no = $12, updated_at = $13
WHERE id = $14
RETURNING seq, created_at`,
		string(e.Type), e.Category, e.Amount, e.Date, e.RunningBalance,
		e.Narration, e.BillID, e.MemoID, e.LoadingSlipID, e.PartyID,
		e.SupplierID, e.VehicleNo, e.UpdatedAt, e.ID,
	).Scan(&e.Seq, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return records.ErrNotFound
	}
	return err
}

// Delete removes an entry.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("cashbook repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM cashbook_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return records.ErrNotFound
	}
	return nil
}

// SetBalances rewrites running balances under the cashbook advisory lock.
func (r *Repository) SetBalances(ctx context.Context, entries []*cashbook.Entry) error {
	if r == nil || r.db == nil {
		return errors.New("cashbook repo: nil db")
	}
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, cashbook.Scope); err != nil {
		_ = tx.Rollback()
		return err
	}
	now := r.now()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
UPDATE cashbook_entries
SET running_balance = $1, updated_at = $2
WHERE id = $3`, e.RunningBalance, now, e.ID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*cashbook.Entry, error) {
	var (
		e         cashbook.Entry
		entryType string
		amount    decimal.Decimal
		balance   decimal.Decimal
	)
	err := row.Scan(
		&e.ID, &e.Seq, &entryType, &e.Category, &amount, &e.Date, &balance, &e.Narration,
		&e.BillID, &e.MemoID, &e.LoadingSlipID, &e.PartyID, &e.SupplierID, &e.VehicleNo,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Type = logistics.EntryType(entryType)
	e.Amount = amount
	e.RunningBalance = balance
	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]*cashbook.Entry, error) {
	defer rows.Close()
	var result []*cashbook.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
