package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	ledger "transport-ledger/internal/ledger/domain"
	"transport-ledger/internal/records"
)

const entryColumns = `id, seq, reference_id, ledger_type, source_type, party_id, supplier_id, vehicle_no,
	debit, credit, balance, entry_date, narration, created_at, updated_at`

var indexedColumns = map[string]string{
	"ledger_type":  "ledger_type",
	"source_type":  "source_type",
	"party_id":     "party_id",
	"supplier_id":  "supplier_id",
	"vehicle_no":   "vehicle_no",
	"reference_id": "reference_id",
}

// Repository persists ledger entries in Postgres.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository constructs a repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Append posts e inside a transaction holding the advisory lock of its scope.
func (r *Repository) Append(ctx context.Context, e *ledger.Entry) error {
	if r == nil || r.db == nil {
		return errors.New("ledger repo: nil db")
	}
	if e == nil {
		return ledger.ErrNilEntry
	}
	records.Stamp(&e.Meta, r.now())
	scope := e.Scope()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "ledger:"+scope); err != nil {
		_ = tx.Rollback()
		return err
	}

	latest, err := scanEntry(tx.QueryRowContext(ctx, `
SELECT `+entryColumns+`
FROM ledger_entries
WHERE scope = $1
ORDER BY entry_date DESC, created_at DESC, seq DESC
LIMIT 1`, scope))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return err
	}
	e.Balance = ledger.NextBalance(latest, e)

	err = tx.QueryRowContext(ctx, `
INSERT INTO ledger_entries (
	id, scope, reference_id, ledger_type, source_type, party_id, supplier_id, vehicle_no,
	debit, credit, balance, entry_date, narration, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO NOTHING
RETURNING seq`,
		e.ID, scope, e.ReferenceID, string(e.LedgerType), string(e.SourceType), e.PartyID, e.SupplierID, e.VehicleNo,
		e.Debit, e.Credit, e.Balance, e.Date, e.Narration, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return records.ErrDuplicateID
	}
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// List returns entries ordered by (date, created_at, seq).
func (r *Repository) List(ctx context.Context) ([]*ledger.Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+entryColumns+`
FROM ledger_entries
ORDER BY entry_date ASC, created_at ASC, seq ASC`)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// ListBy filters entries by an indexed field.
func (r *Repository) ListBy(ctx context.Context, field, value string) ([]*ledger.Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	column, ok := indexedColumns[field]
	if !ok {
		return nil, fmt.Errorf("ledger repo: field %q is not indexed", field)
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM ledger_entries
WHERE %s = $1
ORDER BY entry_date ASC, created_at ASC, seq ASC`, entryColumns, column), value)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// Get loads an entry.
func (r *Repository) Get(ctx context.Context, id string) (*ledger.Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	e, err := scanEntry(r.db.QueryRowContext(ctx, `
SELECT `+entryColumns+`
FROM ledger_entries
WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, records.ErrNotFound
	}
	return e, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*ledger.Entry, error) {
	var (
		e                         ledger.Entry
		ledgerType, sourceType    string
		debit, credit, balanceAmt decimal.Decimal
	)
	err := row.Scan(
		&e.ID, &e.Seq, &e.ReferenceID, &ledgerType, &sourceType, &e.PartyID, &e.SupplierID, &e.VehicleNo,
		&debit, &credit, &balanceAmt, &e.Date, &e.Narration, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.LedgerType = ledger.LedgerType(ledgerType)
	e.SourceType = ledger.SourceType(sourceType)
	e.Debit = debit
	e.Credit = credit
	e.Balance = balanceAmt
	e.Date = e.Date.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]*ledger.Entry, error) {
	defer rows.Close()
	var result []*ledger.Entry
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
