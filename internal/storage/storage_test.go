package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"transport-ledger/internal/audit"
	cashbook "transport-ledger/internal/cashbook/domain"
	ledger "transport-ledger/internal/ledger/domain"
	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/records"
)

func TestOpenMemory(t *testing.T) {
	b, err := Open(nil)
	require.NoError(t, err)
	require.NotNil(t, b.Cashbook)
	require.NotNil(t, b.Ledger)
	require.NotNil(t, b.Audit)

	ctx := context.Background()
	party := &logistics.Party{Name: "Acme"}
	require.NoError(t, b.Logistics.Parties.Create(ctx, party))
	got, err := b.Logistics.Parties.Get(ctx, party.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme", got.Name)
}

// TestPostgresBackend runs against a live database when PG_DSN is set.
func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Ping())

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "001_init.sql"))
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	b, err := Open(db)
	require.NoError(t, err)
	ctx := context.Background()
	suffix := records.NewID()

	party := &logistics.Party{Name: "Acme " + suffix, OpeningBalance: decimal.RequireFromString("1500.50")}
	require.NoError(t, b.Logistics.Parties.Create(ctx, party))
	require.NotZero(t, party.Seq)
	byName, err := b.Logistics.Parties.ListBy(ctx, "name", party.Name)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	require.True(t, byName[0].OpeningBalance.Equal(party.OpeningBalance))

	party.Phone = "99999"
	require.NoError(t, b.Logistics.Parties.Update(ctx, party))
	require.NoError(t, b.Logistics.Parties.Delete(ctx, party.ID))
	_, err = b.Logistics.Parties.Get(ctx, party.ID)
	require.ErrorIs(t, err, records.ErrNotFound)

	day := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)
	entry := &cashbook.Entry{Type: logistics.Credit, Category: "it-" + suffix, Amount: decimal.NewFromInt(250), Date: day}
	require.NoError(t, b.Cashbook.Append(ctx, entry))
	stored, err := b.Cashbook.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.True(t, stored.Amount.Equal(decimal.NewFromInt(250)))
	require.NoError(t, b.Cashbook.Delete(ctx, entry.ID))

	posted := &ledger.Entry{LedgerType: ledger.LedgerParty, SourceType: ledger.SourceManual, PartyID: "p-" + suffix, Credit: decimal.NewFromInt(100), Date: day}
	require.NoError(t, b.Ledger.Append(ctx, posted))
	require.True(t, posted.Balance.Equal(decimal.NewFromInt(100)))
	second := &ledger.Entry{LedgerType: ledger.LedgerParty, SourceType: ledger.SourceManual, PartyID: "p-" + suffix, Debit: decimal.NewFromInt(40), Date: day}
	require.NoError(t, b.Ledger.Append(ctx, second))
	require.True(t, second.Balance.Equal(decimal.NewFromInt(60)))

	require.NoError(t, b.Audit.Log(ctx, audit.Entry{Action: "it.check", ResourceType: "storage", ResourceID: suffix}))
}
