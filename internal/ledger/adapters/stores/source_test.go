package stores

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	cashbook "transport-ledger/internal/cashbook/domain"
	cashbookmem "transport-ledger/internal/cashbook/infrastructure/memory"
	ledgerapp "transport-ledger/internal/ledger/application"
	ledger "transport-ledger/internal/ledger/domain"
	ledgermem "transport-ledger/internal/ledger/infrastructure/memory"
	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/records"
	"transport-ledger/internal/records/memory"
)

func day(n int) time.Time { return time.Date(2025, 2, n, 0, 0, 0, 0, time.UTC) }

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type fixture struct {
	stores   Stores
	cash     *cashbookmem.Repository
	entries  *ledgermem.Repository
	snapshot *ledgerapp.SnapshotService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cash:    cashbookmem.NewRepository(),
		entries: ledgermem.NewRepository(),
	}
	f.stores = Stores{
		Bills:            memory.NewStore[*logistics.Bill](),
		Memos:            memory.NewStore[*logistics.Memo](),
		LoadingSlips:     memory.NewStore[*logistics.LoadingSlip](),
		Banking:          memory.NewStore[*logistics.BankingEntry](),
		FuelWallets:      memory.NewStore[*logistics.FuelWallet](),
		FuelTransactions: memory.NewStore[*logistics.FuelTransaction](),
		Parties:          memory.NewStore[*logistics.Party](),
		Suppliers:        memory.NewStore[*logistics.Supplier](),
		Vehicles:         memory.NewStore[*logistics.Vehicle](),
		Commissions:      memory.NewStore[*logistics.PartyCommission](),
		Cashbook:         f.cash,
		Entries:          f.entries,
	}
	source, err := NewSource(f.stores)
	require.NoError(t, err)
	f.snapshot, err = ledgerapp.NewSnapshotService(source, nil, nil)
	require.NoError(t, err)
	return f
}

func requireBalanced(t *testing.T, s *ledger.Snapshot) {
	t.Helper()
	got := s.Totals.Credit.Sub(s.Totals.DebitPayment).Sub(s.Totals.DebitAdvance)
	require.True(t, got.Equal(s.Totals.CurrentBalance))
}

func TestPartyLedgerMergesSources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	party := &logistics.Party{Meta: records.Meta{ID: "p1"}, Name: "Acme Cement", OpeningBalance: amt(500)}
	require.NoError(t, f.stores.Parties.Create(ctx, party))

	bill := &logistics.Bill{
		Meta:       records.Meta{ID: "b1"},
		BillNumber: "B-001",
		PartyID:    "p1",
		VehicleNo:  "MH12AB1234",
		Date:       day(3),
		BillAmount: amt(10000),
		Detention:  amt(500),
		RTO:        amt(200),
		Mamool:     amt(100),
		TDS:        amt(50),
		Advances:   []logistics.AdvancePayment{{Date: day(4), Amount: amt(2000), Mode: "upi"}},
	}
	logistics.ComputeBill(bill)
	require.NoError(t, f.stores.Bills.Create(ctx, bill))

	require.NoError(t, f.stores.Banking.Create(ctx, &logistics.BankingEntry{
		Type: logistics.Credit, Category: "receipt", Amount: amt(3000), Date: day(6), PartyID: "p1", Reference: "NEFT-1",
	}))
	// Debits to the party are not payments received.
	require.NoError(t, f.stores.Banking.Create(ctx, &logistics.BankingEntry{
		Type: logistics.Debit, Category: "refund", Amount: amt(99), Date: day(6), PartyID: "p1",
	}))
	require.NoError(t, f.cash.Append(ctx, &cashbook.Entry{
		Type: logistics.Credit, Category: "receipt", Amount: amt(1000), Date: day(7), PartyID: "p1",
	}))
	require.NoError(t, f.entries.Append(ctx, &ledger.Entry{
		LedgerType: ledger.LedgerParty, SourceType: ledger.SourceManual, PartyID: "p1", Debit: amt(50), Date: day(8), Narration: "round off",
	}))

	snap, err := f.snapshot.Build(ctx, ledger.Scope{Kind: ledger.ScopeParty, Key: "p1"}, ledger.Period{})
	require.NoError(t, err)
	require.Equal(t, "Party Ledger - Acme Cement", snap.Title)
	require.Len(t, snap.Rows, 6)
	require.Equal(t, ledger.SourceOpening, snap.Rows[0].SourceType)
	require.Equal(t, "B-001", snap.Rows[1].Reference)
	require.True(t, snap.Rows[1].Credit.Equal(amt(10550)))
	require.True(t, snap.Rows[2].DebitAdvance.Equal(amt(2000)))

	require.True(t, snap.Totals.Credit.Equal(amt(11050)))
	require.True(t, snap.Totals.DebitAdvance.Equal(amt(2000)))
	require.True(t, snap.Totals.DebitPayment.Equal(amt(4050)))
	require.True(t, snap.Totals.CurrentBalance.Equal(amt(5000)))
	requireBalanced(t, snap)

	ranged, err := f.snapshot.Build(ctx, ledger.Scope{Kind: ledger.ScopeParty, Key: "p1"}, ledger.Period{From: day(5), To: day(7)})
	require.NoError(t, err)
	require.Equal(t, ledger.OpeningBalanceLabel, ranged.Rows[0].Description)
	require.True(t, ranged.Rows[0].Credit.Equal(amt(9050)))
	require.Len(t, ranged.Rows, 3)
	require.True(t, ranged.Totals.CurrentBalance.Equal(amt(5050)))
	requireBalanced(t, ranged)
}

func TestEmptyPartyLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.stores.Parties.Create(ctx, &logistics.Party{Meta: records.Meta{ID: "p2"}, Name: "Quiet"}))

	snap, err := f.snapshot.Build(ctx, ledger.Scope{Kind: ledger.ScopeParty, Key: "p2"}, ledger.Period{})
	require.NoError(t, err)
	require.Empty(t, snap.Rows)
	require.True(t, snap.Totals.CurrentBalance.IsZero())

	_, err = f.snapshot.Build(ctx, ledger.Scope{Kind: ledger.ScopeParty, Key: "nobody"}, ledger.Period{})
	require.ErrorIs(t, err, records.ErrNotFound)
}

func TestGeneralLedgerSplitsAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.stores.Banking.Create(ctx, &logistics.BankingEntry{Type: logistics.Credit, Category: "receipt", Amount: amt(5000), Date: day(1)}))
	require.NoError(t, f.cash.Append(ctx, &cashbook.Entry{Type: logistics.Debit, Category: cashbook.CategoryAdvance, Amount: amt(800), Date: day(2)}))
	require.NoError(t, f.cash.Append(ctx, &cashbook.Entry{Type: logistics.Debit, Category: "diesel", Amount: amt(200), Date: day(3)}))

	snap, err := f.snapshot.Build(ctx, ledger.Scope{Kind: ledger.ScopeGeneral}, ledger.Period{})
	require.NoError(t, err)
	require.Len(t, snap.Rows, 3)
	require.True(t, snap.Totals.DebitAdvance.Equal(amt(800)))
	require.True(t, snap.Totals.DebitPayment.Equal(amt(200)))
	require.True(t, snap.Totals.CurrentBalance.Equal(amt(4000)))
}

func TestVehicleAndFuelWalletLedgers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.stores.Vehicles.Create(ctx, &logistics.Vehicle{VehicleNo: "KA01AB1111", OwnerName: "Ravi", Ownership: logistics.OwnershipMarket}))
	require.NoError(t, f.stores.LoadingSlips.Create(ctx, &logistics.LoadingSlip{
		SlipNumber: "LS-1", VehicleNo: "KA01AB1111", Date: day(1), From: "Pune", To: "Goa", Freight: amt(20000), Advance: amt(5000),
	}))
	require.NoError(t, f.stores.Bills.Create(ctx, &logistics.Bill{BillNumber: "B-9", VehicleNo: "KA01AB1111", Date: day(2), NetAmount: amt(21000)}))
	require.NoError(t, f.stores.FuelWallets.Create(ctx, &logistics.FuelWallet{Meta: records.Meta{ID: "w1"}, Name: "Card 1"}))
	require.NoError(t, f.stores.FuelTransactions.Create(ctx, &logistics.FuelTransaction{WalletID: "w1", Type: logistics.Credit, Amount: amt(10000), Date: day(1)}))
	require.NoError(t, f.stores.FuelTransactions.Create(ctx, &logistics.FuelTransaction{
		WalletID: "w1", Type: logistics.Debit, Amount: amt(3000), Litres: amt(30), Rate: amt(100), VehicleNo: "KA01AB1111", Date: day(3),
	}))
	require.NoError(t, f.entries.Append(ctx, &ledger.Entry{LedgerType: ledger.LedgerVehicleExpense, VehicleNo: "KA01AB1111", Debit: amt(400), Date: day(4), SourceType: ledger.SourceManual}))

	snap, err := f.snapshot.Build(ctx, ledger.Scope{Kind: ledger.ScopeVehicle, Key: "ka01 ab 1111"}, ledger.Period{})
	require.NoError(t, err)
	require.Equal(t, "Vehicle Ledger - KA01AB1111 (Ravi)", snap.Title)
	require.Len(t, snap.Rows, 4)
	require.True(t, snap.Totals.CurrentBalance.Equal(amt(12600)))
	requireBalanced(t, snap)

	wallet, err := f.snapshot.Build(ctx, ledger.Scope{Kind: ledger.ScopeFuelWallet, Key: "w1"}, ledger.Period{})
	require.NoError(t, err)
	require.Len(t, wallet.Rows, 2)
	require.True(t, wallet.Totals.CurrentBalance.Equal(amt(7000)))
}

func TestSupplierAndCommissionLedgers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.stores.Suppliers.Create(ctx, &logistics.Supplier{Meta: records.Meta{ID: "s1"}, Name: "Roadlines"}))
	memo := &logistics.Memo{
		MemoNumber: "M-1", SupplierID: "s1", Date: day(1), Freight: amt(18000), Commission: amt(500), RTO: amt(300),
		Advances: []logistics.AdvancePayment{{Date: day(2), Amount: amt(7000)}},
	}
	logistics.ComputeMemo(memo)
	require.NoError(t, f.stores.Memos.Create(ctx, memo))
	require.NoError(t, f.stores.Banking.Create(ctx, &logistics.BankingEntry{Type: logistics.Debit, Category: "payment", Amount: amt(10000), Date: day(5), SupplierID: "s1"}))

	snap, err := f.snapshot.Build(ctx, ledger.Scope{Kind: ledger.ScopeSupplier, Key: "s1"}, ledger.Period{})
	require.NoError(t, err)
	require.True(t, snap.Totals.Credit.Equal(amt(17500)))
	require.True(t, snap.Totals.CurrentBalance.Equal(amt(500)))

	require.NoError(t, f.stores.Parties.Create(ctx, &logistics.Party{Meta: records.Meta{ID: "p1"}, Name: "Acme"}))
	require.NoError(t, f.stores.Commissions.Create(ctx, &logistics.PartyCommission{PartyID: "p1", Type: logistics.Credit, Amount: amt(300), Date: day(1)}))
	require.NoError(t, f.stores.Commissions.Create(ctx, &logistics.PartyCommission{PartyID: "p1", Type: logistics.Debit, Amount: amt(100), Date: day(2)}))
	comm, err := f.snapshot.Build(ctx, ledger.Scope{Kind: ledger.ScopeCommission, Key: "p1"}, ledger.Period{})
	require.NoError(t, err)
	require.True(t, comm.Totals.CurrentBalance.Equal(amt(200)))
}

func TestSnapshotRejectsInvertedPeriod(t *testing.T) {
	f := newFixture(t)
	_, err := f.snapshot.Build(context.Background(), ledger.Scope{Kind: ledger.ScopeGeneral}, ledger.Period{From: day(9), To: day(1)})
	require.ErrorIs(t, err, ledgerapp.ErrInvalidPeriod)
}
