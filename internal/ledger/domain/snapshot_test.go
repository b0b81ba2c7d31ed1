package ledger

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time { return time.Date(2025, 1, n, 0, 0, 0, 0, time.UTC) }

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func move(id string, date time.Time, seq int64, src SourceType, col Column, amount int64) Movement {
	return Movement{
		Date:       date,
		CreatedAt:  date.Add(time.Duration(seq) * time.Minute),
		Seq:        seq,
		SourceType: src,
		SourceID:   id,
		Reference:  id,
		Column:     col,
		Amount:     amt(amount),
	}
}

func requireInvariant(t *testing.T, s Snapshot) {
	t.Helper()
	got := s.Totals.Credit.Sub(s.Totals.DebitPayment).Sub(s.Totals.DebitAdvance)
	require.True(t, got.Equal(s.Totals.CurrentBalance), "totals %v", s.Totals)
	if len(s.Rows) > 0 {
		require.True(t, s.Rows[len(s.Rows)-1].RunningBalance.Equal(s.Totals.CurrentBalance))
	}
}

func TestBuildSnapshotEmptyScope(t *testing.T) {
	s := BuildSnapshot(Scope{Kind: ScopeParty, Key: "p1"}, Period{}, nil, day(1))
	require.Empty(t, s.Rows)
	require.NotNil(t, s.Rows)
	require.True(t, s.Totals.Credit.IsZero())
	require.True(t, s.Totals.DebitPayment.IsZero())
	require.True(t, s.Totals.DebitAdvance.IsZero())
	require.True(t, s.Totals.CurrentBalance.IsZero())

	ranged := BuildSnapshot(Scope{Kind: ScopeGeneral}, Period{From: day(5), To: day(9)}, nil, day(1))
	require.Empty(t, ranged.Rows)
	require.True(t, ranged.Totals.CurrentBalance.IsZero())
}

func TestBuildSnapshotOrdersAndAccumulates(t *testing.T) {
	movements := []Movement{
		move("pay1", day(3), 3, SourceBanking, ColumnDebitPayment, 4000),
		move("bill1", day(1), 1, SourceBill, ColumnCredit, 10550),
		move("adv1", day(2), 1, SourceBill, ColumnDebitAdvance, 2000),
	}
	s := BuildSnapshot(Scope{Kind: ScopeParty, Key: "p1"}, Period{}, movements, day(10))
	require.Len(t, s.Rows, 3)
	require.Equal(t, "bill1", s.Rows[0].Reference)
	require.Equal(t, "adv1", s.Rows[1].Reference)
	require.Equal(t, "pay1", s.Rows[2].Reference)
	require.True(t, s.Rows[0].RunningBalance.Equal(amt(10550)))
	require.True(t, s.Rows[1].RunningBalance.Equal(amt(8550)))
	require.True(t, s.Rows[2].RunningBalance.Equal(amt(4550)))
	require.True(t, s.Totals.Credit.Equal(amt(10550)))
	require.True(t, s.Totals.DebitAdvance.Equal(amt(2000)))
	require.True(t, s.Totals.DebitPayment.Equal(amt(4000)))
	requireInvariant(t, s)
}

func TestBuildSnapshotSameDateTieBreak(t *testing.T) {
	same := day(4)
	created := same.Add(time.Hour)
	a := Movement{Date: same, CreatedAt: created, Seq: 2, SourceType: SourceCashbook, SourceID: "c", Column: ColumnDebitPayment, Amount: amt(10)}
	b := Movement{Date: same, CreatedAt: created, Seq: 2, SourceType: SourceBill, SourceID: "b", Column: ColumnCredit, Amount: amt(100)}
	c := Movement{Date: same, CreatedAt: created, Seq: 1, SourceType: SourceManual, SourceID: "m", Column: ColumnCredit, Amount: amt(5)}

	first := BuildSnapshot(Scope{Kind: ScopeGeneral}, Period{}, []Movement{a, b, c}, same)
	second := BuildSnapshot(Scope{Kind: ScopeGeneral}, Period{}, []Movement{c, a, b}, same)
	require.Equal(t, []string{"m", "b", "c"}, []string{first.Rows[0].SourceID, first.Rows[1].SourceID, first.Rows[2].SourceID})
	require.Equal(t, first.Rows, second.Rows)
}

func TestBuildSnapshotPeriodOpeningRow(t *testing.T) {
	movements := []Movement{
		move("b1", day(1), 1, SourceBill, ColumnCredit, 1000),
		move("p1", day(2), 2, SourceBanking, ColumnDebitPayment, 1500),
		move("b2", day(6), 3, SourceBill, ColumnCredit, 700),
		move("b3", day(12), 4, SourceBill, ColumnCredit, 999),
	}
	s := BuildSnapshot(Scope{Kind: ScopeParty, Key: "p"}, Period{From: day(5), To: day(10)}, movements, day(20))
	require.Len(t, s.Rows, 2)
	require.Equal(t, OpeningBalanceLabel, s.Rows[0].Description)
	require.Equal(t, SourceOpening, s.Rows[0].SourceType)
	require.True(t, s.Rows[0].DebitPayment.Equal(amt(500)))
	require.True(t, s.Rows[0].RunningBalance.Equal(amt(-500)))
	require.True(t, s.Rows[1].RunningBalance.Equal(amt(200)))
	require.True(t, s.Totals.CurrentBalance.Equal(amt(200)))
	requireInvariant(t, s)

	// No earlier movements: no opening row.
	later := BuildSnapshot(Scope{Kind: ScopeParty, Key: "p"}, Period{From: day(1)}, movements, day(20))
	require.NotEqual(t, SourceOpening, later.Rows[0].SourceType)
	require.Len(t, later.Rows, 4)
}

func TestPeriodComparesUTCDays(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	est := time.FixedZone("EST", -5*3600)
	// 2025-01-05 00:00 IST is still 2025-01-04 in UTC.
	from := time.Date(2025, 1, 5, 0, 0, 0, 0, ist)
	// 2025-01-10 23:00 EST is already 2025-01-11 in UTC.
	to := time.Date(2025, 1, 10, 23, 0, 0, 0, est)
	p := Period{From: from, To: to}

	require.False(t, p.Contains(day(3)))
	require.True(t, p.Contains(day(4)))
	require.True(t, p.Contains(day(11)))
	require.False(t, p.Contains(day(12)))

	movements := []Movement{
		move("b1", day(3), 1, SourceBill, ColumnCredit, 100),
		move("b2", day(4), 2, SourceBill, ColumnCredit, 200),
	}
	s := BuildSnapshot(Scope{Kind: ScopeGeneral}, p, movements, day(20))
	require.Len(t, s.Rows, 2)
	require.Equal(t, SourceOpening, s.Rows[0].SourceType)
	require.Equal(t, day(4), s.Rows[0].Date)
	require.True(t, s.Totals.CurrentBalance.Equal(amt(300)))
	requireInvariant(t, s)
}

func TestBuildSnapshotInvariantRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	columns := []Column{ColumnCredit, ColumnDebitPayment, ColumnDebitAdvance}
	sources := []SourceType{SourceBill, SourceMemo, SourceBanking, SourceCashbook, SourceFuel, SourceManual}
	for trial := 0; trial < 50; trial++ {
		var movements []Movement
		n := rng.Intn(40)
		for i := 0; i < n; i++ {
			m := move("m", day(1+rng.Intn(28)), int64(rng.Intn(5)), sources[rng.Intn(len(sources))], columns[rng.Intn(3)], 0)
			m.SourceID = string(rune('a' + i))
			m.Amount = decimal.New(rng.Int63n(1_000_000), -2)
			movements = append(movements, m)
		}
		var period Period
		if rng.Intn(2) == 0 {
			period = Period{From: day(1 + rng.Intn(14)), To: day(14 + rng.Intn(14))}
		}
		s := BuildSnapshot(Scope{Kind: ScopeGeneral}, period, movements, day(1))
		requireInvariant(t, s)
		for i := 1; i < len(s.Rows); i++ {
			prev, row := s.Rows[i-1], s.Rows[i]
			want := prev.RunningBalance.Add(row.Credit).Sub(row.DebitPayment).Sub(row.DebitAdvance)
			require.True(t, want.Equal(row.RunningBalance))
		}
	}
}

func TestDescendingKeepsBalances(t *testing.T) {
	s := BuildSnapshot(Scope{Kind: ScopeGeneral}, Period{}, []Movement{
		move("a", day(1), 1, SourceCashbook, ColumnCredit, 100),
		move("b", day(2), 2, SourceCashbook, ColumnDebitPayment, 30),
	}, day(3))
	desc := Descending(s.Rows)
	require.Equal(t, "b", desc[0].SourceID)
	require.True(t, desc[0].RunningBalance.Equal(amt(70)))
	require.Equal(t, "a", s.Rows[0].SourceID)
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("general", "ignored")
	require.NoError(t, err)
	require.Equal(t, Scope{Kind: ScopeGeneral}, s)

	s, err = ParseScope("vehicle", "MH12AB1234")
	require.NoError(t, err)
	require.Equal(t, "vehicle:MH12AB1234", s.String())

	_, err = ParseScope("party", "")
	require.ErrorIs(t, err, ErrInvalidScope)
	_, err = ParseScope("bank", "x")
	require.ErrorIs(t, err, ErrInvalidScope)
}

func TestSignedMovement(t *testing.T) {
	m := SignedMovement(Movement{}, amt(-250))
	require.Equal(t, ColumnDebitPayment, m.Column)
	require.True(t, m.Amount.Equal(amt(250)))
	m = SignedMovement(Movement{}, amt(250))
	require.Equal(t, ColumnCredit, m.Column)
}
