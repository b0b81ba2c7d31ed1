package cashbook

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/records"
)

func day(n int) time.Time { return time.Date(2025, 4, n, 0, 0, 0, 0, time.UTC) }

func entry(id string, seq int64, typ logistics.EntryType, amount int64, date time.Time) *Entry {
	return &Entry{
		Meta:     records.Meta{ID: id, Seq: seq, CreatedAt: date.Add(time.Duration(seq) * time.Second)},
		Type:     typ,
		Category: "general",
		Amount:   decimal.NewFromInt(amount),
		Date:     date,
	}
}

// appendAll mimics sequential inserts: each entry chains off the latest existing one.
func appendAll(entries ...*Entry) []*Entry {
	var stored []*Entry
	for _, e := range entries {
		e.RunningBalance = NextBalance(Latest(stored), e)
		stored = append(stored, e)
	}
	return stored
}

func TestNextBalance_CreditThenDebit(t *testing.T) {
	stored := appendAll(
		entry("a", 1, logistics.Credit, 1000, day(1)),
		entry("b", 2, logistics.Debit, 300, day(2)),
	)
	require.True(t, stored[0].RunningBalance.Equal(decimal.NewFromInt(1000)))
	require.True(t, stored[1].RunningBalance.Equal(decimal.NewFromInt(700)))
	require.Empty(t, Verify(stored))
}

func TestRunningBalance_NonDecreasingDatesHoldInvariant(t *testing.T) {
	var input []*Entry
	for i := 0; i < 60; i++ {
		typ := logistics.Credit
		if i%3 == 0 {
			typ = logistics.Debit
		}
		input = append(input, entry(fmt.Sprintf("e%02d", i), int64(i+1), typ, int64(50+i*7), day(1+i/5)))
	}
	stored := appendAll(input...)

	prev := decimal.Zero
	for _, e := range stored {
		require.True(t, e.RunningBalance.Equal(prev.Add(e.Signed())), "entry %s", e.ID)
		prev = e.RunningBalance
	}
	require.Empty(t, Verify(stored))
}

func TestLatest_SameDateUsesCreationOrder(t *testing.T) {
	first := entry("first", 1, logistics.Credit, 10, day(3))
	second := entry("second", 2, logistics.Credit, 10, day(3))
	require.Equal(t, "second", Latest([]*Entry{second, first}).ID)
}

func TestBackdatedInsert_LeavesStaleBalanceUntilRecompute(t *testing.T) {
	stored := appendAll(
		entry("a", 1, logistics.Credit, 1000, day(1)),
		entry("c", 2, logistics.Debit, 300, day(5)),
	)
	backdated := entry("b", 3, logistics.Debit, 100, day(3))
	require.True(t, IsBackdated(Latest(stored), backdated))
	backdated.RunningBalance = NextBalance(Latest(stored), backdated)
	stored = append(stored, backdated)

	// The back-dated entry chains off the latest (day 5) entry: 700 - 100.
	require.True(t, backdated.RunningBalance.Equal(decimal.NewFromInt(600)))
	breaks := Verify(stored)
	require.NotEmpty(t, breaks)

	changed := Recompute(stored)
	require.Len(t, changed, 2)
	require.Empty(t, Verify(stored))
	require.True(t, backdated.RunningBalance.Equal(decimal.NewFromInt(900)))
	require.True(t, stored[1].RunningBalance.Equal(decimal.NewFromInt(600)), "day 5 entry re-chained")
}

// Two writers that read the same predecessor before either inserts produce a
// forked chain. This is the race the service serializes away; Verify must flag it.
func TestConcurrentInsertRace_SharedPredecessorIsDetected(t *testing.T) {
	stored := appendAll(entry("seed", 1, logistics.Credit, 1000, day(1)))

	predecessor := Latest(stored)
	w1 := entry("w1", 2, logistics.Debit, 200, day(2))
	w2 := entry("w2", 3, logistics.Debit, 300, day(2))
	w1.RunningBalance = NextBalance(predecessor, w1)
	w2.RunningBalance = NextBalance(predecessor, w2)
	stored = append(stored, w1, w2)

	require.True(t, w1.RunningBalance.Equal(decimal.NewFromInt(800)))
	require.True(t, w2.RunningBalance.Equal(decimal.NewFromInt(700)))

	breaks := Verify(stored)
	require.Len(t, breaks, 1)
	require.Equal(t, "w2", breaks[0].EntryID)
	require.True(t, breaks[0].Expected.Equal(decimal.NewFromInt(500)))
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, Validate(&Entry{Type: "x", Category: "c", Date: day(1)}), logistics.ErrInvalidType)
	require.ErrorIs(t, Validate(&Entry{Type: logistics.Credit, Date: day(1)}), logistics.ErrRequiredField)
	require.ErrorIs(t, Validate(&Entry{Type: logistics.Credit, Category: "c", Date: day(1), Amount: decimal.NewFromInt(-1)}), logistics.ErrNegativeAmount)
	require.NoError(t, Validate(&Entry{Type: logistics.Credit, Category: "c", Date: day(1), Amount: decimal.NewFromInt(1)}))
}
