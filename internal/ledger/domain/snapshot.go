package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ScopeKind selects which records feed a ledger snapshot.
type ScopeKind string

const (
	ScopeParty      ScopeKind = "party"
	ScopeSupplier   ScopeKind = "supplier"
	ScopeVehicle    ScopeKind = "vehicle"
	ScopeGeneral    ScopeKind = "general"
	ScopeFuelWallet ScopeKind = "fuel_wallet"
	ScopeCommission ScopeKind = "commission"
)

// ScopeKinds lists every snapshot scope kind.
var ScopeKinds = []ScopeKind{ScopeParty, ScopeSupplier, ScopeVehicle, ScopeGeneral, ScopeFuelWallet, ScopeCommission}

// Scope identifies one ledger: a party id, supplier id, vehicle number or
// fuel wallet id. The general ledger has no key.
type Scope struct {
	Kind ScopeKind `json:"kind"`
	Key  string    `json:"key,omitempty"`
}

// ParseScope validates a kind/key pair.
func ParseScope(kind, key string) (Scope, error) {
	scope := Scope{Kind: ScopeKind(strings.TrimSpace(kind)), Key: strings.TrimSpace(key)}
	if !slices.Contains(ScopeKinds, scope.Kind) {
		return Scope{}, fmt.Errorf("%w: kind %q", ErrInvalidScope, kind)
	}
	if scope.Kind == ScopeGeneral {
		scope.Key = ""
		return scope, nil
	}
	if scope.Key == "" {
		return Scope{}, fmt.Errorf("%w: %s key required", ErrInvalidScope, scope.Kind)
	}
	return scope, nil
}

func (s Scope) String() string {
	if s.Key == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.Key
}

// Column is the report column a movement lands in.
type Column string

const (
	ColumnCredit       Column = "credit"
	ColumnDebitPayment Column = "debit_payment"
	ColumnDebitAdvance Column = "debit_advance"
)

// Movement is one amount contributed to a ledger by a source record.
type Movement struct {
	Date        time.Time
	CreatedAt   time.Time
	Seq         int64
	Sub         int
	SourceType  SourceType
	SourceID    string
	Reference   string
	Description string
	Column      Column
	Amount      decimal.Decimal
}

// Signed returns the movement's effect on the balance.
func (m Movement) Signed() decimal.Decimal {
	if m.Column == ColumnCredit {
		return m.Amount
	}
	return m.Amount.Neg()
}

// Before orders movements by (date, created_at, seq, source rank, source id, sub).
func (m Movement) Before(o Movement) bool {
	if !m.Date.Equal(o.Date) {
		return m.Date.Before(o.Date)
	}
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	if m.Seq != o.Seq {
		return m.Seq < o.Seq
	}
	if ra, rb := sourceRank(m.SourceType), sourceRank(o.SourceType); ra != rb {
		return ra < rb
	}
	if m.SourceID != o.SourceID {
		return m.SourceID < o.SourceID
	}
	return m.Sub < o.Sub
}

// SignedMovement places a signed amount: positive amounts credit,
// negative amounts debit as payment.
func SignedMovement(m Movement, amount decimal.Decimal) Movement {
	if amount.IsNegative() {
		m.Column = ColumnDebitPayment
		m.Amount = amount.Neg()
		return m
	}
	m.Column = ColumnCredit
	m.Amount = amount
	return m
}

// Row is one report line.
type Row struct {
	Date           time.Time       `json:"date"`
	Reference      string          `json:"reference,omitempty"`
	Description    string          `json:"description,omitempty"`
	SourceType     SourceType      `json:"source_type"`
	SourceID       string          `json:"source_id,omitempty"`
	Credit         decimal.Decimal `json:"credit"`
	DebitPayment   decimal.Decimal `json:"debit_payment"`
	DebitAdvance   decimal.Decimal `json:"debit_advance"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// Totals sums the report columns. CurrentBalance equals
// Credit - DebitPayment - DebitAdvance.
type Totals struct {
	Credit         decimal.Decimal `json:"credit"`
	DebitPayment   decimal.Decimal `json:"debit_payment"`
	DebitAdvance   decimal.Decimal `json:"debit_advance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// Period is an optional inclusive date range; zero bounds are open.
type Period struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// Contains reports whether date falls inside the period, comparing UTC calendar days.
func (p Period) Contains(date time.Time) bool {
	day := dayOf(date)
	if !p.From.IsZero() && day.Before(dayOf(p.From)) {
		return false
	}
	if !p.To.IsZero() && day.After(dayOf(p.To)) {
		return false
	}
	return true
}

func (p Period) beforeFrom(date time.Time) bool {
	return !p.From.IsZero() && dayOf(date).Before(dayOf(p.From))
}

// dayOf truncates t to its UTC calendar day. Stored dates are UTC, so bounds
// given in another zone are compared on the same calendar.
func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Snapshot is a finished ledger report.
type Snapshot struct {
	Scope       Scope     `json:"scope"`
	Title       string    `json:"title,omitempty"`
	Period      Period    `json:"period"`
	Rows        []Row     `json:"rows"`
	Totals      Totals    `json:"totals"`
	GeneratedAt time.Time `json:"generated_at"`
}

// OpeningBalanceLabel describes the synthetic row that folds entries dated
// before the period start.
const OpeningBalanceLabel = "Opening Balance"

// BuildSnapshot orders movements chronologically and accumulates the running
// balance. Movements dated before period.From collapse into one opening row,
// emitted only when such movements exist; movements after period.To are dropped.
func BuildSnapshot(scope Scope, period Period, movements []Movement, now time.Time) Snapshot {
	ordered := slices.Clone(movements)
	slices.SortStableFunc(ordered, func(a, b Movement) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})

	snapshot := Snapshot{
		Scope:       scope,
		Period:      period,
		Rows:        []Row{},
		GeneratedAt: now,
	}
	balance := decimal.Zero
	opening := decimal.Zero
	hasOpening := false
	for _, m := range ordered {
		if !period.beforeFrom(m.Date) {
			continue
		}
		hasOpening = true
		opening = opening.Add(m.Signed())
	}
	if hasOpening {
		row := Row{
			Date:        dayOf(period.From),
			Description: OpeningBalanceLabel,
			SourceType:  SourceOpening,
		}
		if opening.IsNegative() {
			row.DebitPayment = opening.Neg()
		} else {
			row.Credit = opening
		}
		balance = opening
		row.RunningBalance = balance
		snapshot.Rows = append(snapshot.Rows, row)
	}

	for _, m := range ordered {
		if !period.Contains(m.Date) {
			continue
		}
		balance = balance.Add(m.Signed())
		row := Row{
			Date:           m.Date,
			Reference:      m.Reference,
			Description:    m.Description,
			SourceType:     m.SourceType,
			SourceID:       m.SourceID,
			RunningBalance: balance,
		}
		switch m.Column {
		case ColumnCredit:
			row.Credit = m.Amount
		case ColumnDebitAdvance:
			row.DebitAdvance = m.Amount
		default:
			row.DebitPayment = m.Amount
		}
		snapshot.Rows = append(snapshot.Rows, row)
	}

	snapshot.Totals = SumRows(snapshot.Rows)
	return snapshot
}

// SumRows totals the report columns.
func SumRows(rows []Row) Totals {
	totals := Totals{}
	for _, row := range rows {
		totals.Credit = totals.Credit.Add(row.Credit)
		totals.DebitPayment = totals.DebitPayment.Add(row.DebitPayment)
		totals.DebitAdvance = totals.DebitAdvance.Add(row.DebitAdvance)
	}
	totals.CurrentBalance = totals.Credit.Sub(totals.DebitPayment).Sub(totals.DebitAdvance)
	return totals
}

// Descending returns the rows newest first. Running balances are unchanged.
func Descending(rows []Row) []Row {
	out := slices.Clone(rows)
	slices.Reverse(out)
	return out
}
