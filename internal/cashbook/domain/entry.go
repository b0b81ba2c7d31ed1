package cashbook

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/records"
)

// Scope is the single running-balance scope of the cashbook; every entry chains
// off the previous one regardless of category or type.
const Scope = "cashbook"

// CategoryAdvance marks a cash advance paid out.
const CategoryAdvance = "advance"

var (
	// ErrNilEntry is returned when a nil entry is written.
	ErrNilEntry = errors.New("cashbook: nil entry")
)

// Entry is a cash movement with a running balance snapshot.
type Entry struct {
	records.Meta
	Type           logistics.EntryType `json:"type"`
	Category       string              `json:"category"`
	Amount         decimal.Decimal     `json:"amount"`
	Date           time.Time           `json:"date"`
	RunningBalance decimal.Decimal     `json:"running_balance"`
	Narration      string              `json:"narration,omitempty"`
	BillID         string              `json:"bill_id,omitempty"`
	MemoID         string              `json:"memo_id,omitempty"`
	LoadingSlipID  string              `json:"loading_slip_id,omitempty"`
	PartyID        string              `json:"party_id,omitempty"`
	SupplierID     string              `json:"supplier_id,omitempty"`
	VehicleNo      string              `json:"vehicle_no,omitempty"`
}

func (e *Entry) Clone() *Entry { c := *e; return &c }

func (e *Entry) Field(name string) string {
	switch name {
	case "type":
		return string(e.Type)
	case "category":
		return e.Category
	case "party_id":
		return e.PartyID
	case "supplier_id":
		return e.SupplierID
	case "vehicle_no":
		return e.VehicleNo
	case "bill_id":
		return e.BillID
	case "memo_id":
		return e.MemoID
	case "loading_slip_id":
		return e.LoadingSlipID
	}
	return ""
}

// Signed returns the amount signed by type (credit positive).
func (e *Entry) Signed() decimal.Decimal {
	return e.Type.Signed(e.Amount)
}

// Validate checks required fields and amounts.
func Validate(e *Entry) error {
	if e == nil {
		return ErrNilEntry
	}
	if !e.Type.IsValid() {
		return &logistics.ValidationError{Err: logistics.ErrInvalidType, Details: "type " + string(e.Type)}
	}
	if e.Category == "" {
		return &logistics.ValidationError{Err: logistics.ErrRequiredField, Details: "category"}
	}
	if e.Date.IsZero() {
		return &logistics.ValidationError{Err: logistics.ErrRequiredField, Details: "date"}
	}
	if e.Amount.IsNegative() {
		return &logistics.ValidationError{Err: logistics.ErrNegativeAmount, Details: "amount"}
	}
	return nil
}

// Before orders entries by (date, created_at, seq) ascending.
func Before(a, b *Entry) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// Latest returns the entry that sorts last by (date, created_at, seq), or nil.
func Latest(entries []*Entry) *Entry {
	var latest *Entry
	for _, e := range entries {
		if e == nil {
			continue
		}
		if latest == nil || Before(latest, e) {
			latest = e
		}
	}
	return latest
}

// NextBalance is the running balance of e when appended after prev.
// A nil predecessor starts from zero.
func NextBalance(prev, e *Entry) decimal.Decimal {
	base := decimal.Zero
	if prev != nil {
		base = prev.RunningBalance
	}
	return base.Add(e.Signed())
}

// IsBackdated reports whether e sorts before the current latest entry, i.e. its
// insertion leaves later-dated balances stale.
func IsBackdated(latest, e *Entry) bool {
	return latest != nil && e.Date.Before(latest.Date)
}

// SortAscending sorts entries in place by (date, created_at, seq).
func SortAscending(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool { return Before(entries[i], entries[j]) })
}

// BalanceBreak describes an entry whose stored running balance does not follow
// from its predecessor.
type BalanceBreak struct {
	EntryID  string          `json:"entry_id"`
	Position int             `json:"position"`
	Stored   decimal.Decimal `json:"stored"`
	Expected decimal.Decimal `json:"expected"`
}

// Verify walks entries in (date, created_at, seq) order and reports every break
// in running_balance[i] == running_balance[i-1] + signed(amount[i]).
func Verify(entries []*Entry) []BalanceBreak {
	ordered := append([]*Entry(nil), entries...)
	SortAscending(ordered)
	var breaks []BalanceBreak
	var prev *Entry
	for i, e := range ordered {
		expected := NextBalance(prev, e)
		if !expected.Equal(e.RunningBalance) {
			breaks = append(breaks, BalanceBreak{
				EntryID:  e.ID,
				Position: i,
				Stored:   e.RunningBalance,
				Expected: expected,
			})
		}
		prev = e
	}
	return breaks
}

// Recompute rewrites running balances in chronological order and returns the
// entries whose balance changed. Entries are modified in place.
func Recompute(entries []*Entry) []*Entry {
	ordered := append([]*Entry(nil), entries...)
	SortAscending(ordered)
	var changed []*Entry
	var prev *Entry
	for _, e := range ordered {
		next := NextBalance(prev, e)
		if !next.Equal(e.RunningBalance) {
			e.RunningBalance = next
			changed = append(changed, e)
		}
		prev = e
	}
	return changed
}
