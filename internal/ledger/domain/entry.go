package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/records"
)

// LedgerType names the book a manual entry is posted to.
type LedgerType string

const (
	LedgerGeneral        LedgerType = "general"
	LedgerParty          LedgerType = "party"
	LedgerSupplier       LedgerType = "supplier"
	LedgerVehicle        LedgerType = "vehicle"
	LedgerVehicleIncome  LedgerType = "vehicle_income"
	LedgerVehicleExpense LedgerType = "vehicle_expense"
	LedgerCommission     LedgerType = "commission"
)

func (t LedgerType) IsValid() bool {
	switch t {
	case LedgerGeneral, LedgerParty, LedgerSupplier, LedgerVehicle,
		LedgerVehicleIncome, LedgerVehicleExpense, LedgerCommission:
		return true
	}
	return false
}

// SourceType names the record a ledger row was derived from.
type SourceType string

const (
	SourceOpening     SourceType = "opening_balance"
	SourceBill        SourceType = "bill"
	SourceMemo        SourceType = "memo"
	SourceLoadingSlip SourceType = "loading_slip"
	SourceBanking     SourceType = "banking"
	SourceCashbook    SourceType = "cashbook"
	SourceFuel        SourceType = "fuel"
	SourceCommission  SourceType = "party_commission"
	SourceManual      SourceType = "manual"
)

// sourceRank breaks ties between rows sharing date, creation time and sequence.
func sourceRank(t SourceType) int {
	switch t {
	case SourceOpening:
		return 0
	case SourceBill:
		return 1
	case SourceMemo:
		return 2
	case SourceLoadingSlip:
		return 3
	case SourceBanking:
		return 4
	case SourceCashbook:
		return 5
	case SourceFuel:
		return 6
	case SourceCommission:
		return 7
	case SourceManual:
		return 8
	}
	return 9
}

// entrySources are the source types a stored LedgerEntry may carry.
var entrySources = map[SourceType]struct{}{
	SourceMemo: {}, SourceBill: {}, SourceBanking: {}, SourceCashbook: {}, SourceFuel: {}, SourceManual: {},
}

var (
	// ErrNilEntry is returned when a nil entry is written.
	ErrNilEntry = errors.New("ledger: nil entry")
	// ErrAmountSide is returned unless exactly one of debit and credit is non-zero.
	ErrAmountSide = errors.New("ledger: exactly one of debit or credit must be non-zero")
	// ErrAppendOnly is returned when rewriting a posted entry.
	ErrAppendOnly = errors.New("ledger: entries are append-only")
	// ErrInvalidScope is returned for an unknown ledger scope.
	ErrInvalidScope = errors.New("ledger: invalid scope")
)

// Entry is a manually posted ledger line. Balance is the running total of its
// scope after this entry, fixed at post time.
type Entry struct {
	records.Meta
	ReferenceID string          `json:"reference_id,omitempty"`
	LedgerType  LedgerType      `json:"ledger_type"`
	SourceType  SourceType      `json:"source_type"`
	PartyID     string          `json:"party_id,omitempty"`
	SupplierID  string          `json:"supplier_id,omitempty"`
	VehicleNo   string          `json:"vehicle_no,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
	Date        time.Time       `json:"date"`
	Narration   string          `json:"narration,omitempty"`
}

func (e *Entry) Clone() *Entry { c := *e; return &c }

func (e *Entry) Field(name string) string {
	switch name {
	case "ledger_type":
		return string(e.LedgerType)
	case "source_type":
		return string(e.SourceType)
	case "party_id":
		return e.PartyID
	case "supplier_id":
		return e.SupplierID
	case "vehicle_no":
		return e.VehicleNo
	case "reference_id":
		return e.ReferenceID
	}
	return ""
}

// Scope returns the running-balance scope key of the entry. Vehicle income and
// expense share the vehicle's scope.
func (e *Entry) Scope() string {
	switch e.LedgerType {
	case LedgerParty:
		return "party:" + e.PartyID
	case LedgerCommission:
		return "commission:" + e.PartyID
	case LedgerSupplier:
		return "supplier:" + e.SupplierID
	case LedgerVehicle, LedgerVehicleIncome, LedgerVehicleExpense:
		return "vehicle:" + e.VehicleNo
	}
	return "general"
}

// Net is credit minus debit.
func (e *Entry) Net() decimal.Decimal {
	return e.Credit.Sub(e.Debit)
}

// Validate checks an entry before posting.
func Validate(e *Entry) error {
	if e == nil {
		return ErrNilEntry
	}
	if !e.LedgerType.IsValid() {
		return &logistics.ValidationError{Err: logistics.ErrInvalidType, Details: "ledger_type " + string(e.LedgerType)}
	}
	if e.SourceType == "" {
		e.SourceType = SourceManual
	}
	if _, ok := entrySources[e.SourceType]; !ok {
		return &logistics.ValidationError{Err: logistics.ErrInvalidType, Details: "source_type " + string(e.SourceType)}
	}
	if e.Date.IsZero() {
		return &logistics.ValidationError{Err: logistics.ErrRequiredField, Details: "date"}
	}
	if e.Debit.IsNegative() {
		return &logistics.ValidationError{Err: logistics.ErrNegativeAmount, Details: "debit"}
	}
	if e.Credit.IsNegative() {
		return &logistics.ValidationError{Err: logistics.ErrNegativeAmount, Details: "credit"}
	}
	if e.Debit.IsZero() == e.Credit.IsZero() {
		return &logistics.ValidationError{Err: ErrAmountSide}
	}
	switch e.LedgerType {
	case LedgerParty, LedgerCommission:
		if e.PartyID == "" {
			return &logistics.ValidationError{Err: logistics.ErrRequiredField, Details: "party_id"}
		}
	case LedgerSupplier:
		if e.SupplierID == "" {
			return &logistics.ValidationError{Err: logistics.ErrRequiredField, Details: "supplier_id"}
		}
	case LedgerVehicle, LedgerVehicleIncome, LedgerVehicleExpense:
		if e.VehicleNo == "" {
			return &logistics.ValidationError{Err: logistics.ErrRequiredField, Details: "vehicle_no"}
		}
	}
	return nil
}

// EntryBefore orders entries by (date, created_at, seq).
func EntryBefore(a, b *Entry) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// LatestInScope returns the last entry of scope, or nil.
func LatestInScope(entries []*Entry, scope string) *Entry {
	var latest *Entry
	for _, e := range entries {
		if e == nil || e.Scope() != scope {
			continue
		}
		if latest == nil || EntryBefore(latest, e) {
			latest = e
		}
	}
	return latest
}

// NextBalance is the balance of e when posted after prev.
func NextBalance(prev, e *Entry) decimal.Decimal {
	base := decimal.Zero
	if prev != nil {
		base = prev.Balance
	}
	return base.Add(e.Net())
}

// Repository persists ledger entries.
type Repository interface {
	// Append stores e with its balance derived from the latest entry of the
	// same scope; the read and the insert happen atomically.
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context) ([]*Entry, error)
	ListBy(ctx context.Context, field, value string) ([]*Entry, error)
	Get(ctx context.Context, id string) (*Entry, error)
}
