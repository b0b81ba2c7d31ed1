package logistics

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CanonicalVehicleNo normalizes a registration number (upper case, no spaces or dashes).
func CanonicalVehicleNo(value string) string {
	value = strings.ToUpper(strings.TrimSpace(value))
	return strings.NewReplacer(" ", "", "-", "").Replace(value)
}

type checker struct {
	err error
}

func (c *checker) required(field, value string) {
	if c.err == nil && strings.TrimSpace(value) == "" {
		c.err = invalid(ErrRequiredField, field)
	}
}

func (c *checker) date(field string, value time.Time) {
	if c.err == nil && value.IsZero() {
		c.err = invalid(ErrRequiredField, field)
	}
}

func (c *checker) nonNegative(field string, value decimal.Decimal) {
	if c.err == nil && value.IsNegative() {
		c.err = invalid(ErrNegativeAmount, field)
	}
}

func (c *checker) positive(field string, value decimal.Decimal) {
	if c.err != nil {
		return
	}
	if !value.IsPositive() {
		c.err = invalid(ErrNegativeAmount, field+" must be greater than zero")
	}
}

func (c *checker) entryType(value EntryType) {
	if c.err == nil && !value.IsValid() {
		c.err = invalid(ErrInvalidType, fmt.Sprintf("type %q", value))
	}
}

func (c *checker) advances(advances []AdvancePayment) {
	for i, adv := range advances {
		c.date(fmt.Sprintf("advances[%d].date", i), adv.Date)
		c.positive(fmt.Sprintf("advances[%d].amount", i), adv.Amount)
	}
}

// ValidateLoadingSlip checks required fields and amounts.
func ValidateLoadingSlip(s *LoadingSlip) error {
	c := &checker{}
	c.required("slip_number", s.SlipNumber)
	c.date("date", s.Date)
	c.required("vehicle_no", s.VehicleNo)
	c.nonNegative("weight", s.Weight)
	c.nonNegative("freight", s.Freight)
	c.nonNegative("advance", s.Advance)
	return c.err
}

// ValidateMemo checks required fields and amounts.
func ValidateMemo(m *Memo) error {
	c := &checker{}
	c.required("memo_number", m.MemoNumber)
	c.required("loading_slip_id", m.LoadingSlipID)
	c.required("supplier_id", m.SupplierID)
	c.date("date", m.Date)
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"freight", m.Freight},
		{"commission", m.Commission},
		{"mamool", m.Mamool},
		{"detention", m.Detention},
		{"extra", m.Extra},
		{"rto", m.RTO},
	} {
		c.nonNegative(f.name, f.value)
	}
	c.advances(m.Advances)
	return c.err
}

// ValidateBill checks required fields and amounts.
func ValidateBill(b *Bill) error {
	c := &checker{}
	c.required("bill_number", b.BillNumber)
	c.required("loading_slip_id", b.LoadingSlipID)
	c.required("party_id", b.PartyID)
	c.date("date", b.Date)
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"bill_amount", b.BillAmount},
		{"detention", b.Detention},
		{"extra", b.Extra},
		{"rto", b.RTO},
		{"mamool", b.Mamool},
		{"penalties", b.Penalties},
		{"tds", b.TDS},
		{"party_commission_cut", b.PartyCommissionCut},
	} {
		c.nonNegative(f.name, f.value)
	}
	c.advances(b.Advances)
	return c.err
}

// ValidateBankingEntry checks required fields and amounts.
func ValidateBankingEntry(e *BankingEntry) error {
	c := &checker{}
	c.entryType(e.Type)
	c.required("category", e.Category)
	c.date("date", e.Date)
	c.positive("amount", e.Amount)
	return c.err
}

// ValidateFuelWallet checks required fields.
func ValidateFuelWallet(w *FuelWallet) error {
	c := &checker{}
	c.required("name", w.Name)
	return c.err
}

// ValidateFuelTransaction checks required fields and amounts.
func ValidateFuelTransaction(t *FuelTransaction) error {
	c := &checker{}
	c.required("wallet_id", t.WalletID)
	c.entryType(t.Type)
	c.date("date", t.Date)
	c.positive("amount", t.Amount)
	c.nonNegative("litres", t.Litres)
	c.nonNegative("rate", t.Rate)
	return c.err
}

// ValidateParty checks required fields.
func ValidateParty(p *Party) error {
	c := &checker{}
	c.required("name", p.Name)
	return c.err
}

// ValidateSupplier checks required fields.
func ValidateSupplier(s *Supplier) error {
	c := &checker{}
	c.required("name", s.Name)
	return c.err
}

// ValidateVehicle checks required fields and ownership.
func ValidateVehicle(v *Vehicle) error {
	c := &checker{}
	c.required("vehicle_no", v.VehicleNo)
	if c.err == nil && v.Ownership != "" && v.Ownership != OwnershipOwn && v.Ownership != OwnershipMarket {
		c.err = invalid(ErrInvalidType, fmt.Sprintf("ownership %q", v.Ownership))
	}
	return c.err
}

// ValidatePartyCommission checks required fields and amounts.
func ValidatePartyCommission(pc *PartyCommission) error {
	c := &checker{}
	c.required("party_id", pc.PartyID)
	c.entryType(pc.Type)
	c.date("date", pc.Date)
	c.positive("amount", pc.Amount)
	return c.err
}

// ValidatePODFile checks required fields.
func ValidatePODFile(f *PODFile) error {
	c := &checker{}
	c.required("bill_id", f.BillID)
	c.required("file_name", f.FileName)
	if c.err == nil && f.Size < 0 {
		c.err = invalid(ErrNegativeAmount, "size")
	}
	return c.err
}
