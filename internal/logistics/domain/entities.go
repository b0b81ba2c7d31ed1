package logistics

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"transport-ledger/internal/records"
)

// EntryType is the direction of a money movement.
type EntryType string

const (
	Debit  EntryType = "debit"
	Credit EntryType = "credit"
)

// IsValid reports whether the type is debit or credit.
func (t EntryType) IsValid() bool {
	return t == Debit || t == Credit
}

// Signed returns amount with the sign of the entry type (credit positive).
func (t EntryType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == Debit {
		return amount.Neg()
	}
	return amount
}

// Vehicle ownership values.
const (
	OwnershipOwn    = "own"
	OwnershipMarket = "market"
)

// AdvancePayment is a dated partial payment recorded against a bill or memo.
type AdvancePayment struct {
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Mode      string          `json:"mode,omitempty"`
	Narration string          `json:"narration,omitempty"`
}

// LoadingSlip records a consignment loaded onto a vehicle.
type LoadingSlip struct {
	records.Meta
	SlipNumber string          `json:"slip_number"`
	Date       time.Time       `json:"date"`
	VehicleNo  string          `json:"vehicle_no"`
	PartyID    string          `json:"party_id,omitempty"`
	SupplierID string          `json:"supplier_id,omitempty"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Material   string          `json:"material,omitempty"`
	Weight     decimal.Decimal `json:"weight"`
	Freight    decimal.Decimal `json:"freight"`
	Advance    decimal.Decimal `json:"advance"`
	Balance    decimal.Decimal `json:"balance"`
}

func (s *LoadingSlip) Clone() *LoadingSlip { c := *s; return &c }

func (s *LoadingSlip) Field(name string) string {
	switch name {
	case "vehicle_no":
		return s.VehicleNo
	case "party_id":
		return s.PartyID
	case "supplier_id":
		return s.SupplierID
	case "slip_number":
		return s.SlipNumber
	}
	return ""
}

// Memo is the broker memo issued against a loading slip.
type Memo struct {
	records.Meta
	MemoNumber    string           `json:"memo_number"`
	LoadingSlipID string           `json:"loading_slip_id"`
	SupplierID    string           `json:"supplier_id"`
	VehicleNo     string           `json:"vehicle_no"`
	Date          time.Time        `json:"date"`
	Freight       decimal.Decimal  `json:"freight"`
	Commission    decimal.Decimal  `json:"commission"`
	Mamool        decimal.Decimal  `json:"mamool"`
	Detention     decimal.Decimal  `json:"detention"`
	Extra         decimal.Decimal  `json:"extra"`
	RTO           decimal.Decimal  `json:"rto"`
	Advances      []AdvancePayment `json:"advances,omitempty"`
	NetAmount     decimal.Decimal  `json:"net_amount"`
	PaidAmount    decimal.Decimal  `json:"paid_amount"`
	Balance       decimal.Decimal  `json:"balance"`
	Status        string           `json:"status,omitempty"`
}

func (m *Memo) Clone() *Memo {
	c := *m
	c.Advances = slices.Clone(m.Advances)
	return &c
}

func (m *Memo) Field(name string) string {
	switch name {
	case "supplier_id":
		return m.SupplierID
	case "vehicle_no":
		return m.VehicleNo
	case "loading_slip_id":
		return m.LoadingSlipID
	case "memo_number":
		return m.MemoNumber
	}
	return ""
}

// Bill is the invoice raised to a party against a loading slip.
type Bill struct {
	records.Meta
	BillNumber         string           `json:"bill_number"`
	LoadingSlipID      string           `json:"loading_slip_id"`
	PartyID            string           `json:"party_id"`
	VehicleNo          string           `json:"vehicle_no"`
	Date               time.Time        `json:"date"`
	BillAmount         decimal.Decimal  `json:"bill_amount"`
	Detention          decimal.Decimal  `json:"detention"`
	Extra              decimal.Decimal  `json:"extra"`
	RTO                decimal.Decimal  `json:"rto"`
	Mamool             decimal.Decimal  `json:"mamool"`
	Penalties          decimal.Decimal  `json:"penalties"`
	TDS                decimal.Decimal  `json:"tds"`
	PartyCommissionCut decimal.Decimal  `json:"party_commission_cut"`
	Advances           []AdvancePayment `json:"advances,omitempty"`
	NetAmount          decimal.Decimal  `json:"net_amount"`
	TotalFreight       decimal.Decimal  `json:"total_freight"`
	PaidAmount         decimal.Decimal  `json:"paid_amount"`
	Balance            decimal.Decimal  `json:"balance"`
	Status             string           `json:"status,omitempty"`
	PODFileID          string           `json:"pod_file_id,omitempty"`
}

func (b *Bill) Clone() *Bill {
	c := *b
	c.Advances = slices.Clone(b.Advances)
	return &c
}

func (b *Bill) Field(name string) string {
	switch name {
	case "party_id":
		return b.PartyID
	case "vehicle_no":
		return b.VehicleNo
	case "loading_slip_id":
		return b.LoadingSlipID
	case "bill_number":
		return b.BillNumber
	}
	return ""
}

// BankingEntry is a bank account movement.
type BankingEntry struct {
	records.Meta
	Type       EntryType       `json:"type"`
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	Mode       string          `json:"mode,omitempty"`
	Reference  string          `json:"reference,omitempty"`
	Narration  string          `json:"narration,omitempty"`
	PartyID    string          `json:"party_id,omitempty"`
	SupplierID string          `json:"supplier_id,omitempty"`
	VehicleNo  string          `json:"vehicle_no,omitempty"`
	BillID     string          `json:"bill_id,omitempty"`
	MemoID     string          `json:"memo_id,omitempty"`
}

func (e *BankingEntry) Clone() *BankingEntry { c := *e; return &c }

func (e *BankingEntry) Field(name string) string {
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
	}
	return ""
}

// FuelWallet is a prepaid fuel card account.
type FuelWallet struct {
	records.Meta
	Name      string          `json:"name"`
	Provider  string          `json:"provider,omitempty"`
	VehicleNo string          `json:"vehicle_no,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
}

func (w *FuelWallet) Clone() *FuelWallet { c := *w; return &c }

func (w *FuelWallet) Field(name string) string {
	switch name {
	case "vehicle_no":
		return w.VehicleNo
	case "provider":
		return w.Provider
	}
	return ""
}

// FuelTransaction is a wallet top-up (credit) or a fuel purchase (debit).
type FuelTransaction struct {
	records.Meta
	WalletID  string          `json:"wallet_id"`
	Type      EntryType       `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Litres    decimal.Decimal `json:"litres"`
	Rate      decimal.Decimal `json:"rate"`
	VehicleNo string          `json:"vehicle_no,omitempty"`
	Date      time.Time       `json:"date"`
	Narration string          `json:"narration,omitempty"`
}

func (t *FuelTransaction) Clone() *FuelTransaction { c := *t; return &c }

func (t *FuelTransaction) Field(name string) string {
	switch name {
	case "wallet_id":
		return t.WalletID
	case "vehicle_no":
		return t.VehicleNo
	case "type":
		return string(t.Type)
	}
	return ""
}

// Party is a customer billed for freight.
type Party struct {
	records.Meta
	Name           string          `json:"name"`
	Phone          string          `json:"phone,omitempty"`
	GSTIN          string          `json:"gstin,omitempty"`
	Address        string          `json:"address,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

func (p *Party) Clone() *Party { c := *p; return &c }

func (p *Party) Field(name string) string {
	switch name {
	case "name":
		return p.Name
	case "gstin":
		return p.GSTIN
	}
	return ""
}

// Supplier is a broker or fleet owner paid through memos.
type Supplier struct {
	records.Meta
	Name           string          `json:"name"`
	Phone          string          `json:"phone,omitempty"`
	GSTIN          string          `json:"gstin,omitempty"`
	Address        string          `json:"address,omitempty"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

func (s *Supplier) Clone() *Supplier { c := *s; return &c }

func (s *Supplier) Field(name string) string {
	switch name {
	case "name":
		return s.Name
	case "gstin":
		return s.GSTIN
	}
	return ""
}

// Vehicle is a truck, own or hired from the market.
type Vehicle struct {
	records.Meta
	VehicleNo string `json:"vehicle_no"`
	OwnerName string `json:"owner_name,omitempty"`
	Ownership string `json:"ownership,omitempty"`
}

func (v *Vehicle) Clone() *Vehicle { c := *v; return &c }

func (v *Vehicle) Field(name string) string {
	switch name {
	case "vehicle_no":
		return v.VehicleNo
	case "ownership":
		return v.Ownership
	}
	return ""
}

// PartyCommission is a line of the party commission ledger.
type PartyCommission struct {
	records.Meta
	PartyID   string          `json:"party_id"`
	BillID    string          `json:"bill_id,omitempty"`
	Type      EntryType       `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Narration string          `json:"narration,omitempty"`
}

func (c *PartyCommission) Clone() *PartyCommission { cp := *c; return &cp }

func (c *PartyCommission) Field(name string) string {
	switch name {
	case "party_id":
		return c.PartyID
	case "bill_id":
		return c.BillID
	}
	return ""
}

// PODFile is the proof-of-delivery attachment of a bill.
type PODFile struct {
	records.Meta
	BillID      string    `json:"bill_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	StorageKey  string    `json:"storage_key,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at,omitempty"`
}

func (f *PODFile) Clone() *PODFile { c := *f; return &c }

func (f *PODFile) Field(name string) string {
	if name == "bill_id" {
		return f.BillID
	}
	return ""
}
