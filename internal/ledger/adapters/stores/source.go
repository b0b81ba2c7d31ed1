package stores

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	cashbook "transport-ledger/internal/cashbook/domain"
	ledgerapp "transport-ledger/internal/ledger/application"
	ledger "transport-ledger/internal/ledger/domain"
	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/records"
)

// CashbookReader lists cashbook entries.
type CashbookReader interface {
	List(ctx context.Context) ([]*cashbook.Entry, error)
	ListBy(ctx context.Context, field, value string) ([]*cashbook.Entry, error)
}

// EntryReader lists manual ledger entries.
type EntryReader interface {
	List(ctx context.Context) ([]*ledger.Entry, error)
	ListBy(ctx context.Context, field, value string) ([]*ledger.Entry, error)
}

// Stores groups the collections a ledger reads.
type Stores struct {
	Bills            records.Store[*logistics.Bill]
	Memos            records.Store[*logistics.Memo]
	LoadingSlips     records.Store[*logistics.LoadingSlip]
	Banking          records.Store[*logistics.BankingEntry]
	FuelWallets      records.Store[*logistics.FuelWallet]
	FuelTransactions records.Store[*logistics.FuelTransaction]
	Parties          records.Store[*logistics.Party]
	Suppliers        records.Store[*logistics.Supplier]
	Vehicles         records.Store[*logistics.Vehicle]
	Commissions      records.Store[*logistics.PartyCommission]
	Cashbook         CashbookReader
	Entries          EntryReader
}

func (s Stores) validate() error {
	switch {
	case s.Bills == nil, s.Memos == nil, s.LoadingSlips == nil, s.Banking == nil:
		return errors.New("ledger source: nil document store")
	case s.FuelWallets == nil, s.FuelTransactions == nil:
		return errors.New("ledger source: nil fuel store")
	case s.Parties == nil, s.Suppliers == nil, s.Vehicles == nil, s.Commissions == nil:
		return errors.New("ledger source: nil master store")
	case s.Cashbook == nil, s.Entries == nil:
		return errors.New("ledger source: nil entry reader")
	}
	return nil
}

// Source collects ledger movements from the entity stores.
type Source struct {
	stores Stores
}

// NewSource constructs a movement source.
func NewSource(stores Stores) (*Source, error) {
	if err := stores.validate(); err != nil {
		return nil, err
	}
	return &Source{stores: stores}, nil
}

// Collect implements ledgerapp.MovementSource.
func (s *Source) Collect(ctx context.Context, scope ledger.Scope) (ledgerapp.ScopeData, error) {
	switch scope.Kind {
	case ledger.ScopeParty:
		return s.party(ctx, scope.Key)
	case ledger.ScopeSupplier:
		return s.supplier(ctx, scope.Key)
	case ledger.ScopeVehicle:
		return s.vehicle(ctx, logistics.CanonicalVehicleNo(scope.Key))
	case ledger.ScopeGeneral:
		return s.general(ctx)
	case ledger.ScopeFuelWallet:
		return s.fuelWallet(ctx, scope.Key)
	case ledger.ScopeCommission:
		return s.commission(ctx, scope.Key)
	}
	return ledgerapp.ScopeData{}, fmt.Errorf("%w: kind %q", ledger.ErrInvalidScope, scope.Kind)
}

func (s *Source) party(ctx context.Context, partyID string) (ledgerapp.ScopeData, error) {
	party, err := s.stores.Parties.Get(ctx, partyID)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	var out []ledger.Movement

	bills, err := s.stores.Bills.ListBy(ctx, "party_id", partyID)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, bill := range bills {
		out = append(out, billMovements(bill)...)
	}

	banking, err := s.stores.Banking.ListBy(ctx, "party_id", partyID)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, e := range banking {
		if e.Type == logistics.Credit {
			out = append(out, bankingMovement(e, ledger.ColumnDebitPayment))
		}
	}

	cash, err := s.stores.Cashbook.ListBy(ctx, "party_id", partyID)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, e := range cash {
		if e.Type == logistics.Credit {
			out = append(out, cashbookMovement(e, ledger.ColumnDebitPayment))
		}
	}

	manual, err := s.manualEntries(ctx, "party_id", partyID, ledger.LedgerParty)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	out = append(out, manual...)
	out = withOpening(out, party.OpeningBalance, party.Meta)
	return ledgerapp.ScopeData{Title: "Party Ledger - " + party.Name, Movements: out}, nil
}

func (s *Source) supplier(ctx context.Context, supplierID string) (ledgerapp.ScopeData, error) {
	supplier, err := s.stores.Suppliers.Get(ctx, supplierID)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	var out []ledger.Movement

	memos, err := s.stores.Memos.ListBy(ctx, "supplier_id", supplierID)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, memo := range memos {
		out = append(out, memoMovements(memo)...)
	}

	banking, err := s.stores.Banking.ListBy(ctx, "supplier_id", supplierID)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, e := range banking {
		if e.Type == logistics.Debit {
			out = append(out, bankingMovement(e, ledger.ColumnDebitPayment))
		}
	}

	cash, err := s.stores.Cashbook.ListBy(ctx, "supplier_id", supplierID)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, e := range cash {
		if e.Type == logistics.Debit {
			out = append(out, cashbookMovement(e, ledger.ColumnDebitPayment))
		}
	}

	manual, err := s.manualEntries(ctx, "supplier_id", supplierID, ledger.LedgerSupplier)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	out = append(out, manual...)
	out = withOpening(out, supplier.OpeningBalance, supplier.Meta)
	return ledgerapp.ScopeData{Title: "Supplier Ledger - " + supplier.Name, Movements: out}, nil
}

func (s *Source) vehicle(ctx context.Context, vehicleNo string) (ledgerapp.ScopeData, error) {
	if vehicleNo == "" {
		return ledgerapp.ScopeData{}, fmt.Errorf("%w: vehicle key required", ledger.ErrInvalidScope)
	}
	title := "Vehicle Ledger - " + vehicleNo
	vehicles, err := s.stores.Vehicles.ListBy(ctx, "vehicle_no", vehicleNo)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	if len(vehicles) > 0 && vehicles[0].OwnerName != "" {
		title += " (" + vehicles[0].OwnerName + ")"
	}
	var out []ledger.Movement

	bills, err := s.stores.Bills.ListBy(ctx, "vehicle_no", vehicleNo)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, bill := range bills {
		out = append(out, ledger.Movement{
			Date:        bill.Date,
			CreatedAt:   bill.CreatedAt,
			Seq:         bill.Seq,
			SourceType:  ledger.SourceBill,
			SourceID:    bill.ID,
			Reference:   bill.BillNumber,
			Description: "Freight bill",
			Column:      ledger.ColumnCredit,
			Amount:      bill.NetAmount,
		})
	}

	slips, err := s.stores.LoadingSlips.ListBy(ctx, "vehicle_no", vehicleNo)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, slip := range slips {
		if !slip.Advance.IsPositive() {
			continue
		}
		out = append(out, ledger.Movement{
			Date:        slip.Date,
			CreatedAt:   slip.CreatedAt,
			Seq:         slip.Seq,
			SourceType:  ledger.SourceLoadingSlip,
			SourceID:    slip.ID,
			Reference:   slip.SlipNumber,
			Description: fmt.Sprintf("Advance %s to %s", slip.From, slip.To),
			Column:      ledger.ColumnDebitAdvance,
			Amount:      slip.Advance,
		})
	}

	banking, err := s.stores.Banking.ListBy(ctx, "vehicle_no", vehicleNo)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, e := range banking {
		if e.Type == logistics.Debit {
			out = append(out, bankingMovement(e, ledger.ColumnDebitPayment))
		}
	}

	cash, err := s.stores.Cashbook.ListBy(ctx, "vehicle_no", vehicleNo)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, e := range cash {
		if e.Type == logistics.Debit {
			out = append(out, cashbookMovement(e, ledger.ColumnDebitPayment))
		}
	}

	fuel, err := s.stores.FuelTransactions.ListBy(ctx, "vehicle_no", vehicleNo)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, tx := range fuel {
		if tx.Type == logistics.Debit {
			out = append(out, fuelMovement(tx))
		}
	}

	entries, err := s.stores.Entries.ListBy(ctx, "vehicle_no", vehicleNo)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, e := range entries {
		switch e.LedgerType {
		case ledger.LedgerVehicle, ledger.LedgerVehicleIncome, ledger.LedgerVehicleExpense:
			out = append(out, entryMovement(e))
		}
	}
	return ledgerapp.ScopeData{Title: title, Movements: out}, nil
}

func (s *Source) general(ctx context.Context) (ledgerapp.ScopeData, error) {
	var out []ledger.Movement

	banking, err := s.stores.Banking.List(ctx)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, e := range banking {
		out = append(out, bankingMovement(e, generalColumn(e.Type, e.Category)))
	}

	cash, err := s.stores.Cashbook.List(ctx)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, e := range cash {
		out = append(out, cashbookMovement(e, generalColumn(e.Type, e.Category)))
	}

	entries, err := s.stores.Entries.ListBy(ctx, "ledger_type", string(ledger.LedgerGeneral))
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	for _, e := range entries {
		out = append(out, entryMovement(e))
	}
	return ledgerapp.ScopeData{Title: "General Ledger", Movements: out}, nil
}

func (s *Source) fuelWallet(ctx context.Context, walletID string) (ledgerapp.ScopeData, error) {
	wallet, err := s.stores.FuelWallets.Get(ctx, walletID)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	txs, err := s.stores.FuelTransactions.ListBy(ctx, "wallet_id", walletID)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	out := make([]ledger.Movement, 0, len(txs))
	for _, tx := range txs {
		m := fuelMovement(tx)
		if tx.Type == logistics.Credit {
			m.Column = ledger.ColumnCredit
			m.Description = "Wallet top-up"
		}
		out = append(out, m)
	}
	title := "Fuel Wallet - " + wallet.Name
	if wallet.Provider != "" {
		title += " (" + wallet.Provider + ")"
	}
	return ledgerapp.ScopeData{Title: title, Movements: out}, nil
}

func (s *Source) commission(ctx context.Context, partyID string) (ledgerapp.ScopeData, error) {
	party, err := s.stores.Parties.Get(ctx, partyID)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	lines, err := s.stores.Commissions.ListBy(ctx, "party_id", partyID)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	var out []ledger.Movement
	for _, line := range lines {
		out = append(out, ledger.SignedMovement(ledger.Movement{
			Date:        line.Date,
			CreatedAt:   line.CreatedAt,
			Seq:         line.Seq,
			SourceType:  ledger.SourceCommission,
			SourceID:    line.ID,
			Reference:   line.BillID,
			Description: describe("Commission", line.Narration),
		}, line.Type.Signed(line.Amount)))
	}
	manual, err := s.manualEntries(ctx, "party_id", partyID, ledger.LedgerCommission)
	if err != nil {
		return ledgerapp.ScopeData{}, err
	}
	out = append(out, manual...)
	return ledgerapp.ScopeData{Title: "Commission Ledger - " + party.Name, Movements: out}, nil
}

func (s *Source) manualEntries(ctx context.Context, field, value string, ledgerType ledger.LedgerType) ([]ledger.Movement, error) {
	entries, err := s.stores.Entries.ListBy(ctx, field, value)
	if err != nil {
		return nil, err
	}
	var out []ledger.Movement
	for _, e := range entries {
		if e.LedgerType == ledgerType {
			out = append(out, entryMovement(e))
		}
	}
	return out, nil
}

func billMovements(bill *logistics.Bill) []ledger.Movement {
	out := []ledger.Movement{{
		Date:        bill.Date,
		CreatedAt:   bill.CreatedAt,
		Seq:         bill.Seq,
		SourceType:  ledger.SourceBill,
		SourceID:    bill.ID,
		Reference:   bill.BillNumber,
		Description: describe("Bill", bill.VehicleNo),
		Column:      ledger.ColumnCredit,
		Amount:      bill.NetAmount,
	}}
	for i, adv := range bill.Advances {
		out = append(out, ledger.Movement{
			Date:        adv.Date,
			CreatedAt:   bill.CreatedAt,
			Seq:         bill.Seq,
			Sub:         i + 1,
			SourceType:  ledger.SourceBill,
			SourceID:    bill.ID,
			Reference:   bill.BillNumber,
			Description: describe("Advance received", adv.Mode),
			Column:      ledger.ColumnDebitAdvance,
			Amount:      adv.Amount,
		})
	}
	return out
}

func memoMovements(memo *logistics.Memo) []ledger.Movement {
	out := []ledger.Movement{{
		Date:        memo.Date,
		CreatedAt:   memo.CreatedAt,
		Seq:         memo.Seq,
		SourceType:  ledger.SourceMemo,
		SourceID:    memo.ID,
		Reference:   memo.MemoNumber,
		Description: describe("Memo", memo.VehicleNo),
		Column:      ledger.ColumnCredit,
		Amount:      memo.NetAmount,
	}}
	for i, adv := range memo.Advances {
		out = append(out, ledger.Movement{
			Date:        adv.Date,
			CreatedAt:   memo.CreatedAt,
			Seq:         memo.Seq,
			Sub:         i + 1,
			SourceType:  ledger.SourceMemo,
			SourceID:    memo.ID,
			Reference:   memo.MemoNumber,
			Description: describe("Advance paid", adv.Mode),
			Column:      ledger.ColumnDebitAdvance,
			Amount:      adv.Amount,
		})
	}
	return out
}

func bankingMovement(e *logistics.BankingEntry, column ledger.Column) ledger.Movement {
	return ledger.Movement{
		Date:        e.Date,
		CreatedAt:   e.CreatedAt,
		Seq:         e.Seq,
		SourceType:  ledger.SourceBanking,
		SourceID:    e.ID,
		Reference:   e.Reference,
		Description: describe(titleCase(e.Category), e.Narration),
		Column:      column,
		Amount:      e.Amount,
	}
}

func cashbookMovement(e *cashbook.Entry, column ledger.Column) ledger.Movement {
	return ledger.Movement{
		Date:        e.Date,
		CreatedAt:   e.CreatedAt,
		Seq:         e.Seq,
		SourceType:  ledger.SourceCashbook,
		SourceID:    e.ID,
		Description: describe(titleCase(e.Category), e.Narration),
		Column:      column,
		Amount:      e.Amount,
	}
}

func fuelMovement(tx *logistics.FuelTransaction) ledger.Movement {
	desc := "Fuel"
	if tx.Litres.IsPositive() {
		desc = fmt.Sprintf("Fuel %s L @ %s", tx.Litres.String(), tx.Rate.StringFixed(2))
	}
	return ledger.Movement{
		Date:        tx.Date,
		CreatedAt:   tx.CreatedAt,
		Seq:         tx.Seq,
		SourceType:  ledger.SourceFuel,
		SourceID:    tx.ID,
		Reference:   tx.VehicleNo,
		Description: describe(desc, tx.Narration),
		Column:      ledger.ColumnDebitPayment,
		Amount:      tx.Amount,
	}
}

func entryMovement(e *ledger.Entry) ledger.Movement {
	return ledger.SignedMovement(ledger.Movement{
		Date:        e.Date,
		CreatedAt:   e.CreatedAt,
		Seq:         e.Seq,
		SourceType:  ledger.SourceManual,
		SourceID:    e.ID,
		Reference:   e.ReferenceID,
		Description: describe(titleCase(strings.ReplaceAll(string(e.LedgerType), "_", " ")), e.Narration),
	}, e.Net())
}

// withOpening prepends the master record's opening balance, dated on the
// earliest movement so it sorts first.
func withOpening(movements []ledger.Movement, opening decimal.Decimal, meta records.Meta) []ledger.Movement {
	if opening.IsZero() {
		return movements
	}
	date := meta.CreatedAt
	for _, m := range movements {
		if date.IsZero() || m.Date.Before(date) {
			date = m.Date
		}
	}
	y, mo, d := date.UTC().Date()
	date = time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	m := ledger.SignedMovement(ledger.Movement{
		Date:        date,
		SourceType:  ledger.SourceOpening,
		SourceID:    meta.ID,
		Description: ledger.OpeningBalanceLabel,
	}, opening)
	return slices.Insert(movements, 0, m)
}

func generalColumn(t logistics.EntryType, category string) ledger.Column {
	if t == logistics.Credit {
		return ledger.ColumnCredit
	}
	if strings.EqualFold(category, cashbook.CategoryAdvance) {
		return ledger.ColumnDebitAdvance
	}
	return ledger.ColumnDebitPayment
}

func describe(label, detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return label
	}
	if label == "" {
		return detail
	}
	return label + " - " + detail
}

func titleCase(value string) string {
	if value == "" {
		return ""
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
