package storage

import (
	"database/sql"

	"transport-ledger/internal/audit"
	cashbook "transport-ledger/internal/cashbook/domain"
	cashbookmemory "transport-ledger/internal/cashbook/infrastructure/memory"
	cashbookrepo "transport-ledger/internal/cashbook/infrastructure/postgres"
	ledger "transport-ledger/internal/ledger/domain"
	ledgermemory "transport-ledger/internal/ledger/infrastructure/memory"
	ledgerrepo "transport-ledger/internal/ledger/infrastructure/postgres"
	logisticsapp "transport-ledger/internal/logistics/application"
	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/records/memory"
	"transport-ledger/internal/records/postgres"
)

// Backend holds the stores behind every service.
type Backend struct {
	Logistics logisticsapp.Stores
	Cashbook  cashbook.Repository
	Ledger    ledger.Repository
	Audit     audit.Logger
}

// Open returns Postgres-backed stores when db is set, in-memory ones otherwise.
func Open(db *sql.DB) (Backend, error) {
	if db == nil {
		return Backend{
			Logistics: logisticsapp.Stores{
				LoadingSlips:     memory.NewStore[*logistics.LoadingSlip](),
				Memos:            memory.NewStore[*logistics.Memo](),
				Bills:            memory.NewStore[*logistics.Bill](),
				Banking:          memory.NewStore[*logistics.BankingEntry](),
				FuelWallets:      memory.NewStore[*logistics.FuelWallet](),
				FuelTransactions: memory.NewStore[*logistics.FuelTransaction](),
				Parties:          memory.NewStore[*logistics.Party](),
				Suppliers:        memory.NewStore[*logistics.Supplier](),
				Vehicles:         memory.NewStore[*logistics.Vehicle](),
				Commissions:      memory.NewStore[*logistics.PartyCommission](),
				PODFiles:         memory.NewStore[*logistics.PODFile](),
			},
			Cashbook: cashbookmemory.NewRepository(),
			Ledger:   ledgermemory.NewRepository(),
			Audit:    audit.NewMemoryLog(),
		}, nil
	}

	var (
		b   Backend
		err error
	)
	if b.Logistics.LoadingSlips, err = postgres.NewDocumentStore(db, logistics.CollectionLoadingSlips, func() *logistics.LoadingSlip { return &logistics.LoadingSlip{} }); err != nil {
		return b, err
	}
	if b.Logistics.Memos, err = postgres.NewDocumentStore(db, logistics.CollectionMemos, func() *logistics.Memo { return &logistics.Memo{} }); err != nil {
		return b, err
	}
	if b.Logistics.Bills, err = postgres.NewDocumentStore(db, logistics.CollectionBills, func() *logistics.Bill { return &logistics.Bill{} }); err != nil {
		return b, err
	}
	if b.Logistics.Banking, err = postgres.NewDocumentStore(db, logistics.CollectionBankingEntries, func() *logistics.BankingEntry { return &logistics.BankingEntry{} }); err != nil {
		return b, err
	}
	if b.Logistics.FuelWallets, err = postgres.NewDocumentStore(db, logistics.CollectionFuelWallets, func() *logistics.FuelWallet { return &logistics.FuelWallet{} }); err != nil {
		return b, err
	}
	if b.Logistics.FuelTransactions, err = postgres.NewDocumentStore(db, logistics.CollectionFuelTransactions, func() *logistics.FuelTransaction { return &logistics.FuelTransaction{} }); err != nil {
		return b, err
	}
	if b.Logistics.Parties, err = postgres.NewDocumentStore(db, logistics.CollectionParties, func() *logistics.Party { return &logistics.Party{} }); err != nil {
		return b, err
	}
	if b.Logistics.Suppliers, err = postgres.NewDocumentStore(db, logistics.CollectionSuppliers, func() *logistics.Supplier { return &logistics.Supplier{} }); err != nil {
		return b, err
	}
	if b.Logistics.Vehicles, err = postgres.NewDocumentStore(db, logistics.CollectionVehicles, func() *logistics.Vehicle { return &logistics.Vehicle{} }); err != nil {
		return b, err
	}
	if b.Logistics.Commissions, err = postgres.NewDocumentStore(db, logistics.CollectionPartyCommissions, func() *logistics.PartyCommission { return &logistics.PartyCommission{} }); err != nil {
		return b, err
	}
	if b.Logistics.PODFiles, err = postgres.NewDocumentStore(db, logistics.CollectionPODFiles, func() *logistics.PODFile { return &logistics.PODFile{} }); err != nil {
		return b, err
	}
	b.Cashbook = cashbookrepo.NewRepository(db)
	b.Ledger = ledgerrepo.NewRepository(db)
	b.Audit = audit.NewRepository(db)
	return b, nil
}
