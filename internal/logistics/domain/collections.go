package logistics

// Collection names as exposed over REST and in change notifications.
const (
	CollectionLoadingSlips     = "loading_slips"
	CollectionMemos            = "memos"
	CollectionBills            = "bills"
	CollectionBankingEntries   = "banking_entries"
	CollectionCashbookEntries  = "cashbook_entries"
	CollectionFuelWallets      = "fuel_wallets"
	CollectionFuelTransactions = "fuel_transactions"
	CollectionParties          = "parties"
	CollectionSuppliers        = "suppliers"
	CollectionVehicles         = "vehicles"
	CollectionPartyCommissions = "party_commission_ledger"
	CollectionPODFiles         = "pod_files"
	CollectionLedgerEntries    = "ledger_entries"
)

// Collections lists every synchronized collection.
var Collections = []string{
	CollectionLoadingSlips,
	CollectionMemos,
	CollectionBills,
	CollectionBankingEntries,
	CollectionCashbookEntries,
	CollectionFuelWallets,
	CollectionFuelTransactions,
	CollectionParties,
	CollectionSuppliers,
	CollectionVehicles,
	CollectionPartyCommissions,
	CollectionPODFiles,
	CollectionLedgerEntries,
}
