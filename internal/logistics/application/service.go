package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"transport-ledger/internal/changefeed"
	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/records"
)

// Stores groups the entity stores the service writes through.
type Stores struct {
	LoadingSlips     records.Store[*logistics.LoadingSlip]
	Memos            records.Store[*logistics.Memo]
	Bills            records.Store[*logistics.Bill]
	Banking          records.Store[*logistics.BankingEntry]
	FuelWallets      records.Store[*logistics.FuelWallet]
	FuelTransactions records.Store[*logistics.FuelTransaction]
	Parties          records.Store[*logistics.Party]
	Suppliers        records.Store[*logistics.Supplier]
	Vehicles         records.Store[*logistics.Vehicle]
	Commissions      records.Store[*logistics.PartyCommission]
	PODFiles         records.Store[*logistics.PODFile]
}

// ContentStore keeps POD payloads.
type ContentStore interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ErrNoContentStore is returned by POD uploads when no content store is configured.
var ErrNoContentStore = errors.New("logistics service: no content store configured")

type deps struct {
	locks    *records.ScopeLocks
	notifier changefeed.Notifier
	logger   *log.Logger
	content  ContentStore
	now      func() time.Time
}

// Option configures the service.
type Option func(*deps)

// WithNotifier sets the change notifier.
func WithNotifier(notifier changefeed.Notifier) Option {
	return func(d *deps) {
		if notifier != nil {
			d.notifier = notifier
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *deps) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithLocks shares a lock set with other services.
func WithLocks(locks *records.ScopeLocks) Option {
	return func(d *deps) {
		if locks != nil {
			d.locks = locks
		}
	}
}

// WithContentStore enables POD payload storage.
func WithContentStore(content ContentStore) Option {
	return func(d *deps) {
		d.content = content
	}
}

// Service is the write boundary for every logistics collection. Derived fields
// are computed here before each write; stored values are never recomputed on read.
type Service struct {
	LoadingSlips     *Collection[*logistics.LoadingSlip]
	Memos            *Collection[*logistics.Memo]
	Bills            *Collection[*logistics.Bill]
	Banking          *Collection[*logistics.BankingEntry]
	FuelWallets      *Collection[*logistics.FuelWallet]
	FuelTransactions *Collection[*logistics.FuelTransaction]
	Parties          *Collection[*logistics.Party]
	Suppliers        *Collection[*logistics.Supplier]
	Vehicles         *Collection[*logistics.Vehicle]
	Commissions      *Collection[*logistics.PartyCommission]
	PODFiles         *Collection[*logistics.PODFile]

	stores Stores
	deps   *deps
}

// NewService wires a collection per store.
func NewService(stores Stores, opts ...Option) (*Service, error) {
	d := &deps{
		locks:    records.NewScopeLocks(),
		notifier: changefeed.Nop{},
		logger:   log.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	s := &Service{stores: stores, deps: d}

	var err error
	if s.LoadingSlips, err = newCollection(logistics.CollectionLoadingSlips, stores.LoadingSlips, s.slipHooks(), d); err != nil {
		return nil, err
	}
	if s.Memos, err = newCollection(logistics.CollectionMemos, stores.Memos, s.memoHooks(), d); err != nil {
		return nil, err
	}
	if s.Bills, err = newCollection(logistics.CollectionBills, stores.Bills, s.billHooks(), d); err != nil {
		return nil, err
	}
	if s.Banking, err = newCollection(logistics.CollectionBankingEntries, stores.Banking, s.bankingHooks(), d); err != nil {
		return nil, err
	}
	if s.FuelWallets, err = newCollection(logistics.CollectionFuelWallets, stores.FuelWallets, s.walletHooks(), d); err != nil {
		return nil, err
	}
	if s.FuelTransactions, err = newCollection(logistics.CollectionFuelTransactions, stores.FuelTransactions, s.fuelHooks(), d); err != nil {
		return nil, err
	}
	if s.Parties, err = newCollection(logistics.CollectionParties, stores.Parties, s.partyHooks(), d); err != nil {
		return nil, err
	}
	if s.Suppliers, err = newCollection(logistics.CollectionSuppliers, stores.Suppliers, s.supplierHooks(), d); err != nil {
		return nil, err
	}
	if s.Vehicles, err = newCollection(logistics.CollectionVehicles, stores.Vehicles, s.vehicleHooks(), d); err != nil {
		return nil, err
	}
	if s.Commissions, err = newCollection(logistics.CollectionPartyCommissions, stores.Commissions, s.commissionHooks(), d); err != nil {
		return nil, err
	}
	if s.PODFiles, err = newCollection(logistics.CollectionPODFiles, stores.PODFiles, s.podHooks(), d); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) slipHooks() Hooks[*logistics.LoadingSlip] {
	return Hooks[*logistics.LoadingSlip]{
		Prepare: func(slip *logistics.LoadingSlip) error {
			slip.VehicleNo = logistics.CanonicalVehicleNo(slip.VehicleNo)
			logistics.ComputeLoadingSlip(slip)
			return logistics.ValidateLoadingSlip(slip)
		},
		BeforeCreate: func(ctx context.Context, slip *logistics.LoadingSlip) error {
			return s.slipRefs(ctx, slip)
		},
		BeforeUpdate: func(ctx context.Context, current, next *logistics.LoadingSlip) error {
			if err := s.ensureSlipUnreferenced(ctx, current.ID); err != nil {
				return err
			}
			return s.slipRefs(ctx, next)
		},
		BeforeDelete: func(ctx context.Context, current *logistics.LoadingSlip) error {
			return s.ensureSlipUnreferenced(ctx, current.ID)
		},
		LockKey: func(slip *logistics.LoadingSlip) string { return slipScope(slip.ID) },
	}
}

// slipScope is the lock shared by a slip's writes and by bill and memo
// writes that reference it.
func slipScope(id string) string {
	if id == "" {
		return ""
	}
	return "loading_slip:" + id
}

func (s *Service) slipRefs(ctx context.Context, slip *logistics.LoadingSlip) error {
	if err := mustExist(ctx, s.stores.Parties, "party_id", slip.PartyID); err != nil {
		return err
	}
	return mustExist(ctx, s.stores.Suppliers, "supplier_id", slip.SupplierID)
}

// ensureSlipUnreferenced rejects changes to a loading slip once a bill or memo
// points at it.
func (s *Service) ensureSlipUnreferenced(ctx context.Context, slipID string) error {
	bills, err := s.stores.Bills.ListBy(ctx, "loading_slip_id", slipID)
	if err != nil {
		return err
	}
	if len(bills) > 0 {
		return fmt.Errorf("%w: bill %s", logistics.ErrSlipReferenced, bills[0].BillNumber)
	}
	memos, err := s.stores.Memos.ListBy(ctx, "loading_slip_id", slipID)
	if err != nil {
		return err
	}
	if len(memos) > 0 {
		return fmt.Errorf("%w: memo %s", logistics.ErrSlipReferenced, memos[0].MemoNumber)
	}
	return nil
}

func (s *Service) memoHooks() Hooks[*logistics.Memo] {
	refs := func(ctx context.Context, memo *logistics.Memo) error {
		slip, err := s.stores.LoadingSlips.Get(ctx, memo.LoadingSlipID)
		if err != nil {
			return referenceError(err, "loading_slip_id", memo.LoadingSlipID)
		}
		if memo.VehicleNo == "" {
			memo.VehicleNo = slip.VehicleNo
		}
		return mustExist(ctx, s.stores.Suppliers, "supplier_id", memo.SupplierID)
	}
	return Hooks[*logistics.Memo]{
		Prepare: func(memo *logistics.Memo) error {
			memo.VehicleNo = logistics.CanonicalVehicleNo(memo.VehicleNo)
			logistics.ComputeMemo(memo)
			return logistics.ValidateMemo(memo)
		},
		BeforeCreate: refs,
		BeforeUpdate: func(ctx context.Context, _, next *logistics.Memo) error {
			return refs(ctx, next)
		},
		LockKey: func(memo *logistics.Memo) string { return slipScope(memo.LoadingSlipID) },
	}
}

func (s *Service) billHooks() Hooks[*logistics.Bill] {
	refs := func(ctx context.Context, bill *logistics.Bill) error {
		slip, err := s.stores.LoadingSlips.Get(ctx, bill.LoadingSlipID)
		if err != nil {
			return referenceError(err, "loading_slip_id", bill.LoadingSlipID)
		}
		if bill.VehicleNo == "" {
			bill.VehicleNo = slip.VehicleNo
		}
		return mustExist(ctx, s.stores.Parties, "party_id", bill.PartyID)
	}
	return Hooks[*logistics.Bill]{
		Prepare: func(bill *logistics.Bill) error {
			bill.VehicleNo = logistics.CanonicalVehicleNo(bill.VehicleNo)
			logistics.ComputeBill(bill)
			return logistics.ValidateBill(bill)
		},
		BeforeCreate: refs,
		BeforeUpdate: func(ctx context.Context, current, next *logistics.Bill) error {
			if next.PODFileID == "" {
				next.PODFileID = current.PODFileID
			}
			return refs(ctx, next)
		},
		BeforeDelete: func(ctx context.Context, current *logistics.Bill) error {
			pods, err := s.stores.PODFiles.ListBy(ctx, "bill_id", current.ID)
			if err != nil {
				return err
			}
			if len(pods) > 0 {
				return fmt.Errorf("%w: pod file %s", logistics.ErrReferenced, pods[0].ID)
			}
			return nil
		},
		LockKey: func(bill *logistics.Bill) string { return slipScope(bill.LoadingSlipID) },
	}
}

func (s *Service) bankingHooks() Hooks[*logistics.BankingEntry] {
	refs := func(ctx context.Context, e *logistics.BankingEntry) error {
		for _, check := range []error{
			mustExist(ctx, s.stores.Parties, "party_id", e.PartyID),
			mustExist(ctx, s.stores.Suppliers, "supplier_id", e.SupplierID),
			mustExist(ctx, s.stores.Bills, "bill_id", e.BillID),
			mustExist(ctx, s.stores.Memos, "memo_id", e.MemoID),
		} {
			if check != nil {
				return check
			}
		}
		return nil
	}
	return Hooks[*logistics.BankingEntry]{
		Prepare: func(e *logistics.BankingEntry) error {
			e.VehicleNo = logistics.CanonicalVehicleNo(e.VehicleNo)
			return logistics.ValidateBankingEntry(e)
		},
		BeforeCreate: refs,
		BeforeUpdate: func(ctx context.Context, _, next *logistics.BankingEntry) error {
			return refs(ctx, next)
		},
	}
}

func (s *Service) walletHooks() Hooks[*logistics.FuelWallet] {
	return Hooks[*logistics.FuelWallet]{
		Prepare: func(w *logistics.FuelWallet) error {
			w.VehicleNo = logistics.CanonicalVehicleNo(w.VehicleNo)
			return logistics.ValidateFuelWallet(w)
		},
		BeforeCreate: func(_ context.Context, w *logistics.FuelWallet) error {
			w.Balance = decimal.Zero
			return nil
		},
		BeforeUpdate: func(ctx context.Context, _, next *logistics.FuelWallet) error {
			// Re-read under the wallet lock; the balance only moves with transactions.
			fresh, err := s.stores.FuelWallets.Get(ctx, next.ID)
			if err != nil {
				return err
			}
			next.Balance = fresh.Balance
			return nil
		},
		BeforeDelete: func(ctx context.Context, current *logistics.FuelWallet) error {
			txs, err := s.stores.FuelTransactions.ListBy(ctx, "wallet_id", current.ID)
			if err != nil {
				return err
			}
			if len(txs) > 0 {
				return fmt.Errorf("%w: %d fuel transactions", logistics.ErrReferenced, len(txs))
			}
			return nil
		},
		LockKey: func(w *logistics.FuelWallet) string { return walletScope(w.ID) },
	}
}

func (s *Service) fuelHooks() Hooks[*logistics.FuelTransaction] {
	return Hooks[*logistics.FuelTransaction]{
		Prepare: func(tx *logistics.FuelTransaction) error {
			tx.VehicleNo = logistics.CanonicalVehicleNo(tx.VehicleNo)
			return logistics.ValidateFuelTransaction(tx)
		},
		BeforeCreate: func(ctx context.Context, tx *logistics.FuelTransaction) error {
			return mustExist(ctx, s.stores.FuelWallets, "wallet_id", tx.WalletID)
		},
		BeforeUpdate: func(ctx context.Context, _, next *logistics.FuelTransaction) error {
			return mustExist(ctx, s.stores.FuelWallets, "wallet_id", next.WalletID)
		},
		AfterWrite: func(ctx context.Context, _ string, before, after *logistics.FuelTransaction) error {
			var wallets []string
			if before != nil {
				wallets = append(wallets, before.WalletID)
			}
			if after != nil && (before == nil || after.WalletID != before.WalletID) {
				wallets = append(wallets, after.WalletID)
			}
			for _, id := range wallets {
				if err := s.refreshWallet(ctx, id); err != nil {
					return err
				}
			}
			return nil
		},
		LockKey: func(tx *logistics.FuelTransaction) string { return walletScope(tx.WalletID) },
	}
}

func walletScope(id string) string { return "fuel_wallet:" + id }

// refreshWallet sets the wallet balance to the signed sum of its transactions.
// Callers hold the wallet's scope lock.
func (s *Service) refreshWallet(ctx context.Context, walletID string) error {
	wallet, err := s.stores.FuelWallets.Get(ctx, walletID)
	if errors.Is(err, records.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	txs, err := s.stores.FuelTransactions.ListBy(ctx, "wallet_id", walletID)
	if err != nil {
		return err
	}
	balance := decimal.Zero
	for _, tx := range txs {
		balance = balance.Add(tx.Type.Signed(tx.Amount))
	}
	if balance.Equal(wallet.Balance) {
		return nil
	}
	wallet.Balance = balance
	if err := s.stores.FuelWallets.Update(ctx, wallet); err != nil {
		return err
	}
	s.deps.notifier.Notify(ctx, changefeed.DataChange(logistics.CollectionFuelWallets, changefeed.OpUpdate, walletID))
	return nil
}

func (s *Service) partyHooks() Hooks[*logistics.Party] {
	return Hooks[*logistics.Party]{
		Prepare: logistics.ValidateParty,
		BeforeDelete: func(ctx context.Context, current *logistics.Party) error {
			bills, err := s.stores.Bills.ListBy(ctx, "party_id", current.ID)
			if err != nil {
				return err
			}
			if len(bills) > 0 {
				return fmt.Errorf("%w: %d bills", logistics.ErrReferenced, len(bills))
			}
			return nil
		},
	}
}

func (s *Service) supplierHooks() Hooks[*logistics.Supplier] {
	return Hooks[*logistics.Supplier]{
		Prepare: logistics.ValidateSupplier,
		BeforeDelete: func(ctx context.Context, current *logistics.Supplier) error {
			memos, err := s.stores.Memos.ListBy(ctx, "supplier_id", current.ID)
			if err != nil {
				return err
			}
			if len(memos) > 0 {
				return fmt.Errorf("%w: %d memos", logistics.ErrReferenced, len(memos))
			}
			return nil
		},
	}
}

func (s *Service) vehicleHooks() Hooks[*logistics.Vehicle] {
	unique := func(ctx context.Context, v *logistics.Vehicle) error {
		existing, err := s.stores.Vehicles.ListBy(ctx, "vehicle_no", v.VehicleNo)
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.ID != v.ID {
				return fmt.Errorf("%w: %s", logistics.ErrVehicleExists, v.VehicleNo)
			}
		}
		return nil
	}
	return Hooks[*logistics.Vehicle]{
		Prepare: func(v *logistics.Vehicle) error {
			v.VehicleNo = logistics.CanonicalVehicleNo(v.VehicleNo)
			return logistics.ValidateVehicle(v)
		},
		BeforeCreate: unique,
		BeforeUpdate: func(ctx context.Context, _, next *logistics.Vehicle) error {
			return unique(ctx, next)
		},
		LockKey: func(v *logistics.Vehicle) string { return "vehicle:" + v.VehicleNo },
	}
}

func (s *Service) commissionHooks() Hooks[*logistics.PartyCommission] {
	refs := func(ctx context.Context, pc *logistics.PartyCommission) error {
		if err := mustExist(ctx, s.stores.Parties, "party_id", pc.PartyID); err != nil {
			return err
		}
		return mustExist(ctx, s.stores.Bills, "bill_id", pc.BillID)
	}
	return Hooks[*logistics.PartyCommission]{
		Prepare:      logistics.ValidatePartyCommission,
		BeforeCreate: refs,
		BeforeUpdate: func(ctx context.Context, _, next *logistics.PartyCommission) error {
			return refs(ctx, next)
		},
	}
}

func (s *Service) podHooks() Hooks[*logistics.PODFile] {
	return Hooks[*logistics.PODFile]{
		Prepare: logistics.ValidatePODFile,
		BeforeCreate: func(ctx context.Context, f *logistics.PODFile) error {
			if f.UploadedAt.IsZero() {
				f.UploadedAt = s.deps.now()
			}
			return mustExist(ctx, s.stores.Bills, "bill_id", f.BillID)
		},
		BeforeUpdate: func(ctx context.Context, current, next *logistics.PODFile) error {
			next.StorageKey = current.StorageKey
			next.Size = current.Size
			next.UploadedAt = current.UploadedAt
			return mustExist(ctx, s.stores.Bills, "bill_id", next.BillID)
		},
		AfterWrite: func(ctx context.Context, op string, before, _ *logistics.PODFile) error {
			if op != changefeed.OpDelete || before == nil {
				return nil
			}
			if before.StorageKey != "" && s.deps.content != nil {
				if err := s.deps.content.Delete(ctx, before.StorageKey); err != nil {
					s.deps.logger.Printf("logistics pod delete: content key=%s err=%v", before.StorageKey, err)
				}
			}
			return s.detachPOD(ctx, before)
		},
	}
}

func (s *Service) detachPOD(ctx context.Context, pod *logistics.PODFile) error {
	bill, err := s.stores.Bills.Get(ctx, pod.BillID)
	if errors.Is(err, records.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if bill.PODFileID != pod.ID {
		return nil
	}
	bill.PODFileID = ""
	if err := s.stores.Bills.Update(ctx, bill); err != nil {
		return err
	}
	s.deps.notifier.Notify(ctx, changefeed.DataChange(logistics.CollectionBills, changefeed.OpUpdate, bill.ID))
	return nil
}

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,8}$`)

// UploadPOD stores a proof-of-delivery payload and attaches it to its bill.
func (s *Service) UploadPOD(ctx context.Context, billID, fileName, contentType string, r io.Reader) (*logistics.PODFile, error) {
	if s.deps.content == nil {
		return nil, ErrNoContentStore
	}
	bill, err := s.stores.Bills.Get(ctx, billID)
	if err != nil {
		return nil, referenceError(err, "bill_id", billID)
	}
	id := records.NewID()
	key := id
	if ext := filepath.Ext(fileName); extPattern.MatchString(ext) {
		key += ext
	}
	size, err := s.deps.content.Save(ctx, key, r)
	if err != nil {
		return nil, err
	}
	pod := &logistics.PODFile{
		Meta:        records.Meta{ID: id},
		BillID:      bill.ID,
		FileName:    filepath.Base(fileName),
		ContentType: contentType,
		Size:        size,
		StorageKey:  key,
		UploadedAt:  s.deps.now(),
	}
	if _, err := s.PODFiles.Create(ctx, pod); err != nil {
		_ = s.deps.content.Delete(ctx, key)
		return nil, err
	}
	bill.PODFileID = pod.ID
	if _, err := s.Bills.Update(ctx, bill); err != nil {
		return nil, err
	}
	return pod, nil
}

// OpenPOD returns a POD's metadata and payload. Callers close the reader.
func (s *Service) OpenPOD(ctx context.Context, id string) (*logistics.PODFile, io.ReadCloser, error) {
	if s.deps.content == nil {
		return nil, nil, ErrNoContentStore
	}
	pod, err := s.stores.PODFiles.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if pod.StorageKey == "" {
		return nil, nil, fmt.Errorf("%w: pod %s has no content", records.ErrNotFound, id)
	}
	rc, err := s.deps.content.Open(ctx, pod.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return pod, rc, nil
}

// mustExist checks an optional reference; empty ids pass.
func mustExist[T records.Record[T]](ctx context.Context, store records.Store[T], field, id string) error {
	if id == "" {
		return nil
	}
	if _, err := store.Get(ctx, id); err != nil {
		return referenceError(err, field, id)
	}
	return nil
}

func referenceError(err error, field, id string) error {
	if errors.Is(err, records.ErrNotFound) {
		return &logistics.ValidationError{Err: logistics.ErrUnknownReference, Details: field + " " + id}
	}
	return err
}
