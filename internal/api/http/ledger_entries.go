package apihttp

import (
	"context"

	ledgerapp "transport-ledger/internal/ledger/application"
	ledger "transport-ledger/internal/ledger/domain"
)

// ledgerEntries serves manual ledger entries, which are append-only.
type ledgerEntries struct {
	service *ledgerapp.EntryService
}

func (l ledgerEntries) List(ctx context.Context) ([]*ledger.Entry, error) {
	return l.service.List(ctx)
}

func (l ledgerEntries) ListBy(ctx context.Context, field, value string) ([]*ledger.Entry, error) {
	return l.service.ListBy(ctx, field, value)
}

func (l ledgerEntries) Get(ctx context.Context, id string) (*ledger.Entry, error) {
	return l.service.Get(ctx, id)
}

func (l ledgerEntries) Create(ctx context.Context, e *ledger.Entry) (*ledger.Entry, error) {
	return l.service.Post(ctx, e)
}

func (ledgerEntries) Update(context.Context, *ledger.Entry) (*ledger.Entry, error) {
	return nil, ledger.ErrAppendOnly
}

func (ledgerEntries) Delete(context.Context, string) error {
	return ledger.ErrAppendOnly
}
