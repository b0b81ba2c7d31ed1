package apihttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	logistics "transport-ledger/internal/logistics/domain"
	"transport-ledger/internal/records"
)

const maxBodyBytes = 1 << 20

// CollectionService is the CRUD surface a REST collection is served from.
type CollectionService[T any] interface {
	List(ctx context.Context) ([]T, error)
	ListBy(ctx context.Context, field, value string) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, record T) (T, error)
	Update(ctx context.Context, record T) (T, error)
	Delete(ctx context.Context, id string) error
}

type identified interface {
	Metadata() *records.Meta
}

// Resource is one collection exposed under /api/v1/{name}.
type Resource interface {
	Name() string
	list(ctx context.Context, query url.Values) (any, error)
	get(ctx context.Context, id string) (any, error)
	create(ctx context.Context, body io.Reader) (any, string, error)
	update(ctx context.Context, id string, body io.Reader) (any, error)
	delete(ctx context.Context, id string) error
}

type resource[T identified] struct {
	name    string
	service CollectionService[T]
	newFn   func() T
	filters []string
}

// NewResource exposes a collection service. filters names the query
// parameters accepted on list; the first one present is applied.
func NewResource[T identified](name string, service CollectionService[T], newFn func() T, filters ...string) Resource {
	return &resource[T]{name: name, service: service, newFn: newFn, filters: filters}
}

func (r *resource[T]) Name() string { return r.name }

func (r *resource[T]) list(ctx context.Context, query url.Values) (any, error) {
	for _, field := range r.filters {
		if !query.Has(field) {
			continue
		}
		value := query.Get(field)
		if field == "vehicle_no" {
			value = logistics.CanonicalVehicleNo(value)
		}
		items, err := r.service.ListBy(ctx, field, value)
		return nonNil(items), err
	}
	items, err := r.service.List(ctx)
	return nonNil(items), err
}

func (r *resource[T]) get(ctx context.Context, id string) (any, error) {
	return r.service.Get(ctx, id)
}

func (r *resource[T]) create(ctx context.Context, body io.Reader) (any, string, error) {
	record := r.newFn()
	if err := decodeBody(body, record); err != nil {
		return nil, "", err
	}
	meta := record.Metadata()
	*meta = records.Meta{ID: meta.ID}
	created, err := r.service.Create(ctx, record)
	if err != nil {
		return nil, "", err
	}
	return created, created.Metadata().ID, nil
}

func (r *resource[T]) update(ctx context.Context, id string, body io.Reader) (any, error) {
	record := r.newFn()
	if err := decodeBody(body, record); err != nil {
		return nil, err
	}
	meta := record.Metadata()
	if meta.ID != "" && meta.ID != id {
		return nil, &badRequestError{msg: fmt.Sprintf("body id %q does not match path id %q", meta.ID, id)}
	}
	meta.ID = id
	return r.service.Update(ctx, record)
}

func (r *resource[T]) delete(ctx context.Context, id string) error {
	return r.service.Delete(ctx, id)
}

// decodeBody accepts canonical field names only; unknown fields are rejected.
func decodeBody(body io.Reader, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return &badRequestError{msg: "invalid json: " + err.Error()}
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }
