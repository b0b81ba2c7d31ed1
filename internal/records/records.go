package records

import (
	"context"
	"errors"
	"reflect"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("records: not found")
	// ErrEmptyID is returned when a record has no id.
	ErrEmptyID = errors.New("records: empty id")
	// ErrDuplicateID is returned when creating a record whose id already exists.
	ErrDuplicateID = errors.New("records: duplicate id")
	// ErrNilRecord is returned when a nil record is written.
	ErrNilRecord = errors.New("records: nil record")
)

// Meta carries the identity and write bookkeeping shared by every stored record.
// Seq is assigned by the store on create and is strictly increasing per collection;
// it breaks ties between records created in the same instant.
type Meta struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Metadata exposes the embedded meta for generic stores.
func (m *Meta) Metadata() *Meta { return m }

// NewID generates a record id.
func NewID() string {
	return uuid.NewString()
}

// Record is a persistable entity that can copy itself and expose indexed fields.
type Record[T any] interface {
	Metadata() *Meta
	Clone() T
	// Field returns the string value of an indexed JSON field, or "" when unset.
	Field(name string) string
}

// Store is the CRUD contract every collection store satisfies.
type Store[T Record[T]] interface {
	List(ctx context.Context) ([]T, error)
	ListBy(ctx context.Context, field, value string) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, record T) error
	Update(ctx context.Context, record T) error
	Delete(ctx context.Context, id string) error
}

// Stamp fills id and timestamps for a record about to be created. Creation
// time and sequence belong to the store: any caller-supplied values are
// overwritten, since they order same-date records for running balances.
func Stamp(meta *Meta, now time.Time) {
	if meta == nil {
		return
	}
	if meta.ID == "" {
		meta.ID = NewID()
	}
	meta.Seq = 0
	meta.CreatedAt = now
	meta.UpdatedAt = now
}

// IsNil reports whether v is nil or a typed nil pointer.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
