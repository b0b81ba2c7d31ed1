package changefeed

import (
	"context"
	"time"
)

// TypeDataChange is the only event type emitted on the change stream.
const TypeDataChange = "data_change"

// Event tells clients that a collection changed and cached copies are stale.
type Event struct {
	Type       string    `json:"type"`
	Collection string    `json:"collection"`
	ID         string    `json:"id,omitempty"`
	Op         string    `json:"op,omitempty"`
	At         time.Time `json:"at,omitempty"`
}

// DataChange builds a data_change event.
func DataChange(collection, op, id string) Event {
	return Event{
		Type:       TypeDataChange,
		Collection: collection,
		ID:         id,
		Op:         op,
		At:         time.Now().UTC(),
	}
}

// Mutation operations carried in Event.Op.
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpRecompute = "recompute"
)

// Notifier receives change events. Implementations must not block writers.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// MultiNotifier dispatches events to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards events to all notifiers.
func (m *MultiNotifier) Notify(ctx context.Context, event Event) {
	if m == nil {
		return
	}
	for _, notifier := range m.notifiers {
		if notifier != nil {
			notifier.Notify(ctx, event)
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}
