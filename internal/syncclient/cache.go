package syncclient

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Snapshot is one immutable generation of the client cache. A new snapshot
// replaces the previous one wholesale; readers never see a partial update.
type Snapshot struct {
	Generation  uint64
	FetchedAt   time.Time
	Collections map[string][]json.RawMessage
}

// Records returns the cached records of a collection.
func (s *Snapshot) Records(collection string) []json.RawMessage {
	if s == nil {
		return nil
	}
	return s.Collections[collection]
}

// Decode unmarshals the cached records of a collection into T.
func Decode[T any](s *Snapshot, collection string) ([]T, error) {
	raw := s.Records(collection)
	out := make([]T, 0, len(raw))
	for i, item := range raw {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, fmt.Errorf("syncclient: decode %s[%d]: %w", collection, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// with returns a copy of s where collection is replaced by records. The
// other collections share their slices, which are never mutated in place.
func (s *Snapshot) with(generation uint64, collection string, records []json.RawMessage) *Snapshot {
	next := &Snapshot{
		Generation:  generation,
		FetchedAt:   time.Now().UTC(),
		Collections: make(map[string][]json.RawMessage, len(s.Collections)+1),
	}
	for name, items := range s.Collections {
		next.Collections[name] = items
	}
	next.Collections[collection] = records
	return next
}

type recordID struct {
	ID string `json:"id"`
}

func idOf(raw json.RawMessage) string {
	var r recordID
	_ = json.Unmarshal(raw, &r)
	return r.ID
}

// upsert replaces the record with the same id or appends it.
func upsert(items []json.RawMessage, record json.RawMessage) []json.RawMessage {
	id := idOf(record)
	out := slices.Clone(items)
	for i, item := range out {
		if id != "" && idOf(item) == id {
			out[i] = record
			return out
		}
	}
	return append(out, record)
}

func remove(items []json.RawMessage, id string) []json.RawMessage {
	return slices.DeleteFunc(slices.Clone(items), func(item json.RawMessage) bool {
		return idOf(item) == id
	})
}
