package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
)

// #region interfaces
// Sink accepts records in arrival order.
type Sink interface {
	Append(rec Record) error
	Close() error
}

// Reader reads persisted records back. Tail returns the last n records of the
// given kind (any kind when empty) oldest first; n <= 0 returns all of them.
// TailQuery is Tail with dyad and session filters applied while reading, so a
// bounded n stops as soon as n matches are found. Malformed entries are
// skipped, never fatal.
type Reader interface {
	Tail(kind EventKind, n int) ([]Record, error)
	TailQuery(q Query, n int) ([]Record, error)
	ReadAll() ([]Record, error)
}

// Query selects records for TailQuery. Empty fields match everything.
type Query struct {
	Kind    EventKind
	Dyad    string
	Session string
}

// Match reports whether rec passes every set field.
func (q Query) Match(rec Record) bool {
	if q.Kind != "" && rec.Kind != q.Kind {
		return false
	}
	if q.Dyad != "" && rec.Dyad != q.Dyad {
		return false
	}
	return q.Session == "" || rec.SessionID == q.Session
}

// Store is a sink that can also be read back.
type Store interface {
	Sink
	Reader
}

// #endregion interfaces

// #region decode
// DecodeRecord parses one serialized record and applies the kind filter.
// Blank, malformed, or discriminator-less entries report ok=false.
func DecodeRecord(data []byte, kind EventKind) (Record, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false
	}
	if rec.Kind == "" {
		return Record{}, false
	}
	if kind != "" && rec.Kind != kind {
		return Record{}, false
	}
	return rec, true
}

func reverse(recs []Record) {
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
}

// #endregion decode

// #region memory-store
// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores the record.
func (m *MemoryStore) Append(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Tail returns the last n records of the kind.
func (m *MemoryStore) Tail(kind EventKind, n int) ([]Record, error) {
	return m.TailQuery(Query{Kind: kind}, n)
}

// TailQuery returns the last n records matching q.
func (m *MemoryStore) TailQuery(q Query, n int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for i := len(m.records) - 1; i >= 0; i-- {
		if !q.Match(m.records[i]) {
			continue
		}
		out = append(out, m.records[i])
		if n > 0 && len(out) == n {
			break
		}
	}
	reverse(out)
	return out, nil
}

// ReadAll returns every record.
func (m *MemoryStore) ReadAll() ([]Record, error) {
	return m.Tail("", 0)
}

// Records returns a copy of everything appended so far.
func (m *MemoryStore) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// #endregion memory-store

// #region multi-sink
// MultiSink fans records out to several sinks.
type MultiSink []Sink

// Append writes to every sink and joins their errors.
func (ms MultiSink) Append(rec Record) error {
	var errs []error
	for _, s := range ms {
		if err := s.Append(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (ms MultiSink) Close() error {
	var errs []error
	for _, s := range ms {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every record.
type Discard struct{}

func (Discard) Append(Record) error { return nil }
func (Discard) Close() error        { return nil }

// #endregion multi-sink
