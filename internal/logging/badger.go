package logging

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

var recordPrefix = []byte("rec/")

// #region badger-store
// BadgerStore keeps records in a badger database keyed by arrival sequence.
type BadgerStore struct {
	mu  sync.Mutex
	db  *badger.DB
	seq uint64
}

// OpenBadger opens the database at path; an empty path runs in memory.
func OpenBadger(path string) (*BadgerStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path).
			WithCompression(options.ZSTD).
			WithNumVersionsToKeep(1)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", path, err)
	}

	bs := &BadgerStore{db: db}
	last, err := bs.lastSeq()
	if err != nil {
		db.Close()
		return nil, err
	}
	bs.seq = last
	slog.Debug("badger event store opened", slog.String("path", path), slog.Uint64("seq", last))
	return bs, nil
}

func recordKey(seq uint64) []byte {
	k := make([]byte, len(recordPrefix)+8)
	copy(k, recordPrefix)
	binary.BigEndian.PutUint64(k[len(recordPrefix):], seq)
	return k
}

func (bs *BadgerStore) lastSeq() (uint64, error) {
	var last uint64
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append(append([]byte{}, recordPrefix...), 0xFF))
		if it.ValidForPrefix(recordPrefix) {
			k := it.Item().Key()
			last = binary.BigEndian.Uint64(k[len(recordPrefix):])
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan sequence: %w", err)
	}
	return last, nil
}

// #endregion badger-store

// #region badger-sink
// Append stores the record under the next sequence number.
func (bs *BadgerStore) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	next := bs.seq + 1
	err = bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(next), data)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	bs.seq = next
	return nil
}

// Close closes the database.
func (bs *BadgerStore) Close() error {
	return bs.db.Close()
}

// #endregion badger-sink

// #region badger-reader
// Tail walks the keyspace newest first and stops after n matches.
func (bs *BadgerStore) Tail(kind EventKind, n int) ([]Record, error) {
	return bs.TailQuery(Query{Kind: kind}, n)
}

// TailQuery is Tail with the dyad and session filters applied per key.
func (bs *BadgerStore) TailQuery(q Query, n int) ([]Record, error) {
	var out []Record
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(append([]byte{}, recordPrefix...), 0xFF)); it.ValidForPrefix(recordPrefix); it.Next() {
			var rec Record
			var ok bool
			err := it.Item().Value(func(v []byte) error {
				rec, ok = DecodeRecord(v, q.Kind)
				return nil
			})
			if err != nil {
				return err
			}
			if !ok || !q.Match(rec) {
				continue
			}
			out = append(out, rec)
			if n > 0 && len(out) == n {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger tail: %w", err)
	}
	reverse(out)
	return out, nil
}

// ReadAll returns every record oldest first.
func (bs *BadgerStore) ReadAll() ([]Record, error) {
	return bs.Tail("", 0)
}

// #endregion badger-reader
