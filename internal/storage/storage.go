// Package storage opens the event store backend chosen in configuration.
package storage

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/state"
)

// #region backend
// Backend names an event store implementation.
type Backend string

const (
	JSONL  Backend = "jsonl"
	SQLite Backend = "sqlite"
	Badger Backend = "badger"
	Memory Backend = "memory"
)

// Backends lists every supported backend.
func Backends() []Backend {
	return []Backend{JSONL, SQLite, Badger, Memory}
}

// DefaultPath is where the backend stores its log when no path is configured.
// Memory has none.
func (b Backend) DefaultPath() string {
	switch b {
	case JSONL:
		return "coherence_log.jsonl"
	case SQLite:
		return "coherence.db"
	case Badger:
		return "coherence_badger"
	default:
		return ""
	}
}

// ParseBackend accepts a backend name in any case.
func ParseBackend(s string) (Backend, error) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Backends() {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown sink backend %q (want jsonl, sqlite, badger or memory)", s)
}

// #endregion backend

// #region open
// Open returns a store for the backend rooted at path. Memory ignores path,
// and badger runs in memory when path is empty.
func Open(b Backend, path string) (logging.Store, error) {
	switch b {
	case JSONL:
		if path == "" {
			return nil, fmt.Errorf("jsonl sink requires a path")
		}
		s, err := logging.OpenJSONL(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case SQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite sink requires a path")
		}
		s, err := state.NewStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case Badger:
		s, err := logging.OpenBadger(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case Memory:
		return logging.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown sink backend %q", b)
	}
}

// #endregion open
