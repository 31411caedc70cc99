package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS events (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	session_id    TEXT NOT NULL,
	kind          TEXT NOT NULL,
	dyad          TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	payload       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind, seq);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_events_dyad ON events(dyad, kind, seq);

CREATE TABLE IF NOT EXISTS snapshots (
	seq              INTEGER PRIMARY KEY,
	session_id       TEXT NOT NULL,
	dyad             TEXT NOT NULL,
	cycle            INTEGER NOT NULL,
	score            REAL NOT NULL,
	raw_score        REAL NOT NULL,
	history          REAL NOT NULL,
	presence         REAL NOT NULL,
	uncertainty      REAL NOT NULL,
	regime           TEXT NOT NULL,
	oscillation_step INTEGER,
	created_at       TEXT NOT NULL,
	FOREIGN KEY (seq) REFERENCES events(seq)
);
`
// #endregion schema

// #region store-struct
// Store keeps the event log and the score trajectory in SQLite. It satisfies
// logging.Store.
type Store struct {
	db *sql.DB
}

var _ logging.Store = (*Store)(nil)
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region append
// Append inserts the event and, for breaths, its snapshot row in one transaction.
func (s *Store) Append(rec logging.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	created := rec.Timestamp.UTC().Format(time.RFC3339Nano)
	res, err := tx.Exec(
		`INSERT INTO events (id, session_id, kind, dyad, created_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, string(rec.Kind), rec.Dyad, created, string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if b := rec.Breath; rec.Kind == logging.KindBreath && b != nil {
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("event seq: %w", err)
		}
		var step any
		if b.Oscillation != nil {
			step = b.Oscillation.Step
		}
		_, err = tx.Exec(
			`INSERT INTO snapshots (seq, session_id, dyad, cycle, score, raw_score, history,
			 presence, uncertainty, regime, oscillation_step, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			seq, rec.SessionID, rec.Dyad, int64(b.Cycle), b.NewScore, b.RawScore, b.History,
			b.Presence, b.Uncertainty, b.Regime, step, created,
		)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}

	return tx.Commit()
}
// #endregion append

// #region tail
// Tail returns the newest n events of kind, oldest first. An empty kind
// matches everything and n <= 0 returns all.
func (s *Store) Tail(kind logging.EventKind, n int) ([]logging.Record, error) {
	return s.TailQuery(logging.Query{Kind: kind}, n)
}

// TailQuery pushes the query's filters into the WHERE clause.
func (s *Store) TailQuery(q logging.Query, n int) ([]logging.Record, error) {
	limit := n
	if limit <= 0 {
		limit = -1
	}

	var where []string
	var args []any
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(q.Kind))
	}
	if q.Dyad != "" {
		where = append(where, "dyad = ?")
		args = append(args, q.Dyad)
	}
	if q.Session != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.Session)
	}
	query := `SELECT seq, payload FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("tail events: %w", err)
	}
	defer rows.Close()

	var out []logging.Record
	for rows.Next() {
		var seq int64
		var payload string
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec, ok := logging.DecodeRecord([]byte(payload), q.Kind)
		if !ok {
			slog.Debug("skipping malformed event payload", slog.Int64("seq", seq))
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// ReadAll returns every event oldest first.
func (s *Store) ReadAll() ([]logging.Record, error) {
	return s.Tail("", 0)
}
// #endregion tail

// #region snapshots
// Snapshots lists the newest limit trajectory rows for a session, oldest first.
// An empty session lists every session.
func (s *Store) Snapshots(session string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT seq, session_id, dyad, cycle, score, raw_score, history, presence,
		        uncertainty, regime, oscillation_step, created_at
		 FROM snapshots WHERE (? = '' OR session_id = ?)
		 ORDER BY seq DESC LIMIT ?`, session, session, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var cycle int64
		var step sql.NullInt64
		var createdStr string
		if err := rows.Scan(&snap.Seq, &snap.SessionID, &snap.Dyad, &cycle, &snap.Score, &snap.RawScore,
			&snap.History, &snap.Presence, &snap.Uncertainty, &snap.Regime, &step, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		snap.Cycle = uint64(cycle)
		if step.Valid {
			snap.OscillationStep = int(step.Int64)
		}
		snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}
// #endregion snapshots

// #region sessions
// Sessions lists the sessions recorded for a dyad, most recent first. An
// empty dyad lists all.
func (s *Store) Sessions(dyad string) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT session_id, dyad, COUNT(*),
		        SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END),
		        MIN(created_at), MAX(created_at)
		 FROM events WHERE (? = '' OR dyad = ?)
		 GROUP BY session_id, dyad
		 ORDER BY MAX(seq) DESC`, string(logging.KindBreath), dyad, dyad,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var first, last string
		if err := rows.Scan(&sess.SessionID, &sess.Dyad, &sess.Events, &sess.Breaths, &first, &last); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sess.FirstSeen, _ = time.Parse(time.RFC3339Nano, first)
		sess.LastSeen, _ = time.Parse(time.RFC3339Nano, last)
		out = append(out, sess)
	}
	return out, rows.Err()
}
// #endregion sessions
