package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"presence-room/internal/net/proto"
)

// SQLiteStore keeps the journal in a SQLite database so recorded sessions can
// be queried by player or event.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	seq    uint64
	closed bool
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("journal: empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY,
			at INTEGER NOT NULL,
			dir TEXT NOT NULL,
			event TEXT NOT NULL,
			player TEXT NOT NULL,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_player_seq ON events(player, seq);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: init sqlite: %w", err)
		}
	}

	s := &SQLiteStore{db: db}
	var last sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(seq) FROM events`).Scan(&last); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: read sequence: %w", err)
	}
	if last.Valid {
		s.seq = uint64(last.Int64)
	}
	return s, nil
}

// Record implements Recorder.
func (s *SQLiteStore) Record(ctx context.Context, direction string, at int64, event proto.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	entry, err := newEntry(s.seq+1, direction, at, event)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (seq, at, dir, event, player, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		int64(entry.Seq), entry.At, entry.Direction, entry.Event, proto.PlayerOf(event), string(entry.Payload),
	)
	if err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	s.seq = entry.Seq
	return nil
}

// Entries implements Source.
func (s *SQLiteStore) Entries(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, `SELECT seq, at, dir, event, payload FROM events ORDER BY seq`)
}

// EntriesFor returns the entries naming one player.
func (s *SQLiteStore) EntriesFor(ctx context.Context, playerID string) ([]Entry, error) {
	return s.query(ctx, `SELECT seq, at, dir, event, payload FROM events WHERE player = ? ORDER BY seq`, playerID)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			seq     int64
			payload string
		)
		if err := rows.Scan(&seq, &entry.At, &entry.Direction, &entry.Event, &payload); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		entry.Seq = uint64(seq)
		entry.Payload = []byte(payload)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close implements Recorder and Source.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
