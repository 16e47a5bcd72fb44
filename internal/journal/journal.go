package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"presence-room/internal/net/proto"
)

// ErrClosed is returned when recording into a closed journal.
var ErrClosed = errors.New("journal: closed")

// Entry is one recorded room event. Payload holds the event in its JSON wire
// form so journals stay readable and codec independent.
type Entry struct {
	Seq       uint64          `json:"seq"`
	At        int64           `json:"at"`
	Direction string          `json:"dir"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
}

// Decode parses the payload back into its event variant.
func (e Entry) Decode(codec proto.Codec) (proto.Event, error) {
	event, err := codec.Decode(e.Event, e.Payload)
	if err != nil {
		return nil, fmt.Errorf("journal: entry %d: %w", e.Seq, err)
	}
	return event, nil
}

// Recorder appends events to durable storage.
type Recorder interface {
	Record(ctx context.Context, direction string, at int64, event proto.Event) error
	Close() error
}

// Source yields recorded entries in sequence order.
type Source interface {
	Entries(ctx context.Context) ([]Entry, error)
	Close() error
}

func newEntry(seq uint64, direction string, at int64, event proto.Event) (Entry, error) {
	if event == nil {
		return Entry{}, errors.New("journal: nil event")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: encode %s: %w", event.EventName(), err)
	}
	return Entry{Seq: seq, At: at, Direction: direction, Event: event.EventName(), Payload: payload}, nil
}

func isSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// Create opens a recorder for path. SQLite files (.db, .sqlite) get the
// SQLite store; anything else is written as zstd-compressed JSON lines.
func Create(path string) (Recorder, error) {
	if isSQLitePath(path) {
		return OpenSQLite(path)
	}
	return NewFileWriter(path)
}

// Open opens a recorded journal for reading, picking the format from the
// file extension like Create.
func Open(path string) (Source, error) {
	if isSQLitePath(path) {
		return OpenSQLite(path)
	}
	return OpenFile(path)
}
