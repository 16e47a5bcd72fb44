package journal

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"presence-room/internal/net/proto"
	"presence-room/internal/world"
)

func sampleEvents() []proto.Event {
	return []proto.Event{
		proto.MemberJoined{ID: "p2", Meta: proto.MemberMeta{Name: "Bea"}},
		proto.MoveToTarget{
			PlayerID:       "p2",
			StartPosition:  world.Vec3{X: 0, Y: 0.5, Z: 0},
			TargetPosition: world.Vec3{X: 3, Y: 0.5, Z: -3},
			Timestamp:      1000,
		},
		proto.PlayerStopped{PlayerID: "p2", Position: world.Vec3{X: 3, Y: 0.5, Z: -3}, Timestamp: 2100},
		proto.MemberLeft{ID: "p2"},
	}
}

func TestJournalFormatsRoundTrip(t *testing.T) {
	codec, err := proto.NewCodec(proto.CodecJSON)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	for _, name := range []string{"session.jsonl.zst", "session.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			recorder, err := Create(path)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			events := sampleEvents()
			for i, event := range events {
				if err := recorder.Record(context.Background(), "in", int64(100+i), event); err != nil {
					t.Fatalf("Record: %v", err)
				}
			}
			if err := recorder.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if err := recorder.Record(context.Background(), "in", 0, events[0]); !errors.Is(err, ErrClosed) {
				t.Fatalf("expected ErrClosed, got %v", err)
			}

			source, err := Open(path)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer source.Close()
			entries, err := source.Entries(context.Background())
			if err != nil {
				t.Fatalf("Entries: %v", err)
			}
			if len(entries) != len(events) {
				t.Fatalf("expected %d entries, got %d", len(events), len(entries))
			}
			for i, entry := range entries {
				if entry.Seq != uint64(i+1) || entry.At != int64(100+i) || entry.Direction != "in" {
					t.Fatalf("unexpected entry header %+v", entry)
				}
				decoded, err := entry.Decode(codec)
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}
				if !reflect.DeepEqual(decoded, events[i]) {
					t.Fatalf("expected %+v, got %+v", events[i], decoded)
				}
			}
		})
	}
}

func TestSQLiteContinuesSequenceAndFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.sqlite")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	ctx := context.Background()
	store.Record(ctx, "in", 1, proto.MemberJoined{ID: "p2"})
	store.Record(ctx, "out", 2, proto.PositionSync{PlayerID: "me", Timestamp: 2})
	store.Close()

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Record(ctx, "in", 3, proto.MemberLeft{ID: "p2"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	entries, err := reopened.EntriesFor(ctx, "p2")
	if err != nil {
		t.Fatalf("EntriesFor: %v", err)
	}
	if len(entries) != 2 || entries[0].Seq != 1 || entries[1].Seq != 3 {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestEntryDecodeRejectsBadPayload(t *testing.T) {
	codec, _ := proto.NewCodec(proto.CodecJSON)
	entry := Entry{Seq: 4, Event: proto.NamePlayerStopped, Payload: []byte(`{"playerId":""}`)}
	if _, err := entry.Decode(codec); err == nil {
		t.Fatalf("expected invalid payload to fail")
	}
}
