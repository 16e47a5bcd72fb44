package proto

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"presence-room/internal/world"
)

func sampleMove() MoveToTarget {
	return MoveToTarget{
		PlayerID:       "p1",
		StartPosition:  world.Vec3{X: 0, Y: 0.5, Z: 0},
		TargetPosition: world.Vec3{X: 5, Y: 0.5, Z: -5.25},
		Timestamp:      1717000000123,
	}
}

func TestCodecsPreserveMoveIntent(t *testing.T) {
	for _, name := range CodecNames() {
		t.Run(name, func(t *testing.T) {
			codec, err := NewCodec(name)
			if err != nil {
				t.Fatalf("NewCodec: %v", err)
			}
			move := sampleMove()
			data, err := codec.Encode(move)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := codec.Decode(move.EventName(), data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !reflect.DeepEqual(decoded, Event(move)) {
				t.Fatalf("expected %+v, got %+v", move, decoded)
			}
		})
	}
}

func TestJSONWireShape(t *testing.T) {
	codec, err := NewJSONCodec()
	if err != nil {
		t.Fatalf("NewJSONCodec: %v", err)
	}
	data, err := codec.Encode(PlayerStopped{PlayerID: "p1", Position: world.Vec3{X: 1, Y: 0.5, Z: 2}, Timestamp: 7})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	expected := `{"playerId":"p1","position":{"x":1,"y":0.5,"z":2},"timestamp":7}`
	if string(data) != expected {
		t.Fatalf("expected %s, got %s", expected, data)
	}
}

func TestJSONRejectsInvalidPayloads(t *testing.T) {
	codec, err := NewJSONCodec()
	if err != nil {
		t.Fatalf("NewJSONCodec: %v", err)
	}
	for _, tc := range []struct {
		name    string
		event   string
		payload string
	}{
		{name: "missing-target", event: NameMoveToTarget, payload: `{"playerId":"p1","startPosition":{"x":0,"y":0,"z":0},"timestamp":1}`},
		{name: "string-coordinate", event: NamePlayerStopped, payload: `{"playerId":"p1","position":{"x":"1","y":0,"z":0},"timestamp":1}`},
		{name: "empty-id", event: NameMemberLeft, payload: `{"id":""}`},
		{name: "extra-field", event: NamePositionSync, payload: `{"playerId":"p1","position":{"x":1,"y":0,"z":0},"timestamp":1,"path":[]}`},
		{name: "not-json", event: NameMemberLeft, payload: `{`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := codec.Decode(tc.event, []byte(tc.payload)); err == nil {
				t.Fatalf("expected decode error for %s", tc.payload)
			}
		})
	}

	event, err := codec.Decode(NameMemberJoined, []byte(`{"id":"p2","info":{"name":"Bea"}}`))
	if err != nil {
		t.Fatalf("expected valid member payload, got %v", err)
	}
	if joined := event.(MemberJoined); joined.ID != "p2" || joined.Meta.Name != "Bea" {
		t.Fatalf("unexpected member %+v", joined)
	}
}

func TestUnknownEventName(t *testing.T) {
	for _, name := range CodecNames() {
		codec, err := NewCodec(name)
		if err != nil {
			t.Fatalf("NewCodec(%s): %v", name, err)
		}
		if _, err := codec.Decode("player-teleported", []byte(`{}`)); !errors.Is(err, ErrUnknownEvent) {
			t.Fatalf("%s: expected ErrUnknownEvent, got %v", name, err)
		}
	}
	if _, err := NewCodec("xml"); err == nil || !strings.Contains(err.Error(), "xml") {
		t.Fatalf("expected unknown codec error, got %v", err)
	}
}

func TestWireCodecSkipsUnknownFields(t *testing.T) {
	codec := WireCodec{}
	data, err := codec.Encode(MemberLeft{ID: "p7"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	data = protowire.AppendTag(data, 9, protowire.VarintType)
	data = protowire.AppendVarint(data, 42)

	event, err := codec.Decode(NameMemberLeft, data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if event.(MemberLeft).ID != "p7" {
		t.Fatalf("unexpected event %+v", event)
	}

	if _, err := codec.Decode(NameMemberLeft, []byte{0x0a, 0x05, 'p'}); err == nil {
		t.Fatalf("expected truncated payload error")
	}
}

func TestSchemasCoverEveryEvent(t *testing.T) {
	schemas, err := Schemas()
	if err != nil {
		t.Fatalf("Schemas: %v", err)
	}
	for _, name := range Names() {
		schema, ok := schemas[name]
		if !ok {
			t.Fatalf("missing schema for %s", name)
		}
		if schema.Title != name {
			t.Fatalf("expected title %s, got %s", name, schema.Title)
		}
	}
}

func TestEventAccessors(t *testing.T) {
	move := sampleMove()
	if PlayerOf(move) != "p1" || TimestampOf(move) != move.Timestamp {
		t.Fatalf("unexpected accessors for %+v", move)
	}
	if PlayerOf(MemberJoined{ID: "m"}) != "m" || TimestampOf(MemberLeft{ID: "m"}) != 0 {
		t.Fatalf("unexpected membership accessors")
	}
}
