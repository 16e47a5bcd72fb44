package proto

import (
	"errors"
	"fmt"

	"presence-room/internal/world"
)

const (
	// Version tracks the event schema revision shared by clients.
	Version = 1

	// DefaultChannel is the presence channel every client joins.
	DefaultChannel = "presence-3d-room"
)

// Event names as they travel through the relay.
const (
	NameMemberJoined  = "member-joined"
	NameMemberLeft    = "member-left"
	NameMoveToTarget  = "player-move-to-target"
	NamePlayerStopped = "player-stopped"
	NamePositionSync  = "player-position-sync"
)

// ErrUnknownEvent is returned for event names outside the closed set.
var ErrUnknownEvent = errors.New("proto: unknown event")

// Event is the closed set of room events. Only this package can add
// variants.
type Event interface {
	EventName() string
	protoEvent()
}

// MemberMeta is the display metadata a member advertises on join.
type MemberMeta struct {
	Name        string `json:"name,omitempty" msgpack:"name,omitempty"`
	WorldDigest string `json:"worldDigest,omitempty" msgpack:"worldDigest,omitempty"`
}

// MemberJoined announces a member on the presence channel.
type MemberJoined struct {
	ID   string     `json:"id" msgpack:"id" jsonschema:"minLength=1"`
	Meta MemberMeta `json:"info" msgpack:"info"`
}

// MemberLeft announces that a member's last connection closed.
type MemberLeft struct {
	ID string `json:"id" msgpack:"id" jsonschema:"minLength=1"`
}

// MoveToTarget is a move intent. Receivers recompute the path themselves.
type MoveToTarget struct {
	PlayerID       string     `json:"playerId" msgpack:"playerId" jsonschema:"minLength=1"`
	StartPosition  world.Vec3 `json:"startPosition" msgpack:"startPosition"`
	TargetPosition world.Vec3 `json:"targetPosition" msgpack:"targetPosition"`
	Timestamp      int64      `json:"timestamp" msgpack:"timestamp"`
}

// PlayerStopped reports where the sender's avatar came to rest.
type PlayerStopped struct {
	PlayerID  string     `json:"playerId" msgpack:"playerId" jsonschema:"minLength=1"`
	Position  world.Vec3 `json:"position" msgpack:"position"`
	Timestamp int64      `json:"timestamp" msgpack:"timestamp"`
}

// PositionSync is a periodic drift correction for an idle avatar.
type PositionSync struct {
	PlayerID  string     `json:"playerId" msgpack:"playerId" jsonschema:"minLength=1"`
	Position  world.Vec3 `json:"position" msgpack:"position"`
	Timestamp int64      `json:"timestamp" msgpack:"timestamp"`
}

func (MemberJoined) EventName() string  { return NameMemberJoined }
func (MemberLeft) EventName() string    { return NameMemberLeft }
func (MoveToTarget) EventName() string  { return NameMoveToTarget }
func (PlayerStopped) EventName() string { return NamePlayerStopped }
func (PositionSync) EventName() string  { return NamePositionSync }

func (MemberJoined) protoEvent()  {}
func (MemberLeft) protoEvent()    {}
func (MoveToTarget) protoEvent()  {}
func (PlayerStopped) protoEvent() {}
func (PositionSync) protoEvent()  {}

// Names lists every event name in a fixed order.
func Names() []string {
	return []string{NameMemberJoined, NameMemberLeft, NameMoveToTarget, NamePlayerStopped, NamePositionSync}
}

// newTarget returns a pointer to a zero variant for decoding.
func newTarget(name string) (any, error) {
	switch name {
	case NameMemberJoined:
		return &MemberJoined{}, nil
	case NameMemberLeft:
		return &MemberLeft{}, nil
	case NameMoveToTarget:
		return &MoveToTarget{}, nil
	case NamePlayerStopped:
		return &PlayerStopped{}, nil
	case NamePositionSync:
		return &PositionSync{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

// deref turns a decoded pointer back into its value variant.
func deref(target any) Event {
	switch v := target.(type) {
	case *MemberJoined:
		return *v
	case *MemberLeft:
		return *v
	case *MoveToTarget:
		return *v
	case *PlayerStopped:
		return *v
	case *PositionSync:
		return *v
	default:
		return nil
	}
}

// PlayerOf returns the player an event is about.
func PlayerOf(event Event) string {
	switch e := event.(type) {
	case MemberJoined:
		return e.ID
	case MemberLeft:
		return e.ID
	case MoveToTarget:
		return e.PlayerID
	case PlayerStopped:
		return e.PlayerID
	case PositionSync:
		return e.PlayerID
	default:
		return ""
	}
}

// TimestampOf returns the sender timestamp, or zero for membership events.
func TimestampOf(event Event) int64 {
	switch e := event.(type) {
	case MoveToTarget:
		return e.Timestamp
	case PlayerStopped:
		return e.Timestamp
	case PositionSync:
		return e.Timestamp
	default:
		return 0
	}
}
