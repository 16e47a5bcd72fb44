package sim

import (
	"time"

	"presence-room/internal/net/proto"
	"presence-room/internal/world"
)

// CommandType enumerates the inputs a session consumes on its next tick.
type CommandType string

const (
	CommandMoveTo       CommandType = "MoveTo"
	CommandMemberJoined CommandType = "MemberJoined"
	CommandMemberLeft   CommandType = "MemberLeft"
	CommandRemoteMove   CommandType = "RemoteMove"
	CommandRemoteStop   CommandType = "RemoteStop"
	CommandRemoteSync   CommandType = "RemoteSync"
)

// MoveToCommand is a local target selection.
type MoveToCommand struct {
	Target world.Vec3 `json:"target"`
}

// Command is an input captured for processing on the next tick. Exactly one
// of Event and MoveTo is set.
type Command struct {
	Type     CommandType    `json:"type"`
	ActorID  string         `json:"actorId"`
	IssuedAt time.Time      `json:"issuedAt"`
	Event    proto.Event    `json:"-"`
	MoveTo   *MoveToCommand `json:"moveTo,omitempty"`
}

// CommandFromEvent wraps an inbound room event.
func CommandFromEvent(event proto.Event, receivedAt time.Time) (Command, bool) {
	cmd := Command{
		ActorID:  proto.PlayerOf(event),
		IssuedAt: receivedAt,
		Event:    event,
	}
	switch event.(type) {
	case proto.MemberJoined:
		cmd.Type = CommandMemberJoined
	case proto.MemberLeft:
		cmd.Type = CommandMemberLeft
	case proto.MoveToTarget:
		cmd.Type = CommandRemoteMove
	case proto.PlayerStopped:
		cmd.Type = CommandRemoteStop
	case proto.PositionSync:
		cmd.Type = CommandRemoteSync
	default:
		return Command{}, false
	}
	return cmd, true
}
