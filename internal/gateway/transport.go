package gateway

import (
	"context"

	"presence-room/internal/net/proto"
)

// Presence notifications a relay sends alongside named events.
const (
	EventMemberAdded   = "member-added"
	EventMemberRemoved = "member-removed"
)

// Member is a presence channel participant, keyed by its stable id.
type Member struct {
	ID   string           `json:"id" msgpack:"id"`
	Info proto.MemberMeta `json:"info" msgpack:"info"`
}

// Message is one delivery from the relay. Member is set only for presence
// notifications.
type Message struct {
	Event  string  `msgpack:"event"`
	Data   []byte  `msgpack:"data,omitempty"`
	Member *Member `msgpack:"member,omitempty"`
}

// Handler receives relay deliveries. It may be called from any goroutine and
// must not block.
type Handler func(Message)

// Unsubscribe releases a subscription. It is safe to call more than once.
type Unsubscribe func() error

// Transport is the presence relay contract. The connection token identifies
// this connection for sender exclusion only and is never a player id.
type Transport interface {
	ConnectionToken() string
	Subscribe(channel string, handler Handler) (Unsubscribe, error)
	Trigger(ctx context.Context, channel, event string, data []byte, exclude string) error
}
