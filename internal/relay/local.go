package relay

import (
	"context"
	"sync"

	"presence-room/internal/gateway"
)

// LocalTransport connects a gateway to an in-process hub.
type LocalTransport struct {
	hub    *Hub
	token  string
	member gateway.Member

	mu    sync.Mutex
	conns map[string]*Conn
}

// Connect returns a transport joined as member.
func (h *Hub) Connect(member gateway.Member) *LocalTransport {
	return &LocalTransport{
		hub:    h,
		token:  NewToken(),
		member: member,
		conns:  make(map[string]*Conn),
	}
}

// ConnectionToken implements gateway.Transport.
func (t *LocalTransport) ConnectionToken() string {
	return t.token
}

// Subscribe implements gateway.Transport.
func (t *LocalTransport) Subscribe(channel string, handler gateway.Handler) (gateway.Unsubscribe, error) {
	conn, err := t.hub.Join(channel, t.token, t.member, handler)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.conns[channel] = conn
	t.mu.Unlock()

	var once sync.Once
	return func() error {
		once.Do(func() {
			t.mu.Lock()
			delete(t.conns, channel)
			t.mu.Unlock()
			t.hub.Leave(conn)
		})
		return nil
	}, nil
}

// Trigger implements gateway.Transport.
func (t *LocalTransport) Trigger(ctx context.Context, channel, event string, data []byte, exclude string) error {
	_, err := t.hub.Trigger(ctx, channel, event, data, exclude)
	return err
}

var _ gateway.Transport = (*LocalTransport)(nil)
