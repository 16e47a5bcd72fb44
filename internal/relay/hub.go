package relay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"presence-room/internal/gateway"
	"presence-room/internal/telemetry"
)

const (
	connectionsMetricKey = "relay_connections"
	membersMetricKey     = "relay_members"
	triggersMetricKey    = "relay_triggers_total"
	deliveriesMetricKey  = "relay_deliveries_total"
)

var (
	// ErrUnknownChannel is returned when triggering on a channel nobody joined.
	ErrUnknownChannel = errors.New("relay: unknown channel")
	// ErrNotMember is returned when a connection triggers on a channel it has
	// not joined.
	ErrNotMember = errors.New("relay: connection is not subscribed")
)

// Deps carries shared infrastructure for the hub.
type Deps struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// Hub fans named events out to every connection on a presence channel. It
// never interprets payloads.
type Hub struct {
	mu       sync.Mutex
	channels map[string]*channel
	logger   telemetry.Logger
	metrics  telemetry.Metrics
}

type channel struct {
	conns   map[string]*Conn
	members map[string]*memberEntry
}

type memberEntry struct {
	member gateway.Member
	conns  int
}

// Conn is one connection on one channel.
type Conn struct {
	token   string
	channel string
	member  gateway.Member
	deliver gateway.Handler
}

// Token returns the connection token used for sender exclusion.
func (c *Conn) Token() string {
	return c.token
}

// Member returns the member this connection joined as.
func (c *Conn) Member() gateway.Member {
	return c.member
}

// NewHub constructs an empty hub.
func NewHub(deps Deps) *Hub {
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	return &Hub{
		channels: make(map[string]*channel),
		logger:   logger,
		metrics:  deps.Metrics,
	}
}

// NewToken allocates a connection token.
func NewToken() string {
	return uuid.NewString()
}

type delivery struct {
	handler gateway.Handler
	msg     gateway.Message
}

// Join subscribes a connection to a channel. The new connection first
// receives a member-added notification for every member already present;
// the other connections are told about the member only on its first
// connection. deliver must not block.
func (h *Hub) Join(channelName, token string, member gateway.Member, deliver gateway.Handler) (*Conn, error) {
	if channelName == "" {
		return nil, errors.New("relay: channel is required")
	}
	if member.ID == "" {
		return nil, errors.New("relay: member id is required")
	}
	if deliver == nil {
		return nil, errors.New("relay: delivery handler is required")
	}
	if token == "" {
		token = NewToken()
	}
	conn := &Conn{token: token, channel: channelName, member: member, deliver: deliver}

	h.mu.Lock()
	ch, ok := h.channels[channelName]
	if !ok {
		ch = &channel{conns: make(map[string]*Conn), members: make(map[string]*memberEntry)}
		h.channels[channelName] = ch
	}
	if _, exists := ch.conns[token]; exists {
		h.mu.Unlock()
		return nil, fmt.Errorf("relay: token %s already joined %s", token, channelName)
	}

	var pending []delivery
	for _, id := range ch.memberIDs() {
		existing := ch.members[id].member
		pending = append(pending, delivery{handler: deliver, msg: presence(gateway.EventMemberAdded, existing)})
	}
	entry, present := ch.members[member.ID]
	if !present {
		entry = &memberEntry{member: member}
		ch.members[member.ID] = entry
		for _, other := range ch.sortedConns() {
			pending = append(pending, delivery{handler: other.deliver, msg: presence(gateway.EventMemberAdded, member)})
		}
	}
	entry.conns++
	ch.conns[token] = conn
	h.storeGaugesLocked()
	h.mu.Unlock()

	flush(pending)
	if !present {
		h.logger.Printf("[relay] member %s joined %s", member.ID, channelName)
	}
	return conn, nil
}

// Leave removes a connection. Members disappear after their last connection
// leaves. Leaving twice is a no-op.
func (h *Hub) Leave(conn *Conn) bool {
	if conn == nil {
		return false
	}
	h.mu.Lock()
	ch, ok := h.channels[conn.channel]
	if !ok {
		h.mu.Unlock()
		return false
	}
	if _, ok := ch.conns[conn.token]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(ch.conns, conn.token)

	var pending []delivery
	entry := ch.members[conn.member.ID]
	entry.conns--
	removed := entry.conns <= 0
	if removed {
		delete(ch.members, conn.member.ID)
		for _, other := range ch.sortedConns() {
			pending = append(pending, delivery{handler: other.deliver, msg: presence(gateway.EventMemberRemoved, conn.member)})
		}
	}
	if len(ch.conns) == 0 {
		delete(h.channels, conn.channel)
	}
	h.storeGaugesLocked()
	h.mu.Unlock()

	flush(pending)
	if removed {
		h.logger.Printf("[relay] member %s left %s", conn.member.ID, conn.channel)
	}
	return true
}

// Trigger delivers a named event to every connection on the channel except
// the one holding exclude. It returns the number of deliveries.
func (h *Hub) Trigger(_ context.Context, channelName, event string, data []byte, exclude string) (int, error) {
	h.mu.Lock()
	ch, ok := h.channels[channelName]
	if !ok {
		h.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrUnknownChannel, channelName)
	}
	if exclude != "" {
		if _, ok := ch.conns[exclude]; !ok {
			h.mu.Unlock()
			return 0, fmt.Errorf("%w: %s", ErrNotMember, channelName)
		}
	}
	payload := append([]byte(nil), data...)
	var pending []delivery
	for _, conn := range ch.sortedConns() {
		if conn.token == exclude {
			continue
		}
		pending = append(pending, delivery{handler: conn.deliver, msg: gateway.Message{Event: event, Data: payload}})
	}
	h.mu.Unlock()

	flush(pending)
	if h.metrics != nil {
		h.metrics.Add(triggersMetricKey, 1)
		h.metrics.Add(deliveriesMetricKey, uint64(len(pending)))
	}
	return len(pending), nil
}

// Members lists the members present on a channel in id order.
func (h *Hub) Members(channelName string) []gateway.Member {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[channelName]
	if !ok {
		return nil
	}
	members := make([]gateway.Member, 0, len(ch.members))
	for _, id := range ch.memberIDs() {
		members = append(members, ch.members[id].member)
	}
	return members
}

// Channels lists active channel names.
func (h *Hub) Channels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.channels))
	for name := range h.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Hub) storeGaugesLocked() {
	if h.metrics == nil {
		return
	}
	var conns, members int
	for _, ch := range h.channels {
		conns += len(ch.conns)
		members += len(ch.members)
	}
	h.metrics.Store(connectionsMetricKey, uint64(conns))
	h.metrics.Store(membersMetricKey, uint64(members))
}

func (ch *channel) memberIDs() []string {
	ids := make([]string, 0, len(ch.members))
	for id := range ch.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (ch *channel) sortedConns() []*Conn {
	conns := make([]*Conn, 0, len(ch.conns))
	for _, conn := range ch.conns {
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].token < conns[j].token })
	return conns
}

func presence(event string, member gateway.Member) gateway.Message {
	m := member
	return gateway.Message{Event: event, Member: &m}
}

func flush(pending []delivery) {
	for _, d := range pending {
		d.handler(d.msg)
	}
}
