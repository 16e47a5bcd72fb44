package gateway

import (
	"context"
	"errors"
	"fmt"

	"presence-room/internal/net/proto"
	"presence-room/internal/telemetry"
	"presence-room/logging"
	logginggateway "presence-room/logging/gateway"
)

const (
	decodeFailureMetricKey = "gateway_decode_failures_total"
	sendFailureMetricKey   = "gateway_send_failures_total"
	selfEchoMetricKey      = "gateway_self_echo_total"
	receivedMetricKey      = "gateway_events_received_total"
	sentMetricKey          = "gateway_events_sent_total"
)

// ErrNoSink is returned by Run without an event sink.
var ErrNoSink = errors.New("gateway: no event sink")

// Sink accepts decoded inbound events. A false return means the event was
// dropped.
type Sink interface {
	Deliver(event proto.Event) bool
}

// Config names the channel, codec and local identity.
type Config struct {
	Channel string
	Codec   string
	SelfID  string
}

// Deps carries shared infrastructure for the gateway.
type Deps struct {
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
}

// Gateway bridges a presence relay transport and a session.
type Gateway struct {
	transport Transport
	codec     proto.Codec
	channel   string
	selfID    string
	metrics   telemetry.Metrics
	pub       logging.Publisher
}

// New validates the configuration and resolves the codec.
func New(cfg Config, transport Transport, deps Deps) (*Gateway, error) {
	if transport == nil {
		return nil, errors.New("gateway: transport is required")
	}
	if cfg.SelfID == "" {
		return nil, errors.New("gateway: self id is required")
	}
	if cfg.Channel == "" {
		cfg.Channel = proto.DefaultChannel
	}
	codec, err := proto.NewCodec(cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	return &Gateway{
		transport: transport,
		codec:     codec,
		channel:   cfg.Channel,
		selfID:    cfg.SelfID,
		metrics:   deps.Metrics,
		pub:       deps.Publisher,
	}, nil
}

// Channel returns the subscribed channel name.
func (g *Gateway) Channel() string {
	return g.channel
}

// Run subscribes to the channel, feeds inbound events to sink and
// unsubscribes when ctx is cancelled.
func (g *Gateway) Run(ctx context.Context, sink Sink) (err error) {
	if sink == nil {
		return ErrNoSink
	}
	unsubscribe, err := g.transport.Subscribe(g.channel, func(msg Message) {
		g.handle(ctx, sink, msg)
	})
	if err != nil {
		return fmt.Errorf("gateway: subscribe %s: %w", g.channel, err)
	}
	payload := logginggateway.ChannelPayload{Channel: g.channel, Codec: g.codec.Name()}
	logginggateway.Subscribed(ctx, g.pub, logging.RoomRef(g.channel), payload)
	defer func() {
		if uerr := unsubscribe(); uerr != nil && err == nil {
			err = fmt.Errorf("gateway: unsubscribe %s: %w", g.channel, uerr)
		}
		logginggateway.Unsubscribed(context.WithoutCancel(ctx), g.pub, logging.RoomRef(g.channel), payload)
	}()

	<-ctx.Done()
	return nil
}

func (g *Gateway) handle(ctx context.Context, sink Sink, msg Message) {
	event, err := g.decode(msg)
	if err != nil {
		g.count(decodeFailureMetricKey)
		logginggateway.DecodeFailed(ctx, g.pub, logging.RoomRef(g.channel), logginggateway.FailurePayload{
			Event: msg.Event,
			Error: err.Error(),
		})
		return
	}
	player := proto.PlayerOf(event)
	if player == g.selfID {
		g.count(selfEchoMetricKey)
		logginggateway.SelfEcho(ctx, g.pub, logging.PlayerRef(player), logginggateway.FailurePayload{Event: msg.Event})
		return
	}
	g.count(receivedMetricKey)
	if !sink.Deliver(event) {
		logginggateway.InboxFull(ctx, g.pub, logging.PlayerRef(player), logginggateway.FailurePayload{Event: msg.Event})
	}
}

func (g *Gateway) decode(msg Message) (proto.Event, error) {
	switch msg.Event {
	case EventMemberAdded, EventMemberRemoved:
		if msg.Member == nil || msg.Member.ID == "" {
			return nil, errors.New("presence notification without member")
		}
		if msg.Event == EventMemberAdded {
			return proto.MemberJoined{ID: msg.Member.ID, Meta: msg.Member.Info}, nil
		}
		return proto.MemberLeft{ID: msg.Member.ID}, nil
	}
	event, err := g.codec.Decode(msg.Event, msg.Data)
	if err != nil {
		return nil, err
	}
	switch event.(type) {
	case proto.MemberJoined, proto.MemberLeft:
		return nil, fmt.Errorf("membership event %s must arrive as a presence notification", msg.Event)
	}
	return event, nil
}

// Emit encodes a local event and triggers it on the channel, excluding this
// connection. Failures are logged and returned; nothing is retried.
func (g *Gateway) Emit(ctx context.Context, event proto.Event) error {
	data, err := g.codec.Encode(event)
	if err == nil {
		err = g.transport.Trigger(ctx, g.channel, event.EventName(), data, g.transport.ConnectionToken())
	}
	if err != nil {
		g.count(sendFailureMetricKey)
		logginggateway.SendFailed(ctx, g.pub, logging.PlayerRef(proto.PlayerOf(event)), logginggateway.FailurePayload{
			Event: event.EventName(),
			Error: err.Error(),
		})
		return fmt.Errorf("gateway: emit %s: %w", event.EventName(), err)
	}
	g.count(sentMetricKey)
	return nil
}

func (g *Gateway) count(key string) {
	if g.metrics != nil {
		g.metrics.Add(key, 1)
	}
}
