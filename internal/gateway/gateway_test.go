package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"presence-room/internal/net/proto"
	"presence-room/internal/telemetry"
	"presence-room/internal/world"
	logginggateway "presence-room/logging/gateway"
	"presence-room/logging/sinks"
)

type triggered struct {
	channel string
	event   string
	data    []byte
	exclude string
}

type stubTransport struct {
	mu           sync.Mutex
	handler      Handler
	subscribed   chan struct{}
	unsubscribed int
	triggers     []triggered
	triggerErr   error
}

func newStubTransport() *stubTransport {
	return &stubTransport{subscribed: make(chan struct{})}
}

func (s *stubTransport) ConnectionToken() string { return "conn-123" }

func (s *stubTransport) Subscribe(channel string, handler Handler) (Unsubscribe, error) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
	close(s.subscribed)
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsubscribed++
		return nil
	}, nil
}

func (s *stubTransport) Trigger(_ context.Context, channel, event string, data []byte, exclude string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.triggerErr != nil {
		return s.triggerErr
	}
	s.triggers = append(s.triggers, triggered{channel: channel, event: event, data: data, exclude: exclude})
	return nil
}

func (s *stubTransport) deliver(msg Message) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	handler(msg)
}

type collectingSink struct {
	events []proto.Event
	full   bool
}

func (c *collectingSink) Deliver(event proto.Event) bool {
	if c.full {
		return false
	}
	c.events = append(c.events, event)
	return true
}

func newTestGateway(t *testing.T, transport Transport) (*Gateway, *sinks.Memory, *telemetry.Counters) {
	t.Helper()
	memory := sinks.NewMemory()
	counters := telemetry.NewCounters()
	gw, err := New(Config{SelfID: "me", Codec: proto.CodecJSON}, transport, Deps{Metrics: counters, Publisher: memory})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return gw, memory, counters
}

func startGateway(t *testing.T, gw *Gateway, transport *stubTransport, sink Sink) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx, sink) }()
	select {
	case <-transport.subscribed:
	case <-time.After(5 * time.Second):
		t.Fatalf("gateway did not subscribe")
	}
	return cancel, done
}

func TestRunUnsubscribesOnShutdown(t *testing.T) {
	transport := newStubTransport()
	gw, memory, _ := newTestGateway(t, transport)
	cancel, done := startGateway(t, gw, transport, &collectingSink{})

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
	if transport.unsubscribed != 1 {
		t.Fatalf("expected 1 unsubscribe, got %d", transport.unsubscribed)
	}
	if len(memory.OfType(logginggateway.EventSubscribed)) != 1 || len(memory.OfType(logginggateway.EventUnsubscribed)) != 1 {
		t.Fatalf("expected subscribe and unsubscribe events, got %+v", memory.Events())
	}
}

func TestInboundTranslation(t *testing.T) {
	transport := newStubTransport()
	gw, memory, counters := newTestGateway(t, transport)
	sink := &collectingSink{}
	cancel, done := startGateway(t, gw, transport, sink)
	defer func() {
		cancel()
		<-done
	}()

	codec, _ := proto.NewCodec(proto.CodecJSON)
	move := proto.MoveToTarget{PlayerID: "p2", TargetPosition: world.Vec3{X: 1, Y: 0.5, Z: 1}, Timestamp: 5}
	moveData, _ := codec.Encode(move)
	echoData, _ := codec.Encode(proto.PlayerStopped{PlayerID: "me", Timestamp: 6})

	transport.deliver(Message{Event: EventMemberAdded, Member: &Member{ID: "p2", Info: proto.MemberMeta{Name: "Bea"}}})
	transport.deliver(Message{Event: EventMemberAdded, Member: &Member{ID: "me"}})
	transport.deliver(Message{Event: proto.NameMoveToTarget, Data: moveData})
	transport.deliver(Message{Event: proto.NamePlayerStopped, Data: echoData})
	transport.deliver(Message{Event: proto.NamePlayerStopped, Data: []byte(`{"playerId":`)})
	transport.deliver(Message{Event: "client-typing", Data: []byte(`{}`)})
	transport.deliver(Message{Event: EventMemberRemoved})
	transport.deliver(Message{Event: EventMemberRemoved, Member: &Member{ID: "p2"}})

	if len(sink.events) != 3 {
		t.Fatalf("expected 3 delivered events, got %+v", sink.events)
	}
	if joined, ok := sink.events[0].(proto.MemberJoined); !ok || joined.ID != "p2" || joined.Meta.Name != "Bea" {
		t.Fatalf("unexpected join %+v", sink.events[0])
	}
	if got, ok := sink.events[1].(proto.MoveToTarget); !ok || got != move {
		t.Fatalf("expected %+v, got %+v", move, sink.events[1])
	}
	if left, ok := sink.events[2].(proto.MemberLeft); !ok || left.ID != "p2" {
		t.Fatalf("unexpected leave %+v", sink.events[2])
	}
	if got := counters.Get(decodeFailureMetricKey); got != 3 {
		t.Fatalf("expected 3 decode failures, got %d", got)
	}
	if got := len(memory.OfType(logginggateway.EventSelfEcho)); got != 2 {
		t.Fatalf("expected 2 self echoes, got %d", got)
	}
}

func TestInboxFullIsLogged(t *testing.T) {
	transport := newStubTransport()
	gw, memory, _ := newTestGateway(t, transport)
	cancel, done := startGateway(t, gw, transport, &collectingSink{full: true})
	defer func() {
		cancel()
		<-done
	}()

	transport.deliver(Message{Event: EventMemberAdded, Member: &Member{ID: "p2"}})
	if got := len(memory.OfType(logginggateway.EventInboxFull)); got != 1 {
		t.Fatalf("expected one inbox full event, got %d", got)
	}
}

func TestEmitExcludesOwnConnection(t *testing.T) {
	transport := newStubTransport()
	gw, _, counters := newTestGateway(t, transport)

	stop := proto.PlayerStopped{PlayerID: "me", Position: world.Vec3{X: 2, Y: 0.5, Z: 2}, Timestamp: 9}
	if err := gw.Emit(context.Background(), stop); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(transport.triggers) != 1 {
		t.Fatalf("expected one trigger, got %d", len(transport.triggers))
	}
	sent := transport.triggers[0]
	if sent.channel != proto.DefaultChannel || sent.event != proto.NamePlayerStopped || sent.exclude != "conn-123" {
		t.Fatalf("unexpected trigger %+v", sent)
	}
	codec, _ := proto.NewCodec(proto.CodecJSON)
	decoded, err := codec.Decode(sent.event, sent.data)
	if err != nil || decoded != proto.Event(stop) {
		t.Fatalf("expected %+v, got %+v (%v)", stop, decoded, err)
	}
	if got := counters.Get(sentMetricKey); got != 1 {
		t.Fatalf("expected 1 sent event, got %d", got)
	}
}

func TestEmitFailureIsReported(t *testing.T) {
	transport := newStubTransport()
	transport.triggerErr = errors.New("relay unavailable")
	gw, memory, counters := newTestGateway(t, transport)

	err := gw.Emit(context.Background(), proto.PositionSync{PlayerID: "me", Timestamp: 1})
	if !errors.Is(err, transport.triggerErr) {
		t.Fatalf("expected wrapped trigger error, got %v", err)
	}
	if got := counters.Get(sendFailureMetricKey); got != 1 {
		t.Fatalf("expected 1 send failure, got %d", got)
	}
	if got := len(memory.OfType(logginggateway.EventSendFailed)); got != 1 {
		t.Fatalf("expected one send failure event, got %d", got)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{SelfID: "me"}, nil, Deps{}); err == nil {
		t.Fatalf("expected missing transport to fail")
	}
	if _, err := New(Config{}, newStubTransport(), Deps{}); err == nil {
		t.Fatalf("expected missing self id to fail")
	}
	if _, err := New(Config{SelfID: "me", Codec: "xml"}, newStubTransport(), Deps{}); err == nil {
		t.Fatalf("expected unknown codec to fail")
	}
	gw, err := New(Config{SelfID: "me"}, newStubTransport(), Deps{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := gw.Run(context.Background(), nil); !errors.Is(err, ErrNoSink) {
		t.Fatalf("expected ErrNoSink, got %v", err)
	}
}
