package sim

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"presence-room/internal/net/proto"
	"presence-room/internal/state"
	"presence-room/internal/telemetry"
	"presence-room/internal/world"
	"presence-room/logging"
	loggingreconcile "presence-room/logging/reconcile"
	loggingroster "presence-room/logging/roster"
	"presence-room/logging/sinks"
)

var testEpoch = time.UnixMilli(1_700_000_000_000)

type recordingEmitter struct {
	mu     sync.Mutex
	events []proto.Event
	err    error
	next   func(proto.Event)
}

func (e *recordingEmitter) Emit(_ context.Context, event proto.Event) error {
	e.mu.Lock()
	e.events = append(e.events, event)
	next := e.next
	err := e.err
	e.mu.Unlock()
	if next != nil {
		next(event)
	}
	return err
}

func (e *recordingEmitter) Events() []proto.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]proto.Event(nil), e.events...)
}

type recordedEntry struct {
	direction string
	event     string
}

type memoryRecorder struct {
	entries []recordedEntry
}

func (r *memoryRecorder) Record(_ context.Context, direction string, _ int64, event proto.Event) error {
	r.entries = append(r.entries, recordedEntry{direction: direction, event: event.EventName()})
	return nil
}

func newTestSession(t *testing.T, selfID string, cfg Config, emitter Emitter, opts ...Option) (*Session, *sinks.Memory, *telemetry.Counters) {
	t.Helper()
	memory := sinks.NewMemory()
	counters := telemetry.NewCounters()
	roster := state.NewRoster(selfID, state.Meta{}, cfg.World.Spawn)
	session, err := NewSession(cfg, roster, nil, emitter, Deps{
		Metrics:   counters,
		Clock:     logging.ClockFunc(func() time.Time { return testEpoch }),
		Publisher: memory,
	}, opts...)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return session, memory, counters
}

func stepFor(s *Session, now time.Time, steps int) time.Time {
	for i := 0; i < steps; i++ {
		now = now.Add(16 * time.Millisecond)
		s.Step(context.Background(), now, 0.016)
	}
	return now
}

func TestSessionWalksAroundBox(t *testing.T) {
	cfg := DefaultConfig()
	box := world.Obstacle{Shape: world.ShapeBox, Center: world.Vec3{X: 5, Y: 1, Z: 5}, Size: world.Vec3{X: 2, Y: 2, Z: 2}}
	cfg.World.Obstacles = []world.Obstacle{box}
	emitter := &recordingEmitter{}
	session, _, _ := newTestSession(t, "me", cfg, emitter)

	target := world.Vec3{X: 8, Y: 0.5, Z: 8}
	if !session.RequestMove(target) {
		t.Fatalf("expected move to be enqueued")
	}
	now := testEpoch
	session.Step(context.Background(), now, 0)

	self, _ := session.Player("me")
	if !self.IsMoving || len(self.Path()) == 0 {
		t.Fatalf("expected a non-empty path, got %+v", self)
	}
	for _, waypoint := range self.Route.Waypoints {
		if box.Contains(waypoint, cfg.World.ObstaclePadding) {
			t.Fatalf("waypoint %+v lies inside the padded obstacle", waypoint)
		}
	}

	for i := 0; i < 2000 && self.IsMoving; i++ {
		now = now.Add(16 * time.Millisecond)
		session.Step(context.Background(), now, 0.016)
		self, _ = session.Player("me")
	}
	if self.IsMoving {
		t.Fatalf("expected the walk to finish")
	}
	if self.Position != target {
		t.Fatalf("expected final position %+v, got %+v", target, self.Position)
	}

	events := emitter.Events()
	if len(events) != 2 {
		t.Fatalf("expected move and stop events, got %+v", events)
	}
	if move, ok := events[0].(proto.MoveToTarget); !ok || move.TargetPosition != target || move.StartPosition != cfg.World.Spawn {
		t.Fatalf("unexpected move event %+v", events[0])
	}
	if stop, ok := events[1].(proto.PlayerStopped); !ok || stop.Position != target {
		t.Fatalf("unexpected stop event %+v", events[1])
	}
}

func TestRemotePathMatchesSender(t *testing.T) {
	cfg := DefaultConfig()
	cfg.World.Obstacles = []world.Obstacle{{Shape: world.ShapeCylinder, Center: world.Vec3{X: 2.5, Y: 1, Z: 2.5}, Size: world.Vec3{X: 1.5, Y: 2, Z: 1.5}}}
	receiver, _, _ := newTestSession(t, "b", cfg, nil)
	forward := &recordingEmitter{next: func(event proto.Event) { receiver.Deliver(event) }}
	sender, _, _ := newTestSession(t, "a", cfg, forward)

	receiver.Deliver(proto.MemberJoined{ID: "a"})
	receiver.Step(context.Background(), testEpoch, 0)

	sender.RequestMove(world.Vec3{X: 5, Y: 0.5, Z: 5})
	sender.Step(context.Background(), testEpoch, 0)
	receiver.Step(context.Background(), testEpoch, 0)

	own, _ := sender.Player("a")
	mirrored, ok := receiver.Player("a")
	if !ok {
		t.Fatalf("expected receiver to know player a")
	}
	if len(own.Route.Waypoints) == 0 {
		t.Fatalf("expected sender to have a path")
	}
	if !own.Route.Waypoints.Equal(mirrored.Route.Waypoints) {
		t.Fatalf("expected identical paths:\nsender   %v\nreceiver %v", own.Route.Waypoints, mirrored.Route.Waypoints)
	}
	if !reflect.DeepEqual(own.Route.Waypoints, mirrored.Route.Waypoints) {
		t.Fatalf("expected bit-identical waypoints")
	}
}

func TestLeaveWhileMovingDropsLaterStop(t *testing.T) {
	session, memory, _ := newTestSession(t, "me", DefaultConfig(), nil)

	session.Deliver(proto.MemberJoined{ID: "p7", Meta: proto.MemberMeta{Name: "Seven"}})
	session.Deliver(proto.MoveToTarget{
		PlayerID:       "p7",
		StartPosition:  world.Vec3{X: 0, Y: 0.5, Z: 0},
		TargetPosition: world.Vec3{X: 3, Y: 0.5, Z: -3},
		Timestamp:      testEpoch.UnixMilli(),
	})
	now := stepFor(session, testEpoch, 1)
	p7, ok := session.Player("p7")
	if !ok || !p7.IsMoving {
		t.Fatalf("expected p7 to be moving, got %+v", p7)
	}

	session.Deliver(proto.MemberLeft{ID: "p7"})
	now = stepFor(session, now, 1)
	if _, ok := session.Player("p7"); ok {
		t.Fatalf("expected p7 to be removed immediately")
	}

	session.Deliver(proto.PlayerStopped{PlayerID: "p7", Position: world.Vec3{X: 3, Y: 0.5, Z: -3}, Timestamp: now.UnixMilli()})
	stepFor(session, now, 1)
	if players := session.Snapshot(); len(players) != 1 || players[0].ID != "me" {
		t.Fatalf("expected only the local player, got %+v", players)
	}
	if got := len(memory.OfType(loggingreconcile.EventUnknownPlayer)); got != 1 {
		t.Fatalf("expected late stop to be logged as unknown, got %d", got)
	}
	if got := len(memory.OfType(loggingroster.EventLeft)); got != 1 {
		t.Fatalf("expected one leave event, got %d", got)
	}
}

func TestJoinIgnoresSelfAndWarnsOnDigestMismatch(t *testing.T) {
	session, memory, _ := newTestSession(t, "me", DefaultConfig(), nil)

	session.Deliver(proto.MemberJoined{ID: "me"})
	session.Deliver(proto.MemberJoined{ID: "p2", Meta: proto.MemberMeta{WorldDigest: session.WorldDigest()}})
	session.Deliver(proto.MemberJoined{ID: "p3", Meta: proto.MemberMeta{WorldDigest: "0000000000000000"}})
	session.Deliver(proto.MemberJoined{ID: "p3"})
	stepFor(session, testEpoch, 1)

	snapshot := session.Snapshot()
	ids := make([]string, 0, len(snapshot))
	for _, p := range snapshot {
		ids = append(ids, p.ID)
	}
	if !reflect.DeepEqual(ids, []string{"me", "p2", "p3"}) {
		t.Fatalf("unexpected roster %v", ids)
	}
	if got := len(memory.OfType(loggingroster.EventJoined)); got != 2 {
		t.Fatalf("expected 2 join events, got %d", got)
	}
	mismatches := memory.OfType(loggingroster.EventWorldMismatch)
	if len(mismatches) != 1 || mismatches[0].Actor.ID != "p3" {
		t.Fatalf("expected one mismatch for p3, got %+v", mismatches)
	}
}

func TestEnqueueDropsWhenInboxFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InboxCapacity = 1
	session, _, counters := newTestSession(t, "me", cfg, nil)

	if !session.RequestMove(world.Vec3{X: 1, Y: 0.5, Z: 1}) {
		t.Fatalf("expected first command to be accepted")
	}
	if session.RequestMove(world.Vec3{X: 2, Y: 0.5, Z: 2}) {
		t.Fatalf("expected second command to be dropped")
	}
	if session.Dropped() != 1 || session.Pending() != 1 {
		t.Fatalf("expected 1 dropped and 1 pending, got %d and %d", session.Dropped(), session.Pending())
	}
	if got := counters.Get(inboxOverflowMetricKey); got != 1 {
		t.Fatalf("expected overflow metric 1, got %d", got)
	}
}

func TestEmitFailuresAreCountedNotRetried(t *testing.T) {
	emitter := &recordingEmitter{err: errors.New("relay down")}
	session, _, counters := newTestSession(t, "me", DefaultConfig(), emitter)

	session.RequestMove(world.Vec3{X: 1, Y: 0.5, Z: 1})
	stepFor(session, testEpoch, 1)
	stepFor(session, testEpoch.Add(time.Second), 1)

	if got := len(emitter.Events()); got != 1 {
		t.Fatalf("expected a single emit attempt, got %d", got)
	}
	if got := counters.Get(emitFailureMetricKey); got != 1 {
		t.Fatalf("expected 1 emit failure, got %d", got)
	}
	if self, _ := session.Player("me"); !self.IsMoving {
		t.Fatalf("expected local movement to continue despite the failure")
	}
}

func TestRecorderSeesInboundAndOutbound(t *testing.T) {
	recorder := &memoryRecorder{}
	session, _, _ := newTestSession(t, "me", DefaultConfig(), nil, WithRecorder(recorder))

	session.Deliver(proto.MemberJoined{ID: "p2"})
	session.RequestMove(world.Vec3{X: 1, Y: 0.5, Z: 1})
	stepFor(session, testEpoch, 1)

	expected := []recordedEntry{
		{direction: DirectionInbound, event: proto.NameMemberJoined},
		{direction: DirectionOutbound, event: proto.NameMoveToTarget},
	}
	if !reflect.DeepEqual(recorder.entries, expected) {
		t.Fatalf("expected %+v, got %+v", expected, recorder.entries)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickRate = 200
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var steps int
	session, _, _ := newTestSession(t, "me", cfg, nil, WithAfterStep(func(result StepResult) {
		steps++
		if result.Delta <= 0 {
			t.Errorf("expected positive delta, got %f", result.Delta)
		}
		if steps == 3 {
			cancel()
		}
	}))

	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run loop did not stop")
	}
	if steps < 3 {
		t.Fatalf("expected at least 3 steps, got %d", steps)
	}
}

func TestNewSessionRejectsInvalidWorld(t *testing.T) {
	cfg := DefaultConfig()
	cfg.World.Diagonal = "sideways"
	roster := state.NewRoster("me", state.Meta{}, cfg.World.Spawn)
	if _, err := NewSession(cfg, roster, nil, nil, Deps{}); err == nil {
		t.Fatalf("expected invalid world config to be rejected")
	}
	if _, err := NewSession(DefaultConfig(), nil, nil, nil, Deps{}); err == nil {
		t.Fatalf("expected missing roster to be rejected")
	}
}
