package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"presence-room/internal/net/proto"
	"presence-room/internal/state"
	"presence-room/internal/telemetry"
	"presence-room/internal/world"
	"presence-room/logging"
	loggingroster "presence-room/logging/roster"
)

const (
	emitFailureMetricKey = "sim_emit_failures_total"
	emittedMetricKey     = "sim_events_emitted_total"
	tickMetricKey        = "sim_ticks_total"
)

// Journal directions passed to a Recorder.
const (
	DirectionInbound  = "in"
	DirectionOutbound = "out"
)

// Config tunes a session.
type Config struct {
	World                    world.Config
	StopGraceDelay           time.Duration
	SyncInterval             time.Duration
	InboxCapacity            int
	DisableRemotePathfinding bool
	TickRate                 int
	CatchupMaxTicks          int
}

// DefaultConfig returns the room defaults with a 60 Hz tick.
func DefaultConfig() Config {
	return Config{
		World:           world.DefaultConfig(),
		StopGraceDelay:  100 * time.Millisecond,
		InboxCapacity:   256,
		TickRate:        60,
		CatchupMaxTicks: 4,
	}
}

// Deps carries shared infrastructure for a session.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	Publisher logging.Publisher
}

// Emitter publishes locally produced events to the rest of the room.
type Emitter interface {
	Emit(ctx context.Context, event proto.Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, event proto.Event) error

// Emit implements Emitter.
func (f EmitterFunc) Emit(ctx context.Context, event proto.Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// Recorder receives every event the session consumes or produces, in the
// order it handles them.
type Recorder interface {
	Record(ctx context.Context, direction string, at int64, event proto.Event) error
}

// StepResult summarises one tick.
type StepResult struct {
	Tick     uint64
	Now      time.Time
	Delta    float64
	Commands int
	Emitted  []proto.Event
	Clamped  bool
}

// Option customises a session.
type Option func(*Session)

// WithRecorder journals the session's event stream.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithAfterStep installs a hook invoked after every tick Run executes.
func WithAfterStep(fn func(StepResult)) Option {
	return func(s *Session) {
		s.afterStep = fn
	}
}

// Session owns one client's view of the room. All roster mutation happens on
// the goroutine calling Step; other goroutines only enqueue commands.
type Session struct {
	cfg       Config
	deps      Deps
	grid      *world.Grid
	digest    string
	roster    *state.Roster
	local     *LocalController
	remote    *Reconciler
	buffer    *CommandBuffer
	emitter   Emitter
	recorder  Recorder
	afterStep func(StepResult)

	mu   sync.Mutex
	tick uint64
}

// NewSession wires a session around the supplied roster. A nil grid is built
// from the configured obstacles.
func NewSession(cfg Config, roster *state.Roster, grid *world.Grid, emitter Emitter, deps Deps, opts ...Option) (*Session, error) {
	if roster == nil {
		return nil, errors.New("sim: roster is required")
	}
	if roster.Self() == nil {
		return nil, errors.New("sim: roster has no local player")
	}
	cfg.World = cfg.World.Normalized()
	if err := cfg.World.Validate(); err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	if grid == nil {
		grid = world.BuildGrid(cfg.World.Obstacles, cfg.World)
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.Discard
	}
	if deps.Clock == nil {
		deps.Clock = logging.ClockFunc(time.Now)
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if emitter == nil {
		emitter = EmitterFunc(nil)
	}

	s := &Session{
		cfg:     cfg,
		deps:    deps,
		grid:    grid,
		digest:  cfg.World.Digest(),
		roster:  roster,
		emitter: emitter,
		buffer:  NewCommandBuffer(cfg.InboxCapacity, deps.Metrics),
	}
	s.local = NewLocalController(cfg.World, grid, roster.Self(), cfg.SyncInterval.Milliseconds(), deps.Publisher)
	s.remote = NewReconciler(cfg.World, grid, roster, ReconcilerConfig{
		StopGraceMs:        cfg.StopGraceDelay.Milliseconds(),
		DisablePathfinding: cfg.DisableRemotePathfinding,
	}, deps.Publisher)
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// SelfID returns the local player's stable id.
func (s *Session) SelfID() string {
	return s.roster.SelfID()
}

// WorldDigest identifies the room layout this session simulates.
func (s *Session) WorldDigest() string {
	return s.digest
}

// Grid returns the immutable walkability grid.
func (s *Session) Grid() *world.Grid {
	return s.grid
}

// Pending reports the number of staged commands.
func (s *Session) Pending() int {
	return s.buffer.Len()
}

// Dropped reports how many commands were rejected by a full inbox.
func (s *Session) Dropped() uint64 {
	return s.buffer.Dropped()
}

// Enqueue stages a command for the next tick. It never blocks; a full inbox
// drops the command and reports false.
func (s *Session) Enqueue(cmd Command) bool {
	if s.buffer.Push(cmd) {
		return true
	}
	count := s.buffer.Dropped()
	if count&(count-1) == 0 {
		s.deps.Logger.Printf(
			"[backpressure] dropping command actor=%s type=%s count=%d capacity=%d",
			cmd.ActorID,
			cmd.Type,
			count,
			s.buffer.Capacity(),
		)
	}
	return false
}

// Deliver stages an inbound room event.
func (s *Session) Deliver(event proto.Event) bool {
	cmd, ok := CommandFromEvent(event, s.deps.Clock.Now())
	if !ok {
		return false
	}
	return s.Enqueue(cmd)
}

// RequestMove stages a local target selection.
func (s *Session) RequestMove(target world.Vec3) bool {
	return s.Enqueue(Command{
		Type:     CommandMoveTo,
		ActorID:  s.roster.SelfID(),
		IssuedAt: s.deps.Clock.Now(),
		MoveTo:   &MoveToCommand{Target: target},
	})
}

// Step drains the inbox, advances every avatar by dt seconds and publishes
// the resulting local events. Emission happens after the roster lock is
// released.
func (s *Session) Step(ctx context.Context, now time.Time, dt float64) StepResult {
	nowMs := now.UnixMilli()
	commands := s.buffer.Drain()

	s.mu.Lock()
	s.tick++
	tick := s.tick
	var outbound []proto.Event
	for _, cmd := range commands {
		outbound = append(outbound, s.dispatch(ctx, tick, cmd, nowMs)...)
	}
	outbound = append(outbound, s.local.Tick(ctx, tick, nowMs, dt)...)
	s.remote.Tick(ctx, tick, nowMs, dt)
	s.mu.Unlock()

	if s.deps.Metrics != nil {
		s.deps.Metrics.Add(tickMetricKey, 1)
	}
	for _, event := range outbound {
		s.emit(ctx, nowMs, event)
	}
	return StepResult{
		Tick:     tick,
		Now:      now,
		Delta:    dt,
		Commands: len(commands),
		Emitted:  outbound,
	}
}

func (s *Session) dispatch(ctx context.Context, tick uint64, cmd Command, now int64) []proto.Event {
	if cmd.Type == CommandMoveTo {
		if cmd.MoveTo == nil {
			return nil
		}
		if move, ok := s.local.RequestMove(ctx, tick, cmd.MoveTo.Target, now); ok {
			return []proto.Event{move}
		}
		return nil
	}
	if cmd.Event == nil {
		return nil
	}
	s.record(ctx, DirectionInbound, now, cmd.Event)

	switch event := cmd.Event.(type) {
	case proto.MemberJoined:
		s.join(ctx, tick, event)
	case proto.MemberLeft:
		s.leave(ctx, tick, event)
	case proto.MoveToTarget:
		s.remote.ApplyMove(ctx, tick, event)
	case proto.PlayerStopped:
		s.remote.ApplyStop(ctx, tick, event, now)
	case proto.PositionSync:
		s.remote.ApplySync(ctx, tick, event)
	}
	return nil
}

func (s *Session) join(ctx context.Context, tick uint64, event proto.MemberJoined) {
	if event.ID == s.roster.SelfID() {
		return
	}
	meta := state.Meta{Name: event.Meta.Name, WorldDigest: event.Meta.WorldDigest}
	player, added := s.roster.Join(event.ID, meta)
	if !added {
		return
	}
	actor := logging.PlayerRef(player.ID)
	loggingroster.Joined(ctx, s.deps.Publisher, tick, actor, loggingroster.MemberPayload{
		Name:  player.Name,
		Color: player.Color,
		Size:  s.roster.Len(),
	}, nil)
	if meta.WorldDigest != "" && meta.WorldDigest != s.digest {
		loggingroster.WorldMismatch(ctx, s.deps.Publisher, tick, actor, loggingroster.MismatchPayload{
			Local:  s.digest,
			Remote: meta.WorldDigest,
		}, nil)
	}
}

func (s *Session) leave(ctx context.Context, tick uint64, event proto.MemberLeft) {
	player, ok := s.roster.Get(event.ID)
	if !ok || !s.roster.Leave(event.ID) {
		return
	}
	loggingroster.Left(ctx, s.deps.Publisher, tick, logging.PlayerRef(event.ID), loggingroster.MemberPayload{
		Name: player.Name,
		Size: s.roster.Len(),
	}, nil)
}

func (s *Session) emit(ctx context.Context, now int64, event proto.Event) {
	s.record(ctx, DirectionOutbound, now, event)
	if err := s.emitter.Emit(ctx, event); err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.Add(emitFailureMetricKey, 1)
		}
		s.deps.Logger.Printf("[emit] %s failed: %v", event.EventName(), err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.Add(emittedMetricKey, 1)
	}
}

func (s *Session) record(ctx context.Context, direction string, now int64, event proto.Event) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, direction, now, event); err != nil {
		s.deps.Logger.Printf("[journal] record %s failed: %v", event.EventName(), err)
	}
}

// Snapshot returns deep copies of every player in id order.
func (s *Session) Snapshot() []state.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	players := make([]state.PlayerState, 0, s.roster.Len())
	s.roster.Each(func(p *state.PlayerState) {
		players = append(players, p.Clone())
	})
	return players
}

// Player returns a copy of one player.
func (s *Session) Player(id string) (state.PlayerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.roster.Get(id)
	if !ok {
		return state.PlayerState{}, false
	}
	return p.Clone(), true
}

// Run drives the fixed-timestep loop until the context is cancelled.
func (s *Session) Run(ctx context.Context) error {
	tickRate := s.cfg.TickRate
	if tickRate <= 0 {
		tickRate = 60
	}
	budget := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	clock := s.deps.Clock
	last := clock.Now()
	budgetSeconds := budget.Seconds()
	maxDt := budgetSeconds
	if s.cfg.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(s.cfg.CatchupMaxTicks)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			result := s.Step(ctx, now, dt)
			result.Clamped = clamped
			if s.afterStep != nil {
				s.afterStep(result)
			}
		}
	}
}
