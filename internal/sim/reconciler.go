package sim

import (
	"context"

	"presence-room/internal/net/proto"
	"presence-room/internal/state"
	"presence-room/internal/world"
	"presence-room/logging"
	loggingreconcile "presence-room/logging/reconcile"
)

// Reconciler simulates remote avatars from their intents. Paths are always
// recomputed locally; a transmitted path is never trusted.
type Reconciler struct {
	cfg          world.Config
	grid         *world.Grid
	roster       *state.Roster
	graceMs      int64
	noPathfinder bool
	pub          logging.Publisher
}

// ReconcilerConfig tunes remote reconciliation.
type ReconcilerConfig struct {
	// StopGraceMs is how long a stop may wait for the local walk to finish
	// before its position is forced.
	StopGraceMs int64
	// DisablePathfinding forces straight-line dead reckoning for every
	// remote move.
	DisablePathfinding bool
}

// NewReconciler builds a reconciler over the shared roster and grid.
func NewReconciler(cfg world.Config, grid *world.Grid, roster *state.Roster, rcfg ReconcilerConfig, pub logging.Publisher) *Reconciler {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &Reconciler{
		cfg:          cfg.Normalized(),
		grid:         grid,
		roster:       roster,
		graceMs:      rcfg.StopGraceMs,
		noPathfinder: rcfg.DisablePathfinding,
		pub:          pub,
	}
}

// remote resolves a remote player, logging events for unknown ids or the
// local player.
func (r *Reconciler) remote(ctx context.Context, tick uint64, id, event string, ts int64) (*state.PlayerState, bool) {
	if id != r.roster.SelfID() {
		if p, ok := r.roster.Get(id); ok {
			return p, true
		}
	}
	loggingreconcile.UnknownPlayer(ctx, r.pub, tick, logging.PlayerRef(id), loggingreconcile.EventPayload{Event: event, Timestamp: ts}, nil)
	return nil, false
}

func (r *Reconciler) stale(ctx context.Context, tick uint64, p *state.PlayerState, event string, ts int64) bool {
	if ts >= p.LastEventAt {
		return false
	}
	loggingreconcile.Stale(ctx, r.pub, tick, logging.PlayerRef(p.ID), loggingreconcile.EventPayload{Event: event, Timestamp: ts}, map[string]any{"last": p.LastEventAt})
	return true
}

// ApplyMove starts a remote avatar on the path from start to target. It
// reports whether the event changed any state.
func (r *Reconciler) ApplyMove(ctx context.Context, tick uint64, e proto.MoveToTarget) bool {
	p, ok := r.remote(ctx, tick, e.PlayerID, e.EventName(), e.Timestamp)
	if !ok {
		return false
	}
	target := world.ClampToRoom(e.TargetPosition, r.cfg)
	record := state.MoveRecord{Start: e.StartPosition, Target: target, Timestamp: e.Timestamp}
	if p.LastMove != nil && *p.LastMove == record {
		loggingreconcile.DuplicateMove(ctx, r.pub, tick, logging.PlayerRef(p.ID), loggingreconcile.EventPayload{Event: e.EventName(), Timestamp: e.Timestamp}, nil)
		return false
	}
	if r.stale(ctx, tick, p, e.EventName(), e.Timestamp) {
		return false
	}

	p.LastEventAt = e.Timestamp
	p.LastMove = &record
	p.PendingStop = nil

	var path world.Path
	if !r.noPathfinder {
		path = world.FindPath(r.grid, e.StartPosition, target)
	}
	payload := loggingreconcile.MovePayload{Timestamp: e.Timestamp, Waypoints: len(path)}
	if len(path) == 0 {
		p.BeginFallback(e.StartPosition, target, e.Timestamp)
		loggingreconcile.Fallback(ctx, r.pub, tick, logging.PlayerRef(p.ID), payload, nil)
		return true
	}
	p.BeginRoute(e.StartPosition, world.NewRoute(path, target))
	loggingreconcile.RemoteMove(ctx, r.pub, tick, logging.PlayerRef(p.ID), payload, nil)
	return true
}

// ApplyStop reconciles a reported rest position. A player still walking
// locally keeps walking towards the reported point, and the position is
// forced once the grace delay expires.
func (r *Reconciler) ApplyStop(ctx context.Context, tick uint64, e proto.PlayerStopped, now int64) bool {
	p, ok := r.remote(ctx, tick, e.PlayerID, e.EventName(), e.Timestamp)
	if !ok {
		return false
	}
	if r.stale(ctx, tick, p, e.EventName(), e.Timestamp) {
		return false
	}
	p.LastEventAt = e.Timestamp

	if !p.IsMoving {
		p.Halt(e.Position)
		return true
	}
	if p.Route.Active() {
		p.Route.Retarget(e.Position)
	} else if p.InFallback() {
		// Dead reckoning restarts from where the avatar is now.
		p.BeginFallback(p.Position, e.Position, now)
	}
	p.PendingStop = &state.PendingStop{Position: e.Position, DueAt: now + r.graceMs}
	loggingreconcile.StopDeferred(ctx, r.pub, tick, logging.PlayerRef(p.ID), loggingreconcile.EventPayload{Event: e.EventName(), Timestamp: e.Timestamp}, nil)
	return true
}

// ApplySync applies a drift correction to an idle avatar. Corrections for an
// avatar that is walking or waiting on a stop are discarded.
func (r *Reconciler) ApplySync(ctx context.Context, tick uint64, e proto.PositionSync) bool {
	p, ok := r.remote(ctx, tick, e.PlayerID, e.EventName(), e.Timestamp)
	if !ok {
		return false
	}
	if r.stale(ctx, tick, p, e.EventName(), e.Timestamp) {
		return false
	}
	if p.IsMoving || p.PendingStop != nil {
		loggingreconcile.SyncDiscarded(ctx, r.pub, tick, logging.PlayerRef(p.ID), loggingreconcile.EventPayload{Event: e.EventName(), Timestamp: e.Timestamp}, nil)
		return false
	}
	p.LastEventAt = e.Timestamp
	p.Position = e.Position
	return true
}

// Tick advances every remote avatar by dt seconds.
func (r *Reconciler) Tick(ctx context.Context, tick uint64, now int64, dt float64) {
	for _, p := range r.roster.Remotes() {
		r.advance(ctx, tick, p, now, dt)
	}
}

func (r *Reconciler) advance(ctx context.Context, tick uint64, p *state.PlayerState, now int64, dt float64) {
	if pending := p.PendingStop; pending != nil && now >= pending.DueAt {
		drift := p.Position.DistanceTo(pending.Position)
		p.Halt(pending.Position)
		loggingreconcile.StopCorrected(ctx, r.pub, tick, logging.PlayerRef(p.ID), loggingreconcile.CorrectionPayload{Drift: drift}, nil)
		return
	}
	if !p.IsMoving {
		return
	}

	switch {
	case p.Route.Active():
		step := p.Route.Advance(p.Position, r.cfg.MoveSpeed*dt, r.cfg.ArrivalThreshold)
		p.Position = step.Position
		if step.Moved {
			p.Facing = step.Facing
		}
		if step.Arrived {
			p.Halt(step.Position)
		}
	case p.InFallback():
		elapsed := float64(now-*p.MovementStartTime) / 1000
		pos, arrived := world.DeadReckon(p.MovementOrigin, *p.TargetPosition, r.cfg.MoveSpeed, elapsed)
		if pos != p.Position {
			p.Facing = world.Facing(pos.X-p.Position.X, pos.Z-p.Position.Z)
		}
		p.Position = pos
		if arrived {
			p.Halt(pos)
		}
	default:
		p.Halt(p.Position)
	}
}
