package sim

import (
	"context"

	"presence-room/internal/net/proto"
	"presence-room/internal/state"
	"presence-room/internal/world"
	"presence-room/logging"
	loggingmovement "presence-room/logging/movement"
)

// LocalController drives the locally owned avatar and is the only source of
// outbound movement events.
type LocalController struct {
	cfg        world.Config
	grid       *world.Grid
	player     *state.PlayerState
	syncEvery  int64
	lastSyncAt int64
	pub        logging.Publisher
}

// NewLocalController binds the controller to the local player entry.
func NewLocalController(cfg world.Config, grid *world.Grid, player *state.PlayerState, syncEveryMs int64, pub logging.Publisher) *LocalController {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &LocalController{
		cfg:       cfg.Normalized(),
		grid:      grid,
		player:    player,
		syncEvery: syncEveryMs,
		pub:       pub,
	}
}

// Player returns the controlled avatar.
func (c *LocalController) Player() *state.PlayerState {
	return c.player
}

// RequestMove computes a path from the current position to the clamped
// target. An unreachable target leaves the player untouched and returns
// false. A request while already moving replaces the in-flight path.
func (c *LocalController) RequestMove(ctx context.Context, tick uint64, target world.Vec3, now int64) (proto.MoveToTarget, bool) {
	goal := world.ClampToRoom(target, c.cfg)
	start := c.player.Position
	path := world.FindPath(c.grid, start, goal)
	payload := loggingmovement.MovePayload{From: vecArray(start), To: vecArray(goal), Waypoints: len(path)}
	if len(path) == 0 {
		loggingmovement.MoveRejected(ctx, c.pub, tick, logging.PlayerRef(c.player.ID), payload, nil)
		return proto.MoveToTarget{}, false
	}

	c.player.BeginRoute(start, world.NewRoute(path, goal))
	loggingmovement.MoveStarted(ctx, c.pub, tick, logging.PlayerRef(c.player.ID), payload, nil)
	return proto.MoveToTarget{
		PlayerID:       c.player.ID,
		StartPosition:  start,
		TargetPosition: goal,
		Timestamp:      now,
	}, true
}

// Tick advances the avatar by dt seconds and returns any events to emit.
func (c *LocalController) Tick(ctx context.Context, tick uint64, now int64, dt float64) []proto.Event {
	p := c.player
	if !p.IsMoving {
		if c.syncEvery > 0 && now-c.lastSyncAt >= c.syncEvery {
			c.lastSyncAt = now
			loggingmovement.SyncSent(ctx, c.pub, tick, logging.PlayerRef(p.ID), loggingmovement.PositionPayload{Position: vecArray(p.Position)}, nil)
			return []proto.Event{proto.PositionSync{PlayerID: p.ID, Position: p.Position, Timestamp: now}}
		}
		return nil
	}

	step := p.Route.Advance(p.Position, c.cfg.MoveSpeed*dt, c.cfg.ArrivalThreshold)
	p.Position = step.Position
	if step.Moved {
		p.Facing = step.Facing
	}
	if !step.Arrived {
		return nil
	}

	goal, ok := p.Route.Goal()
	if !ok {
		goal = p.Position
	}
	p.Halt(goal)
	c.lastSyncAt = now
	loggingmovement.MoveCompleted(ctx, c.pub, tick, logging.PlayerRef(p.ID), loggingmovement.PositionPayload{Position: vecArray(goal)}, nil)
	return []proto.Event{proto.PlayerStopped{PlayerID: p.ID, Position: goal, Timestamp: now}}
}

func vecArray(v world.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
