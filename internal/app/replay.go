package app

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"presence-room/internal/config"
	"presence-room/internal/journal"
	"presence-room/internal/net/proto"
	"presence-room/internal/sim"
	"presence-room/internal/state"
)

const replaySettleLimit = 60 * time.Second

// ReplayResult summarises a journal replay.
type ReplayResult struct {
	SelfID   string
	Entries  int
	Applied  int
	Ticks    uint64
	Settled  bool
	Duration time.Duration
	Players  []state.PlayerState
}

// Replay feeds a recorded journal into a fresh session on a virtual clock.
// Inbound entries are delivered as they were received; recorded local move
// intents are re-requested so the local avatar walks the same paths. After
// the last entry the session runs until every avatar is idle.
func Replay(ctx context.Context, cfg config.Config, src journal.Source, deps Deps) (ReplayResult, error) {
	entries, err := src.Entries(ctx)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("read journal: %w", err)
	}
	codec, err := proto.NewJSONCodec()
	if err != nil {
		return ReplayResult{}, err
	}
	events := make([]proto.Event, len(entries))
	for i, entry := range entries {
		event, err := entry.Decode(codec)
		if err != nil {
			return ReplayResult{}, err
		}
		events[i] = event
	}

	selfID := cfg.PlayerID
	for i, entry := range entries {
		if entry.Direction == sim.DirectionOutbound {
			selfID = proto.PlayerOf(events[i])
			break
		}
	}

	result := ReplayResult{SelfID: selfID, Entries: len(entries)}
	if len(entries) == 0 {
		return result, nil
	}

	simCfg := cfg.SimConfig()
	simCfg.InboxCapacity = max(simCfg.InboxCapacity, len(entries))
	simCfg.SyncInterval = 0
	roster := state.NewRoster(selfID, state.Meta{Name: cfg.PlayerName, WorldDigest: cfg.World.Digest()}, cfg.World.Spawn)
	session, err := sim.NewSession(simCfg, roster, nil, nil, sim.Deps{
		Logger:    deps.Logger,
		Metrics:   deps.Metrics,
		Publisher: deps.Publisher,
	})
	if err != nil {
		return ReplayResult{}, err
	}

	tickRate := max(simCfg.TickRate, 1)
	budget := time.Second / time.Duration(tickRate)
	start := time.UnixMilli(entries[0].At)
	clock := &replayClock{now: start}
	step := func(at time.Time) {
		dt := clock.advance(at)
		result.Ticks = session.Step(ctx, clock.now, dt).Tick
	}

	for i := 0; i < len(entries); {
		at := time.UnixMilli(entries[i].At)
		for clock.now.Add(budget).Before(at) {
			step(clock.now.Add(budget))
		}
		for ; i < len(entries) && entries[i].At == at.UnixMilli(); i++ {
			if applyEntry(session, entries[i], events[i]) {
				result.Applied++
			}
		}
		step(at)
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	deadline := clock.now.Add(replaySettleLimit)
	for clock.now.Before(deadline) {
		if idle(session.Snapshot()) {
			result.Settled = true
			break
		}
		step(clock.now.Add(budget))
	}
	result.Duration = clock.now.Sub(start)
	result.Players = session.Snapshot()
	return result, nil
}

// replayClock is the virtual time a replay runs on. It never moves
// backwards, and a step to the current instant advances the simulation by
// zero seconds.
type replayClock struct {
	now time.Time
}

func (c *replayClock) advance(at time.Time) float64 {
	dt := at.Sub(c.now).Seconds()
	if dt <= 0 {
		return 0
	}
	c.now = at
	return dt
}

func applyEntry(session *sim.Session, entry journal.Entry, event proto.Event) bool {
	if entry.Direction == sim.DirectionInbound {
		return session.Deliver(event)
	}
	if move, ok := event.(proto.MoveToTarget); ok {
		return session.RequestMove(move.TargetPosition)
	}
	return false
}

func idle(players []state.PlayerState) bool {
	for _, p := range players {
		if p.IsMoving || p.PendingStop != nil {
			return false
		}
	}
	return true
}

// WriteRoster prints one line per player in id order.
func WriteRoster(w io.Writer, selfID string, players []state.PlayerState) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOLOR\tPOSITION\tSTATE")
	for _, p := range players {
		status := "idle"
		if p.IsMoving {
			status = "moving"
		}
		id := p.ID
		if id == selfID {
			id += " (self)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t(%.2f, %.2f, %.2f)\t%s\n", id, p.Name, p.Color, p.Position.X, p.Position.Y, p.Position.Z, status)
	}
	return tw.Flush()
}

// RunReplay replays the journal at path and prints the final roster to out.
func RunReplay(ctx context.Context, cfg config.Config, path string, out io.Writer) error {
	rt, err := newRuntime(cfg, out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			rt.logger.Printf("failed to close logging: %v", cerr)
		}
	}()

	src, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	result, err := Replay(ctx, cfg, src, Deps{Logger: rt.logger, Metrics: rt.metrics, Publisher: rt.router})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "replayed %d/%d entries over %s in %d ticks (settled=%t)\n",
		result.Applied, result.Entries, result.Duration, result.Ticks, result.Settled)
	return WriteRoster(out, result.SelfID, result.Players)
}
