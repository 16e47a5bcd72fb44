package app

import (
	"context"
	"time"

	"golang.org/x/exp/rand"

	"presence-room/internal/state"
	"presence-room/internal/world"
)

// Wanderer picks floor targets for a headless client. The sequence depends
// only on the seed, so a wandering client is reproducible.
type Wanderer struct {
	cfg world.Config
	rng *rand.Rand
}

// NewWanderer seeds the walk. A zero seed derives one from the player id.
func NewWanderer(cfg world.Config, playerID string, seed uint64) *Wanderer {
	if seed == 0 {
		seed = uint64(state.Hash(playerID)) + 1
	}
	return &Wanderer{
		cfg: cfg.Normalized(),
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Next returns a target inside the clamped floor area.
func (w *Wanderer) Next() world.Vec3 {
	half := w.cfg.RoomSize/2 - w.cfg.TargetMargin
	return world.Vec3{
		X: (w.rng.Float64()*2 - 1) * half,
		Y: w.cfg.AvatarHeight,
		Z: (w.rng.Float64()*2 - 1) * half,
	}
}

type moveRequester interface {
	RequestMove(target world.Vec3) bool
}

// wander requests a new target every interval until ctx is cancelled.
func wander(ctx context.Context, session moveRequester, w *Wanderer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	session.RequestMove(w.Next())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			session.RequestMove(w.Next())
		}
	}
}
