package state

import (
	"errors"

	"presence-room/internal/world"
)

// Meta is the display metadata a member advertises when it joins.
type Meta struct {
	Name        string `json:"name,omitempty" msgpack:"name,omitempty"`
	WorldDigest string `json:"worldDigest,omitempty" msgpack:"worldDigest,omitempty"`
}

// MoveRecord remembers the last move intent applied to a remote player so a
// redelivered copy can be recognised.
type MoveRecord struct {
	Start     world.Vec3
	Target    world.Vec3
	Timestamp int64
}

// PendingStop is a forced position correction waiting for its grace delay.
type PendingStop struct {
	Position world.Vec3
	DueAt    int64
}

// PlayerState is one avatar. Times are unix milliseconds.
type PlayerState struct {
	ID       string
	Position world.Vec3
	Color    string
	Name     string
	IsMoving bool
	Route    world.Route
	Facing   float64

	// Dead-reckoning fallback. Set only while moving without a path.
	TargetPosition    *world.Vec3
	MovementStartTime *int64
	MovementOrigin    world.Vec3

	// Reconciliation bookkeeping for remote players.
	LastEventAt int64
	LastMove    *MoveRecord
	PendingStop *PendingStop

	Meta Meta
}

// Path returns the waypoints still ahead of the player.
func (p *PlayerState) Path() world.Path {
	if p == nil || !p.Route.Active() {
		return nil
	}
	return p.Route.Waypoints[p.Route.Index:]
}

// InFallback reports whether the player is dead reckoning instead of walking
// a path.
func (p *PlayerState) InFallback() bool {
	return p != nil && p.TargetPosition != nil && p.MovementStartTime != nil
}

// Halt makes the player idle at pos and clears all motion state.
func (p *PlayerState) Halt(pos world.Vec3) {
	p.Position = pos
	p.IsMoving = false
	p.Route = world.Route{}
	p.TargetPosition = nil
	p.MovementStartTime = nil
	p.PendingStop = nil
}

// BeginRoute puts the player on a path.
func (p *PlayerState) BeginRoute(start world.Vec3, route world.Route) {
	p.Position = start
	p.Route = route
	p.IsMoving = true
	p.TargetPosition = nil
	p.MovementStartTime = nil
}

// BeginFallback puts the player into straight-line dead reckoning.
func (p *PlayerState) BeginFallback(start, target world.Vec3, startedAt int64) {
	p.Position = start
	p.MovementOrigin = start
	p.Route = world.Route{}
	p.IsMoving = true
	goal := target
	p.TargetPosition = &goal
	began := startedAt
	p.MovementStartTime = &began
}

var (
	errMovingWithoutPlan = errors.New("moving player has neither a path nor a fallback target")
	errIdleWithPath      = errors.New("idle player still holds a path")
)

// CheckInvariant reports a state that violates the moving/path contract.
func (p *PlayerState) CheckInvariant() error {
	if p.IsMoving && !p.Route.Active() && !p.InFallback() {
		return errMovingWithoutPlan
	}
	if !p.IsMoving && p.Route.Active() {
		return errIdleWithPath
	}
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine.
func (p *PlayerState) Clone() PlayerState {
	clone := *p
	clone.Route = world.Route{Waypoints: p.Route.Waypoints.Clone(), Index: p.Route.Index}
	if p.TargetPosition != nil {
		target := *p.TargetPosition
		clone.TargetPosition = &target
	}
	if p.MovementStartTime != nil {
		started := *p.MovementStartTime
		clone.MovementStartTime = &started
	}
	if p.LastMove != nil {
		last := *p.LastMove
		clone.LastMove = &last
	}
	if p.PendingStop != nil {
		pending := *p.PendingStop
		clone.PendingStop = &pending
	}
	return clone
}
