package world

import (
	"math"
	"testing"
)

func TestNewRouteReplacesFinalWaypoint(t *testing.T) {
	path := Path{{X: 1}, {X: 2}, {X: 3}}
	goal := Vec3{X: 2.9, Y: 0.5, Z: 0.1}

	route := NewRoute(path, goal)
	if got, _ := route.Goal(); got != goal {
		t.Fatalf("expected goal %+v, got %+v", goal, got)
	}
	if path[2].X != 3 {
		t.Fatalf("expected source path to stay untouched, got %+v", path[2])
	}
	if empty := NewRoute(nil, goal); empty.Active() {
		t.Fatalf("expected empty route for empty path")
	}
}

func TestRouteAdvanceCarriesLeftoverDistance(t *testing.T) {
	route := Route{Waypoints: Path{{X: 1}, {X: 1, Z: 1}}}

	step := route.Advance(Vec3{}, 1.5, 0.15)
	expected := Vec3{X: 1, Z: 0.5}
	if step.Position.DistanceTo(expected) > 1e-9 {
		t.Fatalf("expected position %+v, got %+v", expected, step.Position)
	}
	if route.Index != 1 {
		t.Fatalf("expected index 1, got %d", route.Index)
	}
	if step.Arrived {
		t.Fatalf("expected route to still be active")
	}
	if math.Abs(step.Facing-0) > 1e-9 {
		t.Fatalf("expected facing along +Z, got %v", step.Facing)
	}
}

func TestRouteAdvanceNeverOvershoots(t *testing.T) {
	goal := Vec3{X: 3, Y: 0.5, Z: 4}
	route := Route{Waypoints: Path{goal}}
	pos := Vec3{Y: 0.5}
	prev := pos.DistanceTo(goal)

	for i := 0; i < 1000 && route.Active(); i++ {
		step := route.Advance(pos, 4*0.016, 0.15)
		pos = step.Position
		dist := pos.DistanceTo(goal)
		if dist > prev+1e-9 {
			t.Fatalf("expected distance to shrink, went from %v to %v", prev, dist)
		}
		prev = dist
	}
	if route.Active() {
		t.Fatalf("expected route to finish")
	}
	if pos != goal {
		t.Fatalf("expected to finish exactly on %+v, got %+v", goal, pos)
	}
}

func TestRouteAdvanceSnapsWithinThreshold(t *testing.T) {
	route := Route{Waypoints: Path{{X: 0.1}}}
	step := route.Advance(Vec3{}, 0, 0.15)
	if !step.Arrived {
		t.Fatalf("expected arrival inside threshold")
	}
	if step.Position != (Vec3{X: 0.1}) {
		t.Fatalf("expected snap to waypoint, got %+v", step.Position)
	}
	if step.Moved {
		t.Fatalf("expected snap without movement")
	}
}

func TestRouteRetarget(t *testing.T) {
	route := Route{Waypoints: Path{{X: 1}, {X: 2}}}
	if !route.Retarget(Vec3{X: 5}) {
		t.Fatalf("expected retarget on active route")
	}
	if goal, _ := route.Goal(); goal.X != 5 {
		t.Fatalf("expected goal x=5, got %+v", goal)
	}
	route.Index = 2
	if route.Retarget(Vec3{X: 7}) {
		t.Fatalf("expected retarget to be ignored on a finished route")
	}
}

func TestDeadReckonNeverPassesTarget(t *testing.T) {
	start := Vec3{X: -2, Y: 0.5, Z: 1}
	target := Vec3{X: 6, Y: 0.5, Z: -5}
	total := start.DistanceTo(target)

	for _, elapsed := range []float64{-1, 0, 0.25, 1, 2.4999, 2.5, 3, 1e6} {
		pos, arrived := DeadReckon(start, target, 4, elapsed)
		travelled := start.DistanceTo(pos)
		if travelled > total+1e-9 {
			t.Fatalf("elapsed %v: travelled %v beyond total %v", elapsed, travelled, total)
		}
		if elapsed <= 0 && pos != start {
			t.Fatalf("elapsed %v: expected to stay at start, got %+v", elapsed, pos)
		}
		if elapsed >= total/4 && (!arrived || pos != target) {
			t.Fatalf("elapsed %v: expected arrival at target, got %+v arrived=%v", elapsed, pos, arrived)
		}
	}
}

func TestDeadReckonZeroDistance(t *testing.T) {
	p := Vec3{X: 1, Y: 0.5, Z: 1}
	pos, arrived := DeadReckon(p, p, 4, 0)
	if !arrived || pos != p {
		t.Fatalf("expected immediate arrival, got %+v arrived=%v", pos, arrived)
	}
}

func TestClampToRoom(t *testing.T) {
	cfg := DefaultConfig()
	got := ClampToRoom(Vec3{X: 15, Y: 3, Z: -20}, cfg)
	expected := Vec3{X: 9, Y: 0.5, Z: -9}
	if got != expected {
		t.Fatalf("expected %+v, got %+v", expected, got)
	}
	inside := ClampToRoom(Vec3{X: 8, Y: 0.5, Z: 8}, cfg)
	if inside != (Vec3{X: 8, Y: 0.5, Z: 8}) {
		t.Fatalf("expected in-bounds target to be unchanged, got %+v", inside)
	}
}
