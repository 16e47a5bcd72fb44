package world

// Route is a path being walked. Index points at the next waypoint to reach.
type Route struct {
	Waypoints Path
	Index     int
}

// NewRoute installs a path whose final waypoint is replaced by the exact goal,
// so a walker finishes on the requested point rather than its cell centre.
func NewRoute(path Path, goal Vec3) Route {
	if len(path) == 0 {
		return Route{}
	}
	waypoints := path.Clone()
	waypoints[len(waypoints)-1] = goal
	return Route{Waypoints: waypoints}
}

// Active reports whether waypoints remain.
func (r Route) Active() bool {
	return r.Index < len(r.Waypoints)
}

// Remaining returns the number of waypoints not yet reached.
func (r Route) Remaining() int {
	if r.Index >= len(r.Waypoints) {
		return 0
	}
	return len(r.Waypoints) - r.Index
}

// Goal returns the final waypoint.
func (r Route) Goal() (Vec3, bool) {
	if len(r.Waypoints) == 0 {
		return Vec3{}, false
	}
	return r.Waypoints[len(r.Waypoints)-1], true
}

// Retarget moves the final waypoint. It has no effect on a finished route.
func (r *Route) Retarget(goal Vec3) bool {
	if r == nil || !r.Active() {
		return false
	}
	r.Waypoints[len(r.Waypoints)-1] = goal
	return true
}

// Step is the outcome of advancing along a route for one tick.
type Step struct {
	Position Vec3
	Facing   float64
	Moved    bool
	Arrived  bool
}

// Advance walks from pos along the route, spending at most distance units.
// Waypoints closer than threshold count as reached and are snapped to.
// Leftover distance carries over to the next waypoint, and no waypoint is
// ever overshot.
func (r *Route) Advance(pos Vec3, distance, threshold float64) Step {
	step := Step{Position: pos}
	if r == nil {
		step.Arrived = true
		return step
	}
	remaining := distance
	for r.Index < len(r.Waypoints) {
		node := r.Waypoints[r.Index]
		dist := step.Position.DistanceTo(node)
		if dist < threshold {
			step.Position = node
			r.Index++
			continue
		}
		if remaining <= 0 {
			break
		}
		step.Facing = Facing(node.X-step.Position.X, node.Z-step.Position.Z)
		step.Moved = true
		if remaining >= dist {
			step.Position = node
			remaining -= dist
			r.Index++
			continue
		}
		step.Position = step.Position.Towards(node, remaining)
		break
	}
	step.Arrived = r.Index >= len(r.Waypoints)
	return step
}

// DeadReckon extrapolates a straight-line move from start to target after
// elapsed seconds at velocity units per second. The result never passes the
// target; negative elapsed time is treated as zero.
func DeadReckon(start, target Vec3, velocity, elapsed float64) (Vec3, bool) {
	total := start.DistanceTo(target)
	if total == 0 {
		return target, true
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if velocity < 0 {
		velocity = 0
	}
	expected := min(velocity*elapsed, total)
	if expected >= total {
		return target, true
	}
	return start.Towards(target, expected), false
}
