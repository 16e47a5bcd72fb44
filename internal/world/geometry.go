package world

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Vec3 is a world-space coordinate. The room floor is the XZ plane; Y is height.
type Vec3 struct {
	X float64 `json:"x" yaml:"x" msgpack:"x"`
	Y float64 `json:"y" yaml:"y" msgpack:"y"`
	Z float64 `json:"z" yaml:"z" msgpack:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Length returns the euclidean length of v.
func (v Vec3) Length() float64 {
	// Explicit conversions keep the compiler from fusing the multiply-adds,
	// which would make results differ between architectures.
	sq := float64(v.X*v.X) + float64(v.Y*v.Y)
	sq = sq + float64(v.Z*v.Z)
	return math.Sqrt(sq)
}

// DistanceTo returns the euclidean distance between v and o.
func (v Vec3) DistanceTo(o Vec3) float64 {
	return o.Sub(v).Length()
}

// Towards returns the point reached by moving distance units from v towards
// target. Callers are responsible for not passing a distance past the target.
func (v Vec3) Towards(target Vec3, distance float64) Vec3 {
	delta := target.Sub(v)
	length := delta.Length()
	if length == 0 {
		return v
	}
	ratio := distance / length
	return Vec3{
		X: v.X + float64(delta.X*ratio),
		Y: v.Y + float64(delta.Y*ratio),
		Z: v.Z + float64(delta.Z*ratio),
	}
}

// Facing returns the yaw angle of a horizontal movement vector, measured from
// the +Z axis towards +X.
func Facing(dx, dz float64) float64 {
	return math.Atan2(dx, dz)
}

// Clamp limits value to the range [lo, hi].
func Clamp[T constraints.Ordered](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// ClampToRoom pulls a requested target inside the walkable part of the room
// and pins it to avatar height.
func ClampToRoom(p Vec3, cfg Config) Vec3 {
	half := cfg.RoomSize / 2
	lo := -half + cfg.TargetMargin
	hi := half - cfg.TargetMargin
	return Vec3{
		X: Clamp(p.X, lo, hi),
		Y: cfg.AvatarHeight,
		Z: Clamp(p.Z, lo, hi),
	}
}
