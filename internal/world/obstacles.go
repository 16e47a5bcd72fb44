package world

import "fmt"

// Shape tags the primitive an obstacle is rendered as. Navigation treats every
// shape as its axis-aligned bounding box.
type Shape string

const (
	ShapeBox      Shape = "box"
	ShapeSphere   Shape = "sphere"
	ShapeCylinder Shape = "cylinder"
)

// Obstacle is a static room obstacle. Size holds the full extents
// (width, height, depth) centred on Center.
type Obstacle struct {
	Shape  Shape  `json:"shape" yaml:"shape"`
	Center Vec3   `json:"center" yaml:"center"`
	Size   Vec3   `json:"size" yaml:"size"`
	Color  string `json:"color,omitempty" yaml:"color,omitempty"`
}

// Validate reports obstacles that cannot be rasterised.
func (o Obstacle) Validate() error {
	switch o.Shape {
	case ShapeBox, ShapeSphere, ShapeCylinder:
	default:
		return fmt.Errorf("unknown obstacle shape %q", o.Shape)
	}
	if o.Size.X <= 0 || o.Size.Y <= 0 || o.Size.Z <= 0 {
		return fmt.Errorf("obstacle %s at %+v has non-positive size %+v", o.Shape, o.Center, o.Size)
	}
	return nil
}

// Footprint returns the XZ extents of the obstacle grown by padding on every
// axis (padding/2 on each side).
func (o Obstacle) Footprint(padding float64) (minX, maxX, minZ, maxZ float64) {
	halfW := (o.Size.X + padding) / 2
	halfD := (o.Size.Z + padding) / 2
	return o.Center.X - halfW, o.Center.X + halfW, o.Center.Z - halfD, o.Center.Z + halfD
}

// Contains reports whether p lies inside the padded footprint.
func (o Obstacle) Contains(p Vec3, padding float64) bool {
	minX, maxX, minZ, maxZ := o.Footprint(padding)
	return p.X >= minX && p.X <= maxX && p.Z >= minZ && p.Z <= maxZ
}

// DefaultObstacles returns the shared room layout. Every client must use the
// same list, so the slice is rebuilt on each call and never shared.
func DefaultObstacles() []Obstacle {
	return []Obstacle{
		{Shape: ShapeBox, Center: Vec3{X: 5, Y: 1, Z: 5}, Size: Vec3{X: 2, Y: 2, Z: 2}, Color: "#ff6b6b"},
		{Shape: ShapeBox, Center: Vec3{X: -5, Y: 0.5, Z: -5}, Size: Vec3{X: 3, Y: 1, Z: 1}, Color: "#4ecdc4"},
		{Shape: ShapeBox, Center: Vec3{X: 0, Y: 1.5, Z: 8}, Size: Vec3{X: 1, Y: 3, Z: 1}, Color: "#45b7d1"},
		{Shape: ShapeBox, Center: Vec3{X: 8, Y: 1, Z: 0}, Size: Vec3{X: 2, Y: 2, Z: 2}, Color: "#f9ca24"},
		{Shape: ShapeCylinder, Center: Vec3{X: -8, Y: 1, Z: 5}, Size: Vec3{X: 1.5, Y: 2, Z: 1.5}, Color: "#6c5ce7"},
		{Shape: ShapeSphere, Center: Vec3{X: 6, Y: 1, Z: -6}, Size: Vec3{X: 2, Y: 2, Z: 2}, Color: "#fd79a8"},
		{Shape: ShapeBox, Center: Vec3{X: -2, Y: 0.5, Z: 2}, Size: Vec3{X: 1.5, Y: 1, Z: 1.5}, Color: "#00b894"},
	}
}

// CloneObstacles copies an obstacle list so callers cannot alias the config.
func CloneObstacles(obstacles []Obstacle) []Obstacle {
	if len(obstacles) == 0 {
		return nil
	}
	cloned := make([]Obstacle, len(obstacles))
	copy(cloned, obstacles)
	return cloned
}
