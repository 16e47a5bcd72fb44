package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

const (
	defaultRoomSize         = 20.0
	defaultGridResolution   = 60
	defaultObstaclePadding  = 0.3
	defaultBoundaryMargin   = 2
	defaultMoveSpeed        = 4.0
	defaultArrivalThreshold = 0.15
	defaultAvatarHeight     = 0.5
	defaultTargetMargin     = 1.0
)

// DiagonalPolicy selects when a diagonal step may pass between two
// orthogonal neighbours.
type DiagonalPolicy string

const (
	// DiagonalStrict allows a diagonal only when both orthogonal neighbours
	// are walkable.
	DiagonalStrict DiagonalPolicy = "strict"
	// DiagonalLenient rejects a diagonal only when both orthogonal
	// neighbours are blocked.
	DiagonalLenient DiagonalPolicy = "lenient"
)

// Config holds the room constants. Every field except Spawn feeds the
// deterministic grid or the walker, so all clients in a room must agree on
// them; Digest summarises them for that comparison.
type Config struct {
	RoomSize         float64        `json:"roomSize" yaml:"room_size"`
	GridResolution   int            `json:"gridResolution" yaml:"grid_resolution"`
	ObstaclePadding  float64        `json:"obstaclePadding" yaml:"obstacle_padding"`
	BoundaryMargin   int            `json:"boundaryMargin" yaml:"boundary_margin"`
	MoveSpeed        float64        `json:"moveSpeed" yaml:"move_speed"`
	ArrivalThreshold float64        `json:"arrivalThreshold" yaml:"arrival_threshold"`
	AvatarHeight     float64        `json:"avatarHeight" yaml:"avatar_height"`
	TargetMargin     float64        `json:"targetMargin" yaml:"target_margin"`
	Diagonal         DiagonalPolicy `json:"diagonal" yaml:"diagonal"`
	Spawn            Vec3           `json:"spawn" yaml:"spawn"`
	Obstacles        []Obstacle     `json:"obstacles" yaml:"obstacles"`
}

// DefaultConfig returns the shared room layout.
func DefaultConfig() Config {
	return Config{
		RoomSize:         defaultRoomSize,
		GridResolution:   defaultGridResolution,
		ObstaclePadding:  defaultObstaclePadding,
		BoundaryMargin:   defaultBoundaryMargin,
		MoveSpeed:        defaultMoveSpeed,
		ArrivalThreshold: defaultArrivalThreshold,
		AvatarHeight:     defaultAvatarHeight,
		TargetMargin:     defaultTargetMargin,
		Diagonal:         DiagonalStrict,
		Spawn:            Vec3{X: 0, Y: defaultAvatarHeight, Z: 0},
		Obstacles:        DefaultObstacles(),
	}
}

// Normalized fills zero values with defaults. Obstacles are left alone: an
// empty list is a valid open room.
func (cfg Config) Normalized() Config {
	normalized := cfg
	if normalized.RoomSize <= 0 {
		normalized.RoomSize = defaultRoomSize
	}
	if normalized.GridResolution <= 0 {
		normalized.GridResolution = defaultGridResolution
	}
	if normalized.ObstaclePadding < 0 {
		normalized.ObstaclePadding = 0
	}
	if normalized.BoundaryMargin < 0 {
		normalized.BoundaryMargin = 0
	}
	if normalized.MoveSpeed <= 0 {
		normalized.MoveSpeed = defaultMoveSpeed
	}
	if normalized.ArrivalThreshold <= 0 {
		normalized.ArrivalThreshold = defaultArrivalThreshold
	}
	if normalized.TargetMargin < 0 {
		normalized.TargetMargin = 0
	}
	if normalized.Diagonal == "" {
		normalized.Diagonal = DiagonalStrict
	}
	normalized.Obstacles = CloneObstacles(cfg.Obstacles)
	return normalized
}

// Validate rejects layouts that cannot produce a usable grid.
func (cfg Config) Validate() error {
	var errs []error
	if cfg.RoomSize <= 0 {
		errs = append(errs, fmt.Errorf("room size must be positive, got %v", cfg.RoomSize))
	}
	if cfg.GridResolution <= 0 {
		errs = append(errs, fmt.Errorf("grid resolution must be positive, got %d", cfg.GridResolution))
	}
	if cfg.BoundaryMargin*2 >= cfg.GridResolution && cfg.GridResolution > 0 {
		errs = append(errs, fmt.Errorf("boundary margin %d leaves no walkable cells in a %d grid", cfg.BoundaryMargin, cfg.GridResolution))
	}
	if cfg.TargetMargin*2 >= cfg.RoomSize && cfg.RoomSize > 0 {
		errs = append(errs, fmt.Errorf("target margin %v leaves no room to move", cfg.TargetMargin))
	}
	switch cfg.Diagonal {
	case DiagonalStrict, DiagonalLenient, "":
	default:
		errs = append(errs, fmt.Errorf("unknown diagonal policy %q", cfg.Diagonal))
	}
	for i, obstacle := range cfg.Obstacles {
		if err := obstacle.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("obstacle %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Digest returns a short fingerprint of every value that influences grid
// construction, pathfinding or walking. Peers compare digests on join.
func (cfg Config) Digest() string {
	cfg = cfg.Normalized()
	h := sha256.New()
	var buf [8]byte
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		h.Write(buf[:])
	}
	writeFloat(cfg.RoomSize)
	writeInt(cfg.GridResolution)
	writeFloat(cfg.ObstaclePadding)
	writeInt(cfg.BoundaryMargin)
	writeFloat(cfg.MoveSpeed)
	writeFloat(cfg.ArrivalThreshold)
	writeFloat(cfg.AvatarHeight)
	writeFloat(cfg.TargetMargin)
	h.Write([]byte(cfg.Diagonal))
	writeInt(len(cfg.Obstacles))
	for _, obstacle := range cfg.Obstacles {
		h.Write([]byte(obstacle.Shape))
		writeFloat(obstacle.Center.X)
		writeFloat(obstacle.Center.Y)
		writeFloat(obstacle.Center.Z)
		writeFloat(obstacle.Size.X)
		writeFloat(obstacle.Size.Y)
		writeFloat(obstacle.Size.Z)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}
