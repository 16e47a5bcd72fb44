package world

import (
	"container/heap"
	"crypto/sha256"
	"encoding/hex"
	"math"
)

type navNeighbor struct {
	col      int
	row      int
	cost     float64
	diagonal bool
}

// Expansion order is part of the determinism contract: peers that iterate
// neighbours differently can settle ties on different routes.
var navNeighborOffsets = [...]navNeighbor{
	{col: 0, row: -1, cost: 1, diagonal: false},
	{col: 1, row: 0, cost: 1, diagonal: false},
	{col: 0, row: 1, cost: 1, diagonal: false},
	{col: -1, row: 0, cost: 1, diagonal: false},
	{col: 1, row: -1, cost: math.Sqrt2, diagonal: true},
	{col: 1, row: 1, cost: math.Sqrt2, diagonal: true},
	{col: -1, row: 1, cost: math.Sqrt2, diagonal: true},
	{col: -1, row: -1, cost: math.Sqrt2, diagonal: true},
}

// Path is an ordered list of world-space waypoints. An empty path means no
// route exists.
type Path []Vec3

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	if len(p) == 0 {
		return nil
	}
	cloned := make(Path, len(p))
	copy(cloned, p)
	return cloned
}

// Equal reports whether both paths hold the same waypoints in the same order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Grid is the walkability field for one room. Columns run along X and rows
// along Z. A Grid is never modified after BuildGrid returns, so it can be
// shared by every search on a client.
type Grid struct {
	cols, rows   int
	walkable     []bool
	roomSize     float64
	avatarHeight float64
	diagonal     DiagonalPolicy
}

// BuildGrid rasterises the padded obstacle footprints and the boundary
// margin into a walkability grid. Cells are only ever cleared, so the order of
// obstacles does not affect the result.
func BuildGrid(obstacles []Obstacle, cfg Config) *Grid {
	cfg = cfg.Normalized()
	size := cfg.GridResolution
	grid := &Grid{
		cols:         size,
		rows:         size,
		walkable:     make([]bool, size*size),
		roomSize:     cfg.RoomSize,
		avatarHeight: cfg.AvatarHeight,
		diagonal:     cfg.Diagonal,
	}
	for i := range grid.walkable {
		grid.walkable[i] = true
	}

	for _, obs := range obstacles {
		minX, maxX, minZ, maxZ := obs.Footprint(cfg.ObstaclePadding)
		startCol := max(0, int(math.Floor(grid.toCellSpace(minX))))
		endCol := min(grid.cols, int(math.Ceil(grid.toCellSpace(maxX))))
		startRow := max(0, int(math.Floor(grid.toCellSpace(minZ))))
		endRow := min(grid.rows, int(math.Ceil(grid.toCellSpace(maxZ))))
		for row := startRow; row < endRow; row++ {
			for col := startCol; col < endCol; col++ {
				grid.walkable[grid.index(col, row)] = false
			}
		}
	}

	margin := cfg.BoundaryMargin
	for row := 0; row < grid.rows; row++ {
		for col := 0; col < grid.cols; col++ {
			if col < margin || col >= grid.cols-margin || row < margin || row >= grid.rows-margin {
				grid.walkable[grid.index(col, row)] = false
			}
		}
	}

	return grid
}

// toCellSpace maps a world coordinate to fractional cell units.
func (g *Grid) toCellSpace(w float64) float64 {
	return (w + g.roomSize/2) * float64(g.cols) / g.roomSize
}

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.cols }

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.rows }

// Diagonal returns the corner rule the grid was built with.
func (g *Grid) Diagonal() DiagonalPolicy { return g.diagonal }

func (g *Grid) inBounds(col, row int) bool {
	return g != nil && col >= 0 && row >= 0 && col < g.cols && row < g.rows
}

func (g *Grid) index(col, row int) int {
	return row*g.cols + col
}

// Walkable reports whether the cell may be entered. Out-of-range cells are
// never walkable.
func (g *Grid) Walkable(col, row int) bool {
	if !g.inBounds(col, row) {
		return false
	}
	return g.walkable[g.index(col, row)]
}

// CellOf returns the cell containing p, clamped to the grid.
func (g *Grid) CellOf(p Vec3) (col, row int) {
	col = Clamp(int(math.Floor(g.toCellSpace(p.X))), 0, g.cols-1)
	row = Clamp(int(math.Floor(g.toCellSpace(p.Z))), 0, g.rows-1)
	return col, row
}

// CellCenter returns the world position at the middle of a cell, at avatar
// height.
func (g *Grid) CellCenter(col, row int) Vec3 {
	cellSize := g.roomSize / float64(g.cols)
	half := g.roomSize / 2
	return Vec3{
		X: float64((float64(col)+0.5)*cellSize) - half,
		Y: g.avatarHeight,
		Z: float64((float64(row)+0.5)*cellSize) - half,
	}
}

// Equal reports whether two grids have the same dimensions and cells.
func (g *Grid) Equal(other *Grid) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.cols != other.cols || g.rows != other.rows || len(g.walkable) != len(other.walkable) {
		return false
	}
	for i := range g.walkable {
		if g.walkable[i] != other.walkable[i] {
			return false
		}
	}
	return true
}

// Digest returns a hex fingerprint of the bit field.
func (g *Grid) Digest() string {
	h := sha256.New()
	h.Write([]byte{byte(g.cols >> 8), byte(g.cols), byte(g.rows >> 8), byte(g.rows)})
	packed := make([]byte, (len(g.walkable)+7)/8)
	for i, ok := range g.walkable {
		if ok {
			packed[i/8] |= 1 << (uint(i) % 8)
		}
	}
	h.Write(packed)
	return hex.EncodeToString(h.Sum(nil))
}

// WalkableCount returns the number of open cells.
func (g *Grid) WalkableCount() int {
	count := 0
	for _, ok := range g.walkable {
		if ok {
			count++
		}
	}
	return count
}

func (g *Grid) canTraverseDiagonal(current navPoint, delta navNeighbor) bool {
	if !delta.diagonal {
		return true
	}
	horiz := g.Walkable(current.col+delta.col, current.row)
	vert := g.Walkable(current.col, current.row+delta.row)
	if g.diagonal == DiagonalLenient {
		return horiz || vert
	}
	return horiz && vert
}

type navPoint struct {
	col int
	row int
}

func (g *Grid) heuristic(a, b navPoint) float64 {
	dx := math.Abs(float64(a.col - b.col))
	dy := math.Abs(float64(a.row - b.row))
	if dx > dy {
		return dx + float64((math.Sqrt2-1)*dy)
	}
	return dy + float64((math.Sqrt2-1)*dx)
}

type pathNode struct {
	point  navPoint
	g      float64
	h      float64
	f      float64
	seq    uint64
	index  int
	parent *pathNode
}

type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

// Less orders by f, then h, then insertion order, so equal-cost frontiers
// always expand the same node first.
func (pq pathQueue) Less(i, j int) bool {
	a, b := pq[i], pq[j]
	if a.f != b.f {
		return a.f < b.f
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pathNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// astar keeps all search state local so concurrent searches over one grid
// never interfere.
func (g *Grid) astar(start, goal navPoint) ([]navPoint, bool) {
	open := &pathQueue{}
	heap.Init(open)
	var seq uint64
	h0 := g.heuristic(start, goal)
	heap.Push(open, &pathNode{point: start, g: 0, h: h0, f: h0, seq: seq})
	gScore := make([]float64, len(g.walkable))
	for i := range gScore {
		gScore[i] = math.Inf(1)
	}
	gScore[g.index(start.col, start.row)] = 0
	closed := make([]bool, len(g.walkable))

	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		currIdx := g.index(current.point.col, current.point.row)
		if closed[currIdx] {
			continue
		}
		closed[currIdx] = true
		if current.point == goal {
			return reconstructPath(current), true
		}

		for _, delta := range navNeighborOffsets {
			nc := current.point.col + delta.col
			nr := current.point.row + delta.row
			if !g.Walkable(nc, nr) {
				continue
			}
			if !g.canTraverseDiagonal(current.point, delta) {
				continue
			}
			idx := g.index(nc, nr)
			if closed[idx] {
				continue
			}
			tentativeG := current.g + delta.cost
			if tentativeG >= gScore[idx] {
				continue
			}
			gScore[idx] = tentativeG
			next := navPoint{col: nc, row: nr}
			h := g.heuristic(next, goal)
			seq++
			heap.Push(open, &pathNode{
				point:  next,
				g:      tentativeG,
				h:      h,
				f:      tentativeG + h,
				seq:    seq,
				parent: current,
			})
		}
	}
	return nil, false
}

func reconstructPath(end *pathNode) []navPoint {
	if end == nil {
		return nil
	}
	path := make([]navPoint, 0)
	for node := end; node != nil; node = node.parent {
		path = append(path, node.point)
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// FindPath searches from the cell containing start to the cell containing
// goal and returns the cell centres along the route, start cell included.
// A blocked or enclosed goal yields an empty path. The start cell is expanded
// even when it is blocked so an avatar pushed onto an edge cell can still
// walk out.
func FindPath(grid *Grid, start, goal Vec3) Path {
	if grid == nil || grid.cols == 0 || grid.rows == 0 {
		return nil
	}
	startCol, startRow := grid.CellOf(start)
	goalCol, goalRow := grid.CellOf(goal)
	if !grid.Walkable(goalCol, goalRow) {
		return nil
	}
	nodes, ok := grid.astar(navPoint{col: startCol, row: startRow}, navPoint{col: goalCol, row: goalRow})
	if !ok || len(nodes) == 0 {
		return nil
	}
	path := make(Path, 0, len(nodes))
	for _, node := range nodes {
		path = append(path, grid.CellCenter(node.col, node.row))
	}
	return path
}

// PathLength returns the travel distance from start through every waypoint.
func PathLength(start Vec3, path Path) float64 {
	total := 0.0
	prev := start
	for _, node := range path {
		total += prev.DistanceTo(node)
		prev = node
	}
	return total
}
