// Package grid maintains the discretized walkability and movement cost field
// that the planner searches.
package grid

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrInvalidConfig is returned by New for unusable dimensions.
	ErrInvalidConfig = errors.New("invalid grid config")
	// ErrNegativeOrigin is returned by RecomputeRegion for an origin below zero.
	ErrNegativeOrigin = errors.New("region origin must not be negative")
)

// Sampling defaults.
const (
	DefaultObstacleProximityPenalty = 10
	DefaultBlurSize                 = 3
	DefaultRegionScale              = 2
)

// SpatialQuery answers the environment questions asked while sampling cells.
type SpatialQuery interface {
	// Obstructed reports whether anything unwalkable overlaps the sphere.
	Obstructed(centre mgl32.Vec3, radius float32) bool
	// TerrainAt returns the walkable terrain layer under point, if any.
	TerrainAt(point mgl32.Vec3) (layer int, ok bool)
}

// Position is an integer grid coordinate.
type Position struct {
	X, Y int
}

// Config describes the grid geometry and cost tuning.
type Config struct {
	// Centre is the world position of the grid's centre.
	Centre mgl32.Vec3
	// WorldSize is the covered extent on the X and Z axes.
	WorldSize  mgl32.Vec2
	NodeRadius float32

	ObstacleProximityPenalty int
	BlurSize                 int
	// RegionScale multiplies the size passed to RecomputeRegion. Callers pass
	// half extents, so the default of 2 covers a whole footprint.
	RegionScale int

	// TerrainPenalties maps terrain layer to movement penalty.
	TerrainPenalties map[int]int
}

// Grid owns every Node. Searches hold the read lock, recomputation the write lock.
// Node lookups do not lock; callers that may race a recompute wrap them in RLock.
type Grid struct {
	mu sync.RWMutex

	cfg       Config
	query     SpatialQuery
	penalties map[int]int

	nodes        []*Node // x-major: nodes[x*sizeY+y]
	nodeDiameter float32
	sizeX        int
	sizeY        int
	bottomLeft   mgl32.Vec3

	penaltyMin int
	penaltyMax int
}

// New sizes the grid from cfg, samples every cell through query and blurs the result.
func New(cfg Config, query SpatialQuery) (*Grid, error) {
	if cfg.WorldSize.X() <= 0 || cfg.WorldSize.Y() <= 0 {
		return nil, fmt.Errorf("world size %v: %w", cfg.WorldSize, ErrInvalidConfig)
	}
	if cfg.NodeRadius <= 0 {
		return nil, fmt.Errorf("node radius %v: %w", cfg.NodeRadius, ErrInvalidConfig)
	}
	if cfg.BlurSize < 0 {
		return nil, fmt.Errorf("blur size %d: %w", cfg.BlurSize, ErrInvalidConfig)
	}
	if query == nil {
		return nil, fmt.Errorf("nil spatial query: %w", ErrInvalidConfig)
	}
	if cfg.RegionScale < 1 {
		cfg.RegionScale = DefaultRegionScale
	}

	diameter := cfg.NodeRadius * 2
	sizeX := roundHalfEven(float64(cfg.WorldSize.X() / diameter))
	sizeY := roundHalfEven(float64(cfg.WorldSize.Y() / diameter))
	if sizeX < 1 || sizeY < 1 {
		return nil, fmt.Errorf("grid of %dx%d cells: %w", sizeX, sizeY, ErrInvalidConfig)
	}

	g := &Grid{
		cfg:          cfg,
		query:        query,
		penalties:    maps.Clone(cfg.TerrainPenalties),
		nodes:        make([]*Node, sizeX*sizeY),
		nodeDiameter: diameter,
		sizeX:        sizeX,
		sizeY:        sizeY,
		bottomLeft: cfg.Centre.
			Sub(mgl32.Vec3{cfg.WorldSize.X() / 2, 0, 0}).
			Sub(mgl32.Vec3{0, 0, cfg.WorldSize.Y() / 2}),
	}
	if g.penalties == nil {
		g.penalties = make(map[int]int)
	}

	g.mu.Lock()
	g.sampleRegion(0, 0, sizeX, sizeY)
	g.blurPenaltyMap()
	g.mu.Unlock()

	slog.Info("pathfinding grid built",
		"size_x", sizeX,
		"size_y", sizeY,
		"node_diameter", diameter,
		"penalty_min", g.penaltyMin,
		"penalty_max", g.penaltyMax)
	return g, nil
}

// SizeX returns the number of columns.
func (g *Grid) SizeX() int { return g.sizeX }

// SizeY returns the number of rows.
func (g *Grid) SizeY() int { return g.sizeY }

// MaxSize is the total cell count, the open set capacity a search needs.
func (g *Grid) MaxSize() int { return g.sizeX * g.sizeY }

// NodeDiameter returns the world width of one cell.
func (g *Grid) NodeDiameter() float32 { return g.nodeDiameter }

// RLock blocks recomputation until RUnlock. Searches hold it for their duration.
func (g *Grid) RLock() { g.mu.RLock() }

// RUnlock releases RLock.
func (g *Grid) RUnlock() { g.mu.RUnlock() }

// Recompute resamples and blurs the whole grid.
func (g *Grid) Recompute() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sampleRegion(0, 0, g.sizeX, g.sizeY)
	g.blurPenaltyMap()
}

// RecomputeRegion resamples cells from origin (inclusive) to origin+size*RegionScale,
// clipped to the grid, then re-blurs the entire penalty field.
func (g *Grid) RecomputeRegion(origin, size Position) error {
	if origin.X < 0 || origin.Y < 0 {
		return fmt.Errorf("recompute region at (%d,%d): %w", origin.X, origin.Y, ErrNegativeOrigin)
	}

	scale := g.cfg.RegionScale
	maxX := min(origin.X+size.X*scale, g.sizeX)
	maxY := min(origin.Y+size.Y*scale, g.sizeY)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.sampleRegion(origin.X, origin.Y, maxX, maxY)
	g.blurPenaltyMap()

	slog.Debug("grid region recomputed",
		"origin_x", origin.X,
		"origin_y", origin.Y,
		"max_x", maxX,
		"max_y", maxY)
	return nil
}

// SetTerrainPenalties swaps the layer penalty table. Takes effect on the next
// Recompute or RecomputeRegion.
func (g *Grid) SetTerrainPenalties(penalties map[int]int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.penalties = maps.Clone(penalties)
	if g.penalties == nil {
		g.penalties = make(map[int]int)
	}
}

// sampleRegion rebuilds the nodes in [minX,maxX) x [minY,maxY). Caller holds the write lock.
func (g *Grid) sampleRegion(minX, minY, maxX, maxY int) {
	radius := g.cfg.NodeRadius
	for x := minX; x < maxX; x++ {
		for y := minY; y < maxY; y++ {
			worldPoint := g.cellCentre(x, y)

			penalty := 0
			if layer, ok := g.query.TerrainAt(worldPoint); ok {
				penalty = g.penalties[layer]
			}

			walkable := !g.query.Obstructed(worldPoint, radius)
			if !walkable {
				penalty += g.cfg.ObstacleProximityPenalty
			}

			g.nodes[g.index(x, y)] = newNode(walkable, worldPoint, x, y, penalty)
		}
	}
}

func (g *Grid) cellCentre(x, y int) mgl32.Vec3 {
	return g.bottomLeft.Add(mgl32.Vec3{
		float32(x)*g.nodeDiameter + g.cfg.NodeRadius,
		0,
		float32(y)*g.nodeDiameter + g.cfg.NodeRadius,
	})
}

func (g *Grid) index(x, y int) int {
	return x*g.sizeY + y
}

// IsValidPosition reports whether (x, y) lies inside the grid.
func (g *Grid) IsValidPosition(x, y int) bool {
	return x >= 0 && x < g.sizeX && y >= 0 && y < g.sizeY
}

// Node returns the cell at (x, y), or nil when out of bounds.
func (g *Grid) Node(x, y int) *Node {
	if !g.IsValidPosition(x, y) {
		return nil
	}
	return g.nodes[g.index(x, y)]
}

// Neighbours returns the up to 8 in-bounds cells around n. Diagonal steps
// between two blocked orthogonal cells are not filtered out.
func (g *Grid) Neighbours(n *Node) []*Node {
	neighbours := make([]*Node, 0, 8)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			checkX := n.gridX + dx
			checkY := n.gridY + dy
			if !g.IsValidPosition(checkX, checkY) {
				continue
			}
			neighbours = append(neighbours, g.nodes[g.index(checkX, checkY)])
		}
	}
	return neighbours
}

// PositionFromWorldPoint maps a world point to the nearest grid coordinate.
// Points outside the covered area clamp to the border.
func (g *Grid) PositionFromWorldPoint(p mgl32.Vec3) Position {
	size := g.cfg.WorldSize
	percentX := clamp01((p.X() - g.cfg.Centre.X() + size.X()/2) / size.X())
	percentY := clamp01((p.Z() - g.cfg.Centre.Z() + size.Y()/2) / size.Y())

	return Position{
		X: roundHalfEven(float64(float32(g.sizeX-1) * percentX)),
		Y: roundHalfEven(float64(float32(g.sizeY-1) * percentY)),
	}
}

// NodeFromWorldPoint returns the cell under p. It never fails.
func (g *Grid) NodeFromWorldPoint(p mgl32.Vec3) *Node {
	pos := g.PositionFromWorldPoint(p)
	return g.nodes[g.index(pos.X, pos.Y)]
}

// CellRangeFromWorldRect returns the cells a ground-plane rectangle overlaps:
// origin is the cell holding min, size runs to the cell holding max inclusive.
// Both are clipped to the grid. X/Y of the vectors map to world X/Z.
func (g *Grid) CellRangeFromWorldRect(minPoint, maxPoint mgl32.Vec2) (origin, size Position) {
	d := float64(g.nodeDiameter)
	offX := float64(g.bottomLeft.X())
	offY := float64(g.bottomLeft.Z())

	x0 := clampInt(int(math.Floor((float64(minPoint.X())-offX)/d)), 0, g.sizeX)
	y0 := clampInt(int(math.Floor((float64(minPoint.Y())-offY)/d)), 0, g.sizeY)
	x1 := clampInt(int(math.Ceil((float64(maxPoint.X())-offX)/d)), 0, g.sizeX)
	y1 := clampInt(int(math.Ceil((float64(maxPoint.Y())-offY)/d)), 0, g.sizeY)

	return Position{X: x0, Y: y0}, Position{X: max(x1-x0, 0), Y: max(y1-y0, 0)}
}

// RegionScale is the multiplier RecomputeRegion applies to its size argument.
func (g *Grid) RegionScale() int { return g.cfg.RegionScale }

// PenaltyRange returns the smallest and largest blurred penalty.
func (g *Grid) PenaltyRange() (lo, hi int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.penaltyMin, g.penaltyMax
}

func clamp01(v float32) float32 {
	return min(max(v, 0), 1)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func roundHalfEven(v float64) int {
	return int(math.RoundToEven(v))
}
