// Package terrain answers the spatial questions the grid asks while sampling:
// is a cell blocked, and which terrain layer lies under it.
package terrain

import (
	"fmt"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Rect is an axis-aligned rectangle on the ground plane. X maps to world X,
// Y to world Z.
type Rect struct {
	Min mgl32.Vec2
	Max mgl32.Vec2
}

// RectFromCentre builds the rectangle spanning centre +/- halfExtents.
func RectFromCentre(centre, halfExtents mgl32.Vec2) Rect {
	return Rect{Min: centre.Sub(halfExtents), Max: centre.Add(halfExtents)}
}

// Normalize swaps corners so that Min <= Max on both axes.
func (r Rect) Normalize() Rect {
	return Rect{
		Min: mgl32.Vec2{min(r.Min.X(), r.Max.X()), min(r.Min.Y(), r.Max.Y())},
		Max: mgl32.Vec2{max(r.Min.X(), r.Max.X()), max(r.Min.Y(), r.Max.Y())},
	}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p mgl32.Vec2) bool {
	return p.X() >= r.Min.X() && p.X() <= r.Max.X() &&
		p.Y() >= r.Min.Y() && p.Y() <= r.Max.Y()
}

// overlapsCircle reports whether a circle reaches strictly inside r. A circle
// that only touches an edge does not overlap.
func (r Rect) overlapsCircle(centre mgl32.Vec2, radius float32) bool {
	closest := mgl32.Vec2{
		min(max(centre.X(), r.Min.X()), r.Max.X()),
		min(max(centre.Y(), r.Min.Y()), r.Max.Y()),
	}
	return centre.Sub(closest).LenSqr() < radius*radius
}

// Obstacle is an unwalkable footprint.
type Obstacle struct {
	ID     uuid.UUID
	Bounds Rect
}

// Patch paints a terrain layer over an area.
type Patch struct {
	Layer  int
	Bounds Rect
}

// Scene is safe for concurrent use.
type Scene struct {
	mu        sync.RWMutex
	obstacles map[uuid.UUID]Obstacle
	patches   []Patch
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{obstacles: make(map[uuid.UUID]Obstacle)}
}

// AddObstacle stores o, replacing any obstacle with the same id. A nil id is
// replaced with a fresh one; the stored id is returned.
func (s *Scene) AddObstacle(o Obstacle) uuid.UUID {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.Bounds = o.Bounds.Normalize()

	s.mu.Lock()
	s.obstacles[o.ID] = o
	s.mu.Unlock()
	return o.ID
}

// RemoveObstacle deletes the obstacle and returns its footprint.
func (s *Scene) RemoveObstacle(id uuid.UUID) (Obstacle, bool) {
	s.mu.Lock()
	o, ok := s.obstacles[id]
	delete(s.obstacles, id)
	s.mu.Unlock()
	return o, ok
}

// Obstacle returns the obstacle with the given id.
func (s *Scene) Obstacle(id uuid.UUID) (Obstacle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.obstacles[id]
	return o, ok
}

// Obstacles returns every obstacle, ordered by id.
func (s *Scene) Obstacles() []Obstacle {
	s.mu.RLock()
	out := make([]Obstacle, 0, len(s.obstacles))
	for _, o := range s.obstacles {
		out = append(out, o)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Obstacle) int {
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

// AddPatch paints layer over bounds. Later patches win where they overlap.
func (s *Scene) AddPatch(p Patch) error {
	if p.Layer < 0 {
		return fmt.Errorf("terrain layer %d must not be negative", p.Layer)
	}
	p.Bounds = p.Bounds.Normalize()

	s.mu.Lock()
	s.patches = append(s.patches, p)
	s.mu.Unlock()
	return nil
}

// Obstructed reports whether a circle of radius around centre overlaps any obstacle.
func (s *Scene) Obstructed(centre mgl32.Vec3, radius float32) bool {
	p := mgl32.Vec2{centre.X(), centre.Z()}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.obstacles {
		if o.Bounds.overlapsCircle(p, radius) {
			return true
		}
	}
	return false
}

// TerrainAt returns the layer under point, from the most recently added patch
// that contains it.
func (s *Scene) TerrainAt(point mgl32.Vec3) (int, bool) {
	p := mgl32.Vec2{point.X(), point.Z()}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.patches) - 1; i >= 0; i-- {
		if s.patches[i].Bounds.Contains(p) {
			return s.patches[i].Layer, true
		}
	}
	return 0, false
}
