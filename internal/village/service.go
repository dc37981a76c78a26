// Package village ties the navigation pieces together: structures placed in the
// scene update the grid, and path requests are routed through the queue.
package village

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/udisondev/timbernav/internal/nav/grid"
	"github.com/udisondev/timbernav/internal/nav/queue"
	"github.com/udisondev/timbernav/internal/terrain"
)

// Service is safe for concurrent use.
type Service struct {
	grid  *grid.Grid
	scene *terrain.Scene
	queue *queue.Queue
	store Store // nil disables persistence

	mu         sync.Mutex
	structures map[uuid.UUID]Structure
}

// NewService creates a service. The grid must sample scene for structures to
// have any effect. store may be nil.
func NewService(g *grid.Grid, scene *terrain.Scene, q *queue.Queue, store Store) *Service {
	return &Service{
		grid:       g,
		scene:      scene,
		queue:      q,
		store:      store,
		structures: make(map[uuid.UUID]Structure),
	}
}

// Grid returns the pathfinding grid.
func (s *Service) Grid() *grid.Grid { return s.grid }

// PlaceStructure blocks the footprint of st and recomputes the cells under it.
// A nil id is assigned; the placed structure is returned. When persisting
// fails the placement is rolled back.
func (s *Service) PlaceStructure(ctx context.Context, st Structure) (Structure, error) {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	if st.PlacedAt.IsZero() {
		st.PlacedAt = time.Now().UTC()
	}
	st.Bounds = st.Bounds.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.structures[st.ID]; ok {
		return Structure{}, fmt.Errorf("place structure %s: %w", st.ID, ErrDuplicateStructure)
	}

	s.scene.AddObstacle(terrain.Obstacle{ID: st.ID, Bounds: st.Bounds})
	if err := s.recomputeFootprint(st.Bounds); err != nil {
		s.scene.RemoveObstacle(st.ID)
		return Structure{}, fmt.Errorf("place structure %s: %w", st.ID, err)
	}

	if s.store != nil {
		if err := s.store.Save(ctx, st); err != nil {
			s.scene.RemoveObstacle(st.ID)
			if rerr := s.recomputeFootprint(st.Bounds); rerr != nil {
				slog.Error("rolling back structure placement", "id", st.ID, "err", rerr)
			}
			return Structure{}, fmt.Errorf("persisting structure %s: %w", st.ID, err)
		}
	}

	s.structures[st.ID] = st
	slog.Info("structure placed",
		"id", st.ID,
		"kind", st.Kind,
		"min", st.Bounds.Min,
		"max", st.Bounds.Max)
	return st, nil
}

// RemoveStructure clears a placed structure and recomputes the cells it covered.
func (s *Service) RemoveStructure(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.structures[id]
	if !ok {
		return fmt.Errorf("remove structure %s: %w", id, ErrUnknownStructure)
	}

	if s.store != nil {
		if err := s.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting structure %s: %w", id, err)
		}
	}

	delete(s.structures, id)
	s.scene.RemoveObstacle(id)
	if err := s.recomputeFootprint(st.Bounds); err != nil {
		return fmt.Errorf("remove structure %s: %w", id, err)
	}

	slog.Info("structure removed", "id", id, "kind", st.Kind)
	return nil
}

// Structures returns the placed structures in placement order.
func (s *Service) Structures() []Structure {
	s.mu.Lock()
	out := make([]Structure, 0, len(s.structures))
	for _, st := range s.structures {
		out = append(out, st)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b Structure) int {
		if c := a.PlacedAt.Compare(b.PlacedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out
}

// RestoreStructures loads every stored structure into the scene and rebuilds
// the whole grid once. It returns the number of structures restored.
func (s *Service) RestoreStructures(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}

	stored, err := s.store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading structures: %w", err)
	}

	s.mu.Lock()
	restored := 0
	for _, st := range stored {
		if _, ok := s.structures[st.ID]; ok {
			continue
		}
		st.Bounds = st.Bounds.Normalize()
		s.scene.AddObstacle(terrain.Obstacle{ID: st.ID, Bounds: st.Bounds})
		s.structures[st.ID] = st
		restored++
	}
	s.mu.Unlock()

	if restored > 0 {
		s.grid.Recompute()
	}
	slog.Info("structures restored", "count", restored)
	return restored, nil
}

// RequestPath queues a search. cb runs on the queue worker.
func (s *Service) RequestPath(start, goal mgl32.Vec3, cb queue.Callback) (uuid.UUID, error) {
	return s.queue.RequestPath(start, goal, cb)
}

// Snapshot copies the current grid fields.
func (s *Service) Snapshot() grid.Snapshot {
	return s.grid.Snapshot()
}

// ApplyTerrainPenalties swaps the terrain table and rebuilds the grid.
func (s *Service) ApplyTerrainPenalties(penalties map[int]int) {
	s.grid.SetTerrainPenalties(penalties)
	s.grid.Recompute()
}

// recomputeFootprint resamples every cell bounds overlaps. The region size is
// the footprint in cells divided by the grid's region scale, rounded up, so
// RecomputeRegion stretches it back over at least the whole footprint.
func (s *Service) recomputeFootprint(bounds terrain.Rect) error {
	origin, cells := s.grid.CellRangeFromWorldRect(bounds.Min, bounds.Max)
	if cells.X == 0 || cells.Y == 0 {
		return nil
	}

	scale := s.grid.RegionScale()
	size := grid.Position{
		X: (cells.X + scale - 1) / scale,
		Y: (cells.Y + scale - 1) / scale,
	}
	return s.grid.RecomputeRegion(origin, size)
}
