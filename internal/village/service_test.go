package village

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/timbernav/internal/nav/grid"
	"github.com/udisondev/timbernav/internal/nav/pathfind"
	"github.com/udisondev/timbernav/internal/nav/queue"
	"github.com/udisondev/timbernav/internal/terrain"
)

type memStore struct {
	mu       sync.Mutex
	saved    map[uuid.UUID]Structure
	failSave bool
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[uuid.UUID]Structure)}
}

func (m *memStore) Save(_ context.Context, s Structure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	m.saved[s.ID] = s
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, id)
	return nil
}

func (m *memStore) LoadAll(context.Context) ([]Structure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Structure, 0, len(m.saved))
	for _, s := range m.saved {
		out = append(out, s)
	}
	return out, nil
}

// house covers cells 2..5 on both axes of a 10x10 grid centred on the origin.
func house() Structure {
	return Structure{
		Kind:   "house",
		Bounds: terrain.Rect{Min: mgl32.Vec2{-3, -3}, Max: mgl32.Vec2{1, 1}},
	}
}

func newTestService(t *testing.T, store Store) (*Service, *queue.Queue) {
	t.Helper()
	scene := terrain.NewScene()
	g, err := grid.New(grid.Config{
		WorldSize:                mgl32.Vec2{10, 10},
		NodeRadius:               0.5,
		ObstacleProximityPenalty: grid.DefaultObstacleProximityPenalty,
		RegionScale:              grid.DefaultRegionScale,
	}, scene)
	require.NoError(t, err)

	q := queue.New(pathfind.New(g, pathfind.DefaultCosts()))
	return NewService(g, scene, q, store), q
}

func walkable(svc *Service, x, y int) bool {
	return svc.Grid().Node(x, y).Walkable()
}

func TestPlaceStructureBlocksFootprint(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)

	st, err := svc.PlaceStructure(context.Background(), house())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, st.ID)
	assert.False(t, st.PlacedAt.IsZero())

	for x := range 10 {
		for y := range 10 {
			inside := x >= 2 && x <= 5 && y >= 2 && y <= 5
			assert.Equal(t, !inside, walkable(svc, x, y), "cell (%d,%d)", x, y)
		}
	}

	assert.Contains(t, store.saved, st.ID)
	assert.Len(t, svc.Structures(), 1)
}

func TestFootprintUpdateMatchesFullRebuild(t *testing.T) {
	tests := []struct {
		name   string
		bounds terrain.Rect
	}{
		{"on cell edges", terrain.Rect{Min: mgl32.Vec2{10, 10}, Max: mgl32.Vec2{14, 14}}},
		{"mid cell", terrain.Rect{Min: mgl32.Vec2{10.3, 10.3}, Max: mgl32.Vec2{13.6, 13.6}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := grid.Config{
				WorldSize:                mgl32.Vec2{100, 100},
				NodeRadius:               0.5,
				ObstacleProximityPenalty: grid.DefaultObstacleProximityPenalty,
				BlurSize:                 grid.DefaultBlurSize,
				RegionScale:              grid.DefaultRegionScale,
			}
			scene := terrain.NewScene()
			g, err := grid.New(cfg, scene)
			require.NoError(t, err)
			svc := NewService(g, scene, queue.New(pathfind.New(g, pathfind.DefaultCosts())), nil)

			rebuilt := func() grid.Snapshot {
				t.Helper()
				full, err := grid.New(cfg, scene)
				require.NoError(t, err)
				return full.Snapshot()
			}

			st, err := svc.PlaceStructure(context.Background(), Structure{Kind: "barn", Bounds: tt.bounds})
			require.NoError(t, err)

			for x := 58; x <= 65; x++ {
				for y := 58; y <= 65; y++ {
					inside := x >= 60 && x <= 63 && y >= 60 && y <= 63
					assert.Equal(t, !inside, walkable(svc, x, y), "cell (%d,%d)", x, y)
				}
			}
			assert.Equal(t, rebuilt(), svc.Grid().Snapshot(), "after place")

			require.NoError(t, svc.RemoveStructure(context.Background(), st.ID))
			for x := 60; x <= 63; x++ {
				assert.True(t, walkable(svc, x, x), "cell (%d,%d)", x, x)
			}
			assert.Equal(t, rebuilt(), svc.Grid().Snapshot(), "after remove")
		})
	}
}

func TestPlaceStructureDuplicate(t *testing.T) {
	svc, _ := newTestService(t, nil)
	st, err := svc.PlaceStructure(context.Background(), house())
	require.NoError(t, err)

	_, err = svc.PlaceStructure(context.Background(), st)
	assert.ErrorIs(t, err, ErrDuplicateStructure)
}

func TestPlaceStructureRollsBackWhenStoreFails(t *testing.T) {
	store := newMemStore()
	store.failSave = true
	svc, _ := newTestService(t, store)

	_, err := svc.PlaceStructure(context.Background(), house())
	require.Error(t, err)

	assert.True(t, walkable(svc, 3, 3))
	assert.Empty(t, svc.Structures())
}

func TestRemoveStructureReopensCells(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(t, store)

	st, err := svc.PlaceStructure(context.Background(), house())
	require.NoError(t, err)
	require.False(t, walkable(svc, 3, 3))

	require.NoError(t, svc.RemoveStructure(context.Background(), st.ID))
	assert.True(t, walkable(svc, 3, 3))
	assert.NotContains(t, store.saved, st.ID)

	err = svc.RemoveStructure(context.Background(), st.ID)
	assert.ErrorIs(t, err, ErrUnknownStructure)
}

func TestRestoreStructures(t *testing.T) {
	store := newMemStore()
	st := house()
	st.ID = uuid.New()
	store.saved[st.ID] = st

	svc, _ := newTestService(t, store)
	require.True(t, walkable(svc, 3, 3))

	n, err := svc.RestoreStructures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, walkable(svc, 3, 3))

	n, err = svc.RestoreStructures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "already placed structures are skipped")

	noStore, _ := newTestService(t, nil)
	n, err = noStore.RestoreStructures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRequestPathAroundStructure(t *testing.T) {
	svc, q := newTestService(t, nil)
	_, err := svc.PlaceStructure(context.Background(), house())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx) }()

	type answer struct {
		waypoints []mgl32.Vec3
		success   bool
	}
	done := make(chan answer, 1)
	start := mgl32.Vec3{-4.5, 0, -0.5}
	goal := mgl32.Vec3{4.5, 0, -0.5}
	_, err = svc.RequestPath(start, goal, func(wps []mgl32.Vec3, ok bool) {
		done <- answer{wps, ok}
	})
	require.NoError(t, err)

	select {
	case a := <-done:
		require.True(t, a.success)
		assert.Equal(t, goal, a.waypoints[len(a.waypoints)-1])
		for _, wp := range a.waypoints {
			pos := svc.Grid().PositionFromWorldPoint(wp)
			assert.True(t, walkable(svc, pos.X, pos.Y), "waypoint %v is blocked", wp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("path request timed out")
	}
}

func TestApplyTerrainPenalties(t *testing.T) {
	scene := terrain.NewScene()
	require.NoError(t, scene.AddPatch(terrain.Patch{
		Layer:  4,
		Bounds: terrain.Rect{Min: mgl32.Vec2{-5, -5}, Max: mgl32.Vec2{5, 5}},
	}))
	g, err := grid.New(grid.Config{WorldSize: mgl32.Vec2{4, 4}, NodeRadius: 0.5}, scene)
	require.NoError(t, err)
	svc := NewService(g, scene, queue.New(pathfind.New(g, pathfind.DefaultCosts())), nil)

	assert.Equal(t, 0, svc.Snapshot().Penalties[0])
	svc.ApplyTerrainPenalties(map[int]int{4: 25})
	assert.Equal(t, 25, svc.Snapshot().Penalties[0])
}
