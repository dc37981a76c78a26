package pathfind

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/timbernav/internal/nav/grid"
)

// mapQuery blocks and paints cells of a 1-unit grid centred on the origin.
type mapQuery struct {
	half    float32
	blocked map[grid.Position]bool
	layers  map[grid.Position]int
}

func newMapQuery(size int) *mapQuery {
	return &mapQuery{
		half:    float32(size) / 2,
		blocked: make(map[grid.Position]bool),
		layers:  make(map[grid.Position]int),
	}
}

func (q *mapQuery) cell(p mgl32.Vec3) grid.Position {
	return grid.Position{
		X: int(math.Floor(float64(p.X() + q.half))),
		Y: int(math.Floor(float64(p.Z() + q.half))),
	}
}

func (q *mapQuery) Obstructed(centre mgl32.Vec3, _ float32) bool {
	return q.blocked[q.cell(centre)]
}

func (q *mapQuery) TerrainAt(p mgl32.Vec3) (int, bool) {
	layer, ok := q.layers[q.cell(p)]
	return layer, ok
}

func buildGrid(t *testing.T, size int, q *mapQuery) *grid.Grid {
	t.Helper()
	g, err := grid.New(grid.Config{
		WorldSize:                mgl32.Vec2{float32(size), float32(size)},
		NodeRadius:               0.5,
		ObstacleProximityPenalty: grid.DefaultObstacleProximityPenalty,
		TerrainPenalties:         map[int]int{1: 50},
	}, q)
	require.NoError(t, err)
	return g
}

// cellPoint returns the world centre of cell (x, y) on a size-wide grid.
func cellPoint(size, x, y int) mgl32.Vec3 {
	half := float32(size) / 2
	return mgl32.Vec3{float32(x) - half + 0.5, 0, float32(y) - half + 0.5}
}

// spyGraph counts neighbour expansions.
type spyGraph struct {
	*grid.Grid
	calls atomic.Int32
}

func (s *spyGraph) Neighbours(n *grid.Node) []*grid.Node {
	s.calls.Add(1)
	return s.Grid.Neighbours(n)
}

func octile(dx, dy int) int {
	dx, dy = abs(dx), abs(dy)
	return 10*abs(dx-dy) + 14*min(dx, dy)
}

func TestFindPathDiagonal(t *testing.T) {
	const size = 10
	p := New(buildGrid(t, size, newMapQuery(size)), DefaultCosts())

	res, err := p.FindPath(context.Background(), cellPoint(size, 0, 0), cellPoint(size, 9, 9))
	require.NoError(t, err)
	require.True(t, res.Found)

	assert.Equal(t, 126, res.Cost)
	require.Len(t, res.Waypoints, 1, "a straight diagonal collapses to its end point")
	assert.Equal(t, cellPoint(size, 9, 9), res.Waypoints[0])
}

func TestFindPathCostMatchesOctileDistance(t *testing.T) {
	const size = 12
	p := New(buildGrid(t, size, newMapQuery(size)), DefaultCosts())

	cases := []struct{ x1, y1, x2, y2 int }{
		{0, 0, 11, 0},
		{0, 0, 0, 7},
		{2, 3, 9, 5},
		{11, 11, 1, 4},
		{5, 0, 0, 11},
	}
	for _, tc := range cases {
		res, err := p.FindPath(context.Background(), cellPoint(size, tc.x1, tc.y1), cellPoint(size, tc.x2, tc.y2))
		require.NoError(t, err)
		require.True(t, res.Found, "%+v", tc)
		assert.Equal(t, octile(tc.x2-tc.x1, tc.y2-tc.y1), res.Cost, "%+v", tc)
		assert.Equal(t, cellPoint(size, tc.x2, tc.y2), res.Waypoints[len(res.Waypoints)-1])
	}
}

func TestFindPathStraightLineSingleWaypoint(t *testing.T) {
	const size = 10
	p := New(buildGrid(t, size, newMapQuery(size)), DefaultCosts())

	res, err := p.FindPath(context.Background(), cellPoint(size, 0, 4), cellPoint(size, 9, 4))
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, 90, res.Cost)
	assert.Equal(t, []mgl32.Vec3{cellPoint(size, 9, 4)}, res.Waypoints)
}

func TestFindPathWallForcesDetour(t *testing.T) {
	const size = 10
	q := newMapQuery(size)
	for y := 0; y < size-1; y++ {
		q.blocked[grid.Position{X: 5, Y: y}] = true
	}
	p := New(buildGrid(t, size, q), DefaultCosts())

	res, err := p.FindPath(context.Background(), cellPoint(size, 0, 0), cellPoint(size, 9, 0))
	require.NoError(t, err)
	require.True(t, res.Found)

	assert.Greater(t, res.Cost, octile(9, 0))
	assert.GreaterOrEqual(t, len(res.Waypoints), 2)
	for y := 0; y < size-1; y++ {
		assert.NotContains(t, res.Waypoints, cellPoint(size, 5, y), "no waypoint inside the wall")
	}
}

func TestFindPathFullyBlocked(t *testing.T) {
	const size = 8
	q := newMapQuery(size)
	for y := range size {
		q.blocked[grid.Position{X: 4, Y: y}] = true
	}
	p := New(buildGrid(t, size, q), DefaultCosts())

	res, err := p.FindPath(context.Background(), cellPoint(size, 0, 0), cellPoint(size, 7, 7))
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.Waypoints)
	assert.Equal(t, 4*size, res.Expanded, "every reachable cell closed")
}

func TestFindPathUnwalkableEndpointsSkipSearch(t *testing.T) {
	const size = 6
	q := newMapQuery(size)
	q.blocked[grid.Position{X: 0, Y: 0}] = true
	q.blocked[grid.Position{X: 5, Y: 5}] = true

	spy := &spyGraph{Grid: buildGrid(t, size, q)}
	p := New(spy, DefaultCosts())

	res, err := p.FindPath(context.Background(), cellPoint(size, 0, 0), cellPoint(size, 3, 3))
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.Waypoints)

	res, err = p.FindPath(context.Background(), cellPoint(size, 3, 3), cellPoint(size, 5, 5))
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.Waypoints)

	assert.Zero(t, spy.calls.Load())
}

func TestFindPathSameCell(t *testing.T) {
	const size = 6
	p := New(buildGrid(t, size, newMapQuery(size)), DefaultCosts())

	res, err := p.FindPath(context.Background(), cellPoint(size, 2, 2), cellPoint(size, 2, 2).Add(mgl32.Vec3{0.1, 0, 0.1}))
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.Waypoints)
}

func TestFindPathAvoidsPenalty(t *testing.T) {
	const size = 7
	q := newMapQuery(size)
	for y := 0; y < size-1; y++ {
		q.layers[grid.Position{X: 3, Y: y}] = 1 // penalty 50
	}
	p := New(buildGrid(t, size, q), DefaultCosts())

	res, err := p.FindPath(context.Background(), cellPoint(size, 0, 3), cellPoint(size, 6, 3))
	require.NoError(t, err)
	require.True(t, res.Found)

	assert.Equal(t, 84, res.Cost, "two diagonal runs through the only free cell")
	assert.Equal(t, []mgl32.Vec3{cellPoint(size, 3, 6), cellPoint(size, 6, 3)}, res.Waypoints)
}

func TestFindPathPenaltyAddedToCost(t *testing.T) {
	const size = 5
	q := newMapQuery(size)
	for y := range size {
		q.layers[grid.Position{X: 2, Y: y}] = 1
	}
	p := New(buildGrid(t, size, q), DefaultCosts())

	res, err := p.FindPath(context.Background(), cellPoint(size, 0, 2), cellPoint(size, 4, 2))
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, 40+50, res.Cost)
}

func TestFindPathCornerWaypoints(t *testing.T) {
	const size = 8
	q := newMapQuery(size)
	// An L-shaped corridor: row 0 then column 7.
	for x := range size {
		for y := range size {
			if y != 0 && x != 7 {
				q.blocked[grid.Position{X: x, Y: y}] = true
			}
		}
	}
	p := New(buildGrid(t, size, q), DefaultCosts())

	res, err := p.FindPath(context.Background(), cellPoint(size, 0, 0), cellPoint(size, 7, 7))
	require.NoError(t, err)
	require.True(t, res.Found)
	// Diagonal corner cutting is allowed, so the turn is taken one cell early.
	assert.Equal(t, 60+14+60, res.Cost)
	assert.Equal(t, []mgl32.Vec3{
		cellPoint(size, 6, 0),
		cellPoint(size, 7, 1),
		cellPoint(size, 7, 7),
	}, res.Waypoints)
}

func TestFindPathRepeatedSearchesReuseCells(t *testing.T) {
	const size = 10
	p := New(buildGrid(t, size, newMapQuery(size)), DefaultCosts())

	for range 3 {
		res, err := p.FindPath(context.Background(), cellPoint(size, 9, 0), cellPoint(size, 0, 9))
		require.NoError(t, err)
		require.True(t, res.Found)
		assert.Equal(t, 126, res.Cost)
	}
}

func TestFindPathCanceled(t *testing.T) {
	const size = 10
	p := New(buildGrid(t, size, newMapQuery(size)), DefaultCosts())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.FindPath(ctx, cellPoint(size, 0, 0), cellPoint(size, 9, 9))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Found)
	assert.Empty(t, res.Waypoints)

	res, err = p.FindPath(context.Background(), cellPoint(size, 0, 0), cellPoint(size, 9, 9))
	require.NoError(t, err)
	assert.True(t, res.Found, "a canceled search leaves the grid usable")
}

func TestDistance(t *testing.T) {
	const size = 10
	g := buildGrid(t, size, newMapQuery(size))
	p := New(g, Costs{})

	assert.Equal(t, 0, p.distance(g.Node(3, 3), g.Node(3, 3)))
	assert.Equal(t, 30, p.distance(g.Node(0, 0), g.Node(3, 0)))
	assert.Equal(t, 42, p.distance(g.Node(0, 0), g.Node(3, 3)))
	assert.Equal(t, 14*2+10*3, p.distance(g.Node(5, 1), g.Node(0, 3)))
}

func TestSimplifyPathStraightRun(t *testing.T) {
	const size = 10
	g := buildGrid(t, size, newMapQuery(size))

	start := g.Node(0, 0)
	path := make([]*grid.Node, 0, 9)
	for x := 1; x < size; x++ {
		path = append(path, g.Node(x, 0))
	}
	assert.Equal(t, []mgl32.Vec3{g.Node(9, 0).WorldPosition()}, simplifyPath(start, path))
	assert.Nil(t, simplifyPath(start, nil))
}
