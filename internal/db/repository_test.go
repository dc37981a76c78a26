package db

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/timbernav/internal/config"
	"github.com/udisondev/timbernav/internal/nav/grid"
	"github.com/udisondev/timbernav/internal/terrain"
	"github.com/udisondev/timbernav/internal/village"
)

func sampleSnapshot() grid.Snapshot {
	return grid.Snapshot{
		SizeX:     2,
		SizeY:     3,
		Walkable:  []bool{true, false, true, true, true, false},
		Penalties: []int{0, 10, 3, 7, 0, 42},
	}
}

func TestSnapshotCodecRoundTrip(t *testing.T) {
	s := sampleSnapshot()
	walkable, penalties := encodeSnapshot(s)
	assert.Len(t, walkable, 6)
	assert.Len(t, penalties, 24)

	got, err := decodeSnapshot(s.SizeX, s.SizeY, walkable, penalties)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = decodeSnapshot(3, 3, walkable, penalties)
	assert.Error(t, err, "size mismatch")
}

func TestSnapshotDigestCoversDimensions(t *testing.T) {
	walkable, penalties := encodeSnapshot(sampleSnapshot())
	a := snapshotDigest(2, 3, walkable, penalties)
	b := snapshotDigest(3, 2, walkable, penalties)
	assert.NotEqual(t, a, b)

	penalties[0] ^= 1
	assert.NotEqual(t, a, snapshotDigest(2, 3, walkable, penalties))
}

func TestTerrainRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewTerrainRepository(pool)

	require.NoError(t, repo.Upsert(ctx, []config.TerrainLayer{
		{Layer: 2, Name: "grass", Penalty: 5},
		{Layer: 1, Name: "road", Penalty: 0},
	}))
	require.NoError(t, repo.Upsert(ctx, []config.TerrainLayer{{Layer: 2, Name: "tall grass", Penalty: 9}}))
	require.NoError(t, repo.Upsert(ctx, nil))

	layers, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []config.TerrainLayer{
		{Layer: 1, Name: "road", Penalty: 0},
		{Layer: 2, Name: "tall grass", Penalty: 9},
	}, layers)

	penalties, err := repo.LoadPenalties(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 0, 2: 9}, penalties)
}

func TestStructureRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewStructureRepository(pool)

	placed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := village.Structure{
		ID:       uuid.New(),
		Kind:     "house",
		Bounds:   terrain.Rect{Min: mgl32.Vec2{1, 2}, Max: mgl32.Vec2{5, 6}},
		PlacedAt: placed,
	}
	second := village.Structure{
		ID:       uuid.New(),
		Kind:     "barn",
		Bounds:   terrain.Rect{Min: mgl32.Vec2{-4, -4}, Max: mgl32.Vec2{-1.5, -0.5}},
		PlacedAt: placed.Add(time.Minute),
	}
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	first.Kind = "manor"
	require.NoError(t, repo.Save(ctx, first), "save replaces")

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, "manor", all[0].Kind)
	assert.Equal(t, first.Bounds, all[0].Bounds)
	assert.True(t, placed.Equal(all[0].PlacedAt))
	assert.Equal(t, second.Bounds, all[1].Bounds)

	require.NoError(t, repo.Delete(ctx, first.ID))
	require.NoError(t, repo.Delete(ctx, uuid.New()), "missing id is not an error")

	all, err = repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, second.ID, all[0].ID)
}

func TestSnapshotRepository(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewSnapshotRepository(pool)

	latest, err := repo.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	older := sampleSnapshot()
	_, err = repo.Save(ctx, older)
	require.NoError(t, err)

	newer := sampleSnapshot()
	newer.Penalties[0] = 99
	id, err := repo.Save(ctx, newer)
	require.NoError(t, err)

	latest, err = repo.LoadLatest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, id, latest.ID)
	assert.Equal(t, newer, latest.Snapshot)

	pruned, err := repo.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestSnapshotRepositoryDetectsTampering(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewSnapshotRepository(pool)

	id, err := repo.Save(ctx, sampleSnapshot())
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`UPDATE grid_snapshots SET walkable = $1 WHERE id = $2`,
		[]byte{0, 0, 0, 0, 0, 0}, id)
	require.NoError(t, err)

	_, err = repo.LoadLatest(ctx)
	assert.ErrorIs(t, err, ErrDigestMismatch)
}
