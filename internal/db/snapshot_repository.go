package db

import (
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/blake2b"

	"github.com/udisondev/timbernav/internal/nav/grid"
)

// ErrDigestMismatch is returned when a stored snapshot fails verification.
var ErrDigestMismatch = errors.New("grid snapshot digest mismatch")

// SnapshotRepository stores grid snapshots.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// StoredSnapshot is a snapshot row.
type StoredSnapshot struct {
	ID        int64
	Snapshot  grid.Snapshot
	CreatedAt time.Time
}

// Save writes s with its digest and returns the row id.
func (r *SnapshotRepository) Save(ctx context.Context, s grid.Snapshot) (int64, error) {
	walkable, penalties := encodeSnapshot(s)
	digest := snapshotDigest(s.SizeX, s.SizeY, walkable, penalties)

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO grid_snapshots (size_x, size_y, walkable, penalties, digest)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.SizeX, s.SizeY, walkable, penalties, digest[:],
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert grid snapshot: %w", err)
	}
	return id, nil
}

// LoadLatest returns the newest snapshot, or nil if none is stored.
func (r *SnapshotRepository) LoadLatest(ctx context.Context) (*StoredSnapshot, error) {
	var (
		row                         StoredSnapshot
		sizeX, sizeY                int
		walkable, penalties, digest []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, size_x, size_y, walkable, penalties, digest, created_at
		 FROM grid_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&row.ID, &sizeX, &sizeY, &walkable, &penalties, &digest, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest grid snapshot: %w", err)
	}

	want := snapshotDigest(sizeX, sizeY, walkable, penalties)
	if subtle.ConstantTimeCompare(want[:], digest) != 1 {
		return nil, fmt.Errorf("snapshot %d: %w", row.ID, ErrDigestMismatch)
	}

	snap, err := decodeSnapshot(sizeX, sizeY, walkable, penalties)
	if err != nil {
		return nil, fmt.Errorf("snapshot %d: %w", row.ID, err)
	}
	row.Snapshot = snap
	return &row, nil
}

// Prune keeps the newest keep snapshots and deletes the rest.
func (r *SnapshotRepository) Prune(ctx context.Context, keep int) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM grid_snapshots WHERE id NOT IN
		   (SELECT id FROM grid_snapshots ORDER BY id DESC LIMIT $1)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune grid snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// encodeSnapshot packs walkability as one byte per cell and penalties as
// big-endian int32, both in grid index order.
func encodeSnapshot(s grid.Snapshot) (walkable, penalties []byte) {
	walkable = make([]byte, len(s.Walkable))
	for i, w := range s.Walkable {
		if w {
			walkable[i] = 1
		}
	}
	penalties = make([]byte, 4*len(s.Penalties))
	for i, p := range s.Penalties {
		binary.BigEndian.PutUint32(penalties[4*i:], uint32(int32(p)))
	}
	return walkable, penalties
}

func decodeSnapshot(sizeX, sizeY int, walkable, penalties []byte) (grid.Snapshot, error) {
	cells := sizeX * sizeY
	if sizeX < 0 || sizeY < 0 || len(walkable) != cells || len(penalties) != 4*cells {
		return grid.Snapshot{}, fmt.Errorf("%dx%d snapshot with %d walkable and %d penalty bytes",
			sizeX, sizeY, len(walkable), len(penalties))
	}

	s := grid.Snapshot{
		SizeX:     sizeX,
		SizeY:     sizeY,
		Walkable:  make([]bool, cells),
		Penalties: make([]int, cells),
	}
	for i := range cells {
		s.Walkable[i] = walkable[i] != 0
		s.Penalties[i] = int(int32(binary.BigEndian.Uint32(penalties[4*i:])))
	}
	return s, nil
}

func snapshotDigest(sizeX, sizeY int, walkable, penalties []byte) [blake2b.Size256]byte {
	buf := make([]byte, 8, 8+len(walkable)+len(penalties))
	binary.BigEndian.PutUint32(buf[0:], uint32(sizeX))
	binary.BigEndian.PutUint32(buf[4:], uint32(sizeY))
	buf = append(buf, walkable...)
	buf = append(buf, penalties...)
	return blake2b.Sum256(buf)
}
