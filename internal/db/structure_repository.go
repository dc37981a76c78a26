package db

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/timbernav/internal/terrain"
	"github.com/udisondev/timbernav/internal/village"
)

// StructureRepository implements village.Store backed by PostgreSQL.
type StructureRepository struct {
	pool *pgxpool.Pool
}

// Compile-time check.
var _ village.Store = (*StructureRepository)(nil)

// NewStructureRepository creates a new structure repository.
func NewStructureRepository(pool *pgxpool.Pool) *StructureRepository {
	return &StructureRepository{pool: pool}
}

// Save inserts or replaces a structure.
func (r *StructureRepository) Save(ctx context.Context, s village.Structure) error {
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO structures (id, kind, min_x, min_z, max_x, max_z, placed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   kind = EXCLUDED.kind,
		   min_x = EXCLUDED.min_x, min_z = EXCLUDED.min_z,
		   max_x = EXCLUDED.max_x, max_z = EXCLUDED.max_z,
		   placed_at = EXCLUDED.placed_at`,
		s.ID, s.Kind,
		s.Bounds.Min.X(), s.Bounds.Min.Y(), s.Bounds.Max.X(), s.Bounds.Max.Y(),
		s.PlacedAt); err != nil {
		return fmt.Errorf("save structure %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes a structure. Missing ids are not an error.
func (r *StructureRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM structures WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete structure %s: %w", id, err)
	}
	return nil
}

// LoadAll fetches every structure in placement order.
func (r *StructureRepository) LoadAll(ctx context.Context) ([]village.Structure, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, min_x, min_z, max_x, max_z, placed_at
		 FROM structures ORDER BY placed_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query structures: %w", err)
	}
	defer rows.Close()

	var result []village.Structure
	for rows.Next() {
		var (
			s                      village.Structure
			minX, minZ, maxX, maxZ float32
		)
		if err := rows.Scan(&s.ID, &s.Kind, &minX, &minZ, &maxX, &maxZ, &s.PlacedAt); err != nil {
			return nil, fmt.Errorf("scan structure row: %w", err)
		}
		s.Bounds = terrain.Rect{Min: mgl32.Vec2{minX, minZ}, Max: mgl32.Vec2{maxX, maxZ}}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate structure rows: %w", err)
	}
	return result, nil
}
