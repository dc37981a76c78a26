package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/timbernav/internal/config"
)

// TerrainRepository stores the terrain layer table.
type TerrainRepository struct {
	pool *pgxpool.Pool
}

// NewTerrainRepository creates a new terrain repository.
func NewTerrainRepository(pool *pgxpool.Pool) *TerrainRepository {
	return &TerrainRepository{pool: pool}
}

// Upsert writes every layer in one batch, overwriting names and penalties.
func (r *TerrainRepository) Upsert(ctx context.Context, layers []config.TerrainLayer) error {
	if len(layers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, l := range layers {
		batch.Queue(
			`INSERT INTO terrain_layers (layer_id, name, penalty) VALUES ($1, $2, $3)
			 ON CONFLICT (layer_id) DO UPDATE SET name = EXCLUDED.name, penalty = EXCLUDED.penalty`,
			l.Layer, l.Name, l.Penalty)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, l := range layers {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert terrain layer %d: %w", l.Layer, err)
		}
	}
	return nil
}

// LoadAll returns every layer ordered by id.
func (r *TerrainRepository) LoadAll(ctx context.Context) ([]config.TerrainLayer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT layer_id, name, penalty FROM terrain_layers ORDER BY layer_id`)
	if err != nil {
		return nil, fmt.Errorf("query terrain layers: %w", err)
	}
	defer rows.Close()

	var result []config.TerrainLayer
	for rows.Next() {
		var l config.TerrainLayer
		if err := rows.Scan(&l.Layer, &l.Name, &l.Penalty); err != nil {
			return nil, fmt.Errorf("scan terrain layer: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terrain layers: %w", err)
	}
	return result, nil
}

// LoadPenalties returns the layer -> penalty table.
func (r *TerrainRepository) LoadPenalties(ctx context.Context) (map[int]int, error) {
	layers, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int]int, len(layers))
	for _, l := range layers {
		out[l.Layer] = l.Penalty
	}
	return out, nil
}
