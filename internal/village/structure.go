package village

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/timbernav/internal/terrain"
)

var (
	// ErrUnknownStructure is returned when removing an id that was never placed.
	ErrUnknownStructure = errors.New("unknown structure")
	// ErrDuplicateStructure is returned when placing an id twice.
	ErrDuplicateStructure = errors.New("structure already placed")
)

// Structure is a building footprint that blocks movement.
type Structure struct {
	ID       uuid.UUID
	Kind     string
	Bounds   terrain.Rect
	PlacedAt time.Time
}

// Store persists placed structures.
type Store interface {
	Save(ctx context.Context, s Structure) error
	Delete(ctx context.Context, id uuid.UUID) error
	LoadAll(ctx context.Context) ([]Structure, error)
}
