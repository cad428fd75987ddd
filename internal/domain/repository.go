package domain

import (
	"context"
	"time"
)

// GenerationRepository persists generation records.
type GenerationRepository interface {
	Create(ctx context.Context, gen *Generation) error
	Update(ctx context.Context, id string, patch GenerationPatch) error
	// UpdateInFlight applies patch only while the generation is not yet
	// terminal, refreshing updated_at. It reports whether a row changed; the
	// writer that moves a generation to a terminal state is the only one
	// that may persist its outputs.
	UpdateInFlight(ctx context.Context, id string, patch GenerationPatch) (bool, error)
	GetByID(ctx context.Context, id string) (*Generation, error)
	// ListInFlight returns non-terminal generations with a provider request
	// id that were last updated before olderThan.
	ListInFlight(ctx context.Context, olderThan time.Time, limit int) ([]Generation, error)
}

// AssetRepository handles persistence for generated assets.
type AssetRepository interface {
	Create(ctx context.Context, asset *Asset) error
	ListByGeneration(ctx context.Context, generationID string) ([]Asset, error)
}
