package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository creates a generation repository backed by PostgreSQL.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// Create inserts a new generation record.
func (r *GenerationRepositoryPG) Create(ctx context.Context, gen *domain.Generation) error {
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = time.Now().UTC()
	}
	gen.UpdatedAt = gen.CreatedAt
	_, err := r.sql.Exec(ctx, sqlinline.QInsertGeneration,
		gen.ID,
		gen.UserID,
		gen.ModelID,
		string(gen.Kind),
		gen.RequestID,
		string(gen.Status),
		gen.Prompt,
		nullableJSON(gen.RequestJSON),
		nullableJSON(gen.ResultJSON),
		gen.ErrorCode,
		gen.ErrorMessage,
		gen.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert generation: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of patch.
func (r *GenerationRepositoryPG) Update(ctx context.Context, id string, patch domain.GenerationPatch) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateGeneration, patchArgs(id, patch)...)
	if err != nil {
		return fmt.Errorf("update generation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateInFlight applies patch only while the generation is in_queue or
// in_progress and reports whether it did. Every call refreshes updated_at.
func (r *GenerationRepositoryPG) UpdateInFlight(ctx context.Context, id string, patch domain.GenerationPatch) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateInFlightGeneration, patchArgs(id, patch)...)
	if err != nil {
		return false, fmt.Errorf("update in-flight generation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func patchArgs(id string, patch domain.GenerationPatch) []any {
	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}
	return []any{
		id,
		patch.RequestID,
		status,
		nullableJSON(patch.ResultJSON),
		patch.ErrorCode,
		patch.ErrorMessage,
	}
}

// GetByID fetches a generation by its identifier.
func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Generation, error) {
	gen, err := scanGeneration(r.sql.QueryRow(ctx, sqlinline.QSelectGenerationByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select generation: %w", err)
	}
	return gen, nil
}

// ListInFlight returns generations still waiting on the provider.
func (r *GenerationRepositoryPG) ListInFlight(ctx context.Context, olderThan time.Time, limit int) ([]domain.Generation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListInFlightGenerations, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list in-flight generations: %w", err)
	}
	defer rows.Close()

	var out []domain.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, *gen)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanGeneration(row pgx.Row) (*domain.Generation, error) {
	var (
		gen    domain.Generation
		kind   string
		status string
	)
	if err := row.Scan(
		&gen.ID,
		&gen.UserID,
		&gen.ModelID,
		&kind,
		&gen.RequestID,
		&status,
		&gen.Prompt,
		&gen.RequestJSON,
		&gen.ResultJSON,
		&gen.ErrorCode,
		&gen.ErrorMessage,
		&gen.CreatedAt,
		&gen.UpdatedAt,
	); err != nil {
		return nil, err
	}
	gen.Kind = domain.GenerationKind(kind)
	gen.Status = domain.JobStatus(status)
	return &gen, nil
}

// nullableJSON maps an empty payload to SQL NULL so coalesce keeps the
// stored value.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
