package repo

import (
	"context"
	"fmt"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// AssetRepositoryPG implements domain.AssetRepository using PostgreSQL.
type AssetRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewAssetRepository constructs a new asset repository instance.
func NewAssetRepository(sql infra.SQLExecutor) *AssetRepositoryPG {
	return &AssetRepositoryPG{sql: sql}
}

// Create persists one asset.
func (r *AssetRepositoryPG) Create(ctx context.Context, asset *domain.Asset) error {
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now().UTC()
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertGenerationAsset,
		asset.ID,
		asset.GenerationID,
		asset.UserID,
		string(asset.Kind),
		asset.SourceRef,
		asset.ContentType,
		asset.Bytes,
		asset.Width,
		asset.Height,
		asset.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// ListByGeneration returns the assets of a generation in output order.
func (r *AssetRepositoryPG) ListByGeneration(ctx context.Context, generationID string) ([]domain.Asset, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListAssetsByGeneration, generationID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var (
			asset domain.Asset
			kind  string
		)
		if err := rows.Scan(&asset.ID, &asset.GenerationID, &asset.UserID, &kind, &asset.SourceRef, &asset.ContentType, &asset.Bytes, &asset.Width, &asset.Height, &asset.CreatedAt); err != nil {
			return nil, err
		}
		asset.Kind = domain.AssetKind(kind)
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}
