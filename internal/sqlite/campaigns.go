package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"territory-router/internal/database"
	"territory-router/internal/geometry"
	"territory-router/internal/models"
)

type campaignRepository struct {
	store *Store
}

func (r *campaignRepository) Create(ctx context.Context, c *models.Campaign) (*models.Campaign, error) {
	query := `INSERT INTO campaigns (name) VALUES (?)`

	result, err := r.store.db.ExecContext(ctx, query, c.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign id: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *campaignRepository) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	query := `SELECT id, name, created_at FROM campaigns WHERE id = ?`

	var c models.Campaign
	err := r.store.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return &c, nil
}

func (r *campaignRepository) GetBoundary(ctx context.Context, campaignID int64) (*models.TerritoryBoundary, error) {
	query := `SELECT boundary_raw, boundary_snapped, is_snapped FROM campaigns WHERE id = ?`

	var raw, snapped sql.NullString
	var isSnapped bool
	err := r.store.db.QueryRowContext(ctx, query, campaignID).Scan(&raw, &snapped, &isSnapped)
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get boundary: %w", err)
	}

	b := &models.TerritoryBoundary{
		CampaignID: campaignID,
		IsSnapped:  isSnapped,
	}
	if raw.Valid && raw.String != "" {
		poly, err := geometry.DecodePolygon([]byte(raw.String))
		if err != nil {
			return nil, fmt.Errorf("stored raw boundary is corrupt: %w", err)
		}
		b.RawPolygon = poly
	}
	if snapped.Valid && snapped.String != "" {
		poly, err := geometry.DecodePolygon([]byte(snapped.String))
		if err != nil {
			return nil, fmt.Errorf("stored snapped boundary is corrupt: %w", err)
		}
		b.SnappedPolygon = poly
	}

	return b, nil
}

func (r *campaignRepository) UpdateBoundary(ctx context.Context, b *models.TerritoryBoundary) error {
	rawJSON, err := geometry.EncodePolygon(b.RawPolygon)
	if err != nil {
		return err
	}

	var snappedJSON []byte
	if b.SnappedPolygon != nil {
		snappedJSON, err = geometry.EncodePolygon(b.SnappedPolygon)
		if err != nil {
			return err
		}
	}

	query := `UPDATE campaigns SET boundary_raw = ?, boundary_snapped = ?, is_snapped = ? WHERE id = ?`
	result, err := r.store.db.ExecContext(ctx, query, string(rawJSON), nullableString(snappedJSON), b.IsSnapped, b.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to update boundary: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check boundary update: %w", err)
	}
	if rows == 0 {
		return database.ErrNotFound
	}

	return nil
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
