package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"territory-router/internal/database"
	"territory-router/internal/models"
)

type addressRepository struct {
	store *Store
}

func (r *addressRepository) ReplaceForCampaign(ctx context.Context, campaignID int64, addrs []models.AddressPoint) ([]models.AddressPoint, error) {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &database.ErrPersistFailed{Op: "address import", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM addresses WHERE campaign_id = ?`, campaignID); err != nil {
		return nil, &database.ErrPersistFailed{Op: "address import", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO addresses
		(campaign_id, lat, lon, house_number, street_name, formatted)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, &database.ErrPersistFailed{Op: "address import", Err: err}
	}
	defer stmt.Close()

	inserted := make([]models.AddressPoint, 0, len(addrs))
	for _, a := range addrs {
		result, err := stmt.ExecContext(ctx, campaignID, a.Lat, a.Lon, a.HouseNumber, a.StreetName, a.Formatted)
		if err != nil {
			return nil, &database.ErrPersistFailed{Op: "address import", Err: err}
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, &database.ErrPersistFailed{Op: "address import", Err: err}
		}
		a.ID = id
		a.CampaignID = campaignID
		inserted = append(inserted, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, &database.ErrPersistFailed{Op: "address import", Err: err}
	}

	return inserted, nil
}

func (r *addressRepository) ListByCampaign(ctx context.Context, campaignID int64) ([]models.AddressPoint, error) {
	query := `SELECT id, campaign_id, lat, lon,
	                 COALESCE(house_number, ''), COALESCE(street_name, ''), COALESCE(formatted, '')
	          FROM addresses WHERE campaign_id = ? ORDER BY id`

	rows, err := r.store.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	addrs := []models.AddressPoint{}
	for rows.Next() {
		var a models.AddressPoint
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.Lat, &a.Lon, &a.HouseNumber, &a.StreetName, &a.Formatted); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addrs = append(addrs, a)
	}

	return addrs, rows.Err()
}

// ApplyAssignments clears every assignment for the campaign and writes the
// new ones inside one transaction, so readers never observe a
// partially-cleared, partially-written state.
func (r *addressRepository) ApplyAssignments(ctx context.Context, campaignID int64, assignments []models.RouteAssignment) error {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return &database.ErrPersistFailed{Op: "assignment write", Err: err}
	}
	defer tx.Rollback()

	clear := `UPDATE addresses
	          SET cluster_id = NULL, sequence = NULL, walk_time_sec = NULL, distance_m = NULL
	          WHERE campaign_id = ?`
	if _, err := tx.ExecContext(ctx, clear, campaignID); err != nil {
		return &database.ErrPersistFailed{Op: "assignment clear", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE addresses
		SET cluster_id = ?, sequence = ?, walk_time_sec = ?, distance_m = ?
		WHERE id = ? AND campaign_id = ?`)
	if err != nil {
		return &database.ErrPersistFailed{Op: "assignment write", Err: err}
	}
	defer stmt.Close()

	for _, a := range assignments {
		result, err := stmt.ExecContext(ctx,
			nullableInt(a.ClusterID), nullableInt(a.Sequence),
			nullableFloat(a.WalkTimeSec), nullableFloat(a.DistanceM),
			a.AddressID, campaignID,
		)
		if err != nil {
			return &database.ErrPersistFailed{Op: "assignment write", Err: err}
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return &database.ErrPersistFailed{Op: "assignment write", Err: err}
		}
		if rows == 0 {
			return &database.ErrPersistFailed{
				Op:  "assignment write",
				Err: fmt.Errorf("address %d not found in campaign %d", a.AddressID, campaignID),
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &database.ErrPersistFailed{Op: "assignment commit", Err: err}
	}

	return nil
}

func (r *addressRepository) ListAssignments(ctx context.Context, campaignID int64) ([]models.RouteAssignment, error) {
	query := `SELECT id, cluster_id, sequence, walk_time_sec, distance_m
	          FROM addresses WHERE campaign_id = ? ORDER BY cluster_id, sequence, id`

	rows, err := r.store.db.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	assignments := []models.RouteAssignment{}
	for rows.Next() {
		var a models.RouteAssignment
		var clusterID, sequence sql.NullInt64
		var walkTime, distance sql.NullFloat64
		if err := rows.Scan(&a.AddressID, &clusterID, &sequence, &walkTime, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if clusterID.Valid {
			v := int(clusterID.Int64)
			a.ClusterID = &v
		}
		if sequence.Valid {
			v := int(sequence.Int64)
			a.Sequence = &v
		}
		if walkTime.Valid {
			v := walkTime.Float64
			a.WalkTimeSec = &v
		}
		if distance.Valid {
			v := distance.Float64
			a.DistanceM = &v
		}
		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
