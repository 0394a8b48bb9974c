package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/ewm/internal/entity"
)

type locationRepository struct {
	db querier
}

func (r *locationRepository) Create(ctx context.Context, location *entity.Location) error {
	query := `INSERT INTO locations (lat, lon) VALUES ($1, $2) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, location.Lat, location.Lon).Scan(&location.ID); err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	return nil
}

func (r *locationRepository) GetByID(ctx context.Context, id int64) (*entity.Location, error) {
	var location entity.Location
	err := r.db.QueryRowContext(ctx, `SELECT id, lat, lon FROM locations WHERE id = $1`, id).
		Scan(&location.ID, &location.Lat, &location.Lon)
	if err == sql.ErrNoRows {
		return nil, entity.ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return &location, nil
}

func (r *locationRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM locations WHERE id = $1)`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check location: %w", err)
	}
	return exists, nil
}
