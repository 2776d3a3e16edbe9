package store

import (
	"context"
	"fmt"

	"github.com/jjenkins/bobbot/internal/model"
	"github.com/jmoiron/sqlx"
)

const cafeteriaColumns = `id, location, address, phone,
	breakfast_start_time, breakfast_end_time,
	lunch_start_time, lunch_end_time,
	dinner_start_time, dinner_end_time`

// CafeteriaStore reads the seeded cafeteria table
type CafeteriaStore struct {
	db *sqlx.DB
}

// NewCafeteriaStore creates a new CafeteriaStore
func NewCafeteriaStore(db *sqlx.DB) *CafeteriaStore {
	return &CafeteriaStore{db: db}
}

// List returns all cafeterias ordered by id
func (s *CafeteriaStore) List(ctx context.Context) ([]model.Cafeteria, error) {
	var cs []model.Cafeteria
	if err := s.db.SelectContext(ctx, &cs, `SELECT `+cafeteriaColumns+` FROM cafeterias ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list cafeterias: %w", err)
	}
	return cs, nil
}
