package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jjenkins/bobbot/internal/model"
	"github.com/jmoiron/sqlx"
)

// DietStore handles database operations for weekly menus
type DietStore struct {
	db *sqlx.DB
}

// NewDietStore creates a new DietStore
func NewDietStore(db *sqlx.DB) *DietStore {
	return &DietStore{db: db}
}

// Upsert inserts a menu or replaces the one already stored for the same
// cafeteria and week.
func (s *DietStore) Upsert(ctx context.Context, d *model.Diet) error {
	query := `
		INSERT INTO diets (post_title, post_create_date, start_date, cafeteria_id, img_url, img_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (cafeteria_id, start_date) DO UPDATE SET
			post_title = EXCLUDED.post_title,
			post_create_date = EXCLUDED.post_create_date,
			img_url = EXCLUDED.img_url,
			img_path = EXCLUDED.img_path
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		d.PostTitle,
		d.PostCreateDate,
		d.StartDate,
		d.CafeteriaID,
		d.ImgURL,
		d.ImgPath,
	).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert diet for cafeteria %d: %w", d.CafeteriaID, err)
	}

	return nil
}

// ForWeeks returns the menus of a cafeteria starting on either Monday,
// earliest first.
func (s *DietStore) ForWeeks(ctx context.Context, cafeteriaID int, thisWeek, nextWeek time.Time) ([]model.Diet, error) {
	query := `
		SELECT id, post_title, post_create_date, start_date, cafeteria_id, img_url, img_path
		FROM diets
		WHERE cafeteria_id = $1 AND start_date IN ($2, $3)
		ORDER BY start_date
	`

	var diets []model.Diet
	if err := s.db.SelectContext(ctx, &diets, query, cafeteriaID, thisWeek, nextWeek); err != nil {
		return nil, fmt.Errorf("failed to get diets for cafeteria %d: %w", cafeteriaID, err)
	}
	return diets, nil
}
