package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jjenkins/bobbot/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const regulationColumns = `id, title, type, create_date, update_date, enforce_date,
	file_url, html_url, conversion_attempts, last_conversion_error`

// RegulationStore handles database operations for regulations
type RegulationStore struct {
	db *sqlx.DB
}

// NewRegulationStore creates a new RegulationStore
func NewRegulationStore(db *sqlx.DB) *RegulationStore {
	return &RegulationStore{db: db}
}

// Upsert synchronizes a scraped post with the row keyed by (title, type).
// A missing row is inserted. A row with an older create_date is replaced
// and its artifact is cleared so it gets converted again. Anything else is
// left untouched.
func (s *RegulationStore) Upsert(ctx context.Context, post *model.RegulationPost, now time.Time) (model.UpsertResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Unchanged, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	regType := nullString(post.Type)

	var existing struct {
		ID         int       `db:"id"`
		CreateDate time.Time `db:"create_date"`
	}
	err = tx.GetContext(ctx, &existing, `
		SELECT id, create_date FROM regulations
		WHERE title = $1 AND type IS NOT DISTINCT FROM $2
		FOR UPDATE
	`, post.Title, regType)

	result := model.Unchanged
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO regulations (title, type, create_date, update_date, enforce_date, file_url)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, post.Title, regType, post.CreateDate, now, nullTime(post.EnforceDate), nullString(post.FileURL))
		if err != nil {
			return model.Unchanged, fmt.Errorf("failed to insert regulation %q: %w", post.Title, err)
		}
		result = model.Inserted
	case err != nil:
		return model.Unchanged, fmt.Errorf("failed to look up regulation %q: %w", post.Title, err)
	case existing.CreateDate.Before(post.CreateDate):
		_, err = tx.ExecContext(ctx, `
			UPDATE regulations SET
				create_date = $2,
				update_date = $3,
				enforce_date = $4,
				file_url = $5,
				html_url = NULL,
				conversion_attempts = 0,
				last_conversion_error = NULL
			WHERE id = $1
		`, existing.ID, post.CreateDate, now, nullTime(post.EnforceDate), nullString(post.FileURL))
		if err != nil {
			return model.Unchanged, fmt.Errorf("failed to update regulation %d: %w", existing.ID, err)
		}
		result = model.Updated
	default:
		return model.Unchanged, nil
	}

	if err := tx.Commit(); err != nil {
		return model.Unchanged, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// GetByID retrieves a regulation by id
func (s *RegulationStore) GetByID(ctx context.Context, id int) (*model.Regulation, error) {
	var r model.Regulation
	err := s.db.GetContext(ctx, &r, `SELECT `+regulationColumns+` FROM regulations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get regulation %d: %w", id, err)
	}
	return &r, nil
}

// ListPendingConversion returns regulations with a source file and no
// artifact. Rows that already failed maxAttempts times are left out; a
// maxAttempts of zero disables the cap.
func (s *RegulationStore) ListPendingConversion(ctx context.Context, maxAttempts int) ([]model.Regulation, error) {
	query := `
		SELECT ` + regulationColumns + `
		FROM regulations
		WHERE html_url IS NULL
		  AND file_url IS NOT NULL AND file_url <> ''
		  AND ($1 = 0 OR conversion_attempts < $1)
		ORDER BY id
	`

	var regs []model.Regulation
	if err := s.db.SelectContext(ctx, &regs, query, maxAttempts); err != nil {
		return nil, fmt.Errorf("failed to list pending conversions: %w", err)
	}
	return regs, nil
}

// SetHTMLURL records a converted artifact and clears any failure state.
func (s *RegulationStore) SetHTMLURL(ctx context.Context, id int, htmlURL string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE regulations
		SET html_url = $2, update_date = $3, last_conversion_error = NULL
		WHERE id = $1
	`, id, htmlURL, now)
	if err != nil {
		return fmt.Errorf("failed to set html url for regulation %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

// RecordConversionFailure charges one attempt against a regulation.
func (s *RegulationStore) RecordConversionFailure(ctx context.Context, id int, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE regulations
		SET conversion_attempts = conversion_attempts + 1, last_conversion_error = $2
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("failed to record conversion failure for regulation %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

// SearchTitles returns regulations whose title contains any of words,
// newest first.
func (s *RegulationStore) SearchTitles(ctx context.Context, words []string, limit int) ([]model.Regulation, error) {
	patterns := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		patterns = append(patterns, "%"+escapeLike(w)+"%")
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + regulationColumns + `
		FROM regulations
		WHERE title LIKE ANY($1)
		ORDER BY create_date DESC, id
		LIMIT $2
	`

	var regs []model.Regulation
	if err := s.db.SelectContext(ctx, &regs, query, pq.Array(patterns), limit); err != nil {
		return nil, fmt.Errorf("failed to search regulations: %w", err)
	}
	return regs, nil
}

// List returns regulations ordered by type then title. An empty regType
// returns every type.
func (s *RegulationStore) List(ctx context.Context, regType string) ([]model.Regulation, error) {
	query := `
		SELECT ` + regulationColumns + `
		FROM regulations
		WHERE ($1 = '' OR type = $1)
		ORDER BY type NULLS LAST, title
	`

	var regs []model.Regulation
	if err := s.db.SelectContext(ctx, &regs, query, regType); err != nil {
		return nil, fmt.Errorf("failed to list regulations: %w", err)
	}
	return regs, nil
}

// Counts returns the number of regulations and how many lack an artifact.
func (s *RegulationStore) Counts(ctx context.Context) (total, pending int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE html_url IS NULL AND file_url IS NOT NULL)
		FROM regulations
	`).Scan(&total, &pending)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count regulations: %w", err)
	}
	return total, pending, nil
}

func expectOneRow(res sql.Result, id int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("regulation %d not found", id)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
