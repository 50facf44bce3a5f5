package storage

import (
	"context"
	"database/sql"
	"fmt"

	pq "github.com/lib/pq"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

const highlightCols = `user_id, triggers::text, blocked::text`

type HighlightRepo struct{ db *sql.DB }

func NewHighlightRepo(db *sql.DB) *HighlightRepo { return &HighlightRepo{db: db} }

func scanHighlight(row rowScanner) (domain.HighlightConfig, error) {
	var h domain.HighlightConfig
	err := row.Scan(&h.UserID, (*pq.StringArray)(&h.Triggers), (*pq.StringArray)(&h.Blocked))
	return h, err
}

func (r *HighlightRepo) Insert(ctx context.Context, userID string) (domain.HighlightConfig, error) {
	return scanHighlight(r.db.QueryRowContext(ctx, `
INSERT INTO highlights (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING `+highlightCols, userID))
}

func highlightColumn(f domain.HighlightSetField) (string, error) {
	switch f {
	case domain.FieldTriggers, domain.FieldBlocked:
		return string(f), nil
	}
	return "", fmt.Errorf("unknown highlight set field %q", f)
}

func (r *HighlightRepo) AddToSet(ctx context.Context, userID string, f domain.HighlightSetField, value string) (domain.HighlightConfig, error) {
	col, err := highlightColumn(f)
	if err != nil {
		return domain.HighlightConfig{}, err
	}
	h, err := scanHighlight(r.db.QueryRowContext(ctx, `
UPDATE highlights
   SET `+col+` = CASE WHEN $2::text = ANY(`+col+`) THEN `+col+` ELSE array_append(`+col+`, $2::text) END,
       updated_at = now()
 WHERE user_id = $1
RETURNING `+highlightCols, userID, value))
	return h, notFound(err)
}

func (r *HighlightRepo) RemoveFromSet(ctx context.Context, userID string, f domain.HighlightSetField, value string) (domain.HighlightConfig, error) {
	col, err := highlightColumn(f)
	if err != nil {
		return domain.HighlightConfig{}, err
	}
	h, err := scanHighlight(r.db.QueryRowContext(ctx, `
UPDATE highlights
   SET `+col+` = array_remove(`+col+`, $2::text),
       updated_at = now()
 WHERE user_id = $1
RETURNING `+highlightCols, userID, value))
	return h, notFound(err)
}

func (r *HighlightRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM highlights WHERE user_id = $1`, userID)
	return err
}

// List devuelve sólo los usuarios con al menos un trigger (los que sirven para matchear).
func (r *HighlightRepo) List(ctx context.Context) ([]domain.HighlightConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+highlightCols+`
  FROM highlights
 WHERE cardinality(triggers) > 0
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.HighlightConfig
	for rows.Next() {
		h, err := scanHighlight(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
