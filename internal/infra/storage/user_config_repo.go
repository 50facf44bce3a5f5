package storage

import (
	"context"
	"database/sql"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

const userCols = `user_id, timezone, embed_color, dmed, updated_at`

type UserConfigRepo struct{ db *sql.DB }

func NewUserConfigRepo(db *sql.DB) *UserConfigRepo { return &UserConfigRepo{db: db} }

func scanUser(row rowScanner) (domain.UserConfig, error) {
	var u domain.UserConfig
	err := row.Scan(&u.UserID, &u.Timezone, &u.EmbedColor, &u.DMed, &u.UpdatedAt)
	return u, err
}

func (r *UserConfigRepo) Get(ctx context.Context, userID string) (domain.UserConfig, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `
SELECT `+userCols+`
  FROM user_configs
 WHERE user_id = $1
`, userID))
	return u, notFound(err)
}

func (r *UserConfigRepo) Insert(ctx context.Context, userID string) (domain.UserConfig, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
INSERT INTO user_configs (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING `+userCols, userID))
}

func (r *UserConfigRepo) Update(ctx context.Context, userID string, p domain.UserConfigPatch) (domain.UserConfig, error) {
	var b setBuilder
	if p.Timezone != nil {
		b.add("timezone", nullIfEmpty(*p.Timezone))
	}
	if p.EmbedColor != nil {
		if *p.EmbedColor < 0 {
			b.add("embed_color", nil)
		} else {
			b.add("embed_color", *p.EmbedColor)
		}
	}
	if p.DMed != nil {
		b.add("dmed", *p.DMed)
	}
	if b.empty() {
		return r.Get(ctx, userID)
	}
	q, args := b.build("user_configs", "user_id", userID, userCols)
	u, err := scanUser(r.db.QueryRowContext(ctx, q, args...))
	return u, notFound(err)
}

func (r *UserConfigRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_configs WHERE user_id = $1`, userID)
	return err
}

func (r *UserConfigRepo) List(ctx context.Context) ([]domain.UserConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userCols+` FROM user_configs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.UserConfig
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
