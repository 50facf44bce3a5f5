package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

const blacklistCols = `user_id, reason, created_at, expires_at`

type BlacklistRepo struct{ db *sql.DB }

func NewBlacklistRepo(db *sql.DB) *BlacklistRepo { return &BlacklistRepo{db: db} }

func scanBlacklist(row rowScanner) (domain.BlacklistEntry, error) {
	var b domain.BlacklistEntry
	err := row.Scan(&b.UserID, &b.Reason, &b.CreatedAt, &b.ExpiresAt)
	return b, err
}

// Upsert pisa motivo y expiración si el usuario ya estaba.
func (r *BlacklistRepo) Upsert(ctx context.Context, userID, reason string, expiresAt *time.Time) (domain.BlacklistEntry, error) {
	return scanBlacklist(r.db.QueryRowContext(ctx, `
INSERT INTO blacklist (user_id, reason, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET
  reason     = EXCLUDED.reason,
  expires_at = EXCLUDED.expires_at
RETURNING `+blacklistCols, userID, reason, expiresAt))
}

// Delete devuelve ErrNotFound si no había nada que borrar.
func (r *BlacklistRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blacklist WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BlacklistRepo) ListActive(ctx context.Context) ([]domain.BlacklistEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+blacklistCols+`
  FROM blacklist
 WHERE expires_at IS NULL OR expires_at > now()
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.BlacklistEntry
	for rows.Next() {
		b, err := scanBlacklist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
