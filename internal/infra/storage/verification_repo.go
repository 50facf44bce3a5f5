package storage

import (
	"context"
	"database/sql"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

const verificationCols = `guild_id, enabled, role_id, channel_id, updated_at`

// VerificationRepo: la fila cuelga de guild_configs (FK), así que la guild tiene que existir antes.
type VerificationRepo struct{ db *sql.DB }

func NewVerificationRepo(db *sql.DB) *VerificationRepo { return &VerificationRepo{db: db} }

func scanVerification(row rowScanner) (domain.VerificationConfig, error) {
	var v domain.VerificationConfig
	err := row.Scan(&v.GuildID, &v.Enabled, &v.RoleID, &v.ChannelID, &v.UpdatedAt)
	return v, err
}

func (r *VerificationRepo) Get(ctx context.Context, guildID string) (domain.VerificationConfig, error) {
	v, err := scanVerification(r.db.QueryRowContext(ctx, `
SELECT `+verificationCols+`
  FROM verification_configs
 WHERE guild_id = $1
`, guildID))
	return v, notFound(err)
}

func (r *VerificationRepo) Insert(ctx context.Context, guildID string) (domain.VerificationConfig, error) {
	return scanVerification(r.db.QueryRowContext(ctx, `
INSERT INTO verification_configs (guild_id)
VALUES ($1)
ON CONFLICT (guild_id) DO UPDATE SET guild_id = EXCLUDED.guild_id
RETURNING `+verificationCols, guildID))
}

func (r *VerificationRepo) Update(ctx context.Context, guildID string, p domain.VerificationPatch) (domain.VerificationConfig, error) {
	var b setBuilder
	if p.Enabled != nil {
		b.add("enabled", *p.Enabled)
	}
	if p.RoleID != nil {
		b.add("role_id", nullIfEmpty(*p.RoleID))
	}
	if p.ChannelID != nil {
		b.add("channel_id", nullIfEmpty(*p.ChannelID))
	}
	if b.empty() {
		return r.Get(ctx, guildID)
	}
	q, args := b.build("verification_configs", "guild_id", guildID, verificationCols)
	v, err := scanVerification(r.db.QueryRowContext(ctx, q, args...))
	return v, notFound(err)
}

func (r *VerificationRepo) Delete(ctx context.Context, guildID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM verification_configs WHERE guild_id = $1`, guildID)
	return err
}

func (r *VerificationRepo) List(ctx context.Context) ([]domain.VerificationConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+verificationCols+` FROM verification_configs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.VerificationConfig
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
