package storage

import (
	"context"
	"database/sql"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

const loggingCols = `guild_id, enabled, channel_id, member_events, message_events, mod_events, updated_at`

type LoggingRepo struct{ db *sql.DB }

func NewLoggingRepo(db *sql.DB) *LoggingRepo { return &LoggingRepo{db: db} }

func scanLogging(row rowScanner) (domain.LoggingConfig, error) {
	var l domain.LoggingConfig
	err := row.Scan(&l.GuildID, &l.Enabled, &l.ChannelID, &l.MemberEvents, &l.MessageEvents, &l.ModEvents, &l.UpdatedAt)
	return l, err
}

func (r *LoggingRepo) Get(ctx context.Context, guildID string) (domain.LoggingConfig, error) {
	l, err := scanLogging(r.db.QueryRowContext(ctx, `
SELECT `+loggingCols+`
  FROM logging_configs
 WHERE guild_id = $1
`, guildID))
	return l, notFound(err)
}

func (r *LoggingRepo) Insert(ctx context.Context, guildID string) (domain.LoggingConfig, error) {
	return scanLogging(r.db.QueryRowContext(ctx, `
INSERT INTO logging_configs (guild_id)
VALUES ($1)
ON CONFLICT (guild_id) DO UPDATE SET guild_id = EXCLUDED.guild_id
RETURNING `+loggingCols, guildID))
}

func (r *LoggingRepo) Update(ctx context.Context, guildID string, p domain.LoggingPatch) (domain.LoggingConfig, error) {
	var b setBuilder
	if p.Enabled != nil {
		b.add("enabled", *p.Enabled)
	}
	if p.ChannelID != nil {
		b.add("channel_id", nullIfEmpty(*p.ChannelID))
	}
	if p.MemberEvents != nil {
		b.add("member_events", *p.MemberEvents)
	}
	if p.MessageEvents != nil {
		b.add("message_events", *p.MessageEvents)
	}
	if p.ModEvents != nil {
		b.add("mod_events", *p.ModEvents)
	}
	if b.empty() {
		return r.Get(ctx, guildID)
	}
	q, args := b.build("logging_configs", "guild_id", guildID, loggingCols)
	l, err := scanLogging(r.db.QueryRowContext(ctx, q, args...))
	return l, notFound(err)
}

func (r *LoggingRepo) Delete(ctx context.Context, guildID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM logging_configs WHERE guild_id = $1`, guildID)
	return err
}

func (r *LoggingRepo) List(ctx context.Context) ([]domain.LoggingConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+loggingCols+` FROM logging_configs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.LoggingConfig
	for rows.Next() {
		l, err := scanLogging(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
