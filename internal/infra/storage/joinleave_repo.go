package storage

import (
	"context"
	"database/sql"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

const joinLeaveCols = `guild_id, join_enabled, leave_enabled, channel_id, join_message, leave_message, updated_at`

type JoinLeaveRepo struct{ db *sql.DB }

func NewJoinLeaveRepo(db *sql.DB) *JoinLeaveRepo { return &JoinLeaveRepo{db: db} }

func scanJoinLeave(row rowScanner) (domain.JoinLeaveConfig, error) {
	var j domain.JoinLeaveConfig
	err := row.Scan(&j.GuildID, &j.JoinEnabled, &j.LeaveEnabled, &j.ChannelID, &j.JoinMessage, &j.LeaveMessage, &j.UpdatedAt)
	return j, err
}

func (r *JoinLeaveRepo) Get(ctx context.Context, guildID string) (domain.JoinLeaveConfig, error) {
	j, err := scanJoinLeave(r.db.QueryRowContext(ctx, `
SELECT `+joinLeaveCols+`
  FROM join_leave_configs
 WHERE guild_id = $1
`, guildID))
	return j, notFound(err)
}

func (r *JoinLeaveRepo) Insert(ctx context.Context, guildID string) (domain.JoinLeaveConfig, error) {
	return scanJoinLeave(r.db.QueryRowContext(ctx, `
INSERT INTO join_leave_configs (guild_id)
VALUES ($1)
ON CONFLICT (guild_id) DO UPDATE SET guild_id = EXCLUDED.guild_id
RETURNING `+joinLeaveCols, guildID))
}

func (r *JoinLeaveRepo) Update(ctx context.Context, guildID string, p domain.JoinLeavePatch) (domain.JoinLeaveConfig, error) {
	var b setBuilder
	if p.JoinEnabled != nil {
		b.add("join_enabled", *p.JoinEnabled)
	}
	if p.LeaveEnabled != nil {
		b.add("leave_enabled", *p.LeaveEnabled)
	}
	if p.ChannelID != nil {
		b.add("channel_id", nullIfEmpty(*p.ChannelID))
	}
	if p.JoinMessage != nil {
		b.add("join_message", nullIfEmpty(*p.JoinMessage))
	}
	if p.LeaveMessage != nil {
		b.add("leave_message", nullIfEmpty(*p.LeaveMessage))
	}
	if b.empty() {
		return r.Get(ctx, guildID)
	}
	q, args := b.build("join_leave_configs", "guild_id", guildID, joinLeaveCols)
	j, err := scanJoinLeave(r.db.QueryRowContext(ctx, q, args...))
	return j, notFound(err)
}

func (r *JoinLeaveRepo) Delete(ctx context.Context, guildID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM join_leave_configs WHERE guild_id = $1`, guildID)
	return err
}

func (r *JoinLeaveRepo) List(ctx context.Context) ([]domain.JoinLeaveConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+joinLeaveCols+` FROM join_leave_configs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.JoinLeaveConfig
	for rows.Next() {
		j, err := scanJoinLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
