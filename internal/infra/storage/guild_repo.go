package storage

import (
	"context"
	"database/sql"
	"fmt"

	pq "github.com/lib/pq"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

// Los TEXT[] salen como texto "{a,b}" y pq.StringArray los parsea, sin depender del codec del driver.
const guildCols = `guild_id, prefixes::text, disabled_commands::text, disabled_channels::text, auto_unarchive::text, created_at, updated_at`

type GuildRepo struct{ db *sql.DB }

func NewGuildRepo(db *sql.DB) *GuildRepo { return &GuildRepo{db: db} }

func scanGuild(row rowScanner) (domain.GuildConfig, error) {
	var g domain.GuildConfig
	err := row.Scan(
		&g.GuildID,
		(*pq.StringArray)(&g.Prefixes),
		(*pq.StringArray)(&g.DisabledCommands),
		(*pq.StringArray)(&g.DisabledChannels),
		(*pq.StringArray)(&g.AutoUnarchive),
		&g.CreatedAt, &g.UpdatedAt,
	)
	return g, err
}

func (r *GuildRepo) Get(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	g, err := scanGuild(r.db.QueryRowContext(ctx, `
SELECT `+guildCols+`
  FROM guild_configs
 WHERE guild_id = $1
`, guildID))
	return g, notFound(err)
}

// Insert crea la fila con defaults si no existe. Idempotente: si ya estaba
// devuelve la existente (el DO UPDATE no cambia nada pero habilita RETURNING).
func (r *GuildRepo) Insert(ctx context.Context, guildID string) (domain.GuildConfig, error) {
	return scanGuild(r.db.QueryRowContext(ctx, `
INSERT INTO guild_configs (guild_id)
VALUES ($1)
ON CONFLICT (guild_id) DO UPDATE SET guild_id = EXCLUDED.guild_id
RETURNING `+guildCols, guildID))
}

// Update aplica sólo los campos no-nil. ErrNotFound si la guild no existe.
func (r *GuildRepo) Update(ctx context.Context, guildID string, p domain.GuildConfigPatch) (domain.GuildConfig, error) {
	var b setBuilder
	if p.Prefixes != nil {
		b.add("prefixes", textArray(*p.Prefixes))
	}
	if p.DisabledCommands != nil {
		b.add("disabled_commands", textArray(*p.DisabledCommands))
	}
	if p.DisabledChannels != nil {
		b.add("disabled_channels", textArray(*p.DisabledChannels))
	}
	if p.AutoUnarchive != nil {
		b.add("auto_unarchive", textArray(*p.AutoUnarchive))
	}
	if b.empty() {
		// nada que cambiar
		return r.Get(ctx, guildID)
	}
	q, args := b.build("guild_configs", "guild_id", guildID, guildCols)
	g, err := scanGuild(r.db.QueryRowContext(ctx, q, args...))
	return g, notFound(err)
}

func guildSetColumn(f domain.GuildSetField) (string, error) {
	switch f {
	case domain.FieldPrefixes, domain.FieldDisabledCommands, domain.FieldDisabledChannels, domain.FieldAutoUnarchive:
		return string(f), nil
	}
	return "", fmt.Errorf("unknown guild set field %q", f)
}

// AddToSet agrega value a la columna conjunto en un solo statement (sin lost updates).
func (r *GuildRepo) AddToSet(ctx context.Context, guildID string, f domain.GuildSetField, value string) (domain.GuildConfig, error) {
	col, err := guildSetColumn(f)
	if err != nil {
		return domain.GuildConfig{}, err
	}
	g, err := scanGuild(r.db.QueryRowContext(ctx, `
UPDATE guild_configs
   SET `+col+` = CASE WHEN $2::text = ANY(`+col+`) THEN `+col+` ELSE array_append(`+col+`, $2::text) END,
       updated_at = now()
 WHERE guild_id = $1
RETURNING `+guildCols, guildID, value))
	return g, notFound(err)
}

func (r *GuildRepo) RemoveFromSet(ctx context.Context, guildID string, f domain.GuildSetField, value string) (domain.GuildConfig, error) {
	col, err := guildSetColumn(f)
	if err != nil {
		return domain.GuildConfig{}, err
	}
	g, err := scanGuild(r.db.QueryRowContext(ctx, `
UPDATE guild_configs
   SET `+col+` = array_remove(`+col+`, $2::text),
       updated_at = now()
 WHERE guild_id = $1
RETURNING `+guildCols, guildID, value))
	return g, notFound(err)
}

// Delete borra la guild (y por cascade sus sub-configs). Sin error si no existía.
func (r *GuildRepo) Delete(ctx context.Context, guildID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM guild_configs WHERE guild_id = $1`, guildID)
	return err
}

func (r *GuildRepo) List(ctx context.Context) ([]domain.GuildConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+guildCols+` FROM guild_configs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GuildConfig
	for rows.Next() {
		g, err := scanGuild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
