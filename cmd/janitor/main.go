// janitor corre como lambda programada y limpia filas que el bot ya no necesita.
// El bot relee la blacklist al arrancar, así que borrar vencidas es seguro.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jose-valero/alpine-bot/internal/infra/logger"
)

type sweep struct {
	name  string
	query string
}

var sweeps = []sweep{
	{"blacklist_expired", `DELETE FROM blacklist WHERE expires_at IS NOT NULL AND expires_at < now();`},
	{"highlights_empty", `
DELETE FROM highlights
WHERE cardinality(triggers) = 0
  AND cardinality(blocked) = 0
  AND updated_at < now() - INTERVAL '30 days';`},
	{"user_configs_empty", `
DELETE FROM user_configs
WHERE timezone IS NULL
  AND embed_color IS NULL
  AND NOT dmed
  AND updated_at < now() - INTERVAL '30 days';`},
}

type result map[string]int64

func handler(ctx context.Context) (result, error) {
	lg, err := logger.New(os.Getenv("LOG_LEVEL"), "json")
	if err != nil {
		lg = zap.NewNop()
	}
	defer func() { _ = lg.Sync() }()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		lg.Warn("sin DATABASE_URL, nada que limpiar")
		return result{}, nil
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}
	defer pool.Close()
	return sweepAll(ctx, pool, lg), nil
}

// sweepAll corre cada sweep y devuelve cuántas filas borró cada uno.
func sweepAll(ctx context.Context, pool *pgxpool.Pool, lg *zap.Logger) result {
	out := result{}
	for _, s := range sweeps {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		tag, err := pool.Exec(cctx, s.query)
		cancel()
		if err != nil {
			// una tabla trabada no frena al resto
			lg.Warn("sweep falló", zap.String("sweep", s.name), zap.Error(err))
			continue
		}
		out[s.name] = tag.RowsAffected()
		lg.Info("sweep", zap.String("sweep", s.name), zap.Int64("rows", tag.RowsAffected()))
	}
	return out
}

func main() { lambda.Start(handler) }
