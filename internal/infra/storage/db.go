package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PoolConfig ajusta el pool de database/sql. Attempts es cuántas veces se
// reintenta el primer ping (en docker compose postgres suele tardar).
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	Attempts    int
}

var DefaultPool = PoolConfig{MaxOpen: 10, MaxIdle: 5, MaxLifetime: time.Hour, Attempts: 5}

// Open abre la conexión (pgx stdlib) y espera a que responda.
func Open(ctx context.Context, url string, pool PoolConfig, log *zap.Logger) (*sql.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	wait := 500 * time.Millisecond
	for attempt := 1; ; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pctx)
		cancel()
		if err == nil {
			return db, nil
		}
		if attempt >= max(pool.Attempts, 1) || ctx.Err() != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db ping (%d intentos): %w", attempt, err)
		}
		log.Warn("db no responde", zap.Int("attempt", attempt), zap.Duration("retry_in", wait), zap.Error(err))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
		wait *= 2
	}
}

// Migrate aplica las migraciones embebidas que falten.
func Migrate(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	results, err := p.Up(ctx)
	for _, r := range results {
		log.Info("migración", zap.String("file", r.Source.Path), zap.Duration("dur", r.Duration), zap.Bool("empty", r.Empty))
	}
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
