package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	pq "github.com/lib/pq"

	"github.com/jose-valero/alpine-bot/internal/domain"
)

// ErrNotFound es el mismo sentinel del dominio, así el service lo matchea sin importar storage.
var ErrNotFound = domain.ErrNotFound

type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// setBuilder arma el SET de un UPDATE parcial con placeholders numerados.
type setBuilder struct {
	sets []string
	args []any
}

func (b *setBuilder) add(col string, v any) {
	b.args = append(b.args, v)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", col, len(b.args)))
}

func (b *setBuilder) empty() bool { return len(b.sets) == 0 }

// build devuelve "UPDATE table SET ... WHERE keyCol = $n RETURNING cols" y los args.
func (b *setBuilder) build(table, keyCol, key, returning string) (string, []any) {
	sets := append(b.sets, "updated_at = now()")
	args := append(b.args, key)
	q := "UPDATE " + table + "\n   SET " + strings.Join(sets, ", ") +
		"\n WHERE " + keyCol + " = $" + fmt.Sprint(len(args)) +
		"\nRETURNING " + returning
	return q, args
}

// nullIfEmpty: "" se guarda como NULL.
func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// textArray: pq.Array(nil) manda NULL, y las columnas conjunto son NOT NULL.
func textArray(v []string) any {
	if v == nil {
		v = []string{}
	}
	return pq.Array(v)
}
