// Package storagetest levanta un Postgres descartable para los tests de
// integración. No migra: cada paquete lo hace con storage.Migrate.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Postgres arranca el contenedor y devuelve la URL de conexión. Saltea el
// test con -short o si no hay docker.
func Postgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration: necesita docker")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("alpine"),
		postgres.WithUsername("alpine"),
		postgres.WithPassword("alpine"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	url, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres url: %v", err)
	}
	return url
}
