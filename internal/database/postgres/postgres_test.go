//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/kozaktomas/visagevault/internal/config"
	"github.com/kozaktomas/visagevault/internal/database"
	"github.com/kozaktomas/visagevault/internal/database/catalogtest"
	"github.com/kozaktomas/visagevault/internal/database/sqlstore"
)

func setupTestContainer(t *testing.T) (*sqlstore.Store, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	store, err := Open(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open catalog: %v", err)
	}

	cleanup := func() {
		store.Close()
		container.Terminate(ctx)
	}
	return store, cleanup
}

// sharedCatalog keeps the container's pool open across subtests.
type sharedCatalog struct {
	*sqlstore.Store
}

func (sharedCatalog) Close() error { return nil }

func TestCatalog(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	if store == nil {
		return
	}
	defer cleanup()

	catalogtest.Run(t, func(t *testing.T) database.Catalog {
		_, err := store.DB().ExecContext(context.Background(),
			"TRUNCATE face_labels, faces, identities, assets RESTART IDENTITY CASCADE")
		if err != nil {
			t.Fatalf("Failed to truncate: %v", err)
		}
		return sharedCatalog{store}
	})
}

func TestMigrationsApplied(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	if store == nil {
		return
	}
	defer cleanup()

	applied, err := store.MigrationsApplied(context.Background())
	if err != nil {
		t.Fatalf("MigrationsApplied: %v", err)
	}
	if len(applied) != 1 || applied[0] != "0001_catalog.sql" {
		t.Errorf("unexpected migrations %v", applied)
	}
}
