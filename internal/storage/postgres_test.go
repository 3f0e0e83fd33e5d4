package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func skipIfDockerNotAvailable(t *testing.T) {
	t.Helper()
	// testcontainers v0.35.0 panics during docker host detection when no
	// docker socket exists at all, before SkipIfProviderIsNotHealthy can skip.
	defer func() {
		if r := recover(); r != nil {
			t.Skip("docker not available for testcontainers")
		}
	}()
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

func setupPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	skipIfDockerNotAvailable(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "courier",
			"POSTGRES_PASSWORD": "courier",
			"POSTGRES_DB":       "courier",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	conn := fmt.Sprintf("postgres://courier:courier@%s:%s/courier?sslmode=disable", host, port.Port())

	var store *PostgresStore
	deadline := time.Now().Add(30 * time.Second)
	for {
		store, err = NewPostgresStore(ctx, conn)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("wait for postgres: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return store
}

func TestPostgresStore_BinRoundTrip(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	if _, err := store.GetBin(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	record := json.RawMessage(`{"users": [], "messages": [], "friends": {}}`)
	if err := store.PutBin(ctx, "bin1", record); err != nil {
		t.Fatalf("PutBin() error = %v", err)
	}
	if _, err := store.GetBin(ctx, "bin1"); err != nil {
		t.Fatalf("GetBin() error = %v", err)
	}

	updated := json.RawMessage(`{"users": [{"username": "alice"}], "messages": [], "friends": {}}`)
	if err := store.PutBin(ctx, "bin1", updated); err != nil {
		t.Fatalf("PutBin() upsert error = %v", err)
	}
	got, err := store.GetBin(ctx, "bin1")
	if err != nil {
		t.Fatalf("GetBin() error = %v", err)
	}
	var doc struct {
		Users []struct {
			Username string `json:"username"`
		} `json:"users"`
	}
	if err := json.Unmarshal(got, &doc); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if len(doc.Users) != 1 || doc.Users[0].Username != "alice" {
		t.Fatalf("record = %s", got)
	}
}

func TestPostgresStore_MigrateIdempotent(t *testing.T) {
	store := setupPostgresStore(t)

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}
