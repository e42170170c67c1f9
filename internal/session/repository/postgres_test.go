package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// openTestDB connects to TEST_DATABASE_URL or skips the test.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS auth_snapshots (
		key TEXT PRIMARY KEY, value JSONB NOT NULL, updated_at TIMESTAMPTZ NOT NULL DEFAULT now())`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestPostgresBackend_SaveLoadDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	b := NewPostgresBackend(db)
	key := "test-" + t.Name()
	t.Cleanup(func() { _ = b.Delete(ctx, key) })

	if _, err := b.Load(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load before Save: want ErrNotFound, got %v", err)
	}
	store := NewStore(b, key)
	store.Set(ctx, testSession())
	got := store.Get(ctx)
	if !got.IsAuthenticated() || got.User == nil || got.User.ID != "u1" {
		t.Errorf("Get = %+v", got)
	}
	next := got
	next.AccessToken = "new"
	store.Set(ctx, next)
	if s := store.Get(ctx); s.AccessToken != "new" {
		t.Errorf("AccessToken after upsert = %q, want new", s.AccessToken)
	}
	store.Clear(ctx)
	if err := b.Delete(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete after Clear: want ErrNotFound, got %v", err)
	}
}
