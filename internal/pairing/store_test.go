package pairing

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the pairing table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE webos_pairing_keys (
			device_id TEXT PRIMARY KEY,
			client_key TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

func TestSQLiteStore_GetUnknown(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))

	key, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if key != "" {
		t.Errorf("Get() = %q, want empty", key)
	}
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(setupTestDB(t))

	if err := store.Save(ctx, "living-room", "key-1", "192.168.1.50"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	key, err := store.Get(ctx, "living-room")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if key != "key-1" {
		t.Errorf("Get() = %q, want %q", key, "key-1")
	}
}

func TestSQLiteStore_SaveReplacesKey(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(setupTestDB(t))

	if err := store.Save(ctx, "tv", "old", "10.0.0.5"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, "tv", "new", ""); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(List()) = %d, want 1", len(records))
	}
	r := records[0]
	if r.ClientKey != "new" {
		t.Errorf("ClientKey = %q, want %q", r.ClientKey, "new")
	}
	if r.Address != "10.0.0.5" {
		t.Errorf("Address = %q, want the previous address kept", r.Address)
	}
	if r.CreatedAt.IsZero() || r.UpdatedAt.IsZero() {
		t.Errorf("timestamps not parsed: %+v", r)
	}
}

func TestSQLiteStore_SaveValidation(t *testing.T) {
	store := NewSQLiteStore(setupTestDB(t))

	tests := []struct {
		name     string
		deviceID string
		key      string
	}{
		{"empty device", "", "key"},
		{"empty key", "tv", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Save(context.Background(), tt.deviceID, tt.key, "")
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Save() error = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestSQLiteStore_ListOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(setupTestDB(t))

	for _, id := range []string{"c", "a", "b"} {
		if err := store.Save(ctx, id, "key-"+id, ""); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}
	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var got []string
	for _, r := range records {
		got = append(got, r.DeviceID)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("List() ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(setupTestDB(t))

	if err := store.Save(ctx, "tv", "key", ""); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Delete(ctx, "tv"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if key, _ := store.Get(ctx, "tv"); key != "" {
		t.Errorf("Get() after Delete = %q, want empty", key)
	}
	if err := store.Delete(ctx, "tv"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("second Delete() error = %v, want ErrKeyNotFound", err)
	}
}
