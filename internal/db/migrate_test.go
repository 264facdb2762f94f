// Package db tests for schema migrations.
package db

import (
	"testing"
)

// openMigrated opens a fresh database with all migrations applied.
func openMigrated(t *testing.T) *DB {
	t.Helper()

	database, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	migrator := NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	return database
}

// TestMigrateUp verifies the initial schema applies and is recorded.
func TestMigrateUp(t *testing.T) {
	database := openMigrated(t)

	migrator := NewMigrator(database.DB)
	version, err := migrator.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected schema version 1, got %d", version)
	}

	for _, table := range []string{"events", "registrations", "checkins", "pending_operations"} {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("expected table %s to exist: %v", table, err)
		}
	}
}

// TestMigrateUpIdempotent verifies a second Up applies nothing new.
func TestMigrateUpIdempotent(t *testing.T) {
	database := openMigrated(t)

	migrator := NewMigrator(database.DB)
	if err := migrator.Up(); err != nil {
		t.Fatalf("second Up failed: %v", err)
	}

	applied, err := migrator.GetAppliedMigrations()
	if err != nil {
		t.Fatalf("GetAppliedMigrations failed: %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("expected 1 applied migration, got %d", len(applied))
	}
	if applied[0].Checksum == "" {
		t.Error("expected checksum to be recorded")
	}
}

// TestMigrateDown verifies rollback removes the schema.
func TestMigrateDown(t *testing.T) {
	database := openMigrated(t)

	migrator := NewMigrator(database.DB)
	if err := migrator.Down(); err != nil {
		t.Fatalf("Down failed: %v", err)
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 after rollback, got %d", version)
	}

	var name string
	err = database.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='checkins'").Scan(&name)
	if err == nil {
		t.Error("expected checkins table to be dropped")
	}
}
