package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	for _, table := range []string{"events", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}

	for _, index := range []string{"idx_events_tracked_path", "idx_events_op_id"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&name)
		if err != nil {
			t.Errorf("Index %s was not created: %v", index, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}
	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCurrentStatus(t *testing.T) {
	db := openTestDB(t)

	latest, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if latest != 2 {
		t.Errorf("LatestVersion() = %d, want 2", latest)
	}

	st, err := CurrentStatus(db)
	if err != nil {
		t.Fatalf("CurrentStatus() error = %v", err)
	}
	if st.Current != 0 || st.UpToDate() {
		t.Errorf("CurrentStatus() = %+v before migration", st)
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	st, err = CurrentStatus(db)
	if err != nil {
		t.Fatalf("CurrentStatus() error = %v", err)
	}
	if !st.UpToDate() || st.Current != latest {
		t.Errorf("CurrentStatus() = %+v after migration, want current %d", st, latest)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestSchema_EventDefaults(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO events (action, at) VALUES ('created', '2024-01-15T10:30:00Z')"); err != nil {
		t.Fatalf("Failed to insert event: %v", err)
	}

	var opID, trackedPath string
	err := db.QueryRow("SELECT op_id, tracked_path FROM events WHERE action = 'created'").Scan(&opID, &trackedPath)
	if err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	if opID != "" || trackedPath != "" {
		t.Errorf("defaults = (%q, %q), want empty strings", opID, trackedPath)
	}

	if _, err := db.Exec("INSERT INTO events (op_id) VALUES ('x')"); err == nil {
		t.Error("Expected NOT NULL violation for missing action, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
// A single connection keeps every statement on the same in-memory database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
