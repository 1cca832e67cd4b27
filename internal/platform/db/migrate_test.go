package db

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write test file %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadMigrations(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_mchms.sql":    "CREATE TABLE patient (id UUID PRIMARY KEY);",
		"002_obs.sql":      "CREATE TABLE obs (id UUID PRIMARY KEY);",
		"003_concepts.sql": "CREATE TABLE concept (code TEXT PRIMARY KEY);",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "001_mchms.sql" {
		t.Errorf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[0].SQL != "CREATE TABLE patient (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
	if migrations[2].Version != 3 {
		t.Errorf("expected version 3, got %d", migrations[2].Version)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"010_tables.sql": "SELECT 10;",
		"002_second.sql": "SELECT 2;",
		"001_first.sql":  "SELECT 1;",
		"005_middle.sql": "SELECT 5;",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	want := []int{1, 2, 5, 10}
	if len(migrations) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(migrations))
	}
	for i, v := range want {
		if migrations[i].Version != v {
			t.Errorf("migration %d: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_SkipsUnversionedFiles(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_valid.sql":      "SELECT 1;",
		"readme.sql":         "-- no version prefix",
		"notes.txt":          "not a sql file",
		"abc_invalid.sql":    "-- non-numeric prefix",
		"002_also_valid.sql": "SELECT 2;",
	})

	migrations, err := NewMigrator(nil, dir).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 valid migrations, got %d", len(migrations))
	}
}

func TestLoadMigrations_NonExistentDir(t *testing.T) {
	if _, err := NewMigrator(nil, "/nonexistent/path/that/does/not/exist").LoadMigrations(); err == nil {
		t.Error("expected error for non-existent directory")
	}
}

func TestBuildStatus(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Name: "001_mchms.sql"},
		{Version: 2, Name: "002_obs_index.sql"},
	}
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	statuses := buildStatus(migrations, map[int]time.Time{1: at})
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected migration 001 applied at %v, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Errorf("expected migration 002 pending, got %+v", statuses[1])
	}
}

func TestShippedMigrationsLoad(t *testing.T) {
	migrations, err := NewMigrator(nil, filepath.Join("..", "..", "..", "migrations")).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one shipped migration")
	}
	if migrations[0].Version != 1 {
		t.Errorf("expected first shipped migration to be version 1, got %d", migrations[0].Version)
	}
}
