package db

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
)

func sqlFile(body string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(body)}
}

func TestLoadMigrations(t *testing.T) {
	files := fstest.MapFS{
		"003_directory.sql":     sqlFile("CREATE TABLE patient (id UUID PRIMARY KEY);"),
		"001_notifications.sql": sqlFile("CREATE TABLE notification (id UUID PRIMARY KEY);"),
		"002_reminders.sql":     sqlFile("CREATE TABLE reminder_schedule (id UUID PRIMARY KEY);"),
	}

	migrations, err := NewMigrator(nil, files, zerolog.Nop()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	for i, want := range []int{1, 2, 3} {
		if migrations[i].Version != want {
			t.Errorf("migration[%d]: expected version %d, got %d", i, want, migrations[i].Version)
		}
	}
	if migrations[0].Name != "001_notifications.sql" {
		t.Errorf("expected 001_notifications.sql first, got %s", migrations[0].Name)
	}
	if !strings.Contains(migrations[1].SQL, "reminder_schedule") {
		t.Errorf("expected SQL content to be loaded, got %q", migrations[1].SQL)
	}
}

func TestLoadMigrations_SkipsUnnumbered(t *testing.T) {
	files := fstest.MapFS{
		"001_valid.sql":      sqlFile("SELECT 1;"),
		"readme.sql":         sqlFile("-- no version prefix"),
		"notes.txt":          sqlFile("not sql"),
		"abc_invalid.sql":    sqlFile("-- non-numeric prefix"),
		"002_also_valid.sql": sqlFile("SELECT 2;"),
		"010_dir/x.sql":      sqlFile("SELECT 3;"),
	}

	migrations, err := NewMigrator(nil, files, zerolog.Nop()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 valid migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("unexpected versions %d, %d", migrations[0].Version, migrations[1].Version)
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_a.sql":  sqlFile("SELECT 1;"),
		"0001_b.sql": sqlFile("SELECT 1;"),
	}
	if _, err := NewMigrator(nil, files, zerolog.Nop()).LoadMigrations(); err == nil {
		t.Fatal("expected error for duplicate version")
	}
}

func TestLoadMigrations_Empty(t *testing.T) {
	migrations, err := NewMigrator(nil, fstest.MapFS{}, zerolog.Nop()).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations, got %d", len(migrations))
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := map[int]time.Time{1: time.Now(), 3: time.Now()}

	pending := Pending(migrations, applied)
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Fatalf("expected only version 2 pending, got %+v", pending)
	}
	if got := Pending(migrations, nil); len(got) != 3 {
		t.Errorf("expected all pending on a fresh database, got %d", len(got))
	}
}

func TestStatusOf(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	migrations := []Migration{
		{Version: 1, Name: "001_notifications.sql"},
		{Version: 2, Name: "002_reminders.sql"},
	}

	statuses := StatusOf(migrations, map[int]time.Time{1: at})
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil || !statuses[0].AppliedAt.Equal(at) {
		t.Errorf("expected migration 1 applied at %v, got %+v", at, statuses[0])
	}
	if statuses[1].Applied || statuses[1].AppliedAt != nil {
		t.Errorf("expected migration 2 pending, got %+v", statuses[1])
	}
	if statuses[1].Name != "002_reminders.sql" {
		t.Errorf("expected name 002_reminders.sql, got %s", statuses[1].Name)
	}
}
