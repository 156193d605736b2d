package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"go.uber.org/zap"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantDriver string
		wantPrefix string
		wantErr    bool
	}{
		{"sqlite relative", "sqlite://rules.db", DriverSQLite, "file:rules.db?", false},
		{"sqlite absolute", "sqlite:///var/lib/ruledesk/rules.db", DriverSQLite, "file:/var/lib/ruledesk/rules.db?", false},
		{"postgres", "postgres://u:p@localhost:5432/ruledesk?sslmode=disable", DriverPostgres, "postgres://", false},
		{"postgresql alias", "postgresql://localhost/ruledesk", DriverPostgres, "postgresql://", false},
		{"unsupported", "mysql://localhost/ruledesk", "", "", true},
		{"sqlite without path", "sqlite://", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, ds, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if driver != tt.wantDriver {
				t.Errorf("driver = %q, want %q", driver, tt.wantDriver)
			}
			if !strings.HasPrefix(ds, tt.wantPrefix) {
				t.Errorf("data source = %q, want prefix %q", ds, tt.wantPrefix)
			}
		})
	}
}

func TestParseURL_BusyTimeout(t *testing.T) {
	_, ds, err := ParseURL("sqlite://rules.db")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ds, "_busy_timeout=5000") {
		t.Errorf("data source = %q, want default busy timeout", ds)
	}

	_, ds, err = ParseURL("sqlite://rules.db?_busy_timeout=100")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ds, "_busy_timeout=100") || strings.Contains(ds, "5000") {
		t.Errorf("data source = %q, want caller's busy timeout kept", ds)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	n, err := MigrateUp(ctx, conn, nil)
	if err != nil {
		t.Fatalf("first MigrateUp: %v", err)
	}
	if n == 0 {
		t.Fatalf("first MigrateUp applied 0 migrations")
	}

	n, err = MigrateUp(ctx, conn, nil)
	if err != nil {
		t.Fatalf("second MigrateUp: %v", err)
	}
	if n != 0 {
		t.Errorf("second MigrateUp applied %d migrations, want 0", n)
	}

	m, err := NewMigrator(conn, nil)
	if err != nil {
		t.Fatal(err)
	}
	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Errorf("migration %s not applied", s.ID)
		}
		if s.AppliedAt == "" {
			t.Errorf("migration %s has no applied_at", s.ID)
		}
	}

	var tables int
	if err := conn.GetContext(ctx, &tables,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'rules'"); err != nil {
		t.Fatal(err)
	}
	if tables != 1 {
		t.Errorf("rules table count = %d, want 1", tables)
	}
}

func TestMigrator_ChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "c.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	m := &Migrator{db: conn, dir: "sqlite", logger: zap.NewNop(), fsys: fstest.MapFS{
		"sqlite/001_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")},
	}}
	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("Up: %v", err)
	}

	m.fsys = fstest.MapFS{
		"sqlite/001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
	}
	_, err = m.Up(ctx)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Errorf("Up after edit error = %v, want checksum mismatch", err)
	}

	m.fsys = fstest.MapFS{
		"sqlite/002_b.sql": {Data: []byte("CREATE TABLE b (id TEXT);")},
	}
	_, err = m.Up(ctx)
	if err == nil || !strings.Contains(err.Error(), "not in embedded files") {
		t.Errorf("Up after removal error = %v, want missing migration", err)
	}
}

func TestMigrator_PendingStatus(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "s.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	m, err := NewMigrator(conn, nil)
	if err != nil {
		t.Fatal(err)
	}
	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) == 0 {
		t.Fatal("Status returned no migrations")
	}
	for _, s := range statuses {
		if s.Applied {
			t.Errorf("migration %s reported applied before MigrateUp", s.ID)
		}
		if s.Checksum == "" {
			t.Errorf("migration %s has no checksum", s.ID)
		}
	}
}

func TestStripComments(t *testing.T) {
	got := stripComments("-- header\n  -- indented\nCREATE TABLE t (id TEXT)\n")
	if got != "CREATE TABLE t (id TEXT)" {
		t.Errorf("stripComments = %q", got)
	}
	if got := stripComments("-- only a comment\n"); got != "" {
		t.Errorf("stripComments(comment) = %q, want empty", got)
	}
}

func TestLoadQueries(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "q.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()
	if _, err := MigrateUp(ctx, conn, nil); err != nil {
		t.Fatal(err)
	}

	q, err := LoadQueries(conn)
	if err != nil {
		t.Fatalf("LoadQueries: %v", err)
	}

	var n int
	if err := q.Get(ctx, "count-rules", &n); err != nil {
		t.Fatalf("count-rules: %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}

	if err := q.Get(ctx, "no-such-query", &n); err == nil {
		t.Error("expected error for unknown query name")
	}
}
