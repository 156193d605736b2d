package db

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	embeddedmigrations "github.com/solatis/ruledesk/migrations"
)

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string `db:"id"`
	Checksum    string `db:"checksum"`
	Applied     bool   `db:"-"`
	AppliedAt   string `db:"applied_at"`
	ExecutionMs int64  `db:"execution_ms"`
}

// migration is one parsed .sql file.
type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// Migrator applies the embedded migrations matching a connection's driver.
type Migrator struct {
	db     *sqlx.DB
	fsys   fs.FS
	dir    string
	logger *zap.Logger
}

// NewMigrator selects the migration set for db's driver.
func NewMigrator(db *sqlx.DB, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Migrator{db: db, logger: logger}
	switch db.DriverName() {
	case DriverSQLite:
		m.fsys, m.dir = embeddedmigrations.SqliteMigrations, "sqlite"
	case DriverPostgres:
		m.fsys, m.dir = embeddedmigrations.PostgresMigrations, "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", db.DriverName())
	}
	return m, nil
}

// MigrateUp applies pending migrations with the default migration set.
func MigrateUp(ctx context.Context, db *sqlx.DB, logger *zap.Logger) (int, error) {
	m, err := NewMigrator(db, logger)
	if err != nil {
		return 0, err
	}
	return m.Up(ctx)
}

// Up validates checksums of applied migrations and applies the rest in
// filename order, each in its own transaction. Returns the number applied.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	migrations, err := m.prepare(ctx)
	if err != nil {
		return 0, err
	}

	if err := m.validateChecksums(ctx, migrations); err != nil {
		return 0, fmt.Errorf("migration checksum validation failed: %w", err)
	}

	applied, err := m.appliedIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query applied migrations: %w", err)
	}

	count := 0
	for _, mg := range migrations {
		if applied[mg.ID] {
			continue
		}
		if err := m.apply(ctx, mg); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Status lists every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	migrations, err := m.prepare(ctx)
	if err != nil {
		return nil, err
	}

	var rows []MigrationStatus
	if err := m.db.SelectContext(ctx, &rows,
		"SELECT migration_id AS id, checksum, applied_at, execution_ms FROM migrations"); err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[string]MigrationStatus, len(rows))
	for _, r := range rows {
		r.Applied = true
		applied[r.ID] = r
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, mg := range migrations {
		if s, ok := applied[mg.ID]; ok {
			statuses = append(statuses, s)
			continue
		}
		statuses = append(statuses, MigrationStatus{ID: mg.ID, Checksum: mg.Checksum})
	}
	return statuses, nil
}

func (m *Migrator) prepare(ctx context.Context) ([]migration, error) {
	if err := m.createMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	migrations, err := parseMigrationFiles(m.fsys, m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	return migrations, nil
}

func (m *Migrator) apply(ctx context.Context, mg migration) error {
	start := time.Now()

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", mg.ID, err)
	}

	if err := execStatements(ctx, tx, mg.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to apply migration %s: %w", mg.ID, err)
	}

	elapsed := time.Since(start)
	if _, err := tx.ExecContext(ctx, tx.Rebind(
		"INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		mg.ID, mg.Checksum, time.Now().UTC().Format(time.RFC3339), elapsed.Milliseconds(),
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", mg.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", mg.ID, err)
	}

	m.logger.Info("migration applied",
		zap.String("migration", mg.ID),
		zap.Duration("elapsed", elapsed))
	return nil
}

// parseMigrationFiles reads every .sql file under dir, sorted by name.
func parseMigrationFiles(fsys fs.FS, dir string) ([]migration, error) {
	var migrations []migration

	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}
		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		migrations = append(migrations, migration{
			ID:       path.Base(p),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
			SQL:      string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].ID < migrations[j].ID
	})
	return migrations, nil
}

// createMigrationsTable ensures the tracking table exists. applied_at is
// RFC3339 text on both drivers so Status scans it the same way.
func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			execution_ms BIGINT NOT NULL
		)`)
	return err
}

func (m *Migrator) appliedIDs(ctx context.Context) (map[string]bool, error) {
	var ids []string
	if err := m.db.SelectContext(ctx, &ids, "SELECT migration_id FROM migrations"); err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[id] = true
	}
	return applied, nil
}

// validateChecksums fails when an applied migration was edited or removed.
func (m *Migrator) validateChecksums(ctx context.Context, migrations []migration) error {
	var rows []struct {
		ID       string `db:"migration_id"`
		Checksum string `db:"checksum"`
	}
	if err := m.db.SelectContext(ctx, &rows, "SELECT migration_id, checksum FROM migrations"); err != nil {
		return err
	}

	expected := make(map[string]string, len(migrations))
	for _, mg := range migrations {
		expected[mg.ID] = mg.Checksum
	}

	for _, r := range rows {
		want, ok := expected[r.ID]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", r.ID)
		}
		if r.Checksum != want {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", r.ID, want, r.Checksum)
		}
	}
	return nil
}

// execStatements runs a migration one statement at a time; lib/pq rejects
// multiple statements in a single Exec.
func execStatements(ctx context.Context, tx *sqlx.Tx, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = stripComments(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}
	return nil
}

func stripComments(stmt string) string {
	lines := strings.Split(stmt, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
