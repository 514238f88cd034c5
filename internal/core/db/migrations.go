package db

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	embeddedmigrations "github.com/solatis/launchrules/migrations"
)

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

// migration is one parsed .sql file.
type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// Migrator applies the embedded schema for the connected driver.
type Migrator struct {
	db     *sqlx.DB
	fsys   fs.FS
	dir    string
	logger *slog.Logger
}

// NewMigrator selects the embedded migrations matching db's driver.
func NewMigrator(db *sqlx.DB, logger *slog.Logger) (*Migrator, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
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

// MigrateUp is shorthand for NewMigrator followed by Up.
func MigrateUp(ctx context.Context, db *sqlx.DB, logger *slog.Logger) (int, error) {
	m, err := NewMigrator(db, logger)
	if err != nil {
		return 0, err
	}
	return m.Up(ctx)
}

// Up applies pending migrations in filename order and returns how many ran.
// Each migration and its bookkeeping row commit in one transaction.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	migrations, err := m.prepare(ctx)
	if err != nil {
		return 0, err
	}

	// SHA256 checksums detect edits to migrations that already ran
	if err := m.validateChecksums(ctx, migrations); err != nil {
		return 0, fmt.Errorf("migration checksum validation failed: %w", err)
	}

	applied, err := m.appliedIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query applied migrations: %w", err)
	}

	count := 0
	for _, mig := range migrations {
		if applied[mig.ID] {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Status returns every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	migrations, err := m.prepare(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := m.db.QueryxContext(ctx, "SELECT migration_id, checksum, applied_at, execution_ms FROM migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]MigrationStatus)
	for rows.Next() {
		var (
			status    MigrationStatus
			appliedAt any
		)
		if err := rows.Scan(&status.ID, &status.Checksum, &appliedAt, &status.ExecutionMs); err != nil {
			return nil, err
		}
		status.AppliedAt = parseAppliedAt(appliedAt)
		status.Applied = true
		applied[status.ID] = status
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		if s, ok := applied[mig.ID]; ok {
			statuses = append(statuses, s)
			continue
		}
		statuses = append(statuses, MigrationStatus{ID: mig.ID, Checksum: mig.Checksum})
	}
	return statuses, nil
}

// prepare creates the tracking table and parses the embedded files.
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

func (m *Migrator) apply(ctx context.Context, mig migration) error {
	start := time.Now()

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", mig.ID, err)
	}

	for _, stmt := range splitStatements(mig.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %s: %w", mig.ID, err)
		}
	}

	elapsed := time.Since(start)
	if err := m.record(ctx, tx, mig, elapsed); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", mig.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", mig.ID, err)
	}

	m.logger.Info("Applied migration",
		"migration", mig.ID,
		"duration_ms", elapsed.Milliseconds(),
	)
	return nil
}

// parseMigrationFiles reads every .sql file under dir, sorted by filename.
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

// splitStatements drops "--" comment lines and splits on semicolons.
// lib/pq does not accept several statements in one Exec.
func splitStatements(sql string) []string {
	var kept []string
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	createSQL := `
		CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
			execution_ms INTEGER NOT NULL
		)
	`
	if m.db.DriverName() == DriverSQLite {
		createSQL = `
			CREATE TABLE IF NOT EXISTS migrations (
				migration_id TEXT PRIMARY KEY,
				checksum TEXT NOT NULL,
				applied_at TEXT NOT NULL,
				execution_ms INTEGER NOT NULL,
				CHECK (applied_at LIKE '____-__-__T__:__:__Z')
			)
		`
	}
	_, err := m.db.ExecContext(ctx, createSQL)
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

func (m *Migrator) validateChecksums(ctx context.Context, migrations []migration) error {
	var recorded []struct {
		ID       string `db:"migration_id"`
		Checksum string `db:"checksum"`
	}
	if err := m.db.SelectContext(ctx, &recorded, "SELECT migration_id, checksum FROM migrations"); err != nil {
		return err
	}

	expected := make(map[string]string, len(migrations))
	for _, mig := range migrations {
		expected[mig.ID] = mig.Checksum
	}

	for _, r := range recorded {
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

func (m *Migrator) record(ctx context.Context, tx *sqlx.Tx, mig migration, elapsed time.Duration) error {
	now := time.Now().UTC()

	var appliedAt any = now
	if tx.DriverName() == DriverSQLite {
		appliedAt = now.Format(time.RFC3339)
	}
	_, err := tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		mig.ID, mig.Checksum, appliedAt, elapsed.Milliseconds(),
	)
	return err
}

// parseAppliedAt accepts the RFC3339 text SQLite stores and the timestamp
// PostgreSQL returns.
func parseAppliedAt(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return &parsed
		}
	case []byte:
		if parsed, err := time.Parse(time.RFC3339, string(t)); err == nil {
			return &parsed
		}
	}
	return nil
}
