package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// migration is one versioned schema change, parsed from a
// migrations/NNN_description.sql file.
type migration struct {
	Version     int
	Description string
	SQL         string
	Filename    string
}

// Migrator applies the embedded schema against a database/sql handle opened
// with lib/pq. It runs over a plain *sql.DB rather than the pgx pool Store
// uses for its hot query path: migrations are a one-shot startup operation,
// not part of the steady-state request path the circuit breaker guards.
type Migrator struct {
	db *sql.DB
}

// NewMigrator opens a lib/pq connection against dsn for running migrations.
// Callers should Close the returned Migrator once done; it does not share
// the pgxpool Store uses for normal operation.
func NewMigrator(dsn string) (*Migrator, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: opening lib/pq connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: pinging database: %w", err)
	}
	return &Migrator{db: db}, nil
}

// Close releases the migration connection.
func (m *Migrator) Close() error {
	return m.db.Close()
}

func (m *Migrator) ensureSchemaVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version     INTEGER PRIMARY KEY,
			applied_at  TIMESTAMPTZ DEFAULT NOW(),
			description TEXT
		);
	`)
	return err
}

func (m *Migrator) currentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("migrate: reading current version: %w", err)
	}
	return version, nil
}

func loadMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(embeddedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: reading embedded migrations: %w", err)
	}

	migrations := make([]migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		content, err := embeddedMigrations.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("migrate: reading %s: %w", entry.Name(), err)
		}

		var version int
		var description string
		if _, err := fmt.Sscanf(entry.Name(), "%d_%s", &version, &description); err != nil {
			return nil, fmt.Errorf("migrate: malformed migration filename %q (want NNN_description.sql): %w", entry.Name(), err)
		}
		description = strings.TrimSuffix(description, ".sql")
		description = strings.ReplaceAll(description, "_", " ")

		migrations = append(migrations, migration{
			Version:     version,
			Description: description,
			SQL:         string(content),
			Filename:    entry.Name(),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}

// Migrate applies every embedded migration newer than the schema_version
// table's recorded version, each inside its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureSchemaVersionTable(ctx); err != nil {
		return fmt.Errorf("migrate: creating schema_version table: %w", err)
	}

	current, err := m.currentVersion(ctx)
	if err != nil {
		return err
	}

	all, err := loadMigrations()
	if err != nil {
		return err
	}

	var pending []migration
	for _, mig := range all {
		if mig.Version > current {
			pending = append(pending, mig)
		}
	}

	if len(pending) == 0 {
		log.Info().Int("version", current).Msg("store: schema up to date")
		return nil
	}

	log.Info().Int("current_version", current).Int("pending", len(pending)).Msg("store: applying migrations")
	for _, mig := range pending {
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("migrate: applying version %d: %w", mig.Version, err)
		}
	}

	final, _ := m.currentVersion(ctx)
	log.Info().Int("version", final).Msg("store: migrations complete")
	return nil
}

func (m *Migrator) apply(ctx context.Context, mig migration) error {
	log.Info().Int("version", mig.Version).Str("description", mig.Description).Msg("store: applying migration")

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return fmt.Errorf("executing migration sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, description) VALUES ($1, $2) ON CONFLICT (version) DO NOTHING",
		mig.Version, mig.Description,
	); err != nil {
		return fmt.Errorf("recording schema_version row: %w", err)
	}
	return tx.Commit()
}

// Migrate is the convenience entry point cmd/scanner uses at startup: it
// opens a lib/pq connection against dsn, applies any pending embedded
// migrations, and closes the connection before the caller opens its own
// pgxpool via New.
func Migrate(ctx context.Context, dsn string) error {
	migrator, err := NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer migrator.Close()
	return migrator.Migrate(ctx)
}
