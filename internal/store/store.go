package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store provides durable storage for the sync buffer, the cursor, the link
// tables and the normalized domain rows.
//
// SQLite is the default backend and runs with a single connection so that
// every write goes through one writer. PostgreSQL is supported for central
// deployments; the same migrations serve both.
type Store struct {
	db      *sqlx.DB
	driver  string
	flavor  sqlbuilder.Flavor
	logger  *zap.Logger
	nowFunc func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for migration output.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithNow overrides the wall clock used for received_at timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	return OpenDriver(DriverSQLite, path, opts...)
}

// OpenDriver opens a store on the given driver ("sqlite3" or "postgres").
func OpenDriver(driver, dsn string, opts ...Option) (*Store, error) {
	s := &Store{
		driver:  driver,
		logger:  zap.NewNop(),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	switch driver {
	case DriverSQLite:
		s.flavor = sqlbuilder.SQLite
	case DriverPostgres:
		s.flavor = sqlbuilder.PostgreSQL
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	// Migrations run on their own handle: the migrate drivers close the
	// database they are given.
	if err := runMigrations(driver, dsn, s.logger); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	s.db = db
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sqlx.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Driver returns the database driver name.
func (s *Store) Driver() string {
	return s.driver
}

// InTx runs fn inside one database transaction.
//
// The transaction commits when fn returns nil and rolls back otherwise. Errors
// returned by fn are passed through unchanged so callers can tell translation
// failures from storage failures; begin and commit failures are StorageErrors.
func (s *Store) InTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx, flavor: s.flavor}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// runMigrations applies the embedded migrations with golang-migrate.
// ErrNoChange is success: the schema is already current.
func runMigrations(driver, dsn string, logger *zap.Logger) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	var instance database.Driver
	switch driver {
	case DriverSQLite:
		instance, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case DriverPostgres:
		instance, err = postgres.WithInstance(db, &postgres.Config{})
	}
	if err != nil {
		db.Close()
		return fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		instance.Close()
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driver, instance)
	if err != nil {
		instance.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	m.Log = migrationLogger{logger: logger.Sugar()}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Debug("schema current", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// migrationLogger adapts zap to migrate.Logger.
type migrationLogger struct {
	logger *zap.SugaredLogger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Debugf(format, v...)
}

func (l migrationLogger) Verbose() bool {
	return false
}

func (s *Store) now() string {
	return formatTime(s.nowFunc())
}

// formatTime renders timestamps as RFC 3339 UTC text, which sorts correctly
// as a string on every backend.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FormatTime is formatTime for callers outside the package.
func FormatTime(t time.Time) string {
	return formatTime(t)
}
