package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteSlot keeps the serialized collection in one row of the slots table.
// Each write bumps the row's revision.
type SQLiteSlot struct {
	db  *sql.DB
	key string
}

// OpenSQLiteSlot opens (or creates) promptlab.db in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database.
func OpenSQLiteSlot(dataDir string) (*SQLiteSlot, error) {
	dsn := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "promptlab.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: the CLI and the server never need more, and an
	// in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	migrations, err := loadMigrations(migrationsFS, "migrations")
	if err == nil {
		err = migrate(db, migrations)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteSlot{db: db, key: StorageKey}, nil
}

func (s *SQLiteSlot) Close() error {
	return s.db.Close()
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *SQLiteSlot) AppliedMigrations() ([]int, error) {
	return appliedVersions(s.db)
}

func (s *SQLiteSlot) Read() ([]byte, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM slots WHERE key = ?", s.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("reading slot %s: %w", s.key, err)
	}
	return []byte(value), nil
}

func (s *SQLiteSlot) Write(data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO slots (key, value, updated_at, revision) VALUES (?, ?, ?, 1)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at,
			revision = slots.revision + 1`,
		s.key, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("writing slot %s: %w", s.key, err)
	}
	return nil
}

func (s *SQLiteSlot) Clear() error {
	if _, err := s.db.Exec("DELETE FROM slots WHERE key = ?", s.key); err != nil {
		return fmt.Errorf("clearing slot %s: %w", s.key, err)
	}
	return nil
}

// Revision reports how many times the slot has been written since it was
// last cleared, or 0 when it is empty.
func (s *SQLiteSlot) Revision() (int, error) {
	var rev int
	err := s.db.QueryRow("SELECT revision FROM slots WHERE key = ?", s.key).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return rev, err
}

var _ ClosableSlot = (*SQLiteSlot)(nil)

// OpenSlot opens the durable slot for the configured backend ("file" or "sqlite").
func OpenSlot(backend, dataDir string) (ClosableSlot, error) {
	switch backend {
	case "", "file":
		return NewFileSlot(dataDir), nil
	case "sqlite":
		return OpenSQLiteSlot(dataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want file or sqlite)", backend)
	}
}
