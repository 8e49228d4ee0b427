package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cogbench/cogbench/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the database file created under the base directory.
const FileName = "cogbench.db"

// Init initializes the SQLite database at baseDir/cogbench.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cogbench.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Exported documents land here unless an explicit path is given
	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: artifacts
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS artifacts (
		  public_id        TEXT PRIMARY KEY,
		  internal_ref     TEXT NOT NULL UNIQUE,
		  title            TEXT NOT NULL,
		  description      TEXT NOT NULL DEFAULT '',
		  html_content     TEXT NOT NULL DEFAULT '',
		  css_content      TEXT NOT NULL DEFAULT '',
		  js_content       TEXT NOT NULL DEFAULT '',
		  version_major    INTEGER NOT NULL,
		  version_minor    INTEGER NOT NULL,
		  version_patch    INTEGER NOT NULL,
		  build_status     TEXT NOT NULL CHECK (build_status IN ('building', 'success', 'failed')),
		  build_error      TEXT,
		  is_public        INTEGER NOT NULL DEFAULT 0,
		  access_count     INTEGER NOT NULL DEFAULT 0 CHECK (access_count >= 0),
		  last_accessed_at INTEGER,
		  created_at       INTEGER NOT NULL,
		  updated_at       INTEGER NOT NULL,
		  CHECK (build_status <> 'failed' OR (build_error IS NOT NULL
		    AND html_content = '' AND css_content = '' AND js_content = '')),
		  CHECK (build_status = 'failed' OR build_error IS NULL)
		);

		CREATE INDEX IF NOT EXISTS idx_artifacts_updated
		ON artifacts(updated_at DESC);

		CREATE INDEX IF NOT EXISTS idx_artifacts_public
		ON artifacts(is_public, updated_at DESC)
		WHERE is_public = 1;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
