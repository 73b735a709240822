package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions is used when creating the directory of a database file.
const DefaultDirPermissions = 0755

// sqliteBusyTimeoutMS makes concurrent writers wait instead of failing with SQLITE_BUSY.
const sqliteBusyTimeoutMS = 5000

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore keeps the diary in a single SQLite file.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore opens (creating if needed) the SQLite file named by the DSN.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sqlite store: database DSN not set")
	}

	path := strings.TrimPrefix(cfg.DSN, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("sqlite store: failed to create database directory: %w", err)
	}

	sep := "?"
	if strings.Contains(cfg.DSN, "?") {
		sep = "&"
	}
	dsn := fmt.Sprintf("%s%s_busy_timeout=%d", cfg.DSN, sep, sqliteBusyTimeoutMS)
	s, err := openSQLStore("SQLiteStore", "sqlite3", dsn, sqliteMigrations, false, func(db *sql.DB) {
		db.SetMaxOpenConns(1)
	})
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{sqlStore: s}, nil
}
