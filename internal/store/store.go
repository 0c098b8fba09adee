// Package store is the job database (design component C1): a single-file
// embedded SQL store holding every mod, archive, ordering rule, plugin, and
// piece of collection metadata for one installer run.
//
// It is a direct generalization of the teacher tool's mods.Cache
// (mods/cache.go): the same modernc.org/sqlite + squirrel combination, the
// same withTx transaction wrapper, and the same STRICT-table schema style,
// applied to the mod-collection schema from the design's data model instead
// of Factorio's mod-portal cache.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// Store is the job database. All mutation goes through its methods; callers
// never see the underlying *sql.DB.
type Store struct {
	db *sql.DB
}

// Open creates or opens the job store file "<dir>/<stem>.db", initializing
// its schema if missing. Journaling is disabled: the design explicitly
// trades crash-durability within a run for throughput, since the whole run
// is restartable end-to-end via Resume.
func Open(dir, stem string) (*Store, error) {
	path := filepath.Join(dir, stem+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "store.Open", err)
	}
	// Single-writer serialization: §5's shared-resource rule for the job
	// store. sqlite tolerates one writer; readers still share the handle.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory store, used by tests that exercise a single
// phase without touching disk.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "store.OpenMemory", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = OFF",
		"PRAGMA synchronous = OFF",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return xerrors.New(xerrors.KindConfig, "store.init", fmt.Errorf("%s: %w", p, err))
		}
	}
	return s.withTx(context.Background(), func(tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("exec schema: %w", err)
			}
		}
		return nil
	})
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	) STRICT`,
	`CREATE TABLE IF NOT EXISTS archives (
		hash TEXT PRIMARY KEY,
		filename TEXT NOT NULL UNIQUE,
		expected_size INTEGER NOT NULL,
		source_json TEXT NOT NULL,
		local_path TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		cached_url TEXT NOT NULL DEFAULT '',
		cached_url_expiry INTEGER NOT NULL DEFAULT 0
	) STRICT`,
	`CREATE TABLE IF NOT EXISTS mods (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		logical_filename TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		folder_name TEXT NOT NULL,
		source_json TEXT NOT NULL,
		archive_hash TEXT NOT NULL DEFAULT '',
		phase INTEGER NOT NULL DEFAULT 0,
		optional INTEGER NOT NULL DEFAULT 0,
		scripted INTEGER NOT NULL DEFAULT 0,
		choices_json TEXT NOT NULL DEFAULT '',
		patches_json TEXT NOT NULL DEFAULT '',
		local_path TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		last_error TEXT NOT NULL DEFAULT '',
		preflight_validated INTEGER NOT NULL DEFAULT 0,
		preflight_valid INTEGER NOT NULL DEFAULT 0,
		preflight_error TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (archive_hash) REFERENCES archives(hash)
	) STRICT`,
	`CREATE TABLE IF NOT EXISTS mod_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		source_filename TEXT NOT NULL,
		source_md5 TEXT NOT NULL DEFAULT '',
		reference_filename TEXT NOT NULL,
		reference_md5 TEXT NOT NULL DEFAULT ''
	) STRICT`,
	`CREATE TABLE IF NOT EXISTS plugins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		filename_normalized TEXT NOT NULL UNIQUE,
		enabled INTEGER NOT NULL DEFAULT 1,
		insertion_index INTEGER NOT NULL
	) STRICT`,
	`CREATE TABLE IF NOT EXISTS url_cache (
		archive_hash TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		expiry_unix INTEGER NOT NULL
	) STRICT`,
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// withTx runs fn inside a committed transaction, rolling back on any error
// it returns. Mirrors the teacher tool's withTx helper in mods/cache.go.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) sb() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func marshalSource(src Source) (string, error) {
	b, err := json.Marshal(src)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalSource(raw string) (Source, error) {
	var src Source
	if raw == "" {
		return src, nil
	}
	err := json.Unmarshal([]byte(raw), &src)
	return src, err
}
