package bsa

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// Cache is a disk-backed store for extracted BSA/BA2 file contents, keyed
// by (archive path, normalized file path), generalizing the job store's own
// modernc.org/sqlite usage but tuned purely for extraction throughput
// rather than durability: journaling and synchronous writes are both off,
// and the connection is exclusive.
type Cache struct {
	db         *sql.DB
	path       string
	deleteOnClose bool
}

// NewTempCache creates a cache in a fresh temp file that Close removes.
func NewTempCache() (*Cache, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("collector-bsa-cache-%d.db", os.Getpid()))
	c, err := openCache(path)
	if err != nil {
		return nil, err
	}
	c.deleteOnClose = true
	return c, nil
}

// OpenCache opens (or creates) a persistent cache at path, left on disk
// after Close.
func OpenCache(path string) (*Cache, error) {
	return openCache(path)
}

func openCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "bsa.openCache", err)
	}
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode = OFF",
		"PRAGMA synchronous = OFF",
		"PRAGMA cache_size = 1000",
		"PRAGMA temp_store = FILE",
		"PRAGMA locking_mode = EXCLUSIVE",
		"PRAGMA mmap_size = 0",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, xerrors.New(xerrors.KindConfig, "bsa.openCache", fmt.Errorf("%s: %w", p, err))
		}
	}
	const schema = `
CREATE TABLE IF NOT EXISTS bsa_cache (
	archive_path TEXT NOT NULL,
	file_path_normalized TEXT NOT NULL,
	file_path_original TEXT NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (archive_path, file_path_normalized)
) STRICT`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, xerrors.New(xerrors.KindConfig, "bsa.openCache", err)
	}
	return &Cache{db: db, path: path}, nil
}

// Close releases the underlying connection, removing the backing file for
// temp caches created with NewTempCache.
func (c *Cache) Close() error {
	err := c.db.Close()
	if c.deleteOnClose {
		os.Remove(c.path)
	}
	return err
}

// Insert stores one file's content.
func (c *Cache) Insert(archivePath, filePath string, data []byte) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO bsa_cache (archive_path, file_path_normalized, file_path_original, data) VALUES (?, ?, ?, ?)`,
		archivePath, normalizePath(filePath), filePath, data,
	)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "bsa.Cache.Insert", err)
	}
	return nil
}

// CacheFile pairs a path with its content for InsertBatch.
type CacheFile struct {
	Path string
	Data []byte
}

// InsertBatch stores many files from one archive in a single transaction.
func (c *Cache) InsertBatch(archivePath string, files []CacheFile) (count int, totalBytes int, err error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, 0, xerrors.New(xerrors.KindConfig, "bsa.Cache.InsertBatch", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO bsa_cache (archive_path, file_path_normalized, file_path_original, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, 0, xerrors.New(xerrors.KindConfig, "bsa.Cache.InsertBatch", err)
	}
	defer stmt.Close()

	for _, f := range files {
		if _, err := stmt.Exec(archivePath, normalizePath(f.Path), f.Path, f.Data); err != nil {
			tx.Rollback()
			return 0, 0, xerrors.New(xerrors.KindConfig, "bsa.Cache.InsertBatch", fmt.Errorf("insert %q: %w", f.Path, err))
		}
		count++
		totalBytes += len(f.Data)
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, xerrors.New(xerrors.KindConfig, "bsa.Cache.InsertBatch", err)
	}
	return count, totalBytes, nil
}

// InsertStreaming runs producer inside a single transaction, letting it
// feed one (path, data) pair at a time via put without holding every
// extracted file in memory at once.
func (c *Cache) InsertStreaming(archivePath string, producer func(put func(path string, data []byte) error) error) (count int, totalBytes int, err error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, 0, xerrors.New(xerrors.KindConfig, "bsa.Cache.InsertStreaming", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO bsa_cache (archive_path, file_path_normalized, file_path_original, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, 0, xerrors.New(xerrors.KindConfig, "bsa.Cache.InsertStreaming", err)
	}
	defer stmt.Close()

	put := func(path string, data []byte) error {
		if _, err := stmt.Exec(archivePath, normalizePath(path), path, data); err != nil {
			return fmt.Errorf("insert %q: %w", path, err)
		}
		count++
		totalBytes += len(data)
		return nil
	}
	if err := producer(put); err != nil {
		tx.Rollback()
		return 0, 0, xerrors.New(xerrors.KindConfig, "bsa.Cache.InsertStreaming", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, xerrors.New(xerrors.KindConfig, "bsa.Cache.InsertStreaming", err)
	}
	return count, totalBytes, nil
}

// Get retrieves one file's content, case-insensitively.
func (c *Cache) Get(archivePath, filePath string) ([]byte, bool, error) {
	var data []byte
	err := c.db.QueryRow(
		`SELECT data FROM bsa_cache WHERE archive_path = ? AND file_path_normalized = ?`,
		archivePath, normalizePath(filePath),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, xerrors.New(xerrors.KindConfig, "bsa.Cache.Get", err)
	}
	return data, true, nil
}

// Contains reports whether a file is cached.
func (c *Cache) Contains(archivePath, filePath string) (bool, error) {
	var count int
	err := c.db.QueryRow(
		`SELECT COUNT(*) FROM bsa_cache WHERE archive_path = ? AND file_path_normalized = ?`,
		archivePath, normalizePath(filePath),
	).Scan(&count)
	if err != nil {
		return false, xerrors.New(xerrors.KindConfig, "bsa.Cache.Contains", err)
	}
	return count > 0, nil
}

// Remove deletes one cached file, reporting whether a row was removed.
func (c *Cache) Remove(archivePath, filePath string) (bool, error) {
	res, err := c.db.Exec(
		`DELETE FROM bsa_cache WHERE archive_path = ? AND file_path_normalized = ?`,
		archivePath, normalizePath(filePath),
	)
	if err != nil {
		return false, xerrors.New(xerrors.KindConfig, "bsa.Cache.Remove", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
