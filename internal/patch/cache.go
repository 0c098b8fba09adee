package patch

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// Cache is a disk-backed, content-addressed store of previously applied
// patch outputs, keyed on the sha256 of the resulting bytes. Applying the
// same patch against the same source twice (common across collections that
// share an official update chain) reuses the cached output instead of
// recomputing it.
type Cache struct {
	dir string
}

// OpenCache opens (creating if absent) a patch output cache rooted at dir.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "patch.OpenCache", err)
	}
	return &Cache{dir: dir}, nil
}

// Hash returns the content key used to address data in the cache.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *Cache) pathFor(key string) string {
	if len(key) < 4 {
		return filepath.Join(c.dir, key)
	}
	return filepath.Join(c.dir, key[:2], key[2:4], key)
}

// Get returns the cached bytes for key, or ok=false if absent.
func (c *Cache) Get(key string) (data []byte, ok bool, err error) {
	data, err = os.ReadFile(c.pathFor(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, xerrors.New(xerrors.KindConfig, "patch.Cache.Get", err)
	}
	return data, true, nil
}

// Put stores data under its own content hash and returns that hash, so
// callers can record it without recomputing Hash themselves.
func (c *Cache) Put(data []byte) (string, error) {
	key := Hash(data)
	dest := c.pathFor(key)
	if _, err := os.Stat(dest); err == nil {
		return key, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", xerrors.New(xerrors.KindConfig, "patch.Cache.Put", err)
	}
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", xerrors.New(xerrors.KindConfig, "patch.Cache.Put", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", xerrors.New(xerrors.KindConfig, "patch.Cache.Put", err)
	}
	return key, nil
}

// ApplyCached applies patchData to old, consulting and populating cache by
// the expected output hash when one is known in advance (e.g. from a
// manifest's recorded checksum). When expectedHash is empty the patch is
// always applied and the result is stored under its own computed hash.
func ApplyCached(cache *Cache, old []byte, patchData []byte, expectedHash string) ([]byte, error) {
	if cache != nil && expectedHash != "" {
		if data, ok, err := cache.Get(expectedHash); err != nil {
			return nil, err
		} else if ok {
			return data, nil
		}
	}

	out, err := Apply(old, patchData)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if _, err := cache.Put(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LinkOrCopy materializes cached bytes at dest, hardlinking from the cache
// file when possible and falling back to a copy across filesystem
// boundaries or when the platform disallows hardlinks.
func (c *Cache) LinkOrCopy(key, dest string) error {
	src := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return xerrors.New(xerrors.KindConfig, "patch.Cache.LinkOrCopy", err)
	}
	if err := os.Link(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "patch.Cache.LinkOrCopy", err)
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "patch.Cache.LinkOrCopy", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return xerrors.New(xerrors.KindConfig, "patch.Cache.LinkOrCopy", err)
	}
	return nil
}
