package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// zipExtractor wraps archive/zip, the same reader the teacher uses to pull
// info.json out of a mod package in mods/info.go, generalized here to full
// list/extract-all/extract-single support.
type zipExtractor struct {
	path string
	f    *os.File
	zr   *zip.Reader
}

func openZip(path string) (*zipExtractor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "archive.openZip", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, xerrors.New(xerrors.KindConfig, "archive.openZip", err)
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, xerrors.New(xerrors.KindCorruption, "archive.openZip", err)
	}
	return &zipExtractor{path: path, f: f, zr: zr}, nil
}

func (z *zipExtractor) List() ([]Entry, error) {
	entries := make([]Entry, 0, len(z.zr.File))
	for _, f := range z.zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, Entry{Path: f.Name, Size: int64(f.UncompressedSize64)})
	}
	return entries, nil
}

func (z *zipExtractor) ExtractAll(destDir string, workers int) error {
	if workers <= 0 {
		workers = 4
	}
	files := z.zr.File
	jobs := make(chan *zip.File)
	var wg sync.WaitGroup
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				if err := extractZipFile(f, destDir); err != nil {
					select {
					case errCh <- err:
					default:
					}
				}
			}
		}()
	}
	for _, f := range files {
		jobs <- f
	}
	close(jobs)
	wg.Wait()
	close(errCh)
	if err := <-errCh; err != nil {
		return xerrors.New(xerrors.KindCorruption, "archive.zipExtractor.ExtractAll", err)
	}
	return nil
}

func extractZipFile(f *zip.File, destDir string) error {
	target := filepath.Join(destDir, filepath.FromSlash(f.Name))
	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("mkdir for %q: %w", f.Name, err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %q: %w", f.Name, err)
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %q: %w", target, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("write %q: %w", target, err)
	}
	return nil
}

func (z *zipExtractor) ExtractSingle(path, destPath string) error {
	want := normalizeEntryPath(path)
	for _, f := range z.zr.File {
		if normalizeEntryPath(f.Name) == want {
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				return xerrors.New(xerrors.KindConfig, "archive.zipExtractor.ExtractSingle", err)
			}
			rc, err := f.Open()
			if err != nil {
				return xerrors.New(xerrors.KindCorruption, "archive.zipExtractor.ExtractSingle", err)
			}
			defer rc.Close()
			out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return xerrors.New(xerrors.KindConfig, "archive.zipExtractor.ExtractSingle", err)
			}
			defer out.Close()
			if _, err := io.Copy(out, rc); err != nil {
				return xerrors.New(xerrors.KindCorruption, "archive.zipExtractor.ExtractSingle", err)
			}
			return nil
		}
	}
	return xerrors.New(xerrors.KindSourceUnavailable, "archive.zipExtractor.ExtractSingle", fmt.Errorf("%q not found in %s", path, z.path))
}

// Solid is always false for zip: every entry compresses independently.
func (z *zipExtractor) Solid() (bool, error) { return false, nil }

func (z *zipExtractor) Close() error { return z.f.Close() }

func normalizeEntryPath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, "\\", "/"))
}
