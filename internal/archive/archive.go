// Package archive provides the generic archive I/O surface (design
// component C5): listing, bulk and single-file extraction, and solidity
// detection, dispatched across a native zip backend and an external
// 7z/unrar backend depending on the sniffed container format.
package archive

import (
	"bytes"
	"fmt"
	"os"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// Entry is one file listed inside an archive.
type Entry struct {
	Path string
	Size int64
}

// Extractor is the interface both backends satisfy.
type Extractor interface {
	// List returns every file entry, paths using the archive's native
	// separators and case.
	List() ([]Entry, error)
	// ExtractAll extracts every entry into destDir using workers parallel
	// workers; workers <= 0 means the backend picks a default.
	ExtractAll(destDir string, workers int) error
	// ExtractSingle extracts the entry matching path case-insensitively
	// (and separator-insensitively) into destPath.
	ExtractSingle(path, destPath string) error
	// Solid reports whether the archive is a solid (block-compressed)
	// container, where single-file extraction forces a full pass.
	Solid() (bool, error)
	// Close releases any resources (open file handles, temp listings).
	Close() error
}

// Format tags the sniffed container kind.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	Format7z
	FormatRAR
)

var magicTable = []struct {
	format Format
	magic  []byte
}{
	{FormatZip, []byte("PK\x03\x04")},
	{Format7z, []byte("7z\xBC\xAF\x27\x1C")},
	{FormatRAR, []byte("Rar!\x1A\x07")},
}

// Sniff reads the leading bytes of path and identifies its container
// format by magic number, ignoring any file extension.
func Sniff(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 8)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return FormatUnknown, fmt.Errorf("read header of %q: %w", path, err)
	}
	head = head[:n]

	for _, m := range magicTable {
		if bytes.HasPrefix(head, m.magic) {
			return m.format, nil
		}
	}
	return FormatUnknown, nil
}

// Open sniffs path's container format and returns the matching Extractor.
// Solid/block-compressed formats (7z, RAR) are handed to the external-tool
// backend; zip is served natively since archive/zip gives random access
// without shelling out.
func Open(path string) (Extractor, error) {
	format, err := Sniff(path)
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "archive.Open", err)
	}
	switch format {
	case FormatZip:
		return openZip(path)
	case Format7z:
		return newExternalTool(path, "7z")
	case FormatRAR:
		return newExternalTool(path, "unrar")
	default:
		return nil, xerrors.New(xerrors.KindCorruption, "archive.Open", fmt.Errorf("%q has no recognized archive magic", path))
	}
}
