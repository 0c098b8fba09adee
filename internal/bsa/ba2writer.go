package bsa

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// Ba2Builder accumulates files in memory and emits a valid GNRL-format BA2
// archive, the writer counterpart to Ba2Reader.
type Ba2Builder struct {
	Compress bool
	files    map[string][]byte // forward-slash path -> content
}

// NewBa2Builder creates an empty builder.
func NewBa2Builder(compress bool) *Ba2Builder {
	return &Ba2Builder{Compress: compress, files: make(map[string][]byte)}
}

// Add stores one file under a forward-slash path.
func (b *Ba2Builder) Add(path string, data []byte) {
	b.files[strings.ReplaceAll(path, "\\", "/")] = data
}

// Write serializes the accumulated files to path in BA2 GNRL format.
func (b *Ba2Builder) Write(path string) error {
	paths := sortedKeys(b.files)

	type prepared struct {
		path    string
		ext     string
		packed  []byte
		unpackedLen uint32
	}
	entries := make([]prepared, 0, len(paths))
	for _, p := range paths {
		raw := b.files[p]
		pe := prepared{path: p, unpackedLen: uint32(len(raw))}
		ext := strings.TrimPrefix(filepath.Ext(p), ".")
		if len(ext) > 4 {
			ext = ext[:4]
		}
		pe.ext = ext
		if b.Compress {
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			zw.Write(raw)
			zw.Close()
			pe.packed = buf.Bytes()
		} else {
			pe.packed = raw
		}
		entries = append(entries, pe)
	}

	const headerSize = 24
	recordSize := int64(36)
	dataStart := int64(headerSize) + recordSize*int64(len(entries))

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "bsa.Ba2Builder.Write", err)
	}
	defer out.Close()

	offsets := make([]int64, len(entries))
	cursor := dataStart
	for i, e := range entries {
		offsets[i] = cursor
		cursor += int64(len(e.packed))
	}
	nameTableOffset := cursor

	hdr := ba2Header{
		Magic: [4]byte{'B', 'T', 'D', 'X'}, Version: 1, Type: [4]byte{'G', 'N', 'R', 'L'},
		FileCount: uint32(len(entries)), NameTableOffset: uint64(nameTableOffset),
	}
	if err := binary.Write(out, binary.LittleEndian, &hdr); err != nil {
		return xerrors.New(xerrors.KindConfig, "bsa.Ba2Builder.Write", err)
	}

	for i, e := range entries {
		var ext [4]byte
		copy(ext[:], e.ext)
		packedLen := uint32(0)
		if b.Compress {
			packedLen = uint32(len(e.packed))
		}
		rec := ba2GeneralRecord{
			NameHash: hashName32(e.path), Extension: ext, Offset: uint64(offsets[i]),
			PackedLen: packedLen, UnpackedLen: e.unpackedLen,
		}
		if err := binary.Write(out, binary.LittleEndian, &rec); err != nil {
			return xerrors.New(xerrors.KindConfig, "bsa.Ba2Builder.Write", err)
		}
	}

	for _, e := range entries {
		if _, err := out.Write(e.packed); err != nil {
			return xerrors.New(xerrors.KindConfig, "bsa.Ba2Builder.Write", err)
		}
	}

	for _, e := range entries {
		if err := binary.Write(out, binary.LittleEndian, uint16(len(e.path))); err != nil {
			return xerrors.New(xerrors.KindConfig, "bsa.Ba2Builder.Write", err)
		}
		if _, err := out.Write([]byte(e.path)); err != nil {
			return xerrors.New(xerrors.KindConfig, "bsa.Ba2Builder.Write", err)
		}
	}
	return nil
}

func hashName32(s string) uint32 {
	return uint32(hashName(s))
}
