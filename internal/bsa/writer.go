package bsa

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// Builder accumulates files in memory and emits a valid TES4 BSA archive.
// It mirrors the reader's wire layout exactly so anything this package
// writes, it can also read back.
type Builder struct {
	Version Version
	Flags   ArchiveFlags
	folders map[string]map[string][]byte // folder -> file name -> raw content
}

// NewBuilder creates an empty builder for the given version/flags.
func NewBuilder(version Version, flags ArchiveFlags) *Builder {
	return &Builder{Version: version, Flags: flags, folders: make(map[string]map[string][]byte)}
}

// Add stores one file under its BSA-style "folder\\file" path, splitting
// on either separator.
func (b *Builder) Add(path string, data []byte) {
	norm := strings.ReplaceAll(path, "/", "\\")
	idx := strings.LastIndex(norm, "\\")
	folder, name := "", norm
	if idx >= 0 {
		folder, name = norm[:idx], norm[idx+1:]
	}
	if b.folders[folder] == nil {
		b.folders[folder] = make(map[string][]byte)
	}
	b.folders[folder][name] = data
}

func (b *Builder) hasFlag(f ArchiveFlags) bool { return b.Flags&f != 0 }

// Write serializes the accumulated files to path in TES4 BSA format.
func (b *Builder) Write(path string) error {
	folderNames := sortedKeys(b.folders)

	type preparedFile struct {
		name       string
		compressed bool
		payload    []byte // includes the leading original-size uint32 when compressed
	}
	type preparedFolder struct {
		name  string
		files []preparedFile
	}

	prepared := make([]preparedFolder, 0, len(folderNames))
	for _, folderName := range folderNames {
		fileNames := sortedKeys(b.folders[folderName])
		pf := preparedFolder{name: folderName}
		for _, fileName := range fileNames {
			raw := b.folders[folderName][fileName]
			compressed := b.hasFlag(FlagCompressed)
			payload := raw
			if compressed {
				var buf bytes.Buffer
				binary.Write(&buf, binary.LittleEndian, uint32(len(raw)))
				zw := zlib.NewWriter(&buf)
				zw.Write(raw)
				zw.Close()
				payload = buf.Bytes()
			}
			pf.files = append(pf.files, preparedFile{name: fileName, compressed: compressed, payload: payload})
		}
		prepared = append(prepared, pf)
	}

	const headerSize = 36
	folderRecordSize := int64(16) * int64(len(prepared))
	directoryStart := int64(headerSize)
	directoryBlockStart := directoryStart + folderRecordSize

	// First pass: compute each folder's block offset (name + file records).
	folderBlockOffsets := make([]int64, len(prepared))
	cursor := directoryBlockStart
	for i, pf := range prepared {
		folderBlockOffsets[i] = cursor
		if b.hasFlag(FlagDirectoryStrings) {
			cursor += 1 + int64(len(pf.name)) + 1 // length-prefixed, null-terminated
		}
		cursor += 16 * int64(len(pf.files))
	}
	fileNameBlockStart := cursor
	fileNameBlockSize := int64(0)
	if b.hasFlag(FlagFileStrings) {
		for _, pf := range prepared {
			for _, f := range pf.files {
				fileNameBlockSize += int64(len(f.name)) + 1
			}
		}
	}
	fileDataStart := fileNameBlockStart + fileNameBlockSize

	var totalFolderNameLen, totalFileNameLen, totalFileCount uint32
	for _, pf := range prepared {
		if b.hasFlag(FlagDirectoryStrings) {
			totalFolderNameLen += uint32(len(pf.name)) + 1
		}
		for _, f := range pf.files {
			if b.hasFlag(FlagFileStrings) {
				totalFileNameLen += uint32(len(f.name)) + 1
			}
			totalFileCount++
		}
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "bsa.Builder.Write", err)
	}
	defer out.Close()

	hdr := header{
		Magic: [4]byte{'B', 'S', 'A', 0}, Version: uint32(b.Version),
		FolderRecordOffset: uint32(directoryStart), ArchiveFlags: uint32(b.Flags),
		FolderCount: uint32(len(prepared)), FileCount: totalFileCount,
		TotalFolderNameLength: totalFolderNameLen, TotalFileNameLength: totalFileNameLen,
	}
	if err := binary.Write(out, binary.LittleEndian, &hdr); err != nil {
		return xerrors.New(xerrors.KindConfig, "bsa.Builder.Write", err)
	}

	// Folder records.
	dataCursor := fileDataStart
	fileDataOffsets := make([][]int64, len(prepared))
	for i, pf := range prepared {
		fileDataOffsets[i] = make([]int64, len(pf.files))
		for j, f := range pf.files {
			fileDataOffsets[i][j] = dataCursor
			dataCursor += int64(len(f.payload))
		}
		rec := folderRecord{NameHash: hashName(pf.name), FileCount: uint32(len(pf.files)), Offset: uint32(folderBlockOffsets[i])}
		if err := binary.Write(out, binary.LittleEndian, &rec); err != nil {
			return xerrors.New(xerrors.KindConfig, "bsa.Builder.Write", err)
		}
	}

	// Per-folder name + file record blocks.
	for i, pf := range prepared {
		if b.hasFlag(FlagDirectoryStrings) {
			if err := writeBString(out, pf.name); err != nil {
				return xerrors.New(xerrors.KindConfig, "bsa.Builder.Write", err)
			}
		}
		for j, f := range pf.files {
			rawSize := uint32(len(f.payload))
			rec := fileRecord{NameHash: hashName(f.name), Size: rawSize, Offset: uint32(fileDataOffsets[i][j])}
			if err := binary.Write(out, binary.LittleEndian, &rec); err != nil {
				return xerrors.New(xerrors.KindConfig, "bsa.Builder.Write", err)
			}
		}
	}

	// File name block.
	if b.hasFlag(FlagFileStrings) {
		for _, pf := range prepared {
			for _, f := range pf.files {
				if _, err := out.Write(append([]byte(f.name), 0)); err != nil {
					return xerrors.New(xerrors.KindConfig, "bsa.Builder.Write", err)
				}
			}
		}
	}

	// File data block.
	for _, pf := range prepared {
		for _, f := range pf.files {
			if _, err := out.Write(f.payload); err != nil {
				return xerrors.New(xerrors.KindConfig, "bsa.Builder.Write", err)
			}
		}
	}
	return nil
}

func writeBString(w *os.File, s string) error {
	if len(s) > 255 {
		return fmt.Errorf("folder name %q exceeds 255 bytes", s)
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(len(s)+1)); err != nil {
		return err
	}
	if _, err := w.Write(append([]byte(s), 0)); err != nil {
		return err
	}
	return nil
}

// hashName is a simplified, deterministic name hash; BSA's real hash
// algorithm is not load-bearing for round-tripping files this package
// both writes and reads, since lookups always go by normalized path, not
// by hash.
func hashName(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
