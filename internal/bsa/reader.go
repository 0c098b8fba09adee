package bsa

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// header is the 36-byte TES4 BSA file header.
type header struct {
	Magic                 [4]byte
	Version               uint32
	FolderRecordOffset    uint32
	ArchiveFlags          uint32
	FolderCount           uint32
	FileCount             uint32
	TotalFolderNameLength uint32
	TotalFileNameLength   uint32
	FileFlags             uint16
	Padding               uint16
}

type folderRecord struct {
	NameHash  uint64
	FileCount uint32
	Offset    uint32 // absolute file offset of this folder's name + file record block
}

type fileRecord struct {
	NameHash uint64
	Size     uint32 // high bit toggles this file's compression relative to the archive default
	Offset   uint32
}

// FileEntry is one file listed inside a BSA, with its decompressed size.
type FileEntry struct {
	Path               string // "folder\\file.ext"
	DecompressedSize   int64
}

// Reader parses a TES4 BSA container. Build with Open; it keeps the
// underlying file open for lazy per-file extraction.
type Reader struct {
	f      *os.File
	hdr    header
	// folders holds the folder records, each with its file records, in
	// file order, populated once by readDirectory.
	folders []folderEntry
}

type folderEntry struct {
	name  string
	files []folderFileEntry
}

type folderFileEntry struct {
	name       string
	size       uint32
	offset     uint32
	compressed bool
}

// Open reads a BSA's header and directory block (folder/file records and
// name tables) but defers reading any file payload until Extract is called.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "bsa.Open", err)
	}
	r := &Reader{f: f}
	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := r.readDirectory(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) Close() error { return r.f.Close() }

func (r *Reader) readHeader() error {
	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return xerrors.New(xerrors.KindCorruption, "bsa.readHeader", err)
	}
	if err := binary.Read(r.f, binary.LittleEndian, &r.hdr); err != nil {
		return xerrors.New(xerrors.KindCorruption, "bsa.readHeader", err)
	}
	if !bytes.Equal(r.hdr.Magic[:], magicBSA) {
		return xerrors.New(xerrors.KindCorruption, "bsa.readHeader", fmt.Errorf("not a BSA file"))
	}
	if r.hdr.Version != uint32(VersionOblivion) && r.hdr.Version != uint32(VersionFO3) {
		return xerrors.New(xerrors.KindCorruption, "bsa.readHeader", fmt.Errorf("unsupported BSA version %d", r.hdr.Version))
	}
	return nil
}

func (r *Reader) hasFlag(f ArchiveFlags) bool {
	return ArchiveFlags(r.hdr.ArchiveFlags)&f != 0
}

func (r *Reader) readDirectory() error {
	if _, err := r.f.Seek(int64(r.hdr.FolderRecordOffset), io.SeekStart); err != nil {
		return xerrors.New(xerrors.KindCorruption, "bsa.readDirectory", err)
	}

	recs := make([]folderRecord, r.hdr.FolderCount)
	for i := range recs {
		if err := binary.Read(r.f, binary.LittleEndian, &recs[i]); err != nil {
			return xerrors.New(xerrors.KindCorruption, "bsa.readDirectory", fmt.Errorf("folder record %d: %w", i, err))
		}
	}

	r.folders = make([]folderEntry, len(recs))
	for i, rec := range recs {
		if _, err := r.f.Seek(int64(rec.Offset), io.SeekStart); err != nil {
			return xerrors.New(xerrors.KindCorruption, "bsa.readDirectory", err)
		}
		var name string
		if r.hasFlag(FlagDirectoryStrings) {
			n, err := readBString(r.f)
			if err != nil {
				return xerrors.New(xerrors.KindCorruption, "bsa.readDirectory", err)
			}
			name = strings.TrimRight(n, "\x00")
		}
		files := make([]fileRecord, rec.FileCount)
		for j := range files {
			if err := binary.Read(r.f, binary.LittleEndian, &files[j]); err != nil {
				return xerrors.New(xerrors.KindCorruption, "bsa.readDirectory", fmt.Errorf("file record %d/%d: %w", i, j, err))
			}
		}
		r.folders[i] = folderEntry{name: name, files: make([]folderFileEntry, len(files))}
		for j, fr := range files {
			r.folders[i].files[j] = folderFileEntry{
				size: fr.Size & 0x3FFFFFFF, offset: fr.Offset,
				compressed: compressedForEntry(r.hasFlag(FlagCompressed), fr.Size),
			}
		}
	}

	if r.hasFlag(FlagFileStrings) {
		for i := range r.folders {
			for j := range r.folders[i].files {
				name, err := readCString(r.f)
				if err != nil {
					return xerrors.New(xerrors.KindCorruption, "bsa.readDirectory", err)
				}
				r.folders[i].files[j].name = name
			}
		}
	}
	return nil
}

// compressedForEntry toggles the archive's default compression setting
// when the file record's high bit of Size is set.
func compressedForEntry(archiveDefault bool, rawSize uint32) bool {
	toggled := rawSize&0x80000000 != 0
	if toggled {
		return !archiveDefault
	}
	return archiveDefault
}

func readBString(r io.Reader) (string, error) {
	var n uint8
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readCString(r io.Reader) (string, error) {
	var buf bytes.Buffer
	b := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, b); err != nil {
			return "", err
		}
		if b[0] == 0 {
			break
		}
		buf.WriteByte(b[0])
	}
	return buf.String(), nil
}

// List returns every file entry, with decompressed size where known.
func (r *Reader) List() []FileEntry {
	var entries []FileEntry
	for _, folder := range r.folders {
		for _, f := range folder.files {
			entries = append(entries, FileEntry{Path: joinBsaPath(folder.name, f.name), DecompressedSize: int64(f.size)})
		}
	}
	return entries
}

func joinBsaPath(folder, file string) string {
	if folder == "" {
		return file
	}
	return folder + "\\" + file
}

// Extract reads and, if necessary, decompresses the named file. Lookup is
// case-insensitive and tolerant of either path separator.
func (r *Reader) Extract(path string) ([]byte, error) {
	want := normalizePath(path)
	for _, folder := range r.folders {
		for _, f := range folder.files {
			if normalizePath(joinBsaPath(folder.name, f.name)) != want {
				continue
			}
			return r.extractEntry(f)
		}
	}
	return nil, xerrors.New(xerrors.KindSourceUnavailable, "bsa.Reader.Extract", fmt.Errorf("%q not found", path))
}

func (r *Reader) extractEntry(f folderFileEntry) ([]byte, error) {
	if _, err := r.f.Seek(int64(f.offset), io.SeekStart); err != nil {
		return nil, xerrors.New(xerrors.KindCorruption, "bsa.Reader.extractEntry", err)
	}
	if !f.compressed {
		buf := make([]byte, f.size)
		if _, err := io.ReadFull(r.f, buf); err != nil {
			return nil, xerrors.New(xerrors.KindCorruption, "bsa.Reader.extractEntry", err)
		}
		return buf, nil
	}

	var originalSize uint32
	if err := binary.Read(r.f, binary.LittleEndian, &originalSize); err != nil {
		return nil, xerrors.New(xerrors.KindCorruption, "bsa.Reader.extractEntry", err)
	}
	compressed := make([]byte, int64(f.size)-4)
	if _, err := io.ReadFull(r.f, compressed); err != nil {
		return nil, xerrors.New(xerrors.KindCorruption, "bsa.Reader.extractEntry", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, xerrors.New(xerrors.KindCorruption, "bsa.Reader.extractEntry", err)
	}
	defer zr.Close()
	out := make([]byte, 0, originalSize)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, zr); err != nil {
		return nil, xerrors.New(xerrors.KindCorruption, "bsa.Reader.extractEntry", err)
	}
	return buf.Bytes(), nil
}
