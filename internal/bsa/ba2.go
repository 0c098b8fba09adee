package bsa

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// ba2Header is the 24-byte BA2 container header.
type ba2Header struct {
	Magic           [4]byte
	Version         uint32
	Type            [4]byte // "GNRL" or "DX10"
	FileCount       uint32
	NameTableOffset uint64
}

// ba2GeneralRecord is one GNRL-format file record (36 bytes on disk).
type ba2GeneralRecord struct {
	NameHash    uint32
	Extension   [4]byte
	DirHash     uint32
	Flags       uint32
	Offset      uint64
	PackedLen   uint32
	UnpackedLen uint32
	Sentinel    uint32
}

// dx10Record is one DX10 (texture) file record: a fixed 24-byte header
// followed immediately by NumChunks dx10Chunk entries.
type dx10Record struct {
	NameHash        uint32
	Extension       [4]byte
	DirHash         uint32
	Unknown1        uint8
	NumChunks       uint8
	ChunkHeaderSize uint16
	Height          uint16
	Width           uint16
	NumMips         uint8
	Format          uint8 // DXGI_FORMAT, truncated to a byte
	IsCubemap       uint8
	TileMode        uint8
}

// dx10Chunk is one streamable mip range within a DX10 texture record.
type dx10Chunk struct {
	Offset         uint64
	PackedLength   uint32
	UnpackedLength uint32
	StartMip       uint16
	EndMip         uint16
	Sentinel       uint32
}

// ba2FileInfo holds whichever record shape this entry parsed as.
type ba2FileInfo struct {
	general *ba2GeneralRecord
	dx10    *dx10Record
	chunks  []dx10Chunk
}

// Ba2Entry is one file listed inside a BA2 archive.
type Ba2Entry struct {
	Path             string // forward-slash path, e.g. "textures/foo.dds"
	DecompressedSize int64
	IsTexture        bool
}

// Ba2Reader parses both BA2 sub-types: GNRL (general-format) and DX10
// (texture). A DX10 entry's on-disk payload is a sequence of mip-range
// chunks rather than one contiguous blob; Extract reassembles them behind
// a synthesized DDS header so the result is a standalone .dds file, the
// same shape BuildPlan/Apply expects for every other extracted asset.
type Ba2Reader struct {
	f      *os.File
	hdr    ba2Header
	isDX10 bool
	files  []ba2FileInfo
	names  []string
}

// OpenBa2 reads a BA2 header, its file table (GNRL or DX10), and its name
// table.
func OpenBa2(path string) (*Ba2Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "bsa.OpenBa2", err)
	}
	r := &Ba2Reader{f: f}
	if err := r.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	if err := r.readRecords(); err != nil {
		f.Close()
		return nil, err
	}
	if err := r.readNames(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Ba2Reader) Close() error { return r.f.Close() }

func (r *Ba2Reader) readHeader() error {
	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.readHeader", err)
	}
	if err := binary.Read(r.f, binary.LittleEndian, &r.hdr); err != nil {
		return xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.readHeader", err)
	}
	if !bytes.Equal(r.hdr.Magic[:], magicBA2) {
		return xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.readHeader", fmt.Errorf("not a BA2 file"))
	}
	switch string(r.hdr.Type[:]) {
	case "DX10":
		r.isDX10 = true
	case "GNRL":
		r.isDX10 = false
	default:
		return xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.readHeader", fmt.Errorf("unknown BA2 sub-format %q", r.hdr.Type[:]))
	}
	return nil
}

func (r *Ba2Reader) readRecords() error {
	r.files = make([]ba2FileInfo, r.hdr.FileCount)
	for i := range r.files {
		if r.isDX10 {
			var rec dx10Record
			if err := binary.Read(r.f, binary.LittleEndian, &rec); err != nil {
				return xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.readRecords", fmt.Errorf("record %d: %w", i, err))
			}
			chunks := make([]dx10Chunk, rec.NumChunks)
			for c := range chunks {
				if err := binary.Read(r.f, binary.LittleEndian, &chunks[c]); err != nil {
					return xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.readRecords", fmt.Errorf("record %d chunk %d: %w", i, c, err))
				}
			}
			r.files[i] = ba2FileInfo{dx10: &rec, chunks: chunks}
		} else {
			var rec ba2GeneralRecord
			if err := binary.Read(r.f, binary.LittleEndian, &rec); err != nil {
				return xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.readRecords", fmt.Errorf("record %d: %w", i, err))
			}
			r.files[i] = ba2FileInfo{general: &rec}
		}
	}
	return nil
}

func (r *Ba2Reader) readNames() error {
	if _, err := r.f.Seek(int64(r.hdr.NameTableOffset), io.SeekStart); err != nil {
		return xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.readNames", err)
	}
	r.names = make([]string, r.hdr.FileCount)
	for i := range r.names {
		var n uint16
		if err := binary.Read(r.f, binary.LittleEndian, &n); err != nil {
			return xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.readNames", err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r.f, buf); err != nil {
			return xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.readNames", err)
		}
		r.names[i] = string(buf)
	}
	return nil
}

// List returns every file entry.
func (r *Ba2Reader) List() []Ba2Entry {
	entries := make([]Ba2Entry, len(r.files))
	for i, f := range r.files {
		if f.dx10 != nil {
			entries[i] = Ba2Entry{Path: r.names[i], DecompressedSize: dx10DecompressedSize(f), IsTexture: true}
			continue
		}
		size := f.general.UnpackedLen
		if size == 0 {
			size = f.general.PackedLen
		}
		entries[i] = Ba2Entry{Path: r.names[i], DecompressedSize: int64(size)}
	}
	return entries
}

// dx10DecompressedSize is the size of the reconstructed DDS file: the
// synthesized header plus every chunk's unpacked mip data.
func dx10DecompressedSize(f ba2FileInfo) int64 {
	total := int64(ddsHeaderSize)
	for _, c := range f.chunks {
		total += int64(c.UnpackedLength)
	}
	return total
}

// Extract reads and, if packed, zlib-decompresses the named file. For a
// DX10 texture entry, the result is a complete standalone .dds file: a
// synthesized DDS/DX10 header followed by every chunk's mip data,
// reassembled in ascending mip order.
func (r *Ba2Reader) Extract(path string) ([]byte, error) {
	want := normalizePath(path)
	for i, name := range r.names {
		if normalizePath(name) != want {
			continue
		}
		f := r.files[i]
		if f.dx10 != nil {
			return r.extractDX10(f)
		}
		return r.extractRecord(*f.general)
	}
	return nil, xerrors.New(xerrors.KindSourceUnavailable, "bsa.Ba2Reader.Extract", fmt.Errorf("%q not found", path))
}

func (r *Ba2Reader) extractRecord(rec ba2GeneralRecord) ([]byte, error) {
	if _, err := r.f.Seek(int64(rec.Offset), io.SeekStart); err != nil {
		return nil, xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.extractRecord", err)
	}
	if rec.PackedLen == 0 {
		buf := make([]byte, rec.UnpackedLen)
		if _, err := io.ReadFull(r.f, buf); err != nil {
			return nil, xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.extractRecord", err)
		}
		return buf, nil
	}
	packed := make([]byte, rec.PackedLen)
	if _, err := io.ReadFull(r.f, packed); err != nil {
		return nil, xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.extractRecord", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(packed))
	if err != nil {
		return nil, xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.extractRecord", err)
	}
	defer zr.Close()
	out := bytes.NewBuffer(make([]byte, 0, rec.UnpackedLen))
	if _, err := io.Copy(out, zr); err != nil {
		return nil, xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.extractRecord", err)
	}
	return out.Bytes(), nil
}

// extractDX10 reads every chunk of a texture record in ascending mip
// order, decompressing any that are packed, and prepends a synthesized
// DDS/DX10 header built from the record's width/height/mip-count/format.
func (r *Ba2Reader) extractDX10(f ba2FileInfo) ([]byte, error) {
	chunks := make([]dx10Chunk, len(f.chunks))
	copy(chunks, f.chunks)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].StartMip < chunks[j].StartMip })

	var payload bytes.Buffer
	for _, c := range chunks {
		if _, err := r.f.Seek(int64(c.Offset), io.SeekStart); err != nil {
			return nil, xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.extractDX10", err)
		}
		if c.PackedLength == 0 {
			buf := make([]byte, c.UnpackedLength)
			if _, err := io.ReadFull(r.f, buf); err != nil {
				return nil, xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.extractDX10", err)
			}
			payload.Write(buf)
			continue
		}
		packed := make([]byte, c.PackedLength)
		if _, err := io.ReadFull(r.f, packed); err != nil {
			return nil, xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.extractDX10", err)
		}
		zr, err := zlib.NewReader(bytes.NewReader(packed))
		if err != nil {
			return nil, xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.extractDX10", err)
		}
		if _, err := io.Copy(&payload, zr); err != nil {
			zr.Close()
			return nil, xerrors.New(xerrors.KindCorruption, "bsa.Ba2Reader.extractDX10", err)
		}
		zr.Close()
	}

	header := buildDDSHeader(uint32(f.dx10.Width), uint32(f.dx10.Height), uint32(f.dx10.NumMips), uint32(f.dx10.Format), f.dx10.IsCubemap != 0)
	out := make([]byte, 0, len(header)+payload.Len())
	out = append(out, header...)
	out = append(out, payload.Bytes()...)
	return out, nil
}

// ddsHeaderSize is the byte length buildDDSHeader always produces: a
// 4-byte magic, the 124-byte DDS_HEADER, and the 20-byte DDS_HEADER_DXT10
// extension that the "DX10" FourCC pixel format requires.
const ddsHeaderSize = 4 + 124 + 20

// DXGI_FORMAT values (Microsoft's public dxgiformat.h enum) for the block
// families a Bethesda texture archive actually uses.
const (
	dxgiBC1Typeless  = 70
	dxgiBC1SRGB      = 72
	dxgiBC2Typeless  = 73
	dxgiBC3Typeless  = 76
	dxgiBC3SRGB      = 78
	dxgiBC4Typeless  = 79
	dxgiBC4SNorm     = 81
	dxgiBC5Typeless  = 82
	dxgiBC5SNorm     = 84
	dxgiBC6HTypeless = 94
	dxgiBC6HSF16     = 96
	dxgiBC7Typeless  = 97
	dxgiBC7SRGB      = 99
	dxgiR8Unorm      = 61
)

// blockInfo reports the compressed block size in bytes for a DXGI block
// format, or ok=false for an uncompressed format.
func blockInfo(format uint32) (blockSize uint32, ok bool) {
	switch {
	case format >= dxgiBC1Typeless && format <= dxgiBC1SRGB:
		return 8, true
	case format >= dxgiBC2Typeless && format <= dxgiBC3SRGB:
		return 16, true
	case format >= dxgiBC4Typeless && format <= dxgiBC4SNorm:
		return 8, true
	case format >= dxgiBC5Typeless && format <= dxgiBC5SNorm:
		return 16, true
	case format >= dxgiBC6HTypeless && format <= dxgiBC6HSF16:
		return 16, true
	case format >= dxgiBC7Typeless && format <= dxgiBC7SRGB:
		return 16, true
	default:
		return 0, false
	}
}

// buildDDSHeader assembles a standard DDS file header (magic + DDS_HEADER
// + DDS_HEADER_DXT10) around a DX10 texture record's dimensions. Pixel
// data is never decoded or re-encoded here (BC-block transcoding is out of
// scope); this only reproduces the container the game engine expects the
// raw block/pixel bytes to sit inside.
func buildDDSHeader(width, height, mipCount, dxgiFormat uint32, isCubemap bool) []byte {
	var buf bytes.Buffer
	buf.WriteString("DDS ")
	binary.Write(&buf, binary.LittleEndian, uint32(124)) // dwSize

	const (
		ddsdCaps        = 0x1
		ddsdHeight      = 0x2
		ddsdWidth       = 0x4
		ddsdPitch       = 0x8
		ddsdPixelFormat = 0x1000
		ddsdMipMapCount = 0x20000
		ddsdLinearSize  = 0x80000
	)
	flags := uint32(ddsdCaps | ddsdHeight | ddsdWidth | ddsdPixelFormat)
	if mipCount > 1 {
		flags |= ddsdMipMapCount
	}

	var pitchOrLinearSize uint32
	if blockSize, compressed := blockInfo(dxgiFormat); compressed {
		flags |= ddsdLinearSize
		blocksWide := (width + 3) / 4
		blocksHigh := (height + 3) / 4
		pitchOrLinearSize = blocksWide * blocksHigh * blockSize
	} else {
		flags |= ddsdPitch
		bitsPerPixel := uint32(32)
		if dxgiFormat == dxgiR8Unorm {
			bitsPerPixel = 8
		}
		pitchOrLinearSize = (width*bitsPerPixel + 7) / 8
	}

	binary.Write(&buf, binary.LittleEndian, flags)
	binary.Write(&buf, binary.LittleEndian, height)
	binary.Write(&buf, binary.LittleEndian, width)
	binary.Write(&buf, binary.LittleEndian, pitchOrLinearSize)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // depth
	binary.Write(&buf, binary.LittleEndian, mipCount)
	for i := 0; i < 11; i++ {
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // reserved1
	}

	// DDS_PIXELFORMAT: DDPF_FOURCC "DX10" with every other field zeroed,
	// signaling the real format lives in the DX10 extension below.
	binary.Write(&buf, binary.LittleEndian, uint32(32)) // dwSize
	binary.Write(&buf, binary.LittleEndian, uint32(0x4)) // DDPF_FOURCC
	buf.WriteString("DX10")
	for i := 0; i < 5; i++ {
		binary.Write(&buf, binary.LittleEndian, uint32(0)) // RGBBitCount + 4 masks
	}

	const ddscapsTexture, ddscapsComplex, ddscapsMipmap = 0x1000, 0x8, 0x400000
	caps := uint32(ddscapsTexture)
	if mipCount > 1 {
		caps |= ddscapsComplex | ddscapsMipmap
	}
	binary.Write(&buf, binary.LittleEndian, caps)
	const ddscaps2Cubemap = 0xFE00 // cubemap + all six faces
	caps2 := uint32(0)
	if isCubemap {
		caps2 = ddscaps2Cubemap
	}
	binary.Write(&buf, binary.LittleEndian, caps2)
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // caps3
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // caps4
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // reserved2

	// DDS_HEADER_DXT10 extension.
	binary.Write(&buf, binary.LittleEndian, dxgiFormat)
	binary.Write(&buf, binary.LittleEndian, uint32(3)) // D3D10_RESOURCE_DIMENSION_TEXTURE2D
	miscFlag := uint32(0)
	if isCubemap {
		miscFlag = 0x4 // DDS_RESOURCE_MISC_TEXTURECUBE
	}
	binary.Write(&buf, binary.LittleEndian, miscFlag)
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // arraySize
	binary.Write(&buf, binary.LittleEndian, uint32(0)) // miscFlags2

	return buf.Bytes()
}
