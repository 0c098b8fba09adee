package bsa

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestBuilderRoundTripUncompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.bsa")

	b := NewBuilder(VersionOblivion, DefaultFlagsOblivion())
	b.Add(`meshes\armor\helmet.nif`, []byte("nif payload"))
	b.Add(`textures\armor\helmet.dds`, []byte("dds payload"))
	if err := b.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	entries := r.List()
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}

	data, err := r.Extract(`Meshes\Armor\Helmet.nif`)
	if err != nil {
		t.Fatalf("Extract (case-insensitive): %v", err)
	}
	if string(data) != "nif payload" {
		t.Fatalf("Extract returned %q, want %q", data, "nif payload")
	}
}

func TestBuilderRoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "compressed.bsa")

	b := NewBuilder(VersionFO3, DefaultFlagsFO3())
	content := bytes.Repeat([]byte("abcdefgh"), 4096)
	b.Add(`sound\fx\boom.wav`, content)
	if err := b.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	data, err := r.Extract(`sound/fx/boom.wav`)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Fatalf("Extract returned %d bytes, want %d matching original", len(data), len(content))
	}
}

func TestDetectVersionAndTypes(t *testing.T) {
	if v := DetectVersion("Oblivion - Meshes.bsa"); v != VersionOblivion {
		t.Errorf("DetectVersion(oblivion) = %v, want VersionOblivion", v)
	}
	if v := DetectVersion("Skyrim - Textures.bsa"); v != VersionFO3 {
		t.Errorf("DetectVersion(skyrim) = %v, want VersionFO3", v)
	}
	if ty := DetectTypes("MyMod - Textures.bsa"); ty != TypeTextures {
		t.Errorf("DetectTypes(textures) = %v, want TypeTextures", ty)
	}
	if ty := DetectTypes("MyMod - MenuVoices.bsa"); ty != TypeMenus|TypeVoices {
		t.Errorf("DetectTypes(menuvoices) = %v, want TypeMenus|TypeVoices", ty)
	}
}

func TestDetectMagicBytes(t *testing.T) {
	dir := t.TempDir()
	bsaPath := filepath.Join(dir, "weird_name.dat")
	if err := os.WriteFile(bsaPath, append([]byte{0x42, 0x53, 0x41, 0x00}, make([]byte, 32)...), 0o644); err != nil {
		t.Fatal(err)
	}
	format, err := Detect(bsaPath)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if format != FormatBSA {
		t.Errorf("Detect = %v, want FormatBSA", format)
	}
}

func TestBa2BuilderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.ba2")

	b := NewBa2Builder(true)
	b.Add("textures/armor/cuirass.dds", bytes.Repeat([]byte("tex"), 1000))
	b.Add("meshes/armor/cuirass.nif", []byte("mesh data"))
	if err := b.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := OpenBa2(path)
	if err != nil {
		t.Fatalf("OpenBa2: %v", err)
	}
	defer r.Close()

	data, err := r.Extract("Meshes/Armor/Cuirass.nif")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if string(data) != "mesh data" {
		t.Fatalf("Extract returned %q", data)
	}
}

func TestBa2DX10RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "textures.ba2")

	mip0 := bytes.Repeat([]byte("A"), 32)
	mip1 := bytes.Repeat([]byte("B"), 8)
	name := "textures/rock01_d.dds"

	var buf bytes.Buffer
	hdr := ba2Header{
		Magic:           [4]byte{'B', 'T', 'D', 'X'},
		Version:         1,
		Type:            [4]byte{'D', 'X', '1', '0'},
		FileCount:       1,
		NameTableOffset: 0, // patched below
	}
	mustWrite(t, &buf, hdr)

	rec := dx10Record{
		NameHash:        1,
		Extension:       [4]byte{'d', 'd', 's', 0},
		NumChunks:       2,
		ChunkHeaderSize: 24,
		Height:          8,
		Width:           8,
		NumMips:         2,
		Format:          71, // BC1_UNORM, compressed, block size 8
	}
	mustWrite(t, &buf, rec)

	dataStart := int64(buf.Len()) + 2*24
	chunks := []dx10Chunk{
		{Offset: uint64(dataStart + int64(len(mip1))), PackedLength: 0, UnpackedLength: uint32(len(mip0)), StartMip: 1, EndMip: 1},
		{Offset: uint64(dataStart), PackedLength: 0, UnpackedLength: uint32(len(mip1)), StartMip: 0, EndMip: 0},
	}
	for _, c := range chunks {
		mustWrite(t, &buf, c)
	}
	buf.Write(mip1)
	buf.Write(mip0)

	nameTableOffset := uint64(buf.Len())
	writeBa2Name(t, &buf, name)

	raw := buf.Bytes()
	// patch the header's NameTableOffset field now that it's known.
	binary.LittleEndian.PutUint64(raw[16:24], nameTableOffset)

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r, err := OpenBa2(path)
	if err != nil {
		t.Fatalf("OpenBa2: %v", err)
	}
	defer r.Close()

	entries := r.List()
	if len(entries) != 1 || !entries[0].IsTexture {
		t.Fatalf("List() = %+v, want one texture entry", entries)
	}

	data, err := r.Extract(name)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(data) < ddsHeaderSize || string(data[:4]) != "DDS " {
		t.Fatalf("Extract did not produce a DDS file, got %d bytes starting %q", len(data), data[:min(4, len(data))])
	}
	payload := data[ddsHeaderSize:]
	want := append(append([]byte{}, mip1...), mip0...)
	if !bytes.Equal(payload, want) {
		t.Fatalf("reassembled mip payload = %q, want %q (mip chunks must concatenate in ascending StartMip order)", payload, want)
	}
}

func mustWrite(t *testing.T, w io.Writer, v any) {
	t.Helper()
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		t.Fatalf("binary.Write: %v", err)
	}
}

func writeBa2Name(t *testing.T, w io.Writer, name string) {
	t.Helper()
	mustWrite(t, w, uint16(len(name)))
	if _, err := w.Write([]byte(name)); err != nil {
		t.Fatalf("write name: %v", err)
	}
}

func TestCacheInsertAndGet(t *testing.T) {
	c, err := NewTempCache()
	if err != nil {
		t.Fatalf("NewTempCache: %v", err)
	}
	defer c.Close()

	if err := c.Insert("archive.bsa", `Meshes\Foo.nif`, []byte("hello")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	data, ok, err := c.Get("archive.bsa", "meshes/foo.nif")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(data) != "hello" {
		t.Fatalf("Get = (%q, %v), want (\"hello\", true)", data, ok)
	}

	removed, err := c.Remove("archive.bsa", "MESHES/FOO.NIF")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Fatalf("Remove reported no row removed")
	}
}

func TestCacheInsertBatch(t *testing.T) {
	c, err := NewTempCache()
	if err != nil {
		t.Fatalf("NewTempCache: %v", err)
	}
	defer c.Close()

	count, bytesWritten, err := c.InsertBatch("archive.bsa", []CacheFile{
		{Path: "a.nif", Data: []byte("aaa")},
		{Path: "b.nif", Data: []byte("bb")},
	})
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if count != 2 || bytesWritten != 5 {
		t.Fatalf("InsertBatch = (%d, %d), want (2, 5)", count, bytesWritten)
	}
}
