package patch

import (
	"bytes"
	"encoding/binary"
	"os"
	"os/exec"
	"testing"
)

// writeOffT encodes n in bsdiff's signed off_t format.
func writeOffT(n int64) []byte {
	buf := make([]byte, 8)
	neg := n < 0
	if neg {
		n = -n
	}
	binary.LittleEndian.PutUint64(buf, uint64(n))
	if neg {
		buf[7] |= 0x80
	}
	return buf
}

// buildPatch assembles a minimal single-triple bsdiff patch: one control
// record (addLen, copyLen, seekLen), a diff block of addLen bytes and an
// extra block of copyLen bytes, each bzip2-compressed independently (the
// real bsdiff writer also bzip2's each stream separately).
func buildPatch(t *testing.T, addLen, copyLen, seekLen int64, diff, extra []byte) []byte {
	t.Helper()

	ctrl := append(append(writeOffT(addLen), writeOffT(copyLen)...), writeOffT(seekLen)...)

	ctrlBz := bzip2Compress(t, ctrl)
	diffBz := bzip2Compress(t, diff)
	extraBz := bzip2Compress(t, extra)

	newSize := addLen + copyLen
	var out bytes.Buffer
	out.Write(magic[:])
	out.Write(writeOffT(int64(len(ctrlBz))))
	out.Write(writeOffT(int64(len(diffBz))))
	out.Write(writeOffT(newSize))
	out.Write(ctrlBz)
	out.Write(diffBz)
	out.Write(extraBz)
	return out.Bytes()
}

// bzip2Compress shells out to the system bzip2 binary since the standard
// library only ships a bzip2 reader, not a writer; skips the test if bzip2
// is unavailable in the environment.
func bzip2Compress(t *testing.T, data []byte) []byte {
	t.Helper()
	path, err := exec.LookPath("bzip2")
	if err != nil {
		t.Skip("bzip2 binary not available to build a test fixture")
	}
	cmd := exec.Command(path, "-z", "-c")
	cmd.Stdin = bytes.NewReader(data)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		t.Fatalf("bzip2 compress: %v", err)
	}
	return out.Bytes()
}

func TestApplyPureAdd(t *testing.T) {
	old := []byte("AAAA")
	diff := []byte{'X' - 'A', 'Y' - 'A', 'Z' - 'A', 'W' - 'A'}
	p := buildPatch(t, 4, 0, 0, diff, nil)

	out, err := Apply(old, p)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(out) != "XYZW" {
		t.Fatalf("got %q, want XYZW", out)
	}
}

func TestApplyPureCopy(t *testing.T) {
	extra := []byte("hello")
	p := buildPatch(t, 0, 5, 0, nil, extra)

	out, err := Apply(nil, p)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(out) != "hello" {
		t.Fatalf("got %q, want hello", out)
	}
}

func TestApplyBadMagic(t *testing.T) {
	_, err := Apply([]byte("x"), []byte("NOTAPATCHHEADERBYTES0000000000000000"))
	if err == nil {
		t.Fatal("expected an error for a bad magic header")
	}
}

func TestCachePutGetAndLink(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenCache(dir)
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}

	key, err := cache.Put([]byte("patched content"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, ok, err := cache.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(data) != "patched content" {
		t.Fatalf("got %q", data)
	}

	dest := dir + "/out/result.bin"
	if err := cache.LinkOrCopy(key, dest); err != nil {
		t.Fatalf("LinkOrCopy: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil || string(got) != "patched content" {
		t.Fatalf("LinkOrCopy result: %v %q", err, got)
	}
}

func TestApplyCachedUsesExpectedHash(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenCache(dir)
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}

	precomputed := []byte("already known output")
	key, err := cache.Put(precomputed)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	out, err := ApplyCached(cache, nil, nil, key)
	if err != nil {
		t.Fatalf("ApplyCached: %v", err)
	}
	if string(out) != string(precomputed) {
		t.Fatalf("got %q, want %q", out, precomputed)
	}
}
