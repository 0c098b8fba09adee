// Package patch implements the binary-delta patcher (design component C9):
// a from-scratch bsdiff/bspatch-format reader, applied to an in-memory
// source to produce the patched output, plus a content-addressed cache of
// previously computed results.
//
// No bsdiff binding exists anywhere in the example pack; the format is a
// small, widely documented one (magic header, three control-triple
// integers, three bzip2 streams), so it is implemented directly against
// the standard library's compress/bzip2 reader rather than shelling out.
package patch

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mosaicgate/collector/internal/xerrors"
)

var magic = [8]byte{'B', 'S', 'D', 'I', 'F', 'F', '4', '0'}

// header is the 32-byte bsdiff patch header.
type header struct {
	Magic      [8]byte
	CtrlLen    int64
	DiffLen    int64
	NewSize    int64
}

// Apply reconstructs the new content given the old content and a bsdiff
// patch, the shape the patcher (C9) drives per mod.
func Apply(old []byte, patchData []byte) ([]byte, error) {
	if len(patchData) < 32 {
		return nil, xerrors.New(xerrors.KindCorruption, "patch.Apply", fmt.Errorf("patch too short to contain a header"))
	}

	var hdr header
	r := bytes.NewReader(patchData)
	if err := binary.Read(r, binary.LittleEndian, &hdr.Magic); err != nil {
		return nil, xerrors.New(xerrors.KindCorruption, "patch.Apply", err)
	}
	if hdr.Magic != magic {
		return nil, xerrors.New(xerrors.KindCorruption, "patch.Apply", fmt.Errorf("bad bsdiff magic"))
	}
	hdr.CtrlLen = readOffT(patchData[8:16])
	hdr.DiffLen = readOffT(patchData[16:24])
	hdr.NewSize = readOffT(patchData[24:32])
	if hdr.CtrlLen < 0 || hdr.DiffLen < 0 || hdr.NewSize < 0 {
		return nil, xerrors.New(xerrors.KindCorruption, "patch.Apply", fmt.Errorf("negative length in patch header"))
	}

	ctrlStart := int64(32)
	diffStart := ctrlStart + hdr.CtrlLen
	extraStart := diffStart + hdr.DiffLen
	if extraStart > int64(len(patchData)) {
		return nil, xerrors.New(xerrors.KindCorruption, "patch.Apply", fmt.Errorf("patch truncated before extra stream"))
	}

	ctrlReader := bzip2.NewReader(bytes.NewReader(patchData[ctrlStart:diffStart]))
	diffReader := bzip2.NewReader(bytes.NewReader(patchData[diffStart:extraStart]))
	extraReader := bzip2.NewReader(bytes.NewReader(patchData[extraStart:]))

	out := make([]byte, hdr.NewSize)
	var oldPos, newPos int64

	for newPos < hdr.NewSize {
		addLen, copyLen, seekLen, err := readControlTriple(ctrlReader)
		if err != nil {
			return nil, xerrors.New(xerrors.KindCorruption, "patch.Apply", fmt.Errorf("control triple: %w", err))
		}

		if newPos+addLen > hdr.NewSize {
			return nil, xerrors.New(xerrors.KindCorruption, "patch.Apply", fmt.Errorf("add block overruns new size"))
		}
		diff := make([]byte, addLen)
		if _, err := io.ReadFull(diffReader, diff); err != nil {
			return nil, xerrors.New(xerrors.KindCorruption, "patch.Apply", fmt.Errorf("diff stream: %w", err))
		}
		for i := int64(0); i < addLen; i++ {
			var oldByte byte
			if oldPos+i >= 0 && oldPos+i < int64(len(old)) {
				oldByte = old[oldPos+i]
			}
			out[newPos+i] = diff[i] + oldByte
		}
		newPos += addLen
		oldPos += addLen

		if newPos+copyLen > hdr.NewSize {
			return nil, xerrors.New(xerrors.KindCorruption, "patch.Apply", fmt.Errorf("copy block overruns new size"))
		}
		extra := make([]byte, copyLen)
		if _, err := io.ReadFull(extraReader, extra); err != nil {
			return nil, xerrors.New(xerrors.KindCorruption, "patch.Apply", fmt.Errorf("extra stream: %w", err))
		}
		copy(out[newPos:newPos+copyLen], extra)
		newPos += copyLen
		oldPos += seekLen
	}

	return out, nil
}

// readControlTriple reads the three signed off_t-encoded integers that
// make up one bsdiff control record.
func readControlTriple(r io.Reader) (addLen, copyLen, seekLen int64, err error) {
	buf := make([]byte, 24)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, 0, 0, err
	}
	return readOffT(buf[0:8]), readOffT(buf[8:16]), readOffT(buf[16:24]), nil
}

// readOffT decodes bsdiff's signed 64-bit integer encoding: little-endian
// magnitude in the low 63 bits, sign in the top bit of the high byte.
func readOffT(b []byte) int64 {
	v := int64(binary.LittleEndian.Uint64(b) & 0x7FFFFFFFFFFFFFFF)
	if b[7]&0x80 != 0 {
		v = -v
	}
	return v
}
