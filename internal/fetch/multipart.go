package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/mosaicgate/collector/internal/progress"
	"github.com/mosaicgate/collector/internal/resolver"
	"github.com/mosaicgate/collector/internal/xerrors"
)

// MultiPart fetches every part of a CDN-assembled archive into its own
// temp file under filepath.Dir(dest), then concatenates them in ascending
// Index order into dest, verifying each part's length and the final total
// against expectedSize (§4.4's multi-part assembly rule, P5's ordering
// requirement). The resolver already sorts by Index, but this is the
// layer that actually performs the concatenation, so it sorts its own
// input rather than trusting the caller's ordering.
func MultiPart(ctx context.Context, parts []resolver.PartPlan, dest string, expectedSize int64, modName string, modIndex, modCount int, sink progress.Sink) error {
	if len(parts) == 0 {
		return xerrors.New(xerrors.KindConfig, "fetch.MultiPart", fmt.Errorf("no parts to fetch"))
	}
	parts = append([]resolver.PartPlan(nil), parts...)
	sort.Slice(parts, func(i, j int) bool { return parts[i].Index < parts[j].Index })

	dir := filepath.Dir(dest)
	partPaths := make([]string, len(parts))
	for i, p := range parts {
		partPaths[i] = filepath.Join(dir, fmt.Sprintf(".%s.part%03d", filepath.Base(dest), p.Index))
	}

	for i, p := range parts {
		t := Target{URL: p.URL, Dest: partPaths[i], ExpectedSize: p.Size, ModName: modName, ModIndex: modIndex, ModCount: modCount}
		if err := File(ctx, t, sink); err != nil {
			return err
		}
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "fetch.MultiPart", err)
	}
	defer out.Close()

	var total int64
	for i, path := range partPaths {
		n, err := appendPart(out, path)
		if err != nil {
			return xerrors.New(xerrors.KindCorruption, "fetch.MultiPart", err)
		}
		if n != parts[i].Size {
			return xerrors.New(xerrors.KindCorruption, "fetch.MultiPart", fmt.Errorf("part %d length %d does not match declared size %d", parts[i].Index, n, parts[i].Size))
		}
		total += n
		os.Remove(path)
	}
	if err := out.Close(); err != nil {
		return xerrors.New(xerrors.KindConfig, "fetch.MultiPart", err)
	}
	if expectedSize > 0 && total != expectedSize {
		os.Remove(dest)
		return xerrors.New(xerrors.KindCorruption, "fetch.MultiPart", fmt.Errorf("assembled total %d does not match expected %d", total, expectedSize))
	}
	return nil
}

func appendPart(dst *os.File, partPath string) (int64, error) {
	src, err := os.Open(partPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	return io.Copy(dst, src)
}
