package fetch

import (
	"context"
	"os"

	"github.com/mosaicgate/collector/internal/store"
)

// ScanResult partitions a set of archives into those whose on-disk payload
// already matches the expected size (skip) and those that still need
// fetching, per §4.4's "smart skip" precondition scan.
type ScanResult struct {
	Skip      []store.Archive
	NeedFetch []store.Archive
}

// Scan inspects destPath(archive) for every archive and classifies it.
// An archive present with the wrong size is deleted so the caller re-fetches
// it from zero rather than resuming a corrupt partial.
func Scan(ctx context.Context, archives []store.Archive, destPath func(store.Archive) string) (ScanResult, error) {
	var res ScanResult
	for _, a := range archives {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		path := destPath(a)
		info, err := os.Stat(path)
		switch {
		case os.IsNotExist(err):
			res.NeedFetch = append(res.NeedFetch, a)
		case err != nil:
			res.NeedFetch = append(res.NeedFetch, a)
		case a.ExpectedSize > 0 && info.Size() != a.ExpectedSize:
			os.Remove(path)
			res.NeedFetch = append(res.NeedFetch, a)
		default:
			res.Skip = append(res.Skip, a)
		}
	}
	return res, nil
}
