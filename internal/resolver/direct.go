package resolver

import (
	"context"
	"fmt"

	"github.com/mosaicgate/collector/internal/store"
	"github.com/mosaicgate/collector/internal/xerrors"
)

// DirectHttpResolver handles the DirectHttp variant: the manifest's URL is
// used as-is, no resolution I/O required.
type DirectHttpResolver struct{}

// Resolve implements Resolver.
func (DirectHttpResolver) Resolve(_ context.Context, archive store.Archive) (Plan, error) {
	if archive.Source.URL == "" {
		return Plan{}, xerrors.New(xerrors.KindConfig, "resolver.DirectHttp", fmt.Errorf("archive %q has no direct URL", archive.Filename))
	}
	return Plan{URL: archive.Source.URL}, nil
}

// LocalGameFileResolver handles the LocalGameFile variant: case-insensitive
// resolution under the game directory and its Data subdirectory. No
// network I/O; the "plan" is a file:// style local path the fetch engine
// copies instead of downloading.
type LocalGameFileResolver struct {
	GamePath string
	DataDir  string
}

// Resolve implements Resolver.
func (l *LocalGameFileResolver) Resolve(_ context.Context, archive store.Archive) (Plan, error) {
	path, err := findCaseInsensitive(l.DataDir, archive.Filename)
	if err != nil {
		path, err = findCaseInsensitive(l.GamePath, archive.Filename)
	}
	if err != nil {
		return Plan{}, xerrors.New(xerrors.KindSourceUnavailable, "resolver.LocalGameFile", err)
	}
	return Plan{URL: "file://" + path}, nil
}

// ManualResolver handles Manual and OpaqueCloud: no plan, surfaced as a
// user task carrying the URL, expected size, and prompt text.
type ManualResolver struct{}

// Resolve implements Resolver.
func (ManualResolver) Resolve(_ context.Context, archive store.Archive) (Plan, error) {
	prompt := archive.Source.Prompt
	if prompt == "" {
		prompt = fmt.Sprintf("manually download %q (%d bytes) and place it at the expected archive path", archive.Filename, archive.ExpectedSize)
	}
	return Plan{ManualPrompt: prompt}, nil
}

func errUnknownSourceKind(kind store.SourceKind) error {
	return xerrors.New(xerrors.KindConfig, "resolver.Resolve", fmt.Errorf("no resolver registered for source kind %q", kind))
}
