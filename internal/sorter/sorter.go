// Package sorter implements the plugin sorter half of the external tool
// bridge (design component C11): a masterlist-driven plugin load-order
// sorter, bridged as a child process rather than a library binding, since
// no Go binding for a masterlist sorting engine exists in the example
// pack.
package sorter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mosaicgate/collector/internal/httpclient"
	"github.com/mosaicgate/collector/internal/xerrors"
)

// ErrMasterlistNotLoaded is returned by SortAll when no masterlist has
// been successfully loaded; sorting must refuse rather than silently fall
// back to an unsorted list (P8).
var ErrMasterlistNotLoaded = errors.New("sorter: masterlist not loaded")

// masterlistURLs maps a game type to the well-known URL its masterlist is
// published at, the same per-game convention the reference tool's sorter
// bridge reads from.
var masterlistURLs = map[string]string{
	"skyrimse": "https://raw.githubusercontent.com/loot/skyrimse/v0.21/masterlist.yaml",
	"fallout4": "https://raw.githubusercontent.com/loot/fallout4/v0.17/masterlist.yaml",
	"skyrim":   "https://raw.githubusercontent.com/loot/skyrim/v0.16/masterlist.yaml",
	"fallout3": "https://raw.githubusercontent.com/loot/fallout3/v0.5/masterlist.yaml",
	"falloutnv": "https://raw.githubusercontent.com/loot/falloutnv/v0.14/masterlist.yaml",
}

// Sorter drives an external masterlist-based plugin sorter CLI (a
// loot-sort-style tool, or the real LOOT CLI when present on PATH).
type Sorter struct {
	gameType   string
	gamePath   string
	modsDir    string
	binary     string
	dataPaths  []string
	masterlist string // local path to the loaded masterlist file, empty until loaded
}

// New initializes a sorter for one game installation; it does not itself
// load a masterlist or touch the external binary.
func New(gameType, gamePath, modsDir string) (*Sorter, error) {
	binary, err := locateBinary()
	if err != nil {
		return nil, err
	}
	return &Sorter{gameType: strings.ToLower(gameType), gamePath: gamePath, modsDir: modsDir, binary: binary}, nil
}

// locateBinary searches PATH for a sorter CLI, preferring the real LOOT CLI
// name and falling back to a generically named loot-sort tool.
func locateBinary() (string, error) {
	for _, name := range []string{"lootcli", "loot-sort", "loot"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", xerrors.New(xerrors.KindExternalTool, "sorter.locateBinary", fmt.Errorf("no plugin sorter binary (lootcli, loot-sort, loot) found on PATH"))
}

// LoadMasterlist downloads (if cachePath is absent) and caches the
// masterlist for this sorter's game type, persisting it under cachePath.
// An existing file at cachePath is used as is, whatever its age.
func LoadMasterlist(ctx context.Context, s *Sorter, cachePath string) error {
	if _, err := os.Stat(cachePath); err == nil {
		s.masterlist = cachePath
		return nil
	}

	url, ok := masterlistURLs[s.gameType]
	if !ok {
		return xerrors.New(xerrors.KindConfig, "sorter.LoadMasterlist", fmt.Errorf("no known masterlist URL for game type %q", s.gameType))
	}

	resp, err := httpclient.Get(ctx, url)
	if err != nil {
		return xerrors.New(xerrors.KindTransient, "sorter.LoadMasterlist", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return xerrors.New(xerrors.KindSourceUnavailable, "sorter.LoadMasterlist", fmt.Errorf("masterlist fetch: status %d", resp.StatusCode))
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return xerrors.New(xerrors.KindConfig, "sorter.LoadMasterlist", err)
	}
	tmp := cachePath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return xerrors.New(xerrors.KindConfig, "sorter.LoadMasterlist", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return xerrors.New(xerrors.KindTransient, "sorter.LoadMasterlist", err)
	}
	f.Close()
	if err := os.Rename(tmp, cachePath); err != nil {
		return xerrors.New(xerrors.KindConfig, "sorter.LoadMasterlist", err)
	}

	s.masterlist = cachePath
	return nil
}

// SetAdditionalDataPaths records one data path per mod subdirectory, fed to
// the sorter binary as extra plugin search roots.
func (s *Sorter) SetAdditionalDataPaths(paths []string) {
	s.dataPaths = append([]string(nil), paths...)
}

// SortAll sorts plugins (filenames, not full paths) into their final load
// order. It refuses with ErrMasterlistNotLoaded if LoadMasterlist was never
// called successfully.
func (s *Sorter) SortAll(ctx context.Context, plugins []string) ([]string, error) {
	if s.masterlist == "" {
		return nil, ErrMasterlistNotLoaded
	}

	args := []string{
		"--game", s.gameType,
		"--gamePath", s.gamePath,
		"--masterlistPath", s.masterlist,
	}
	for _, p := range s.dataPaths {
		args = append(args, "--dataPath", p)
	}
	for _, p := range plugins {
		args = append(args, "--plugin", p)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, s.binary, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return nil, xerrors.New(xerrors.KindExternalTool, "sorter.SortAll", fmt.Errorf("%s: %w: %s", s.binary, err, out.String()))
	}

	var sorted []string
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			sorted = append(sorted, line)
		}
	}
	if len(sorted) != len(plugins) {
		return nil, xerrors.New(xerrors.KindExternalTool, "sorter.SortAll", fmt.Errorf("sorter returned %d plugins, expected %d", len(sorted), len(plugins)))
	}
	return sorted, nil
}
