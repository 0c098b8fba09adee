// Package baseinstaller implements the base-content installer half of the
// external tool bridge (design component C11): a child-process bridge to
// an external cross-wasteland base-pack installer, invoked with its
// `install --mpi` convention and streamed into the progress surface.
package baseinstaller

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/mosaicgate/collector/internal/progress"
	"github.com/mosaicgate/collector/internal/xerrors"
)

// wellKnownPaths lists platform-specific install locations to probe after
// PATH and the per-user cache both miss.
func wellKnownPaths(binary string) []string {
	switch runtime.GOOS {
	case "windows":
		return []string{
			filepath.Join(`C:\Program Files`, binary, binary+".exe"),
			filepath.Join(`C:\Program Files (x86)`, binary, binary+".exe"),
		}
	default:
		return []string{
			filepath.Join("/usr/local/bin", binary),
			filepath.Join("/opt", binary, binary),
		}
	}
}

// Request describes one base-content install invocation.
type Request struct {
	Binary        string // the tool's executable name, e.g. "bgpi"
	PackName      string // the pack identifier passed to --mpi
	GameAFlag     string // e.g. "--skyrim"
	GameAPath     string
	GameBFlag     string // e.g. "--enderal"
	GameBPath     string
	DestPath      string
	ExpectedFiles []string // output files verified relative to DestPath
	CachePath     string   // per-user cache directory probed before well-known paths
}

// Locate resolves the installer binary via PATH, a per-user cache
// directory, and well-known install paths, in that order.
func Locate(req Request) (string, error) {
	if path, err := exec.LookPath(req.Binary); err == nil {
		return path, nil
	}
	if req.CachePath != "" {
		candidate := filepath.Join(req.CachePath, req.Binary)
		if runtime.GOOS == "windows" {
			candidate += ".exe"
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	for _, candidate := range wellKnownPaths(req.Binary) {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", xerrors.New(xerrors.KindExternalTool, "baseinstaller.Locate", fmt.Errorf("%s not found on PATH, cache, or well-known install paths", req.Binary))
}

// Run invokes the installer binary, streaming its combined stdout/stderr
// line-by-line to sink as status events, then verifies every file in
// req.ExpectedFiles exists under req.DestPath.
func Run(ctx context.Context, binaryPath string, req Request, sink progress.Sink) error {
	args := []string{
		"install", "--mpi", req.PackName,
		req.GameAFlag, req.GameAPath,
		req.GameBFlag, req.GameBPath,
		"--dest", req.DestPath,
	}

	cmd := exec.CommandContext(ctx, binaryPath, args...)
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return xerrors.New(xerrors.KindExternalTool, "baseinstaller.Run", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return xerrors.New(xerrors.KindExternalTool, "baseinstaller.Run", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		progress.Status(sink, scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		return xerrors.New(xerrors.KindExternalTool, "baseinstaller.Run", fmt.Errorf("%s %v: %w", binaryPath, args, err))
	}

	for _, rel := range req.ExpectedFiles {
		path := filepath.Join(req.DestPath, rel)
		if _, err := os.Stat(path); err != nil {
			return xerrors.New(xerrors.KindExternalTool, "baseinstaller.Run", fmt.Errorf("expected output file %q missing after install: %w", rel, err))
		}
	}
	return nil
}
