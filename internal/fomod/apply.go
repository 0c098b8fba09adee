package fomod

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// Report summarizes one mod's scripted-installer execution.
type Report struct {
	FilesInstalled   int
	FoldersInstalled int
}

// IsolatedTempDir creates a per-mod working directory under
// installRoot/.fomod-tmp, named with a random uuid rather than the system
// temp directory, so a crash mid-run never scatters partial installer
// output outside the managed install tree.
func IsolatedTempDir(installRoot string) (string, error) {
	base := filepath.Join(installRoot, ".fomod-tmp")
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", xerrors.New(xerrors.KindConfig, "fomod.IsolatedTempDir", err)
	}
	dir := filepath.Join(base, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", xerrors.New(xerrors.KindConfig, "fomod.IsolatedTempDir", err)
	}
	return dir, nil
}

// Apply executes plan against extractedRoot (the directory the archive was
// extracted into), copying files and folders into destRoot (the mod's
// final installed folder). Source paths are matched case-insensitively
// since FOMOD source attributes frequently disagree in case with the
// archive's actual entries.
func Apply(plan CopyPlan, extractedRoot, destRoot string) (Report, error) {
	var report Report

	index, err := buildCaseInsensitiveIndex(extractedRoot)
	if err != nil {
		return report, err
	}

	for _, f := range plan.Files {
		src, ok := index[normalizeFomodPath(f.Source)]
		if !ok {
			return report, xerrors.New(xerrors.KindCorruption, "fomod.Apply", fmt.Errorf("source file %q not found in extracted archive", f.Source))
		}
		dest := filepath.Join(destRoot, destinationFor(f))
		if err := copyFile(src, dest); err != nil {
			return report, xerrors.New(xerrors.KindConfig, "fomod.Apply", err)
		}
		report.FilesInstalled++
	}

	for _, f := range plan.Folders {
		src, ok := index[normalizeFomodPath(f.Source)]
		if !ok {
			return report, xerrors.New(xerrors.KindCorruption, "fomod.Apply", fmt.Errorf("source folder %q not found in extracted archive", f.Source))
		}
		dest := filepath.Join(destRoot, destinationFor(f))
		n, err := copyTree(src, dest)
		if err != nil {
			return report, xerrors.New(xerrors.KindConfig, "fomod.Apply", err)
		}
		report.FoldersInstalled++
		report.FilesInstalled += n
	}

	return report, nil
}

// destinationFor returns the relative install path for a FileOp: an empty
// Destination means "same relative layout as Source", matching the FOMOD
// schema's documented default.
func destinationFor(f FileOp) string {
	if f.Destination == "" {
		return f.Source
	}
	return f.Destination
}

func normalizeFomodPath(p string) string {
	return strings.ToLower(strings.ReplaceAll(filepath.ToSlash(p), "\\", "/"))
}

// buildCaseInsensitiveIndex maps every normalized relative path under root
// to its real on-disk path, so FOMOD source attributes can be resolved
// without requiring exact case or separator matches.
func buildCaseInsensitiveIndex(root string) (map[string]string, error) {
	index := make(map[string]string)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		index[normalizeFomodPath(rel)] = path
		if info.IsDir() {
			index[normalizeFomodPath(rel)+"/"] = path
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.New(xerrors.KindConfig, "fomod.buildCaseInsensitiveIndex", err)
	}
	return index, nil
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %q: %w", src, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create %q: %w", dest, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %q to %q: %w", src, dest, err)
	}
	return nil
}

func copyTree(srcRoot, destRoot string) (int, error) {
	count := 0
	err := filepath.Walk(srcRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(destRoot, rel)
		if info.IsDir() {
			return os.MkdirAll(dest, 0o755)
		}
		if err := copyFile(path, dest); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}
