package mo2

import (
	"os"
	"path/filepath"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// Layout is the canonical directory set under one manager instance root.
type Layout struct {
	Root        string
	ModsDir     string
	ProfilesDir string
	DownloadsDir string
}

// NewLayout derives the canonical subdirectories from root.
func NewLayout(root string) Layout {
	return Layout{
		Root:         root,
		ModsDir:      filepath.Join(root, "mods"),
		ProfilesDir:  filepath.Join(root, "profiles"),
		DownloadsDir: filepath.Join(root, "downloads"),
	}
}

// Provision creates every directory in the layout and the named profile's
// subdirectory, the step the installer's provisioning phase drives before
// writing any INI or profile file.
func (l Layout) Provision(profileName string) error {
	dirs := []string{l.Root, l.ModsDir, l.ProfilesDir, l.DownloadsDir, filepath.Join(l.ProfilesDir, profileName)}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return xerrors.New(xerrors.KindConfig, "mo2.Layout.Provision", err)
		}
	}
	return nil
}

// ProfileDir returns the directory for a named profile.
func (l Layout) ProfileDir(profileName string) string {
	return filepath.Join(l.ProfilesDir, profileName)
}

// ModDir returns the install directory for a mod's folder name.
func (l Layout) ModDir(folderName string) string {
	return filepath.Join(l.ModsDir, folderName)
}
