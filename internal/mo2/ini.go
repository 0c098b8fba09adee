// Package mo2 renders the manager layout that the installed collection is
// handed off to: the manager INI, its profile directory, and the
// modlist.txt/plugins.txt/loadorder.txt trio. It owns no game logic; it
// only knows how to serialize the shapes §6 documents.
package mo2

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// Executable is one entry under [customExecutables].
type Executable struct {
	Title            string
	Binary           string
	Arguments        string
	WorkingDirectory string
	Hide             bool
	OwnIcon          bool
	SteamAppID       string
	Toolbar          bool
}

// General holds the [General] section's fields.
type General struct {
	GameName        string
	SelectedProfile string
	GamePath        string
	GameEdition     string
	Version         string
	FirstStart      bool
}

// IniConfig is everything needed to render the manager's main INI file.
type IniConfig struct {
	General            General
	Executables        []Executable
	ProfileLocalInis   bool
	ProfileLocalSaves  bool
}

// WindowsPath translates a native path into the Z:\\-prefixed,
// doubled-backslash form the manager's translation layer expects, so the
// INI can be read unmodified by a Windows-targeted parser running under a
// compatibility layer.
func WindowsPath(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	p = strings.TrimPrefix(p, `\`)
	doubled := strings.ReplaceAll(p, `\`, `\\`)
	return `Z:\\` + doubled
}

// WriteIni renders cfg to path in the manager's INI format.
func WriteIni(path string, cfg IniConfig) error {
	var b strings.Builder

	fmt.Fprintln(&b, "[General]")
	fmt.Fprintf(&b, "gameName=%s\n", cfg.General.GameName)
	fmt.Fprintf(&b, "selected_profile=%s\n", cfg.General.SelectedProfile)
	fmt.Fprintf(&b, "gamePath=%s\n", WindowsPath(cfg.General.GamePath))
	fmt.Fprintf(&b, "game_edition=%s\n", cfg.General.GameEdition)
	fmt.Fprintf(&b, "version=%s\n", cfg.General.Version)
	fmt.Fprintf(&b, "first_start=%s\n", boolStr(cfg.General.FirstStart))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[customExecutables]")
	fmt.Fprintf(&b, "size=%d\n", len(cfg.Executables))
	for i, e := range cfg.Executables {
		n := i + 1
		fmt.Fprintf(&b, "%d\\arguments=%s\n", n, e.Arguments)
		fmt.Fprintf(&b, "%d\\binary=%s\n", n, WindowsPath(e.Binary))
		fmt.Fprintf(&b, "%d\\hide=%s\n", n, boolStr(e.Hide))
		fmt.Fprintf(&b, "%d\\ownicon=%s\n", n, boolStr(e.OwnIcon))
		fmt.Fprintf(&b, "%d\\steamAppID=%s\n", n, e.SteamAppID)
		fmt.Fprintf(&b, "%d\\title=%s\n", n, e.Title)
		fmt.Fprintf(&b, "%d\\toolbar=%s\n", n, boolStr(e.Toolbar))
		fmt.Fprintf(&b, "%d\\workingDirectory=%s\n", n, WindowsPath(e.WorkingDirectory))
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[Settings]")
	fmt.Fprintf(&b, "profile_local_inis=%s\n", boolStr(cfg.ProfileLocalInis))
	fmt.Fprintf(&b, "profile_local_saves=%s\n", boolStr(cfg.ProfileLocalSaves))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[Plugins]")
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[pluginBlacklist]")
	fmt.Fprintln(&b, "size=0")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return xerrors.New(xerrors.KindConfig, "mo2.WriteIni", err)
	}
	return nil
}

func boolStr(b bool) string {
	return strconv.FormatBool(b)
}
