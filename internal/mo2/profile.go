package mo2

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mosaicgate/collector/internal/gamedata"
	"github.com/mosaicgate/collector/internal/loadorder"
	"github.com/mosaicgate/collector/internal/xerrors"
)

// ModEntry is one line of modlist.txt: a mod folder name and whether it is
// currently enabled.
type ModEntry struct {
	FolderName string
	Enabled    bool
}

// WriteModList renders modlist.txt: one "+"/"-" prefixed line per mod, in
// modOrder's given order. The manager convention is bottom-of-file =
// highest priority, so the list is written in reverse of modOrder (the
// caller's modOrder is assumed lowest-priority-first, matching the blended
// load order's "earlier loads first" convention).
func WriteModList(path string, modOrder []ModEntry) error {
	var b strings.Builder
	for i := len(modOrder) - 1; i >= 0; i-- {
		m := modOrder[i]
		prefix := "-"
		if m.Enabled {
			prefix = "+"
		}
		fmt.Fprintf(&b, "%s%s\n", prefix, m.FolderName)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return xerrors.New(xerrors.KindConfig, "mo2.WriteModList", err)
	}
	return nil
}

// WritePluginProfile renders plugins.txt and loadorder.txt for game type t,
// delegating the actual rendering to loadorder.WritePluginFiles with this
// game's base-master exclusion list.
func WritePluginProfile(profileDir string, t gamedata.Type, plugins []loadorder.PluginEntry) error {
	enabledFirst := filepath.Join(profileDir, "plugins.txt")
	raw := filepath.Join(profileDir, "loadorder.txt")
	return loadorder.WritePluginFiles(enabledFirst, raw, plugins, func(name string) bool {
		return gamedata.IsBasePlugin(t, name)
	})
}
