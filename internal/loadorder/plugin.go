package loadorder

import (
	"fmt"
	"os"
	"strings"

	"github.com/mosaicgate/collector/internal/xerrors"
)

// PluginEntry is one managed plugin in its final sorted position.
type PluginEntry struct {
	Filename string
	Enabled  bool
}

// WritePluginFiles renders the sorted plugin list as the two artifacts the
// manager expects: an asterisk-prefixed "enabled-first" file and a raw
// order file, each with base-game master files omitted (the manager
// re-adds them at load time).
func WritePluginFiles(enabledFirstPath, rawOrderPath string, plugins []PluginEntry, isBaseMaster func(string) bool) error {
	var enabledFirst, raw strings.Builder
	for _, p := range plugins {
		if isBaseMaster(p.Filename) {
			continue
		}
		if p.Enabled {
			fmt.Fprintf(&enabledFirst, "*%s\n", p.Filename)
		} else {
			fmt.Fprintf(&enabledFirst, "%s\n", p.Filename)
		}
		fmt.Fprintf(&raw, "%s\n", p.Filename)
	}

	if err := os.WriteFile(enabledFirstPath, []byte(enabledFirst.String()), 0o644); err != nil {
		return xerrors.New(xerrors.KindConfig, "loadorder.WritePluginFiles", err)
	}
	if err := os.WriteFile(rawOrderPath, []byte(raw.String()), 0o644); err != nil {
		return xerrors.New(xerrors.KindConfig, "loadorder.WritePluginFiles", err)
	}
	return nil
}
