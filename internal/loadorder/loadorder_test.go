package loadorder

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mosaicgate/collector/internal/store"
)

func refFor(folder string) store.ModRef { return store.ModRef{Filename: folder} }

func folderNameFn(known map[string]bool) func(store.ModRef) (string, bool) {
	return func(r store.ModRef) (string, bool) {
		if known[r.Filename] {
			return r.Filename, true
		}
		return "", false
	}
}

func TestDfsFromSinksRespectsBeforeEdges(t *testing.T) {
	g := newGraph([]string{"c", "b", "a"})
	g.addEdge("a", "b")
	g.addEdge("b", "c")

	order := g.dfsFromSinks()
	posA := indexOfStr(order, "a")
	posB := indexOfStr(order, "b")
	posC := indexOfStr(order, "c")
	if !(posA < posB && posB < posC) {
		t.Fatalf("expected a < b < c, got %v", order)
	}
}

func TestKahnRespectsBeforeEdges(t *testing.T) {
	g := newGraph([]string{"c", "b", "a"})
	g.addEdge("a", "b")
	g.addEdge("b", "c")

	order := g.kahn()
	posA := indexOfStr(order, "a")
	posB := indexOfStr(order, "b")
	posC := indexOfStr(order, "c")
	if !(posA < posB && posB < posC) {
		t.Fatalf("expected a < b < c, got %v", order)
	}
}

func TestKahnBreaksCycleDeterministically(t *testing.T) {
	g := newGraph([]string{"a", "b"})
	g.addEdge("a", "b")
	g.addEdge("b", "a")

	order := g.kahn()
	if len(order) != 2 {
		t.Fatalf("expected both nodes present despite cycle, got %v", order)
	}
}

func TestBlendHonorsRuleAndFallsBackToCollectionOrder(t *testing.T) {
	known := map[string]bool{"modA": true, "modB": true, "modC": true}
	in := Input{
		Mods: []string{"modA", "modB", "modC"},
		Rules: []store.Rule{
			{Kind: store.RuleBefore, SourceRef: refFor("modC"), RefRef: refFor("modA")},
		},
		FolderName:    folderNameFn(known),
		PluginOwner:   map[string]string{},
		SortedPlugins: nil,
	}
	order := Blend(in)
	if indexOfStr(order, "modC") >= indexOfStr(order, "modA") {
		t.Fatalf("modC must precede modA per the before rule, got %v", order)
	}
}

func TestBlendUsesPluginPositionWhenUnconstrained(t *testing.T) {
	known := map[string]bool{"modA": true, "modB": true}
	in := Input{
		Mods:        []string{"modA", "modB"},
		Rules:       nil,
		FolderName:  folderNameFn(known),
		PluginOwner: map[string]string{"b.esp": "modB", "a.esp": "modA"},
		SortedPlugins: []string{"b.esp", "a.esp"},
	}
	order := Blend(in)
	if !reflect.DeepEqual(order, []string{"modB", "modA"}) {
		t.Fatalf("expected plugin position to reorder to [modB modA], got %v", order)
	}
}

func TestWritePluginFilesOmitsBaseMastersAndMarksEnabled(t *testing.T) {
	dir := t.TempDir()
	enabledFirst := filepath.Join(dir, "plugins.txt")
	raw := filepath.Join(dir, "loadorder.txt")

	plugins := []PluginEntry{
		{Filename: "Skyrim.esm", Enabled: true},
		{Filename: "MyMod.esp", Enabled: true},
		{Filename: "Disabled.esp", Enabled: false},
	}
	isBase := func(name string) bool {
		return strings.EqualFold(name, "Skyrim.esm")
	}

	if err := WritePluginFiles(enabledFirst, raw, plugins, isBase); err != nil {
		t.Fatalf("WritePluginFiles: %v", err)
	}

	gotEnabled, err := os.ReadFile(enabledFirst)
	if err != nil {
		t.Fatalf("read plugins.txt: %v", err)
	}
	if want := "*MyMod.esp\nDisabled.esp\n"; string(gotEnabled) != want {
		t.Fatalf("plugins.txt = %q, want %q", gotEnabled, want)
	}
	gotRaw, err := os.ReadFile(raw)
	if err != nil {
		t.Fatalf("read loadorder.txt: %v", err)
	}
	if want := "MyMod.esp\nDisabled.esp\n"; string(gotRaw) != want {
		t.Fatalf("loadorder.txt = %q, want %q", gotRaw, want)
	}
}

func indexOfStr(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
