package loadorder

import (
	"sort"
	"strings"

	"github.com/mosaicgate/collector/internal/store"
)

// Input is everything the blended mod order is computed from.
type Input struct {
	// Mods lists every non-failed mod's folder name, in manifest order.
	// This also serves as the "collection order" ordering.
	Mods []string
	// Rules are the ordering constraints from the manifest, referenced by
	// filename/md5 (resolved to folder names by the caller before this
	// package sees them, via FolderName).
	Rules []store.Rule
	// FolderName resolves a mod reference (as used in Rules) to the folder
	// name used in Mods; callers build this once from the full mod set.
	FolderName func(ref store.ModRef) (string, bool)
	// PluginOwner maps a plugin filename (case-insensitive) to the folder
	// name of the mod that provides it, used to derive plugin-position
	// order per mod.
	PluginOwner map[string]string
	// SortedPlugins is the externally sorted plugin list (§4.11), or the
	// collection-order fallback if the sorter failed.
	SortedPlugins []string
}

// Blend computes the final mod order per the fixed resolution priority:
// DFS-from-sinks primary, then Kahn, then plugin-derived position, then
// collection order, each acting as a stable secondary comparator.
func Blend(in Input) []string {
	g := newGraph(in.Mods)
	for _, r := range in.Rules {
		from, ok1 := in.FolderName(r.SourceRef)
		to, ok2 := in.FolderName(r.RefRef)
		if !ok1 || !ok2 || from == to {
			continue
		}
		switch r.Kind {
		case store.RuleBefore:
			g.addEdge(from, to)
		case store.RuleAfter:
			g.addEdge(to, from)
		case store.RuleAnchor, store.RuleGroupMember:
			// Anchors and group membership do not themselves impose a
			// pairwise "before" constraint between distinct mods; they are
			// resolved by the manifest loader into before/after rules
			// relative to the anchor point before reaching this package.
		}
	}

	dfsOrder := g.dfsFromSinks()
	kahnOrder := g.kahn()
	pluginPos := pluginPositions(in.SortedPlugins, in.PluginOwner)

	dfsIndex := indexOf(dfsOrder)
	kahnIndex := indexOf(kahnOrder)
	collectionIndex := indexOf(in.Mods)

	result := append([]string(nil), in.Mods...)
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if dfsIndex[a] != dfsIndex[b] {
			return dfsIndex[a] < dfsIndex[b]
		}
		if kahnIndex[a] != kahnIndex[b] {
			return kahnIndex[a] < kahnIndex[b]
		}
		pa, paOK := pluginPos[a]
		pb, pbOK := pluginPos[b]
		if paOK != pbOK {
			return paOK // mods with a known plugin position sort before those without
		}
		if paOK && pbOK && pa != pb {
			return pa < pb
		}
		return collectionIndex[a] < collectionIndex[b]
	})
	return result
}

func indexOf(order []string) map[string]int {
	m := make(map[string]int, len(order))
	for i, n := range order {
		m[n] = i
	}
	return m
}

// pluginPositions returns, per mod, the minimum index among its plugins in
// sortedPlugins; a mod that owns no plugin is simply absent from the map.
func pluginPositions(sortedPlugins []string, owner map[string]string) map[string]int {
	pos := make(map[string]int)
	for i, plugin := range sortedPlugins {
		mod, ok := owner[strings.ToLower(plugin)]
		if !ok {
			continue
		}
		if existing, seen := pos[mod]; !seen || i < existing {
			pos[mod] = i
		}
	}
	return pos
}
