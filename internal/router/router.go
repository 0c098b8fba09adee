// Package router classifies archive-relative file paths for the install
// destination decision (design component C7). It is grounded directly on
// original_source's file_router module: the same pattern tables, the same
// case-insensitive, pure-function design, generalized from Rust enum
// matching into a small Go type.
package router

import "strings"

// ModType is the destination classification for a single archive-relative
// path.
type ModType int

const (
	// Default is Data-folder content: the mod's own per-mod output
	// directory. This is also the safe fallback for unrecognized paths.
	Default ModType = iota
	// Root is game-root content: script extenders, ENB, engine hooks.
	Root
	// FrameworkRoot is content under the framework directory but outside
	// its plugins subtree (e.g. BepInEx/core/*).
	FrameworkRoot
	// FrameworkPlugin is content under the framework directory's plugins
	// subtree (e.g. BepInEx/plugins/*).
	FrameworkPlugin
)

func (t ModType) String() string {
	switch t {
	case Root:
		return "Root"
	case FrameworkRoot:
		return "FrameworkRoot"
	case FrameworkPlugin:
		return "FrameworkPlugin"
	default:
		return "Default"
	}
}

// Router classifies paths for a specific game target. It carries no other
// state; construction only exists so call sites can later add per-game
// overrides without changing the Classify signature.
type Router struct {
	game gameTyper
}

// gameTyper is satisfied by gamedata.Type; kept as a tiny local interface
// so this package does not import gamedata just to store a label.
type gameTyper interface{ String() string }

type plainGameType string

func (p plainGameType) String() string { return string(p) }

// New returns a Router for the given game identifier (e.g. "skyrimspecialedition").
func New(game string) *Router {
	return &Router{game: plainGameType(game)}
}

// Classify is the pure function classify(path) -> ModType from the design.
// It depends only on lowercase(path) (P7).
func (r *Router) Classify(filePath string) ModType {
	filename := basename(filePath)

	if r.isRootFile(filename) {
		return Root
	}

	if startsWithRootDir(filePath) {
		lower := strings.ToLower(strings.ReplaceAll(filePath, "\\", "/"))
		if strings.HasPrefix(lower, frameworkDir+"/plugins/") {
			return FrameworkPlugin
		}
		if strings.HasPrefix(lower, frameworkDir+"/") {
			return FrameworkRoot
		}
		return Root
	}

	return Default
}

// isRootFile reports whether filename alone (ignoring directory) indicates
// root-level content.
func (r *Router) isRootFile(filename string) bool {
	return isRootDLL(filename) || isRootExe(filename) || isRootIni(filename)
}

// IsDataContent reports whether path is Data-folder content by extension or
// directory name, independent of the root checks above.
func (r *Router) IsDataContent(path string) bool {
	return hasDataExtension(path) || startsWithDataDir(path)
}

// AnalyzeArchive scans every path in an archive's file listing and reports
// whether it contains root-destined and/or data-destined content, used to
// detect mixed-content mods such as SKSE (root loader + Data/SKSE/Plugins).
func (r *Router) AnalyzeArchive(paths []string) (hasRoot, hasData bool) {
	for _, p := range paths {
		switch r.Classify(p) {
		case Root, FrameworkRoot, FrameworkPlugin:
			hasRoot = true
		default:
			hasData = true
		}
		if hasRoot && hasData {
			return
		}
	}
	return
}

func basename(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
