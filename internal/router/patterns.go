package router

import "strings"

// rootDLLs are known injection points installed to the game root directory:
// script-extender loaders, ENB/ReShade hooks, and Windows API shims.
var rootDLLs = []string{
	"dinput8.dll",
	"dxgi.dll",
	"d3d11.dll",
	"d3d9.dll",
	"d3d10.dll",
	"d3dx9_42.dll",
	"d3dx9_43.dll",
	"binkw64.dll",
	"bink2w64.dll",
	"binkw32.dll",
	"version.dll",
	"winmm.dll",
	"winhttp.dll",
	"doorstop_config.ini",
}

// rootExePrefixes matches script-extender executables/DLLs by prefix
// (e.g. "skse64_" matches "skse64_loader.exe" and "skse64_1_6_640.dll").
var rootExePrefixes = []string{
	"skse64_",
	"skse_",
	"f4se_",
	"obse_",
	"nvse_",
	"sfse_",
}

// rootINIFiles are config files that belong in the game root.
var rootINIFiles = []string{
	"enbseries.ini",
	"enblocal.ini",
	"enbconvertor.ini",
	"d3dx.ini",
	"reshade.ini",
	"dxvk.conf",
}

// rootDirectories are directory names (first path segment) that belong in
// game root, including the framework directory name itself.
var rootDirectories = []string{
	"bepinex",
	"enbseries",
	"reshade-shaders",
}

// frameworkDir is the root directory that splits into FrameworkRoot vs
// FrameworkPlugin depending on whether the path continues under its
// "plugins/" subtree.
const frameworkDir = "bepinex"

// dataExtensions indicate Data folder content regardless of directory.
var dataExtensions = []string{
	".esp",
	".esm",
	".esl",
	".bsa",
	".ba2",
}

// dataDirectories are directory names (first path segment) that indicate
// Data folder content.
var dataDirectories = []string{
	"textures", "meshes", "music", "sound", "shaders", "video", "interface",
	"fonts", "scripts", "facegen", "menus", "lodsettings", "strings", "trees",
	"seq", "grass", "terrain", "lod", "vis", "materials", "geometries",
	"planetdata", "particles", "distantlod", "facegendata", "dlclist",
	"calientetools", "nemesis_engine", "netscriptframework",
	"skse", "f4se", "sfse", "source", "pex", "platform", "programs", "share", "actors",
}

func isRootDLL(filename string) bool {
	lower := strings.ToLower(filename)
	for _, dll := range rootDLLs {
		if lower == dll {
			return true
		}
	}
	return false
}

func isRootExe(filename string) bool {
	lower := strings.ToLower(filename)
	if !strings.HasSuffix(lower, ".exe") && !strings.HasSuffix(lower, ".dll") {
		return false
	}
	for _, prefix := range rootExePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func isRootIni(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ini := range rootINIFiles {
		if lower == ini {
			return true
		}
	}
	return false
}

func firstSegment(path string) string {
	lower := strings.ToLower(path)
	lower = strings.ReplaceAll(lower, "\\", "/")
	if i := strings.IndexByte(lower, '/'); i >= 0 {
		return lower[:i]
	}
	return lower
}

func startsWithRootDir(path string) bool {
	seg := firstSegment(path)
	for _, d := range rootDirectories {
		if seg == d {
			return true
		}
	}
	return false
}

func hasDataExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range dataExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func startsWithDataDir(path string) bool {
	seg := firstSegment(path)
	for _, d := range dataDirectories {
		if seg == d {
			return true
		}
	}
	return false
}
