package mo2

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mosaicgate/collector/internal/gamedata"
	"github.com/mosaicgate/collector/internal/loadorder"
)

func TestWindowsPathDoublesBackslashes(t *testing.T) {
	got := WindowsPath("/home/user/game")
	if !strings.HasPrefix(got, `Z:\\`) {
		t.Fatalf("got %q, want Z:\\\\ prefix", got)
	}
}

func TestWriteIniProducesExpectedSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manager.ini")
	cfg := IniConfig{
		General: General{GameName: "skyrimse", SelectedProfile: "Default", GamePath: "/games/skyrimse", Version: "2.5"},
		Executables: []Executable{
			{Title: "SKSE", Binary: "/games/skyrimse/skse64_loader.exe"},
		},
	}
	if err := WriteIni(path, cfg); err != nil {
		t.Fatalf("WriteIni: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{"[General]", "[customExecutables]", "size=1", "[Settings]", "[Plugins]", "[pluginBlacklist]", "size=0"} {
		if !strings.Contains(content, want) {
			t.Errorf("ini output missing %q", want)
		}
	}
}

func TestWriteModListBottomIsHighestPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modlist.txt")
	order := []ModEntry{
		{FolderName: "modA", Enabled: true},
		{FolderName: "modB", Enabled: false},
	}
	if err := WriteModList(path, order); err != nil {
		t.Fatalf("WriteModList: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "-modB" || lines[1] != "+modA" {
		t.Fatalf("got %v, want [-modB +modA]", lines)
	}
}

func TestWritePluginProfileOmitsBaseMasters(t *testing.T) {
	dir := t.TempDir()
	plugins := []loadorder.PluginEntry{
		{Filename: "Skyrim.esm", Enabled: true},
		{Filename: "MyMod.esp", Enabled: true},
	}
	if err := WritePluginProfile(dir, gamedata.SkyrimSE, plugins); err != nil {
		t.Fatalf("WritePluginProfile: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "plugins.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "Skyrim.esm") {
		t.Fatalf("base master must be omitted, got %q", data)
	}
	if !strings.Contains(string(data), "*MyMod.esp") {
		t.Fatalf("expected enabled plugin with asterisk prefix, got %q", data)
	}
}

func TestLayoutProvisionCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	l := NewLayout(root)
	if err := l.Provision("Default"); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	for _, d := range []string{l.ModsDir, l.ProfilesDir, l.DownloadsDir, l.ProfileDir("Default")} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Errorf("expected directory %q to exist", d)
		}
	}
}
