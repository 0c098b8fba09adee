package router

import "testing"

func testRouter() *Router { return New("skyrimspecialedition") }

func TestClassifyRootDLLs(t *testing.T) {
	r := testRouter()
	for _, f := range []string{"dinput8.dll", "dxgi.dll", "version.dll"} {
		if got := r.Classify(f); got != Root {
			t.Errorf("Classify(%q) = %v, want Root", f, got)
		}
	}
}

func TestClassifyScriptExtender(t *testing.T) {
	r := testRouter()
	if got := r.Classify("skse64_loader.exe"); got != Root {
		t.Errorf("skse64_loader.exe = %v, want Root", got)
	}
	if got := r.Classify("skse64_1_6_640.dll"); got != Root {
		t.Errorf("skse64_1_6_640.dll = %v, want Root", got)
	}
	// SKSE plugins live under Data/SKSE/Plugins, which is data content.
	if got := r.Classify("SKSE/Plugins/SomePlugin.dll"); got != Default {
		t.Errorf("SKSE/Plugins/SomePlugin.dll = %v, want Default", got)
	}
}

func TestClassifyENB(t *testing.T) {
	r := testRouter()
	for _, f := range []string{"enbseries.ini", "enblocal.ini", "enbseries/effect.fx"} {
		if got := r.Classify(f); got != Root {
			t.Errorf("Classify(%q) = %v, want Root", f, got)
		}
	}
}

func TestClassifyDataContent(t *testing.T) {
	r := testRouter()
	for _, f := range []string{"plugin.esp", "master.esm", "textures/diffuse.dds", "meshes/armor.nif", "Textures/Armor/Steel.dds"} {
		if got := r.Classify(f); got != Default {
			t.Errorf("Classify(%q) = %v, want Default", f, got)
		}
	}
}

func TestClassifyBepInEx(t *testing.T) {
	r := testRouter()
	if got := r.Classify("BepInEx/core/BepInEx.dll"); got != FrameworkRoot {
		t.Errorf("got %v, want FrameworkRoot", got)
	}
	if got := r.Classify("BepInEx/plugins/SomeMod.dll"); got != FrameworkPlugin {
		t.Errorf("got %v, want FrameworkPlugin", got)
	}
	if got := r.Classify("winhttp.dll"); got != Root {
		t.Errorf("got %v, want Root", got)
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	r := testRouter()
	if got := r.Classify("DINPUT8.DLL"); got != Root {
		t.Errorf("got %v, want Root", got)
	}
	if got := r.Classify("Textures/Normal.dds"); got != Default {
		t.Errorf("got %v, want Default", got)
	}
	if got := r.Classify("MESHES/ARMOR.NIF"); got != Default {
		t.Errorf("got %v, want Default", got)
	}
}

func TestAnalyzeArchiveMixedContent(t *testing.T) {
	r := testRouter()
	skse := []string{
		"skse64_loader.exe",
		"skse64_1_6_640.dll",
		"Data/SKSE/Plugins/Plugin.dll",
		"Data/SKSE/Plugins/Plugin.ini",
	}
	hasRoot, hasData := r.AnalyzeArchive(skse)
	if !hasRoot || !hasData {
		t.Errorf("skse archive: hasRoot=%v hasData=%v, want both true", hasRoot, hasData)
	}

	data := []string{"textures/diffuse.dds", "meshes/armor.nif", "plugin.esp"}
	hasRoot, hasData = r.AnalyzeArchive(data)
	if hasRoot || !hasData {
		t.Errorf("data archive: hasRoot=%v hasData=%v, want false/true", hasRoot, hasData)
	}

	enb := []string{"enbseries.ini", "enblocal.ini", "enbseries/effect.fx"}
	hasRoot, hasData = r.AnalyzeArchive(enb)
	if !hasRoot || hasData {
		t.Errorf("enb archive: hasRoot=%v hasData=%v, want true/false", hasRoot, hasData)
	}
}

func TestClassifyDefaultsToDataMod(t *testing.T) {
	r := testRouter()
	for _, f := range []string{"SomeRandomMod.dll", "subfolder/unknown.dll", "tools/Pandora.exe", "Plugin.ESP"} {
		if got := r.Classify(f); got != Default {
			t.Errorf("Classify(%q) = %v, want Default", f, got)
		}
	}
}
