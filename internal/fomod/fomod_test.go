package fomod

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleConfig = `<?xml version="1.0" encoding="utf-8"?>
<config>
  <moduleName>Sample Mod</moduleName>
  <requiredInstallFiles>
    <file source="core.esp" destination="core.esp"/>
  </requiredInstallFiles>
  <installSteps order="Explicit">
    <installStep name="Textures">
      <optionalFileGroups order="Explicit">
        <group name="Quality" type="SelectExactlyOne">
          <plugins order="Explicit">
            <plugin name="High">
              <description>High quality</description>
              <files>
                <file source="high.dds" destination="textures/high.dds"/>
              </files>
              <conditionFlags>
                <flag name="quality">high</flag>
              </conditionFlags>
            </plugin>
            <plugin name="Low">
              <description>Low quality</description>
              <files>
                <file source="low.dds" destination="textures/low.dds"/>
              </files>
              <conditionFlags>
                <flag name="quality">low</flag>
              </conditionFlags>
            </plugin>
          </plugins>
        </group>
      </optionalFileGroups>
    </installStep>
  </installSteps>
  <conditionalFileInstalls>
    <patterns>
      <pattern>
        <dependencies operator="And">
          <flagDependency flag="quality" value="high"/>
        </dependencies>
        <files>
          <file source="high_extra.esp" destination="high_extra.esp"/>
        </files>
      </pattern>
    </patterns>
  </conditionalFileInstalls>
</config>`

func TestParseAndBuildPlan(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.ModuleName != "Sample Mod" {
		t.Fatalf("ModuleName = %q", cfg.ModuleName)
	}

	choices := []Choice{{StepName: "Textures", GroupName: "Quality", Selected: []string{"High"}}}
	plan := BuildPlan(cfg, choices, FileState{})

	var destinations []string
	for _, f := range plan.Files {
		destinations = append(destinations, f.Destination)
	}
	want := map[string]bool{"core.esp": true, "textures/high.dds": true, "high_extra.esp": true}
	if len(destinations) != len(want) {
		t.Fatalf("plan has %d files, want %d (%v)", len(destinations), len(want), destinations)
	}
	for _, d := range destinations {
		if !want[d] {
			t.Errorf("unexpected destination %q in plan", d)
		}
	}
}

func TestBuildPlanLowQualityExcludesConditional(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	choices := []Choice{{StepName: "Textures", GroupName: "Quality", Selected: []string{"Low"}}}
	plan := BuildPlan(cfg, choices, FileState{})
	for _, f := range plan.Files {
		if f.Destination == "high_extra.esp" {
			t.Fatalf("low-quality choice should not pull in the high-quality conditional file")
		}
	}
}

func TestApplyCopiesFilesCaseInsensitively(t *testing.T) {
	extracted := t.TempDir()
	if err := os.MkdirAll(filepath.Join(extracted, "Textures"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(extracted, "Core.esp"), []byte("core"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(extracted, "Textures", "High.dds"), []byte("tex"), 0o644); err != nil {
		t.Fatal(err)
	}

	plan := CopyPlan{Files: []FileOp{
		{Source: "core.esp", Destination: "core.esp"},
		{Source: "textures/high.dds", Destination: "textures/high.dds"},
	}}

	dest := t.TempDir()
	report, err := Apply(plan, extracted, dest)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if report.FilesInstalled != 2 {
		t.Fatalf("FilesInstalled = %d, want 2", report.FilesInstalled)
	}
	data, err := os.ReadFile(filepath.Join(dest, "core.esp"))
	if err != nil || string(data) != "core" {
		t.Fatalf("core.esp not copied correctly: %v", err)
	}
}

func TestIsolatedTempDirIsUniqueAndUnderRoot(t *testing.T) {
	root := t.TempDir()
	a, err := IsolatedTempDir(root)
	if err != nil {
		t.Fatalf("IsolatedTempDir: %v", err)
	}
	b, err := IsolatedTempDir(root)
	if err != nil {
		t.Fatalf("IsolatedTempDir: %v", err)
	}
	if a == b {
		t.Fatalf("two calls returned the same directory: %q", a)
	}
	if !strings.HasPrefix(a, root) || !strings.HasPrefix(b, root) {
		t.Fatalf("temp dirs must live under the install root, got %q and %q", a, b)
	}
}
