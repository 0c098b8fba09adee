// Package fomod implements the scripted-installer engine (design component
// C8): parsing a ModuleConfig.xml tree, evaluating its flag/dependency
// conditions against a recorded choice set, and producing a file/folder
// copy plan.
package fomod

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ModuleConfiguration is the root element of a ModuleConfig.xml document.
type ModuleConfiguration struct {
	XMLName                 xml.Name                `xml:"config"`
	ModuleName              string                   `xml:"moduleName"`
	RequiredInstallFiles    FileList                 `xml:"requiredInstallFiles"`
	InstallSteps            InstallSteps             `xml:"installSteps"`
	ConditionalFileInstalls ConditionalFileInstalls  `xml:"conditionalFileInstalls"`
}

// FileList is a set of unconditional or conditional file/folder copy
// directives.
type FileList struct {
	Files   []FileOp `xml:"file"`
	Folders []FileOp `xml:"folder"`
}

// FileOp is one file or folder copy instruction.
type FileOp struct {
	Source      string `xml:"source,attr"`
	Destination string `xml:"destination,attr"`
	Priority    int    `xml:"priority,attr"`
}

// InstallSteps is the ordered sequence of option-presenting steps.
type InstallSteps struct {
	Order string       `xml:"order,attr"`
	Steps []InstallStep `xml:"installStep"`
}

// InstallStep groups one or more option groups shown together.
type InstallStep struct {
	Name          string        `xml:"name,attr"`
	OptionalGroups OptionGroups `xml:"optionalFileGroups"`
}

// OptionGroups wraps the group list within one install step.
type OptionGroups struct {
	Order  string `xml:"order,attr"`
	Groups []Group `xml:"group"`
}

// Group is one option group (exactly-one, at-most-one, at-least-one, any,
// all) within an install step.
type Group struct {
	Name    string   `xml:"name,attr"`
	Type    string   `xml:"type,attr"`
	Plugins []Plugin `xml:"plugins>plugin"`
}

// Plugin is one selectable option, optionally recommended/required by a
// type descriptor and carrying file-install and flag-setting directives.
type Plugin struct {
	Name           string         `xml:"name,attr"`
	Description    string         `xml:"description"`
	Files          FileList       `xml:"files"`
	ConditionFlags ConditionFlags `xml:"conditionFlags"`
	TypeDescriptor TypeDescriptor `xml:"typeDescriptor"`
}

// TypeDescriptor resolves a plugin's availability type, either a flat
// name or a dependency-conditioned pattern list.
type TypeDescriptor struct {
	Name            string           `xml:"type>name,attr"`
	DependencyType  *DependencyType  `xml:"dependencyType"`
}

// DependencyType selects a plugin type based on the first matching
// pattern's dependency conditions, falling back to defaultType.
type DependencyType struct {
	DefaultType string    `xml:"defaultType>name,attr"`
	Patterns    []Pattern `xml:"patterns>pattern"`
}

// Pattern pairs a dependency condition with the type it selects.
type Pattern struct {
	Dependencies Dependencies `xml:"dependencies"`
	TypeName     string       `xml:"type>name,attr"`
}

// ConditionFlags is the set of flags a selected plugin sets.
type ConditionFlags struct {
	Flags []ConditionFlag `xml:"flag"`
}

// ConditionFlag is one flag=value assignment.
type ConditionFlag struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// ConditionalFileInstalls is a set of patterns, each activating its file
// list when its dependency condition is satisfied.
type ConditionalFileInstalls struct {
	Patterns []CondPattern `xml:"patterns>pattern"`
}

// CondPattern pairs a dependency condition with the files it installs.
type CondPattern struct {
	Dependencies Dependencies `xml:"dependencies"`
	Files        FileList     `xml:"files"`
}

// Dependencies is a (possibly nested) boolean condition over flag values,
// or file installation state, combined by Operator.
type Dependencies struct {
	Operator          string             `xml:"operator,attr"` // "And" (default) or "Or"
	FileDependencies  []FileDependency   `xml:"fileDependency"`
	FlagDependencies  []FlagDependency   `xml:"flagDependency"`
	Dependencies      []Dependencies     `xml:"dependencies"`
}

// FileDependency asserts a file's install state ("Active", "Inactive",
// "Missing").
type FileDependency struct {
	File  string `xml:"file,attr"`
	State string `xml:"state,attr"`
}

// FlagDependency asserts a recorded flag's current value.
type FlagDependency struct {
	Flag  string `xml:"flag,attr"`
	Value string `xml:"value,attr"`
}

// maxConfigSearchDepth bounds the fomod/ directory search (§4.8: "depth-
// limited (≤3)").
const maxConfigSearchDepth = 3

// FindConfig walks root looking for a case-insensitive "fomod" directory
// containing "ModuleConfig.xml", up to maxConfigSearchDepth levels deep,
// falling back to the archive root itself.
func FindConfig(root string) (string, error) {
	var found string
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		if found != "" || depth > maxConfigSearchDepth {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			sub := filepath.Join(dir, e.Name())
			if strings.EqualFold(e.Name(), "fomod") {
				if c := hasModuleConfig(sub); c != "" {
					found = c
					return nil
				}
			}
			if err := walk(sub, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, 0); err != nil {
		return "", fmt.Errorf("search for ModuleConfig.xml under %q: %w", root, err)
	}
	if found == "" {
		found = hasModuleConfig(root)
	}
	if found == "" {
		return "", fmt.Errorf("no ModuleConfig.xml found under %q", root)
	}
	return found, nil
}

func hasModuleConfig(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(e.Name(), "ModuleConfig.xml") {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}

// Parse decodes a ModuleConfig.xml document from r.
func Parse(r io.Reader) (ModuleConfiguration, error) {
	var cfg ModuleConfiguration
	if err := xml.NewDecoder(r).Decode(&cfg); err != nil {
		return ModuleConfiguration{}, fmt.Errorf("decode ModuleConfig.xml: %w", err)
	}
	return cfg, nil
}

// ParseFile opens and parses path.
func ParseFile(path string) (ModuleConfiguration, error) {
	f, err := os.Open(path)
	if err != nil {
		return ModuleConfiguration{}, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}
