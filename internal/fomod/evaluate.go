package fomod

import "strings"

// FlagState is the accumulated set of condition flags set by the plugins
// selected so far, folded in install-step order.
type FlagState map[string]string

// Choice records which plugin names were selected within each group, the
// shape persisted as the mod's recorded scripted-installer choice set.
type Choice struct {
	StepName  string
	GroupName string
	Selected  []string // plugin names chosen in this group
}

// FoldFlags builds the flag state that results from a recorded choice set,
// walking install steps in order and folding each selected plugin's
// conditionFlags.
func FoldFlags(cfg ModuleConfiguration, choices []Choice) FlagState {
	state := make(FlagState)
	selectedByGroup := make(map[string]map[string]bool)
	for _, c := range choices {
		key := c.StepName + "\x00" + c.GroupName
		set := make(map[string]bool, len(c.Selected))
		for _, name := range c.Selected {
			set[name] = true
		}
		selectedByGroup[key] = set
	}

	for _, step := range cfg.InstallSteps.Steps {
		for _, group := range step.OptionalGroups.Groups {
			key := step.Name + "\x00" + group.Name
			selected := selectedByGroup[key]
			for _, plugin := range group.Plugins {
				if selected != nil && !selected[plugin.Name] {
					continue
				}
				for _, flag := range plugin.ConditionFlags.Flags {
					state[flag.Name] = flag.Value
				}
			}
		}
	}
	return state
}

// FileState reports whether a named file was installed, used by
// FileDependency evaluation. installed should be populated by the caller
// from the union of every file destination produced so far.
type FileState map[string]bool

// Evaluate reports whether the condition holds given the current flag and
// file state, recursing through nested Dependencies.
func Evaluate(d Dependencies, flags FlagState, files FileState) bool {
	results := make([]bool, 0, len(d.FlagDependencies)+len(d.FileDependencies)+len(d.Dependencies))

	for _, fd := range d.FlagDependencies {
		results = append(results, flags[fd.Flag] == fd.Value)
	}
	for _, fd := range d.FileDependencies {
		active := files[strings.ToLower(fd.File)]
		switch fd.State {
		case "Active":
			results = append(results, active)
		case "Inactive":
			results = append(results, !active)
		case "Missing":
			results = append(results, !active)
		default:
			results = append(results, false)
		}
	}
	for _, nested := range d.Dependencies {
		results = append(results, Evaluate(nested, flags, files))
	}

	if len(results) == 0 {
		return true
	}
	if strings.EqualFold(d.Operator, "Or") {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

// ResolveType returns the plugin's effective type name: the dependency-
// conditioned pattern's type if some pattern matches, else the flat
// typeDescriptor name, else the dependencyType's default.
func ResolveType(p Plugin, flags FlagState, files FileState) string {
	if p.TypeDescriptor.DependencyType != nil {
		dt := p.TypeDescriptor.DependencyType
		for _, pat := range dt.Patterns {
			if Evaluate(pat.Dependencies, flags, files) {
				return pat.TypeName
			}
		}
		return dt.DefaultType
	}
	return p.TypeDescriptor.Name
}

// CopyPlan is the resolved set of file and folder operations to apply, in
// the order BuildPlan appends them: required files, then selected plugins'
// files, then conditional files. Entries with the same destination are not
// merged, and Priority is not consulted.
type CopyPlan struct {
	Files   []FileOp
	Folders []FileOp
}

// BuildPlan resolves the full copy plan for a module configuration given a
// recorded choice set: required files, every selected plugin's file list,
// and every conditional-file-install pattern whose dependency is satisfied
// against the folded flag state.
func BuildPlan(cfg ModuleConfiguration, choices []Choice, files FileState) CopyPlan {
	flags := FoldFlags(cfg, choices)
	plan := CopyPlan{
		Files:   append([]FileOp(nil), cfg.RequiredInstallFiles.Files...),
		Folders: append([]FileOp(nil), cfg.RequiredInstallFiles.Folders...),
	}

	selectedByGroup := make(map[string]map[string]bool)
	for _, c := range choices {
		key := c.StepName + "\x00" + c.GroupName
		set := make(map[string]bool, len(c.Selected))
		for _, name := range c.Selected {
			set[name] = true
		}
		selectedByGroup[key] = set
	}

	for _, step := range cfg.InstallSteps.Steps {
		for _, group := range step.OptionalGroups.Groups {
			key := step.Name + "\x00" + group.Name
			selected := selectedByGroup[key]
			for _, plugin := range group.Plugins {
				if selected != nil && !selected[plugin.Name] {
					continue
				}
				plan.Files = append(plan.Files, plugin.Files.Files...)
				plan.Folders = append(plan.Folders, plugin.Files.Folders...)
			}
		}
	}

	for _, pat := range cfg.ConditionalFileInstalls.Patterns {
		if Evaluate(pat.Dependencies, flags, files) {
			plan.Files = append(plan.Files, pat.Files.Files...)
			plan.Folders = append(plan.Folders, pat.Files.Folders...)
		}
	}
	return plan
}
