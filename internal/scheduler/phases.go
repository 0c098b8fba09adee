package scheduler

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mosaicgate/collector/internal/archive"
	"github.com/mosaicgate/collector/internal/baseinstaller"
	"github.com/mosaicgate/collector/internal/bsa"
	"github.com/mosaicgate/collector/internal/fetch"
	"github.com/mosaicgate/collector/internal/fomod"
	"github.com/mosaicgate/collector/internal/gamedata"
	"github.com/mosaicgate/collector/internal/httpclient"
	"github.com/mosaicgate/collector/internal/loadorder"
	"github.com/mosaicgate/collector/internal/mo2"
	"github.com/mosaicgate/collector/internal/patch"
	"github.com/mosaicgate/collector/internal/progress"
	"github.com/mosaicgate/collector/internal/resolver"
	"github.com/mosaicgate/collector/internal/router"
	"github.com/mosaicgate/collector/internal/sorter"
	"github.com/mosaicgate/collector/internal/store"
	"github.com/mosaicgate/collector/internal/xerrors"
)

// Config bundles every dependency the default phase list needs. It is
// deliberately flat rather than an interface: every phase function takes
// the same *Config so phases can be reordered or stubbed independently in
// tests.
type Config struct {
	GameType    gamedata.Type
	GamePath    string
	Layout      mo2.Layout
	ProfileName string

	Resolvers     *resolver.Registry
	Router        *router.Router
	Sorter        *sorter.Sorter
	BaseInstaller *baseinstaller.Request // nil when the manifest has no base-content requirement
	BSACache      *bsa.Cache             // disk-backed cache of entries read out of packed BSA/BA2 containers
	PatchCache    *patch.Cache           // content-addressed cache of applied patch outputs (C9)

	MasterlistCachePath string
	ExtractRoot         string // scratch root for non-scripted extraction and scripted-installer temp dirs
}

// ArchiveDest returns the on-disk download path for an archive, keyed by
// content hash so re-resolves never collide.
func (c *Config) ArchiveDest(a store.Archive) string {
	return filepath.Join(c.Layout.DownloadsDir, a.Hash+"-"+a.Filename)
}

// DefaultPhases returns the fixed, ordered ten-phase pipeline (§4.2).
func DefaultPhases(cfg *Config) []Phase {
	return []Phase{
		{Name: "parse", Run: phaseParse(cfg)},
		{Name: "fetch-masterlist", Run: phaseFetchMasterlist(cfg)},
		{Name: "provision-layout", Run: phaseProvisionLayout(cfg)},
		{Name: "download", Run: phaseDownload(cfg)},
		{Name: "validate", Run: phaseValidate(cfg)},
		{Name: "preflight", Run: phasePreflight(cfg)},
		{Name: "extract", Run: phaseExtract(cfg)},
		{Name: "scripted-install", Run: phaseScriptedInstall(cfg)},
		{Name: "generate-mod-order", Run: phaseGenerateModOrder(cfg)},
		{Name: "generate-plugin-files", Run: phaseGeneratePluginFiles(cfg)},
	}
}

// phaseParse is a no-op placeholder at the scheduler level: manifest
// parsing and import_collection run before the scheduler is constructed
// (the manifest package consumes an already-open *store.Store), per §4.1's
// note that parsing lives outside the core. It exists as a named phase so
// progress events and resume bookkeeping stay uniform across all ten steps.
func phaseParse(cfg *Config) func(context.Context, *Scheduler) error {
	return func(ctx context.Context, sch *Scheduler) error { return nil }
}

func phaseFetchMasterlist(cfg *Config) func(context.Context, *Scheduler) error {
	return func(ctx context.Context, sch *Scheduler) error {
		if cfg.Sorter == nil {
			return nil
		}
		if err := sorter.LoadMasterlist(ctx, cfg.Sorter, cfg.MasterlistCachePath); err != nil {
			return xerrors.New(xerrors.KindFatalInvariant, "phaseFetchMasterlist", fmt.Errorf("masterlist fetch is hard-required: %w", err))
		}
		return nil
	}
}

func phaseProvisionLayout(cfg *Config) func(context.Context, *Scheduler) error {
	return func(ctx context.Context, sch *Scheduler) error {
		if err := cfg.Layout.Provision(cfg.ProfileName); err != nil {
			return err
		}
		ini := mo2.IniConfig{
			General: mo2.General{
				GameName:        string(cfg.GameType),
				SelectedProfile: cfg.ProfileName,
				GamePath:        cfg.GamePath,
				FirstStart:      true,
			},
		}
		return mo2.WriteIni(filepath.Join(cfg.Layout.Root, string(cfg.GameType)+".ini"), ini)
	}
}

func phaseDownload(cfg *Config) func(context.Context, *Scheduler) error {
	return func(ctx context.Context, sch *Scheduler) error {
		archives, err := pendingArchives(ctx, sch.Store)
		if err != nil {
			return err
		}
		if len(archives) == 0 {
			return nil
		}
		return downloadArchives(ctx, cfg, sch, archives)
	}
}

// downloadArchives resolves and fetches a batch of archives, marking each
// downloading/downloaded/failed as it goes. phaseDownload calls this for
// the initial pending batch; validateWithRetry calls it again, on a single
// archive, to re-fetch a corrupt file within the same validate phase.
func downloadArchives(ctx context.Context, cfg *Config, sch *Scheduler, archives []store.Archive) error {
	jobs := make([]fetch.Job, 0, len(archives))
	for i, a := range archives {
		plan, err := cfg.Resolvers.Resolve(ctx, a)
		if err != nil {
			sch.Logger.Printf("resolve %s: %v", a.Filename, err)
			if markErr := sch.Store.MarkArchiveStatus(ctx, a.Hash, store.StatusFailed); markErr != nil {
				return markErr
			}
			continue
		}
		if err := sch.Store.MarkArchiveStatus(ctx, a.Hash, store.StatusDownloading); err != nil {
			return err
		}
		jobs = append(jobs, fetch.Job{
			Archive: a, Plan: plan, Dest: cfg.ArchiveDest(a),
			ModName: a.Filename, ModIndex: i + 1, ModCount: len(archives),
		})
	}

	if err := fetch.RunAll(ctx, jobs, sch.Sink); err != nil {
		return err
	}
	for _, j := range jobs {
		if j.Plan.IsManual() {
			continue
		}
		if err := sch.Store.MarkArchiveDownloaded(ctx, j.Archive.Hash, j.Dest); err != nil {
			return err
		}
	}
	return nil
}

// pendingArchives collects the distinct archives referenced by pending
// mods: it loads the pending mods with GetModsByStatus and resolves their
// distinct ArchiveHash values with GetArchivesByHashes.
func pendingArchives(ctx context.Context, st *store.Store) ([]store.Archive, error) {
	mods, err := st.GetModsByStatus(ctx, store.StatusPending)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(mods))
	seen := make(map[string]bool)
	for _, m := range mods {
		if m.ArchiveHash == "" || seen[m.ArchiveHash] {
			continue
		}
		seen[m.ArchiveHash] = true
		hashes = append(hashes, m.ArchiveHash)
	}
	if len(hashes) == 0 {
		return nil, nil
	}
	return st.GetArchivesByHashes(ctx, hashes)
}

func phaseValidate(cfg *Config) func(context.Context, *Scheduler) error {
	return func(ctx context.Context, sch *Scheduler) error {
		mods, err := sch.Store.GetModsByStatus(ctx, store.StatusDownloaded)
		if err != nil {
			return err
		}
		if len(mods) == 0 {
			return nil
		}
		hashes := make([]string, 0, len(mods))
		for _, m := range mods {
			hashes = append(hashes, m.ArchiveHash)
		}
		archives, err := sch.Store.GetArchivesByHashes(ctx, hashes)
		if err != nil {
			return err
		}
		for _, a := range archives {
			if err := validateWithRetry(ctx, cfg, sch, a, maxValidationAttempts); err != nil {
				progress.Error(sch.Sink, err)
			}
		}
		return nil
	}
}

// validateWithRetry checks a downloaded archive's size against its
// manifest-recorded expectation. On a mismatch it deletes the file and
// re-fetches it immediately, within this same phase pass, checking the
// size at most attemptsLeft times in all (so at most attemptsLeft-1
// re-fetches) before marking the archive failed, per §4.2 phase 5's "corrupt files are deleted and
// re-downloaded, up to 3 attempts" — the retry loop lives here, rather
// than spanning separate Run()/Resume() invocations, since nothing
// downstream of this phase re-enters the download phase within one pass.
func validateWithRetry(ctx context.Context, cfg *Config, sch *Scheduler, a store.Archive, attemptsLeft int) error {
	for {
		info, err := os.Stat(a.LocalPath)
		if err == nil && info.Size() == a.ExpectedSize {
			return nil
		}
		attemptsLeft--
		if attemptsLeft <= 0 {
			return sch.Store.MarkArchiveStatus(ctx, a.Hash, store.StatusFailed)
		}
		os.Remove(a.LocalPath)
		if err := sch.Store.MarkArchiveStatus(ctx, a.Hash, store.StatusPending); err != nil {
			return err
		}
		if err := downloadArchives(ctx, cfg, sch, []store.Archive{a}); err != nil {
			return err
		}
		refreshed, err := sch.Store.GetArchivesByHashes(ctx, []string{a.Hash})
		if err != nil {
			return err
		}
		if len(refreshed) == 0 {
			return xerrors.New(xerrors.KindCorruption, "validateWithRetry", fmt.Errorf("archive %s vanished from store mid-retry", a.Hash))
		}
		a = refreshed[0]
	}
}

func phasePreflight(cfg *Config) func(context.Context, *Scheduler) error {
	return func(ctx context.Context, sch *Scheduler) error {
		mods, err := sch.Store.GetAllMods(ctx)
		if err != nil {
			return err
		}
		for _, m := range mods {
			if !m.Scripted || m.Status != store.StatusDownloaded {
				continue
			}
			pre := preflightOne(cfg, m)
			if err := sch.Store.SetModPreflight(ctx, m.ID, pre); err != nil {
				return err
			}
			if pre.Validated && !pre.Valid {
				if err := sch.Store.MarkModFailed(ctx, m.ID, fmt.Errorf("%s", pre.Error)); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func preflightOne(cfg *Config, m store.Mod) store.Preflight {
	ex, err := archive.Open(m.LocalPath)
	if err != nil {
		return store.Preflight{Validated: true, Valid: false, Error: err.Error()}
	}
	defer ex.Close()

	tmp, err := os.MkdirTemp(cfg.ExtractRoot, "preflight-*")
	if err != nil {
		return store.Preflight{Validated: true, Valid: false, Error: err.Error()}
	}
	defer os.RemoveAll(tmp)

	if err := ex.ExtractAll(tmp, 1); err != nil {
		return store.Preflight{Validated: true, Valid: false, Error: err.Error()}
	}
	if _, err := fomod.FindConfig(tmp); err != nil {
		return store.Preflight{Validated: true, Valid: false, Error: err.Error()}
	}
	return store.Preflight{Validated: true, Valid: true}
}

func phaseExtract(cfg *Config) func(context.Context, *Scheduler) error {
	return func(ctx context.Context, sch *Scheduler) error {
		mods, err := sch.Store.GetAllMods(ctx)
		if err != nil {
			return err
		}
		for _, m := range mods {
			if m.Scripted || m.Status != store.StatusDownloaded {
				continue
			}
			if err := sch.Store.UpdateModStatus(ctx, m.ID, store.StatusExtracting); err != nil {
				return err
			}
			dest := cfg.Layout.ModDir(m.FolderName)
			mixed, err := extractAndRoute(m.LocalPath, dest, cfg.Router)
			if err != nil {
				if merr := sch.Store.MarkModFailed(ctx, m.ID, err); merr != nil {
					return merr
				}
				continue
			}
			if mixed {
				sch.Logger.Printf("%s: mixed root and Data content, installed verbatim", m.FolderName)
			}
			if err := applyPatches(ctx, cfg, m, dest); err != nil {
				if merr := sch.Store.MarkModFailed(ctx, m.ID, err); merr != nil {
					return merr
				}
				continue
			}
			if cfg.BSACache != nil {
				if err := indexBethesdaArchives(dest, cfg.BSACache); err != nil {
					sch.Logger.Printf("%s: indexing packed archives: %v", m.FolderName, err)
				}
			}
			if err := sch.Store.UpdateModStatus(ctx, m.ID, store.StatusExtracted); err != nil {
				return err
			}
		}
		return nil
	}
}

// extractAndRoute extracts archivePath into destRoot. A mod's extracted
// tree is installed verbatim at its own relative paths (the manager's
// virtual filesystem overlays a mod folder onto the game root unchanged),
// so routing does not move files; it only flags mixed root+Data content,
// which a scripted installer would otherwise have had to split via
// per-step file lists.
func extractAndRoute(archivePath, destRoot string, r *router.Router) (mixed bool, err error) {
	ex, err := archive.Open(archivePath)
	if err != nil {
		return false, err
	}
	defer ex.Close()

	entries, err := ex.List()
	if err != nil {
		return false, err
	}
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	hasRoot, hasData := r.AnalyzeArchive(paths)

	if err := ex.ExtractAll(destRoot, 4); err != nil {
		return false, err
	}
	return hasRoot && hasData, nil
}

// applyPatches runs a mod's manifest-recorded per-file binary deltas (C9)
// against its freshly extracted content: each rule's target file is
// replaced in place by the bsdiff-patched result. A mod with no recorded
// patches is a no-op (the common case), so this runs unconditionally from
// phaseExtract rather than needing its own phase.
func applyPatches(ctx context.Context, cfg *Config, m store.Mod, modRoot string) error {
	if m.Patches == "" {
		return nil
	}
	var rules []store.PatchRule
	if err := json.Unmarshal([]byte(m.Patches), &rules); err != nil {
		return xerrors.New(xerrors.KindConfig, "applyPatches", fmt.Errorf("%s: decode patch rules: %w", m.FolderName, err))
	}

	for _, rule := range rules {
		targetPath := filepath.Join(modRoot, filepath.FromSlash(rule.TargetPath))
		old, err := os.ReadFile(targetPath)
		if err != nil {
			return xerrors.New(xerrors.KindCorruption, "applyPatches", fmt.Errorf("%s: read patch target %q: %w", m.FolderName, rule.TargetPath, err))
		}

		patchData, err := fetchPatch(ctx, rule)
		if err != nil {
			return err
		}

		out, err := patch.ApplyCached(cfg.PatchCache, old, patchData, rule.OutputHash)
		if err != nil {
			return xerrors.New(xerrors.KindCorruption, "applyPatches", fmt.Errorf("%s: apply patch to %q: %w", m.FolderName, rule.TargetPath, err))
		}

		if cfg.PatchCache != nil {
			key := rule.OutputHash
			if key == "" {
				key = patch.Hash(out)
			}
			if err := cfg.PatchCache.LinkOrCopy(key, targetPath); err != nil {
				return xerrors.New(xerrors.KindConfig, "applyPatches", fmt.Errorf("%s: materialize patched %q: %w", m.FolderName, rule.TargetPath, err))
			}
			continue
		}
		if err := os.WriteFile(targetPath, out, 0o644); err != nil {
			return xerrors.New(xerrors.KindConfig, "applyPatches", fmt.Errorf("%s: write patched %q: %w", m.FolderName, rule.TargetPath, err))
		}
	}
	return nil
}

// fetchPatch downloads a single patch payload, checking its MD5 against
// the manifest-recorded value when one was supplied. Patch payloads are
// deltas, always far smaller than the archives they modify, so this reads
// the whole response into memory rather than streaming to disk.
func fetchPatch(ctx context.Context, rule store.PatchRule) ([]byte, error) {
	resp, err := httpclient.Get(ctx, rule.PatchURL)
	if err != nil {
		return nil, xerrors.New(xerrors.KindTransient, "fetchPatch", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, xerrors.New(xerrors.KindSourceUnavailable, "fetchPatch", fmt.Errorf("status %d fetching patch %s", resp.StatusCode, rule.PatchURL))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.New(xerrors.KindTransient, "fetchPatch", err)
	}
	if rule.PatchMD5 != "" {
		sum := md5.Sum(data)
		if hex.EncodeToString(sum[:]) != strings.ToLower(rule.PatchMD5) {
			return nil, xerrors.New(xerrors.KindCorruption, "fetchPatch", fmt.Errorf("patch %s failed MD5 check", rule.PatchURL))
		}
	}
	return data, nil
}

// indexBethesdaArchives walks a freshly extracted mod tree for packed
// BSA/BA2 containers (the two most common forms of Bethesda game-asset
// archive a mod's release ships) and indexes their contents into the
// shared disk-backed cache. The containers themselves are left packed on
// disk exactly as extracted: the game engine loads them directly, so the
// manager never needs to explode them into loose files. Indexing exists so
// later conflict detection can answer "does this mod's archive already
// provide path X" without re-opening the container each time.
func indexBethesdaArchives(modRoot string, cache *bsa.Cache) error {
	return filepath.Walk(modRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		format, detectErr := bsa.Detect(path)
		if detectErr != nil || format == bsa.FormatUnknown {
			return nil
		}

		switch format {
		case bsa.FormatBSA:
			r, err := bsa.Open(path)
			if err != nil {
				return nil
			}
			defer r.Close()
			_, _, err = cache.InsertStreaming(path, func(put func(path string, data []byte) error) error {
				for _, e := range r.List() {
					data, err := r.Extract(e.Path)
					if err != nil {
						return err
					}
					if err := put(e.Path, data); err != nil {
						return err
					}
				}
				return nil
			})
			return err
		case bsa.FormatBA2:
			r, err := bsa.OpenBa2(path)
			if err != nil {
				return nil
			}
			defer r.Close()
			_, _, err = cache.InsertStreaming(path, func(put func(path string, data []byte) error) error {
				for _, e := range r.List() {
					data, err := r.Extract(e.Path)
					if err != nil {
						return err
					}
					if err := put(e.Path, data); err != nil {
						return err
					}
				}
				return nil
			})
			return err
		}
		return nil
	})
}

func phaseScriptedInstall(cfg *Config) func(context.Context, *Scheduler) error {
	return func(ctx context.Context, sch *Scheduler) error {
		mods, err := sch.Store.GetAllMods(ctx)
		if err != nil {
			return err
		}
		for _, m := range mods {
			if !m.Scripted || m.Status != store.StatusDownloaded || !m.Preflight.Valid {
				continue
			}
			if err := sch.Store.UpdateModStatus(ctx, m.ID, store.StatusInstalling); err != nil {
				return err
			}
			if err := runScriptedInstall(cfg, m); err != nil {
				if merr := sch.Store.MarkModFailed(ctx, m.ID, err); merr != nil {
					return merr
				}
				continue
			}
			if err := sch.Store.UpdateModStatus(ctx, m.ID, store.StatusInstalled); err != nil {
				return err
			}
		}
		return nil
	}
}

func runScriptedInstall(cfg *Config, m store.Mod) error {
	tmp, err := fomod.IsolatedTempDir(cfg.ExtractRoot)
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	ex, err := archive.Open(m.LocalPath)
	if err != nil {
		return err
	}
	defer ex.Close()
	if err := ex.ExtractAll(tmp, 1); err != nil {
		return err
	}

	configPath, err := fomod.FindConfig(tmp)
	if err != nil {
		return err
	}
	fcfg, err := fomod.ParseFile(configPath)
	if err != nil {
		return err
	}

	var choices []fomod.Choice
	if m.Choices != "" {
		if err := json.Unmarshal([]byte(m.Choices), &choices); err != nil {
			return fmt.Errorf("decode recorded choices: %w", err)
		}
	}
	plan := fomod.BuildPlan(fcfg, choices, fomod.FileState{})

	dest := cfg.Layout.ModDir(m.FolderName)
	_, err = fomod.Apply(plan, filepath.Dir(configPath), dest)
	return err
}

func phaseGenerateModOrder(cfg *Config) func(context.Context, *Scheduler) error {
	return func(ctx context.Context, sch *Scheduler) error {
		mods, err := sch.Store.GetAllMods(ctx)
		if err != nil {
			return err
		}
		rules, err := sch.Store.GetModRules(ctx)
		if err != nil {
			return err
		}

		byRef := make(map[store.ModRef]string, len(mods))
		var collectionOrder []string
		for _, m := range mods {
			if m.Status == store.StatusFailed {
				continue
			}
			byRef[store.ModRef{Filename: m.LogicalFilename}] = m.FolderName
			collectionOrder = append(collectionOrder, m.FolderName)
		}

		plugins, err := sch.Store.GetPlugins(ctx)
		if err != nil {
			return err
		}
		pluginNames := make([]string, len(plugins))
		for i, p := range plugins {
			pluginNames[i] = p.Filename
		}
		pluginOwner := derivePluginOwners(cfg, mods, pluginNames)

		sortedPlugins := pluginNames
		if cfg.Sorter != nil {
			if sorted, err := cfg.Sorter.SortAll(ctx, pluginNames); err == nil {
				sortedPlugins = sorted
			}
			// Sorter failure falls back to collection order (already in
			// pluginNames/sortedPlugins), per §4.2's documented fallback.
		}

		order := loadorder.Blend(loadorder.Input{
			Mods:  collectionOrder,
			Rules: rules,
			FolderName: func(ref store.ModRef) (string, bool) {
				name, ok := byRef[ref]
				return name, ok
			},
			PluginOwner:   pluginOwner,
			SortedPlugins: sortedPlugins,
		})

		entries := make([]mo2.ModEntry, len(order))
		for i, name := range order {
			entries[i] = mo2.ModEntry{FolderName: name, Enabled: true}
		}
		return mo2.WriteModList(filepath.Join(cfg.Layout.ProfileDir(cfg.ProfileName), "modlist.txt"), entries)
	}
}

// derivePluginOwners figures out which extracted mod folder provides each
// plugin by scanning every mod's installed tree for a file matching one of
// the collection's plugin names. The store's plugin table carries no
// owning-mod reference (plugin ownership is a property of where a mod's
// files land, not something the manifest states directly), so this walks
// the already-extracted content instead of requiring a schema change.
func derivePluginOwners(cfg *Config, mods []store.Mod, pluginNames []string) map[string]string {
	wanted := make(map[string]string, len(pluginNames))
	for _, name := range pluginNames {
		wanted[strings.ToLower(name)] = name
	}
	owner := make(map[string]string)
	for _, m := range mods {
		if m.Status == store.StatusFailed {
			continue
		}
		root := cfg.Layout.ModDir(m.FolderName)
		filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if canonical, ok := wanted[strings.ToLower(filepath.Base(path))]; ok {
				if _, already := owner[canonical]; !already {
					owner[canonical] = m.FolderName
				}
			}
			return nil
		})
	}
	return owner
}

func phaseGeneratePluginFiles(cfg *Config) func(context.Context, *Scheduler) error {
	return func(ctx context.Context, sch *Scheduler) error {
		plugins, err := sch.Store.GetPlugins(ctx)
		if err != nil {
			return err
		}
		pluginNames := make([]string, len(plugins))
		enabled := make(map[string]bool, len(plugins))
		for i, p := range plugins {
			pluginNames[i] = p.Filename
			enabled[p.Filename] = p.Enabled
		}

		sortedPlugins := pluginNames
		if cfg.Sorter != nil {
			if sorted, err := cfg.Sorter.SortAll(ctx, pluginNames); err == nil {
				sortedPlugins = sorted
			}
		}

		entries := make([]loadorder.PluginEntry, len(sortedPlugins))
		for i, name := range sortedPlugins {
			entries[i] = loadorder.PluginEntry{Filename: name, Enabled: enabled[name]}
		}

		if cfg.BaseInstaller != nil {
			binPath, err := baseinstaller.Locate(*cfg.BaseInstaller)
			if err == nil {
				if err := baseinstaller.Run(ctx, binPath, *cfg.BaseInstaller, sch.Sink); err != nil {
					progress.Error(sch.Sink, err)
				} else {
					entries = append(entries, loadorder.PluginEntry{Filename: cfg.BaseInstaller.PackName, Enabled: true})
				}
			}
		}

		return mo2.WritePluginProfile(cfg.Layout.ProfileDir(cfg.ProfileName), cfg.GameType, entries)
	}
}
