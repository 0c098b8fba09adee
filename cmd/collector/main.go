// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package main provides the collector executable: the command-line front
// end to the install orchestrator (design component C2 and everything it
// drives).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	humanize "github.com/dustin/go-humanize"
	ff "github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/mosaicgate/collector/internal/bsa"
	"github.com/mosaicgate/collector/internal/gamedata"
	"github.com/mosaicgate/collector/internal/logging"
	"github.com/mosaicgate/collector/internal/manifest"
	"github.com/mosaicgate/collector/internal/mo2"
	"github.com/mosaicgate/collector/internal/patch"
	"github.com/mosaicgate/collector/internal/progress"
	"github.com/mosaicgate/collector/internal/resolver"
	"github.com/mosaicgate/collector/internal/router"
	"github.com/mosaicgate/collector/internal/scheduler"
	"github.com/mosaicgate/collector/internal/sorter"
	"github.com/mosaicgate/collector/internal/store"
	"github.com/mosaicgate/collector/internal/xdg"
	"github.com/mosaicgate/collector/internal/xerrors"
	"github.com/schollz/progressbar/v3"
)

// Exit codes, per §6: 0 success; 1 generic failure; 2 configuration/
// validation failure; 3 external-tool failure; 4 user-aborted.
const (
	exitOK             = 0
	exitGenericFailure = 1
	exitConfigFailure  = 2
	exitExternalTool   = 3
	exitUserAborted    = 4
)

func main() {
	attachStateLog()
	log := logging.For("collector")

	var (
		manifestPath string
		gamePath     string
		gameType     string
		installRoot  string
		profileName  string
	)

	rootFlags := ff.NewFlagSet("collector")

	installFlags := ff.NewFlagSet("install").SetParent(rootFlags)
	installFlags.StringVar(&manifestPath, 'm', "manifest", "", "Path to the collection manifest JSON")
	installFlags.StringVar(&gamePath, 'g', "game-path", "", "Path to the game installation")
	installFlags.StringVar(&gameType, 't', "game-type", "skyrimspecialedition", "Game type identifier")
	installFlags.StringVar(&installRoot, 'r', "install-root", "", "Root directory for the managed install")
	installFlags.StringVar(&profileName, 'p', "profile", "Default", "Profile name")
	installCmd := &ff.Command{
		Name:      "install",
		Usage:     "collector install -m MANIFEST -g GAME_PATH -r INSTALL_ROOT",
		ShortHelp: "Install a collection from scratch",
		Flags:     installFlags,
		Exec:      runInstall(log, &manifestPath, &gamePath, &gameType, &installRoot, &profileName),
	}

	resumeFlags := ff.NewFlagSet("resume").SetParent(rootFlags)
	resumeFlags.StringVar(&installRoot, 'r', "install-root", "", "Root directory for the managed install")
	resumeFlags.StringVar(&gameType, 't', "game-type", "skyrimspecialedition", "Game type identifier")
	resumeFlags.StringVar(&profileName, 'p', "profile", "Default", "Profile name")
	resumeCmd := &ff.Command{
		Name:      "resume",
		Usage:     "collector resume -r INSTALL_ROOT",
		ShortHelp: "Resume an interrupted install",
		Flags:     resumeFlags,
		Exec:      runResume(log, &installRoot, &gameType, &profileName),
	}

	statusFlags := ff.NewFlagSet("status").SetParent(rootFlags)
	statusFlags.StringVar(&installRoot, 'r', "install-root", "", "Root directory for the managed install")
	statusCmd := &ff.Command{
		Name:      "status",
		Usage:     "collector status -r INSTALL_ROOT",
		ShortHelp: "Print per-status mod counts",
		Flags:     statusFlags,
		Exec:      runStatus(&installRoot),
	}

	validateFlags := ff.NewFlagSet("validate").SetParent(rootFlags)
	validateFlags.StringVar(&manifestPath, 'm', "manifest", "", "Path to the collection manifest JSON")
	validateCmd := &ff.Command{
		Name:      "validate",
		Usage:     "collector validate -m MANIFEST",
		ShortHelp: "Parse and validate a manifest without installing anything",
		Flags:     validateFlags,
		Exec:      runValidate(&manifestPath),
	}

	root := &ff.Command{
		Name:        "collector",
		Usage:       "collector SUBCOMMAND ...",
		ShortHelp:   "Mod collection installer",
		Flags:       rootFlags,
		Subcommands: []*ff.Command{installCmd, resumeCmd, statusCmd, validateCmd},
	}

	err := root.ParseAndRun(context.Background(), os.Args[1:])
	if err == nil {
		os.Exit(exitOK)
	}

	if errors.Is(err, flag.ErrHelp) || errors.Is(err, ff.ErrNoExec) {
		fmt.Fprintln(os.Stderr, ffhelp.Command(root))
		os.Exit(exitOK)
	}

	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(exitCodeFor(err))
}

// attachStateLog tees every component logger's output to a persistent
// run log under the XDG state directory, in addition to stderr, so a
// failed install can be diagnosed after the terminal scrollback is gone.
// Failure to open the state log is non-fatal: logging falls back to
// stderr only.
func attachStateLog() {
	base, err := xdg.UserStateDir()
	if err != nil {
		return
	}
	dir := filepath.Join(base, "collector")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "collector.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	logging.SetOutput(io.MultiWriter(os.Stderr, f))
}

// exitCodeFor maps an error's xerrors.Kind onto the documented exit code
// scheme.
func exitCodeFor(err error) int {
	switch xerrors.KindOf(err) {
	case xerrors.KindConfig, xerrors.KindPreflight:
		return exitConfigFailure
	case xerrors.KindExternalTool:
		return exitExternalTool
	default:
		return exitGenericFailure
	}
}

func runInstall(log logging.Logger, manifestPath, gamePath, gameType, installRoot, profileName *string) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		if *manifestPath == "" || *installRoot == "" {
			return xerrors.New(xerrors.KindConfig, "collector.install", fmt.Errorf("--manifest and --install-root are required"))
		}

		st, sch, err := bootstrap(ctx, log, *manifestPath, *gamePath, *gameType, *installRoot, *profileName)
		if err != nil {
			return err
		}
		defer st.Close()

		bar := progressbar.Default(-1, "installing")
		sink := progress.Func(func(e progress.Event) {
			switch e.Kind {
			case progress.KindStatus:
				bar.Describe(e.Message)
			case progress.KindDownloading:
				bar.Describe(fmt.Sprintf("%s: %s/%s at %s/s", e.ModName,
					humanize.Bytes(uint64(e.Current)), humanize.Bytes(uint64(e.Total)),
					humanize.Bytes(uint64(e.BytesPerSecond))))
			}
		})
		sch.Sink = sink

		return sch.Run(ctx)
	}
}

func runResume(log logging.Logger, installRoot, gameType, profileName *string) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		if *installRoot == "" {
			return xerrors.New(xerrors.KindConfig, "collector.resume", fmt.Errorf("--install-root is required"))
		}
		st, err := store.Open(*installRoot, "collection")
		if err != nil {
			return err
		}
		defer st.Close()

		cfg := buildConfig(*installRoot, "", *gameType, *profileName)
		sch := scheduler.New(st, progress.Discard, log, scheduler.DefaultPhases(cfg))
		return sch.Resume(ctx)
	}
}

func runStatus(installRoot *string) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		if *installRoot == "" {
			return xerrors.New(xerrors.KindConfig, "collector.status", fmt.Errorf("--install-root is required"))
		}
		st, err := store.Open(*installRoot, "collection")
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.GetModStats(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("pending=%d downloading=%d downloaded=%d extracting=%d extracted=%d installing=%d installed=%d failed=%d total=%d\n",
			stats.Pending, stats.Downloading, stats.Downloaded, stats.Extracting, stats.Extracted, stats.Installing, stats.Installed, stats.Failed, stats.Total)
		return nil
	}
}

func runValidate(manifestPath *string) func(context.Context, []string) error {
	return func(ctx context.Context, args []string) error {
		if *manifestPath == "" {
			return xerrors.New(xerrors.KindConfig, "collector.validate", fmt.Errorf("--manifest is required"))
		}
		f, err := os.Open(*manifestPath)
		if err != nil {
			return xerrors.New(xerrors.KindConfig, "collector.validate", err)
		}
		defer f.Close()

		coll, err := manifest.Parse(f)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d mod(s), %d rule(s), %d plugin(s)\n", coll.Name, len(coll.Mods), len(coll.Rules), len(coll.Plugins))
		return nil
	}
}

// bootstrap opens (creating if absent) the job store for a fresh install,
// imports the manifest, and assembles the scheduler.
func bootstrap(ctx context.Context, log logging.Logger, manifestPath, gamePath, gameType, installRoot, profileName string) (*store.Store, *scheduler.Scheduler, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, nil, xerrors.New(xerrors.KindConfig, "collector.bootstrap", err)
	}
	defer f.Close()

	coll, err := manifest.Parse(f)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(installRoot, "collection")
	if err != nil {
		return nil, nil, err
	}
	if err := st.ImportCollection(ctx, coll); err != nil {
		st.Close()
		return nil, nil, err
	}

	cfg := buildConfig(installRoot, gamePath, gameType, profileName)
	sch := scheduler.New(st, progress.Discard, log, scheduler.DefaultPhases(cfg))
	return st, sch, nil
}

func buildConfig(installRoot, gamePath, gameTypeStr, profileName string) *scheduler.Config {
	layout := mo2.NewLayout(installRoot)
	gt := gamedata.Type(gameTypeStr)

	var sorterInstance *sorter.Sorter
	if s, err := sorter.New(gameTypeStr, gamePath, layout.ModsDir); err == nil {
		sorterInstance = s
	}

	cachePath, _ := os.UserCacheDir()
	masterlistPath := filepath.Join(cachePath, "collector", gameTypeStr+"-masterlist.yaml")

	var bsaCache *bsa.Cache
	if c, err := bsa.OpenCache(filepath.Join(installRoot, ".bsa-index.db")); err == nil {
		bsaCache = c
	}

	var patchCache *patch.Cache
	if c, err := patch.OpenCache(filepath.Join(installRoot, ".patch-cache")); err == nil {
		patchCache = c
	}

	registry := resolver.NewRegistry(
		&resolver.ModRepoResolver{APIKey: os.Getenv("COLLECTOR_MODREPO_API_KEY")},
		&resolver.MultiPartCDNResolver{},
		resolver.NewCloudDriveAResolver(),
		&resolver.CloudDriveBResolver{},
		&resolver.LocalGameFileResolver{GamePath: gamePath, DataDir: gamedata.DataDir(gt, gamePath)},
	)

	return &scheduler.Config{
		GameType:            gt,
		GamePath:            gamePath,
		Layout:              layout,
		ProfileName:         profileName,
		Resolvers:           registry,
		Router:              router.New(gameTypeStr),
		Sorter:              sorterInstance,
		BSACache:            bsaCache,
		PatchCache:          patchCache,
		MasterlistCachePath: masterlistPath,
		ExtractRoot:         filepath.Join(installRoot, ".tmp"),
	}
}
