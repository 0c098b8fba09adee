// Package scheduler drives the install orchestrator's phase sequence
// (design component C2): a fixed ordered list of phases, each re-entrant,
// checkpointed in the job store so a killed or interrupted run picks back
// up from the earliest phase that still has work. It directly generalizes
// the original source's CollectionInstaller::resume() into a []Phase slice
// walked in order.
package scheduler

import (
	"context"
	"fmt"

	"github.com/mosaicgate/collector/internal/logging"
	"github.com/mosaicgate/collector/internal/progress"
	"github.com/mosaicgate/collector/internal/store"
	"github.com/mosaicgate/collector/internal/xerrors"
)

// maxValidationAttempts bounds the archive validation retry loop (phase 5,
// validateWithRetry): a corrupt archive's size is checked up to this many
// times, with a re-fetch between checks, before it is marked failed.
// Scripted-installer preflight does not retry.
const maxValidationAttempts = 3

// Phase is one step of the fixed pipeline.
type Phase struct {
	Name string
	// Run executes the phase's work. It must be safe to call again after a
	// prior partial run: every phase inspects job-store state rather than
	// assuming a clean slate.
	Run func(ctx context.Context, s *Scheduler) error
}

// Scheduler owns the job store, the progress sink, and the fixed phase
// list, and walks phases strictly in order.
type Scheduler struct {
	Store  *store.Store
	Sink   progress.Sink
	Logger logging.Logger

	phases []Phase
}

// New builds a scheduler with the given phase list (ordinarily the output
// of DefaultPhases, but callers may substitute stub phases in tests).
func New(st *store.Store, sink progress.Sink, logger logging.Logger, phases []Phase) *Scheduler {
	return &Scheduler{Store: st, Sink: sink, Logger: logger, phases: phases}
}

// Run executes every phase in order from the beginning, the path used by a
// fresh install.
func (sch *Scheduler) Run(ctx context.Context) error {
	return sch.runFrom(ctx, 0)
}

// Resume re-enters the pipeline after a prior partial run: it resets any
// status left in a transient (in-flight) state, inspects per-status mod
// counts, and re-enters from the earliest phase that still has work,
// mirroring the original source's CollectionInstaller::resume().
func (sch *Scheduler) Resume(ctx context.Context) error {
	reset, err := sch.Store.ResetStuckMods(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		progress.Status(sch.Sink, fmt.Sprintf("reset %d mod(s) stuck in a transient state", reset))
	}

	stats, err := sch.Store.GetModStats(ctx)
	if err != nil {
		return err
	}

	start := earliestIncompletePhase(stats, len(sch.phases))
	return sch.runFrom(ctx, start)
}

// earliestIncompletePhase maps stats to the index of the first phase (in
// DefaultPhases' ordering) that still has outstanding work. Phases 0-2
// (parse, fetch masterlist, provision layout) are bootstrap steps; Resume
// runs the phase list from the returned index onward, so it runs them
// only when this returns 0 (an empty store). Phases are 0-indexed here,
// 1-indexed in the design's phase numbering.
func earliestIncompletePhase(stats store.Stats, phaseCount int) int {
	if stats.Total == 0 {
		return 0
	}
	if stats.Pending > 0 {
		return 3 // Download archives
	}
	if stats.Downloaded > 0 {
		return 4 // Validate archives
	}
	if stats.Extracted > 0 && stats.Installing == 0 && stats.Installed < stats.Total-stats.Failed {
		return 7 // Execute scripted installers
	}
	if stats.Installed+stats.Failed >= stats.Total {
		return 8 // Generate mod order
	}
	return 6 // Extract
}

func (sch *Scheduler) runFrom(ctx context.Context, start int) error {
	if start < 0 {
		start = 0
	}
	if start > len(sch.phases) {
		start = len(sch.phases)
	}
	for _, p := range sch.phases[start:] {
		progress.PhaseStarted(sch.Sink, p.Name, "")
		if err := p.Run(ctx, sch); err != nil {
			progress.Error(sch.Sink, err)
			return xerrors.New(xerrors.KindOf(err), "scheduler.Run:"+p.Name, err)
		}
		progress.PhaseCompleted(sch.Sink, p.Name)
	}
	return nil
}
