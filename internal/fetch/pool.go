package fetch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mosaicgate/collector/internal/progress"
	"github.com/mosaicgate/collector/internal/resolver"
	"github.com/mosaicgate/collector/internal/store"
)

// Job is one archive's fetch work item, produced by the resolver and
// consumed by the bounded pool.
type Job struct {
	Archive  store.Archive
	Plan     resolver.Plan
	Dest     string
	ModName  string
	ModIndex int
	ModCount int
}

// RunAll fetches every job concurrently, bounded to runtime.GOMAXPROCS(0)
// in-flight downloads (§4.4, §5's "bounded parallelism"), grounded on the
// teacher pack's errgroup.SetLimit usage for its own bounded mod-update
// fan-out. It returns the first job error (errgroup's standard policy).
// That error cancels the context shared by all jobs, so jobs still in
// flight stop at their next request or wait; RunAll returns once every
// started job has returned.
func RunAll(ctx context.Context, jobs []Job, sink progress.Sink) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := os.MkdirAll(filepath.Dir(job.Dest), 0o755); err != nil {
				return err
			}
			if job.Plan.IsManual() {
				progress.Status(sink, "manual download required: "+job.Plan.ManualPrompt)
				return nil
			}
			if len(job.Plan.Parts) > 0 {
				return MultiPart(ctx, job.Plan.Parts, job.Dest, job.Archive.ExpectedSize, job.ModName, job.ModIndex, job.ModCount, sink)
			}
			t := Target{
				URL: job.Plan.URL, Dest: job.Dest, ExpectedSize: job.Archive.ExpectedSize,
				ModName: job.ModName, ModIndex: job.ModIndex, ModCount: job.ModCount,
			}
			return File(ctx, t, sink)
		})
	}
	return g.Wait()
}
