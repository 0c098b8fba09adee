package scheduler

import (
	"context"
	"testing"

	"github.com/mosaicgate/collector/internal/logging"
	"github.com/mosaicgate/collector/internal/progress"
	"github.com/mosaicgate/collector/internal/store"
)

func TestEarliestIncompletePhaseFreshRun(t *testing.T) {
	if got := earliestIncompletePhase(store.Stats{}, 10); got != 0 {
		t.Fatalf("got %d, want 0 for an empty store", got)
	}
}

func TestEarliestIncompletePhasePendingMeansDownload(t *testing.T) {
	stats := store.Stats{Total: 5, Pending: 2}
	if got := earliestIncompletePhase(stats, 10); got != 3 {
		t.Fatalf("got %d, want 3 (download)", got)
	}
}

func TestRunExecutesPhasesInOrder(t *testing.T) {
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer st.Close()

	var order []string
	phases := []Phase{
		{Name: "a", Run: func(ctx context.Context, s *Scheduler) error { order = append(order, "a"); return nil }},
		{Name: "b", Run: func(ctx context.Context, s *Scheduler) error { order = append(order, "b"); return nil }},
	}
	sch := New(st, progress.Discard, logging.For("test"), phases)
	if err := sch.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("got %v, want [a b]", order)
	}
}

func TestRunStopsOnFirstError(t *testing.T) {
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer st.Close()

	var ran []string
	phases := []Phase{
		{Name: "a", Run: func(ctx context.Context, s *Scheduler) error {
			ran = append(ran, "a")
			return context.DeadlineExceeded
		}},
		{Name: "b", Run: func(ctx context.Context, s *Scheduler) error { ran = append(ran, "b"); return nil }},
	}
	sch := New(st, progress.Discard, logging.For("test"), phases)
	if err := sch.Run(context.Background()); err == nil {
		t.Fatal("expected an error from phase a")
	}
	if len(ran) != 1 {
		t.Fatalf("phase b must not run after phase a fails, got %v", ran)
	}
}

func TestResumeResetsStuckModsBeforeRunning(t *testing.T) {
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer st.Close()

	ran := false
	phases := []Phase{{Name: "only", Run: func(ctx context.Context, s *Scheduler) error { ran = true; return nil }}}
	sch := New(st, progress.Discard, logging.For("test"), phases)
	if err := sch.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !ran {
		t.Fatal("Resume must still run the phase list on an empty store")
	}
}
