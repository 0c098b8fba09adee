// Package progress defines the structured event stream (design component
// C12) that every phase and item emits. It generalizes the teacher tool's
// single ad-hoc progressbar.ProgressBar (mods/cache.go's Pull) into a typed
// event shape that a CLI or GUI subscriber renders however it likes.
package progress

import "github.com/mosaicgate/collector/internal/store"

// Kind tags the variant of an Event.
type Kind int

const (
	KindPhaseStarted Kind = iota
	KindPhaseCompleted
	KindDownloading
	KindDownloadSkipped
	KindExtracting
	KindInstalling
	KindDirectiveStarted
	KindDirectiveProgress
	KindStatus
	KindError
	KindStats
)

// Event is a single progress notification. Only the fields relevant to Kind
// are populated; the rest are zero.
type Event struct {
	Kind Kind

	Phase   string
	Message string

	ModName  string
	ModIndex int
	ModCount int

	Current int64
	Total   int64

	SkippedCount int
	SkippedBytes int64

	BytesPerSecond float64

	Err error

	Stats store.Stats
}

// Sink receives Events. The scheduler and its subsystems hold one Sink and
// send every event to it; nil Sinks are never passed, use Discard instead.
type Sink interface {
	Emit(Event)
}

// Func adapts a plain function to the Sink interface.
type Func func(Event)

// Emit implements Sink.
func (f Func) Emit(e Event) { f(e) }

// Discard is a Sink that drops every event, used by components under test
// that don't care about progress reporting.
var Discard Sink = Func(func(Event) {})

// Chan wraps a channel as a Sink, used by the CLI subscriber to decouple
// the producing goroutines from the rendering goroutine.
type Chan chan Event

// Emit implements Sink. It blocks if the channel is unbuffered or full;
// callers size the channel for their expected burst rate.
func (c Chan) Emit(e Event) { c <- e }

// PhaseStarted emits the started event every phase must send, even on a
// fast-path no-work run.
func PhaseStarted(sink Sink, phase, message string) {
	sink.Emit(Event{Kind: KindPhaseStarted, Phase: phase, Message: message})
}

// PhaseCompleted emits the matching completion event.
func PhaseCompleted(sink Sink, phase string) {
	sink.Emit(Event{Kind: KindPhaseCompleted, Phase: phase})
}

// Status emits a free-text status line.
func Status(sink Sink, message string) {
	sink.Emit(Event{Kind: KindStatus, Message: message})
}

// Error emits an error event; the scheduler continues unless the error's
// kind is fatal.
func Error(sink Sink, err error) {
	sink.Emit(Event{Kind: KindError, Err: err})
}
