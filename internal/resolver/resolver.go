// Package resolver maps a download source descriptor to a concrete fetch
// plan (design component C3). Resolution performs the minimum I/O needed to
// produce URLs (API calls, metadata fetches, consent-page scraping) but
// never downloads archive payloads itself — that is the fetch engine's job.
//
// Each source variant gets its own small Resolver implementation registered
// in a map, the concrete realization of §9's "polymorphism over sources"
// design note: a registry instead of one large type-switch.
package resolver

import (
	"context"

	"github.com/mosaicgate/collector/internal/store"
)

// PartPlan is one ordered piece of a multi-part download.
type PartPlan struct {
	URL    string
	Index  int
	Size   int64
	Offset int64
	Hash   string
}

// Plan is the resolver's output: either a single URL or an ordered list of
// parts to be concatenated by the fetch engine.
type Plan struct {
	// URL is the direct/signed download URL; it is empty when Parts is set.
	URL   string
	Parts []PartPlan

	// ManualPrompt is set instead of URL/Parts for sources requiring a user
	// task (Manual, OpaqueCloud): the fetch engine surfaces it rather than
	// attempting any request.
	ManualPrompt string
}

// IsManual reports whether this plan requires user action instead of an
// automated fetch.
func (p Plan) IsManual() bool { return p.ManualPrompt != "" }

// Resolver resolves one source descriptor variant into a Plan.
type Resolver interface {
	Resolve(ctx context.Context, archive store.Archive) (Plan, error)
}

// Registry dispatches to the Resolver registered for a source's Kind.
type Registry struct {
	byKind map[store.SourceKind]Resolver
}

// NewRegistry builds the default registry wiring every supported source
// kind to its resolver implementation.
func NewRegistry(modRepo *ModRepoResolver, cdn *MultiPartCDNResolver, driveA *CloudDriveAResolver, driveB *CloudDriveBResolver, local *LocalGameFileResolver) *Registry {
	return &Registry{byKind: map[store.SourceKind]Resolver{
		store.SourceModRepo:       modRepo,
		store.SourceDirectHttp:    DirectHttpResolver{},
		store.SourceMultiPartCDN:  cdn,
		store.SourceCloudDriveA:   driveA,
		store.SourceCloudDriveB:   driveB,
		store.SourceLocalGameFile: local,
		store.SourceManual:        ManualResolver{},
		store.SourceOpaqueCloud:   ManualResolver{},
	}}
}

// Resolve dispatches archive's source to the matching Resolver.
func (r *Registry) Resolve(ctx context.Context, archive store.Archive) (Plan, error) {
	res, ok := r.byKind[archive.Source.Kind]
	if !ok {
		return Plan{}, errUnknownSourceKind(archive.Source.Kind)
	}
	return res.Resolve(ctx, archive)
}
