package resolver

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/mosaicgate/collector/internal/httpclient"
	"github.com/mosaicgate/collector/internal/store"
	"github.com/mosaicgate/collector/internal/xerrors"
)

// cdnPart mirrors one entry of the gzip-compressed definition.json.gz
// format from §6: {Hash, Index, Offset, Size}.
type cdnPart struct {
	Hash   string `json:"Hash"`
	Index  int    `json:"Index"`
	Offset int64  `json:"Offset"`
	Size   int64  `json:"Size"`
}

type cdnDefinition struct {
	Author           string    `json:"Author"`
	OriginalFileName string    `json:"OriginalFileName"`
	MungedName       string    `json:"MungedName"`
	Hash             string    `json:"Hash"`
	Size             int64     `json:"Size"`
	Parts            []cdnPart `json:"Parts"`
}

// MultiPartCDNResolver resolves the MultiPartCDN variant: fetch
// <base>/definition.json.gz, parse the part list, and build an ordered
// fetch plan. A single-shot direct fallback URL is attempted first, since
// many archives hosted this way are small enough to also have a direct
// single-file mirror.
type MultiPartCDNResolver struct{}

// Resolve implements Resolver.
func (MultiPartCDNResolver) Resolve(ctx context.Context, archive store.Archive) (Plan, error) {
	if archive.Source.BaseURL == "" {
		return Plan{}, xerrors.New(xerrors.KindConfig, "resolver.MultiPartCDN", fmt.Errorf("archive %q has no CDN base URL", archive.Filename))
	}

	if archive.Source.URL != "" {
		if resp, err := httpclient.Get(ctx, archive.Source.URL); err == nil {
			resp.Body.Close()
			if resp.StatusCode == 200 {
				return Plan{URL: archive.Source.URL}, nil
			}
		}
	}

	defURL := archive.Source.BaseURL + "/definition.json.gz"
	resp, err := httpclient.Get(ctx, defURL)
	if err != nil {
		return Plan{}, xerrors.New(xerrors.KindTransient, "resolver.MultiPartCDN", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return Plan{}, xerrors.New(xerrors.KindSourceUnavailable, "resolver.MultiPartCDN", fmt.Errorf("definition fetch status %d", resp.StatusCode))
	}

	def, err := parseDefinition(resp.Body)
	if err != nil {
		return Plan{}, xerrors.New(xerrors.KindCorruption, "resolver.MultiPartCDN", err)
	}
	if def.Size != archive.ExpectedSize && archive.ExpectedSize != 0 {
		return Plan{}, xerrors.New(xerrors.KindCorruption, "resolver.MultiPartCDN",
			fmt.Errorf("definition size %d does not match expected archive size %d", def.Size, archive.ExpectedSize))
	}

	// The definition's Parts array is not guaranteed to already be listed
	// in index order; sort explicitly so the plan's part order always
	// matches ascending Index regardless of how the CDN wrote it (P5).
	sortedParts := make([]cdnPart, len(def.Parts))
	copy(sortedParts, def.Parts)
	sort.Slice(sortedParts, func(i, j int) bool { return sortedParts[i].Index < sortedParts[j].Index })

	var sum int64
	parts := make([]PartPlan, 0, len(sortedParts))
	for _, p := range sortedParts {
		sum += p.Size
		parts = append(parts, PartPlan{
			URL:    fmt.Sprintf("%s/%d", archive.Source.BaseURL, p.Index),
			Index:  p.Index,
			Size:   p.Size,
			Offset: p.Offset,
			Hash:   p.Hash,
		})
	}
	if sum != def.Size {
		return Plan{}, xerrors.New(xerrors.KindCorruption, "resolver.MultiPartCDN",
			fmt.Errorf("sum of part sizes %d does not equal declared total %d (P5)", sum, def.Size))
	}

	return Plan{Parts: parts}, nil
}

// parseDefinition gzip-decompresses and JSON-decodes a CDN definition,
// tolerating leading garbage/BOM bytes before the gzip magic as the design
// requires ("tolerant leading-byte skipper").
func parseDefinition(r io.Reader) (cdnDefinition, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return cdnDefinition{}, fmt.Errorf("read definition: %w", err)
	}
	start := 0
	for start < len(raw)-1 {
		if raw[start] == 0x1f && raw[start+1] == 0x8b {
			break
		}
		start++
	}
	if start >= len(raw)-1 {
		return cdnDefinition{}, fmt.Errorf("no gzip magic found in definition payload")
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw[start:]))
	if err != nil {
		return cdnDefinition{}, fmt.Errorf("open gzip definition: %w", err)
	}
	defer gz.Close()
	var def cdnDefinition
	if err := json.NewDecoder(gz).Decode(&def); err != nil {
		return cdnDefinition{}, fmt.Errorf("decode definition json: %w", err)
	}
	return def, nil
}
