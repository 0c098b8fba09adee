package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/mosaicgate/collector/internal/httpclient"
	"github.com/mosaicgate/collector/internal/store"
	"github.com/mosaicgate/collector/internal/xerrors"
)

// RateLimit tracks one counter pair (hourly or daily) as reported by the
// mod-repo endpoint's response headers.
type RateLimit struct {
	Limit     int
	Remaining int
	ResetUnix int64
}

// Exhausted reports whether no requests remain in this window.
func (r RateLimit) Exhausted() bool { return r.Remaining <= 0 }

// ModRepoResolver resolves the ModRepo source variant: it exchanges a
// per-user API credential for a signed download URL and tracks the two
// rate-limit counters the endpoint reports.
type ModRepoResolver struct {
	APIKey       string
	EndpointBase string // e.g. "https://api.example-modrepo.test"

	mu     sync.Mutex
	hourly RateLimit
	daily  RateLimit
}

type signedURLEntry struct {
	URI       string `json:"URI"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

// Resolve implements Resolver. If the archive carries a protocol-handler
// handoff token in Source.URL, that URL is used directly and bypasses the
// hourly limit, matching the design's explicit carve-out.
func (m *ModRepoResolver) Resolve(ctx context.Context, archive store.Archive) (Plan, error) {
	if archive.Source.URL != "" {
		return Plan{URL: archive.Source.URL}, nil
	}
	if m.APIKey == "" {
		return Plan{}, xerrors.New(xerrors.KindConfig, "resolver.ModRepo", fmt.Errorf("no API credential configured"))
	}

	m.mu.Lock()
	hourlyExhausted := m.hourly.Exhausted() && m.hourly.Limit > 0
	m.mu.Unlock()
	if hourlyExhausted {
		return Plan{}, xerrors.New(xerrors.KindRateLimited, "resolver.ModRepo", fmt.Errorf("hourly rate limit exhausted, resets at %d", m.hourly.ResetUnix))
	}

	url := fmt.Sprintf("%s/v1/mods/%s/files/%s/download_link.json", m.EndpointBase, archive.Source.ModID, archive.Source.FileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Plan{}, xerrors.New(xerrors.KindConfig, "resolver.ModRepo", err)
	}
	req.Header.Set("apikey", m.APIKey)
	req.Header.Set("user-agent", httpclient.UserAgent)

	resp, err := httpclient.Client().Do(req)
	if err != nil {
		return Plan{}, xerrors.New(xerrors.KindTransient, "resolver.ModRepo", err)
	}
	defer resp.Body.Close()

	m.recordRateLimitHeaders(resp.Header)

	switch resp.StatusCode {
	case http.StatusOK:
		var entries []signedURLEntry
		if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
			return Plan{}, xerrors.New(xerrors.KindCorruption, "resolver.ModRepo", fmt.Errorf("decode signed url response: %w", err))
		}
		if len(entries) == 0 {
			return Plan{}, xerrors.New(xerrors.KindSourceUnavailable, "resolver.ModRepo", fmt.Errorf("no download locations returned"))
		}
		return Plan{URL: entries[0].URI}, nil
	case http.StatusTooManyRequests:
		return Plan{}, xerrors.New(xerrors.KindRateLimited, "resolver.ModRepo", fmt.Errorf("429 from signed-url endpoint"))
	case http.StatusForbidden:
		return Plan{}, xerrors.New(xerrors.KindForbidden, "resolver.ModRepo", fmt.Errorf("403: premium account required, consider protocol-handler mode"))
	default:
		return Plan{}, xerrors.New(xerrors.KindTransient, "resolver.ModRepo", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
}

func (m *ModRepoResolver) recordRateLimitHeaders(h http.Header) {
	parse := func(prefix string) RateLimit {
		lim, _ := strconv.Atoi(h.Get("X-RL-" + prefix + "-Limit"))
		rem, _ := strconv.Atoi(h.Get("X-RL-" + prefix + "-Remaining"))
		reset, _ := strconv.ParseInt(h.Get("X-RL-"+prefix+"-Reset"), 10, 64)
		return RateLimit{Limit: lim, Remaining: rem, ResetUnix: reset}
	}
	hourly := parse("Hourly")
	daily := parse("Daily")

	m.mu.Lock()
	defer m.mu.Unlock()
	if hourly.Limit > 0 {
		m.hourly = hourly
	}
	if daily.Limit > 0 {
		m.daily = daily
	}
}

// RateLimits returns a snapshot of the last-observed hourly/daily counters.
func (m *ModRepoResolver) RateLimits() (hourly, daily RateLimit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hourly, m.daily
}

// lowWaterThreshold is the remaining-request fraction below which the
// resolver should log a warning per §5's shared-resource note.
const lowWaterThreshold = 0.1

// LowOnRequests reports whether either counter has dropped under the
// low-water threshold.
func (m *ModRepoResolver) LowOnRequests() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	low := func(rl RateLimit) bool {
		return rl.Limit > 0 && float64(rl.Remaining)/float64(rl.Limit) < lowWaterThreshold
	}
	return low(m.hourly) || low(m.daily)
}
