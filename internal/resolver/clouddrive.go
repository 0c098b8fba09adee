package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"regexp"

	"github.com/mosaicgate/collector/internal/store"
	"github.com/mosaicgate/collector/internal/xerrors"
)

// CloudDriveAResolver handles large-file consent pages (the design's
// CloudDriveA variant): an initial request returns an HTML page requiring a
// confirmation token before the real download starts. Cookies must persist
// across the two requests, so this resolver owns its own client with a
// cookie jar rather than using the shared httpclient singleton.
type CloudDriveAResolver struct {
	client *http.Client
}

// NewCloudDriveAResolver builds a resolver with a fresh cookie jar.
func NewCloudDriveAResolver() *CloudDriveAResolver {
	jar, _ := cookiejar.New(nil)
	return &CloudDriveAResolver{client: &http.Client{Jar: jar}}
}

var (
	driveAConfirmParam = regexp.MustCompile(`confirm=([0-9A-Za-z_-]+)`)
	driveAUUIDParam    = regexp.MustCompile(`uuid=([0-9a-fA-F-]+)`)
	driveADownloadJSON = regexp.MustCompile(`"downloadUrl"\s*:\s*"([^"]+)"`)
	driveAFormAction   = regexp.MustCompile(`<form[^>]*id="download-form"[^>]*action="([^"]+)"`)
	driveAErrorPhrases = []string{"quota exceeded", "virus scan warning", "file not found", "access denied"}
)

// Resolve implements Resolver.
func (c *CloudDriveAResolver) Resolve(ctx context.Context, archive store.Archive) (Plan, error) {
	if archive.Source.URL == "" {
		return Plan{}, xerrors.New(xerrors.KindConfig, "resolver.CloudDriveA", fmt.Errorf("archive %q has no initial page URL", archive.Filename))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archive.Source.URL, nil)
	if err != nil {
		return Plan{}, xerrors.New(xerrors.KindConfig, "resolver.CloudDriveA", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Plan{}, xerrors.New(xerrors.KindTransient, "resolver.CloudDriveA", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Plan{}, xerrors.New(xerrors.KindTransient, "resolver.CloudDriveA", err)
	}
	page := string(body)

	for _, phrase := range driveAErrorPhrases {
		if containsFold(page, phrase) {
			return Plan{}, xerrors.New(xerrors.KindSourceUnavailable, "resolver.CloudDriveA", fmt.Errorf("host reported: %s", phrase))
		}
	}

	if m := driveADownloadJSON.FindStringSubmatch(page); m != nil {
		return Plan{URL: m[1]}, nil
	}
	if m := driveAFormAction.FindStringSubmatch(page); m != nil {
		return Plan{URL: m[1]}, nil
	}
	if m := driveAConfirmParam.FindStringSubmatch(page); m != nil {
		return Plan{URL: archive.Source.URL + "&confirm=" + m[1]}, nil
	}
	if m := driveAUUIDParam.FindStringSubmatch(page); m != nil {
		return Plan{URL: archive.Source.URL + "&uuid=" + m[1]}, nil
	}

	return Plan{}, xerrors.New(xerrors.KindSourceUnavailable, "resolver.CloudDriveA", fmt.Errorf("could not harvest a download URL from the consent page"))
}

// CloudDriveBResolver handles single-page file hosts (the design's
// CloudDriveB variant): the download URL is embedded in the page via one of
// a few known shapes (button attribute, JS redirect, aria-label).
type CloudDriveBResolver struct{}

var (
	driveBButtonHref  = regexp.MustCompile(`id="downloadButton"[^>]*href="([^"]+)"`)
	driveBJSRedirect  = regexp.MustCompile(`window\.location(?:\.href)?\s*=\s*['"]([^'"]+)['"]`)
	driveBAriaLabel   = regexp.MustCompile(`aria-label="[Dd]ownload[^"]*"[^>]*href="([^"]+)"`)
	driveBErrorPhrase = []string{"file has been deleted", "file is no longer available", "this file is unavailable"}
)

// Resolve implements Resolver.
func (CloudDriveBResolver) Resolve(ctx context.Context, archive store.Archive) (Plan, error) {
	if archive.Source.URL == "" {
		return Plan{}, xerrors.New(xerrors.KindConfig, "resolver.CloudDriveB", fmt.Errorf("archive %q has no page URL", archive.Filename))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archive.Source.URL, nil)
	if err != nil {
		return Plan{}, xerrors.New(xerrors.KindConfig, "resolver.CloudDriveB", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Plan{}, xerrors.New(xerrors.KindTransient, "resolver.CloudDriveB", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Plan{}, xerrors.New(xerrors.KindTransient, "resolver.CloudDriveB", err)
	}
	page := string(body)

	for _, phrase := range driveBErrorPhrase {
		if containsFold(page, phrase) {
			return Plan{}, xerrors.New(xerrors.KindSourceUnavailable, "resolver.CloudDriveB", fmt.Errorf("host reported: %s", phrase))
		}
	}

	if m := driveBButtonHref.FindStringSubmatch(page); m != nil {
		return Plan{URL: m[1]}, nil
	}
	if m := driveBAriaLabel.FindStringSubmatch(page); m != nil {
		return Plan{URL: m[1]}, nil
	}
	if m := driveBJSRedirect.FindStringSubmatch(page); m != nil {
		return Plan{URL: m[1]}, nil
	}

	return Plan{}, xerrors.New(xerrors.KindSourceUnavailable, "resolver.CloudDriveB", fmt.Errorf("could not find a download link on the page"))
}

func containsFold(haystack, needle string) bool {
	h, n := []rune(haystack), []rune(needle)
	lowerAll := func(r []rune) []rune {
		out := make([]rune, len(r))
		for i, c := range r {
			if c >= 'A' && c <= 'Z' {
				c += 'a' - 'A'
			}
			out[i] = c
		}
		return out
	}
	h, n = lowerAll(h), lowerAll(n)
	hs, ns := string(h), string(n)
	for i := 0; i+len(ns) <= len(hs); i++ {
		if hs[i:i+len(ns)] == ns {
			return true
		}
	}
	return len(ns) == 0
}
