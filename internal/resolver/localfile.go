package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// findCaseInsensitive looks for a file named target (case-insensitively)
// directly inside dir, the same resolution rule the design's path-handling
// note (§9) calls for: normalize to lowercase for lookup, preserve original
// case for the result.
func findCaseInsensitive(dir, target string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("no directory configured to search for %q", target)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %q: %w", dir, err)
	}
	want := strings.ToLower(target)
	for _, e := range entries {
		if strings.ToLower(e.Name()) == want {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%q not found under %q", target, dir)
}
