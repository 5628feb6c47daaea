package enrichment

import (
	"regexp"
	"sort"
	"strings"
)

// -- Indicator Extraction --
//
// Atomic observables are pulled out of event text with fixed pattern tables.
// Hash patterns are anchored by length via word boundaries; the longest
// patterns run first so a SHA-256 is not also reported as its MD5-length
// prefix.

var (
	reIPv4   = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`)
	reDomain = regexp.MustCompile(`\b(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+(?:com|net|org|io|ru|cn|info|biz|xyz|top|onion)\b`)
	reSHA256 = regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)
	reSHA1   = regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`)
	reMD5    = regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`)
)

// ExtractIndicators scans the given text fragments and returns the sorted,
// de-duplicated set of observables found in them.
func ExtractIndicators(texts ...string) []string {
	blob := strings.ToLower(strings.Join(texts, "\n"))

	seen := make(map[string]struct{})
	consumed := blob

	// Longest hashes first: blank out each match so shorter hash patterns
	// cannot re-match a substring of it.
	for _, re := range []*regexp.Regexp{reSHA256, reSHA1, reMD5} {
		for _, m := range re.FindAllString(consumed, -1) {
			seen[m] = struct{}{}
		}
		consumed = re.ReplaceAllString(consumed, " ")
	}
	for _, m := range reIPv4.FindAllString(blob, -1) {
		seen[m] = struct{}{}
	}
	for _, m := range reDomain.FindAllString(blob, -1) {
		seen[m] = struct{}{}
	}

	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for ind := range seen {
		out = append(out, ind)
	}
	sort.Strings(out)
	return out
}
