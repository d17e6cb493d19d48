// Package pagerange parses user-entered color page specifications.
package pagerange

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// All selects every page.
const All = "all"

// ErrMalformed signals a token that is not an integer or A-B range.
var ErrMalformed = errors.New("malformed page range")

// ErrOutOfRange is returned in strict mode for indices beyond the page count.
var ErrOutOfRange = errors.New("page index out of range")

// Options controls parser behaviour. The default is lenient: indices outside
// [1, maxPages] are dropped so a typo does not reject the whole order. Strict
// turns those into errors instead.
type Options struct {
	Strict bool
}

// FileSpec pairs one file's page count with its own specification.
type FileSpec struct {
	Spec  string
	Pages int
}

// Parse resolves a specification into an ascending, duplicate-free set of
// 1-based page indices clipped to [1, maxPages]. The empty string means no
// pages; the literal "all" (exact case) means every page.
func Parse(spec string, maxPages int) ([]int, error) {
	return ParseWith(spec, maxPages, Options{})
}

// ParseWith is Parse with explicit Options.
func ParseWith(spec string, maxPages int, opts Options) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	if maxPages < 0 {
		maxPages = 0
	}
	if spec == All {
		pages := make([]int, 0, maxPages)
		for i := 1; i <= maxPages; i++ {
			pages = append(pages, i)
		}
		return pages, nil
	}

	seen := make(map[int]struct{})
	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("%w: empty token", ErrMalformed)
		}
		lo, hi, err := parseToken(token)
		if err != nil {
			return nil, err
		}
		// Clamp before iterating so an absurd endpoint cannot spin the loop.
		if lo < 1 || hi > maxPages {
			if opts.Strict {
				bad := lo
				if bad >= 1 {
					bad = hi
				}
				return nil, fmt.Errorf("%w: %d (document has %d pages)", ErrOutOfRange, bad, maxPages)
			}
			if lo < 1 {
				lo = 1
			}
			if hi > maxPages {
				hi = maxPages
			}
		}
		for i := lo; i <= hi; i++ {
			seen[i] = struct{}{}
		}
	}

	pages := make([]int, 0, len(seen))
	for i := range seen {
		pages = append(pages, i)
	}
	sort.Ints(pages)
	return pages, nil
}

// FlattenFiles evaluates each file's spec against that file's own page count,
// shifts it by the cumulative pages of preceding files, and unions the sets
// into one global selection over the concatenated numbering.
func FlattenFiles(files []FileSpec, opts Options) ([]int, error) {
	seen := make(map[int]struct{})
	offset := 0
	for _, f := range files {
		pages, err := ParseWith(f.Spec, f.Pages, opts)
		if err != nil {
			return nil, err
		}
		for _, p := range pages {
			seen[p+offset] = struct{}{}
		}
		offset += f.Pages
	}

	global := make([]int, 0, len(seen))
	for i := range seen {
		global = append(global, i)
	}
	sort.Ints(global)
	return global, nil
}

// Canonical renders a page set back into its flat comma-separated spec form.
func Canonical(pages []int) string {
	if len(pages) == 0 {
		return ""
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func parseToken(token string) (int, int, error) {
	if lo, hi, found := strings.Cut(token, "-"); found {
		a, errA := strconv.Atoi(strings.TrimSpace(lo))
		b, errB := strconv.Atoi(strings.TrimSpace(hi))
		if errA != nil || errB != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrMalformed, token)
		}
		if a > b {
			return 0, 0, fmt.Errorf("%w: %q descends", ErrMalformed, token)
		}
		return a, b, nil
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformed, token)
	}
	return n, n, nil
}
