// Package rank filters and orders product matches by trust score and
// normalised price.
package rank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/findly-app/findly/pkg/currency"
	"github.com/findly-app/findly/pkg/match"
)

type SortMode string

const (
	SortNone SortMode = "none"
	SortAsc  SortMode = "asc"
	SortDesc SortMode = "desc"
)

// ParseSortMode accepts none/asc/desc and the lowToHigh/highToLow aliases.
func ParseSortMode(s string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SortNone, nil
	case "asc", "lowtohigh", "low-to-high":
		return SortAsc, nil
	case "desc", "hightolow", "high-to-low":
		return SortDesc, nil
	}
	return SortNone, fmt.Errorf("invalid sort mode %q (want none, asc or desc)", s)
}

// LabelConverter turns a price label into an amount in the target currency.
type LabelConverter interface {
	ConvertLabel(ctx context.Context, label, to string) (float64, error)
}

type Options struct {
	Sort SortMode
	// MinTrust drops matches without a score or scoring below it.
	MinTrust *int
	// Currency all prices are normalised to before comparison.
	Currency string
}

// Rank returns a filtered and ordered copy of matches. Prices that cannot be
// parsed or converted sort as 0. Equal keys keep their input order.
func Rank(ctx context.Context, matches []match.LensMatch, opts Options, conv LabelConverter) []match.LensMatch {
	out := Filter(matches, opts.MinTrust)
	if opts.Sort != SortAsc && opts.Sort != SortDesc {
		return out
	}

	keys := make([]float64, len(out))
	for i, m := range out {
		keys[i] = NormalizedPrice(ctx, m, opts.Currency, conv)
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if opts.Sort == SortDesc {
			return keys[idx[a]] > keys[idx[b]]
		}
		return keys[idx[a]] < keys[idx[b]]
	})

	sorted := make([]match.LensMatch, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

// Filter keeps matches whose trust score is at least threshold. A nil
// threshold keeps everything.
func Filter(matches []match.LensMatch, threshold *int) []match.LensMatch {
	out := make([]match.LensMatch, 0, len(matches))
	for _, m := range matches {
		if threshold != nil && (m.TrustScore == nil || *m.TrustScore < *threshold) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// NormalizedPrice is the sort key used by Rank.
func NormalizedPrice(ctx context.Context, m match.LensMatch, to string, conv LabelConverter) float64 {
	label := m.Price()
	if conv == nil || to == "" {
		p, ok := currency.Parse(label)
		if !ok {
			return 0
		}
		return p.Amount
	}
	v, err := conv.ConvertLabel(ctx, label, to)
	if err != nil {
		return 0
	}
	return v
}
