// Package match holds the product match types shared by the search,
// ranking and recommendation packages.
package match

// LensMatch is a candidate product returned by reverse image search or
// shopping search. Link is its identity and is never empty.
type LensMatch struct {
	Title      string  `json:"title"`
	Link       string  `json:"link"`
	Source     string  `json:"source"`
	Thumbnail  *string `json:"thumbnail,omitempty"`
	PriceLabel *string `json:"price,omitempty"`
	TrustScore *int    `json:"trust_score,omitempty"`
}

// HasPrice reports whether the match carries a non-empty price label.
func (m LensMatch) HasPrice() bool {
	return m.PriceLabel != nil && *m.PriceLabel != ""
}

// Price returns the price label or "".
func (m LensMatch) Price() string {
	if m.PriceLabel == nil {
		return ""
	}
	return *m.PriceLabel
}

// ThumbnailURL returns the thumbnail or "".
func (m LensMatch) ThumbnailURL() string {
	if m.Thumbnail == nil {
		return ""
	}
	return *m.Thumbnail
}

// TrustUpdate attaches a trust score to the match at Index.
type TrustUpdate struct {
	Index int    `json:"index"`
	Link  string `json:"link"`
	Score int    `json:"score"`
}

// WithPrices returns the matches that have a price label, in order.
func WithPrices(matches []LensMatch) []LensMatch {
	out := make([]LensMatch, 0, len(matches))
	for _, m := range matches {
		if m.HasPrice() {
			out = append(out, m)
		}
	}
	return out
}

// Apply sets the trust score carried by u on matches. Updates whose index
// is out of range or whose link no longer matches are ignored.
func Apply(matches []LensMatch, u TrustUpdate) bool {
	if u.Index < 0 || u.Index >= len(matches) || matches[u.Index].Link != u.Link {
		return false
	}
	score := u.Score
	matches[u.Index].TrustScore = &score
	return true
}

// Clone returns a copy of matches that shares no pointers with the input.
func Clone(matches []LensMatch) []LensMatch {
	out := make([]LensMatch, len(matches))
	for i, m := range matches {
		out[i] = m
		if m.Thumbnail != nil {
			v := *m.Thumbnail
			out[i].Thumbnail = &v
		}
		if m.PriceLabel != nil {
			v := *m.PriceLabel
			out[i].PriceLabel = &v
		}
		if m.TrustScore != nil {
			v := *m.TrustScore
			out[i].TrustScore = &v
		}
	}
	return out
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
