// Package style derives a style profile from search history titles using
// fixed keyword vocabularies.
package style

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/findly-app/findly/pkg/storage"
	"golang.org/x/text/cases"
)

const (
	// DefaultCategory is used for titles that match no category vocabulary.
	DefaultCategory = "clothing"
	// MaxKeywords is the number of residual keywords kept in a profile.
	MaxKeywords = 10
)

type group struct {
	name  string
	words []string
}

// categories are checked in priority order; the first hit wins.
var categories = []group{
	{"tops", []string{"shirt", "top", "blouse", "tee", "t-shirt", "tank"}},
	{"bottoms", []string{"pants", "jeans", "trousers", "leggings", "chinos"}},
	{"dresses", []string{"dress", "gown", "jumpsuit"}},
	{"shoes", []string{"shoes", "sneakers", "boots", "heels", "sandals", "flats"}},
	{"outerwear", []string{"jacket", "coat", "hoodie", "sweater", "cardigan", "blazer"}},
	{"bags", []string{"bag", "backpack", "purse", "handbag", "tote"}},
	{"accessories", []string{"jewelry", "necklace", "ring", "bracelet", "earrings"}},
	{"watches", []string{"watch", "band", "fitness", "tracker"}},
}

var styles = []group{
	{"vintage", []string{"vintage", "retro", "classic"}},
	{"casual", []string{"casual", "everyday"}},
	{"formal", []string{"formal", "suit", "business"}},
	{"sporty", []string{"sport", "athletic", "active", "gym"}},
	{"minimalist", []string{"minimal", "simple", "basic"}},
	{"luxury", []string{"designer", "luxury", "premium"}},
	{"streetwear", []string{"street", "urban", "hip"}},
}

var colors = []string{
	"black", "white", "gray", "grey", "navy", "blue", "red", "green", "yellow", "pink", "purple",
	"orange", "brown", "beige", "tan", "cream", "ivory", "maroon", "burgundy", "khaki", "olive",
	"coral", "teal", "turquoise",
}

var brands = []string{
	"nike", "adidas", "zara", "h&m", "hm", "gucci", "prada", "versace", "calvin", "ralph", "tommy",
	"levi", "gap", "uniqlo", "forever", "shein", "asos", "boohoo", "prettylittlething",
}

var stopWords = toSet([]string{
	"the", "and", "for", "are", "but", "not", "you", "all", "can", "her", "was", "one", "our", "out",
	"day", "get", "has", "him", "his", "how", "its", "may", "new", "now", "old", "see", "two", "way",
	"who", "boy", "did", "let", "put", "say", "she", "too", "use",
})

var colorWords = toSet(colors)

// Profile summarises a history. Sets are sorted; Keywords are ordered by
// frequency.
type Profile struct {
	Categories []string `json:"categories"`
	Styles     []string `json:"styles"`
	Colors     []string `json:"colors"`
	Brands     []string `json:"brands"`
	Keywords   []string `json:"keywords"`
}

// Empty reports whether nothing was detected.
func (p Profile) Empty() bool {
	return len(p.Categories) == 0 && len(p.Styles) == 0 && len(p.Colors) == 0 &&
		len(p.Brands) == 0 && len(p.Keywords) == 0
}

func (p Profile) HasCategory(c string) bool {
	for _, x := range p.Categories {
		if x == c {
			return true
		}
	}
	return false
}

// Build derives a profile from history items. An empty history yields an
// empty profile.
func Build(items []storage.HistoryItem) Profile {
	return FromTitles(storage.Titles(items))
}

// FromTitles is Build over plain titles.
func FromTitles(titles []string) Profile {
	fold := cases.Fold()
	cats := map[string]bool{}
	sty := map[string]bool{}
	col := map[string]bool{}
	brd := map[string]bool{}
	kw := newCounter()

	for _, raw := range titles {
		title := fold.String(raw)
		if strings.TrimSpace(title) == "" {
			continue
		}

		cats[Category(title)] = true
		for _, g := range styles {
			if containsAny(title, g.words) {
				sty[g.name] = true
			}
		}
		for _, c := range colors {
			if strings.Contains(title, c) {
				col[c] = true
			}
		}
		for _, b := range brands {
			if strings.Contains(title, b) {
				brd[b] = true
			}
		}
		for _, w := range Keywords(title) {
			kw.add(w)
		}
	}

	return Profile{
		Categories: sortedKeys(cats),
		Styles:     sortedKeys(sty),
		Colors:     sortedKeys(col),
		Brands:     sortedKeys(brd),
		Keywords:   kw.top(MaxKeywords),
	}
}

// Category returns the first category whose vocabulary occurs in the
// case-folded title, or DefaultCategory.
func Category(title string) string {
	for _, g := range categories {
		if containsAny(title, g.words) {
			return g.name
		}
	}
	return DefaultCategory
}

// Keywords splits a case-folded title into residual keywords: words longer
// than three runes that are neither stop words nor colours.
func Keywords(title string) []string {
	words := strings.FieldsFunc(title, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	out := words[:0]
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 3 || stopWords[w] || colorWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func toSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// counter tracks word frequencies and first-seen order.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: map[string]int{}}
}

func (c *counter) add(w string) {
	if _, ok := c.counts[w]; !ok {
		c.order = append(c.order, w)
	}
	c.counts[w]++
}

func (c *counter) top(n int) []string {
	out := append([]string(nil), c.order...)
	sort.SliceStable(out, func(i, j int) bool {
		return c.counts[out[i]] > c.counts[out[j]]
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
