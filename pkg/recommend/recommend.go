// Package recommend composes product recommendations from a style profile
// using shopping search.
package recommend

import (
	"context"
	"strings"

	"github.com/findly-app/findly/pkg/logging"
	"github.com/findly-app/findly/pkg/match"
	"github.com/findly-app/findly/pkg/storage"
	"github.com/findly-app/findly/pkg/style"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxResults caps the combined recommendation list.
	MaxResults = 30
	// MaxPerQuery caps the priced results kept from one shopping query.
	MaxPerQuery = 15
	// DefaultConcurrency bounds the shopping queries in flight.
	DefaultConcurrency = 4
)

var (
	// titleFitnessWords mark fitness interest in a history title.
	titleFitnessWords = []string{"whoop", "fitness", "tracker", "watch", "band"}
	// queryFitnessWords make a query also carry the stock list.
	queryFitnessWords = []string{"watch", "fitness", "tracker", "band"}
)

// Product is a recommended item. ID is the product link for search results.
type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	ImageURL string `json:"image_url"`
	Link     string `json:"link"`
	Source   string `json:"source"`
	// DisplayPrice is Price converted to the viewer's currency, or Price
	// itself when it could not be converted.
	DisplayPrice string `json:"display_price,omitempty"`
}

// Searcher runs a free-text shopping search.
type Searcher interface {
	Shopping(ctx context.Context, query string) ([]match.LensMatch, error)
}

type Config struct {
	Concurrency int            // defaults to DefaultConcurrency if <= 0
	Log         logging.Logger // optional; nil = no logging
}

type Composer struct {
	search      Searcher
	concurrency int
	log         logging.Logger
}

func NewComposer(search Searcher, cfg Config) *Composer {
	c := &Composer{search: search, concurrency: cfg.Concurrency, log: logging.OrNop(cfg.Log)}
	if c.concurrency <= 0 {
		c.concurrency = DefaultConcurrency
	}
	return c
}

// Recommend builds recommendations for a history. Search failures never
// surface as errors; the stock list stands in for a failed query.
func (c *Composer) Recommend(ctx context.Context, items []storage.HistoryItem) []Product {
	if len(items) == 0 {
		return []Product{}
	}
	profile := style.Build(items)

	var all []Product
	if HasFitnessInterest(profile, storage.Titles(items)) {
		all = append(all, StockFitnessProducts()...)
	}

	queries := Queries(profile)
	results := make([][]Product, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			results[i] = c.fetch(gctx, q)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		all = append(all, r...)
	}
	return Truncate(Dedup(all), MaxResults)
}

// fetch runs one shopping query and maps its priced results.
func (c *Composer) fetch(ctx context.Context, query string) []Product {
	if c.search == nil {
		return StockFitnessProducts()
	}
	matches, err := c.search.Shopping(ctx, query)
	if err != nil {
		c.log.Warnf("Shopping search %q failed, using stock products: %v", query, err)
		return StockFitnessProducts()
	}

	priced := match.WithPrices(matches)
	if len(priced) > MaxPerQuery {
		priced = priced[:MaxPerQuery]
	}
	out := make([]Product, 0, len(priced))
	for _, m := range priced {
		out = append(out, FromMatch(m))
	}

	if len(out) == 0 || containsAny(strings.ToLower(query), queryFitnessWords) {
		out = append(out, StockFitnessProducts()...)
	}
	return out
}

// FromMatch maps a shopping result to a Product identified by its link.
func FromMatch(m match.LensMatch) Product {
	price := m.Price()
	if price == "" {
		price = "Price unavailable"
	}
	return Product{
		ID:       m.Link,
		Title:    m.Title,
		Price:    price,
		ImageURL: m.ThumbnailURL(),
		Link:     m.Link,
		Source:   m.Source,
	}
}

// HasFitnessInterest reports whether the profile has the watches category or
// any title mentions a fitness wearable.
func HasFitnessInterest(p style.Profile, titles []string) bool {
	if p.HasCategory("watches") {
		return true
	}
	for _, t := range titles {
		if containsAny(strings.ToLower(t), titleFitnessWords) {
			return true
		}
	}
	return false
}

// Queries returns one shopping query per profile category, in category
// order.
func Queries(p style.Profile) []string {
	out := make([]string, 0, len(p.Categories))
	for _, cat := range p.Categories {
		out = append(out, BuildQuery(cat, p))
	}
	return out
}

// BuildQuery joins the profile styles, its colours when there are at most
// two, the top two keywords and the category.
func BuildQuery(category string, p style.Profile) string {
	var parts []string
	if len(p.Styles) > 0 {
		parts = append(parts, strings.Join(p.Styles, " "))
	}
	if len(p.Colors) > 0 && len(p.Colors) <= 2 {
		parts = append(parts, strings.Join(p.Colors, " "))
	}
	kw := p.Keywords
	if len(kw) > 2 {
		kw = kw[:2]
	}
	parts = append(parts, kw...)
	parts = append(parts, category)
	return strings.Join(parts, " ")
}

// Dedup keeps the first product for every ID.
func Dedup(products []Product) []Product {
	seen := make(map[string]bool, len(products))
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func Truncate(products []Product, n int) []Product {
	if len(products) > n {
		return products[:n]
	}
	return products
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
