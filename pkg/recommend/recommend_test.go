package recommend

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/findly-app/findly/pkg/match"
	"github.com/findly-app/findly/pkg/storage"
	"github.com/findly-app/findly/pkg/style"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	results map[string][]match.LensMatch
	fail    map[string]bool
}

func (f *fakeSearcher) Shopping(_ context.Context, q string) ([]match.LensMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.fail[q] {
		return nil, errors.New("quota exceeded")
	}
	return f.results[q], nil
}

func history(titles ...string) []storage.HistoryItem {
	out := make([]storage.HistoryItem, len(titles))
	for i, t := range titles {
		out[i] = storage.NewHistoryItem(t, "")
	}
	return out
}

func priced(n int, prefix string) []match.LensMatch {
	out := make([]match.LensMatch, n)
	for i := range out {
		link := fmt.Sprintf("https://shop.example.com/%s/%d", prefix, i)
		out[i] = match.LensMatch{Title: fmt.Sprintf("%s %d", prefix, i), Link: link, Source: "Shop", PriceLabel: match.StringPtr("$10")}
	}
	return out
}

func ids(ps []Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestRecommendEmptyHistory(t *testing.T) {
	s := &fakeSearcher{}
	got := NewComposer(s, Config{}).Recommend(context.Background(), nil)
	if len(got) != 0 || len(s.queries) != 0 {
		t.Fatalf("expected no recommendations and no queries, got %d / %v", len(got), s.queries)
	}
}

func TestRecommendNikeRunningShoes(t *testing.T) {
	s := &fakeSearcher{results: map[string][]match.LensMatch{
		"nike running shoes": priced(3, "shoe"),
	}}
	got := NewComposer(s, Config{}).Recommend(context.Background(), history("Nike running shoes", "Nike running shoes"))

	if want := []string{"nike running shoes"}; !reflect.DeepEqual(s.queries, want) {
		t.Fatalf("queries = %v, want %v", s.queries, want)
	}
	if len(got) != 3 || got[0].ID != "https://shop.example.com/shoe/0" {
		t.Fatalf("unexpected recommendations: %v", ids(got))
	}
}

func TestRecommendPerQueryCapAndPricedOnly(t *testing.T) {
	results := priced(20, "bag")
	results[0].PriceLabel = nil
	s := &fakeSearcher{results: map[string][]match.LensMatch{"leather tote bags": results}}

	got := NewComposer(s, Config{}).Recommend(context.Background(), history("Leather tote"))
	if len(got) != MaxPerQuery {
		t.Fatalf("expected %d products, got %d", MaxPerQuery, len(got))
	}
	if got[0].ID != "https://shop.example.com/bag/1" {
		t.Fatalf("unpriced result should be skipped, first = %q", got[0].ID)
	}
}

func TestRecommendFitnessInterest(t *testing.T) {
	s := &fakeSearcher{results: map[string][]match.LensMatch{}}
	// "whoop" marks interest without putting the title in the watches category.
	items := history("Whoop strap 4.0 black")
	p := style.Build(items)
	if p.HasCategory("watches") {
		t.Fatalf("test premise broken, categories %v", p.Categories)
	}

	got := NewComposer(s, Config{}).Recommend(context.Background(), items)
	stock := ids(StockFitnessProducts())
	if !reflect.DeepEqual(ids(got), stock) {
		t.Fatalf("expected exactly the stock list once, got %v", ids(got))
	}
}

func TestRecommendSearchFailureUsesStock(t *testing.T) {
	s := &fakeSearcher{fail: map[string]bool{"denim jeans bottoms": true}}
	got := NewComposer(s, Config{}).Recommend(context.Background(), history("Denim jeans"))
	if !reflect.DeepEqual(ids(got), ids(StockFitnessProducts())) {
		t.Fatalf("expected stock list on failure, got %v", ids(got))
	}
}

func TestRecommendCapsAndDedups(t *testing.T) {
	items := history("Sneakers", "Jacket", "Shirt")
	queries := Queries(style.Build(items))
	if len(queries) != 3 {
		t.Fatalf("expected 3 queries, got %v", queries)
	}
	s := &fakeSearcher{results: map[string][]match.LensMatch{
		queries[0]: priced(15, "a"),
		queries[1]: priced(15, "a"),
		queries[2]: priced(15, "c"),
	}}

	got := NewComposer(s, Config{Concurrency: 2}).Recommend(context.Background(), items)
	if len(got) != MaxResults {
		t.Fatalf("expected %d products, got %d", MaxResults, len(got))
	}
	if got[0].ID != "https://shop.example.com/a/0" || got[15].ID != "https://shop.example.com/c/0" {
		t.Fatalf("results not combined in category order: %v", ids(got))
	}
	seen := map[string]bool{}
	for _, p := range got {
		if seen[p.ID] {
			t.Fatalf("duplicate id %s", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name    string
		profile style.Profile
		want    string
	}{
		{"keywords only", style.Profile{Keywords: []string{"nike", "running", "shoes"}}, "nike running shoes"},
		{"styles and colors", style.Profile{Styles: []string{"casual", "vintage"}, Colors: []string{"navy"}, Keywords: []string{"linen"}}, "casual vintage navy linen shoes"},
		{"too many colors", style.Profile{Colors: []string{"black", "navy", "red"}}, "shoes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildQuery("shoes", tt.profile); got != tt.want {
				t.Fatalf("BuildQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDedupKeepsFirst(t *testing.T) {
	in := []Product{{ID: "x", Title: "first"}, {ID: "y"}, {ID: "x", Title: "second"}}
	got := Dedup(in)
	if len(got) != 2 || got[0].Title != "first" || got[1].ID != "y" {
		t.Fatalf("Dedup() = %+v", got)
	}
}
