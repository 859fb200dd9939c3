package trust

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/findly-app/findly/pkg/match"
	"github.com/findly-app/findly/pkg/whttp"
	gobreaker "github.com/sony/gobreaker/v2"
)

func TestDomainFromURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://www.amazon.com/dp/B0001", "amazon.com", false},
		{"http://shop.example.co.uk/item?id=1", "shop.example.co.uk", false},
		{"www.zara.com/us/en", "zara.com", false},
		{"HTTPS://WWW.Nike.COM:443/t/shoe", "nike.com", false},
		{"https://192.168.1.10/product", "", true},
		{"https://[2001:db8::1]/x", "", true},
		{"http://localhost:8080/", "", true},
		{"https://store.notarealtld/", "", true},
		{"https://co.uk/", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := DomainFromURL(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDomain) {
					t.Fatalf("DomainFromURL(%q) = %q, %v; want ErrInvalidDomain", tt.in, got, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("DomainFromURL(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		score  int
		has    bool
		status string
	}{
		{"snake case", `{"trust_score": 87, "status": "ok"}`, 87, true, "ok"},
		{"camel case", `{"trustScore": 12}`, 12, true, ""},
		{"plain score", `{"score": 55}`, 55, true, ""},
		{"nested", `{"data": {"score": 70}}`, 70, true, ""},
		{"malformed first field", `{"trust_score": "high", "score": 40}`, 40, true, ""},
		{"fractional ignored", `{"trust_score": 7.5}`, 0, false, ""},
		{"order", `{"score": 1, "trust_score": 2}`, 2, true, ""},
		{"none", `{"status": "unknown"}`, 0, false, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DecodeResponse([]byte(tt.body))
			if (r.Score != nil) != tt.has {
				t.Fatalf("score presence = %v, want %v", r.Score != nil, tt.has)
			}
			if tt.has && *r.Score != tt.score {
				t.Fatalf("score = %d, want %d", *r.Score, tt.score)
			}
			if r.Status != tt.status {
				t.Fatalf("status = %q, want %q", r.Status, tt.status)
			}
		})
	}
}

func TestClientScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-rapidapi-key") != "k" || r.Header.Get("x-rapidapi-host") != DefaultHost {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("domain") != "amazon.com" || r.URL.Query().Get("refresh") != "false" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"trust_score": 91, "status": "ok"}`))
	}))
	defer srv.Close()

	c := NewClient(whttp.NewFromHTTPClient(srv.Client()), Config{APIKey: "k", Endpoint: srv.URL})
	score, err := c.Score(context.Background(), "amazon.com")
	if err != nil {
		t.Fatal(err)
	}
	if score == nil || *score != 91 {
		t.Fatalf("unexpected score %v", score)
	}

	noKey := NewClient(whttp.NewFromHTTPClient(srv.Client()), Config{Endpoint: srv.URL})
	if _, err := noKey.Score(context.Background(), "amazon.com"); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestClientCircuitBreakerOpens(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(whttp.NewFromHTTPClient(srv.Client()), Config{APIKey: "k", Endpoint: srv.URL, FailureThreshold: 2})
	for i := 0; i < 2; i++ {
		var se *whttp.StatusError
		if _, err := c.Score(context.Background(), "amazon.com"); !errors.As(err, &se) {
			t.Fatalf("call %d: expected StatusError, got %v", i, err)
		}
	}
	if _, err := c.Score(context.Background(), "amazon.com"); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("expected 2 upstream hits, got %d", got)
	}
}

func TestClientCancelledCallsKeepBreakerClosed(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("domain") == "slow.com" {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"trust_score": 64}`))
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(whttp.NewFromHTTPClient(srv.Client()), Config{APIKey: "k", Endpoint: srv.URL, FailureThreshold: 2})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		if _, err := c.Score(cancelled, "amazon.com"); !errors.Is(err, context.Canceled) {
			t.Fatalf("call %d: expected context.Canceled, got %v", i, err)
		}
	}

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := c.Score(ctx, "slow.com")
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("slow call %d: expected deadline exceeded, got %v", i, err)
		}
	}

	score, err := c.Score(context.Background(), "amazon.com")
	if err != nil {
		t.Fatalf("breaker tripped on caller cancellations: %v", err)
	}
	if score == nil || *score != 64 {
		t.Fatalf("unexpected score %v", score)
	}
}

type fakeScorer struct {
	mu     sync.Mutex
	calls  map[string]int
	scores map[string]int
}

func (f *fakeScorer) Score(_ context.Context, domain string) (*int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[domain]++
	s, ok := f.scores[domain]
	if !ok {
		return nil, errors.New("lookup failed")
	}
	return &s, nil
}

func TestEnrich(t *testing.T) {
	matches := []match.LensMatch{
		{Link: "https://www.amazon.com/a"},
		{Link: "https://ebay.com/b"},
		{Link: "https://amazon.com/c"},
		{Link: "https://10.0.0.1/d"},
		{Link: "https://unknown-shop.com/e"},
	}
	scorer := &fakeScorer{
		calls:  map[string]int{},
		scores: map[string]int{"amazon.com": 90, "ebay.com": 75},
	}

	got := Collect(matches, Enrich(context.Background(), scorer, matches, EnrichConfig{Concurrency: 3}))

	want := []int{90, 75, 90, -1, -1}
	for i, w := range want {
		if w < 0 {
			if got[i].TrustScore != nil {
				t.Errorf("match %d: expected no score, got %d", i, *got[i].TrustScore)
			}
			continue
		}
		if got[i].TrustScore == nil || *got[i].TrustScore != w {
			t.Errorf("match %d: score = %v, want %d", i, got[i].TrustScore, w)
		}
	}
	if scorer.calls["amazon.com"] != 1 {
		t.Errorf("amazon.com looked up %d times, want 1", scorer.calls["amazon.com"])
	}
	if _, ok := scorer.calls["10.0.0.1"]; ok {
		t.Error("IP host must not be looked up")
	}
	if matches[0].TrustScore != nil {
		t.Error("Collect must not mutate the input")
	}
}

func TestEnrichNothingToDo(t *testing.T) {
	updates := Enrich(context.Background(), &fakeScorer{calls: map[string]int{}}, nil, EnrichConfig{})
	if _, ok := <-updates; ok {
		t.Fatal("expected closed channel")
	}
}
