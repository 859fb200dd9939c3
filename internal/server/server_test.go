package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/findly-app/findly/pkg/currency"
	"github.com/findly-app/findly/pkg/match"
	"github.com/findly-app/findly/pkg/recommend"
	"github.com/findly-app/findly/pkg/search"
	"github.com/findly-app/findly/pkg/storage"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type fakeLens struct{}

func (fakeLens) Lens(context.Context, string) ([]match.LensMatch, error) {
	return []match.LensMatch{
		{Title: "Trench coat", Link: "https://www.amazon.com/a", PriceLabel: match.StringPtr("$50")},
		{Title: "Trench coat B", Link: "https://ebay.com/b", PriceLabel: match.StringPtr("€10")},
		{Title: "Trench coat C", Link: "https://shop.example.com/c"},
	}, nil
}

type fakeScorer map[string]int

func (f fakeScorer) Score(_ context.Context, d string) (*int, error) {
	if s, ok := f[d]; ok {
		return &s, nil
	}
	return nil, nil
}

type fakeShopping struct{}

func (fakeShopping) Shopping(_ context.Context, q string) ([]match.LensMatch, error) {
	return []match.LensMatch{{Title: q, Link: "https://shop.example.com/" + strings.ReplaceAll(q, " ", "-"), PriceLabel: match.StringPtr("$1")}}, nil
}

type noRates struct{}

func (noRates) Rates(context.Context, string) (map[string]float64, error) {
	return nil, currency.ErrNoRate
}

func newTestServer(t *testing.T, user, pass string) (*httptest.Server, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "findly.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	conv := currency.NewConverter(noRates{}, currency.Config{})
	conv.Seed("EUR", "USD", 2, time.Now())

	s := New(Config{
		DB: db,
		Pipeline: search.NewPipeline(search.Config{
			Lens:    fakeLens{},
			History: db,
			Scorer:  fakeScorer{"amazon.com": 88, "ebay.com": 60},
		}),
		Recommender: recommend.NewComposer(fakeShopping{}, recommend.Config{}),
		Converter:   conv,
		Currency:    "USD",
		Username:    user,
		Password:    pass,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, db
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSearchEndpoint(t *testing.T) {
	srv, db := newTestServer(t, "", "")

	resp := do(t, http.MethodPost, srv.URL+"/api/search?sort=desc&min_trust=50", `{"image_url":"https://i.ibb.co/x/coat.jpg"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Matches) != 2 {
		t.Fatalf("expected 2 trusted priced matches, got %+v", out.Matches)
	}
	// $50 vs EUR10 -> USD20.
	if out.Matches[0].Link != "https://www.amazon.com/a" || *out.Matches[0].TrustScore != 88 {
		t.Fatalf("unexpected order: %+v", out.Matches)
	}
	if out.HistoryID == "" {
		t.Fatal("expected a history id")
	}
	if n, _ := db.HistoryCount(context.Background()); n != 1 {
		t.Fatalf("expected 1 history item, got %d", n)
	}

	if resp := do(t, http.MethodPost, srv.URL+"/api/search", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty request status = %d, want 400", resp.StatusCode)
	}
	if resp := do(t, http.MethodPost, srv.URL+"/api/search?sort=sideways", `{"image_url":"https://x/y.jpg"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad sort status = %d, want 400", resp.StatusCode)
	}
}

func TestSearchWebsocket(t *testing.T) {
	srv, _ := newTestServer(t, "", "")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/search/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(SearchRequest{ImageURL: "https://i.ibb.co/x/coat.jpg", Sort: "asc"}); err != nil {
		t.Fatal(err)
	}

	var types []string
	var final WSMessage
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var m WSMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			t.Fatal(err)
		}
		types = append(types, m.Type)
		if m.Type == MessageMatches && len(m.Matches) != 2 {
			t.Fatalf("expected 2 phase one matches, got %d", len(m.Matches))
		}
		if m.Type == MessageDone {
			final = m
			break
		}
	}

	want := []string{MessageMatches, MessageTrust, MessageTrust, MessageDone}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("message sequence = %v, want %v", types, want)
	}
	if len(final.Matches) != 2 || final.Matches[0].Link != "https://ebay.com/b" {
		t.Fatalf("unexpected final ranking: %+v", final.Matches)
	}
}

func TestHistoryProfileAndRecommendations(t *testing.T) {
	srv, db := newTestServer(t, "", "")
	ctx := context.Background()
	first, _ := db.AddHistory(ctx, storage.NewHistoryItem("Navy wool coat", ""))
	db.AddHistory(ctx, storage.NewHistoryItem("Leather boots", ""))

	resp := do(t, http.MethodGet, srv.URL+"/api/history", "")
	var items []storage.HistoryItem
	json.NewDecoder(resp.Body).Decode(&items)
	if len(items) != 2 || items[0].Title != "Leather boots" {
		t.Fatalf("unexpected history: %+v", items)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/profile", "")
	var profile struct {
		Categories []string `json:"categories"`
	}
	json.NewDecoder(resp.Body).Decode(&profile)
	if strings.Join(profile.Categories, ",") != "outerwear,shoes" {
		t.Fatalf("unexpected categories %v", profile.Categories)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/history?q=BOOTS", "")
	items = nil
	json.NewDecoder(resp.Body).Decode(&items)
	if len(items) != 1 || items[0].Title != "Leather boots" {
		t.Fatalf("title filter returned %+v", items)
	}
	month := url.QueryEscape(storage.MonthTitle(time.Now()))
	resp = do(t, http.MethodGet, srv.URL+"/api/history?q="+month+"&limit=1", "")
	items = nil
	json.NewDecoder(resp.Body).Decode(&items)
	if len(items) != 1 || items[0].Title != "Leather boots" {
		t.Fatalf("month filter with limit returned %+v", items)
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/recommendations", "")
	var recs []recommend.Product
	json.NewDecoder(resp.Body).Decode(&recs)
	if len(recs) != 2 {
		t.Fatalf("expected one recommendation per category, got %+v", recs)
	}
	for _, p := range recs {
		if p.Price != "$1" || p.DisplayPrice != "$1.00" {
			t.Fatalf("expected a converted display price, got %+v", p)
		}
	}

	resp = do(t, http.MethodGet, srv.URL+"/api/recommendations?currency=GBP", "")
	recs = nil
	json.NewDecoder(resp.Body).Decode(&recs)
	for _, p := range recs {
		if p.DisplayPrice != "$1" {
			t.Fatalf("unconvertible price should fall back to the label, got %+v", p)
		}
	}

	if resp := do(t, http.MethodDelete, srv.URL+"/api/history/"+first.ID.String(), ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, srv.URL+"/api/history/"+first.ID.String(), ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, srv.URL+"/api/history/not-a-uuid", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id status = %d, want 400", resp.StatusCode)
	}
	if resp := do(t, http.MethodDelete, srv.URL+"/api/history", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}
	if n, _ := db.HistoryCount(ctx); n != 0 {
		t.Fatalf("expected empty history, got %d", n)
	}
}

func TestConvertEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "", "")

	resp := do(t, http.MethodGet, srv.URL+"/api/convert?price=%E2%82%AC12.50&to=usd", "")
	var out convertResponse
	json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK || out.Converted != 25 || out.From != "EUR" || out.Display != "$25.00" {
		t.Fatalf("unexpected conversion (%d): %+v", resp.StatusCode, out)
	}

	if resp := do(t, http.MethodGet, srv.URL+"/api/convert?price=free", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unparseable status = %d, want 400", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, srv.URL+"/api/convert?price=%C2%A35&to=USD", ""); resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("missing rate status = %d, want 502", resp.StatusCode)
	}
}

func TestPreferencesEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, "", "")

	if resp := do(t, http.MethodPut, srv.URL+"/api/preferences/theme", `{"theme":"dark"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("set theme status = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodPut, srv.URL+"/api/preferences/theme", `{"theme":"neon"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad theme status = %d, want 400", resp.StatusCode)
	}
	if resp := do(t, http.MethodPut, srv.URL+"/api/preferences/user", `{"name":"Kai","email":"nope"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad email status = %d, want 400", resp.StatusCode)
	}
	if resp := do(t, http.MethodPut, srv.URL+"/api/preferences/user", `{"name":"Kai","email":"kai@example.com"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("set user status = %d", resp.StatusCode)
	}

	resp := do(t, http.MethodGet, srv.URL+"/api/preferences", "")
	var out preferencesResponse
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Theme != storage.ThemeDark || out.User == nil || out.User.Email != "kai@example.com" {
		t.Fatalf("unexpected preferences: %+v", out)
	}

	if resp := do(t, http.MethodDelete, srv.URL+"/api/preferences/user", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("sign out status = %d, want 204", resp.StatusCode)
	}
	resp = do(t, http.MethodGet, srv.URL+"/api/preferences", "")
	out = preferencesResponse{}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.User != nil || out.Theme != storage.ThemeDark {
		t.Fatalf("sign out should drop only the user: %+v", out)
	}
}

func TestBasicAuthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, "admin", "s3cret")

	if resp := do(t, http.MethodGet, srv.URL+"/api/history", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without credentials = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/history", nil)
	req.SetBasicAuth("admin", "s3cret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status with credentials = %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, srv.URL+"/metrics", "")
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(buf.String(), "go_goroutines") {
		t.Fatalf("metrics endpoint not served (%d)", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := New(Config{AllowedOrigins: []string{"https://app.findly.test"}})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/history", nil)
	req.Header.Set("Origin", "https://app.findly.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://app.findly.test" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
}

type countingLock struct {
	mu    sync.Mutex
	calls int
}

func (l *countingLock) WithLock(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return fn()
}

func TestWritesTakeWriteLock(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "findly.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	lock := &countingLock{}
	srv := httptest.NewServer(New(Config{DB: db, WriteLock: lock}).Handler())
	t.Cleanup(srv.Close)

	tests := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodPut, "/api/preferences/theme", `{"theme":"light"}`, http.StatusOK},
		{http.MethodPut, "/api/preferences/user", `{"name":"Kai","email":"kai@example.com"}`, http.StatusOK},
		{http.MethodDelete, "/api/preferences/user", "", http.StatusNoContent},
		{http.MethodDelete, "/api/history", "", http.StatusOK},
		{http.MethodGet, "/api/history", "", http.StatusOK},
	}
	for _, tt := range tests {
		if resp := do(t, tt.method, srv.URL+tt.path, tt.body); resp.StatusCode != tt.status {
			t.Fatalf("%s %s status = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.status)
		}
	}
	lock.mu.Lock()
	defer lock.mu.Unlock()
	if lock.calls != 4 {
		t.Fatalf("write lock taken %d times, want 4", lock.calls)
	}
}
