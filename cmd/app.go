package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/findly-app/findly/internal/utils"
	"github.com/findly-app/findly/pkg/currency"
	"github.com/findly-app/findly/pkg/imghost"
	"github.com/findly-app/findly/pkg/recommend"
	"github.com/findly-app/findly/pkg/search"
	"github.com/findly-app/findly/pkg/serpapi"
	"github.com/findly-app/findly/pkg/storage"
	"github.com/findly-app/findly/pkg/trust"
	"github.com/findly-app/findly/pkg/whttp"
	"github.com/spf13/viper"
)

// clients holds the upstream API clients built from the configuration.
type clients struct {
	http      *whttp.Client
	serp      *serpapi.Client
	images    *imghost.Client
	trust     *trust.Client
	converter *currency.Converter
}

func newClients() (*clients, error) {
	hc, err := whttp.NewClient(whttp.Options{
		Timeout:           viper.GetDuration("http.timeout"),
		Proxy:             viper.GetString("http.proxy"),
		RequestsPerSecond: viper.GetFloat64("http.requests_per_second"),
		Log:               utils.Log,
	})
	if err != nil {
		return nil, err
	}

	return &clients{
		http:   hc,
		serp:   serpapi.NewClient(hc, viper.GetString("serpapi.api_key"), viper.GetString("serpapi.endpoint"), utils.Log),
		images: imghost.NewClient(hc, viper.GetString("imgbb.api_key"), viper.GetString("imgbb.endpoint")),
		trust: trust.NewClient(hc, trust.Config{
			APIKey:   viper.GetString("trust.api_key"),
			Host:     viper.GetString("trust.host"),
			Endpoint: viper.GetString("trust.endpoint"),
			Log:      utils.Log,
		}),
		converter: currency.NewConverter(
			currency.NewRatesClient(hc, viper.GetString("rates.endpoint")),
			currency.Config{TTL: viper.GetDuration("rates.ttl"), Log: utils.Log},
		),
	}, nil
}

// scorer returns nil when no trust API key is configured so that searches
// skip enrichment instead of failing every lookup.
func (c *clients) scorer() trust.Scorer {
	if viper.GetString("trust.api_key") == "" {
		utils.Log.Debug("No trust API key configured, skipping trust scores")
		return nil
	}
	return c.trust
}

// pipeline builds a search pipeline that records history in db, taking lock
// only for the write itself.
func (c *clients) pipeline(db *storage.DB, lock *utils.DBLock) *search.Pipeline {
	cfg := search.Config{
		Uploader:         c.images,
		Lens:             c.serp,
		Scorer:           c.scorer(),
		TrustConcurrency: viper.GetInt("trust.concurrency"),
		Log:              utils.Log,
	}
	if db != nil {
		cfg.History = &lockedHistory{db: db, lock: lock}
	}
	return search.NewPipeline(cfg)
}

// lockedHistory records history items under the cross-process write lock.
type lockedHistory struct {
	db   *storage.DB
	lock *utils.DBLock
}

func (h *lockedHistory) AddHistory(ctx context.Context, item storage.HistoryItem) (storage.HistoryItem, error) {
	if h.lock == nil {
		return h.db.AddHistory(ctx, item)
	}
	var saved storage.HistoryItem
	err := h.lock.WithLock(func() error {
		var err error
		saved, err = h.db.AddHistory(ctx, item)
		return err
	})
	return saved, err
}

func (c *clients) recommender() *recommend.Composer {
	return recommend.NewComposer(c.serp, recommend.Config{
		Concurrency: viper.GetInt("recommend.concurrency"),
		Log:         utils.Log,
	})
}

// openDB opens the configured database, creating its directory if needed.
func openDB() (*storage.DB, string, error) {
	path, err := utils.GetAbsDBPath(viper.GetString("db.path"))
	if err != nil {
		return nil, "", fmt.Errorf("could not resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", fmt.Errorf("could not create db directory: %w", err)
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, "", err
	}
	return db, path, nil
}

// withWriteLock runs fn while holding the cross-process database lock.
func withWriteLock(dbPath string, fn func() error) error {
	return utils.NewDBLock(dbPath).WithLock(fn)
}

func targetCurrency(flag string) string {
	if code := currency.NormalizeCode(flag); code != "" {
		return code
	}
	return currency.NormalizeCode(viper.GetString("currency.target"))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
