package currency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/findly-app/findly/internal/metrics"
	"github.com/findly-app/findly/pkg/logging"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched rate is considered fresh.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNoRate is returned when neither a fresh nor a stale rate is known.
	ErrNoRate = errors.New("no exchange rate available")
	// ErrUnparseable is returned by ConvertLabel for labels without a number.
	ErrUnparseable = errors.New("unparseable price")
)

// RateSource fetches every known rate for a base currency.
type RateSource interface {
	Rates(ctx context.Context, base string) (map[string]float64, error)
}

// Config controls a Converter.
type Config struct {
	TTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	Log logging.Logger
}

type pair struct {
	from, to string
}

type cachedRate struct {
	rate      float64
	fetchedAt time.Time
}

// Converter converts amounts between currencies using a time-bounded rate
// cache. Stale entries are kept and used when a refetch fails.
type Converter struct {
	source RateSource
	ttl    time.Duration
	now    func() time.Time
	log    logging.Logger

	mu    sync.Mutex
	cache map[pair]cachedRate
	group singleflight.Group
}

// NewConverter builds a Converter backed by source.
func NewConverter(source RateSource, cfg Config) *Converter {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Converter{
		source: source,
		ttl:    ttl,
		now:    now,
		log:    logging.OrNop(cfg.Log),
		cache:  make(map[pair]cachedRate),
	}
}

// Convert converts amount from one currency to another. Converting a
// currency to itself never touches the cache.
func (c *Converter) Convert(ctx context.Context, amount float64, from, to string) (float64, error) {
	rate, err := c.Rate(ctx, from, to)
	if err != nil {
		return 0, err
	}
	return amount * rate, nil
}

// ConvertLabel parses a price label and converts it to the target currency.
func (c *Converter) ConvertLabel(ctx context.Context, label, to string) (float64, error) {
	p, ok := Parse(label)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnparseable, label)
	}
	return c.Convert(ctx, p.Amount, p.Code, to)
}

// Rate returns the from->to exchange rate.
func (c *Converter) Rate(ctx context.Context, from, to string) (float64, error) {
	from, to = NormalizeCode(from), NormalizeCode(to)
	if from == to {
		return 1, nil
	}
	key := pair{from: from, to: to}

	c.mu.Lock()
	entry, cached := c.cache[key]
	c.mu.Unlock()

	if cached && c.now().Sub(entry.fetchedAt) < c.ttl {
		metrics.RateCacheLookups.WithLabelValues("hit").Inc()
		return entry.rate, nil
	}

	rate, err := c.refresh(ctx, from, to)
	if err == nil {
		metrics.RateCacheLookups.WithLabelValues("miss").Inc()
		return rate, nil
	}

	if cached {
		metrics.RateCacheLookups.WithLabelValues("stale").Inc()
		c.log.Debugf("Using stale %s->%s rate from %s: %v", from, to, entry.fetchedAt.Format(time.RFC3339), err)
		return entry.rate, nil
	}
	c.log.Warnf("No %s->%s rate available: %v", from, to, err)
	return 0, ErrNoRate
}

// refresh fetches every rate for base "from" and stores them. Concurrent
// refreshes of the same base share one fetch, which outlives the caller that
// started it; each caller only waits as long as its own ctx allows.
func (c *Converter) refresh(ctx context.Context, from, to string) (float64, error) {
	if c.source == nil {
		return 0, ErrNoRate
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(from, func() (interface{}, error) {
		rates, err := c.source.Rates(fetchCtx, from)
		if err != nil {
			return nil, err
		}
		fetchedAt := c.now()
		c.mu.Lock()
		for code, r := range rates {
			code = NormalizeCode(code)
			if code == from || r <= 0 {
				continue
			}
			c.cache[pair{from: from, to: code}] = cachedRate{rate: r, fetchedAt: fetchedAt}
		}
		c.mu.Unlock()
		return rates, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	if res.Err != nil {
		return 0, res.Err
	}

	for code, r := range res.Val.(map[string]float64) {
		if NormalizeCode(code) == to && r > 0 {
			return r, nil
		}
	}
	return 0, fmt.Errorf("rate source has no %s->%s rate", from, to)
}

// Seed stores a rate as if it had been fetched at fetchedAt.
func (c *Converter) Seed(from, to string, rate float64, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[pair{from: NormalizeCode(from), to: NormalizeCode(to)}] = cachedRate{rate: rate, fetchedAt: fetchedAt}
}
