// Package trust looks up domain trust scores and attaches them to product
// matches.
package trust

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/findly-app/findly/internal/metrics"
	"github.com/findly-app/findly/pkg/logging"
	"github.com/findly-app/findly/pkg/whttp"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
)

const (
	DefaultEndpoint = "https://scamadviser-lite.p.rapidapi.com/v1/trust/single"
	DefaultHost     = "scamadviser-lite.p.rapidapi.com"
)

// ErrNoAPIKey is returned by Score when the client has no API key.
var ErrNoAPIKey = errors.New("trust: no API key configured")

// scoreFields are tried in order; the first integer present wins.
var scoreFields = []string{
	"trust_score", "trustScore", "score",
	"data.trust_score", "data.trustScore", "data.score",
}

// Scorer returns the trust score for a bare domain. A nil score with a nil
// error means the upstream knows the domain but reported no score.
type Scorer interface {
	Score(ctx context.Context, domain string) (*int, error)
}

type Config struct {
	APIKey   string
	Host     string
	Endpoint string
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit breaker. Defaults to 5.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open. Defaults to 1 minute.
	OpenTimeout time.Duration
	Log         logging.Logger
}

// Response is the decoded trust API payload.
type Response struct {
	Score  *int
	Status string
}

type Client struct {
	http     *whttp.Client
	apiKey   string
	host     string
	endpoint string
	log      logging.Logger
	cb       *gobreaker.CircuitBreaker[*Response]
}

func NewClient(hc *whttp.Client, cfg Config) *Client {
	c := &Client{
		http:     hc,
		apiKey:   cfg.APIKey,
		host:     cfg.Host,
		endpoint: cfg.Endpoint,
		log:      logging.OrNop(cfg.Log),
	}
	if c.host == "" {
		c.host = DefaultHost
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	cbName := "trust-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)
	c.cb = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warnf("Circuit breaker %s: %s -> %s", name, from, to)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		// A 4xx is the upstream answering, not the upstream being down, and
		// a caller giving up says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			var se *whttp.StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500 && se.StatusCode != 429
			}
			return err == nil
		},
	})
	return c
}

// Score implements Scorer.
func (c *Client) Score(ctx context.Context, domain string) (*int, error) {
	res, err := c.Lookup(ctx, domain)
	if err != nil {
		return nil, err
	}
	return res.Score, nil
}

// Lookup fetches the full trust response for domain.
func (c *Client) Lookup(ctx context.Context, domain string) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if domain == "" {
		return nil, ErrInvalidDomain
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.cb.Execute(func() (*Response, error) {
		return c.fetch(ctx, domain)
	})
}

func (c *Client) fetch(ctx context.Context, domain string) (*Response, error) {
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{
		Service: "trust",
		Method:  "GET",
		URL:     c.endpoint,
		Query:   url.Values{"domain": {domain}, "refresh": {"false"}},
		Headers: []whttp.WHTTPHeader{
			{Name: "x-rapidapi-key", Value: c.apiKey},
			{Name: "x-rapidapi-host", Value: c.host},
			{Name: "Cache-Control", Value: "no-cache"},
		},
	}, c.http)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(res.Body) {
		return nil, fmt.Errorf("trust: invalid JSON response for %s", domain)
	}
	return DecodeResponse(res.Body), nil
}

// DecodeResponse reads a trust payload. Each candidate field is read on its
// own so a malformed field does not hide a later valid one.
func DecodeResponse(body []byte) *Response {
	out := &Response{}
	for _, path := range scoreFields {
		if score, ok := intField(gjson.GetBytes(body, path)); ok {
			out.Score = &score
			break
		}
	}
	if st := gjson.GetBytes(body, "status"); st.Type == gjson.String {
		out.Status = st.String()
	}
	return out
}

func intField(r gjson.Result) (int, bool) {
	if r.Type != gjson.Number {
		return 0, false
	}
	if r.Num != math.Trunc(r.Num) {
		return 0, false
	}
	return int(r.Num), true
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
