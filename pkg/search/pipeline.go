// Package search runs the image search pipeline: upload, reverse image
// search, history recording and asynchronous trust enrichment.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/findly-app/findly/internal/metrics"
	"github.com/findly-app/findly/pkg/imghost"
	"github.com/findly-app/findly/pkg/logging"
	"github.com/findly-app/findly/pkg/match"
	"github.com/findly-app/findly/pkg/storage"
	"github.com/findly-app/findly/pkg/trust"
)

// DefaultTitle is recorded in history when a search returned no titled match.
const DefaultTitle = "Image search"

var ErrEmptyImageURL = errors.New("empty image URL")

type Uploader interface {
	Upload(ctx context.Context, jpeg []byte) (string, error)
}

type LensSearcher interface {
	Lens(ctx context.Context, imageURL string) ([]match.LensMatch, error)
}

type HistoryRecorder interface {
	AddHistory(ctx context.Context, item storage.HistoryItem) (storage.HistoryItem, error)
}

type Config struct {
	Uploader Uploader
	Lens     LensSearcher
	History  HistoryRecorder // optional
	Scorer   trust.Scorer    // optional; nil = no trust enrichment
	// TrustConcurrency bounds concurrent trust lookups.
	TrustConcurrency int
	Log              logging.Logger
}

type Pipeline struct {
	cfg Config
	log logging.Logger
}

func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg, log: logging.OrNop(cfg.Log)}
}

// Run uploads image (JPEG, PNG or GIF) and searches for it.
func (p *Pipeline) Run(ctx context.Context, image []byte) (*Result, error) {
	if p.cfg.Uploader == nil {
		return nil, errors.New("search: no image uploader configured")
	}
	jpeg, err := imghost.PrepareJPEG(image)
	if err != nil {
		metrics.Searches.WithLabelValues("error").Inc()
		return nil, err
	}
	hosted, err := p.cfg.Uploader.Upload(ctx, jpeg)
	if err != nil {
		metrics.Searches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("upload image: %w", err)
	}
	p.log.Debugf("Image hosted at %s", hosted)
	return p.RunURL(ctx, hosted)
}

// RunURL searches for an already hosted image. The returned Result carries
// the priced matches immediately; trust scores follow on Result.Updates.
func (p *Pipeline) RunURL(ctx context.Context, imageURL string) (*Result, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil, ErrEmptyImageURL
	}
	if p.cfg.Lens == nil {
		return nil, errors.New("search: no lens searcher configured")
	}

	all, err := p.cfg.Lens.Lens(ctx, imageURL)
	if err != nil {
		metrics.Searches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("lens search: %w", err)
	}
	matches := match.WithPrices(all)

	res := &Result{ImageURL: imageURL, Matches: matches}
	if item, ok := p.record(ctx, historyTitle(matches, all), imageURL); ok {
		res.HistoryItem = &item
	}

	if len(matches) == 0 {
		metrics.Searches.WithLabelValues("no_match").Inc()
		res.finish(nil)
		return res, nil
	}
	metrics.Searches.WithLabelValues("found").Inc()

	var updates <-chan match.TrustUpdate
	if p.cfg.Scorer != nil {
		updates = trust.Enrich(ctx, p.cfg.Scorer, matches, trust.EnrichConfig{
			Concurrency: p.cfg.TrustConcurrency,
			Log:         p.log,
		})
	}
	res.finish(updates)
	return res, nil
}

func (p *Pipeline) record(ctx context.Context, title, imageURL string) (storage.HistoryItem, bool) {
	if p.cfg.History == nil {
		return storage.HistoryItem{}, false
	}
	item, err := p.cfg.History.AddHistory(ctx, storage.NewHistoryItem(title, imageURL))
	if err != nil {
		p.log.Warnf("Could not record search history: %v", err)
		return storage.HistoryItem{}, false
	}
	return item, true
}

func historyTitle(priced, all []match.LensMatch) string {
	for _, set := range [][]match.LensMatch{priced, all} {
		if len(set) > 0 && strings.TrimSpace(set[0].Title) != "" {
			return set[0].Title
		}
	}
	return DefaultTitle
}

// Result is a two-phase search result. Matches is available immediately;
// trust scores arrive on Updates, which is closed once enrichment is done.
type Result struct {
	ImageURL    string
	Matches     []match.LensMatch
	HistoryItem *storage.HistoryItem

	updates chan match.TrustUpdate
	done    chan struct{}

	mu       sync.Mutex
	enriched []match.LensMatch
}

// Updates delivers trust updates as lookups complete. Consuming it is
// optional; Wait works either way.
func (r *Result) Updates() <-chan match.TrustUpdate {
	return r.updates
}

// Wait blocks until enrichment finishes and returns a copy of the matches
// with every obtained trust score applied.
func (r *Result) Wait() []match.LensMatch {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return match.Clone(r.enriched)
}

// Done is closed when enrichment has finished.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// finish starts forwarding src to the public channel while applying every
// update to the enriched copy. A nil src finishes immediately.
func (r *Result) finish(src <-chan match.TrustUpdate) {
	r.enriched = match.Clone(r.Matches)
	// One slot per match so forwarding never blocks on a slow reader.
	r.updates = make(chan match.TrustUpdate, len(r.Matches))
	r.done = make(chan struct{})

	if src == nil {
		close(r.updates)
		close(r.done)
		return
	}
	go func() {
		defer close(r.done)
		defer close(r.updates)
		for u := range src {
			r.mu.Lock()
			applied := match.Apply(r.enriched, u)
			r.mu.Unlock()
			if applied {
				r.updates <- u
			}
		}
	}()
}
