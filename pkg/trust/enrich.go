package trust

import (
	"context"
	"sync"

	"github.com/findly-app/findly/pkg/logging"
	"github.com/findly-app/findly/pkg/match"
)

// DefaultConcurrency is the number of lookup workers when none is given.
const DefaultConcurrency = 5

type EnrichConfig struct {
	Concurrency int            // defaults to DefaultConcurrency if <= 0
	Log         logging.Logger // optional; nil = no logging
}

// Enrich looks up the trust score of every distinct domain in matches using a
// worker pool and sends one update per match whose domain received a score.
// The channel is closed when every lookup has finished or ctx is done.
func Enrich(ctx context.Context, scorer Scorer, matches []match.LensMatch, cfg EnrichConfig) <-chan match.TrustUpdate {
	log := logging.OrNop(cfg.Log)
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	// domain -> indexes of the matches hosted there, in first-seen order.
	byDomain := make(map[string][]int)
	var domains []string
	links := make([]string, len(matches))
	for i, m := range matches {
		links[i] = m.Link
		d, err := DomainFromURL(m.Link)
		if err != nil {
			log.Debugf("Skipping trust lookup for %s: %v", m.Link, err)
			continue
		}
		if _, ok := byDomain[d]; !ok {
			domains = append(domains, d)
		}
		byDomain[d] = append(byDomain[d], i)
	}

	updates := make(chan match.TrustUpdate, len(matches))
	if len(domains) == 0 || scorer == nil {
		close(updates)
		return updates
	}
	if concurrency > len(domains) {
		concurrency = len(domains)
	}

	domainChan := make(chan string, len(domains))
	for _, d := range domains {
		domainChan <- d
	}
	close(domainChan)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range domainChan {
				if ctx.Err() != nil {
					return
				}
				score, err := scorer.Score(ctx, d)
				if err != nil {
					log.Debugf("Trust lookup for %s failed: %v", d, err)
					continue
				}
				if score == nil {
					continue
				}
				for _, idx := range byDomain[d] {
					// updates has room for one update per match.
					updates <- match.TrustUpdate{Index: idx, Link: links[idx], Score: *score}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(updates)
	}()
	return updates
}

// Collect drains updates into a copy of matches and returns it.
func Collect(matches []match.LensMatch, updates <-chan match.TrustUpdate) []match.LensMatch {
	out := match.Clone(matches)
	for u := range updates {
		match.Apply(out, u)
	}
	return out
}
