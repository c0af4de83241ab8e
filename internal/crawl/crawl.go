// Package crawl implements the crawler engine: the toot-list processor, the
// pending-toot fetch pipeline, and the scheduler loop that drives discovery
// breadth-first across the federation. It is single-threaded cooperative —
// one fetch fully completes (parse + learn + enqueue) before the next
// begins — so the crawl path is the store's only writer (the admin server
// only ever reads snapshots).
package crawl

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/klppl/spider/internal/gateway"
	"github.com/klppl/spider/internal/health"
	"github.com/klppl/spider/internal/metrics"
	"github.com/klppl/spider/internal/store"
)

// Crawler wires together the store, gateway, and health tracker that the
// scheduler and toot-list processor share.
type Crawler struct {
	Store   *store.Store
	Gateway *gateway.Gateway
	Health  *health.Tracker
	Metrics *metrics.Metrics // nil-safe; every metrics call checks for nil

	// Rand returns a pseudo-random int in [0, n). Injectable so scheduling
	// is deterministic in tests (§9 design note).
	Rand func(n int) int

	// RunID tags every log line emitted by this crawler instance so
	// concurrent runs (or successive daemon invocations) can be told apart
	// in aggregated logs.
	RunID string
}

// New builds a Crawler with a fresh per-run correlation ID.
func New(st *store.Store, gw *gateway.Gateway, ht *health.Tracker, m *metrics.Metrics, rnd func(int) int) *Crawler {
	return &Crawler{
		Store:   st,
		Gateway: gw,
		Health:  ht,
		Metrics: m,
		Rand:    rnd,
		RunID:   uuid.NewString(),
	}
}

// fetch issues a GET against url (on behalf of instanceURL) through the
// gateway, then records the outcome on both the health tracker and the
// metrics collector. Policy per §4.4: fetches that fail call JustFailed;
// fetches that succeed call BackOn.
func (c *Crawler) fetch(ctx context.Context, instanceURL, url string) (ok bool, raw []byte) {
	ok, raw = c.Gateway.Fetch(ctx, url)
	now := time.Now()
	if ok {
		c.Health.BackOn(instanceURL, now)
	} else {
		c.Health.JustFailed(instanceURL, now)
	}
	if c.Metrics != nil {
		c.Metrics.ObserveFetch(ok)
	}
	return ok, raw
}
