package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/klppl/spider/internal/gateway"
)

// pendingBatchSize is the number of queued toots processed per loop
// iteration when the queue is non-empty (§4.7).
const pendingBatchSize = 100

// randomTrials is the number of random picks attempted before giving up on
// finding a non-failing candidate (§4.7).
const randomTrials = 10

// Run drives the scheduler loop until both the user and toot quotas (counted
// relative to the store's size at the start of this call) are satisfied, or
// loopsMax iterations have elapsed, or ctx is cancelled.
func (c *Crawler) Run(ctx context.Context, seed string, newUsers, newToots, loopsMax int) error {
	c.Store.LearnInstance(seed)

	start := c.Store.Snapshot()
	userMax := start.Users + newUsers
	tootMax := start.Toots + newToots

	for loops := 0; loops < loopsMax; loops++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		snap := c.Store.Snapshot()
		if snap.Users >= userMax && snap.Toots >= tootMax {
			break
		}

		if snap.ToDo > 0 {
			c.processPendingBatch(ctx, pendingBatchSize)
		} else if !c.processRandomAccount(ctx) {
			c.processRandomInstance(ctx)
		}

		c.Store.IncLoop()
		snap = c.Store.Snapshot()
		if c.Metrics != nil {
			c.Metrics.Update(snap)
			c.Metrics.ObserveLoop()
		}
		slog.Info("crawl progress",
			"run_id", c.RunID,
			"loop", loops+1,
			"instances", snap.Instances,
			"users", snap.Users,
			"users_full", snap.UsersFull,
			"toots", snap.Toots,
			"todo", snap.ToDo,
			"seen_by", snap.SeenBy,
		)
	}
	return nil
}

// processRandomAccount samples up to randomTrials random users, looking for
// one with a known acct_id on a currently non-failing instance, and fetches
// its recent statuses. Returns false if no usable candidate was found.
func (c *Crawler) processRandomAccount(ctx context.Context) bool {
	for _, key := range c.Store.RandomUserKeys(randomTrials, c.Rand) {
		u, ok := c.Store.GetUser(key)
		if !ok || u.AcctID == "" {
			continue
		}
		if c.Health.IsFailing(u.InstanceURL, time.Now()) {
			if c.Metrics != nil {
				c.Metrics.ObserveBackoffSkip()
			}
			continue
		}
		fetchOK, raw := c.fetch(ctx, u.InstanceURL, gateway.AccountStatusesURL(u.InstanceURL, u.AcctID))
		if !fetchOK {
			continue
		}
		c.processTootList(raw, u.InstanceURL, u.InstanceURL, u.Acct, false)
		return true
	}
	return false
}

// processRandomInstance samples up to randomTrials random instances, looking
// for one that's currently non-failing, and fetches its public timeline.
// observer_instance/observer_acct are left empty — nobody "observes" a
// public-timeline discovery, it's the crawler's own doing.
func (c *Crawler) processRandomInstance(ctx context.Context) bool {
	for i := 0; i < randomTrials; i++ {
		instanceURL := c.Store.RandomInstanceURL(c.Rand)
		if instanceURL == "" {
			return false
		}
		if c.Health.IsFailing(instanceURL, time.Now()) {
			if c.Metrics != nil {
				c.Metrics.ObserveBackoffSkip()
			}
			continue
		}
		fetchOK, raw := c.fetch(ctx, instanceURL, gateway.PublicTimelineURL(instanceURL))
		if !fetchOK {
			continue
		}
		c.processTootList(raw, instanceURL, "", "", false)
		return true
	}
	return false
}

