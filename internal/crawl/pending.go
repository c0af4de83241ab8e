package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/tidwall/gjson"

	"github.com/klppl/spider/internal/apuri"
	"github.com/klppl/spider/internal/gateway"
	"github.com/klppl/spider/internal/model"
)

// processPendingBatch pops up to n URIs off the store's queue and processes
// each in turn (§4.7 batching).
func (c *Crawler) processPendingBatch(ctx context.Context, n int) {
	for _, uri := range c.Store.PopBatch(n) {
		c.processPendingToot(ctx, uri)
	}
}

// processPendingToot implements §4.6: resolve the toot's home instance,
// fetch its canonical record (skipping Pleroma-style non-numeric IDs),
// fall back to wherever it was first observed if the home fetch fails,
// then fetch favourited_by and (unless thread-discovered) thread context.
func (c *Crawler) processPendingToot(ctx context.Context, uri string) {
	toot, ok := c.Store.GetToot(uri)
	if !ok {
		invariantViolation(fmt.Sprintf("popped toot %q not present in store", uri))
	}

	parsedOK, home, _ := apuri.ParseTootURI(uri)
	if !parsedOK {
		return
	}

	if c.Health.IsFailing(home, time.Now()) {
		if c.Metrics != nil {
			c.Metrics.ObserveBackoffSkip()
		}
		return
	}

	fetchedOK := false
	var raw []byte
	if gateway.IsAllDigits(toot.TootID) {
		fetchedOK, raw = c.fetch(ctx, home, gateway.StatusURL(home, toot.TootID))
		if fetchedOK {
			entry := gjson.ParseBytes(raw)
			c.findTootOrigin(entry.Get("account"), home)
			if sourceID := entry.Get("id").String(); sourceID != "" {
				c.Store.SetTootSourceID(uri, sourceID)
			}
		}
	}

	chosenInstance, chosenID := home, toot.TootID
	usingFallback := false
	if !fetchedOK && toot.LocalInstance != "" && toot.LocalInstance != home && toot.LocalID != "" {
		chosenInstance, chosenID = toot.LocalInstance, toot.LocalID
		usingFallback = true
		fetchedOK = true // a cached copy counts as "found" for gating favourited_by/context below
	}

	if !fetchedOK {
		return
	}

	if toot.Favor == 0 {
		favOK, favRaw := c.fetch(ctx, chosenInstance, gateway.FavouritedByURL(chosenInstance, chosenID))
		if !favOK && !usingFallback && toot.LocalInstance != "" && toot.LocalInstance != chosenInstance && toot.LocalID != "" {
			favOK, favRaw = c.fetch(ctx, toot.LocalInstance, gateway.FavouritedByURL(toot.LocalInstance, toot.LocalID))
		}
		if favOK {
			c.processFavouritedBy(favRaw, toot)
		}
	}

	if toot.Related > 0 && !toot.FromThread {
		ctxOK, ctxRaw := c.fetch(ctx, chosenInstance, gateway.ContextURL(chosenInstance, chosenID))
		if ctxOK {
			c.processContext(ctxRaw, home, toot)
		}
	}
}

// processFavouritedBy learns each favoriter as an observer of the toot's
// author, and records the freshly observed favorite count.
func (c *Crawler) processFavouritedBy(raw []byte, toot *model.Toot) {
	authorInstance, _, _ := apuri.ParseTootURI(toot.URI)
	accounts := gjson.ParseBytes(raw)
	count := 0
	accounts.ForEach(func(_, acct gjson.Result) bool {
		count++
		local, host := apuri.SplitAcct(acct.Get("acct").String())
		instanceURL := authorInstance
		if host != "" {
			instanceURL = "https://" + host
		}
		favoriter := c.Store.LearnAccount(instanceURL, local, "")
		c.Store.LearnSeenBy(authorInstance, toot.Acct, favoriter.InstanceURL, favoriter.Acct)
		return true
	})
	c.Store.SetTootFavor(toot.URI, count)
}

// processContext processes a /context response: the first ancestor is the
// thread's original poster (learned with the toot's own author as
// observer); remaining ancestors and all descendants are processed with the
// original poster as observer (§4.6).
func (c *Crawler) processContext(raw []byte, home string, toot *model.Toot) {
	root := gjson.ParseBytes(raw)
	ancestors := root.Get("ancestors").Array()

	observerInstance, observerAcct := home, toot.Acct

	if len(ancestors) > 0 {
		opOrigin, _ := c.processEntry(ancestors[0], home, observerInstance, observerAcct, true)
		if opOrigin != nil {
			observerInstance, observerAcct = opOrigin.InstanceURL, opOrigin.Acct
		}
		for _, anc := range ancestors[1:] {
			c.processEntry(anc, home, observerInstance, observerAcct, true)
		}
	}

	for _, desc := range root.Get("descendants").Array() {
		c.processEntry(desc, home, observerInstance, observerAcct, true)
	}
}

func invariantViolation(msg string) {
	slog.Error("crawl: invariant violation", "error", msg, "stack", string(debug.Stack()))
	panic(msg)
}
