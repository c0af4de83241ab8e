package crawl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"github.com/klppl/spider/internal/gateway"
	"github.com/klppl/spider/internal/health"
	"github.com/klppl/spider/internal/store"
)

func newTestCrawler() *Crawler {
	return New(store.New(), gateway.New(0, time.Second), health.New(), nil, func(n int) int { return 0 })
}

// Scenario A: single reblog. Observer instance A's timeline carries a reblog
// wrapper whose account is the reblogger (alice); the wrapper's own uri is
// never stored, only the reblogged toot (bob's), and bob's seen_by gains
// alice.
func TestProcessEntryReblog(t *testing.T) {
	c := newTestCrawler()

	entry := gjson.Parse(`{
		"uri": "https://a.example/users/alice/statuses/1/activity",
		"account": {"acct": "alice"},
		"reblog": {
			"uri": "https://b.example/users/bob/statuses/42",
			"account": {"acct": "bob@b.example"},
			"id": "42",
			"favourites_count": 0,
			"replies_count": 0
		}
	}`)

	c.processEntry(entry, "https://a.example", "", "", false)

	_, wrapperStored := c.Store.GetToot("https://a.example/users/alice/statuses/1/activity")
	assert.False(t, wrapperStored, "the activity wrapper itself is never stored")

	toot, ok := c.Store.GetToot("https://b.example/users/bob/statuses/42")
	assert.True(t, ok)
	assert.Equal(t, "42", toot.TootID)

	bob, ok := c.Store.GetUser("https://b.example/@bob")
	assert.True(t, ok)
	assert.Contains(t, bob.SeenBy, "https://a.example/@alice")

	_, aliceKnown := c.Store.GetUser("https://a.example/@alice")
	assert.True(t, aliceKnown)
}

// Scenario B: thread context. The first ancestor (the original poster) is
// recorded as observed by the current toot's author; the descendant is
// recorded as observed by the original poster.
func TestProcessContextThreadObserverChain(t *testing.T) {
	c := newTestCrawler()

	toot := c.Store.LearnToot("https://b.example/users/bob/statuses/42", "42", "@bob", "https://b.example", "42", false, 0, 1)

	ctxJSON := []byte(`{
		"ancestors": [{
			"uri": "https://c.example/users/carol/statuses/7",
			"account": {"acct": "carol@c.example"},
			"id": "7",
			"favourites_count": 0,
			"replies_count": 0
		}],
		"descendants": [{
			"uri": "https://d.example/users/dan/statuses/9",
			"account": {"acct": "dan@d.example"},
			"id": "9",
			"favourites_count": 0,
			"replies_count": 0
		}]
	}`)

	c.processContext(ctxJSON, "https://b.example", toot)

	carol, ok := c.Store.GetUser("https://c.example/@carol")
	assert.True(t, ok)
	assert.Contains(t, carol.SeenBy, "https://b.example/@bob")

	dan, ok := c.Store.GetUser("https://d.example/@dan")
	assert.True(t, ok)
	assert.Contains(t, dan.SeenBy, "https://c.example/@carol")

	ancestorToot, ok := c.Store.GetToot("https://c.example/users/carol/statuses/7")
	assert.True(t, ok)
	assert.True(t, ancestorToot.FromThread)
}

// Scenario C: Pleroma's hyphenated toot IDs are never looked up via
// /api/v1/statuses/{id} — with no distinct local_instance fallback
// available, processing such a toot makes no fetch at all.
func TestProcessPendingTootSkipsPleromaDirectFetch(t *testing.T) {
	c := newTestCrawler()
	uri := "https://pleroma.example/objects/9f8c2a1e-uuid-like"
	c.Store.LearnToot(uri, "9f8c2a1e-uuid-like", "@pleroma_user", "", "", false, 0, 0)

	assert.NotPanics(t, func() { c.processPendingToot(context.Background(), uri) })

	toot, _ := c.Store.GetToot(uri)
	assert.Equal(t, 0, toot.Favor, "favor is never populated when no fetch can be made")
}

// Scenario D: a host within its backoff window is skipped entirely — the
// scheduler never even builds a request for it.
func TestProcessPendingTootSkipsFailingHost(t *testing.T) {
	c := newTestCrawler()
	uri := "https://b.example/users/bob/statuses/42"
	c.Store.LearnToot(uri, "42", "@bob", "", "", false, 0, 0)
	c.Health.JustFailed("https://b.example", time.Now())

	assert.NotPanics(t, func() { c.processPendingToot(context.Background(), uri) })

	toot, _ := c.Store.GetToot(uri)
	assert.Equal(t, "", toot.SourceID, "a backed-off host is never fetched, so source_id stays unset")
}

// Scenario F: favorite attribution — each favoriter is learned and recorded
// as an observer of the toot's author.
func TestProcessFavouritedByAttribution(t *testing.T) {
	c := newTestCrawler()
	toot := c.Store.LearnToot("https://b.example/users/bob/statuses/42", "42", "@bob", "https://b.example", "42", false, 0, 0)

	raw := []byte(`[
		{"acct": "alice@a.example"},
		{"acct": "eve@e.example"}
	]`)
	c.processFavouritedBy(raw, toot)

	bob, ok := c.Store.GetUser("https://b.example/@bob")
	assert.True(t, ok)
	assert.Contains(t, bob.SeenBy, "https://a.example/@alice")
	assert.Contains(t, bob.SeenBy, "https://e.example/@eve")

	refreshed, _ := c.Store.GetToot("https://b.example/users/bob/statuses/42")
	assert.Equal(t, 2, refreshed.Favor)
}
