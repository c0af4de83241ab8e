package crawl

import (
	"github.com/tidwall/gjson"

	"github.com/klppl/spider/internal/apuri"
	"github.com/klppl/spider/internal/model"
)

// findTootOrigin resolves the account embedded in a status/account JSON
// object into a learned User. acct_id is adopted only when the account's
// home instance equals localInstance — a foreign instance's numeric ID
// can't be trusted to mean the same thing locally (§4.5).
func (c *Crawler) findTootOrigin(accountJSON gjson.Result, localInstance string) (*model.User, bool) {
	acctField := accountJSON.Get("acct")
	if !acctField.Exists() || acctField.String() == "" {
		return nil, false
	}
	local, host := apuri.SplitAcct(acctField.String())
	instanceURL := localInstance
	sameInstance := true
	if host != "" {
		instanceURL = "https://" + host
		sameInstance = instanceURL == localInstance
	}
	acctID := ""
	if sameInstance {
		acctID = accountJSON.Get("id").String()
	}
	return c.Store.LearnAccount(instanceURL, local, acctID), true
}

// processTootList walks a JSON array of status entries (a timeline page or
// an account's recent statuses) and processes each one.
func (c *Crawler) processTootList(raw []byte, localInstance, observerInstance, observerAcct string, fromThread bool) {
	gjson.ParseBytes(raw).ForEach(func(_, entry gjson.Result) bool {
		c.processEntry(entry, localInstance, observerInstance, observerAcct, fromThread)
		return true
	})
}

// processEntry implements the per-entry rules of §4.5: uri validation,
// reblog-wrapper unwrapping, and toot/seen_by learning.
func (c *Crawler) processEntry(entry gjson.Result, localInstance, observerInstance, observerAcct string, fromThread bool) (*model.User, bool) {
	uriField := entry.Get("uri")
	if !uriField.Exists() {
		return nil, false
	}
	ok, _, lastSegment := apuri.ParseTootURI(uriField.String())
	if !ok {
		return nil, false
	}

	origin, ok := c.findTootOrigin(entry.Get("account"), localInstance)
	if !ok {
		return nil, false
	}

	if lastSegment == "activity" {
		reblog := entry.Get("reblog")
		if !reblog.Exists() {
			return origin, true
		}
		reblogOrigin, ok := c.findTootOrigin(reblog.Get("account"), localInstance)
		if ok {
			// The current user (the reblogger) is recorded as observer of
			// the reblogged toot's author.
			c.Store.LearnSeenBy(reblogOrigin.InstanceURL, reblogOrigin.Acct, origin.InstanceURL, origin.Acct)
		}
		// Recurse into the reblogged toot with the reblogger as the new
		// observer; a reblog is never itself thread-discovered.
		c.processEntry(reblog, localInstance, origin.InstanceURL, origin.Acct, false)
		return origin, true
	}

	localID := entry.Get("id").String()
	favor := int(entry.Get("favourites_count").Int())
	related := int(entry.Get("replies_count").Int())
	if related == 0 && entry.Get("in_reply_to_id").Exists() && entry.Get("in_reply_to_id").String() != "" {
		related = 1
	}

	c.Store.LearnToot(uriField.String(), lastSegment, origin.Acct, localInstance, localID, fromThread, favor, related)

	if observerInstance != "" && observerAcct != "" {
		c.Store.LearnSeenBy(origin.InstanceURL, origin.Acct, observerInstance, observerAcct)
	}
	return origin, true
}
