// Package gateway issues unauthenticated GET requests against a fixed set
// of Mastodon/Pleroma public REST endpoint templates and decodes JSON. It
// never raises to the caller — any transport error, non-200 status, or
// decode failure collapses to (false, nil).
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultTimeout is the per-fetch timeout when the caller does not override it.
const DefaultTimeout = 5 * time.Second

const userAgent = "spider/1.0 (+https://github.com/klppl/spider)"

// Gateway performs paced, unauthenticated GETs against fediverse REST
// endpoints. The rate limiter is the crawler's own politeness policy — it
// does not read or negotiate any server-provided rate-limit headers
// (that's the Non-goal; this is a crawler choosing not to hammer hosts).
type Gateway struct {
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// New builds a Gateway paced to at most requestsPerSecond outbound
// requests, with burst capacity equal to requestsPerSecond rounded down,
// but at least 1 (so a burst of that many requests can fire immediately
// before pacing kicks in).
// requestsPerSecond <= 0 disables pacing.
func New(requestsPerSecond float64, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return &Gateway{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		timeout: timeout,
	}
}

// Fetch issues a GET against url and decodes the JSON body. On any
// transport error, non-200 status, or decode failure it returns
// (false, nil) — never an error, per spec: the gateway never raises to
// its caller.
func (g *Gateway) Fetch(ctx context.Context, url string) (bool, []byte) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			slog.Debug("gateway: rate limiter wait cancelled", "url", url, "error", err)
			return false, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Debug("gateway: build request failed", "url", url, "error", err)
		return false, nil
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Debug("gateway: request failed", "url", url, "error", err)
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Debug("gateway: non-200 response", "url", url, "status", resp.StatusCode)
		return false, nil
	}

	var probe json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&probe); err != nil {
		slog.Debug("gateway: decode failed", "url", url, "error", err)
		return false, nil
	}
	return true, probe
}

// ─── Endpoint templates (§4.1) ─────────────────────────────────────────────

// PublicTimelineURL builds the public-timeline endpoint for host.
func PublicTimelineURL(instanceURL string) string {
	return instanceURL + "/api/v1/timelines/public?limit=20"
}

// StatusURL builds the single-status endpoint. Only meaningful for numeric
// (Mastodon-style) toot IDs — see §4.6 on the Pleroma skip.
func StatusURL(instanceURL, tootID string) string {
	return instanceURL + "/api/v1/statuses/" + tootID
}

// ContextURL builds the thread-context endpoint for a status.
func ContextURL(instanceURL, tootID string) string {
	return instanceURL + "/api/v1/statuses/" + tootID + "/context"
}

// FavouritedByURL builds the favourited_by endpoint for a status.
func FavouritedByURL(instanceURL, tootID string) string {
	return instanceURL + "/api/v1/statuses/" + tootID + "/favourited_by"
}

// AccountStatusesURL builds the recent-statuses endpoint for an account ID.
func AccountStatusesURL(instanceURL, acctID string) string {
	return instanceURL + "/api/v1/accounts/" + acctID + "/statuses?limit=20"
}

// IsAllDigits reports whether s is a non-empty string of ASCII digits —
// the test spec.md §4.6 uses to distinguish Mastodon numeric toot IDs from
// Pleroma's hyphenated identifiers.
func IsAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

