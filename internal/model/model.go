// Package model holds the crawler's entity types: instances, accounts, and
// toots, plus the on-disk checkpoint document they serialize into.
package model

// Instance is an HTTPS origin the crawler has observed or visited.
// Health state (failure counts, backoff deadlines) lives entirely in
// internal/health.Tracker, keyed by instance URL — not here, and not
// persisted, so a restarted process never inherits a stale backoff
// decision.
type Instance struct {
	URL string
}

// User is one account as observed from a particular instance's point of
// view. Federation makes cross-instance identity non-authoritative, so the
// same human appears as a distinct User once per observing instance — see
// Key.
type User struct {
	InstanceURL string
	Acct        string // "@local"
	AcctID      string // numeric, home-instance-local; "" until learned

	// SeenBy holds Key()-formatted identities of accounts observed boosting,
	// favoriting, replying to, or threading with this user. Never contains
	// this user's own key.
	SeenBy map[string]struct{}
}

// Key is the identity of a user: instance_url + "/" + acct.
func (u *User) Key() string {
	return u.InstanceURL + "/" + u.Acct
}

// Toot is a single post, identified globally by its ActivityPub URI.
type Toot struct {
	URI    string
	TootID string // last path segment of URI
	Acct   string // author handle, home-instance-relative

	SourceID string // numeric ID at the home instance; "" until learned

	// LocalInstance/LocalID record where this toot was first observed,
	// which may differ from its home instance (federation caches).
	LocalInstance string
	LocalID       string

	FromThread bool // true iff discovered via a /context call on another toot
	Favor      int  // favorite count, if reported
	Related    int  // reply count, if reported (or 1 if in_reply_to_id present)
}

// Document is the single JSON document the store persists to and loads
// from. Integers and the from_thread flag are written as proper JSON types;
// load tolerates the legacy stringly-typed encoding described in the
// checkpoint format (string-quoted integers, "from_thread":"True").
type Document struct {
	Instances []string        `json:"instances"`
	Users     []DocumentUser  `json:"users"`
	Toots     []DocumentToot  `json:"toots"`
	ToDo      []string        `json:"toots_todo"`
}

// DocumentUser is the persisted shape of a User.
type DocumentUser struct {
	Instance string   `json:"instance"`
	Acct     string   `json:"acct"`
	AcctID   string   `json:"acct_id,omitempty"`
	SeenBy   []string `json:"seen_by,omitempty"`
}

// DocumentToot is the persisted shape of a Toot. Favor/Related/FromThread
// are emitted as real JSON number/bool types on save. Load does not decode
// into this struct: store.decodeTootLocked reads each field with gjson and
// accepts either shape (string or number/bool).
type DocumentToot struct {
	URI           string `json:"uri"`
	Acct          string `json:"acct"`
	TootID        string `json:"toot_id"`
	SourceID      string `json:"source_id,omitempty"`
	LocalInstance string `json:"local_instance,omitempty"`
	LocalID       string `json:"local_id,omitempty"`
	FromThread    bool   `json:"from_thread,omitempty"`
	Favor         int    `json:"favor,omitempty"`
	Related       int    `json:"related,omitempty"`
}
