// Package apuri parses the handful of URL/handle shapes the crawler needs to
// recognize: seed profile URLs, toot URIs, and acct handles. It never
// normalizes ports or paths beyond what spec.md requires — instance_url is
// always "https://" + host, nothing more.
package apuri

import "strings"

// ParseProfileURL extracts instance_url, user, and id from a seed profile
// URL of the form "https://host/user/id" — exactly three path parts.
func ParseProfileURL(u string) (ok bool, instanceURL, user, id string) {
	host, parts, ok := splitHTTPS(u)
	if !ok || len(parts) != 3 {
		return false, "", "", ""
	}
	return true, "https://" + host, parts[1], parts[2]
}

// ParseTootURI extracts the instance_url and the last path segment from a
// toot URI of the form "https://host/.../id". Requires at least 3 path
// parts (host + 2 segments), matching the toot-list processor's own check.
func ParseTootURI(u string) (ok bool, instanceURL, lastSegment string) {
	host, parts, ok := splitHTTPS(u)
	if !ok || len(parts) < 3 {
		return false, "", ""
	}
	return true, "https://" + host, parts[len(parts)-1]
}

// SplitAcct splits an "acct" field on "@", returning the local handle
// ("@local") and the host part, if any. A bare "alice" yields ("@alice",
// "") — caller substitutes the local instance. A "alice@host" yields
// ("@alice", "host").
func SplitAcct(a string) (local string, host string) {
	parts := strings.SplitN(a, "@", 2)
	local = "@" + parts[0]
	if len(parts) == 2 {
		host = parts[1]
	}
	return local, host
}

// splitHTTPS requires the "https://" prefix and splits everything after it
// on "/". parts[0] is always the host.
func splitHTTPS(u string) (host string, parts []string, ok bool) {
	const prefix = "https://"
	if !strings.HasPrefix(u, prefix) {
		return "", nil, false
	}
	rest := strings.TrimPrefix(u, prefix)
	parts = strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", nil, false
	}
	return parts[0], parts, true
}
