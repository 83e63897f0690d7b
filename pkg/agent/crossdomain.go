package agent

import (
	"net/url"
	"strings"
)

// SessionParam is the cross-domain query parameter carrying the session id.
// Consumers treat its presence as authoritative and strip it after adoption.
const SessionParam = "_rv_sid"

// RewriteLink appends the current session id to an outbound link when the
// target hostname belongs to the same root-domain family as the current
// page but differs from it (cookies do not cross sibling subdomains).
// Malformed targets, relative links, non-http schemes, and unrelated hosts
// are returned untouched.
func (a *Agent) RewriteLink(target string) string {
	if a.currentHost == "" {
		return target
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return target
	}
	targetHost := strings.ToLower(u.Hostname())
	if targetHost == a.currentHost || !sameFamily(a.currentHost, targetHost) {
		return target
	}

	q := u.Query()
	q.Set(SessionParam, a.ResolveSessionID())
	u.RawQuery = q.Encode()
	return u.String()
}

// AdoptSession inspects a landing page URL for the cross-domain session
// parameter. When present, the embedded session id overwrites any locally
// resolved one in both stores, and the cleaned URL (parameter stripped) is
// returned for a non-reloading history replace. Adoption always wins over
// local session resolution.
func (a *Agent) AdoptSession(pageURL string) (string, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL, false
	}
	a.setPage(u)

	q := u.Query()
	sid := q.Get(SessionParam)
	if sid == "" {
		return pageURL, false
	}

	a.storeSessionID(sid)
	a.logger.Debug("Cross-domain session adopted", "host", a.currentHost)

	q.Del(SessionParam)
	u.RawQuery = q.Encode()
	a.setPage(u)
	return u.String(), true
}

// sameFamily compares the last two dot-separated labels of two hostnames.
// This is a coarse approximation of registrable-root-domain matching; it
// does not handle multi-part public suffixes such as .co.uk, which is a
// documented limitation.
func sameFamily(hostA, hostB string) bool {
	return lastTwoLabels(hostA) == lastTwoLabels(hostB)
}

func lastTwoLabels(host string) string {
	labels := strings.Split(strings.ToLower(host), ".")
	if len(labels) <= 2 {
		return strings.Join(labels, ".")
	}
	return strings.Join(labels[len(labels)-2:], ".")
}
