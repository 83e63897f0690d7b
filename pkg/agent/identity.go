package agent

import (
	"strconv"
	"time"

	"github.com/revtrace/revtrace-go/internal/infrastructure/security"
)

const visitorIDPrefix = "v_"

// ResolveVisitorID returns the permanent visitor id, generating and
// persisting one on first call. Once a visitor id exists it is never
// regenerated; repeated calls against the same storage state return the
// identical value.
func (a *Agent) ResolveVisitorID() string {
	if id, ok := a.durable.Get(visitorKey); ok && id != "" {
		return id
	}
	id := visitorIDPrefix + strconv.FormatInt(a.now().UnixMilli(), 36) + security.RandomBase36(8)
	a.durable.Set(visitorKey, id)
	return id
}

// ResolveSessionID returns the current session id. The cookie is read
// first, the durable store second; neither store is authoritative, so a hit
// in either is rewritten to both. When both are empty a new id is
// synthesized from the timestamp, the device fingerprint, and random bits.
func (a *Agent) ResolveSessionID() string {
	if id, ok := a.cookies.Get(sessionCookieName); ok && id != "" {
		a.durable.Set(sessionKey, id)
		return id
	}
	if id, ok := a.durable.Get(sessionKey); ok && id != "" {
		// Cookie was lost (blocked or expired); restore it from the fallback.
		a.cookies.Set(sessionCookieName, id, sessionCookieTTL)
		return id
	}

	id := strconv.FormatInt(a.now().UnixMilli(), 36) + "-" + fingerprint(a.surface) + "-" + security.RandomBase36(6)
	a.storeSessionID(id)
	return id
}

// storeSessionID writes a session id to both stores, 30-day cookie TTL.
func (a *Agent) storeSessionID(id string) {
	a.cookies.Set(sessionCookieName, id, sessionCookieTTL)
	a.durable.Set(sessionKey, id)
}

// sessionStartDue reports whether a session_start event should fire, per
// the 30-minute marker rule, and refreshes the marker when it should.
func (a *Agent) sessionStartDue() bool {
	now := a.now()
	if raw, ok := a.durable.Get(sessionStartKey); ok && raw != "" {
		if last, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if now.Sub(time.Unix(last, 0)) <= sessionTimeout {
				return false
			}
		}
	}
	a.durable.Set(sessionStartKey, strconv.FormatInt(now.Unix(), 10))
	return true
}
