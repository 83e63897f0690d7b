package agent

import (
	"sync"
	"time"
)

// Client storage keys. One cookie plus durable entries for the visitor id,
// the session id fallback, the session-start marker, and the consent state.
const (
	sessionCookieName = "_rv_session"
	visitorKey        = "rv_visitor_id"
	sessionKey        = "rv_session_id"
	sessionStartKey   = "rv_session_start"
	consentKey        = "rv_consent"

	sessionCookieTTL = 30 * 24 * time.Hour
)

// CookieStore abstracts the short-lived cookie jar of the embedding host.
// Implementations may drop writes entirely; the agent treats the cookie as
// one of two redundant stores, never the authoritative one.
type CookieStore interface {
	Get(name string) (string, bool)
	Set(name, value string, ttl time.Duration)
}

// DurableStore abstracts the host's long-lived key/value storage. Entries
// have no TTL and survive until explicitly overwritten.
type DurableStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MemoryCookieStore is an in-process CookieStore honoring TTLs. Hosts
// without a real cookie jar (and tests) use it.
type MemoryCookieStore struct {
	mu      sync.Mutex
	entries map[string]memoryCookie
	now     func() time.Time
}

type memoryCookie struct {
	value   string
	expires time.Time
}

// NewMemoryCookieStore creates an empty in-memory cookie store.
func NewMemoryCookieStore() *MemoryCookieStore {
	return &MemoryCookieStore{
		entries: make(map[string]memoryCookie),
		now:     time.Now,
	}
}

func (s *MemoryCookieStore) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[name]
	if !ok {
		return "", false
	}
	if s.now().After(entry.expires) {
		delete(s.entries, name)
		return "", false
	}
	return entry.value, true
}

func (s *MemoryCookieStore) Set(name, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = memoryCookie{value: value, expires: s.now().Add(ttl)}
}

// MemoryDurableStore is an in-process DurableStore.
type MemoryDurableStore struct {
	mu      sync.Mutex
	entries map[string]string
}

// NewMemoryDurableStore creates an empty in-memory durable store.
func NewMemoryDurableStore() *MemoryDurableStore {
	return &MemoryDurableStore{entries: make(map[string]string)}
}

func (s *MemoryDurableStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *MemoryDurableStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
}
