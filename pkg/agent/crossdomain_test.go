package agent

import (
	"net/url"
	"strings"
	"testing"
)

func TestRewriteLink(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		rewrite bool
	}{
		{"sibling subdomain", "https://shop.example.com/buy", true},
		{"root domain from subdomain", "https://example.com/", true},
		{"sibling keeps existing query", "https://shop.example.com/buy?ref=nav", true},
		{"same host", "https://app.example.com/other", false},
		{"unrelated host", "https://other.org/", false},
		{"relative link", "/pricing", false},
		{"mailto", "mailto:sales@example.com", false},
		{"malformed", "http://[::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAgent(t, Config{})
			a.AdoptSession("https://app.example.com/")
			sessionID := a.ResolveSessionID()

			got := a.RewriteLink(tt.target)
			if !tt.rewrite {
				if got != tt.target {
					t.Fatalf("RewriteLink(%q) = %q, want untouched", tt.target, got)
				}
				return
			}

			u, err := url.Parse(got)
			if err != nil {
				t.Fatalf("rewritten link unparseable: %v", err)
			}
			if u.Query().Get(SessionParam) != sessionID {
				t.Errorf("rewritten link %q missing session id %q", got, sessionID)
			}
			// Original query parameters survive the rewrite.
			orig, _ := url.Parse(tt.target)
			for key, values := range orig.Query() {
				if u.Query().Get(key) != values[0] {
					t.Errorf("rewrite dropped query parameter %q", key)
				}
			}
		})
	}
}

func TestRewriteLinkWithoutPageContext(t *testing.T) {
	a := newTestAgent(t, Config{})
	target := "https://shop.example.com/buy"
	if got := a.RewriteLink(target); got != target {
		t.Errorf("RewriteLink before any page load = %q, want untouched", got)
	}
}

func TestAdoptSession(t *testing.T) {
	t.Run("adopts and strips parameter", func(t *testing.T) {
		cookies := NewMemoryCookieStore()
		durable := NewMemoryDurableStore()
		a := newTestAgent(t, Config{Cookies: cookies, Durable: durable})

		// A locally resolved session exists before landing.
		local := a.ResolveSessionID()

		clean, adopted := a.AdoptSession("https://shop.example.com/landing?x=1&" + SessionParam + "=abc123")
		if !adopted {
			t.Fatal("AdoptSession() did not adopt")
		}
		if strings.Contains(clean, SessionParam) {
			t.Errorf("clean url %q still carries the tracking parameter", clean)
		}
		if !strings.Contains(clean, "x=1") {
			t.Errorf("clean url %q lost unrelated query parameters", clean)
		}

		// Adoption overwrites the local session in both stores.
		if got := a.ResolveSessionID(); got != "abc123" {
			t.Errorf("session after adoption = %q (local was %q), want abc123", got, local)
		}
		if got, _ := cookies.Get(sessionCookieName); got != "abc123" {
			t.Errorf("cookie store = %q, want abc123", got)
		}
		if got, _ := durable.Get(sessionKey); got != "abc123" {
			t.Errorf("durable store = %q, want abc123", got)
		}
	})

	t.Run("no parameter", func(t *testing.T) {
		a := newTestAgent(t, Config{})
		pageURL := "https://shop.example.com/landing?x=1"
		clean, adopted := a.AdoptSession(pageURL)
		if adopted || clean != pageURL {
			t.Errorf("AdoptSession(%q) = %q, %v; want untouched, false", pageURL, clean, adopted)
		}
	})

	t.Run("malformed url", func(t *testing.T) {
		a := newTestAgent(t, Config{})
		pageURL := "http://[::1"
		clean, adopted := a.AdoptSession(pageURL)
		if adopted || clean != pageURL {
			t.Errorf("AdoptSession(%q) = %q, %v; want untouched, false", pageURL, clean, adopted)
		}
	})
}

// TestCrossDomainHandoff walks the full propagation path: a link rewritten on
// one subdomain, loaded on a sibling, carries the session across and leaves a
// clean visible URL behind.
func TestCrossDomainHandoff(t *testing.T) {
	source := newTestAgent(t, Config{})
	source.AdoptSession("https://app.example.com/")
	sessionID := source.ResolveSessionID()

	link := source.RewriteLink("https://shop.example.com/checkout")
	if link == "https://shop.example.com/checkout" {
		t.Fatal("link was not rewritten")
	}

	// The destination page runs its own agent with its own storage.
	dest := newTestAgent(t, Config{})
	clean, adopted := dest.AdoptSession(link)
	if !adopted {
		t.Fatal("destination did not adopt the session")
	}
	if got := dest.ResolveSessionID(); got != sessionID {
		t.Errorf("destination session = %q, want %q", got, sessionID)
	}
	if strings.Contains(clean, SessionParam) {
		t.Errorf("visible url %q still contains the tracking parameter", clean)
	}
}

func TestSameFamily(t *testing.T) {
	tests := []struct {
		hostA, hostB string
		want         bool
	}{
		{"app.example.com", "shop.example.com", true},
		{"app.example.com", "example.com", true},
		{"deep.nested.example.com", "example.com", true},
		{"app.example.com", "example.org", false},
		{"example.com", "sample.com", false},
		{"localhost", "localhost", true},
		// Known coarse-matching limitation: sibling .co.uk registrants
		// compare equal on their last two labels.
		{"alpha.co.uk", "beta.co.uk", true},
	}

	for _, tt := range tests {
		if got := sameFamily(tt.hostA, tt.hostB); got != tt.want {
			t.Errorf("sameFamily(%q, %q) = %v, want %v", tt.hostA, tt.hostB, got, tt.want)
		}
	}
}
