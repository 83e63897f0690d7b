// Package agent is the client-embeddable attribution agent: it owns visitor
// and session identity, gates emission on consent, propagates sessions
// across sibling subdomains, and transmits attribution events best-effort.
// All state lives in host-supplied client storage; the agent makes no
// blocking network calls and never surfaces an error to the embedding host
// after construction.
package agent

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Event types the agent emits on its own.
const (
	EventTypePageView     = "page_view"
	EventTypeSessionStart = "session_start"
)

// sessionTimeout bounds the session_start window; a new marker is recorded
// when more than this has elapsed since the last one.
const sessionTimeout = 30 * time.Minute

// Config carries everything the agent needs. ProjectKey is the only
// required field; storage, transport, and logging all have working
// defaults.
type Config struct {
	// ProjectKey identifies the deployment to the ingestion endpoint.
	// Construction fails without it.
	ProjectKey string

	// IngestURL and ConsentURL are the collection endpoints. Empty values
	// disable transmission (events are assembled and discarded).
	IngestURL  string
	ConsentURL string

	// RequireConsent flips the opt-out default: when set, an unset consent
	// record blocks non-essential events instead of permitting them.
	RequireConsent bool

	// Device context supplied by the host, carried verbatim on events.
	UserAgent    string
	ScreenWidth  int
	ScreenHeight int
	Locale       string

	// Cookies and Durable are the two redundant client stores. Defaults
	// are in-memory implementations.
	Cookies CookieStore
	Durable DurableStore

	// Surface feeds device fingerprinting; nil degrades to a constant.
	Surface FingerprintSurface

	// Logger receives swallowed transport errors and debug traces.
	Logger *slog.Logger

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Agent is one configured attribution agent instance. Instances are
// independent; tests construct as many isolated ones as they need.
type Agent struct {
	projectKey     string
	ingestURL      string
	consentURL     string
	requireConsent bool

	userAgent    string
	screenWidth  int
	screenHeight int
	locale       string

	cookies CookieStore
	durable DurableStore
	surface FingerprintSurface

	logger     *slog.Logger
	httpClient *http.Client
	now        func() time.Time
	inflight   sync.WaitGroup

	currentURL   string
	currentHost  string
	currentQuery url.Values
	referrer     string
}

// New constructs an agent. A missing project key is a configuration error:
// the agent refuses to initialize rather than emit unattributable events.
func New(cfg Config) (*Agent, error) {
	if cfg.ProjectKey == "" {
		return nil, fmt.Errorf("agent: project key is required")
	}

	a := &Agent{
		projectKey:     cfg.ProjectKey,
		ingestURL:      cfg.IngestURL,
		consentURL:     cfg.ConsentURL,
		requireConsent: cfg.RequireConsent,
		userAgent:      cfg.UserAgent,
		screenWidth:    cfg.ScreenWidth,
		screenHeight:   cfg.ScreenHeight,
		locale:         cfg.Locale,
		cookies:        cfg.Cookies,
		durable:        cfg.Durable,
		surface:        cfg.Surface,
		logger:         cfg.Logger,
		httpClient:     cfg.HTTPClient,
		now:            time.Now,
	}
	if a.cookies == nil {
		a.cookies = NewMemoryCookieStore()
	}
	if a.durable == nil {
		a.durable = NewMemoryDurableStore()
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return a, nil
}

// setPage records the current page context used for link rewriting and UTM
// extraction.
func (a *Agent) setPage(u *url.URL) {
	a.currentURL = u.String()
	a.currentHost = strings.ToLower(u.Hostname())
	a.currentQuery = u.Query()
}
