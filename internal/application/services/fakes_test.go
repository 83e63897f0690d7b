package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/revtrace/revtrace-go/internal/domain/attribution"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/performance"
)

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: true,
		JSONFormat:      false,
		DefaultLevel:    slog.LevelError,
		ChannelLevels:   make(map[logging.Channel]slog.Level),
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

// memTouchpoints is an in-memory TouchpointRepository. findDelay simulates a
// slow store for timeout tests.
type memTouchpoints struct {
	mu        sync.Mutex
	stored    []*attribution.Touchpoint
	findDelay time.Duration
}

func (m *memTouchpoints) Store(ctx context.Context, tp *attribution.Touchpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, tp)
	return nil
}

func (m *memTouchpoints) FindByVisitorID(ctx context.Context, visitorID string) ([]*attribution.Touchpoint, error) {
	if m.findDelay > 0 {
		select {
		case <-time.After(m.findDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*attribution.Touchpoint
	for _, tp := range m.stored {
		if tp.VisitorID == visitorID {
			out = append(out, tp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memTouchpoints) SessionIDsForVisitor(ctx context.Context, visitorID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, tp := range m.stored {
		if tp.VisitorID == visitorID && !seen[tp.SessionID] {
			seen[tp.SessionID] = true
			out = append(out, tp.SessionID)
		}
	}
	return out, nil
}

func (m *memTouchpoints) VisitorIDsBySessionIDs(ctx context.Context, sessionIDs []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		wanted[id] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, tp := range m.stored {
		if wanted[tp.SessionID] && !seen[tp.VisitorID] {
			seen[tp.VisitorID] = true
			out = append(out, tp.VisitorID)
		}
	}
	return out, nil
}

func (m *memTouchpoints) RecentVisitorIDs(ctx context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lastSeen := make(map[string]time.Time)
	for _, tp := range m.stored {
		if tp.CreatedAt.After(lastSeen[tp.VisitorID]) {
			lastSeen[tp.VisitorID] = tp.CreatedAt
		}
	}
	out := make([]string, 0, len(lastSeen))
	for visitorID := range lastSeen {
		out = append(out, visitorID)
	}
	sort.Slice(out, func(i, j int) bool { return lastSeen[out[i]].After(lastSeen[out[j]]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memLeads is an in-memory LeadRepository applying the earliest-first
// tie-break of the SQL implementation.
type memLeads struct {
	mu     sync.Mutex
	stored []*attribution.Lead
}

func (m *memLeads) Store(ctx context.Context, lead *attribution.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, lead)
	return nil
}

func (m *memLeads) FindBySessionIDs(ctx context.Context, sessionIDs []string) (*attribution.Lead, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	wanted := make(map[string]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		wanted[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var best *attribution.Lead
	for _, lead := range m.stored {
		if !wanted[lead.SessionID] {
			continue
		}
		if best == nil ||
			lead.CreatedAt.Before(best.CreatedAt) ||
			(lead.CreatedAt.Equal(best.CreatedAt) && lead.ID < best.ID) {
			best = lead
		}
	}
	return best, nil
}

func (m *memLeads) SearchByEmail(ctx context.Context, fragment string) ([]*attribution.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*attribution.Lead
	for _, lead := range m.stored {
		if strings.Contains(lead.Email, fragment) {
			out = append(out, lead)
		}
	}
	return out, nil
}

// memPayments is an in-memory PaymentRepository.
type memPayments struct {
	mu     sync.Mutex
	stored []*attribution.Payment
}

func (m *memPayments) Store(ctx context.Context, payment *attribution.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, payment)
	return nil
}

func (m *memPayments) FindByVisitorID(ctx context.Context, visitorID string) ([]*attribution.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*attribution.Payment
	for _, p := range m.stored {
		if p.VisitorID == visitorID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// memSources resolves every UTM combination to one fixed source, or fails
// when err is set.
type memSources struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *memSources) ResolveFromUTM(ctx context.Context, utmSource, utmMedium, utmCampaign string) (*attribution.Source, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &attribution.Source{ID: "src-1", Name: "test source"}, nil
}

// memConsents is an in-memory ConsentRepository.
type memConsents struct {
	mu     sync.Mutex
	stored []*attribution.ConsentRecord
}

func (m *memConsents) Store(ctx context.Context, record *attribution.ConsentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, record)
	return nil
}

// countingBroadcaster records broadcast touchpoints.
type countingBroadcaster struct {
	mu   sync.Mutex
	sent []*attribution.Touchpoint
}

func (b *countingBroadcaster) BroadcastTouchpoint(tp *attribution.Touchpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tp)
}

func newTestTracker() *performance.Tracker {
	return performance.NewTracker()
}
