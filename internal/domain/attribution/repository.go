// Package attribution defines the entities and repository interfaces for the
// marketing attribution store (sources, touchpoints, leads, payments).
// These repositories abstract the data persistence details, ensuring the core
// application is clean and decoupled from the database.
package attribution

import (
	"context"
	"time"
)

// Source represents a named traffic source resolved server-side from UTM
// parameters. One row exists per distinct source/medium/campaign combination.
type Source struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	UTMSource   string    `json:"utmSource,omitempty"`
	UTMMedium   string    `json:"utmMedium,omitempty"`
	UTMCampaign string    `json:"utmCampaign,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Touchpoint is one persisted attribution event. Touchpoints are append-only;
// nothing in this system mutates or deletes them once written.
type Touchpoint struct {
	ID          string    `json:"id"`
	VisitorID   string    `json:"visitorId"`
	SessionID   string    `json:"sessionId"`
	EventType   string    `json:"eventType"`
	PageURL     string    `json:"pageUrl,omitempty"`
	Referrer    string    `json:"referrer,omitempty"`
	UTMSource   string    `json:"utmSource,omitempty"`
	UTMMedium   string    `json:"utmMedium,omitempty"`
	UTMCampaign string    `json:"utmCampaign,omitempty"`
	UTMTerm     string    `json:"utmTerm,omitempty"`
	UTMContent  string    `json:"utmContent,omitempty"`
	DeviceType  string    `json:"deviceType,omitempty"`
	SourceID    *string   `json:"sourceId,omitempty"` // Optional foreign key to sources
	CreatedAt   time.Time `json:"createdAt"`
}

// Lead represents a conversion action (e.g. signup), linked to the session
// that was active at conversion time.
type Lead struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Payment represents a monetary transaction linked to a visitor. Payment may
// occur in a later session than the lead conversion, so the link is by
// visitor id, not session id.
type Payment struct {
	ID        string    `json:"id"`
	VisitorID string    `json:"visitorId"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConsentRecord is one row in the append-only consent log.
type ConsentRecord struct {
	ID               string    `json:"id"`
	VisitorID        string    `json:"visitorId"`
	ConsentGiven     bool      `json:"consentGiven"`
	ConsentAnalytics bool      `json:"consentAnalytics"`
	ConsentMarketing bool      `json:"consentMarketing"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Journey is a derived, read-only view composed of one visitor's touchpoints
// (time-ordered ascending), optional lead, and ordered payments.
// TotalRevenue is a pure function of the payments set.
type Journey struct {
	VisitorID    string        `json:"visitorId"`
	Touchpoints  []*Touchpoint `json:"touchpoints"`
	Lead         *Lead         `json:"lead,omitempty"`
	Payments     []*Payment    `json:"payments"`
	TotalRevenue float64       `json:"totalRevenue"`
}

// TouchpointRepository defines the operations for persisting Touchpoint entities.
type TouchpointRepository interface {
	Store(ctx context.Context, tp *Touchpoint) error
	FindByVisitorID(ctx context.Context, visitorID string) ([]*Touchpoint, error)
	SessionIDsForVisitor(ctx context.Context, visitorID string) ([]string, error)
	VisitorIDsBySessionIDs(ctx context.Context, sessionIDs []string) ([]string, error)
	RecentVisitorIDs(ctx context.Context, limit int) ([]string, error)
}

// LeadRepository defines the operations for persisting Lead entities.
type LeadRepository interface {
	Store(ctx context.Context, lead *Lead) error
	FindBySessionIDs(ctx context.Context, sessionIDs []string) (*Lead, error)
	SearchByEmail(ctx context.Context, fragment string) ([]*Lead, error)
}

// PaymentRepository defines the operations for persisting Payment entities.
type PaymentRepository interface {
	Store(ctx context.Context, payment *Payment) error
	FindByVisitorID(ctx context.Context, visitorID string) ([]*Payment, error)
}

// SourceRepository defines the operations for resolving traffic sources.
type SourceRepository interface {
	ResolveFromUTM(ctx context.Context, utmSource, utmMedium, utmCampaign string) (*Source, error)
}

// ConsentRepository defines the operations for persisting consent records.
type ConsentRepository interface {
	Store(ctx context.Context, record *ConsentRecord) error
}
