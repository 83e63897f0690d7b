package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/revtrace/revtrace-go/internal/domain/attribution"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/performance"
	"github.com/revtrace/revtrace-go/internal/infrastructure/security"
	"github.com/revtrace/revtrace-go/pkg/config"
)

// Event types with server-side capture semantics.
const (
	EventTypePageView       = "page_view"
	EventTypeSessionStart   = "session_start"
	EventTypeLeadConversion = "lead_conversion"
	EventTypePayment        = "payment"
)

// TouchpointBroadcaster pushes stored touchpoints to live stream subscribers.
type TouchpointBroadcaster interface {
	BroadcastTouchpoint(tp *attribution.Touchpoint)
}

// LeadNotifier delivers best-effort notifications for new lead conversions.
type LeadNotifier interface {
	SendLeadNotification(leadEmail, leadName string) error
}

// IngestService processes incoming attribution events: it resolves the
// traffic source, persists the touchpoint, and captures lead-conversion and
// payment events into their own records.
type IngestService struct {
	touchpoints attribution.TouchpointRepository
	leads       attribution.LeadRepository
	payments    attribution.PaymentRepository
	sources     attribution.SourceRepository
	consents    attribution.ConsentRepository
	broadcaster TouchpointBroadcaster
	notifier    LeadNotifier
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewIngestService creates a new ingest service. Broadcaster and notifier
// are optional; nil disables the corresponding side effect.
func NewIngestService(
	touchpoints attribution.TouchpointRepository,
	leads attribution.LeadRepository,
	payments attribution.PaymentRepository,
	sources attribution.SourceRepository,
	consents attribution.ConsentRepository,
	broadcaster TouchpointBroadcaster,
	notifier LeadNotifier,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *IngestService {
	return &IngestService{
		touchpoints: touchpoints,
		leads:       leads,
		payments:    payments,
		sources:     sources,
		consents:    consents,
		broadcaster: broadcaster,
		notifier:    notifier,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// IngestRequest is the wire contract for POST /api/v1/events.
type IngestRequest struct {
	ProjectKey  string         `json:"project_key"`
	SessionID   string         `json:"session_id"`
	VisitorID   string         `json:"visitor_id"`
	EventType   string         `json:"event_type"`
	PageURL     string         `json:"page_url,omitempty"`
	Referrer    string         `json:"referrer,omitempty"`
	UTMSource   string         `json:"utm_source,omitempty"`
	UTMMedium   string         `json:"utm_medium,omitempty"`
	UTMCampaign string         `json:"utm_campaign,omitempty"`
	UTMTerm     string         `json:"utm_term,omitempty"`
	UTMContent  string         `json:"utm_content,omitempty"`
	DeviceType  string         `json:"device_type,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Validate checks the minimum wire contract fields.
func (req *IngestRequest) Validate() error {
	if req.ProjectKey == "" {
		return fmt.Errorf("project_key is required")
	}
	if req.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if req.VisitorID == "" {
		return fmt.Errorf("visitor_id is required")
	}
	if req.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	return nil
}

// ProcessEvent stores one attribution event as a touchpoint and captures any
// conversion or payment semantics it carries.
func (s *IngestService) ProcessEvent(ctx context.Context, req *IngestRequest) (*attribution.Touchpoint, error) {
	marker := s.perfTracker.StartOperation("ingest:store_event")
	defer marker.Complete()

	if err := req.Validate(); err != nil {
		marker.SetError(err)
		return nil, err
	}

	source, err := s.sources.ResolveFromUTM(ctx, req.UTMSource, req.UTMMedium, req.UTMCampaign)
	if err != nil {
		// Source resolution failing must not lose the touchpoint.
		s.logger.Ingest().Warn("Source resolution failed, storing touchpoint without source",
			"error", err.Error(),
			"visitorId", req.VisitorID)
		source = nil
	}

	tp := &attribution.Touchpoint{
		ID:          security.GenerateULID(),
		VisitorID:   req.VisitorID,
		SessionID:   req.SessionID,
		EventType:   req.EventType,
		PageURL:     req.PageURL,
		Referrer:    req.Referrer,
		UTMSource:   req.UTMSource,
		UTMMedium:   req.UTMMedium,
		UTMCampaign: req.UTMCampaign,
		UTMTerm:     req.UTMTerm,
		UTMContent:  req.UTMContent,
		DeviceType:  req.DeviceType,
		CreatedAt:   time.Now().UTC(),
	}
	if source != nil {
		tp.SourceID = &source.ID
	}

	if err := s.touchpoints.Store(ctx, tp); err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("failed to store touchpoint: %w", err)
	}

	switch req.EventType {
	case EventTypeLeadConversion:
		s.captureLead(ctx, req, tp)
	case EventTypePayment:
		s.capturePayment(ctx, req, tp)
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastTouchpoint(tp)
	}

	s.logger.Ingest().Info("Event ingested",
		"touchpointId", tp.ID,
		"eventType", tp.EventType,
		"visitorId", tp.VisitorID,
		"sessionId", logging.SanitizeSessionID(tp.SessionID))
	return tp, nil
}

// captureLead records a Lead for a lead_conversion event. A malformed lead
// payload degrades to touchpoint-only capture; it never fails the ingest.
func (s *IngestService) captureLead(ctx context.Context, req *IngestRequest, tp *attribution.Touchpoint) {
	email := extraString(req.Extra, "email")
	if email == "" {
		s.logger.Ingest().Warn("Lead conversion event without email, lead not captured",
			"touchpointId", tp.ID,
			"visitorId", req.VisitorID)
		return
	}

	lead := &attribution.Lead{
		ID:        security.GenerateULID(),
		SessionID: req.SessionID,
		Email:     email,
		Name:      extraString(req.Extra, "name"),
		CreatedAt: tp.CreatedAt,
	}
	if err := s.leads.Store(ctx, lead); err != nil {
		s.logger.Ingest().Error("Lead capture failed",
			"error", err.Error(),
			"touchpointId", tp.ID)
		return
	}

	if s.notifier != nil && config.LeadNotifyEnabled {
		// Fire-and-forget: notification failure never surfaces to ingestion.
		go func(leadEmail, leadName string) {
			if err := s.notifier.SendLeadNotification(leadEmail, leadName); err != nil {
				s.logger.Email().Warn("Lead notification failed", "error", err.Error())
			}
		}(lead.Email, lead.Name)
	}
}

// capturePayment records a Payment for a payment event.
func (s *IngestService) capturePayment(ctx context.Context, req *IngestRequest, tp *attribution.Touchpoint) {
	amount, ok := extraFloat(req.Extra, "amount")
	if !ok {
		s.logger.Ingest().Warn("Payment event without amount, payment not captured",
			"touchpointId", tp.ID,
			"visitorId", req.VisitorID)
		return
	}

	currency := extraString(req.Extra, "currency")
	if currency == "" {
		currency = "USD"
	}
	status := extraString(req.Extra, "status")
	if status == "" {
		status = "succeeded"
	}

	payment := &attribution.Payment{
		ID:        security.GenerateULID(),
		VisitorID: req.VisitorID,
		Amount:    amount,
		Currency:  currency,
		Status:    status,
		CreatedAt: tp.CreatedAt,
	}
	if err := s.payments.Store(ctx, payment); err != nil {
		s.logger.Ingest().Error("Payment capture failed",
			"error", err.Error(),
			"touchpointId", tp.ID)
	}
}

// ConsentRequest is the wire contract for POST /api/v1/consent.
type ConsentRequest struct {
	ProjectKey       string `json:"project_key"`
	VisitorID        string `json:"visitor_id"`
	ConsentGiven     bool   `json:"consent_given"`
	ConsentAnalytics bool   `json:"consent_analytics"`
	ConsentMarketing bool   `json:"consent_marketing"`
}

// ProcessConsent appends one consent record to the consent log.
func (s *IngestService) ProcessConsent(ctx context.Context, req *ConsentRequest) error {
	marker := s.perfTracker.StartOperation("ingest:store_consent")
	defer marker.Complete()

	if req.ProjectKey == "" {
		err := fmt.Errorf("project_key is required")
		marker.SetError(err)
		return err
	}
	if req.VisitorID == "" {
		err := fmt.Errorf("visitor_id is required")
		marker.SetError(err)
		return err
	}

	record := &attribution.ConsentRecord{
		ID:               security.GenerateULID(),
		VisitorID:        req.VisitorID,
		ConsentGiven:     req.ConsentGiven,
		ConsentAnalytics: req.ConsentAnalytics,
		ConsentMarketing: req.ConsentMarketing,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.consents.Store(ctx, record); err != nil {
		marker.SetError(err)
		return fmt.Errorf("failed to store consent record: %w", err)
	}

	s.logger.Consent().Info("Consent recorded",
		"visitorId", req.VisitorID,
		"consentGiven", req.ConsentGiven)
	return nil
}

// extraString reads a string value from the open extra map.
func extraString(extra map[string]any, key string) string {
	if extra == nil {
		return ""
	}
	if v, ok := extra[key].(string); ok {
		return v
	}
	return ""
}

// extraFloat reads a numeric value from the open extra map. JSON numbers
// decode as float64; string amounts from form-encoded clients are accepted too.
func extraFloat(extra map[string]any, key string) (float64, bool) {
	if extra == nil {
		return 0, false
	}
	switch v := extra[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
