// Package services provides application-level orchestration services
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/revtrace/revtrace-go/internal/domain/attribution"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/performance"
	"github.com/revtrace/revtrace-go/pkg/config"
)

// JourneyService reconstructs per-visitor attribution timelines by merging
// touchpoints, lead conversions, and payments into ordered journeys.
type JourneyService struct {
	touchpoints attribution.TouchpointRepository
	leads       attribution.LeadRepository
	payments    attribution.PaymentRepository
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker

	candidateTimeout time.Duration
	maxCandidates    int
}

// NewJourneyService creates a new journey service.
func NewJourneyService(
	touchpoints attribution.TouchpointRepository,
	leads attribution.LeadRepository,
	payments attribution.PaymentRepository,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *JourneyService {
	return &JourneyService{
		touchpoints:      touchpoints,
		leads:            leads,
		payments:         payments,
		logger:           logger,
		perfTracker:      perfTracker,
		candidateTimeout: config.JourneyCandidateTimeout,
		maxCandidates:    config.MaxJourneyCandidates,
	}
}

// JourneyCriteria selects the candidate visitors for journey reconstruction.
// Exactly one field should be set; precedence is VisitorID, then
// EmailFragment, then RecentLimit.
type JourneyCriteria struct {
	VisitorID     string `json:"visitorId,omitempty"`
	EmailFragment string `json:"emailFragment,omitempty"`
	RecentLimit   int    `json:"recentLimit,omitempty"`
}

// BuildJourneys resolves candidate visitor ids for the criteria, then
// reconstructs each candidate's journey concurrently. Candidates with zero
// touchpoints are discarded; a candidate that exceeds its per-candidate
// timeout is omitted, not retried. Output preserves candidate order.
func (s *JourneyService) BuildJourneys(ctx context.Context, criteria JourneyCriteria) ([]*attribution.Journey, error) {
	marker := s.perfTracker.StartOperation("journey:build")
	defer marker.Complete()

	candidates, err := s.resolveCandidates(ctx, criteria)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}
	if len(candidates) > s.maxCandidates {
		candidates = candidates[:s.maxCandidates]
	}
	marker.AddMetadata("candidates", len(candidates))

	s.logger.Journey().Debug("Resolved journey candidates", "count", len(candidates))

	results := make([]*attribution.Journey, len(candidates))
	var wg sync.WaitGroup
	for i, visitorID := range candidates {
		wg.Add(1)
		go func(slot int, visitorID string) {
			defer wg.Done()

			candidateCtx, cancel := context.WithTimeout(ctx, s.candidateTimeout)
			defer cancel()

			journey, err := s.buildJourney(candidateCtx, visitorID)
			if err != nil {
				// Slow or failed candidates are dropped from the batch.
				s.logger.Journey().Warn("Journey candidate omitted",
					"visitorId", visitorID,
					"error", err.Error())
				return
			}
			results[slot] = journey
		}(i, visitorID)
	}
	wg.Wait()

	journeys := make([]*attribution.Journey, 0, len(candidates))
	for _, journey := range results {
		// A journey requires at least one touchpoint to be meaningful.
		if journey != nil && len(journey.Touchpoints) > 0 {
			journeys = append(journeys, journey)
		}
	}

	s.logger.Journey().Info("Journeys reconstructed",
		"candidates", len(candidates),
		"journeys", len(journeys))
	return journeys, nil
}

// resolveCandidates maps criteria to an ordered set of candidate visitor ids.
func (s *JourneyService) resolveCandidates(ctx context.Context, criteria JourneyCriteria) ([]string, error) {
	switch {
	case criteria.VisitorID != "":
		return []string{criteria.VisitorID}, nil

	case criteria.EmailFragment != "":
		leads, err := s.leads.SearchByEmail(ctx, criteria.EmailFragment)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve candidates by email: %w", err)
		}
		sessionIDs := make([]string, 0, len(leads))
		for _, lead := range leads {
			sessionIDs = append(sessionIDs, lead.SessionID)
		}
		visitorIDs, err := s.touchpoints.VisitorIDsBySessionIDs(ctx, sessionIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve visitors for leads: %w", err)
		}
		return visitorIDs, nil

	case criteria.RecentLimit > 0:
		limit := criteria.RecentLimit
		if limit > s.maxCandidates {
			limit = s.maxCandidates
		}
		visitorIDs, err := s.touchpoints.RecentVisitorIDs(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve recent visitors: %w", err)
		}
		return visitorIDs, nil

	default:
		return nil, fmt.Errorf("journey criteria requires a visitor id, email fragment, or recent limit")
	}
}

// buildJourney reconstructs one visitor's journey. Its three reads run
// concurrently; they are independent and no transactional isolation is
// assumed across them, so a lead or payment written mid-query may or may not
// be observed (accepted eventual-consistency window).
func (s *JourneyService) buildJourney(ctx context.Context, visitorID string) (*attribution.Journey, error) {
	var (
		wg          sync.WaitGroup
		touchpoints []*attribution.Touchpoint
		lead        *attribution.Lead
		payments    []*attribution.Payment
		tpErr       error
		leadErr     error
		payErr      error
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		touchpoints, tpErr = s.touchpoints.FindByVisitorID(ctx, visitorID)
	}()

	go func() {
		defer wg.Done()
		sessionIDs, err := s.touchpoints.SessionIDsForVisitor(ctx, visitorID)
		if err != nil {
			leadErr = err
			return
		}
		lead, leadErr = s.leads.FindBySessionIDs(ctx, sessionIDs)
	}()

	go func() {
		defer wg.Done()
		payments, payErr = s.payments.FindByVisitorID(ctx, visitorID)
	}()

	wg.Wait()

	if tpErr != nil {
		return nil, fmt.Errorf("touchpoint fetch failed for visitor %s: %w", visitorID, tpErr)
	}
	if leadErr != nil {
		return nil, fmt.Errorf("lead fetch failed for visitor %s: %w", visitorID, leadErr)
	}
	if payErr != nil {
		return nil, fmt.Errorf("payment fetch failed for visitor %s: %w", visitorID, payErr)
	}

	journey := &attribution.Journey{
		VisitorID:   visitorID,
		Touchpoints: touchpoints,
		Lead:        lead,
		Payments:    payments,
	}
	for _, payment := range payments {
		journey.TotalRevenue += payment.Amount
	}
	return journey, nil
}
