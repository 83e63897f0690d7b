// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/revtrace/revtrace-go/internal/application/services"
	"github.com/revtrace/revtrace-go/internal/domain/attribution"
	"github.com/revtrace/revtrace-go/internal/infrastructure/email"
	"github.com/revtrace/revtrace-go/internal/infrastructure/messaging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/performance"
	persistence "github.com/revtrace/revtrace-go/internal/infrastructure/persistence/attribution"
	"github.com/revtrace/revtrace-go/internal/infrastructure/persistence/database"
	"github.com/revtrace/revtrace-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application services
	IngestService  *services.IngestService
	JourneyService *services.JourneyService

	// Repositories
	TouchpointRepo attribution.TouchpointRepository
	LeadRepo       attribution.LeadRepository
	PaymentRepo    attribution.PaymentRepository
	SourceRepo     attribution.SourceRepository
	ConsentRepo    attribution.ConsentRepository

	// Infrastructure
	DB          *database.DB
	Logger      *logging.ChanneledLogger
	PerfTracker *performance.Tracker
	Broadcaster *messaging.Broadcaster
	Email       email.Service
}

// NewContainer creates and wires all singleton services
func NewContainer(db *database.DB, logger *logging.ChanneledLogger) *Container {
	perfTracker := performance.NewTracker()
	broadcaster := messaging.NewBroadcaster(logger)

	touchpointRepo := persistence.NewSQLTouchpointRepository(db, logger)
	leadRepo := persistence.NewSQLLeadRepository(db, logger)
	paymentRepo := persistence.NewSQLPaymentRepository(db, logger)
	sourceRepo := persistence.NewSQLSourceRepository(db, logger)
	consentRepo := persistence.NewSQLConsentRepository(db, logger)

	var emailService email.Service
	if config.LeadNotifyEnabled {
		svc, err := email.NewService(config.LeadNotifyEmail)
		if err != nil {
			logger.Startup().Warn("Lead notifications disabled", "error", err.Error())
		} else {
			emailService = svc
		}
	}

	ingestService := services.NewIngestService(
		touchpointRepo,
		leadRepo,
		paymentRepo,
		sourceRepo,
		consentRepo,
		broadcaster,
		emailService,
		logger,
		perfTracker,
	)

	journeyService := services.NewJourneyService(
		touchpointRepo,
		leadRepo,
		paymentRepo,
		logger,
		perfTracker,
	)

	return &Container{
		IngestService:  ingestService,
		JourneyService: journeyService,

		TouchpointRepo: touchpointRepo,
		LeadRepo:       leadRepo,
		PaymentRepo:    paymentRepo,
		SourceRepo:     sourceRepo,
		ConsentRepo:    consentRepo,

		DB:          db,
		Logger:      logger,
		PerfTracker: perfTracker,
		Broadcaster: broadcaster,
		Email:       emailService,
	}
}
