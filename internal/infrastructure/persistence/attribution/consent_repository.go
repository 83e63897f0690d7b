package attribution

import (
	"context"
	"fmt"
	"time"

	"github.com/revtrace/revtrace-go/internal/domain/attribution"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/persistence/database"
	"github.com/revtrace/revtrace-go/pkg/config"
)

// SQLConsentRepository is the SQL-based implementation of the ConsentRepository.
// Consent records are an append-only log; the latest row per visitor wins.
type SQLConsentRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLConsentRepository creates a new instance of the repository.
func NewSQLConsentRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLConsentRepository {
	return &SQLConsentRepository{
		db:     db,
		logger: logger,
	}
}

// Store saves a new ConsentRecord to the database.
func (r *SQLConsentRepository) Store(ctx context.Context, record *attribution.ConsentRecord) error {
	const query = `
		INSERT INTO consents (id, visitor_id, consent_given, consent_analytics, consent_marketing, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing consent insert",
		"id", record.ID,
		"visitorId", record.VisitorID,
		"consentGiven", record.ConsentGiven)

	_, err := r.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.VisitorID,
		record.ConsentGiven,
		record.ConsentAnalytics,
		record.ConsentMarketing,
		record.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Database().Error("Consent insert failed",
			"error", err.Error(),
			"id", record.ID,
			"visitorId", record.VisitorID)
		return fmt.Errorf("failed to store consent record: %w", err)
	}

	duration := time.Since(start)
	r.logger.Database().Info("Consent insert completed",
		"id", record.ID,
		"visitorId", record.VisitorID,
		"duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}
