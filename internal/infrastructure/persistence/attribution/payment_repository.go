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

// SQLPaymentRepository is the SQL-based implementation of the PaymentRepository.
type SQLPaymentRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLPaymentRepository creates a new instance of the repository.
func NewSQLPaymentRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLPaymentRepository {
	return &SQLPaymentRepository{
		db:     db,
		logger: logger,
	}
}

// Store saves a new Payment to the database.
func (r *SQLPaymentRepository) Store(ctx context.Context, payment *attribution.Payment) error {
	const query = `
		INSERT INTO payments (id, visitor_id, amount, currency, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing payment insert",
		"id", payment.ID,
		"visitorId", payment.VisitorID,
		"amount", payment.Amount)

	_, err := r.db.ExecContext(
		ctx,
		query,
		payment.ID,
		payment.VisitorID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Database().Error("Payment insert failed",
			"error", err.Error(),
			"id", payment.ID,
			"visitorId", payment.VisitorID)
		return fmt.Errorf("failed to store payment: %w", err)
	}

	duration := time.Since(start)
	r.logger.Database().Info("Payment insert completed",
		"id", payment.ID,
		"visitorId", payment.VisitorID,
		"duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// FindByVisitorID retrieves all Payments for a visitor, oldest first.
func (r *SQLPaymentRepository) FindByVisitorID(ctx context.Context, visitorID string) ([]*attribution.Payment, error) {
	const query = `
		SELECT id, visitor_id, amount, currency, status, created_at
		FROM payments
		WHERE visitor_id = ?
		ORDER BY created_at ASC`

	start := time.Now()
	r.logger.Database().Debug("Loading payments by visitor", "visitorId", visitorID)

	rows, err := r.db.QueryContext(ctx, query, visitorID)
	if err != nil {
		r.logger.Database().Error("Failed to query payments", "error", err.Error(), "visitorId", visitorID)
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []*attribution.Payment
	for rows.Next() {
		var payment attribution.Payment
		var createdAtStr string

		if err := rows.Scan(
			&payment.ID,
			&payment.VisitorID,
			&payment.Amount,
			&payment.Currency,
			&payment.Status,
			&createdAtStr,
		); err != nil {
			return nil, err
		}

		payment.CreatedAt, err = parseTimestamp(createdAtStr)
		if err != nil {
			return nil, err
		}
		payments = append(payments, &payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Payments loaded",
		"visitorId", visitorID,
		"count", len(payments),
		"duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return payments, nil
}
