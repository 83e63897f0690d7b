// Package attribution provides the concrete SQL-based implementations of
// the attribution domain repositories (Touchpoint, Lead, Payment, Source).
package attribution

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/revtrace/revtrace-go/internal/domain/attribution"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/persistence/database"
	"github.com/revtrace/revtrace-go/pkg/config"
)

// SQLTouchpointRepository is the SQL-based implementation of the TouchpointRepository.
type SQLTouchpointRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLTouchpointRepository creates a new instance of the repository.
func NewSQLTouchpointRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLTouchpointRepository {
	return &SQLTouchpointRepository{
		db:     db,
		logger: logger,
	}
}

// Store saves a new Touchpoint to the database. Touchpoints are append-only.
func (r *SQLTouchpointRepository) Store(ctx context.Context, tp *attribution.Touchpoint) error {
	const query = `
		INSERT INTO touchpoints (id, visitor_id, session_id, event_type, page_url, referrer,
		                         utm_source, utm_medium, utm_campaign, utm_term, utm_content,
		                         device_type, source_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing touchpoint insert",
		"touchpointId", tp.ID,
		"visitorId", tp.VisitorID,
		"eventType", tp.EventType)

	_, err := r.db.ExecContext(
		ctx,
		query,
		tp.ID,
		tp.VisitorID,
		tp.SessionID,
		tp.EventType,
		nullable(tp.PageURL),
		nullable(tp.Referrer),
		nullable(tp.UTMSource),
		nullable(tp.UTMMedium),
		nullable(tp.UTMCampaign),
		nullable(tp.UTMTerm),
		nullable(tp.UTMContent),
		nullable(tp.DeviceType),
		tp.SourceID,
		tp.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Database().Error("Touchpoint insert failed",
			"error", err.Error(),
			"touchpointId", tp.ID,
			"visitorId", tp.VisitorID,
			"eventType", tp.EventType)
		return fmt.Errorf("failed to store touchpoint: %w", err)
	}

	duration := time.Since(start)
	r.logger.Database().Info("Touchpoint insert completed",
		"touchpointId", tp.ID,
		"visitorId", tp.VisitorID,
		"eventType", tp.EventType,
		"duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// FindByVisitorID retrieves all Touchpoints for a visitor, oldest first.
func (r *SQLTouchpointRepository) FindByVisitorID(ctx context.Context, visitorID string) ([]*attribution.Touchpoint, error) {
	const query = `
		SELECT id, visitor_id, session_id, event_type, page_url, referrer,
		       utm_source, utm_medium, utm_campaign, utm_term, utm_content,
		       device_type, source_id, created_at
		FROM touchpoints
		WHERE visitor_id = ?
		ORDER BY created_at ASC`

	start := time.Now()
	r.logger.Database().Debug("Loading touchpoints by visitor", "visitorId", visitorID)

	rows, err := r.db.QueryContext(ctx, query, visitorID)
	if err != nil {
		r.logger.Database().Error("Failed to query touchpoints", "error", err.Error(), "visitorId", visitorID)
		return nil, fmt.Errorf("failed to query touchpoints: %w", err)
	}
	defer rows.Close()

	var touchpoints []*attribution.Touchpoint
	for rows.Next() {
		tp, err := r.scanTouchpoint(rows)
		if err != nil {
			return nil, err
		}
		touchpoints = append(touchpoints, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Touchpoints loaded",
		"visitorId", visitorID,
		"count", len(touchpoints),
		"duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return touchpoints, nil
}

// SessionIDsForVisitor retrieves the distinct session ids observed for a visitor.
func (r *SQLTouchpointRepository) SessionIDsForVisitor(ctx context.Context, visitorID string) ([]string, error) {
	const query = `
		SELECT DISTINCT session_id
		FROM touchpoints
		WHERE visitor_id = ?`

	rows, err := r.db.QueryContext(ctx, query, visitorID)
	if err != nil {
		r.logger.Database().Error("Failed to query session ids", "error", err.Error(), "visitorId", visitorID)
		return nil, fmt.Errorf("failed to query session ids: %w", err)
	}
	defer rows.Close()

	var sessionIDs []string
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, err
		}
		sessionIDs = append(sessionIDs, sessionID)
	}
	return sessionIDs, rows.Err()
}

// VisitorIDsBySessionIDs retrieves the distinct visitor ids that have touched
// any of the given session ids.
func (r *SQLTouchpointRepository) VisitorIDsBySessionIDs(ctx context.Context, sessionIDs []string) ([]string, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sessionIDs)), ",")
	query := fmt.Sprintf(`
		SELECT DISTINCT visitor_id
		FROM touchpoints
		WHERE session_id IN (%s)`, placeholders)

	args := make([]any, len(sessionIDs))
	for i, sessionID := range sessionIDs {
		args[i] = sessionID
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Database().Error("Failed to query visitors by session ids", "error", err.Error())
		return nil, fmt.Errorf("failed to query visitors by session ids: %w", err)
	}
	defer rows.Close()

	var visitorIDs []string
	for rows.Next() {
		var visitorID string
		if err := rows.Scan(&visitorID); err != nil {
			return nil, err
		}
		visitorIDs = append(visitorIDs, visitorID)
	}
	return visitorIDs, rows.Err()
}

// RecentVisitorIDs retrieves the most recently active distinct visitor ids,
// newest activity first, bounded by limit.
func (r *SQLTouchpointRepository) RecentVisitorIDs(ctx context.Context, limit int) ([]string, error) {
	const query = `
		SELECT visitor_id, MAX(created_at) AS last_seen
		FROM touchpoints
		GROUP BY visitor_id
		ORDER BY last_seen DESC
		LIMIT ?`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Database().Error("Failed to query recent visitors", "error", err.Error(), "limit", limit)
		return nil, fmt.Errorf("failed to query recent visitors: %w", err)
	}
	defer rows.Close()

	var visitorIDs []string
	for rows.Next() {
		var visitorID, lastSeen string
		if err := rows.Scan(&visitorID, &lastSeen); err != nil {
			return nil, err
		}
		visitorIDs = append(visitorIDs, visitorID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return visitorIDs, nil
}

// scanTouchpoint is a helper function to scan from sql.Rows into a Touchpoint struct.
func (r *SQLTouchpointRepository) scanTouchpoint(rows *sql.Rows) (*attribution.Touchpoint, error) {
	var tp attribution.Touchpoint
	var pageURL, referrer, utmSource, utmMedium, utmCampaign, utmTerm, utmContent, deviceType, sourceID sql.NullString
	var createdAtStr string

	err := rows.Scan(
		&tp.ID,
		&tp.VisitorID,
		&tp.SessionID,
		&tp.EventType,
		&pageURL,
		&referrer,
		&utmSource,
		&utmMedium,
		&utmCampaign,
		&utmTerm,
		&utmContent,
		&deviceType,
		&sourceID,
		&createdAtStr,
	)
	if err != nil {
		return nil, err
	}

	// Handle nullable fields
	tp.PageURL = pageURL.String
	tp.Referrer = referrer.String
	tp.UTMSource = utmSource.String
	tp.UTMMedium = utmMedium.String
	tp.UTMCampaign = utmCampaign.String
	tp.UTMTerm = utmTerm.String
	tp.UTMContent = utmContent.String
	tp.DeviceType = deviceType.String
	if sourceID.Valid {
		tp.SourceID = &sourceID.String
	}

	tp.CreatedAt, err = parseTimestamp(createdAtStr)
	if err != nil {
		return nil, err
	}

	return &tp, nil
}

// nullable maps an empty string to NULL for insert parameters.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// parseTimestamp handles the timestamp formats found in sqlite and libsql rows.
func parseTimestamp(timestampStr string) (time.Time, error) {
	// Try RFC3339 first
	if t, err := time.Parse(time.RFC3339, timestampStr); err == nil {
		return t, nil
	}

	// Try SQLite format
	if t, err := time.Parse("2006-01-02 15:04:05", timestampStr); err == nil {
		return t, nil
	}

	// Try ISO format with milliseconds
	if t, err := time.Parse("2006-01-02T15:04:05.000Z", timestampStr); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp format: %s", timestampStr)
}
