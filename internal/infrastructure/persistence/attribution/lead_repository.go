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

// SQLLeadRepository is the SQL-based implementation of the LeadRepository.
type SQLLeadRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLLeadRepository creates a new instance of the repository.
func NewSQLLeadRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLLeadRepository {
	return &SQLLeadRepository{
		db:     db,
		logger: logger,
	}
}

// Store saves a new Lead to the database.
func (r *SQLLeadRepository) Store(ctx context.Context, lead *attribution.Lead) error {
	const query = `
		INSERT INTO leads (id, session_id, email, name, created_at)
		VALUES (?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing lead insert", "id", lead.ID, "email", lead.Email)

	_, err := r.db.ExecContext(
		ctx,
		query,
		lead.ID,
		lead.SessionID,
		lead.Email,
		nullable(lead.Name),
		lead.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Database().Error("Lead insert failed", "error", err.Error(), "id", lead.ID, "email", lead.Email)
		return fmt.Errorf("failed to store lead: %w", err)
	}

	duration := time.Since(start)
	r.logger.Database().Info("Lead insert completed", "id", lead.ID, "email", lead.Email, "duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// FindBySessionIDs retrieves the authoritative Lead for a set of observed
// session ids. When multiple leads match, the earliest created_at wins, with
// id as the deterministic secondary order.
func (r *SQLLeadRepository) FindBySessionIDs(ctx context.Context, sessionIDs []string) (*attribution.Lead, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sessionIDs)), ",")
	query := fmt.Sprintf(`
		SELECT id, session_id, email, name, created_at
		FROM leads
		WHERE session_id IN (%s)
		ORDER BY created_at ASC, id ASC
		LIMIT 1`, placeholders)

	args := make([]any, len(sessionIDs))
	for i, sessionID := range sessionIDs {
		args[i] = sessionID
	}

	start := time.Now()
	r.logger.Database().Debug("Loading lead by session ids", "sessionCount", len(sessionIDs))

	row := r.db.QueryRowContext(ctx, query, args...)
	lead, err := r.scanLead(row)
	if err != nil {
		r.logger.Database().Error("Failed to load lead by session ids", "error", err.Error())
		return nil, err
	}

	duration := time.Since(start)
	if lead != nil {
		r.logger.Database().Info("Lead loaded by session ids", "leadId", lead.ID, "duration", duration)
	}
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return lead, nil
}

// SearchByEmail retrieves Leads whose email contains the given fragment.
func (r *SQLLeadRepository) SearchByEmail(ctx context.Context, fragment string) ([]*attribution.Lead, error) {
	const query = `
		SELECT id, session_id, email, name, created_at
		FROM leads
		WHERE email LIKE ?
		ORDER BY created_at ASC, id ASC`

	start := time.Now()
	r.logger.Database().Debug("Searching leads by email fragment")

	rows, err := r.db.QueryContext(ctx, query, "%"+escapeLike(fragment)+"%")
	if err != nil {
		r.logger.Database().Error("Failed to search leads by email", "error", err.Error())
		return nil, fmt.Errorf("failed to search leads: %w", err)
	}
	defer rows.Close()

	var leads []*attribution.Lead
	for rows.Next() {
		var lead attribution.Lead
		var name sql.NullString
		var createdAtStr string

		if err := rows.Scan(&lead.ID, &lead.SessionID, &lead.Email, &name, &createdAtStr); err != nil {
			return nil, err
		}
		lead.Name = name.String
		lead.CreatedAt, err = parseTimestamp(createdAtStr)
		if err != nil {
			return nil, err
		}
		leads = append(leads, &lead)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Lead email search completed", "count", len(leads), "duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return leads, nil
}

// scanLead is a helper function to scan a sql.Row into a Lead struct.
func (r *SQLLeadRepository) scanLead(row *sql.Row) (*attribution.Lead, error) {
	var lead attribution.Lead
	var name sql.NullString
	var createdAtStr string

	err := row.Scan(
		&lead.ID,
		&lead.SessionID,
		&lead.Email,
		&name,
		&createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	lead.Name = name.String

	lead.CreatedAt, err = parseTimestamp(createdAtStr)
	if err != nil {
		return nil, err
	}

	return &lead, nil
}

// escapeLike neutralizes LIKE wildcards in user-supplied search fragments.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}
