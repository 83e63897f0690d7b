package attribution

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/revtrace/revtrace-go/internal/domain/attribution"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/persistence/database"
	"github.com/revtrace/revtrace-go/internal/infrastructure/security"
)

// SQLSourceRepository is the SQL-based implementation of the SourceRepository.
type SQLSourceRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLSourceRepository creates a new instance of the repository.
func NewSQLSourceRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLSourceRepository {
	return &SQLSourceRepository{
		db:     db,
		logger: logger,
	}
}

// ResolveFromUTM finds or creates the named Source for a UTM combination.
// Touchpoints with no UTM parameters resolve to the "(direct)" source.
func (r *SQLSourceRepository) ResolveFromUTM(ctx context.Context, utmSource, utmMedium, utmCampaign string) (*attribution.Source, error) {
	name := sourceName(utmSource, utmMedium)

	const findQuery = `
		SELECT id, name, utm_source, utm_medium, utm_campaign, created_at
		FROM sources
		WHERE COALESCE(utm_source, '') = ? AND COALESCE(utm_medium, '') = ? AND COALESCE(utm_campaign, '') = ?
		LIMIT 1`

	row := r.db.QueryRowContext(ctx, findQuery, utmSource, utmMedium, utmCampaign)
	source, err := r.scanSource(row)
	if err != nil {
		return nil, err
	}
	if source != nil {
		return source, nil
	}

	source = &attribution.Source{
		ID:          security.GenerateULID(),
		Name:        name,
		UTMSource:   utmSource,
		UTMMedium:   utmMedium,
		UTMCampaign: utmCampaign,
		CreatedAt:   time.Now().UTC(),
	}

	const insertQuery = `
		INSERT INTO sources (id, name, utm_source, utm_medium, utm_campaign, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(
		ctx,
		insertQuery,
		source.ID,
		source.Name,
		nullable(source.UTMSource),
		nullable(source.UTMMedium),
		nullable(source.UTMCampaign),
		source.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		// A concurrent insert may have won the unique constraint race; re-read.
		row := r.db.QueryRowContext(ctx, findQuery, utmSource, utmMedium, utmCampaign)
		if existing, scanErr := r.scanSource(row); scanErr == nil && existing != nil {
			return existing, nil
		}
		r.logger.Database().Error("Source insert failed", "error", err.Error(), "name", name)
		return nil, fmt.Errorf("failed to store source: %w", err)
	}

	r.logger.Database().Info("Source created", "sourceId", source.ID, "name", name)
	return source, nil
}

// scanSource is a helper function to scan a sql.Row into a Source struct.
func (r *SQLSourceRepository) scanSource(row *sql.Row) (*attribution.Source, error) {
	var source attribution.Source
	var utmSource, utmMedium, utmCampaign sql.NullString
	var createdAtStr string

	err := row.Scan(
		&source.ID,
		&source.Name,
		&utmSource,
		&utmMedium,
		&utmCampaign,
		&createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	source.UTMSource = utmSource.String
	source.UTMMedium = utmMedium.String
	source.UTMCampaign = utmCampaign.String

	source.CreatedAt, err = parseTimestamp(createdAtStr)
	if err != nil {
		return nil, err
	}

	return &source, nil
}

// sourceName derives the display name for a source from its UTM parameters.
func sourceName(utmSource, utmMedium string) string {
	if utmSource == "" {
		return "(direct)"
	}
	if utmMedium == "" {
		return utmSource
	}
	return utmSource + " / " + utmMedium
}
