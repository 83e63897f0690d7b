package attribution

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/revtrace/revtrace-go/internal/domain/attribution"
	"github.com/revtrace/revtrace-go/internal/infrastructure/observability/logging"
	"github.com/revtrace/revtrace-go/internal/infrastructure/persistence/database"
)

func setupDB(t *testing.T) (*database.DB, *logging.ChanneledLogger) {
	t.Helper()

	db, err := database.NewConnection("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	// One connection keeps every query on the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := database.NewTableCreator().CreateSchema(db.DB); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: true,
		DefaultLevel:    slog.LevelError,
		ChannelLevels:   make(map[logging.Channel]slog.Level),
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return db, logger
}

func ts(hour, min int) time.Time {
	return time.Date(2026, 3, 1, hour, min, 0, 0, time.UTC)
}

func storeTouchpoint(t *testing.T, repo *SQLTouchpointRepository, id, visitorID, sessionID string, created time.Time) {
	t.Helper()
	err := repo.Store(context.Background(), &attribution.Touchpoint{
		ID:        id,
		VisitorID: visitorID,
		SessionID: sessionID,
		EventType: "page_view",
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("failed to store touchpoint %s: %v", id, err)
	}
}

func TestTouchpointFindByVisitorIDAscending(t *testing.T) {
	db, logger := setupDB(t)
	repo := NewSQLTouchpointRepository(db, logger)
	ctx := context.Background()

	// Inserted out of order; reads must come back ascending.
	storeTouchpoint(t, repo, "t2", "v1", "s1", ts(10, 5))
	storeTouchpoint(t, repo, "t1", "v1", "s1", ts(10, 0))
	storeTouchpoint(t, repo, "t3", "v2", "s2", ts(10, 1))

	got, err := repo.FindByVisitorID(ctx, "v1")
	if err != nil {
		t.Fatalf("FindByVisitorID() failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("got %+v, want [t1 t2]", got)
	}
	if !got[0].CreatedAt.Equal(ts(10, 0)) {
		t.Errorf("round-tripped timestamp = %v, want %v", got[0].CreatedAt, ts(10, 0))
	}
}

func TestTouchpointNullableFieldsRoundTrip(t *testing.T) {
	db, logger := setupDB(t)
	repo := NewSQLTouchpointRepository(db, logger)
	ctx := context.Background()

	sourceID := "src-1"
	full := &attribution.Touchpoint{
		ID:          "t-full",
		VisitorID:   "v1",
		SessionID:   "s1",
		EventType:   "page_view",
		PageURL:     "https://app.example.com/",
		Referrer:    "https://google.com/",
		UTMSource:   "newsletter",
		UTMMedium:   "email",
		UTMCampaign: "spring",
		DeviceType:  "desktop",
		SourceID:    &sourceID,
		CreatedAt:   ts(10, 0),
	}
	if err := repo.Store(ctx, full); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}
	storeTouchpoint(t, repo, "t-bare", "v1", "s1", ts(10, 1))

	got, err := repo.FindByVisitorID(ctx, "v1")
	if err != nil {
		t.Fatalf("FindByVisitorID() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d touchpoints, want 2", len(got))
	}
	if got[0].UTMSource != "newsletter" || got[0].SourceID == nil || *got[0].SourceID != "src-1" {
		t.Errorf("full touchpoint lost fields: %+v", got[0])
	}
	if got[1].PageURL != "" || got[1].SourceID != nil {
		t.Errorf("bare touchpoint grew fields: %+v", got[1])
	}
}

func TestTouchpointSessionIDsForVisitor(t *testing.T) {
	db, logger := setupDB(t)
	repo := NewSQLTouchpointRepository(db, logger)

	storeTouchpoint(t, repo, "t1", "v1", "s1", ts(10, 0))
	storeTouchpoint(t, repo, "t2", "v1", "s1", ts(10, 1))
	storeTouchpoint(t, repo, "t3", "v1", "s2", ts(10, 2))
	storeTouchpoint(t, repo, "t4", "v2", "s3", ts(10, 3))

	got, err := repo.SessionIDsForVisitor(context.Background(), "v1")
	if err != nil {
		t.Fatalf("SessionIDsForVisitor() failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %v, want two distinct session ids", got)
	}
}

func TestTouchpointVisitorIDsBySessionIDs(t *testing.T) {
	db, logger := setupDB(t)
	repo := NewSQLTouchpointRepository(db, logger)
	ctx := context.Background()

	storeTouchpoint(t, repo, "t1", "v1", "s1", ts(10, 0))
	storeTouchpoint(t, repo, "t2", "v2", "s2", ts(10, 1))
	storeTouchpoint(t, repo, "t3", "v3", "s3", ts(10, 2))

	got, err := repo.VisitorIDsBySessionIDs(ctx, []string{"s1", "s2"})
	if err != nil {
		t.Fatalf("VisitorIDsBySessionIDs() failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %v, want [v1 v2]", got)
	}

	empty, err := repo.VisitorIDsBySessionIDs(ctx, nil)
	if err != nil || empty != nil {
		t.Errorf("empty input returned %v, %v; want nil, nil", empty, err)
	}
}

func TestTouchpointRecentVisitorIDs(t *testing.T) {
	db, logger := setupDB(t)
	repo := NewSQLTouchpointRepository(db, logger)
	ctx := context.Background()

	storeTouchpoint(t, repo, "t1", "v-old", "s1", ts(9, 0))
	storeTouchpoint(t, repo, "t2", "v-new", "s2", ts(11, 0))
	storeTouchpoint(t, repo, "t3", "v-old", "s1", ts(9, 30))

	got, err := repo.RecentVisitorIDs(ctx, 10)
	if err != nil {
		t.Fatalf("RecentVisitorIDs() failed: %v", err)
	}
	if len(got) != 2 || got[0] != "v-new" || got[1] != "v-old" {
		t.Errorf("got %v, want [v-new v-old]", got)
	}

	limited, err := repo.RecentVisitorIDs(ctx, 1)
	if err != nil {
		t.Fatalf("RecentVisitorIDs() failed: %v", err)
	}
	if len(limited) != 1 || limited[0] != "v-new" {
		t.Errorf("got %v, want [v-new]", limited)
	}
}

func TestLeadFindBySessionIDsTieBreak(t *testing.T) {
	db, logger := setupDB(t)
	repo := NewSQLLeadRepository(db, logger)
	ctx := context.Background()

	leads := []*attribution.Lead{
		{ID: "l-b", SessionID: "s1", Email: "b@example.com", CreatedAt: ts(10, 0)},
		{ID: "l-a", SessionID: "s2", Email: "a@example.com", CreatedAt: ts(10, 0)},
		{ID: "l-later", SessionID: "s1", Email: "later@example.com", CreatedAt: ts(11, 0)},
	}
	for _, lead := range leads {
		if err := repo.Store(ctx, lead); err != nil {
			t.Fatalf("failed to store lead %s: %v", lead.ID, err)
		}
	}

	// Equal created_at resolves on id; earlier created_at always wins.
	got, err := repo.FindBySessionIDs(ctx, []string{"s1", "s2"})
	if err != nil {
		t.Fatalf("FindBySessionIDs() failed: %v", err)
	}
	if got == nil || got.ID != "l-a" {
		t.Errorf("got %+v, want l-a", got)
	}

	none, err := repo.FindBySessionIDs(ctx, []string{"s-unknown"})
	if err != nil || none != nil {
		t.Errorf("unknown session returned %+v, %v; want nil, nil", none, err)
	}

	empty, err := repo.FindBySessionIDs(ctx, nil)
	if err != nil || empty != nil {
		t.Errorf("empty input returned %+v, %v; want nil, nil", empty, err)
	}
}

func TestLeadSearchByEmail(t *testing.T) {
	db, logger := setupDB(t)
	repo := NewSQLLeadRepository(db, logger)
	ctx := context.Background()

	repo.Store(ctx, &attribution.Lead{ID: "l1", SessionID: "s1", Email: "ada@example.com", Name: "Ada", CreatedAt: ts(10, 0)})
	repo.Store(ctx, &attribution.Lead{ID: "l2", SessionID: "s2", Email: "grace@other.org", CreatedAt: ts(10, 1)})

	got, err := repo.SearchByEmail(ctx, "ada")
	if err != nil {
		t.Fatalf("SearchByEmail() failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "l1" || got[0].Name != "Ada" {
		t.Errorf("got %+v, want [l1]", got)
	}

	// LIKE wildcards in the fragment are neutralized, not interpreted.
	wild, err := repo.SearchByEmail(ctx, "%ada%")
	if err != nil {
		t.Fatalf("SearchByEmail() failed: %v", err)
	}
	if len(wild) != 1 || wild[0].ID != "l1" {
		t.Errorf("wildcard fragment returned %+v, want [l1]", wild)
	}
}

func TestPaymentStoreAndFindAscending(t *testing.T) {
	db, logger := setupDB(t)
	repo := NewSQLPaymentRepository(db, logger)
	ctx := context.Background()

	payments := []*attribution.Payment{
		{ID: "p2", VisitorID: "v1", Amount: 30, Currency: "USD", Status: "succeeded", CreatedAt: ts(10, 20)},
		{ID: "p1", VisitorID: "v1", Amount: 50, Currency: "USD", Status: "succeeded", CreatedAt: ts(10, 10)},
		{ID: "p3", VisitorID: "v2", Amount: 99, Currency: "EUR", Status: "pending", CreatedAt: ts(10, 15)},
	}
	for _, p := range payments {
		if err := repo.Store(ctx, p); err != nil {
			t.Fatalf("failed to store payment %s: %v", p.ID, err)
		}
	}

	got, err := repo.FindByVisitorID(ctx, "v1")
	if err != nil {
		t.Fatalf("FindByVisitorID() failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "p1" || got[1].ID != "p2" {
		t.Errorf("got %+v, want [p1 p2]", got)
	}
	if got[0].Amount != 50 || got[0].Currency != "USD" {
		t.Errorf("payment fields lost: %+v", got[0])
	}
}

func TestSourceResolveFromUTMFindOrCreate(t *testing.T) {
	db, logger := setupDB(t)
	repo := NewSQLSourceRepository(db, logger)
	ctx := context.Background()

	first, err := repo.ResolveFromUTM(ctx, "newsletter", "email", "spring")
	if err != nil {
		t.Fatalf("ResolveFromUTM() failed: %v", err)
	}
	if first.Name != "newsletter / email" {
		t.Errorf("source name = %q", first.Name)
	}

	// Same combination resolves to the same row.
	again, err := repo.ResolveFromUTM(ctx, "newsletter", "email", "spring")
	if err != nil {
		t.Fatalf("ResolveFromUTM() failed: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("second resolve created a new source: %q vs %q", again.ID, first.ID)
	}

	// A different campaign is a distinct source.
	other, err := repo.ResolveFromUTM(ctx, "newsletter", "email", "autumn")
	if err != nil {
		t.Fatalf("ResolveFromUTM() failed: %v", err)
	}
	if other.ID == first.ID {
		t.Error("distinct campaign reused the same source row")
	}
}

func TestSourceResolveFromUTMDirect(t *testing.T) {
	db, logger := setupDB(t)
	repo := NewSQLSourceRepository(db, logger)

	got, err := repo.ResolveFromUTM(context.Background(), "", "", "")
	if err != nil {
		t.Fatalf("ResolveFromUTM() failed: %v", err)
	}
	if got.Name != "(direct)" {
		t.Errorf("untagged traffic source name = %q, want (direct)", got.Name)
	}
}

func TestConsentStore(t *testing.T) {
	db, logger := setupDB(t)
	repo := NewSQLConsentRepository(db, logger)

	err := repo.Store(context.Background(), &attribution.ConsentRecord{
		ID:               "c1",
		VisitorID:        "v1",
		ConsentGiven:     true,
		ConsentAnalytics: true,
		ConsentMarketing: false,
		CreatedAt:        ts(10, 0),
	})
	if err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM consents WHERE visitor_id = 'v1'`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("consent rows = %d, want 1", count)
	}
}
