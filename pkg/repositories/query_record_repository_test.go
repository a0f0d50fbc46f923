//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yyup/kindergarten-engine/pkg/apperrors"
	"github.com/yyup/kindergarten-engine/pkg/database"
	"github.com/yyup/kindergarten-engine/pkg/models"
	"github.com/yyup/kindergarten-engine/pkg/testhelpers"
)

var testKindergartenID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// tenantContext creates a context with tenant scope and returns a cleanup function.
func tenantContext(t *testing.T, engineDB *testhelpers.EngineDB) (context.Context, func()) {
	t.Helper()

	ctx := context.Background()
	scope, err := engineDB.DB.WithTenant(ctx, testKindergartenID)
	if err != nil {
		t.Fatalf("Failed to create tenant scope: %v", err)
	}

	return database.SetTenantScope(ctx, scope), func() { scope.Close() }
}

func newTestRecord(userID, queryType string) *models.QueryRecord {
	sql := "SELECT COUNT(*) FROM students"
	response := "There are 42 students."
	return &models.QueryRecord{
		UserID:         userID,
		QueryType:      queryType,
		QueryText:      "How many students are there?",
		NormalizedText: "how many students are there?",
		Level:          models.LevelComplex,
		Success:        true,
		SQL:            &sql,
		Response:       &response,
		TokensUsed:     120,
		DurationMs:     450,
	}
}

func TestQueryRecordRepository_CreateAndGet(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewQueryRecordRepository()

	ctx, cleanup := tenantContext(t, engineDB)
	defer cleanup()

	record := newTestRecord("user-create", models.QueryTypeData)
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if record.ID == uuid.Nil {
		t.Fatal("expected record ID to be assigned")
	}

	got, err := repo.GetByID(ctx, record.ID, "user-create")
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if got.QueryText != record.QueryText {
		t.Errorf("QueryText = %q, want %q", got.QueryText, record.QueryText)
	}
	if got.SQL == nil || *got.SQL != *record.SQL {
		t.Error("SQL not round-tripped")
	}
	if got.Level != models.LevelComplex {
		t.Errorf("Level = %q, want %q", got.Level, models.LevelComplex)
	}
}

func TestQueryRecordRepository_GetByIDScopesToUser(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewQueryRecordRepository()

	ctx, cleanup := tenantContext(t, engineDB)
	defer cleanup()

	record := newTestRecord("user-owner", models.QueryTypeChat)
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	_, err := repo.GetByID(ctx, record.ID, "user-other")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other user, got %v", err)
	}
}

func TestQueryRecordRepository_ListFiltersAndPages(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewQueryRecordRepository()

	ctx, cleanup := tenantContext(t, engineDB)
	defer cleanup()

	userID := "user-list-" + uuid.NewString()
	for i := 0; i < 3; i++ {
		if err := repo.Create(ctx, newTestRecord(userID, models.QueryTypeData)); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}
	if err := repo.Create(ctx, newTestRecord(userID, models.QueryTypeChat)); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	records, total, err := repo.List(ctx, models.QueryHistoryFilters{UserID: userID})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if total != 4 || len(records) != 4 {
		t.Errorf("expected 4 records, got total=%d len=%d", total, len(records))
	}

	records, total, err = repo.List(ctx, models.QueryHistoryFilters{UserID: userID, QueryType: models.QueryTypeData})
	if err != nil {
		t.Fatalf("List() with type filter error: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 data records, got %d", total)
	}

	records, total, err = repo.List(ctx, models.QueryHistoryFilters{UserID: userID, Page: 2, PageSize: 3})
	if err != nil {
		t.Fatalf("List() page 2 error: %v", err)
	}
	if total != 4 || len(records) != 1 {
		t.Errorf("expected 1 record on page 2 of 4, got total=%d len=%d", total, len(records))
	}
}

func TestQueryRecordRepository_Statistics(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	repo := NewQueryRecordRepository()

	ctx, cleanup := tenantContext(t, engineDB)
	defer cleanup()

	userID := "user-stats-" + uuid.NewString()

	data := newTestRecord(userID, models.QueryTypeData)
	if err := repo.Create(ctx, data); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	chat := newTestRecord(userID, models.QueryTypeChat)
	chat.CacheServed = true
	if err := repo.Create(ctx, chat); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	fallback := newTestRecord(userID, models.QueryTypeChat)
	fallback.IsFallback = true
	if err := repo.Create(ctx, fallback); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	stats, err := repo.Statistics(ctx, userID)
	if err != nil {
		t.Fatalf("Statistics() error: %v", err)
	}
	if stats.TotalQueries != 3 || stats.DataQueries != 1 || stats.ChatQueries != 2 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.CacheHits != 1 || stats.Fallbacks != 1 {
		t.Errorf("unexpected cache/fallback counts: %+v", stats)
	}
	if stats.AvgDurationMs <= 0 {
		t.Errorf("expected positive average duration, got %f", stats.AvgDurationMs)
	}
}

func TestQueryRecordRepository_RequiresTenantScope(t *testing.T) {
	repo := NewQueryRecordRepository()

	if err := repo.Create(context.Background(), newTestRecord("u", models.QueryTypeChat)); err == nil {
		t.Error("expected error without tenant scope")
	}
}
