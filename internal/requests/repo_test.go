package requests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/resqlink/resqlink-backend/pkg/db/models"
	"github.com/resqlink/resqlink-backend/pkg/enums"
	"github.com/resqlink/resqlink-backend/pkg/pagination"
)

func setupRequestsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	panicRequests := `
CREATE TABLE IF NOT EXISTS panic_requests (
  id TEXT PRIMARY KEY,
  group_id TEXT NOT NULL,
  firm_id TEXT NOT NULL,
  phone TEXT NOT NULL,
  service_type TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  lat REAL NOT NULL,
  lng REAL NOT NULL,
  address TEXT,
  description TEXT,
  escalated_at DATETIME,
  accepted_at DATETIME,
  completed_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	statusUpdates := `
CREATE TABLE IF NOT EXISTS request_status_updates (
  id TEXT PRIMARY KEY,
  request_id TEXT NOT NULL,
  old_status TEXT,
  new_status TEXT NOT NULL,
  message TEXT,
  actor TEXT NOT NULL,
  lat REAL,
  lng REAL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(panicRequests).Error)
	require.NoError(t, db.Exec(statusUpdates).Error)

	t.Cleanup(func() {
		db.Exec("DELETE FROM request_status_updates")
		db.Exec("DELETE FROM panic_requests")
	})

	return db
}

func seedPanicRequest(t *testing.T, db *gorm.DB, groupID, firmID uuid.UUID, status enums.RequestStatus, createdAt time.Time) *models.PanicRequest {
	t.Helper()

	request := &models.PanicRequest{
		ID:          uuid.New(),
		GroupID:     groupID,
		FirmID:      firmID,
		Phone:       "+27820000001",
		ServiceType: enums.ServiceTypeSecurity,
		Status:      status,
		Lat:         -33.92,
		Lng:         18.42,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	require.NoError(t, db.Create(request).Error)
	return request
}

func TestRepositoryListScopesAndPaginates(t *testing.T) {
	db := setupRequestsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	groupID := uuid.New()
	otherGroupID := uuid.New()
	firmID := uuid.New()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var seeded []*models.PanicRequest
	for i := 0; i < 5; i++ {
		seeded = append(seeded, seedPanicRequest(t, db, groupID, firmID, enums.RequestStatusPending, base.Add(time.Duration(i)*time.Minute)))
	}
	seedPanicRequest(t, db, otherGroupID, firmID, enums.RequestStatusPending, base.Add(time.Hour))

	page, cursor, err := repo.List(ctx, ListQuery{GroupID: &groupID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.NotNil(t, cursor)

	// Newest first within the group scope.
	assert.Equal(t, seeded[4].ID, page[0].ID)
	assert.Equal(t, seeded[2].ID, page[2].ID)

	rest, cursor, err := repo.List(ctx, ListQuery{GroupID: &groupID, Limit: 3, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Nil(t, cursor)
	assert.Equal(t, seeded[1].ID, rest[0].ID)
	assert.Equal(t, seeded[0].ID, rest[1].ID)

	firmPage, _, err := repo.List(ctx, ListQuery{FirmID: &firmID, Limit: pagination.MaxLimit})
	require.NoError(t, err)
	assert.Len(t, firmPage, 6)
}

func TestRepositoryListFiltersByStatus(t *testing.T) {
	db := setupRequestsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	groupID := uuid.New()
	firmID := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seedPanicRequest(t, db, groupID, firmID, enums.RequestStatusPending, base)
	accepted := seedPanicRequest(t, db, groupID, firmID, enums.RequestStatusAccepted, base.Add(time.Minute))

	status := enums.RequestStatusAccepted
	page, _, err := repo.List(ctx, ListQuery{GroupID: &groupID, Status: &status, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, accepted.ID, page[0].ID)
}

func TestRepositoryFindByIDWithLogOrdersAudit(t *testing.T) {
	db := setupRequestsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	request := seedPanicRequest(t, db, uuid.New(), uuid.New(), enums.RequestStatusPending, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	old := enums.RequestStatusPending
	first := &models.RequestStatusUpdate{
		ID:        uuid.New(),
		RequestID: request.ID,
		NewStatus: enums.RequestStatusPending,
		Actor:     "member:" + uuid.NewString(),
		CreatedAt: request.CreatedAt,
	}
	second := &models.RequestStatusUpdate{
		ID:        uuid.New(),
		RequestID: request.ID,
		OldStatus: &old,
		NewStatus: enums.RequestStatusAccepted,
		Actor:     "operator:" + uuid.NewString(),
		CreatedAt: request.CreatedAt.Add(time.Minute),
	}
	require.NoError(t, repo.AppendStatusUpdate(ctx, first))
	require.NoError(t, repo.AppendStatusUpdate(ctx, second))

	found, err := repo.FindByIDWithLog(ctx, request.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, found.StatusLog, 2)
	assert.Equal(t, enums.RequestStatusPending, found.StatusLog[0].NewStatus)
	assert.Equal(t, enums.RequestStatusAccepted, found.StatusLog[1].NewStatus)
}

func TestRepositoryFindByIDMissingReturnsNil(t *testing.T) {
	db := setupRequestsTestDB(t)
	repo := NewRepository(db)

	found, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepositoryStalePendingSweep(t *testing.T) {
	db := setupRequestsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	groupID := uuid.New()
	firmID := uuid.New()
	cutoff := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	stale := seedPanicRequest(t, db, groupID, firmID, enums.RequestStatusPending, cutoff.Add(-10*time.Minute))
	seedPanicRequest(t, db, groupID, firmID, enums.RequestStatusPending, cutoff.Add(time.Minute))
	seedPanicRequest(t, db, groupID, firmID, enums.RequestStatusAccepted, cutoff.Add(-10*time.Minute))

	pending, err := repo.ListStalePending(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stale.ID, pending[0].ID)

	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, repo.MarkEscalated(ctx, stale.ID, now))

	// Already escalated rows fall out of the sweep.
	pending, err = repo.ListStalePending(ctx, cutoff)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
