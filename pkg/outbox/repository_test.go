package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lfgraphics/khadimemillat-backend/pkg/db/models"
	"github.com/lfgraphics/khadimemillat-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:outbox_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.OutboxEvent{}))
	return db
}

func seedOutboxEvent(t *testing.T, db *gorm.DB, mutate func(*models.OutboxEvent)) models.OutboxEvent {
	t.Helper()

	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventReservationExpired,
		AggregateType: enums.AggregateReservation,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		CreatedAt:     time.Now().Add(-time.Minute),
	}
	if mutate != nil {
		mutate(&row)
	}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func TestFetchUnpublishedOrdersAndFilters(t *testing.T) {
	t.Parallel()

	db := setupOutboxTestDB(t)
	repo := NewRepository(db)

	older := seedOutboxEvent(t, db, func(row *models.OutboxEvent) {
		row.CreatedAt = time.Now().Add(-time.Hour)
	})
	newer := seedOutboxEvent(t, db, nil)
	seedOutboxEvent(t, db, func(row *models.OutboxEvent) {
		now := time.Now()
		row.PublishedAt = &now
	})
	seedOutboxEvent(t, db, func(row *models.OutboxEvent) {
		row.AttemptCount = 10
	})

	rows, err := repo.FetchUnpublished(10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, older.ID, rows[0].ID)
	assert.Equal(t, newer.ID, rows[1].ID)

	rows, err = repo.FetchUnpublished(1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, older.ID, rows[0].ID)
}

func TestMarkPublishedAndFailed(t *testing.T) {
	t.Parallel()

	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	row := seedOutboxEvent(t, db, nil)

	require.NoError(t, repo.MarkFailed(row.ID, errors.New("topic unavailable")))
	require.NoError(t, repo.MarkFailed(row.ID, errors.New("topic unavailable")))

	var failed models.OutboxEvent
	require.NoError(t, db.First(&failed, "id = ?", row.ID).Error)
	assert.Equal(t, 2, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "topic unavailable", *failed.LastError)
	assert.Nil(t, failed.PublishedAt)

	require.NoError(t, repo.MarkPublished(row.ID))

	var published models.OutboxEvent
	require.NoError(t, db.First(&published, "id = ?", row.ID).Error)
	require.NotNil(t, published.PublishedAt)

	rows, err := repo.FetchUnpublished(10, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeletePublishedBeforeKeepsPendingRows(t *testing.T) {
	t.Parallel()

	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	cutoff := time.Now().Add(-24 * time.Hour)

	stalePublished := seedOutboxEvent(t, db, func(row *models.OutboxEvent) {
		published := cutoff.Add(-time.Hour)
		row.CreatedAt = cutoff.Add(-2 * time.Hour)
		row.PublishedAt = &published
	})
	exhausted := seedOutboxEvent(t, db, func(row *models.OutboxEvent) {
		row.CreatedAt = cutoff.Add(-time.Hour)
		row.AttemptCount = 5
	})
	freshPublished := seedOutboxEvent(t, db, func(row *models.OutboxEvent) {
		published := time.Now()
		row.PublishedAt = &published
	})
	pending := seedOutboxEvent(t, db, func(row *models.OutboxEvent) {
		row.CreatedAt = cutoff.Add(-time.Hour)
		row.AttemptCount = 1
	})

	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, cutoff, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	ids := map[uuid.UUID]bool{}
	for _, row := range remaining {
		ids[row.ID] = true
	}
	assert.True(t, ids[freshPublished.ID])
	assert.True(t, ids[pending.ID])
	assert.False(t, ids[stalePublished.ID])
	assert.False(t, ids[exhausted.ID])
}

func TestExistsTxMatchesTypeAndAggregate(t *testing.T) {
	t.Parallel()

	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	row := seedOutboxEvent(t, db, func(r *models.OutboxEvent) {
		r.EventType = enums.EventSettlementRecorded
		r.AggregateType = enums.AggregateSettlement
	})

	exists, err := repo.ExistsTx(db, enums.EventSettlementRecorded, enums.AggregateSettlement, row.AggregateID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsTx(db, enums.EventSettlementRecorded, enums.AggregateSettlement, uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsTx(db, enums.EventReservationExpired, enums.AggregateSettlement, row.AggregateID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInsertRequiresTransaction(t *testing.T) {
	t.Parallel()

	repo := NewRepository(setupOutboxTestDB(t))

	err := repo.Insert(nil, models.OutboxEvent{ID: uuid.New()})
	require.Error(t, err)

	_, err = repo.ExistsTx(nil, enums.EventReservationExpired, enums.AggregateReservation, uuid.New())
	require.Error(t, err)
}
