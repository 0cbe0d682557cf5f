// internal/medication/postgres_store_test.go
package medication

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"medreminder/internal/common/errors"
	"medreminder/internal/common/logger"
)

// ==========================
// Fake Feed
// ==========================

type fakeFeed struct {
	published []ChangeEvent
	err       error
}

func (f *fakeFeed) Publish(ctx context.Context, ev ChangeEvent) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, ev)
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	ch := make(chan ChangeEvent)
	close(ch)
	return ch, nil
}

// ==========================
// Helpers
// ==========================

func medicationRows() *sqlmock.Rows {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{
		"id", "user_id", "name", "dosage", "frequency", "start_date", "end_date", "notes",
		"reminder_times", "is_active", "push_enabled", "email_enabled", "sms_enabled",
		"whatsapp_enabled", "whatsapp_phone", "created_at", "updated_at",
	}).AddRow(
		"med-001", "user-001", "Metformin", "500mg", "twice daily", now, nil, "with food",
		"{09:00,21:00}", true, true, true, false, false,
		nil, now, now,
	)
}

// ==========================
// Read Tests
// ==========================

func TestPostgresStore_GetMedication(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM medications WHERE id = \$1`).
		WithArgs("med-001").
		WillReturnRows(medicationRows())

	store := NewPostgresStore(db, &fakeFeed{}, logger.NewTestLogger(t))
	med, err := store.GetMedication(context.Background(), "med-001")

	assert.NoError(t, err)
	assert.Equal(t, "med-001", med.ID)
	assert.Equal(t, "Metformin", med.Name)
	assert.Equal(t, []string{"09:00", "21:00"}, med.ReminderTimes)
	assert.True(t, med.Channels.Push)
	assert.True(t, med.Channels.Email)
	assert.False(t, med.Channels.SMS)
	assert.Nil(t, med.EndDate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMedication_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM medications WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	store := NewPostgresStore(db, &fakeFeed{}, logger.NewTestLogger(t))
	med, err := store.GetMedication(context.Background(), "missing")

	assert.Nil(t, med)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMedicationNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListActiveMedications(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM medications WHERE user_id = \$1 AND is_active = true`).
		WithArgs("user-001").
		WillReturnRows(medicationRows())

	store := NewPostgresStore(db, &fakeFeed{}, logger.NewTestLogger(t))
	meds, err := store.ListActiveMedications(context.Background(), "user-001")

	assert.NoError(t, err)
	assert.Len(t, meds, 1)
	assert.Equal(t, "med-001", meds[0].ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAllActive_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM medications WHERE is_active = true`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	store := NewPostgresStore(db, &fakeFeed{}, logger.NewTestLogger(t))
	meds, err := store.ListAllActive(context.Background())

	assert.NoError(t, err)
	assert.Empty(t, meds)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Write Tests
// ==========================

func TestPostgresStore_Upsert_PublishesChange(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO medications`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	feed := &fakeFeed{}
	store := NewPostgresStore(db, feed, logger.NewTestLogger(t))

	med := validMedication()
	err = store.Upsert(context.Background(), med)

	assert.NoError(t, err)
	assert.False(t, med.UpdatedAt.IsZero())
	assert.False(t, med.CreatedAt.IsZero())

	assert.Len(t, feed.published, 1)
	assert.Equal(t, ChangeUpsert, feed.published[0].Kind)
	assert.Equal(t, "med-001", feed.published[0].MedicationID)
	assert.NotNil(t, feed.published[0].Medication)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Upsert_InvalidRejectedBeforeWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	feed := &fakeFeed{}
	store := NewPostgresStore(db, feed, logger.NewTestLogger(t))

	med := validMedication()
	med.ReminderTimes = []string{"not-a-time"}
	err = store.Upsert(context.Background(), med)

	assert.True(t, errors.IsCode(err, errors.ErrCodeMedicationInvalid))
	assert.Empty(t, feed.published)

	// No SQL executed.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Upsert_FeedFailureIsNotFatal(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO medications`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	feed := &fakeFeed{err: assert.AnError}
	store := NewPostgresStore(db, feed, logger.NewTestLogger(t))

	err = store.Upsert(context.Background(), validMedication())

	// The write succeeded; the lost event only degrades freshness.
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete_PublishesChange(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`DELETE FROM medications WHERE id = \$1 RETURNING user_id`).
		WithArgs("med-001").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("user-001"))

	feed := &fakeFeed{}
	store := NewPostgresStore(db, feed, logger.NewTestLogger(t))

	err = store.Delete(context.Background(), "med-001")

	assert.NoError(t, err)
	assert.Len(t, feed.published, 1)
	assert.Equal(t, ChangeDelete, feed.published[0].Kind)
	assert.Equal(t, "user-001", feed.published[0].UserID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`DELETE FROM medications WHERE id = \$1 RETURNING user_id`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	feed := &fakeFeed{}
	store := NewPostgresStore(db, feed, logger.NewTestLogger(t))

	err = store.Delete(context.Background(), "missing")

	assert.True(t, errors.IsCode(err, errors.ErrCodeMedicationNotFound))
	assert.Empty(t, feed.published)

	assert.NoError(t, mock.ExpectationsWereMet())
}
