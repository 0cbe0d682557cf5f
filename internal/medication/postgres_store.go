// internal/medication/postgres_store.go
package medication

import (
	"context"
	"database/sql"
	"time"

	"medreminder/internal/common/errors"
	"medreminder/internal/common/logger"

	"github.com/lib/pq"
)

const medicationColumns = `id, user_id, name, dosage, frequency, start_date, end_date, notes,
	reminder_times, is_active, push_enabled, email_enabled, sms_enabled, whatsapp_enabled,
	whatsapp_phone, created_at, updated_at`

// PostgresStore persists medication records and publishes change events
// to the feed on every write.
type PostgresStore struct {
	db     *sql.DB
	feed   Feed
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, feed Feed, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		feed:   feed,
		logger: log.WithFields(map[string]interface{}{"component": "medication-store"}),
	}
}

func (s *PostgresStore) GetMedication(ctx context.Context, id string) (*Medication, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+medicationColumns+` FROM medications WHERE id = $1`, id)

	med, err := scanMedication(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewMedicationNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewStoreQueryFailedError("get_medication", err)
	}
	return med, nil
}

func (s *PostgresStore) ListActiveMedications(ctx context.Context, userID string) ([]Medication, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+medicationColumns+` FROM medications WHERE user_id = $1 AND is_active = true ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, errors.NewStoreQueryFailedError("list_active_medications", err)
	}
	defer rows.Close()

	return collectMedications(rows)
}

func (s *PostgresStore) ListAllActive(ctx context.Context) ([]Medication, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+medicationColumns+` FROM medications WHERE is_active = true ORDER BY created_at`)
	if err != nil {
		return nil, errors.NewStoreQueryFailedError("list_all_active", err)
	}
	defer rows.Close()

	return collectMedications(rows)
}

func (s *PostgresStore) Upsert(ctx context.Context, med *Medication) error {
	if err := Validate(med); err != nil {
		return err
	}

	now := time.Now().UTC()
	med.UpdatedAt = now
	if med.CreatedAt.IsZero() {
		med.CreatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO medications (`+medicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			dosage = EXCLUDED.dosage,
			frequency = EXCLUDED.frequency,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			notes = EXCLUDED.notes,
			reminder_times = EXCLUDED.reminder_times,
			is_active = EXCLUDED.is_active,
			push_enabled = EXCLUDED.push_enabled,
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			whatsapp_enabled = EXCLUDED.whatsapp_enabled,
			whatsapp_phone = EXCLUDED.whatsapp_phone,
			updated_at = EXCLUDED.updated_at`,
		med.ID, med.UserID, med.Name, med.Dosage, med.Frequency,
		med.StartDate, med.EndDate, med.Notes,
		pq.Array(med.ReminderTimes), med.IsActive,
		med.Channels.Push, med.Channels.Email, med.Channels.SMS, med.Channels.WhatsApp,
		med.WhatsAppPhone, med.CreatedAt, med.UpdatedAt,
	)
	if err != nil {
		return errors.NewStoreQueryFailedError("upsert_medication", err)
	}

	s.publish(ctx, ChangeEvent{
		Kind:         ChangeUpsert,
		MedicationID: med.ID,
		UserID:       med.UserID,
		Medication:   med,
	})
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM medications WHERE id = $1 RETURNING user_id`, id).Scan(&userID)
	if err == sql.ErrNoRows {
		return errors.NewMedicationNotFoundError(id)
	}
	if err != nil {
		return errors.NewStoreQueryFailedError("delete_medication", err)
	}

	s.publish(ctx, ChangeEvent{
		Kind:         ChangeDelete,
		MedicationID: id,
		UserID:       userID,
	})
	return nil
}

// publish is best effort: a lost change event degrades freshness, not
// correctness, because the scheduler replays the store at startup.
func (s *PostgresStore) publish(ctx context.Context, ev ChangeEvent) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.logger.Warn("change event publish failed", map[string]interface{}{
			"medicationId": ev.MedicationID,
			"kind":         string(ev.Kind),
			"error":        err.Error(),
		})
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMedication(row rowScanner) (*Medication, error) {
	var med Medication
	var endDate sql.NullTime
	var frequency, notes, whatsappPhone sql.NullString

	err := row.Scan(
		&med.ID, &med.UserID, &med.Name, &med.Dosage, &frequency,
		&med.StartDate, &endDate, &notes,
		pq.Array(&med.ReminderTimes), &med.IsActive,
		&med.Channels.Push, &med.Channels.Email, &med.Channels.SMS, &med.Channels.WhatsApp,
		&whatsappPhone, &med.CreatedAt, &med.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	med.Frequency = frequency.String
	med.Notes = notes.String
	med.WhatsAppPhone = whatsappPhone.String
	if endDate.Valid {
		med.EndDate = &endDate.Time
	}
	return &med, nil
}

func collectMedications(rows *sql.Rows) ([]Medication, error) {
	var meds []Medication
	for rows.Next() {
		med, err := scanMedication(rows)
		if err != nil {
			return nil, errors.NewStoreQueryFailedError("scan_medication", err)
		}
		meds = append(meds, *med)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreQueryFailedError("iterate_medications", err)
	}
	return meds, nil
}
