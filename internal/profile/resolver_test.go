// internal/profile/resolver_test.go
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"

	"medreminder/internal/common/errors"
	"medreminder/internal/common/logger"
)

func TestResolver_Resolve_CacheMissFallsBackToDatabase(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	cache, cacheMock := redismock.NewClientMock()

	contact := Contact{
		Email:         "patient@example.com",
		Phone:         "+15551234567",
		DeviceToken:   "device-token-001",
		WhatsAppPhone: "+15551234567",
	}
	payload, err := json.Marshal(&contact)
	assert.NoError(t, err)

	cacheMock.ExpectGet("contact:user:user-001").RedisNil()
	cacheMock.ExpectSet("contact:user:user-001", payload, 10*time.Minute).SetVal("OK")

	dbMock.ExpectQuery(`SELECT email, phone, device_token, whatsapp_phone FROM users WHERE id = \$1`).
		WithArgs("user-001").
		WillReturnRows(sqlmock.NewRows([]string{"email", "phone", "device_token", "whatsapp_phone"}).
			AddRow(contact.Email, contact.Phone, contact.DeviceToken, contact.WhatsAppPhone))

	resolver := NewResolver(db, cache, logger.NewTestLogger(t))
	got, err := resolver.Resolve(context.Background(), "user-001")

	assert.NoError(t, err)
	assert.Equal(t, &contact, got)

	assert.NoError(t, dbMock.ExpectationsWereMet())
	assert.NoError(t, cacheMock.ExpectationsWereMet())
}

func TestResolver_Resolve_CacheHitSkipsDatabase(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	cache, cacheMock := redismock.NewClientMock()

	contact := Contact{Email: "patient@example.com"}
	payload, err := json.Marshal(&contact)
	assert.NoError(t, err)

	cacheMock.ExpectGet("contact:user:user-001").SetVal(string(payload))

	resolver := NewResolver(db, cache, logger.NewTestLogger(t))
	got, err := resolver.Resolve(context.Background(), "user-001")

	assert.NoError(t, err)
	assert.Equal(t, &contact, got)

	// No SQL executed.
	assert.NoError(t, dbMock.ExpectationsWereMet())
	assert.NoError(t, cacheMock.ExpectationsWereMet())
}

func TestResolver_Resolve_NullColumnsBecomeEmptyFields(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	dbMock.ExpectQuery(`SELECT email, phone, device_token, whatsapp_phone FROM users WHERE id = \$1`).
		WithArgs("user-001").
		WillReturnRows(sqlmock.NewRows([]string{"email", "phone", "device_token", "whatsapp_phone"}).
			AddRow("patient@example.com", nil, nil, nil))

	// No cache configured; DB only.
	resolver := NewResolver(db, nil, logger.NewTestLogger(t))
	got, err := resolver.Resolve(context.Background(), "user-001")

	assert.NoError(t, err)
	assert.Equal(t, "patient@example.com", got.Email)
	assert.Empty(t, got.Phone)
	assert.Empty(t, got.DeviceToken)
	assert.Empty(t, got.WhatsAppPhone)

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestResolver_Resolve_UnknownUser(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	dbMock.ExpectQuery(`SELECT email, phone, device_token, whatsapp_phone FROM users WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	resolver := NewResolver(db, nil, logger.NewTestLogger(t))
	got, err := resolver.Resolve(context.Background(), "ghost")

	assert.Nil(t, got)
	assert.True(t, errors.IsCode(err, errors.ErrCodeContactLookupFailed))

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestResolver_Invalidate(t *testing.T) {
	cache, cacheMock := redismock.NewClientMock()
	cacheMock.ExpectDel("contact:user:user-001").SetVal(1)

	resolver := NewResolver(nil, cache, logger.NewTestLogger(t))
	resolver.Invalidate(context.Background(), "user-001")

	assert.NoError(t, cacheMock.ExpectationsWereMet())
}
