// internal/profile/resolver.go
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"medreminder/internal/common/errors"
	"medreminder/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const (
	contactCachePrefix = "contact:user:"
	contactCacheTTL    = 10 * time.Minute
)

// Contact holds the per-user recipient identifiers each channel needs.
// Empty fields are legitimate: a channel with a missing prerequisite is
// skipped, not failed.
type Contact struct {
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	DeviceToken   string `json:"deviceToken"`
	WhatsAppPhone string `json:"whatsappPhone"`
}

// Resolver looks up user contact details, with a Redis cache in front of
// the users table.
type Resolver struct {
	db     *sql.DB
	cache  *redis.Client
	logger logger.Logger
}

func NewResolver(db *sql.DB, cache *redis.Client, log logger.Logger) *Resolver {
	return &Resolver{
		db:     db,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "contact-resolver"}),
	}
}

func (r *Resolver) Resolve(ctx context.Context, userID string) (*Contact, error) {
	if contact := r.fromCache(ctx, userID); contact != nil {
		return contact, nil
	}

	var contact Contact
	var email, phone, token, waPhone sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT email, phone, device_token, whatsapp_phone FROM users WHERE id = $1`,
		userID).Scan(&email, &phone, &token, &waPhone)
	if err != nil {
		return nil, errors.NewContactLookupFailedError(userID, err)
	}

	contact.Email = email.String
	contact.Phone = phone.String
	contact.DeviceToken = token.String
	contact.WhatsAppPhone = waPhone.String

	r.toCache(ctx, userID, &contact)
	return &contact, nil
}

// Invalidate drops the cached contact, e.g. after a profile update.
func (r *Resolver) Invalidate(ctx context.Context, userID string) {
	if r.cache == nil {
		return
	}
	r.cache.Del(ctx, contactCachePrefix+userID)
}

func (r *Resolver) fromCache(ctx context.Context, userID string) *Contact {
	if r.cache == nil {
		return nil
	}

	cached, err := r.cache.Get(ctx, contactCachePrefix+userID).Result()
	if err != nil {
		return nil
	}

	var contact Contact
	if err := json.Unmarshal([]byte(cached), &contact); err != nil {
		return nil
	}
	return &contact
}

func (r *Resolver) toCache(ctx context.Context, userID string, contact *Contact) {
	if r.cache == nil {
		return
	}

	payload, err := json.Marshal(contact)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, contactCachePrefix+userID, payload, contactCacheTTL).Err(); err != nil {
		r.logger.Debug("contact cache write failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}
