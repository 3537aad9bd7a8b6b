package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fennelouski/cardoncue/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCacheMiss is returned when no live entry exists for a (type, key) pair.
var ErrCacheMiss = errors.New("cache miss")

// CacheRepository is a TTL-based key/value store for resolution results,
// keyed by a content digest of the request. Callers treat every error here
// as non-fatal; the resolver degrades to a cold lookup.
type CacheRepository struct {
	db *gorm.DB
}

// NewCacheRepository creates a new CacheRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *CacheRepository: repository instance bound to db.
func NewCacheRepository(db *gorm.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Get returns the live entry for (entryType, key). Expired entries are
// treated as misses. The hit counter is incremented best-effort; a failed
// increment never fails the read.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entryType: cache namespace.
//   - key: content digest of the request.
// Returns:
//   - *domain.CacheEntry: live entry on hit.
//   - error: ErrCacheMiss on miss or expiry; other errors on store failure.
func (r *CacheRepository) Get(ctx context.Context, entryType, key string) (*domain.CacheEntry, error) {
	var entry domain.CacheEntry
	err := r.db.WithContext(ctx).
		Where("type = ? AND key = ?", entryType, key).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	if entry.Expired(time.Now()) {
		return nil, ErrCacheMiss
	}

	// Best-effort hit accounting; never blocks the read path.
	r.db.WithContext(ctx).Model(&domain.CacheEntry{}).
		Where("id = ?", entry.ID).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1"))
	entry.HitCount++

	return &entry, nil
}

// Set upserts an entry for (entryType, key).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entryType: cache namespace.
//   - key: content digest of the request.
//   - payload: JSON payload to store.
//   - metadata: optional JSON metadata.
//   - ttl: time to live; zero or negative means never expire.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *CacheRepository) Set(ctx context.Context, entryType, key, payload, metadata string, ttl time.Duration) error {
	entry := domain.CacheEntry{
		Type:      entryType,
		Key:       key,
		Payload:   payload,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if ttl > 0 {
		expires := time.Now().Add(ttl)
		entry.ExpiresAt = &expires
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "type"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"payload", "metadata", "created_at", "expires_at",
		}),
	}).Create(&entry).Error
}

// Delete removes a single entry.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entryType: cache namespace.
//   - key: content digest of the request.
// Returns:
//   - error: non-nil if the delete fails.
func (r *CacheRepository) Delete(ctx context.Context, entryType, key string) error {
	return r.db.WithContext(ctx).
		Delete(&domain.CacheEntry{}, "type = ? AND key = ?", entryType, key).Error
}

// PurgeExpired deletes all entries past their expiry. Idempotent.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: number of rows removed.
//   - error: non-nil if the delete fails.
func (r *CacheRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Delete(&domain.CacheEntry{}, "expires_at IS NOT NULL AND expires_at < ?", time.Now())
	return res.RowsAffected, res.Error
}
