package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fennelouski/cardoncue/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSetGetAndHitCount(t *testing.T) {
	repo := NewCacheRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Get(ctx, domain.CacheTypeResolution, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, domain.CacheTypeResolution, "k1", `[{"name":"x"}]`, `{"source":"community"}`, 30*24*time.Hour))

	entry, err := repo.Get(ctx, domain.CacheTypeResolution, "k1")
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"x"}]`, entry.Payload)
	assert.Equal(t, int64(1), entry.HitCount)
	require.NotNil(t, entry.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *entry.ExpiresAt, time.Minute)

	entry, err = repo.Get(ctx, domain.CacheTypeResolution, "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.HitCount)
}

func TestCacheUpsertReplacesPayload(t *testing.T) {
	repo := NewCacheRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, domain.CacheTypeResolution, "k1", "old", "", time.Hour))
	require.NoError(t, repo.Set(ctx, domain.CacheTypeResolution, "k1", "new", "", time.Hour))

	entry, err := repo.Get(ctx, domain.CacheTypeResolution, "k1")
	require.NoError(t, err)
	assert.Equal(t, "new", entry.Payload)

	var count int64
	require.NoError(t, repo.db.Model(&domain.CacheEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCacheNeverExpireAndTypeNamespacing(t *testing.T) {
	repo := NewCacheRepository(newTestDB(t))
	ctx := context.Background()

	// ttl <= 0 means no expiry.
	require.NoError(t, repo.Set(ctx, domain.CacheTypeResolution, "forever", "v", "", 0))
	entry, err := repo.Get(ctx, domain.CacheTypeResolution, "forever")
	require.NoError(t, err)
	assert.Nil(t, entry.ExpiresAt)

	// Same key under another type is a distinct entry.
	_, err = repo.Get(ctx, "other_type", "forever")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheExpiryTreatedAsMissAndPurge(t *testing.T) {
	repo := NewCacheRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, domain.CacheTypeResolution, "stale", "v", "", time.Hour))
	require.NoError(t, repo.Set(ctx, domain.CacheTypeResolution, "live", "v", "", time.Hour))

	// Backdate one entry past its expiry.
	past := time.Now().Add(-time.Minute)
	require.NoError(t, repo.db.Model(&domain.CacheEntry{}).
		Where("key = ?", "stale").
		UpdateColumn("expires_at", past).Error)

	_, err := repo.Get(ctx, domain.CacheTypeResolution, "stale")
	assert.ErrorIs(t, err, ErrCacheMiss)

	purged, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	// Idempotent.
	purged, err = repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged)

	_, err = repo.Get(ctx, domain.CacheTypeResolution, "live")
	assert.NoError(t, err)
}
