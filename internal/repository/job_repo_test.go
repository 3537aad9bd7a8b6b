package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fennelouski/cardoncue/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJob(merchant, areaKey string, priority int) *domain.ImportJob {
	return &domain.ImportJob{
		MerchantName: merchant,
		MerchantKey:  domain.NormalizeMerchantName(merchant),
		AreaKey:      areaKey,
		AnchorLat:    34.0522,
		AnchorLon:    -118.2437,
		RadiusKm:     50,
		Priority:     priority,
		MaxAttempts:  3,
		AddedReason:  domain.ReasonManual,
	}
}

func TestEnqueueIdempotentPerMerchantArea(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	first, created, err := repo.Enqueue(ctx, newJob("Costco", "68:-237", 100))
	require.NoError(t, err)
	require.True(t, created)

	// Same merchant and area while the first is still pending: suppressed.
	second, created, err := repo.Enqueue(ctx, newJob("  costco ", "68:-237", 5))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, repo.db.Model(&domain.ImportJob{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Different area is a distinct backlog entry.
	_, created, err = repo.Enqueue(ctx, newJob("Costco", "69:-237", 100))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestEnqueueAllowedAfterCompletion(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job, _, err := repo.Enqueue(ctx, newJob("Costco", "68:-237", 100))
	require.NoError(t, err)

	claimed, err := repo.Claim(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, repo.MarkCompleted(ctx, job.ID, 3, "community", ""))

	// The completed row no longer blocks a fresh enqueue.
	_, created, err := repo.Enqueue(ctx, newJob("Costco", "68:-237", 100))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestClaimOrderAndExclusivity(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	urgent, _, err := repo.Enqueue(ctx, newJob("Urgent Mart", "1:1", 1))
	require.NoError(t, err)
	older, _, err := repo.Enqueue(ctx, newJob("Older Mart", "2:2", 50))
	require.NoError(t, err)
	// Force distinct created_at ordering.
	require.NoError(t, repo.db.Model(&domain.ImportJob{}).Where("id = ?", older.ID).
		UpdateColumn("created_at", time.Now().Add(-time.Hour)).Error)
	newer, _, err := repo.Enqueue(ctx, newJob("Newer Mart", "3:3", 50))
	require.NoError(t, err)

	claimed, err := repo.Claim(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, urgent.ID, claimed[0].ID, "lowest priority value first")
	assert.Equal(t, older.ID, claimed[1].ID, "older job before newer at equal priority")
	for _, j := range claimed {
		assert.Equal(t, domain.JobStatusProcessing, j.Status)
		assert.NotEmpty(t, j.ClaimToken)
	}

	// A second overlapping claim can only see what is still pending.
	rest, err := repo.Claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, newer.ID, rest[0].ID)

	// Nothing left.
	none, err := repo.Claim(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordFailureRetryBound(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job, _, err := repo.Enqueue(ctx, newJob("Flaky Mart", "1:1", 100))
	require.NoError(t, err)

	// maxAttempts=3: two failures return to pending, the third is terminal.
	for attempt := 1; attempt <= 3; attempt++ {
		claimed, err := repo.Claim(ctx, 1)
		require.NoError(t, err)
		require.Len(t, claimed, 1, "attempt %d should be claimable", attempt)

		status, err := repo.RecordFailure(ctx, job.ID, "provider exploded")
		require.NoError(t, err)
		if attempt < 3 {
			assert.Equal(t, domain.JobStatusPending, status)
		} else {
			assert.Equal(t, domain.JobStatusFailed, status)
		}
	}

	// Terminal failure: never claimable again.
	claimed, err := repo.Claim(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	final, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, final.Status)
	assert.Equal(t, 3, final.Attempts)
	assert.Equal(t, "provider exploded", final.LastError)
}

func TestReclaimStale(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job, _, err := repo.Enqueue(ctx, newJob("Crashy Mart", "1:1", 100))
	require.NoError(t, err)

	claimed, err := repo.Claim(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	// Fresh claim is left alone.
	reclaimed, err := repo.ReclaimStale(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, reclaimed)

	// Backdate the claim past the staleness window.
	require.NoError(t, repo.db.Model(&domain.ImportJob{}).Where("id = ?", job.ID).
		UpdateColumn("updated_at", time.Now().Add(-30*time.Minute)).Error)

	reclaimed, err = repo.ReclaimStale(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reclaimed)

	recovered, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, recovered.Status)
	assert.Empty(t, recovered.ClaimToken)
	assert.Zero(t, recovered.Attempts, "reclamation is not a failed attempt")
}

func TestMarkCompleted(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job, _, err := repo.Enqueue(ctx, newJob("Costco", "68:-237", 100))
	require.NoError(t, err)

	// Completion requires the processing state.
	err = repo.MarkCompleted(ctx, job.ID, 12, "community", "")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = repo.Claim(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.MarkCompleted(ctx, job.ID, 12, "community", ""))

	done, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, done.Status)
	assert.Equal(t, 12, done.LocationsFound)
	assert.Equal(t, "community", done.DataSource)
	require.NotNil(t, done.CompletedAt)
	assert.WithinDuration(t, time.Now(), *done.CompletedAt, time.Minute)
}

func TestStatsAndPurge(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	a, _, err := repo.Enqueue(ctx, newJob("A Mart", "1:1", 100))
	require.NoError(t, err)
	_, _, err = repo.Enqueue(ctx, newJob("B Mart", "2:2", 100))
	require.NoError(t, err)

	claimed, err := repo.Claim(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, repo.MarkCompleted(ctx, a.ID, 4, "community", ""))

	stats, err := repo.Stats(ctx, "", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CountsByStatus[domain.JobStatusCompleted])
	assert.Equal(t, int64(1), stats.CountsByStatus[domain.JobStatusPending])
	assert.NotNil(t, stats.OldestPendingAt)
	assert.InDelta(t, 2.0, stats.AvgLocations, 0.001)
	assert.NotEmpty(t, stats.Samples)

	filtered, err := repo.Stats(ctx, domain.JobStatusPending, 10)
	require.NoError(t, err)
	for _, s := range filtered.Samples {
		assert.Equal(t, domain.JobStatusPending, s.Status)
	}

	removed, err := repo.DeleteCompleted(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestDelete(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job, _, err := repo.Enqueue(ctx, newJob("A Mart", "1:1", 100))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, job.ID))
	assert.ErrorIs(t, repo.Delete(ctx, job.ID), ErrJobNotFound)
}
