package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fennelouski/cardoncue/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrJobNotFound is returned when a job lookup matches no row.
var ErrJobNotFound = errors.New("import job not found")

// JobRepository owns the durable import queue and its state machine.
// All status transitions go through this type; the claim step is the only
// synchronization point shared by concurrent batch triggers.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue inserts a pending job unless an equivalent pending/processing job
// already exists for the same (merchant key, area key) tuple.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - job: job to insert; MerchantKey and AreaKey must be set by the caller.
// Returns:
//   - *domain.ImportJob: the inserted job, or the existing equivalent job.
//   - bool: true if a new row was created.
//   - error: non-nil if the insert fails.
func (r *JobRepository) Enqueue(ctx context.Context, job *domain.ImportJob) (*domain.ImportJob, bool, error) {
	var result *domain.ImportJob
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.ImportJob
		err := tx.Where("merchant_key = ? AND area_key = ? AND status IN ?",
			job.MerchantKey, job.AreaKey,
			[]domain.JobStatus{domain.JobStatusPending, domain.JobStatusProcessing}).
			First(&existing).Error
		if err == nil {
			result = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if job.ID == "" {
			job.ID = uuid.New().String()
		}
		job.Status = domain.JobStatusPending
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		result = job
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

// Claim atomically flips up to limit due jobs from pending to processing and
// returns them. Jobs are ordered by priority (lower first), then age. The
// single UPDATE re-checks status, so overlapping triggers can never claim the
// same job twice.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of jobs to claim.
// Returns:
//   - []domain.ImportJob: claimed jobs in processing order.
//   - error: non-nil if the claim fails.
func (r *JobRepository) Claim(ctx context.Context, limit int) ([]domain.ImportJob, error) {
	if limit <= 0 {
		return nil, nil
	}

	token := uuid.New().String()

	due := r.db.WithContext(ctx).Model(&domain.ImportJob{}).
		Select("id").
		Where("status = ?", domain.JobStatusPending).
		Order("priority ASC, created_at ASC").
		Limit(limit)

	res := r.db.WithContext(ctx).Model(&domain.ImportJob{}).
		Where("status = ? AND id IN (?)", domain.JobStatusPending, due).
		Updates(map[string]interface{}{
			"status":      domain.JobStatusProcessing,
			"claim_token": token,
			"updated_at":  time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	var jobs []domain.ImportJob
	if err := r.db.WithContext(ctx).
		Where("claim_token = ?", token).
		Order("priority ASC, created_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkCompleted finishes a job successfully.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - locationsFound: number of locations the resolution produced.
//   - dataSource: resolver tier that produced the result.
//   - lastError: error text from the last tier when nothing was found, else empty.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) MarkCompleted(ctx context.Context, id string, locationsFound int, dataSource, lastError string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&domain.ImportJob{}).
		Where("id = ? AND status = ?", id, domain.JobStatusProcessing).
		Updates(map[string]interface{}{
			"status":          domain.JobStatusCompleted,
			"locations_found": locationsFound,
			"data_source":     dataSource,
			"last_error":      lastError,
			"claim_token":     "",
			"completed_at":    now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// RecordFailure applies one failed attempt. The job returns to pending while
// attempts remain below the max; otherwise it becomes terminally failed and
// is never auto-retried.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - errMsg: failure description stored as last_error.
// Returns:
//   - domain.JobStatus: the status the job ended up in.
//   - error: non-nil if the update fails.
func (r *JobRepository) RecordFailure(ctx context.Context, id string, errMsg string) (domain.JobStatus, error) {
	var final domain.JobStatus

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job domain.ImportJob
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}

		job.Attempts++
		job.LastError = errMsg
		job.ClaimToken = ""
		if job.Attempts >= job.MaxAttempts {
			job.Status = domain.JobStatusFailed
		} else {
			job.Status = domain.JobStatusPending
		}
		job.UpdatedAt = time.Now()
		final = job.Status

		return tx.Save(&job).Error
	})
	if err != nil {
		return "", err
	}
	return final, nil
}

// ReclaimStale returns jobs stuck in processing past the staleness window to
// pending. The worker that claimed them is presumed crashed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - window: maximum age of a processing claim before reclamation.
// Returns:
//   - int64: number of jobs reclaimed.
//   - error: non-nil if the sweep fails.
func (r *JobRepository) ReclaimStale(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := time.Now().Add(-window)
	res := r.db.WithContext(ctx).Model(&domain.ImportJob{}).
		Where("status = ? AND updated_at < ?", domain.JobStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":      domain.JobStatusPending,
			"claim_token": "",
			"updated_at":  time.Now(),
		})
	return res.RowsAffected, res.Error
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.ImportJob: job record if found.
//   - error: ErrJobNotFound when no row matches.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.ImportJob, error) {
	var job domain.ImportJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// Delete removes a single job regardless of status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - error: ErrJobNotFound when no row matches.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&domain.ImportJob{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// DeleteCompleted purges all completed jobs.
// Parameters:
//   - ctx: context for cancellation and deadlines.
// Returns:
//   - int64: number of rows removed.
//   - error: non-nil if the delete fails.
func (r *JobRepository) DeleteCompleted(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Delete(&domain.ImportJob{}, "status = ?", domain.JobStatusCompleted)
	return res.RowsAffected, res.Error
}

// Stats aggregates queue state for the status endpoint.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - statusFilter: restrict sample rows to one status; empty means all.
//   - sampleLimit: maximum number of sample rows to return.
// Returns:
//   - *domain.QueueStats: aggregated counts, averages, and samples.
//   - error: non-nil if any query fails.
func (r *JobRepository) Stats(ctx context.Context, statusFilter domain.JobStatus, sampleLimit int) (*domain.QueueStats, error) {
	stats := &domain.QueueStats{
		CountsByStatus: make(map[domain.JobStatus]int64),
	}

	type statusCount struct {
		Status domain.JobStatus
		Count  int64
	}
	var counts []statusCount
	if err := r.db.WithContext(ctx).Model(&domain.ImportJob{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, c := range counts {
		stats.CountsByStatus[c.Status] = c.Count
	}

	type averages struct {
		AvgAttempts  float64
		AvgLocations float64
	}
	var avg averages
	if err := r.db.WithContext(ctx).Model(&domain.ImportJob{}).
		Select("COALESCE(AVG(attempts), 0) as avg_attempts, COALESCE(AVG(locations_found), 0) as avg_locations").
		Scan(&avg).Error; err != nil {
		return nil, err
	}
	stats.AvgAttempts = avg.AvgAttempts
	stats.AvgLocations = avg.AvgLocations

	var oldest, newest domain.ImportJob
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.JobStatusPending).
		Order("created_at ASC").First(&oldest).Error
	if err == nil {
		stats.OldestPendingAt = &oldest.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	err = r.db.WithContext(ctx).
		Where("status = ?", domain.JobStatusPending).
		Order("created_at DESC").First(&newest).Error
	if err == nil {
		stats.NewestPendingAt = &newest.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if sampleLimit <= 0 {
		sampleLimit = 20
	}
	q := r.db.WithContext(ctx).Order("updated_at DESC").Limit(sampleLimit)
	if statusFilter != "" {
		q = q.Where("status = ?", statusFilter)
	}
	if err := q.Find(&stats.Samples).Error; err != nil {
		return nil, err
	}

	return stats, nil
}
