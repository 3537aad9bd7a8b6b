package service

import (
	"context"
	"time"

	"github.com/fennelouski/cardoncue/internal/domain"
	"github.com/fennelouski/cardoncue/internal/logger"
	"github.com/fennelouski/cardoncue/internal/repository"
	"github.com/google/uuid"
)

// ProcessorConfig holds tuning for batch processing.
type ProcessorConfig struct {
	// BatchSize is the maximum number of jobs claimed per invocation.
	BatchSize int
	// JobDelay is the fixed pause between jobs within a batch. It exists
	// solely to satisfy the community provider's shared external rate limit.
	JobDelay time.Duration
	// StaleAfter is how long a processing claim may go without an update
	// before the crash-recovery sweep returns it to pending.
	StaleAfter time.Duration
}

// JobOutcome reports one job's result within a batch.
type JobOutcome struct {
	ID             string           `json:"id"`
	MerchantName   string           `json:"merchant_name"`
	Status         domain.JobStatus `json:"status"`
	LocationsFound int              `json:"locations_found"`
	DataSource     string           `json:"data_source,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// BatchResult aggregates one processor invocation.
type BatchResult struct {
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Reclaimed int64        `json:"reclaimed"`
	Jobs      []JobOutcome `json:"jobs"`
}

// Processor drains one bounded batch of due import jobs per invocation.
// Jobs are processed strictly sequentially with a fixed inter-job delay;
// there is deliberately no worker pool, because the free community provider
// shares one public rate-limited endpoint. The processor never schedules
// itself; an external trigger (scheduler or manual call) invokes it.
type Processor struct {
	jobs      *repository.JobRepository
	locations *repository.LocationRepository
	cache     *repository.CacheRepository
	resolver  *Resolver
	cfg       ProcessorConfig
	logger    *logger.Logger
}

// NewProcessor creates a batch processor.
// Parameters:
//   - jobs: import queue repository.
//   - locations: brand/location repository.
//   - cache: cache repository, used for expiry housekeeping.
//   - resolver: resolution chain.
//   - cfg: batch tuning; zero values get defaults.
//   - log: logger instance.
// Returns:
//   - *Processor: initialized processor.
func NewProcessor(
	jobs *repository.JobRepository,
	locations *repository.LocationRepository,
	cache *repository.CacheRepository,
	resolver *Resolver,
	cfg ProcessorConfig,
	log *logger.Logger,
) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Processor{
		jobs:      jobs,
		locations: locations,
		cache:     cache,
		resolver:  resolver,
		cfg:       cfg,
		logger:    log,
	}
}

// ProcessBatch claims up to batchSize due jobs and processes them in order.
// One job's provider failure never aborts the rest of the batch: every job's
// outcome is recorded independently.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batchSize: batch override; <= 0 uses the configured size.
// Returns:
//   - *BatchResult: per-job outcomes and aggregate counts.
//   - error: non-nil only when claiming itself fails.
func (p *Processor) ProcessBatch(ctx context.Context, batchSize int) (*BatchResult, error) {
	if batchSize <= 0 {
		batchSize = p.cfg.BatchSize
	}

	batchID := uuid.New().String()
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldBatchID:   batchID,
		logger.FieldComponent: "processor",
	})

	start := time.Now()
	result := &BatchResult{}

	// Housekeeping rides along on every trigger: crashed claims are
	// reclaimed and expired cache entries swept before new work is claimed.
	reclaimed, err := p.jobs.ReclaimStale(ctx, p.cfg.StaleAfter)
	if err != nil {
		logger.CtxWarn(ctx, "Stale-claim sweep failed: %v", err)
	} else if reclaimed > 0 {
		logger.CtxInfo(ctx, "Reclaimed %d stale processing jobs", reclaimed)
	}
	result.Reclaimed = reclaimed

	if _, err := p.cache.PurgeExpired(ctx); err != nil {
		logger.CtxWarn(ctx, "Cache expiry sweep failed: %v", err)
	}

	claimed, err := p.jobs.Claim(ctx, batchSize)
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		logger.CtxInfo(ctx, "No due jobs to process")
		return result, nil
	}

	logger.CtxInfo(ctx, "Claimed %d jobs for processing", len(claimed))

	for i := range claimed {
		if i > 0 && p.cfg.JobDelay > 0 {
			select {
			case <-time.After(p.cfg.JobDelay):
			case <-ctx.Done():
				// Remaining claimed jobs stay in processing; the staleness
				// sweep on the next trigger returns them to pending.
				logger.CtxWarn(ctx, "Batch interrupted after %d of %d jobs", i, len(claimed))
				return result, ctx.Err()
			}
		}

		outcome := p.processJob(ctx, &claimed[i])
		result.Jobs = append(result.Jobs, outcome)
		result.Processed++
		if outcome.Status == domain.JobStatusCompleted {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	logger.With(logger.Fields{
		logger.FieldCount:      result.Processed,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Batch finished: %d succeeded, %d failed", result.Succeeded, result.Failed)

	return result, nil
}

// processJob resolves one job and applies its queue transition.
func (p *Processor) processJob(ctx context.Context, job *domain.ImportJob) JobOutcome {
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldJobID:    job.ID,
		logger.FieldMerchant: job.MerchantName,
	})

	outcome := JobOutcome{ID: job.ID, MerchantName: job.MerchantName}

	resolved, err := p.resolver.Resolve(ctx, job.MerchantName, job.Anchor(), job.RadiusKm)
	if err != nil {
		return p.fail(ctx, job, &outcome, "resolution rejected: "+err.Error())
	}

	if len(resolved.Locations) > 0 {
		brand, err := p.locations.FindOrCreateBrand(ctx, job.MerchantName)
		if err != nil {
			return p.fail(ctx, job, &outcome, "brand lookup failed: "+err.Error())
		}
		if _, err := p.locations.SaveCandidates(ctx, brand.ID, resolved.Locations, resolved.Source); err != nil {
			return p.fail(ctx, job, &outcome, "persisting locations failed: "+err.Error())
		}
	}

	// lastError is only recorded when the final tier came up empty-handed.
	lastError := ""
	if len(resolved.Locations) == 0 {
		lastError = resolved.LastError
	}

	if err := p.jobs.MarkCompleted(ctx, job.ID, len(resolved.Locations), resolved.Source, lastError); err != nil {
		logger.CtxError(ctx, "Completion transition failed: %v", err)
		outcome.Status = domain.JobStatusProcessing
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Status = domain.JobStatusCompleted
	outcome.LocationsFound = len(resolved.Locations)
	outcome.DataSource = resolved.Source

	logger.With(logger.Fields{
		logger.FieldCount: outcome.LocationsFound,
		logger.FieldCost:  resolved.CostEstimate,
	}).Info(ctx, "Job completed via %s", resolved.Source)

	return outcome
}

func (p *Processor) fail(ctx context.Context, job *domain.ImportJob, outcome *JobOutcome, msg string) JobOutcome {
	status, err := p.jobs.RecordFailure(ctx, job.ID, msg)
	if err != nil {
		logger.CtxError(ctx, "Failure transition failed: %v", err)
		status = domain.JobStatusProcessing
	}
	outcome.Status = status
	outcome.Error = msg
	logger.CtxWarn(ctx, "Job failed (now %s): %s", status, msg)
	return *outcome
}
