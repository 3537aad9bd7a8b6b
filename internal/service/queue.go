package service

import (
	"context"

	"github.com/fennelouski/cardoncue/internal/domain"
	"github.com/fennelouski/cardoncue/internal/logger"
	"github.com/fennelouski/cardoncue/internal/repository"
)

// defaultPriority is assigned when an enqueue request carries no priority.
// Lower values are more urgent; card-creation enqueues use priority 1.
const defaultPriority = 100

// EnqueueRequest is the intake shape for a new import job.
type EnqueueRequest struct {
	MerchantName string
	Priority     int
	Anchor       domain.GeoPoint
	RadiusKm     float64
	AddedReason  string
	MaxAttempts  int
}

// QueueService fronts the import queue: validated intake, the card-creation
// coverage check, status aggregation, and manual removal.
type QueueService struct {
	jobs        *repository.JobRepository
	locations   *repository.LocationRepository
	keys        KeyOptions
	maxAttempts int
	logger      *logger.Logger
}

// NewQueueService creates a QueueService.
// Parameters:
//   - jobs: import queue repository.
//   - locations: brand/location repository, used by the coverage check.
//   - keys: coarsening parameters shared with the resolver's cache keys.
//   - maxAttempts: default retry budget for new jobs; <= 0 means 3.
//   - log: logger instance.
// Returns:
//   - *QueueService: initialized service.
func NewQueueService(jobs *repository.JobRepository, locations *repository.LocationRepository, keys KeyOptions, maxAttempts int, log *logger.Logger) *QueueService {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &QueueService{
		jobs:        jobs,
		locations:   locations,
		keys:        keys.normalized(),
		maxAttempts: maxAttempts,
		logger:      log,
	}
}

// Enqueue validates a request and inserts a pending job unless an equivalent
// pending/processing job already exists for the same (merchant, area).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - req: intake request.
// Returns:
//   - *domain.ImportJob: the new job, or the existing equivalent one.
//   - bool: true if a new row was created.
//   - error: validation or store failure; invalid requests are never persisted.
func (s *QueueService) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.ImportJob, bool, error) {
	if err := domain.ValidateSearch(req.MerchantName, req.Anchor, req.RadiusKm); err != nil {
		return nil, false, err
	}

	priority := req.Priority
	if priority <= 0 {
		priority = defaultPriority
	}
	reason := req.AddedReason
	if reason == "" {
		reason = domain.ReasonManual
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = s.maxAttempts
	}

	job := &domain.ImportJob{
		MerchantName: req.MerchantName,
		MerchantKey:  domain.NormalizeMerchantName(req.MerchantName),
		AreaKey:      AreaKey(req.Anchor, s.keys),
		AnchorLat:    req.Anchor.Lat,
		AnchorLon:    req.Anchor.Lon,
		RadiusKm:     req.RadiusKm,
		Priority:     priority,
		MaxAttempts:  maxAttempts,
		AddedReason:  reason,
	}

	stored, created, err := s.jobs.Enqueue(ctx, job)
	if err != nil {
		return nil, false, err
	}
	if created {
		logger.CtxInfo(ctx, "Enqueued import job %s for %q (priority %d, reason %s)",
			stored.ID, stored.MerchantName, stored.Priority, stored.AddedReason)
	} else {
		logger.CtxDebug(ctx, "Enqueue suppressed, equivalent job %s already queued", stored.ID)
	}
	return stored, created, nil
}

// EnsureCoverage is the card-creation contract: enqueue a high-priority job
// only when the merchant has zero known locations within the radius. It never
// waits on resolution; the caller is free to finish card creation regardless
// of the outcome here.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - merchantName: merchant the card was created for.
//   - anchor: the user's reference point.
//   - radiusKm: coverage radius.
// Returns:
//   - *domain.ImportJob: enqueued or pre-existing job, nil when coverage exists.
//   - bool: true if a job was newly enqueued.
//   - error: validation or store failure.
func (s *QueueService) EnsureCoverage(ctx context.Context, merchantName string, anchor domain.GeoPoint, radiusKm float64) (*domain.ImportJob, bool, error) {
	if err := domain.ValidateSearch(merchantName, anchor, radiusKm); err != nil {
		return nil, false, err
	}

	known, err := s.locations.CountWithinRadius(ctx, merchantName, anchor, radiusKm)
	if err != nil {
		return nil, false, err
	}
	if known > 0 {
		logger.CtxDebug(ctx, "Merchant %q already has %d locations within %.0f km", merchantName, known, radiusKm)
		return nil, false, nil
	}

	return s.Enqueue(ctx, EnqueueRequest{
		MerchantName: merchantName,
		Priority:     1,
		Anchor:       anchor,
		RadiusKm:     radiusKm,
		AddedReason:  domain.ReasonCardCreated,
	})
}

// Stats returns aggregated queue state.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - statusFilter: restrict samples to one status; empty means all.
// Returns:
//   - *domain.QueueStats: counts, averages, and sample rows.
//   - error: non-nil if the query fails.
func (s *QueueService) Stats(ctx context.Context, statusFilter domain.JobStatus) (*domain.QueueStats, error) {
	return s.jobs.Stats(ctx, statusFilter, 20)
}

// Remove deletes one job by ID.
func (s *QueueService) Remove(ctx context.Context, id string) error {
	return s.jobs.Delete(ctx, id)
}

// ClearCompleted purges all completed jobs.
func (s *QueueService) ClearCompleted(ctx context.Context) (int64, error) {
	return s.jobs.DeleteCompleted(ctx)
}
