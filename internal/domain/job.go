package domain

import "time"

// JobStatus represents the lifecycle state of an import job.
// Values include JobStatusPending, JobStatusProcessing, JobStatusCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Reasons a job may be enqueued for.
const (
	ReasonManual      = "manual"
	ReasonBackfill    = "backfill"
	ReasonCardCreated = "card_created"
)

// ImportJob represents one pending merchant-location resolution in the durable queue.
// Jobs move pending → processing → completed/failed, with failed attempts below the
// max returning to pending. Rows are never deleted automatically.
type ImportJob struct {
	ID           string    `gorm:"type:text;primaryKey" json:"id"`
	MerchantName string    `gorm:"type:text;not null" json:"merchant_name"`
	MerchantKey  string    `gorm:"type:text;not null;index:idx_import_jobs_dedupe" json:"-"`
	AreaKey      string    `gorm:"type:text;not null;index:idx_import_jobs_dedupe" json:"-"`
	AnchorLat    float64   `json:"anchor_lat"`
	AnchorLon    float64   `json:"anchor_lon"`
	RadiusKm     float64   `json:"radius_km"`
	Priority     int       `gorm:"default:100;index:idx_import_jobs_claim" json:"priority"`
	Status       JobStatus `gorm:"type:text;default:pending;index:idx_import_jobs_status" json:"status"`
	Attempts     int       `gorm:"default:0" json:"attempts"`
	MaxAttempts  int       `gorm:"default:3" json:"max_attempts"`
	LastError    string    `json:"last_error,omitempty"`
	AddedReason  string    `gorm:"type:text" json:"added_reason"`
	// ClaimToken ties a processing row to the batch run that claimed it.
	ClaimToken     string     `gorm:"type:text;index" json:"-"`
	LocationsFound int        `gorm:"default:0" json:"locations_found"`
	DataSource     string     `gorm:"type:text" json:"data_source,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the database table name for ImportJob.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (ImportJob) TableName() string {
	return "import_jobs"
}

// Anchor returns the job's anchor coordinates as a GeoPoint.
func (j *ImportJob) Anchor() GeoPoint {
	return GeoPoint{Lat: j.AnchorLat, Lon: j.AnchorLon}
}

// QueueStats aggregates the state of the import queue for status queries.
type QueueStats struct {
	CountsByStatus  map[JobStatus]int64 `json:"counts_by_status"`
	AvgAttempts     float64             `json:"avg_attempts"`
	AvgLocations    float64             `json:"avg_locations_found"`
	OldestPendingAt *time.Time          `json:"oldest_pending_at,omitempty"`
	NewestPendingAt *time.Time          `json:"newest_pending_at,omitempty"`
	Samples         []ImportJob         `json:"samples"`
}
