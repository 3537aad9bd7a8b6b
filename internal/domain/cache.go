package domain

import "time"

// Cache entry types. Each type namespaces its own key space.
const (
	CacheTypeResolution = "location_resolution"
)

// CacheEntry is a content-keyed cached payload with optional expiry.
// Uniqueness is per (type, key); the key is a digest of normalized request
// parameters, so distinct jobs for the same merchant/area share one entry.
type CacheEntry struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	Type      string     `gorm:"type:text;not null;uniqueIndex:idx_cache_type_key" json:"type"`
	Key       string     `gorm:"type:text;not null;uniqueIndex:idx_cache_type_key" json:"key"`
	Payload   string     `gorm:"type:text" json:"payload"`
	Metadata  string     `gorm:"type:text" json:"metadata,omitempty"`
	HitCount  int64      `gorm:"default:0" json:"hit_count"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`
}

// TableName returns the database table name for CacheEntry.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (CacheEntry) TableName() string {
	return "resolution_cache"
}

// Expired reports whether the entry is past its expiry at the given instant.
// Entries with a nil ExpiresAt never expire.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}
