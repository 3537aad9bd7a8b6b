package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// TimeRange is one open/close span within a day, in "HH:MM" local time.
type TimeRange struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// HoursException overrides the weekly schedule for a single date
// (holiday closure, special hours). An empty Ranges slice means closed.
type HoursException struct {
	Date   string      `json:"date"` // YYYY-MM-DD
	Ranges []TimeRange `json:"ranges"`
}

// OpeningHours is a structured weekly schedule plus dated exceptions,
// stored as a JSON column.
type OpeningHours struct {
	// Weekly maps lowercase weekday names ("monday".."sunday") to open spans.
	// A missing day means closed.
	Weekly     map[string][]TimeRange `json:"weekly,omitempty"`
	Exceptions []HoursException       `json:"exceptions,omitempty"`
}

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded representation of the schedule.
//   - error: non-nil if marshaling fails.
func (h OpeningHours) Value() (driver.Value, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (h *OpeningHours) Scan(value interface{}) error {
	if value == nil {
		*h = OpeningHours{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan OpeningHours")
		}
		bytes = []byte(str)
	}
	if len(bytes) == 0 {
		*h = OpeningHours{}
		return nil
	}
	return json.Unmarshal(bytes, h)
}

// CandidateLocation is a provider-normalized location candidate. Providers
// emit candidates in this one shape regardless of their native schema; the
// processor persists them as Location rows.
type CandidateLocation struct {
	Name       string       `json:"name"`
	Street     string       `json:"street,omitempty"`
	City       string       `json:"city,omitempty"`
	State      string       `json:"state,omitempty"`
	PostalCode string       `json:"postal_code,omitempty"`
	Country    string       `json:"country,omitempty"`
	Lat        float64      `json:"lat"`
	Lon        float64      `json:"lon"`
	Phone      string       `json:"phone,omitempty"`
	Email      string       `json:"email,omitempty"`
	Website    string       `json:"website,omitempty"`
	Hours      OpeningHours `json:"hours,omitempty"`
}

// Point returns the candidate's coordinates as a GeoPoint.
func (c *CandidateLocation) Point() GeoPoint {
	return GeoPoint{Lat: c.Lat, Lon: c.Lon}
}

// Location represents a persisted physical business location belonging to a brand.
type Location struct {
	ID             string       `gorm:"type:text;primaryKey" json:"id"`
	BrandID        string       `gorm:"type:text;not null;index:idx_locations_brand" json:"brand_id"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	Street         string       `gorm:"type:text" json:"street,omitempty"`
	City           string       `gorm:"type:text" json:"city,omitempty"`
	State          string       `gorm:"type:text" json:"state,omitempty"`
	PostalCode     string       `gorm:"type:text" json:"postal_code,omitempty"`
	Country        string       `gorm:"type:text" json:"country,omitempty"`
	Lat            float64      `gorm:"index:idx_locations_coords" json:"lat"`
	Lon            float64      `gorm:"index:idx_locations_coords" json:"lon"`
	Phone          string       `gorm:"type:text" json:"phone,omitempty"`
	Email          string       `gorm:"type:text" json:"email,omitempty"`
	Website        string       `gorm:"type:text" json:"website,omitempty"`
	Hours          OpeningHours `gorm:"type:text" json:"hours"`
	Verified       bool         `gorm:"default:false" json:"verified"`
	SourceProvider string       `gorm:"type:text" json:"source_provider"`
	ImportedAt     time.Time    `json:"imported_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// TableName returns the database table name for Location.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Location) TableName() string {
	return "locations"
}

// Point returns the location's coordinates as a GeoPoint.
func (l *Location) Point() GeoPoint {
	return GeoPoint{Lat: l.Lat, Lon: l.Lon}
}
