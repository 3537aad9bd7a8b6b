package domain

import "time"

// Brand represents a named business entity that issues cards and owns
// zero or more physical locations.
type Brand struct {
	ID             string    `gorm:"type:text;primaryKey" json:"id"`
	Name           string    `gorm:"type:text;not null" json:"name"`
	NormalizedName string    `gorm:"type:text;not null;uniqueIndex:idx_brands_normalized" json:"-"`
	Website        string    `gorm:"type:text" json:"website,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for Brand.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Brand) TableName() string {
	return "brands"
}
