package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fennelouski/cardoncue/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// dedupeRadiusKm is the coordinate proximity inside which two candidates for
// the same brand are considered the same physical location (~150 m).
const dedupeRadiusKm = 0.15

// LocationRepository handles brand and location persistence.
type LocationRepository struct {
	db *gorm.DB
}

// NewLocationRepository creates a new LocationRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *LocationRepository: repository instance bound to db.
func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// FindOrCreateBrand returns the brand for a merchant name, creating it on
// first sight. Lookup is by the case/whitespace-folded name.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - name: merchant name as received.
// Returns:
//   - *domain.Brand: existing or newly created brand.
//   - error: non-nil if lookup or insert fails.
func (r *LocationRepository) FindOrCreateBrand(ctx context.Context, name string) (*domain.Brand, error) {
	normalized := domain.NormalizeMerchantName(name)

	var brand domain.Brand
	err := r.db.WithContext(ctx).
		First(&brand, "normalized_name = ?", normalized).Error
	if err == nil {
		return &brand, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	brand = domain.Brand{
		ID:             uuid.New().String(),
		Name:           name,
		NormalizedName: normalized,
	}
	if err := r.db.WithContext(ctx).Create(&brand).Error; err != nil {
		return nil, err
	}
	return &brand, nil
}

// ListByBrand returns all locations belonging to a brand.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - brandID: brand ID.
// Returns:
//   - []domain.Location: locations for the brand.
//   - error: non-nil if the query fails.
func (r *LocationRepository) ListByBrand(ctx context.Context, brandID string) ([]domain.Location, error) {
	var locations []domain.Location
	if err := r.db.WithContext(ctx).
		Where("brand_id = ?", brandID).
		Find(&locations).Error; err != nil {
		return nil, err
	}
	return locations, nil
}

// SaveCandidates persists provider candidates for a brand, deduplicating by
// coordinate proximity: a candidate within dedupeRadiusKm of an existing
// location updates that row's contact fields instead of inserting a new one.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - brandID: brand the candidates belong to.
//   - candidates: provider-normalized location candidates.
//   - sourceProvider: name of the provider tier that produced them.
// Returns:
//   - int: number of locations now on record for this import (new + refreshed).
//   - error: non-nil if any write fails.
func (r *LocationRepository) SaveCandidates(ctx context.Context, brandID string, candidates []domain.CandidateLocation, sourceProvider string) (int, error) {
	existing, err := r.ListByBrand(ctx, brandID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	saved := 0

	for i := range candidates {
		cand := &candidates[i]

		var match *domain.Location
		for j := range existing {
			if existing[j].Point().DistanceKm(cand.Point()) <= dedupeRadiusKm {
				match = &existing[j]
				break
			}
		}

		if match != nil {
			// Refresh contact fields in place; coordinates and identity stay.
			updates := map[string]interface{}{
				"source_provider": sourceProvider,
				"imported_at":     now,
			}
			if cand.Phone != "" {
				updates["phone"] = cand.Phone
			}
			if cand.Email != "" {
				updates["email"] = cand.Email
			}
			if cand.Website != "" {
				updates["website"] = cand.Website
			}
			if len(cand.Hours.Weekly) > 0 || len(cand.Hours.Exceptions) > 0 {
				updates["hours"] = cand.Hours
			}
			if err := r.db.WithContext(ctx).Model(&domain.Location{}).
				Where("id = ?", match.ID).
				Updates(updates).Error; err != nil {
				return saved, err
			}
			saved++
			continue
		}

		loc := domain.Location{
			ID:             uuid.New().String(),
			BrandID:        brandID,
			Name:           cand.Name,
			Street:         cand.Street,
			City:           cand.City,
			State:          cand.State,
			PostalCode:     cand.PostalCode,
			Country:        cand.Country,
			Lat:            cand.Lat,
			Lon:            cand.Lon,
			Phone:          cand.Phone,
			Email:          cand.Email,
			Website:        cand.Website,
			Hours:          cand.Hours,
			SourceProvider: sourceProvider,
			ImportedAt:     now,
		}
		if err := r.db.WithContext(ctx).Create(&loc).Error; err != nil {
			return saved, err
		}
		existing = append(existing, loc)
		saved++
	}

	return saved, nil
}

// CountWithinRadius counts a merchant's known locations inside a search
// radius. Unknown merchants count as zero.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - merchantName: merchant name, folded before lookup.
//   - anchor: search center point.
//   - radiusKm: search radius in kilometers.
// Returns:
//   - int: number of locations within the radius.
//   - error: non-nil if the query fails.
func (r *LocationRepository) CountWithinRadius(ctx context.Context, merchantName string, anchor domain.GeoPoint, radiusKm float64) (int, error) {
	normalized := domain.NormalizeMerchantName(merchantName)

	var brand domain.Brand
	err := r.db.WithContext(ctx).
		First(&brand, "normalized_name = ?", normalized).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}

	locations, err := r.ListByBrand(ctx, brand.ID)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range locations {
		if anchor.DistanceKm(locations[i].Point()) <= radiusKm {
			count++
		}
	}
	return count, nil
}
