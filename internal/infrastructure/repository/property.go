package repository

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/amirfarid/guardpost/internal/domain"
	"github.com/amirfarid/guardpost/internal/infrastructure/database/models"
)

// PropertyRepository resolves properties with a short-lived in-process
// cache; the property table is read-mostly and hit on every registration.
type PropertyRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

func NewPropertyRepository(db *gorm.DB) *PropertyRepository {
	return &PropertyRepository{
		db:    db,
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

func (r *PropertyRepository) Get(ctx context.Context, id, communityID string) (domain.Property, error) {
	if cached, ok := r.cache.Get(id); ok {
		prop := cached.(domain.Property)
		// community scoping applies to cached hits too
		if prop.CommunityID != communityID {
			return domain.Property{}, domain.NotFoundError{Resource: "property"}
		}
		return prop, nil
	}

	var m models.Property
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return domain.Property{}, domain.NotFoundError{Resource: "property"}
	}
	if err != nil {
		return domain.Property{}, domain.StoreUnavailableError{Op: "property fetch", Err: err}
	}

	prop := domain.Property{
		ID:          m.ID,
		CommunityID: m.CommunityID,
		UnitNumber:  m.UnitNumber,
		Street:      m.Street,
	}
	r.cache.SetDefault(id, prop)

	if prop.CommunityID != communityID {
		return domain.Property{}, domain.NotFoundError{Resource: "property"}
	}
	return prop, nil
}
