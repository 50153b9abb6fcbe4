package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/amirfarid/guardpost/internal/domain"
	"github.com/amirfarid/guardpost/internal/infrastructure/database/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Get(ctx context.Context, id string) (domain.User, error) {
	var m models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	if err != nil {
		return domain.User{}, domain.StoreUnavailableError{Op: "user fetch", Err: err}
	}
	return userToDomain(m), nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var m models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).Take(&m).Error
	if err == gorm.ErrRecordNotFound {
		return domain.User{}, domain.NotFoundError{Resource: "user"}
	}
	if err != nil {
		return domain.User{}, domain.StoreUnavailableError{Op: "user fetch", Err: err}
	}
	return userToDomain(m), nil
}

func userToDomain(m models.User) domain.User {
	return domain.User{
		ID:           m.ID,
		CommunityID:  m.CommunityID,
		PropertyID:   m.PropertyID,
		Email:        m.Email,
		FullName:     m.FullName,
		Phone:        m.Phone,
		Role:         m.Role,
		PasswordHash: m.PasswordHash,
	}
}
