package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/avelio/skillforge-api/internal/models"
)

// UserRepository exposes the narrow user lookup the pipeline needs.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
}

// NewUserRepository constructs a user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}
