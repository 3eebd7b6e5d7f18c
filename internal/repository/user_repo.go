package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/artdirector-api/internal/models"
)

// UserRepository persists identity profiles.
type UserRepository interface {
	GetBySubject(ctx context.Context, subject string) (models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, subject, role string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a repository for user profiles.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetBySubject(ctx context.Context, subject string) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("subject = ?", subject).First(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) UpdateRole(ctx context.Context, subject, role string) error {
	tx := r.db.WithContext(ctx).Model(&models.User{}).Where("subject = ?", subject).Update("role", role)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
