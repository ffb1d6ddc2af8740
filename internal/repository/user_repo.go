package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sacel-api/internal/models"
)

// UserRepository reads school members.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (models.User, error)
	ListBySchool(ctx context.Context, schoolID uint, role string) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs the user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *userRepository) ListBySchool(ctx context.Context, schoolID uint, role string) ([]models.User, error) {
	query := r.db.WithContext(ctx).Where("school_id = ?", schoolID)
	if role != "" {
		query = query.Where("role = ?", role)
	}

	var users []models.User
	if err := query.Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}
