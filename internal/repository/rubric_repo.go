package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/sacel-api/internal/models"
)

// RubricRepository persists rubric definitions.
type RubricRepository interface {
	Create(ctx context.Context, record *models.RubricRecord) error
	GetByID(ctx context.Context, id uint) (models.RubricRecord, error)
	GetBySlug(ctx context.Context, slug string) (models.RubricRecord, error)
	List(ctx context.Context) ([]models.RubricRecord, error)
}

type rubricRepository struct {
	db *gorm.DB
}

// NewRubricRepository constructs the rubric repository.
func NewRubricRepository(db *gorm.DB) RubricRepository {
	return &rubricRepository{db: db}
}

func (r *rubricRepository) Create(ctx context.Context, record *models.RubricRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *rubricRepository) GetByID(ctx context.Context, id uint) (models.RubricRecord, error) {
	var record models.RubricRecord
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return models.RubricRecord{}, err
	}
	return record, nil
}

func (r *rubricRepository) GetBySlug(ctx context.Context, slug string) (models.RubricRecord, error) {
	var record models.RubricRecord
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&record).Error; err != nil {
		return models.RubricRecord{}, err
	}
	return record, nil
}

func (r *rubricRepository) List(ctx context.Context) ([]models.RubricRecord, error) {
	var records []models.RubricRecord
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
