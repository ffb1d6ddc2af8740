package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/sacel-api/internal/models"
)

// Models lists every table owned by the service, parents first.
func Models() []interface{} {
	return []interface{}{
		&models.School{},
		&models.User{},
		&models.RubricRecord{},
		&models.Assignment{},
		&models.Submission{},
		&models.SubmissionGradeHistory{},
		&models.GradeResult{},
		&models.PeerReviewRound{},
		&models.PeerReviewPairing{},
		&models.PeerReview{},
		&models.ActivityLog{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
