package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is one entry of the grading audit trail: auto-grades, final grades,
// peer review rounds and rubric changes. SchoolID is zero for platform admins.
type ActivityLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	SchoolID      uint              `gorm:"index" json:"school_id"`
	ActorID       uint              `gorm:"index;not null" json:"actor_id"`
	ActorRole     string            `gorm:"size:32;not null" json:"actor_role"`
	Action        string            `gorm:"size:64;not null;index" json:"action"`
	EntityType    string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID      *uint             `json:"entity_id"`
	CorrelationID string            `gorm:"size:64" json:"correlation_id"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`
}
