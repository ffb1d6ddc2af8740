package dto

import (
	"github.com/noah-isme/sacel-api/internal/rubric"
)

// RubricBandRequest describes one performance level of a criteria.
type RubricBandRequest struct {
	Level       string   `json:"level" validate:"required,oneof=excellent good satisfactory needs_improvement"`
	Description string   `json:"description" validate:"required"`
	Min         int      `json:"min" validate:"gte=0"`
	Max         int      `json:"max" validate:"gte=0"`
	Keywords    []string `json:"keywords" validate:"omitempty,dive,required"`
}

// RubricCriteriaRequest describes a criteria and its four bands.
type RubricCriteriaRequest struct {
	Name        string              `json:"name" validate:"required,max=255"`
	Description string              `json:"description"`
	Points      int                 `json:"points" validate:"required,gt=0"`
	Bands       []RubricBandRequest `json:"bands" validate:"required,len=4,dive"`
}

// RubricCreateRequest is the payload of a teacher-defined rubric.
type RubricCreateRequest struct {
	Slug        string                  `json:"slug" validate:"omitempty,max=64"`
	Title       string                  `json:"title" validate:"required,max=255"`
	Description string                  `json:"description"`
	TotalPoints *int                    `json:"total_points" validate:"omitempty,gt=0"`
	Criteria    []RubricCriteriaRequest `json:"criteria" validate:"required,min=1,dive"`
}

// RubricResponse serializes a rubric with its computed total.
type RubricResponse struct {
	ID          uint              `json:"id"`
	Slug        string            `json:"slug,omitempty"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	TotalPoints int               `json:"total_points"`
	Criteria    []rubric.Criteria `json:"criteria"`
}

// NewRubricResponse converts a domain rubric into its response form.
func NewRubricResponse(r rubric.Rubric) RubricResponse {
	return RubricResponse{
		ID:          r.ID,
		Slug:        r.Slug,
		Title:       r.Title,
		Description: r.Description,
		TotalPoints: r.TotalPoints(),
		Criteria:    r.Criteria,
	}
}
