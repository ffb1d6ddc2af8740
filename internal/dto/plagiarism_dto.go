package dto

// PlagiarismCheckRequest submits a text for comparison against an assignment's other submissions.
// Thresholds override the configured defaults for this check only. Students send an empty body:
// their own stored submission is checked.
type PlagiarismCheckRequest struct {
	Content           string   `json:"content" validate:"omitempty,max=50000"`
	ExcludeStudentIDs []uint   `json:"exclude_student_ids" validate:"omitempty,dive,gt=0"`
	ReportThreshold   *float64 `json:"report_threshold" validate:"omitempty,gt=0,lte=100"`
	FlagThreshold     *float64 `json:"flag_threshold" validate:"omitempty,gt=0,lte=100"`
}
