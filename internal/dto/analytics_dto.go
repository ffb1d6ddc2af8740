package dto

import (
	"time"

	"github.com/noah-isme/sacel-api/internal/stats"
)

// SubjectPerformance summarises one student's grades in a subject.
type SubjectPerformance struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
	Highest float64 `json:"highest"`
	Lowest  float64 `json:"lowest"`
}

// RecentActivity is one entry of a student's latest submissions.
type RecentActivity struct {
	SubmissionID    uint       `json:"submission_id"`
	AssignmentTitle string     `json:"assignment_title"`
	Subject         string     `json:"subject"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	Grade           *float64   `json:"grade"`
	Status          string     `json:"status"`
}

// LearningInsight is an observation derived from a student's grades.
type LearningInsight struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

// StudentOverviewResponse is the cached overview of a student over a time window.
type StudentOverviewResponse struct {
	StudentID           uint                          `json:"student_id"`
	StudentName         string                        `json:"student_name"`
	WindowDays          int                           `json:"window_days"`
	TotalAssignments    int                           `json:"total_assignments"`
	AverageScore        float64                       `json:"average_score"`
	CompletionRate      float64                       `json:"completion_rate"`
	GradeTrend          string                        `json:"grade_trend"`
	SubjectsPerformance map[string]SubjectPerformance `json:"subjects_performance"`
	RecentActivity      []RecentActivity              `json:"recent_activity"`
	LearningInsights    []LearningInsight             `json:"learning_insights"`
	GeneratedAt         time.Time                     `json:"generated_at"`
	CacheHit            bool                          `json:"cache_hit"`
}

// StudentAverage ranks a student inside a class.
type StudentAverage struct {
	StudentID   uint    `json:"student_id"`
	StudentName string  `json:"student_name"`
	Average     float64 `json:"average"`
}

// SubjectBreakdown summarises the assignments of one subject.
type SubjectBreakdown struct {
	TotalAssignments     int     `json:"total_assignments"`
	CompletedSubmissions int     `json:"completed_submissions"`
	AverageScore         float64 `json:"average_score"`
	CompletionRate       float64 `json:"completion_rate"`
}

// ClassAnalyticsResponse is the cached view of a teacher's classes.
type ClassAnalyticsResponse struct {
	TeacherID          uint                        `json:"teacher_id"`
	Subject            string                      `json:"subject,omitempty"`
	GradeLevel         string                      `json:"grade_level,omitempty"`
	TotalStudents      int                         `json:"total_students"`
	TotalAssignments   int                         `json:"total_assignments"`
	AverageClassScore  float64                     `json:"average_class_score"`
	CompletionRate     float64                     `json:"completion_rate"`
	TopPerformers      []StudentAverage            `json:"top_performers"`
	StrugglingStudents []StudentAverage            `json:"struggling_students"`
	SubjectBreakdown   map[string]SubjectBreakdown `json:"subject_breakdown"`
	GradeDistribution  []stats.Bucket              `json:"grade_distribution"`
	GeneratedAt        time.Time                   `json:"generated_at"`
	CacheHit           bool                        `json:"cache_hit"`
}

// GradeLevelPerformance summarises one grade level of a school.
type GradeLevelPerformance struct {
	StudentCount     int     `json:"student_count"`
	AverageScore     float64 `json:"average_score"`
	TotalSubmissions int     `json:"total_submissions"`
}

// TeacherEffectiveness is the average score of a teacher's students.
type TeacherEffectiveness struct {
	TeacherID           uint     `json:"teacher_id"`
	TeacherName         string   `json:"teacher_name"`
	TotalAssignments    int      `json:"total_assignments"`
	TotalSubmissions    int      `json:"total_submissions"`
	AverageStudentScore float64  `json:"average_student_score"`
	SubjectsTaught      []string `json:"subjects_taught"`
}

// SchoolAnalyticsResponse is the cached rollup of a school.
type SchoolAnalyticsResponse struct {
	SchoolID             uint                             `json:"school_id"`
	TotalStudents        int                              `json:"total_students"`
	TotalTeachers        int                              `json:"total_teachers"`
	TotalAssignments     int                              `json:"total_assignments"`
	SchoolAverage        float64                          `json:"school_average"`
	GradePerformance     map[string]GradeLevelPerformance `json:"grade_performance"`
	SubjectPerformance   map[string]SubjectBreakdown      `json:"subject_performance"`
	TeacherEffectiveness []TeacherEffectiveness           `json:"teacher_effectiveness"`
	GeneratedAt          time.Time                        `json:"generated_at"`
	CacheHit             bool                             `json:"cache_hit"`
}

// SubmissionStats counts the submissions of an assignment by status.
type SubmissionStats struct {
	Total          int     `json:"total_submissions"`
	Submitted      int     `json:"submitted"`
	Graded         int     `json:"graded"`
	Draft          int     `json:"draft"`
	Late           int     `json:"late"`
	OnTime         int     `json:"on_time"`
	SubmissionRate float64 `json:"submission_rate"`
}

// GradeStatistics describes the grade spread of an assignment.
type GradeStatistics struct {
	Count        int            `json:"count"`
	Average      float64        `json:"average"`
	Median       float64        `json:"median"`
	Min          float64        `json:"min"`
	Max          float64        `json:"max"`
	StdDev       float64        `json:"std_dev"`
	Distribution []stats.Bucket `json:"distribution"`
}

// TimelinePoint counts submissions received on a day.
type TimelinePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// PeerReviewStats summarises the peer review round of an assignment.
type PeerReviewStats struct {
	TotalPairings     int     `json:"total_pairings"`
	CompletedPairings int     `json:"completed_pairings"`
	CompletionRate    float64 `json:"completion_rate"`
	AverageOverall    float64 `json:"average_overall"`
}

// AssignmentAnalyticsResponse is the cached statistics of one assignment.
type AssignmentAnalyticsResponse struct {
	AssignmentID  uint            `json:"assignment_id"`
	Title         string          `json:"title"`
	EligibleCount int             `json:"eligible_students"`
	Submissions   SubmissionStats `json:"submission_stats"`
	Grades        GradeStatistics `json:"grade_statistics"`
	Timeline      []TimelinePoint `json:"timeline"`
	PeerReview    PeerReviewStats `json:"peer_review"`
	GeneratedAt   time.Time       `json:"generated_at"`
	CacheHit      bool            `json:"cache_hit"`
}

// Recommendation is an actionable study suggestion.
type Recommendation struct {
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

// AnalyticsInvalidateRequest names the aggregates to drop from the cache.
type AnalyticsInvalidateRequest struct {
	StudentID    *uint `json:"student_id" validate:"omitempty,gt=0"`
	TeacherID    *uint `json:"teacher_id" validate:"omitempty,gt=0"`
	SchoolID     *uint `json:"school_id" validate:"omitempty,gt=0"`
	AssignmentID *uint `json:"assignment_id" validate:"omitempty,gt=0"`
}

// AnalyticsInvalidateResponse reports how many cache entries were removed.
type AnalyticsInvalidateResponse struct {
	Deleted int `json:"deleted"`
}
