package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/sacel-api/internal/cache"
	"github.com/noah-isme/sacel-api/internal/dto"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/repository"
	"github.com/noah-isme/sacel-api/internal/stats"
)

const (
	// DefaultWindowDays is the student overview window when none is requested.
	DefaultWindowDays = 30
	// MaxWindowDays bounds the student overview window.
	MaxWindowDays = 365

	recentActivityLimit = 10
	rankingLimit        = 5
	recentGradesWindow  = 5
	generalSubject      = "General"
)

// AnalyticsScope names the aggregates touched by a change. Zero fields are ignored.
type AnalyticsScope struct {
	StudentID    uint
	TeacherID    uint
	SchoolID     uint
	AssignmentID uint
}

// AnalyticsInvalidator drops cached aggregates.
type AnalyticsInvalidator interface {
	Invalidate(ctx context.Context, scope AnalyticsScope) (int, error)
}

// AnalyticsTTLs configures how long each aggregate stays cached.
type AnalyticsTTLs struct {
	Student    time.Duration
	Class      time.Duration
	School     time.Duration
	Assignment time.Duration
}

// AnalyticsService computes cached student, class, school and assignment aggregates.
type AnalyticsService interface {
	AnalyticsInvalidator
	StudentOverview(ctx context.Context, studentID uint, windowDays int, actor ActivityActor) (dto.StudentOverviewResponse, error)
	ClassAnalytics(ctx context.Context, teacherID uint, subject, gradeLevel string, actor ActivityActor) (dto.ClassAnalyticsResponse, error)
	SchoolAnalytics(ctx context.Context, schoolID uint, actor ActivityActor) (dto.SchoolAnalyticsResponse, error)
	AssignmentAnalytics(ctx context.Context, assignmentID uint, actor ActivityActor) (dto.AssignmentAnalyticsResponse, error)
	LearningRecommendations(ctx context.Context, studentID uint, actor ActivityActor) ([]dto.Recommendation, error)
	HandleGradeEvent(ctx context.Context, event GradeEvent)
}

// AnalyticsDependencies groups the collaborators of the analytics service.
type AnalyticsDependencies struct {
	Analytics   repository.AnalyticsRepository
	Assignments repository.AssignmentRepository
	Users       repository.UserRepository
	PeerReviews repository.PeerReviewRepository
	Cache       *cache.Store
	TTLs        AnalyticsTTLs
}

type analyticsService struct {
	analytics   repository.AnalyticsRepository
	assignments repository.AssignmentRepository
	users       repository.UserRepository
	peerReviews repository.PeerReviewRepository
	cache       *cache.Store
	ttls        AnalyticsTTLs
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAnalyticsService constructs the analytics aggregator. Missing TTLs fall back to
// one hour for students and schools, 30 minutes for classes and 5 minutes for assignments.
func NewAnalyticsService(deps AnalyticsDependencies, logger zerolog.Logger) AnalyticsService {
	ttls := deps.TTLs
	if ttls.Student <= 0 {
		ttls.Student = time.Hour
	}
	if ttls.Class <= 0 {
		ttls.Class = 30 * time.Minute
	}
	if ttls.School <= 0 {
		ttls.School = time.Hour
	}
	if ttls.Assignment <= 0 {
		ttls.Assignment = 5 * time.Minute
	}

	return &analyticsService{
		analytics:   deps.Analytics,
		assignments: deps.Assignments,
		users:       deps.Users,
		peerReviews: deps.PeerReviews,
		cache:       deps.Cache,
		ttls:        ttls,
		logger:      logger.With().Str("component", "analytics_service").Logger(),
		now:         time.Now,
	}
}

func (s *analyticsService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	tracer := otel.Tracer("github.com/noah-isme/sacel-api/internal/service/analytics")
	return tracer.Start(ctx, name)
}

func (s *analyticsService) cached(ctx context.Context, span trace.Span, scope, key string, dest interface{}) bool {
	if !s.cache.GetJSON(ctx, scope, key, dest) {
		return false
	}
	span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
	return true
}

func (s *analyticsService) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if err := s.cache.SetJSON(ctx, key, value, ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to cache analytics")
	}
}

func (s *analyticsService) loadStudent(ctx context.Context, studentID uint) (models.User, error) {
	user, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, persistenceError("load student", err)
	}
	if user.Role != models.RoleStudent {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *analyticsService) StudentOverview(ctx context.Context, studentID uint, windowDays int, actor ActivityActor) (dto.StudentOverviewResponse, error) {
	ctx, span := s.startSpan(ctx, "analytics.student_overview")
	span.SetAttributes(attribute.Int64("analytics.student_id", int64(studentID)))
	defer span.End()

	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if windowDays > MaxWindowDays {
		return dto.StudentOverviewResponse{}, validationError("window must not exceed %d days", MaxWindowDays)
	}

	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		span.RecordError(err)
		return dto.StudentOverviewResponse{}, err
	}
	if !canViewStudent(actor, student) {
		return dto.StudentOverviewResponse{}, ErrPermissionDenied
	}

	key := cache.StudentAnalyticsKey(studentID, windowDays)
	var cachedResponse dto.StudentOverviewResponse
	if s.cached(ctx, span, cache.ScopeStudentAnalytics, key, &cachedResponse) {
		cachedResponse.CacheHit = true
		return cachedResponse, nil
	}

	response, err := s.computeStudentOverview(ctx, student, windowDays)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "student_overview_failed")
		return dto.StudentOverviewResponse{}, err
	}

	s.store(ctx, key, response, s.ttls.Student)
	return response, nil
}

func (s *analyticsService) computeStudentOverview(ctx context.Context, student models.User, windowDays int) (dto.StudentOverviewResponse, error) {
	now := s.now().UTC()
	since := now.AddDate(0, 0, -windowDays)

	graded, err := s.analytics.ListSubmissions(ctx, repository.AnalyticsFilter{
		StudentID:      &student.ID,
		SubmittedSince: &since,
		Statuses:       []string{models.SubmissionStatusGraded},
	})
	if err != nil {
		return dto.StudentOverviewResponse{}, persistenceError("list graded submissions", err)
	}

	due, err := s.assignments.Count(ctx, repository.AssignmentFilter{
		SchoolID:   &student.SchoolID,
		GradeLevel: student.GradeLevel,
		DueFrom:    &since,
		DueUntil:   &now,
	})
	if err != nil {
		return dto.StudentOverviewResponse{}, persistenceError("count due assignments", err)
	}

	all, err := s.analytics.ListSubmissions(ctx, repository.AnalyticsFilter{StudentID: &student.ID})
	if err != nil {
		return dto.StudentOverviewResponse{}, persistenceError("list submissions", err)
	}

	grades := gradesOf(graded)
	average := stats.Round(stats.Mean(grades), 2)
	subjects := subjectPerformance(graded)

	return dto.StudentOverviewResponse{
		StudentID:           student.ID,
		StudentName:         student.Name,
		WindowDays:          windowDays,
		TotalAssignments:    len(grades),
		AverageScore:        average,
		CompletionRate:      rate(len(grades), int(due)),
		GradeTrend:          stats.ClassifyTrend(grades),
		SubjectsPerformance: subjects,
		RecentActivity:      recentActivity(all, recentActivityLimit),
		LearningInsights:    learningInsights(subjects, grades, average),
		GeneratedAt:         now,
	}, nil
}

func (s *analyticsService) ClassAnalytics(ctx context.Context, teacherID uint, subject, gradeLevel string, actor ActivityActor) (dto.ClassAnalyticsResponse, error) {
	ctx, span := s.startSpan(ctx, "analytics.class")
	span.SetAttributes(attribute.Int64("analytics.teacher_id", int64(teacherID)))
	defer span.End()

	teacher, err := s.users.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ClassAnalyticsResponse{}, ErrUserNotFound
		}
		span.RecordError(err)
		return dto.ClassAnalyticsResponse{}, persistenceError("load teacher", err)
	}
	if teacher.Role != models.RoleTeacher {
		return dto.ClassAnalyticsResponse{}, ErrUserNotFound
	}
	if !actor.IsAdmin() && !(strings.EqualFold(actor.Role, models.RoleTeacher) && actor.ID == teacherID) {
		return dto.ClassAnalyticsResponse{}, ErrPermissionDenied
	}

	subject = strings.TrimSpace(subject)
	gradeLevel = strings.TrimSpace(gradeLevel)
	key := cache.ClassAnalyticsKey(teacherID, subject, gradeLevel)
	var cachedResponse dto.ClassAnalyticsResponse
	if s.cached(ctx, span, cache.ScopeClassAnalytics, key, &cachedResponse) {
		cachedResponse.CacheHit = true
		return cachedResponse, nil
	}

	assignments, err := s.assignments.List(ctx, repository.AssignmentFilter{
		TeacherID:  &teacherID,
		Subject:    subject,
		GradeLevel: gradeLevel,
	})
	if err != nil {
		span.SetStatus(codes.Error, "class_assignments_failed")
		return dto.ClassAnalyticsResponse{}, persistenceError("list assignments", err)
	}

	submissions, err := s.analytics.ListSubmissions(ctx, repository.AnalyticsFilter{
		TeacherID:  &teacherID,
		Subject:    subject,
		GradeLevel: gradeLevel,
		Statuses:   []string{models.SubmissionStatusSubmitted, models.SubmissionStatusGraded},
	})
	if err != nil {
		span.SetStatus(codes.Error, "class_submissions_failed")
		return dto.ClassAnalyticsResponse{}, persistenceError("list submissions", err)
	}

	students := distinctStudents(submissions)
	graded := gradedOnly(submissions)
	grades := gradesOf(graded)
	averages := studentAverages(graded)

	top := append([]dto.StudentAverage(nil), averages...)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Average > top[j].Average })
	bottom := append([]dto.StudentAverage(nil), averages...)
	sort.SliceStable(bottom, func(i, j int) bool { return bottom[i].Average < bottom[j].Average })

	response := dto.ClassAnalyticsResponse{
		TeacherID:          teacherID,
		Subject:            subject,
		GradeLevel:         gradeLevel,
		TotalStudents:      students,
		TotalAssignments:   len(assignments),
		AverageClassScore:  stats.Round(stats.Mean(grades), 2),
		CompletionRate:     rate(distinctHandIns(submissions), len(assignments)*students),
		TopPerformers:      limitAverages(top, rankingLimit),
		StrugglingStudents: limitAverages(bottom, rankingLimit),
		SubjectBreakdown:   subjectBreakdown(assignments, graded, students),
		GradeDistribution:  stats.Distribution(grades),
		GeneratedAt:        s.now().UTC(),
	}

	s.store(ctx, key, response, s.ttls.Class)
	return response, nil
}

func (s *analyticsService) SchoolAnalytics(ctx context.Context, schoolID uint, actor ActivityActor) (dto.SchoolAnalyticsResponse, error) {
	ctx, span := s.startSpan(ctx, "analytics.school")
	span.SetAttributes(attribute.Int64("analytics.school_id", int64(schoolID)))
	defer span.End()

	if !canViewSchool(actor, schoolID) {
		return dto.SchoolAnalyticsResponse{}, ErrCrossSchoolAccess
	}

	key := cache.SchoolAnalyticsKey(schoolID)
	var cachedResponse dto.SchoolAnalyticsResponse
	if s.cached(ctx, span, cache.ScopeSchoolAnalytics, key, &cachedResponse) {
		cachedResponse.CacheHit = true
		return cachedResponse, nil
	}

	students, err := s.users.ListBySchool(ctx, schoolID, models.RoleStudent)
	if err != nil {
		span.SetStatus(codes.Error, "school_students_failed")
		return dto.SchoolAnalyticsResponse{}, persistenceError("list students", err)
	}
	teachers, err := s.users.ListBySchool(ctx, schoolID, models.RoleTeacher)
	if err != nil {
		span.SetStatus(codes.Error, "school_teachers_failed")
		return dto.SchoolAnalyticsResponse{}, persistenceError("list teachers", err)
	}
	assignments, err := s.assignments.List(ctx, repository.AssignmentFilter{SchoolID: &schoolID})
	if err != nil {
		span.SetStatus(codes.Error, "school_assignments_failed")
		return dto.SchoolAnalyticsResponse{}, persistenceError("list assignments", err)
	}
	submissions, err := s.analytics.ListSubmissions(ctx, repository.AnalyticsFilter{
		SchoolID: &schoolID,
		Statuses: []string{models.SubmissionStatusGraded},
	})
	if err != nil {
		span.SetStatus(codes.Error, "school_submissions_failed")
		return dto.SchoolAnalyticsResponse{}, persistenceError("list submissions", err)
	}

	graded := gradedOnly(submissions)
	response := dto.SchoolAnalyticsResponse{
		SchoolID:             schoolID,
		TotalStudents:        len(students),
		TotalTeachers:        len(teachers),
		TotalAssignments:     len(assignments),
		SchoolAverage:        stats.Round(stats.Mean(gradesOf(graded)), 2),
		GradePerformance:     gradeLevelPerformance(students, graded),
		SubjectPerformance:   subjectBreakdown(assignments, graded, len(students)),
		TeacherEffectiveness: teacherEffectiveness(teachers, assignments, graded),
		GeneratedAt:          s.now().UTC(),
	}

	s.store(ctx, key, response, s.ttls.School)
	return response, nil
}

func (s *analyticsService) AssignmentAnalytics(ctx context.Context, assignmentID uint, actor ActivityActor) (dto.AssignmentAnalyticsResponse, error) {
	ctx, span := s.startSpan(ctx, "analytics.assignment")
	span.SetAttributes(attribute.Int64("analytics.assignment_id", int64(assignmentID)))
	defer span.End()

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentAnalyticsResponse{}, ErrAssignmentNotFound
		}
		span.RecordError(err)
		return dto.AssignmentAnalyticsResponse{}, persistenceError("load assignment", err)
	}
	if !canManageAssignment(actor, assignment) {
		return dto.AssignmentAnalyticsResponse{}, ErrPermissionDenied
	}

	key := cache.AssignmentAnalyticsKey(assignmentID)
	var cachedResponse dto.AssignmentAnalyticsResponse
	if s.cached(ctx, span, cache.ScopeAssignmentAnalytics, key, &cachedResponse) {
		cachedResponse.CacheHit = true
		return cachedResponse, nil
	}

	students, err := s.users.ListBySchool(ctx, assignment.SchoolID, models.RoleStudent)
	if err != nil {
		span.SetStatus(codes.Error, "assignment_students_failed")
		return dto.AssignmentAnalyticsResponse{}, persistenceError("list students", err)
	}
	eligible := 0
	for _, student := range students {
		if assignment.GradeLevel == "" || student.GradeLevel == assignment.GradeLevel {
			eligible++
		}
	}

	submissions, err := s.analytics.ListSubmissions(ctx, repository.AnalyticsFilter{AssignmentID: &assignmentID})
	if err != nil {
		span.SetStatus(codes.Error, "assignment_submissions_failed")
		return dto.AssignmentAnalyticsResponse{}, persistenceError("list submissions", err)
	}

	peer, err := s.peerReviewStats(ctx, assignmentID)
	if err != nil {
		span.SetStatus(codes.Error, "assignment_peer_reviews_failed")
		return dto.AssignmentAnalyticsResponse{}, err
	}

	grades := gradesOf(gradedOnly(submissions))
	minGrade, maxGrade := stats.MinMax(grades)
	response := dto.AssignmentAnalyticsResponse{
		AssignmentID:  assignment.ID,
		Title:         assignment.Title,
		EligibleCount: eligible,
		Submissions:   submissionStats(assignment, submissions, eligible),
		Grades: dto.GradeStatistics{
			Count:        len(grades),
			Average:      stats.Round(stats.Mean(grades), 2),
			Median:       stats.Round(stats.Median(grades), 2),
			Min:          minGrade,
			Max:          maxGrade,
			StdDev:       stats.Round(stats.StdDev(grades), 2),
			Distribution: stats.Distribution(grades),
		},
		Timeline:    submissionTimeline(submissions),
		PeerReview:  peer,
		GeneratedAt: s.now().UTC(),
	}

	s.store(ctx, key, response, s.ttls.Assignment)
	return response, nil
}

func (s *analyticsService) peerReviewStats(ctx context.Context, assignmentID uint) (dto.PeerReviewStats, error) {
	if s.peerReviews == nil {
		return dto.PeerReviewStats{}, nil
	}
	pairings, err := s.peerReviews.ListPairings(ctx, assignmentID)
	if err != nil {
		return dto.PeerReviewStats{}, persistenceError("list pairings", err)
	}
	reviews, err := s.peerReviews.ListReviewsForAssignment(ctx, assignmentID)
	if err != nil {
		return dto.PeerReviewStats{}, persistenceError("list peer reviews", err)
	}

	completed := 0
	for _, pairing := range pairings {
		if pairing.Status == models.PairingStatusCompleted {
			completed++
		}
	}
	overall := make([]float64, 0, len(reviews))
	for _, review := range reviews {
		overall = append(overall, review.OverallScore)
	}

	return dto.PeerReviewStats{
		TotalPairings:     len(pairings),
		CompletedPairings: completed,
		CompletionRate:    rate(completed, len(pairings)),
		AverageOverall:    stats.Round(stats.Mean(overall), 2),
	}, nil
}

// LearningRecommendations derives study suggestions from the default 30 day overview.
func (s *analyticsService) LearningRecommendations(ctx context.Context, studentID uint, actor ActivityActor) ([]dto.Recommendation, error) {
	ctx, span := s.startSpan(ctx, "analytics.recommendations")
	span.SetAttributes(attribute.Int64("analytics.student_id", int64(studentID)))
	defer span.End()

	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !canViewStudent(actor, student) {
		return nil, ErrPermissionDenied
	}

	key := cache.RecommendationsKey(studentID)
	var cachedRecommendations []dto.Recommendation
	if s.cached(ctx, span, cache.ScopeRecommendations, key, &cachedRecommendations) {
		return cachedRecommendations, nil
	}

	overview, err := s.StudentOverview(ctx, studentID, DefaultWindowDays, actor)
	if err != nil {
		return nil, err
	}

	recommendations := recommendationsFor(overview)
	s.store(ctx, key, recommendations, s.ttls.Student)
	return recommendations, nil
}

// Invalidate deletes every cached aggregate in scope and reports how many keys went away.
func (s *analyticsService) Invalidate(ctx context.Context, scope AnalyticsScope) (int, error) {
	patterns := make([]string, 0, 5)
	if scope.StudentID != 0 {
		patterns = append(patterns, cache.StudentAnalyticsPattern(scope.StudentID), cache.RecommendationsKey(scope.StudentID))
	}
	if scope.TeacherID != 0 {
		patterns = append(patterns, cache.ClassAnalyticsPattern(scope.TeacherID))
	}
	if scope.SchoolID != 0 {
		patterns = append(patterns, cache.SchoolAnalyticsKey(scope.SchoolID))
	}
	if scope.AssignmentID != 0 {
		patterns = append(patterns, cache.AssignmentAnalyticsKey(scope.AssignmentID))
	}

	deleted := 0
	var errs []error
	for _, pattern := range patterns {
		n, err := s.cache.DeletePattern(ctx, pattern)
		deleted += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return deleted, errors.Join(errs...)
	}
	return deleted, nil
}

// HandleGradeEvent drops the aggregates of a grade committed on another node.
func (s *analyticsService) HandleGradeEvent(ctx context.Context, event GradeEvent) {
	deleted, err := s.Invalidate(ctx, AnalyticsScope{
		StudentID:    event.StudentID,
		TeacherID:    event.TeacherID,
		SchoolID:     event.SchoolID,
		AssignmentID: event.AssignmentID,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", event.SubmissionID).Msg("failed to invalidate analytics for grade event")
		return
	}
	s.logger.Debug().
		Uint("submission_id", event.SubmissionID).
		Int("deleted", deleted).
		Msg("analytics invalidated by grade event")
}

func gradedOnly(submissions []models.Submission) []models.Submission {
	graded := make([]models.Submission, 0, len(submissions))
	for _, submission := range submissions {
		if submission.IsGraded() {
			graded = append(graded, submission)
		}
	}
	return graded
}

func gradesOf(submissions []models.Submission) []float64 {
	grades := make([]float64, 0, len(submissions))
	for _, submission := range submissions {
		if submission.Grade != nil {
			grades = append(grades, *submission.Grade)
		}
	}
	return grades
}

// rate is part/whole as a percentage rounded to 2 decimals and capped at 100.
func rate(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	value := float64(part) / float64(whole) * 100
	if value > 100 {
		value = 100
	}
	return stats.Round(value, 2)
}

func subjectName(assignment models.Assignment) string {
	if subject := strings.TrimSpace(assignment.Subject); subject != "" {
		return subject
	}
	return generalSubject
}

func subjectPerformance(graded []models.Submission) map[string]dto.SubjectPerformance {
	grouped := make(map[string][]float64)
	for _, submission := range graded {
		if submission.Grade == nil {
			continue
		}
		subject := subjectName(submission.Assignment)
		grouped[subject] = append(grouped[subject], *submission.Grade)
	}

	result := make(map[string]dto.SubjectPerformance, len(grouped))
	for subject, grades := range grouped {
		lowest, highest := stats.MinMax(grades)
		result[subject] = dto.SubjectPerformance{
			Average: stats.Round(stats.Mean(grades), 2),
			Count:   len(grades),
			Highest: highest,
			Lowest:  lowest,
		}
	}
	return result
}

// recentActivity returns the latest submissions first. Unsubmitted drafts sort last.
func recentActivity(submissions []models.Submission, limit int) []dto.RecentActivity {
	ordered := append([]models.Submission(nil), submissions...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].SubmittedAt, ordered[j].SubmittedAt
		switch {
		case a == nil && b == nil:
			return ordered[i].ID > ordered[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return ordered[i].ID > ordered[j].ID
		default:
			return a.After(*b)
		}
	})
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	activity := make([]dto.RecentActivity, 0, len(ordered))
	for _, submission := range ordered {
		activity = append(activity, dto.RecentActivity{
			SubmissionID:    submission.ID,
			AssignmentTitle: submission.Assignment.Title,
			Subject:         submission.Assignment.Subject,
			SubmittedAt:     submission.SubmittedAt,
			Grade:           submission.Grade,
			Status:          submission.Status,
		})
	}
	return activity
}

func sortedSubjects(subjects map[string]dto.SubjectPerformance) []string {
	names := make([]string, 0, len(subjects))
	for name := range subjects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func learningInsights(subjects map[string]dto.SubjectPerformance, grades []float64, average float64) []dto.LearningInsight {
	insights := make([]dto.LearningInsight, 0, 3)

	if names := sortedSubjects(subjects); len(names) > 0 {
		best, worst := names[0], names[0]
		for _, name := range names[1:] {
			if subjects[name].Average > subjects[best].Average {
				best = name
			}
			if subjects[name].Average < subjects[worst].Average {
				worst = name
			}
		}
		insights = append(insights, dto.LearningInsight{
			Type:    "strength",
			Message: fmt.Sprintf("Excellent performance in %s with %.1f%% average", best, subjects[best].Average),
			Subject: best,
		})
		if subjects[worst].Average < 70 {
			insights = append(insights, dto.LearningInsight{
				Type:    "improvement_needed",
				Message: fmt.Sprintf("Consider additional practice in %s (%.1f%% average)", worst, subjects[worst].Average),
				Subject: worst,
			})
		}
	}

	if len(grades) >= 3 {
		recent := grades
		if len(recent) > recentGradesWindow {
			recent = recent[len(recent)-recentGradesWindow:]
		}
		recentAverage := stats.Mean(recent)
		switch {
		case recentAverage > average+5:
			insights = append(insights, dto.LearningInsight{
				Type:    "positive_trend",
				Message: "Recent performance is improving. Keep up the good work.",
			})
		case recentAverage < average-5:
			insights = append(insights, dto.LearningInsight{
				Type:    "concern",
				Message: "Recent grades show a decline. Consider reviewing study methods.",
			})
		}
	}
	return insights
}

func recommendationsFor(overview dto.StudentOverviewResponse) []dto.Recommendation {
	recommendations := make([]dto.Recommendation, 0)
	if overview.TotalAssignments > 0 && overview.AverageScore < 70 {
		recommendations = append(recommendations, dto.Recommendation{
			Type:        "general_improvement",
			Priority:    "high",
			Title:       "Focus on Foundation Skills",
			Description: fmt.Sprintf("Your average score is %.1f%%. Strengthening core concepts will lift every subject.", overview.AverageScore),
			Action:      "Review fundamental concepts and ask your teacher for extra practice material",
		})
	}

	for _, subject := range sortedSubjects(overview.SubjectsPerformance) {
		performance := overview.SubjectsPerformance[subject]
		if performance.Average < 60 {
			recommendations = append(recommendations, dto.Recommendation{
				Type:        "subject_focus",
				Priority:    "high",
				Title:       fmt.Sprintf("Improve %s Performance", subject),
				Description: fmt.Sprintf("Your %s average is %.1f%%. Additional practice recommended.", subject, performance.Average),
				Action:      fmt.Sprintf("Complete extra %s exercises and seek teacher feedback", subject),
			})
		}
	}

	if overview.CompletionRate < 80 {
		recommendations = append(recommendations, dto.Recommendation{
			Type:        "organization",
			Priority:    "medium",
			Title:       "Improve Assignment Completion",
			Description: fmt.Sprintf("You have completed %.1f%% of assignments. Better organization can help.", overview.CompletionRate),
			Action:      "Create a study schedule and set assignment reminders",
		})
	}
	return recommendations
}

func distinctStudents(submissions []models.Submission) int {
	seen := make(map[uint]struct{})
	for _, submission := range submissions {
		seen[submission.StudentID] = struct{}{}
	}
	return len(seen)
}

// distinctHandIns counts student/assignment pairs with at least one handed-in submission.
func distinctHandIns(submissions []models.Submission) int {
	type pair struct{ student, assignment uint }
	seen := make(map[pair]struct{})
	for _, submission := range submissions {
		if submission.Status == models.SubmissionStatusDraft {
			continue
		}
		seen[pair{submission.StudentID, submission.AssignmentID}] = struct{}{}
	}
	return len(seen)
}

// studentAverages is ordered by student id so rankings break ties deterministically.
func studentAverages(graded []models.Submission) []dto.StudentAverage {
	grades := make(map[uint][]float64)
	names := make(map[uint]string)
	for _, submission := range graded {
		if submission.Grade == nil {
			continue
		}
		grades[submission.StudentID] = append(grades[submission.StudentID], *submission.Grade)
		names[submission.StudentID] = submission.Student.Name
	}

	averages := make([]dto.StudentAverage, 0, len(grades))
	for id, values := range grades {
		averages = append(averages, dto.StudentAverage{
			StudentID:   id,
			StudentName: names[id],
			Average:     stats.Round(stats.Mean(values), 2),
		})
	}
	sort.Slice(averages, func(i, j int) bool { return averages[i].StudentID < averages[j].StudentID })
	return averages
}

func limitAverages(averages []dto.StudentAverage, limit int) []dto.StudentAverage {
	if len(averages) > limit {
		return averages[:limit]
	}
	return averages
}

func subjectBreakdown(assignments []models.Assignment, graded []models.Submission, students int) map[string]dto.SubjectBreakdown {
	assignmentCounts := make(map[string]int)
	for _, assignment := range assignments {
		assignmentCounts[subjectName(assignment)]++
	}
	grades := make(map[string][]float64)
	for _, submission := range graded {
		if submission.Grade == nil {
			continue
		}
		subject := subjectName(submission.Assignment)
		grades[subject] = append(grades[subject], *submission.Grade)
	}

	breakdown := make(map[string]dto.SubjectBreakdown, len(assignmentCounts))
	for subject, total := range assignmentCounts {
		completed := len(grades[subject])
		breakdown[subject] = dto.SubjectBreakdown{
			TotalAssignments:     total,
			CompletedSubmissions: completed,
			AverageScore:         stats.Round(stats.Mean(grades[subject]), 2),
			CompletionRate:       rate(completed, total*students),
		}
	}
	return breakdown
}

func gradeLevelLabel(level string) string {
	level = strings.TrimSpace(level)
	if level == "" {
		return "Unassigned"
	}
	return "Grade " + level
}

func gradeLevelPerformance(students []models.User, graded []models.Submission) map[string]dto.GradeLevelPerformance {
	levelOf := make(map[uint]string, len(students))
	counts := make(map[string]int)
	for _, student := range students {
		label := gradeLevelLabel(student.GradeLevel)
		levelOf[student.ID] = label
		counts[label]++
	}

	grades := make(map[string][]float64)
	for _, submission := range graded {
		label, ok := levelOf[submission.StudentID]
		if !ok || submission.Grade == nil {
			continue
		}
		grades[label] = append(grades[label], *submission.Grade)
	}

	performance := make(map[string]dto.GradeLevelPerformance, len(counts))
	for label, count := range counts {
		performance[label] = dto.GradeLevelPerformance{
			StudentCount:     count,
			AverageScore:     stats.Round(stats.Mean(grades[label]), 2),
			TotalSubmissions: len(grades[label]),
		}
	}
	return performance
}

func teacherEffectiveness(teachers []models.User, assignments []models.Assignment, graded []models.Submission) []dto.TeacherEffectiveness {
	assignmentCounts := make(map[uint]int)
	subjects := make(map[uint]map[string]struct{})
	for _, assignment := range assignments {
		assignmentCounts[assignment.TeacherID]++
		if subjects[assignment.TeacherID] == nil {
			subjects[assignment.TeacherID] = make(map[string]struct{})
		}
		subjects[assignment.TeacherID][subjectName(assignment)] = struct{}{}
	}
	grades := make(map[uint][]float64)
	for _, submission := range graded {
		if submission.Grade == nil {
			continue
		}
		teacherID := submission.Assignment.TeacherID
		grades[teacherID] = append(grades[teacherID], *submission.Grade)
	}

	result := make([]dto.TeacherEffectiveness, 0, len(teachers))
	for _, teacher := range teachers {
		taught := make([]string, 0, len(subjects[teacher.ID]))
		for subject := range subjects[teacher.ID] {
			taught = append(taught, subject)
		}
		sort.Strings(taught)
		result = append(result, dto.TeacherEffectiveness{
			TeacherID:           teacher.ID,
			TeacherName:         teacher.Name,
			TotalAssignments:    assignmentCounts[teacher.ID],
			TotalSubmissions:    len(grades[teacher.ID]),
			AverageStudentScore: stats.Round(stats.Mean(grades[teacher.ID]), 2),
			SubjectsTaught:      taught,
		})
	}
	return result
}

func submissionStats(assignment models.Assignment, submissions []models.Submission, eligible int) dto.SubmissionStats {
	result := dto.SubmissionStats{Total: len(submissions)}
	for _, submission := range submissions {
		switch submission.Status {
		case models.SubmissionStatusDraft:
			result.Draft++
			continue
		case models.SubmissionStatusGraded:
			result.Graded++
		default:
			result.Submitted++
		}
		if submission.SubmittedAt == nil {
			continue
		}
		if assignment.DueDate != nil && submission.SubmittedAt.After(*assignment.DueDate) {
			result.Late++
		} else {
			result.OnTime++
		}
	}
	result.SubmissionRate = rate(result.Submitted+result.Graded, eligible)
	return result
}

func submissionTimeline(submissions []models.Submission) []dto.TimelinePoint {
	counts := make(map[string]int)
	for _, submission := range submissions {
		if submission.Status == models.SubmissionStatusDraft || submission.SubmittedAt == nil {
			continue
		}
		counts[submission.SubmittedAt.UTC().Format("2006-01-02")]++
	}

	timeline := make([]dto.TimelinePoint, 0, len(counts))
	for date, count := range counts {
		timeline = append(timeline, dto.TimelinePoint{Date: date, Count: count})
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Date < timeline[j].Date })
	return timeline
}
