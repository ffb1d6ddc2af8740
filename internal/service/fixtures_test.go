package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sacel-api/internal/cache"
	"github.com/noah-isme/sacel-api/internal/database"
	"github.com/noah-isme/sacel-api/internal/dto"
	"github.com/noah-isme/sacel-api/internal/grading"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/repository"
	"github.com/noah-isme/sacel-api/internal/rubric"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

var userSeq atomic.Uint64

type testEnv struct {
	db          *gorm.DB
	redis       *miniredis.Miniredis
	client      *redis.Client
	cache       *cache.Store
	validate    *validator.Validate
	activity    *recordingActivity
	users       repository.UserRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	rubrics     repository.RubricRepository
	peerReviews repository.PeerReviewRepository
	analytics   repository.AnalyticsRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &testEnv{
		db:          db,
		redis:       server,
		client:      client,
		cache:       cache.New(client, testLogger()),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		activity:    &recordingActivity{},
		users:       repository.NewUserRepository(db),
		assignments: repository.NewAssignmentRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		rubrics:     repository.NewRubricRepository(db),
		peerReviews: repository.NewPeerReviewRepository(db),
		analytics:   repository.NewAnalyticsRepository(db),
	}
}

func (e *testEnv) rubricService(t *testing.T) RubricService {
	t.Helper()
	svc := NewRubricService(e.rubrics, e.cache, time.Hour, e.validate, e.activity, testLogger())
	_, err := svc.EnsureDefaults(context.Background())
	require.NoError(t, err)
	return svc
}

func (e *testEnv) analyticsService() *analyticsService {
	svc := NewAnalyticsService(AnalyticsDependencies{
		Analytics:   e.analytics,
		Assignments: e.assignments,
		Users:       e.users,
		PeerReviews: e.peerReviews,
		Cache:       e.cache,
	}, testLogger()).(*analyticsService)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func (e *testEnv) seedUser(t *testing.T, schoolID uint, role, name, gradeLevel string) models.User {
	t.Helper()
	user := models.User{
		SchoolID:   schoolID,
		Role:       role,
		Name:       name,
		Email:      fmt.Sprintf("%s.%d@school.test", role, userSeq.Add(1)),
		GradeLevel: gradeLevel,
	}
	require.NoError(t, e.users.Create(context.Background(), &user))
	return user
}

func (e *testEnv) seedAssignment(t *testing.T, teacher models.User, title, subject, gradeLevel string, due *time.Time) models.Assignment {
	t.Helper()
	assignment := models.Assignment{
		SchoolID:   teacher.SchoolID,
		TeacherID:  teacher.ID,
		Title:      title,
		Subject:    subject,
		GradeLevel: gradeLevel,
		MaxScore:   100,
		DueDate:    due,
	}
	require.NoError(t, e.assignments.Create(context.Background(), &assignment))
	return assignment
}

func (e *testEnv) seedSubmission(t *testing.T, assignment models.Assignment, student models.User, status, content string, submittedAt *time.Time, grade *float64) models.Submission {
	t.Helper()
	submission := models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    student.ID,
		Content:      content,
		Status:       status,
		Grade:        grade,
		SubmittedAt:  submittedAt,
		Version:      1,
	}
	if grade != nil {
		submission.GradedAt = submittedAt
	}
	require.NoError(t, e.submissions.Create(context.Background(), &submission))
	return submission
}

func timeAt(t time.Time) *time.Time {
	return &t
}

func ptrFloat(v float64) *float64 {
	return &v
}

func ptrBool(v bool) *bool {
	return &v
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (r *recordingActivity) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return dto.ActivityResponse{ActorID: entry.Actor.ID, Action: entry.Action, EntityType: entry.EntityType, EntityID: entry.EntityID}, nil
}

func (r *recordingActivity) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []GradeEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event GradeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type recordingInvalidator struct {
	mu     sync.Mutex
	scopes []AnalyticsScope
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, scope AnalyticsScope) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = append(r.scopes, scope)
	return 0, nil
}

// levelEvaluator places every criteria at the top of one level.
type levelEvaluator struct {
	level rubric.Level
}

func (e levelEvaluator) EvaluateCriteria(_ context.Context, _ rubric.Rubric, c rubric.Criteria, _ string) grading.CriteriaResult {
	band, _ := c.Band(e.level)
	return grading.CriteriaResult{
		Criteria: c.Name,
		Level:    e.level,
		Score:    float64(band.Max),
		Feedback: "fixed",
		Source:   grading.SourceOracle,
	}
}
