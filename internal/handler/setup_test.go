package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sacel-api/internal/cache"
	"github.com/noah-isme/sacel-api/internal/config"
	"github.com/noah-isme/sacel-api/internal/database"
	"github.com/noah-isme/sacel-api/internal/grading"
	"github.com/noah-isme/sacel-api/internal/handler"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/repository"
	"github.com/noah-isme/sacel-api/internal/router"
	"github.com/noah-isme/sacel-api/internal/service"
	"github.com/noah-isme/sacel-api/internal/similarity"
)

var dbSeq atomic.Uint64

type testApp struct {
	app *fiber.App
	db  *gorm.DB
}

// identity is injected by the fake JWT middleware through test headers.
type identity struct {
	ID       uint
	Role     string
	SchoolID uint
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:handler_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	store := cache.New(nil, logger)

	users := repository.NewUserRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	peerReviews := repository.NewPeerReviewRepository(db)

	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	rubrics := service.NewRubricService(repository.NewRubricRepository(db), store, time.Hour, validate, activity, logger)
	_, err = rubrics.EnsureDefaults(context.Background())
	require.NoError(t, err)

	analytics := service.NewAnalyticsService(service.AnalyticsDependencies{
		Analytics:   repository.NewAnalyticsRepository(db),
		Assignments: assignments,
		Users:       users,
		PeerReviews: peerReviews,
		Cache:       store,
	}, logger)

	gradingService := service.NewGradingService(service.GradingDependencies{
		Submissions: submissions,
		Assignments: assignments,
		PeerReviews: peerReviews,
		Rubrics:     rubrics,
		Evaluator:   grading.KeywordEvaluator{},
		Cache:       store,
		Analytics:   analytics,
		Activity:    activity,
		Validator:   validate,
	}, logger)

	peerReviewService := service.NewPeerReviewService(service.PeerReviewDependencies{
		Reviews:     peerReviews,
		Submissions: submissions,
		Assignments: assignments,
		Rubrics:     rubrics,
		Cache:       store,
		Analytics:   analytics,
		Activity:    activity,
		Validator:   validate,
	}, logger)

	plagiarism := service.NewPlagiarismService(submissions, assignments, validate, similarity.Options{}, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", AppEnv: "test", JWTSecret: "secret"}, router.Dependencies{
		RubricHandler:     handler.NewRubricHandler(rubrics, logger),
		GradingHandler:    handler.NewGradingHandler(gradingService, nil, logger),
		PeerReviewHandler: handler.NewPeerReviewHandler(peerReviewService, logger),
		PlagiarismHandler: handler.NewPlagiarismHandler(plagiarism, logger),
		AnalyticsHandler:  handler.NewAnalyticsHandler(analytics, validate, logger),
		ActivityHandler:   handler.NewActivityHandler(activity, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if id, err := strconv.ParseUint(c.Get("X-Test-User"), 10, 64); err == nil {
				c.Locals("user_id", uint(id))
			}
			if school, err := strconv.ParseUint(c.Get("X-Test-School"), 10, 64); err == nil {
				c.Locals("school_id", uint(school))
			}
			c.Locals("user_role", c.Get("X-Test-Role"))
			return c.Next()
		},
	})

	return &testApp{app: app, db: db}
}

func (a *testApp) do(t *testing.T, method, path string, who identity, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who.ID != 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(who.ID), 10))
		req.Header.Set("X-Test-Role", who.Role)
		req.Header.Set("X-Test-School", strconv.FormatUint(uint64(who.SchoolID), 10))
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	var decoded map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func (a *testApp) seedUser(t *testing.T, schoolID uint, role, name string) models.User {
	t.Helper()
	user := models.User{
		SchoolID:   schoolID,
		Role:       role,
		Name:       name,
		Email:      fmt.Sprintf("%s.%d@school.test", role, dbSeq.Add(1)),
		GradeLevel: "10",
	}
	require.NoError(t, a.db.Create(&user).Error)
	return user
}

func (a *testApp) seedAssignment(t *testing.T, teacher models.User, title string) models.Assignment {
	t.Helper()
	due := time.Now().Add(24 * time.Hour)
	assignment := models.Assignment{
		SchoolID:   teacher.SchoolID,
		TeacherID:  teacher.ID,
		Title:      title,
		Subject:    "English",
		GradeLevel: "10",
		MaxScore:   100,
		DueDate:    &due,
	}
	require.NoError(t, a.db.Create(&assignment).Error)
	return assignment
}

func (a *testApp) seedSubmission(t *testing.T, assignment models.Assignment, student models.User, status, content string) models.Submission {
	t.Helper()
	submitted := time.Now().Add(-time.Hour)
	submission := models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    student.ID,
		Content:      content,
		Status:       status,
		SubmittedAt:  &submitted,
		Version:      1,
	}
	require.NoError(t, a.db.Create(&submission).Error)
	return submission
}

func asTeacher(u models.User) identity {
	return identity{ID: u.ID, Role: models.RoleTeacher, SchoolID: u.SchoolID}
}

func asStudent(u models.User) identity {
	return identity{ID: u.ID, Role: models.RoleStudent, SchoolID: u.SchoolID}
}

func formatID(v interface{}) string {
	return strconv.FormatUint(uint64(v.(float64)), 10)
}

func dataOf(t *testing.T, payload map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := payload["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", payload)
	return data
}

const essayText = `The industrial revolution changed how people worked and lived. Evidence from
factory records shows that output grew quickly, for example in textile mills. However, the
analysis must also consider the cost to workers, because long hours and unsafe conditions
were common. In conclusion, the period brought progress and hardship together, and historians
still debate which effect was greater.`
