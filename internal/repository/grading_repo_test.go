package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/sacel-api/internal/database"
	"github.com/noah-isme/sacel-api/internal/models"
)

var dbSeq atomic.Uint64

func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repository_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type seeded struct {
	teacher    models.User
	students   []models.User
	assignment models.Assignment
}

func seedClass(t *testing.T, db *gorm.DB, students int) seeded {
	t.Helper()
	teacher := models.User{SchoolID: 1, Role: models.RoleTeacher, Name: "Ms. Rivera", Email: fmt.Sprintf("t%d@school.test", dbSeq.Add(1))}
	require.NoError(t, db.Create(&teacher).Error)

	due := time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)
	assignment := models.Assignment{SchoolID: 1, TeacherID: teacher.ID, Title: "Essay", Subject: "English", GradeLevel: "10", MaxScore: 100, DueDate: &due}
	require.NoError(t, db.Create(&assignment).Error)

	result := seeded{teacher: teacher, assignment: assignment}
	for i := 0; i < students; i++ {
		student := models.User{SchoolID: 1, Role: models.RoleStudent, Name: fmt.Sprintf("Student %d", i), Email: fmt.Sprintf("s%d@school.test", dbSeq.Add(1)), GradeLevel: "10"}
		require.NoError(t, db.Create(&student).Error)
		result.students = append(result.students, student)
	}
	return result
}

func TestSubmissionRepositoryCommitGrade(t *testing.T) {
	db := newRepoDB(t)
	class := seedClass(t, db, 1)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submittedAt := time.Date(2024, time.March, 9, 8, 0, 0, 0, time.UTC)
	submission := models.Submission{AssignmentID: class.assignment.ID, StudentID: class.students[0].ID, Content: "text", Status: models.SubmissionStatusSubmitted, SubmittedAt: &submittedAt, Version: 1}
	require.NoError(t, repo.Create(ctx, &submission))

	gradedAt := submittedAt.Add(time.Hour)
	grader := class.teacher.ID
	commit := GradeCommit{
		SubmissionID:    submission.ID,
		ExpectedVersion: 1,
		Grade:           86,
		Feedback:        "Good",
		GradedAt:        gradedAt,
		GradedBy:        &grader,
		Result: &models.GradeResult{
			RubricID:   1,
			TotalScore: 86,
			MaxScore:   100,
			Percentage: 86,
			Criteria:   datatypes.NewJSONType([]models.CriteriaScore{}),
			AutoGraded: true,
			GradedAt:   gradedAt,
		},
		History: models.SubmissionGradeHistory{Score: 86, GradedBy: grader, Source: "auto", GradedAt: gradedAt},
	}

	version, err := repo.CommitGrade(ctx, commit)
	require.NoError(t, err)
	require.Equal(t, uint(2), version)

	stored, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusGraded, stored.Status)
	require.Equal(t, 86.0, *stored.Grade)
	require.Equal(t, uint(2), stored.Version)
	require.Equal(t, class.students[0].Name, stored.Student.Name)

	_, err = repo.CommitGrade(ctx, commit)
	require.ErrorIs(t, err, ErrVersionConflict)

	commit.ExpectedVersion = 2
	commit.Grade = 72
	commit.Result = &models.GradeResult{RubricID: 1, TotalScore: 72, MaxScore: 100, Percentage: 72, Criteria: datatypes.NewJSONType([]models.CriteriaScore{}), GradedAt: gradedAt}
	commit.History.Score = 72
	version, err = repo.CommitGrade(ctx, commit)
	require.NoError(t, err)
	require.Equal(t, uint(3), version)

	result, err := repo.GetGradeResult(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, 72.0, result.Percentage)

	var results, history int64
	require.NoError(t, db.Model(&models.GradeResult{}).Where("submission_id = ?", submission.ID).Count(&results).Error)
	require.NoError(t, db.Model(&models.SubmissionGradeHistory{}).Where("submission_id = ?", submission.ID).Count(&history).Error)
	require.Equal(t, int64(1), results)
	require.Equal(t, int64(2), history)
}

func TestAnalyticsRepositoryFilters(t *testing.T) {
	db := newRepoDB(t)
	class := seedClass(t, db, 2)
	repo := NewAnalyticsRepository(db)
	ctx := context.Background()

	early := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC)
	grade := 75.0
	rows := []models.Submission{
		{AssignmentID: class.assignment.ID, StudentID: class.students[0].ID, Status: models.SubmissionStatusGraded, SubmittedAt: &late, Grade: &grade, Version: 2},
		{AssignmentID: class.assignment.ID, StudentID: class.students[1].ID, Status: models.SubmissionStatusSubmitted, SubmittedAt: &early, Version: 1},
	}
	require.NoError(t, db.Create(&rows).Error)

	all, err := repo.ListSubmissions(ctx, AnalyticsFilter{TeacherID: &class.teacher.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, class.students[1].ID, all[0].StudentID, "oldest submission first")
	require.Equal(t, "English", all[0].Assignment.Subject)

	graded, err := repo.ListSubmissions(ctx, AnalyticsFilter{Subject: "english", Statuses: []string{models.SubmissionStatusGraded}})
	require.NoError(t, err)
	require.Len(t, graded, 1)
	require.Equal(t, class.students[0].ID, graded[0].StudentID)

	since := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	recent, err := repo.ListSubmissions(ctx, AnalyticsFilter{SubmittedSince: &since})
	require.NoError(t, err)
	require.Len(t, recent, 1)

	otherSchool := uint(2)
	none, err := repo.ListSubmissions(ctx, AnalyticsFilter{SchoolID: &otherSchool})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestPeerReviewRepositoryPairingsAndReviews(t *testing.T) {
	db := newRepoDB(t)
	class := seedClass(t, db, 2)
	repo := NewPeerReviewRepository(db)
	ctx := context.Background()
	now := time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

	submissions := []models.Submission{
		{AssignmentID: class.assignment.ID, StudentID: class.students[0].ID, Status: models.SubmissionStatusSubmitted, SubmittedAt: &now, Version: 1},
		{AssignmentID: class.assignment.ID, StudentID: class.students[1].ID, Status: models.SubmissionStatusSubmitted, SubmittedAt: &now, Version: 1},
	}
	require.NoError(t, db.Create(&submissions).Error)

	pairing := func(submission models.Submission, reviewer models.User) models.PeerReviewPairing {
		return models.PeerReviewPairing{
			AssignmentID: class.assignment.ID,
			SubmissionID: submission.ID,
			ReviewerID:   reviewer.ID,
			RevieweeID:   submission.StudentID,
			Status:       models.PairingStatusPending,
			AssignedAt:   now,
		}
	}

	round := &models.PeerReviewRound{AssignmentID: class.assignment.ID, Criteria: datatypes.NewJSONType([]string{"clarity"}), ReviewsPerStudent: 1}
	require.NoError(t, repo.ReplacePairings(ctx, round, []models.PeerReviewPairing{
		pairing(submissions[0], class.students[1]),
		pairing(submissions[1], class.students[0]),
	}))

	pairings, err := repo.ListPairings(ctx, class.assignment.ID)
	require.NoError(t, err)
	require.Len(t, pairings, 2)

	second := &models.PeerReviewRound{AssignmentID: class.assignment.ID, Criteria: datatypes.NewJSONType([]string{"clarity", "evidence"}), ReviewsPerStudent: 1}
	require.NoError(t, repo.ReplacePairings(ctx, second, []models.PeerReviewPairing{pairing(submissions[0], class.students[1])}))

	pairings, err = repo.ListPairings(ctx, class.assignment.ID)
	require.NoError(t, err)
	require.Len(t, pairings, 1)

	stored, err := repo.GetRound(ctx, class.assignment.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"clarity", "evidence"}, stored.Criteria.Data())

	review := &models.PeerReview{SubmissionID: submissions[0].ID, ReviewerID: class.students[1].ID, Ratings: datatypes.NewJSONType(map[string]float64{"clarity": 4}), OverallScore: 80}
	require.NoError(t, repo.UpsertReview(ctx, review, now))
	again := &models.PeerReview{SubmissionID: submissions[0].ID, ReviewerID: class.students[1].ID, Ratings: datatypes.NewJSONType(map[string]float64{"clarity": 5}), OverallScore: 100}
	require.NoError(t, repo.UpsertReview(ctx, again, now))

	reviews, err := repo.ListReviews(ctx, submissions[0].ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, 100.0, reviews[0].OverallScore)

	forAssignment, err := repo.ListReviewsForAssignment(ctx, class.assignment.ID)
	require.NoError(t, err)
	require.Len(t, forAssignment, 1)

	completed, err := repo.FindPairing(ctx, submissions[0].ID, class.students[1].ID)
	require.NoError(t, err)
	require.Equal(t, models.PairingStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	_, err = repo.FindPairing(ctx, submissions[1].ID, class.students[0].ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
