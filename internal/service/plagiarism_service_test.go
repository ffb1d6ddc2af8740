package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sacel-api/internal/dto"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/similarity"
)

const unrelatedText = "Photosynthesis converts light into chemical energy inside chloroplasts of green plants."

func TestPlagiarismServiceFlagsCopiedWork(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.seedUser(t, 1, models.RoleTeacher, "Ms. Rivera", "")
	author := env.seedUser(t, 1, models.RoleStudent, "Ana", "10")
	copier := env.seedUser(t, 1, models.RoleStudent, "Cal", "10")
	other := env.seedUser(t, 1, models.RoleStudent, "Oli", "10")
	assignment := env.seedAssignment(t, teacher, "Energy essay", "English", "10", nil)

	original := env.seedSubmission(t, assignment, author, models.SubmissionStatusSubmitted, essayText, timeAt(fixedNow), nil)
	env.seedSubmission(t, assignment, other, models.SubmissionStatusGraded, unrelatedText, timeAt(fixedNow), ptrFloat(80))
	env.seedSubmission(t, assignment, copier, models.SubmissionStatusDraft, essayText, nil, nil)

	svc := NewPlagiarismService(env.submissions, env.assignments, env.validate, similarity.Options{}, testLogger())

	// Request content is ignored for students: the stored draft is what gets checked.
	report, err := svc.Check(context.Background(), assignment.ID, dto.PlagiarismCheckRequest{Content: unrelatedText},
		ActivityActor{ID: copier.ID, Role: models.RoleStudent, SchoolID: 1})
	require.NoError(t, err)
	require.Equal(t, 2, report.CheckedAgainst)
	require.True(t, report.Flagged)
	require.Equal(t, 100.0, report.OverallSimilarity)
	require.Len(t, report.Matches, 1)
	require.Equal(t, original.ID, report.Matches[0].SubmissionID)
	require.Zero(t, report.Matches[0].StudentID)
	require.Nil(t, report.Matches[0].MatchingPhrases)
}

func TestPlagiarismServiceStudentAccess(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.seedUser(t, 1, models.RoleTeacher, "Ms. Rivera", "")
	author := env.seedUser(t, 1, models.RoleStudent, "Ana", "10")
	classmate := env.seedUser(t, 1, models.RoleStudent, "Cal", "10")
	outsider := env.seedUser(t, 2, models.RoleStudent, "Oz", "10")
	assignment := env.seedAssignment(t, teacher, "Energy essay", "English", "10", nil)
	env.seedSubmission(t, assignment, author, models.SubmissionStatusSubmitted, essayText, timeAt(fixedNow), nil)

	svc := NewPlagiarismService(env.submissions, env.assignments, env.validate, similarity.Options{}, testLogger())
	ctx := context.Background()
	low := 1.0

	half := essayText[:len(essayText)/2]
	_, err := svc.Check(ctx, assignment.ID, dto.PlagiarismCheckRequest{Content: half, ReportThreshold: &low},
		ActivityActor{ID: outsider.ID, Role: models.RoleStudent, SchoolID: 2})
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Check(ctx, assignment.ID, dto.PlagiarismCheckRequest{Content: half, ReportThreshold: &low},
		ActivityActor{ID: classmate.ID, Role: models.RoleStudent, SchoolID: 1})
	require.ErrorIs(t, err, ErrNoOwnSubmission)
	require.ErrorIs(t, err, ErrPermissionDenied)

	// A weak overlap stays below the configured report threshold whatever the student asks for.
	env.seedSubmission(t, assignment, classmate, models.SubmissionStatusSubmitted, unrelatedText, timeAt(fixedNow), nil)
	report, err := svc.Check(ctx, assignment.ID, dto.PlagiarismCheckRequest{ReportThreshold: &low},
		ActivityActor{ID: classmate.ID, Role: models.RoleStudent, SchoolID: 1})
	require.NoError(t, err)
	require.Equal(t, 1, report.CheckedAgainst)
	require.Empty(t, report.Matches)
	require.False(t, report.Flagged)
}

func TestPlagiarismServiceContentBounds(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.seedUser(t, 1, models.RoleTeacher, "Ms. Rivera", "")
	assignment := env.seedAssignment(t, teacher, "Energy essay", "English", "10", nil)
	svc := NewPlagiarismService(env.submissions, env.assignments, env.validate, similarity.Options{}, testLogger())
	actor := ActivityActor{ID: teacher.ID, Role: models.RoleTeacher, SchoolID: 1}

	_, err := svc.Check(context.Background(), assignment.ID, dto.PlagiarismCheckRequest{Content: "   "}, actor)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Check(context.Background(), assignment.ID, dto.PlagiarismCheckRequest{Content: strings.Repeat("a", 50001)}, actor)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrPermissionDenied)
}

func TestPlagiarismServiceExcludesAuthorGroup(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.seedUser(t, 1, models.RoleTeacher, "Ms. Rivera", "")
	author := env.seedUser(t, 1, models.RoleStudent, "Ana", "10")
	partner := env.seedUser(t, 1, models.RoleStudent, "Pat", "10")
	assignment := env.seedAssignment(t, teacher, "Group essay", "English", "10", nil)
	env.seedSubmission(t, assignment, author, models.SubmissionStatusSubmitted, essayText, timeAt(fixedNow), nil)
	env.seedSubmission(t, assignment, partner, models.SubmissionStatusSubmitted, essayText, timeAt(fixedNow), nil)

	svc := NewPlagiarismService(env.submissions, env.assignments, env.validate, similarity.Options{}, testLogger())
	teacherActor := ActivityActor{ID: teacher.ID, Role: models.RoleTeacher, SchoolID: 1}

	report, err := svc.Check(context.Background(), assignment.ID, dto.PlagiarismCheckRequest{
		Content:           essayText,
		ExcludeStudentIDs: []uint{author.ID, partner.ID},
	}, teacherActor)
	require.NoError(t, err)
	require.Zero(t, report.CheckedAgainst)
	require.Zero(t, report.OverallSimilarity)
	require.False(t, report.Flagged)
	require.Empty(t, report.Matches)
}

func TestPlagiarismServiceThresholdOverride(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.seedUser(t, 1, models.RoleTeacher, "Ms. Rivera", "")
	author := env.seedUser(t, 1, models.RoleStudent, "Ana", "10")
	assignment := env.seedAssignment(t, teacher, "Energy essay", "English", "10", nil)
	env.seedSubmission(t, assignment, author, models.SubmissionStatusSubmitted, essayText, timeAt(fixedNow), nil)

	svc := NewPlagiarismService(env.submissions, env.assignments, env.validate, similarity.Options{}, testLogger())
	teacherActor := ActivityActor{ID: teacher.ID, Role: models.RoleTeacher, SchoolID: 1}
	flag := 100.0

	report, err := svc.Check(context.Background(), assignment.ID, dto.PlagiarismCheckRequest{
		Content:       essayText,
		FlagThreshold: &flag,
	}, teacherActor)
	require.NoError(t, err)
	require.Len(t, report.Matches, 1)
	require.False(t, report.Flagged)
}

func TestPlagiarismServiceRejections(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.seedUser(t, 1, models.RoleTeacher, "Ms. Rivera", "")
	stranger := env.seedUser(t, 1, models.RoleTeacher, "Mr. Other", "")
	assignment := env.seedAssignment(t, teacher, "Energy essay", "English", "10", nil)
	svc := NewPlagiarismService(env.submissions, env.assignments, env.validate, similarity.Options{}, testLogger())
	ctx := context.Background()

	_, err := svc.Check(ctx, assignment.ID, dto.PlagiarismCheckRequest{}, ActivityActor{ID: teacher.ID, Role: models.RoleTeacher})
	require.Error(t, err)

	_, err = svc.Check(ctx, assignment.ID, dto.PlagiarismCheckRequest{Content: essayText}, ActivityActor{ID: stranger.ID, Role: models.RoleTeacher, SchoolID: 1})
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = svc.Check(ctx, 9999, dto.PlagiarismCheckRequest{Content: essayText}, ActivityActor{ID: teacher.ID, Role: models.RoleTeacher})
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}
