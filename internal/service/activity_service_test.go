package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sacel-api/internal/dto"
	"github.com/noah-isme/sacel-api/internal/middleware"
	"github.com/noah-isme/sacel-api/internal/models"
	"github.com/noah-isme/sacel-api/internal/repository"
)

type failingActivityRepo struct{}

func (failingActivityRepo) Create(context.Context, *models.ActivityLog) error {
	return errors.New("disk full")
}

func (failingActivityRepo) List(context.Context, repository.ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	return nil, 0, errors.New("disk full")
}

func TestActivityServiceRecordStampsAndMasks(t *testing.T) {
	env := newTestEnv(t)
	svc := NewActivityService(repository.NewActivityLogRepository(env.db), testLogger())

	ctx := middleware.ContextWithCorrelation(context.Background(), "corr-42")
	entry, err := svc.Record(ctx, ActivityEntry{
		Actor:      ActivityActor{ID: 1, Role: "Teacher", SchoolID: 4},
		Action:     ActionSubmissionAutoGraded,
		EntityType: "Submission",
		EntityID:   ptrUint(5),
		Metadata: map[string]interface{}{
			"student_email": "student@example.com",
			"rubric_id":     3,
		},
	})
	require.NoError(t, err)
	require.Equal(t, "***", entry.Metadata["student_email"])
	require.EqualValues(t, 3, entry.Metadata["rubric_id"])
	require.Equal(t, "teacher", entry.ActorRole)
	require.Equal(t, "submission", entry.EntityType)
	require.Equal(t, uint(4), entry.SchoolID)
	require.Equal(t, "corr-42", entry.CorrelationID)
}

func TestActivityServiceRecordRequiresActionAndEntity(t *testing.T) {
	svc := NewActivityService(failingActivityRepo{}, testLogger())

	_, err := svc.Record(context.Background(), ActivityEntry{Actor: ActivityActor{ID: 1}, EntityType: "submission"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Record(context.Background(), ActivityEntry{Actor: ActivityActor{ID: 1}, Action: ActionRubricCreated})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Record(context.Background(), ActivityEntry{Actor: ActivityActor{ID: 1}, Action: ActionRubricCreated, EntityType: "rubric"})
	require.ErrorIs(t, err, ErrPersistence)
}

func TestActivityServiceListFiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t)
	svc := NewActivityService(repository.NewActivityLogRepository(env.db), testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Record(ctx, ActivityEntry{Actor: ActivityActor{ID: 1, Role: "teacher", SchoolID: 1}, Action: ActionRubricCreated, EntityType: "rubric"})
		require.NoError(t, err)
	}
	_, err := svc.Record(ctx, ActivityEntry{Actor: ActivityActor{ID: 2, Role: "teacher", SchoolID: 2}, Action: ActionPeerReviewsCreated, EntityType: "assignment"})
	require.NoError(t, err)

	page, err := svc.List(ctx, dto.ActivityListRequest{Page: 1, PageSize: 2, SchoolID: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, int64(3), page.Pagination.TotalItems)
	require.Equal(t, 2, page.Pagination.TotalPages)

	last, err := svc.List(ctx, dto.ActivityListRequest{Page: 2, PageSize: 2, SchoolID: 1})
	require.NoError(t, err)
	require.Len(t, last.Items, 1)

	byAction, err := svc.List(ctx, dto.ActivityListRequest{PageSize: 10, Action: "PEER_REVIEW.ROUND_CREATED"})
	require.NoError(t, err)
	require.Len(t, byAction.Items, 1)
	require.Equal(t, uint(2), byAction.Items[0].ActorID)
	require.Equal(t, 1, byAction.Pagination.Page)

	future := time.Now().Add(time.Hour)
	none, err := svc.List(ctx, dto.ActivityListRequest{PageSize: 10, Since: &future})
	require.NoError(t, err)
	require.Empty(t, none.Items)
	require.Equal(t, 1, none.Pagination.TotalPages)
}

func TestRecordActivityIsBestEffort(t *testing.T) {
	svc := NewActivityService(failingActivityRepo{}, testLogger())

	require.NotPanics(t, func() {
		recordActivity(context.Background(), svc, testLogger(), ActivityActor{ID: 1, Role: "teacher"}, ActionRubricCreated, "rubric", 1, nil)
	})
}

func ptrUint(v uint) *uint {
	return &v
}

func TestActivityServiceListBoundsPageSize(t *testing.T) {
	env := newTestEnv(t)
	svc := NewActivityService(repository.NewActivityLogRepository(env.db), testLogger())
	ctx := context.Background()

	for i := 0; i < DefaultActivityPageSize+5; i++ {
		_, err := svc.Record(ctx, ActivityEntry{Actor: ActivityActor{ID: 1, Role: "admin"}, Action: ActionRubricCreated, EntityType: "rubric"})
		require.NoError(t, err)
	}

	defaulted, err := svc.List(ctx, dto.ActivityListRequest{})
	require.NoError(t, err)
	require.Len(t, defaulted.Items, DefaultActivityPageSize)
	require.Equal(t, DefaultActivityPageSize, defaulted.Pagination.PageSize)
	require.Equal(t, 2, defaulted.Pagination.TotalPages)

	capped, err := svc.List(ctx, dto.ActivityListRequest{PageSize: 10_000})
	require.NoError(t, err)
	require.Equal(t, MaxActivityPageSize, capped.Pagination.PageSize)
	require.Len(t, capped.Items, DefaultActivityPageSize+5)
	require.Equal(t, 1, capped.Pagination.TotalPages)
}
