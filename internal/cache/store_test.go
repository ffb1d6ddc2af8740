package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, zerolog.Nop()), server
}

func TestStoreJSONRoundTripAndTTL(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()

	var got entry
	require.False(t, store.GetJSON(ctx, ScopeRubric, RubricKey(1), &got))

	require.NoError(t, store.SetJSON(ctx, RubricKey(1), entry{Name: "essay", Score: 91.5}, time.Hour))
	require.True(t, store.GetJSON(ctx, ScopeRubric, RubricKey(1), &got))
	require.Equal(t, entry{Name: "essay", Score: 91.5}, got)
	require.Equal(t, time.Hour, server.TTL(RubricKey(1)))

	server.FastForward(2 * time.Hour)
	require.False(t, store.GetJSON(ctx, ScopeRubric, RubricKey(1), &got))
}

func TestStoreDiscardsCorruptEntries(t *testing.T) {
	store, server := newTestStore(t)
	require.NoError(t, server.Set(RubricResultsKey(4), "{not json"))

	var got entry
	require.False(t, store.GetJSON(context.Background(), ScopeRubricResults, RubricResultsKey(4), &got))
}

func TestStoreDeletePattern(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()

	for _, days := range []int{7, 30, 90} {
		require.NoError(t, store.SetJSON(ctx, StudentAnalyticsKey(5, days), entry{Name: "x"}, time.Hour))
	}
	require.NoError(t, store.SetJSON(ctx, StudentAnalyticsKey(51, 30), entry{Name: "other"}, time.Hour))

	deleted, err := store.DeletePattern(ctx, StudentAnalyticsPattern(5))
	require.NoError(t, err)
	require.Equal(t, 3, deleted)
	require.True(t, server.Exists(StudentAnalyticsKey(51, 30)))

	require.NoError(t, store.Delete(ctx, StudentAnalyticsKey(51, 30)))
	require.False(t, server.Exists(StudentAnalyticsKey(51, 30)))
}

func TestNilStoreIsNoop(t *testing.T) {
	var store *Store
	ctx := context.Background()

	var got entry
	require.False(t, store.GetJSON(ctx, ScopeRubric, "k", &got))
	require.NoError(t, store.SetJSON(ctx, "k", entry{}, time.Minute))
	require.NoError(t, store.Delete(ctx, "k"))
	deleted, err := store.DeletePattern(ctx, "k*")
	require.NoError(t, err)
	require.Zero(t, deleted)
}

func TestKeyLayout(t *testing.T) {
	require.Equal(t, "rubric_results:12", RubricResultsKey(12))
	require.Equal(t, "peer_review:3", PeerReviewKey(3))
	require.Equal(t, "student_analytics:8:30", StudentAnalyticsKey(8, 30))
	require.Equal(t, "class_analytics:2:all:all", ClassAnalyticsKey(2, "", ""))
	require.Equal(t, "class_analytics:2:world_history:grade_10", ClassAnalyticsKey(2, "World History", "Grade 10"))
	require.Equal(t, "school_analytics:1", SchoolAnalyticsKey(1))
}
