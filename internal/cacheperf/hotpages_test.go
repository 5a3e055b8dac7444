package cacheperf

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/timeline-cache/internal/model"
	"github.com/d60-Lab/timeline-cache/internal/repository"
	"github.com/d60-Lab/timeline-cache/pkg/database"
)

type hotPageFixture struct {
	svc      *HotPageService
	timeline repository.TimelineRepository
	inv      *repository.Invalidator
	redis    *miniredis.Miniredis
}

func setupHotPages(t *testing.T) *hotPageFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inv := repository.NewInvalidator()
	timeline := repository.NewTimelineRepository(db, inv)
	return &hotPageFixture{
		svc:      NewHotPageService(timeline, rdb, time.Minute),
		timeline: timeline,
		inv:      inv,
		redis:    mr,
	}
}

func seedFeed(t *testing.T, timeline repository.TimelineRepository, ids []string) {
	t.Helper()
	req := repository.SavePageRequest{
		AccountKey: "acct@test.host",
		PagingKey:  "home",
		ClearFeed:  true,
		Cursor:     repository.CursorUpdate{Kind: repository.CursorReplace},
	}
	for i, id := range ids {
		content, err := model.NewPayload(model.PlatformMastodon, map[string]string{"id": id})
		require.NoError(t, err)
		req.Statuses = append(req.Statuses, model.Status{
			StatusKey:    id + "@test.host",
			UserKey:      "author@test.host",
			PlatformType: model.PlatformMastodon,
			Content:      content,
		})
		req.Entries = append(req.Entries, model.PagingTimeline{
			AccountKey: "acct@test.host",
			PagingKey:  "home",
			StatusKey:  id + "@test.host",
			SortID:     int64(len(ids) - i),
		})
	}
	require.NoError(t, timeline.SavePage(context.Background(), req))
}

func TestFirstPageReadThrough(t *testing.T) {
	fx := setupHotPages(t)
	seedFeed(t, fx.timeline, []string{"3", "2", "1"})
	ctx := context.Background()

	first, err := fx.svc.FirstPage(ctx, "home", "acct@test.host", 10)
	require.NoError(t, err)
	require.Len(t, first, 3)
	require.Equal(t, "3@test.host", first[0].Status.StatusKey)

	second, err := fx.svc.FirstPage(ctx, "home", "acct@test.host", 10)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i := range first {
		require.Equal(t, first[i].Status.StatusKey, second[i].Status.StatusKey)
	}

	c := fx.svc.Counters()
	require.EqualValues(t, 1, c.PageQueries)
	require.EqualValues(t, 1, c.CacheHits)
}

func TestInvalidateForcesRequery(t *testing.T) {
	fx := setupHotPages(t)
	seedFeed(t, fx.timeline, []string{"2", "1"})
	ctx := context.Background()

	_, err := fx.svc.FirstPage(ctx, "home", "acct@test.host", 10)
	require.NoError(t, err)
	require.NoError(t, fx.svc.Invalidate(ctx, "home"))

	seedFeed(t, fx.timeline, []string{"9"})
	items, err := fx.svc.FirstPage(ctx, "home", "acct@test.host", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "9@test.host", items[0].Status.StatusKey)
	require.EqualValues(t, 2, fx.svc.Counters().PageQueries)
}

func TestWatchInvalidationsDropsStaleWindow(t *testing.T) {
	fx := setupHotPages(t)
	seedFeed(t, fx.timeline, []string{"2", "1"})
	ctx := context.Background()

	stop := fx.svc.WatchInvalidations(fx.inv, "home")
	defer stop()

	_, err := fx.svc.FirstPage(ctx, "home", "acct@test.host", 10)
	require.NoError(t, err)

	// 落库提交发布 feed 主题，watcher 随之清掉缓存窗口
	seedFeed(t, fx.timeline, []string{"9"})
	require.Eventually(t, func() bool {
		return len(fx.redis.Keys()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	items, err := fx.svc.FirstPage(ctx, "home", "acct@test.host", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "9@test.host", items[0].Status.StatusKey)
}

func TestFirstPageNoCacheSkipsRedis(t *testing.T) {
	fx := setupHotPages(t)
	seedFeed(t, fx.timeline, []string{"1"})

	_, err := fx.svc.FirstPageNoCache(context.Background(), "home", "acct@test.host", 10)
	require.NoError(t, err)
	require.Empty(t, fx.redis.Keys())
	require.EqualValues(t, 1, fx.svc.Counters().PageQueries)
}
