package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/timeline-cache/internal/cacheperf"
	"github.com/d60-Lab/timeline-cache/internal/datasource"
	"github.com/d60-Lab/timeline-cache/internal/repository"
	"github.com/d60-Lab/timeline-cache/internal/service"
	"github.com/d60-Lab/timeline-cache/pkg/database"
)

func must[T any](v T, err error) T { if err != nil { panic(err) }; return v }

func mustDo(err error) { if err != nil { panic(err) } }

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 { return 0 }
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 { k = 0 }
	if k >= len(xs) { k = len(xs)-1 }
	return xs[k]
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 { return 0 }
	var sum time.Duration
	for _, v := range vs { sum += v }
	return sum / time.Duration(len(vs))
}

func main() {
	ctx := context.Background()

	REQS := 5000
	PAGES := 40
	SIZE := 50
	if s := os.Getenv("REQS"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { REQS = v } }
	if s := os.Getenv("PAGES"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { PAGES = v } }

	db := must(gorm.Open(sqlite.Open(":memory:"), &gorm.Config{}))
	mustDo(database.Migrate(db))

	inv := repository.NewInvalidator()
	timelineRepo := repository.NewTimelineRepository(db, inv)
	cursorRepo := repository.NewCursorRepository(db)

	// seed one well-filled feed through the mediator
	const pagingKey = "bench_home"
	const accountKey = "bench@local"
	total := (PAGES + 1) * SIZE
	src := datasource.NewMastodonSource("bench.local", syntheticFetch(total))
	mediator := service.NewRemoteMediator(accountKey, pagingKey, src, timelineRepo, cursorRepo)
	if _, err := mediator.Load(ctx, service.TriggerRefresh, SIZE); err != nil { panic(err) }
	for i := 0; i < PAGES; i++ {
		if _, err := mediator.Load(ctx, service.TriggerAppend, SIZE); err != nil { panic(err) }
	}
	entries := must(timelineRepo.CountEntries(ctx, pagingKey))
	fmt.Printf("seeded feed: %d entries\n", entries)

	// Use real Redis if REDIS_ADDR is given, otherwise an embedded miniredis
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		mr := must(miniredis.Run())
		defer mr.Close()
		redisAddr = mr.Addr()
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("failed to connect to Redis at %s: %v", redisAddr, err))
	}

	svc := cacheperf.NewHotPageService(timelineRepo, client, 10*time.Minute)

	// first-page reads dominate real traffic; measure cold vs hot path
	direct := runScenario(ctx, svc, client, REQS, func(ctx context.Context) error {
		_, err := svc.FirstPageNoCache(ctx, pagingKey, accountKey, 20)
		return err
	})
	cached := runScenario(ctx, svc, client, REQS, func(ctx context.Context) error {
		_, err := svc.FirstPage(ctx, pagingKey, accountKey, 20)
		return err
	})

	fmt.Printf("\nFirst-page read latency (%d req, %d entries, sqlite + redis)\n", REQS, entries)
	fmt.Printf("%-14s avg=%v p95=%v p99=%v db_reads=%d cache_hits=%d\n",
		"Direct sqlite", avg(direct.durations), pct(direct.durations, 0.95), pct(direct.durations, 0.99),
		direct.counters.PageQueries, direct.counters.CacheHits)
	fmt.Printf("%-14s avg=%v p95=%v p99=%v db_reads=%d cache_hits=%d\n",
		"Hot-page cache", avg(cached.durations), pct(cached.durations, 0.95), pct(cached.durations, 0.99),
		cached.counters.PageQueries, cached.counters.CacheHits)

	// a save transaction invalidates the hot page and the next read repopulates
	stop := svc.WatchInvalidations(inv, pagingKey)
	defer stop()
	if _, err := mediator.Load(ctx, service.TriggerRefresh, SIZE); err != nil { panic(err) }
	time.Sleep(50 * time.Millisecond)
	st := time.Now()
	if _, err := svc.FirstPage(ctx, pagingKey, accountKey, 20); err != nil { panic(err) }
	fmt.Printf("Post-refresh repopulate read: %v\n", time.Since(st))
}

type scenarioResult struct {
	durations []time.Duration
	counters  cacheperf.HotPageCounters
}

func runScenario(ctx context.Context, svc *cacheperf.HotPageService, client *redis.Client, reqs int, call func(context.Context) error) scenarioResult {
	client.FlushAll(ctx)
	svc.ResetCounters()

	out := make([]time.Duration, 0, reqs)
	for i := 0; i < reqs; i++ {
		st := time.Now()
		if err := call(ctx); err != nil { panic(err) }
		out = append(out, time.Since(st))
	}
	return scenarioResult{durations: out, counters: svc.Counters()}
}

func syntheticFetch(total int) datasource.MastodonFetch {
	return func(ctx context.Context, maxID, minID string, limit int) ([]datasource.MastodonStatus, error) {
		start := total
		if maxID != "" {
			v, _ := strconv.Atoi(maxID)
			start = v - 1
		}
		out := make([]datasource.MastodonStatus, 0, limit)
		for id := start; id > start-limit && id > 0; id-- {
			out = append(out, datasource.MastodonStatus{
				ID:        strconv.Itoa(id),
				CreatedAt: time.Unix(int64(id), 0),
				Content:   fmt.Sprintf("post %d", id),
				Account:   datasource.MastodonAccount{ID: strconv.Itoa(id % 50), Username: fmt.Sprintf("u%d", id%50)},
			})
		}
		return out, nil
	}
}
