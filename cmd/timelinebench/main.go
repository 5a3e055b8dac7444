package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/timeline-cache/internal/datasource"
	"github.com/d60-Lab/timeline-cache/internal/repository"
	"github.com/d60-Lab/timeline-cache/internal/service"
	"github.com/d60-Lab/timeline-cache/pkg/database"
)

func must[T any](v T, err error) T { if err != nil { panic(err) }; return v }

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 { return 0 }
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 { k = 0 }
	if k >= len(xs) { k = len(xs)-1 }
	return xs[k]
}

// synthetic source: serves deterministic Mastodon-shaped pages straight from
// memory so the bench measures the save transaction and the join read, not
// the network.
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

func main() {
	// params
	PAGES := 50 // append pages to load
	SIZE := 50  // page size
	READS := 200
	if s := os.Getenv("PAGES"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { PAGES = v } }
	if s := os.Getenv("SIZE"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { SIZE = v } }
	if s := os.Getenv("READS"); s != "" { if v, e := strconv.Atoi(s); e == nil && v > 0 { READS = v } }

	db := must(gorm.Open(sqlite.Open(":memory:"), &gorm.Config{}))
	if err := database.Migrate(db); err != nil { panic(err) }

	inv := repository.NewInvalidator()
	timelineRepo := repository.NewTimelineRepository(db, inv)
	cursorRepo := repository.NewCursorRepository(db)

	const pagingKey = "bench_home"
	const accountKey = "bench@local"
	src := datasource.NewMastodonSource("bench.local", syntheticFetch((PAGES+1)*SIZE))
	mediator := service.NewRemoteMediator(accountKey, pagingKey, src, timelineRepo, cursorRepo)
	ctx := context.Background()

	// refresh then drive appends, timing each fetch+save cycle
	loads := make([]time.Duration, 0, PAGES+1)
	st := time.Now()
	if _, err := mediator.Load(ctx, service.TriggerRefresh, SIZE); err != nil { panic(err) }
	loads = append(loads, time.Since(st))
	for i := 0; i < PAGES; i++ {
		st = time.Now()
		res, err := mediator.Load(ctx, service.TriggerAppend, SIZE)
		if err != nil { panic(err) }
		loads = append(loads, time.Since(st))
		if res.EndOfPagination { break }
	}

	entries := must(timelineRepo.CountEntries(ctx, pagingKey))

	// window reads across the feed
	reads := make([]time.Duration, 0, READS)
	for i := 0; i < READS; i++ {
		offset := (i * 20) % int(entries)
		st = time.Now()
		if _, err := timelineRepo.Window(ctx, pagingKey, accountKey, offset, 20); err != nil { panic(err) }
		reads = append(reads, time.Since(st))
	}

	var loadSum, readSum time.Duration
	for _, d := range loads { loadSum += d }
	for _, d := range reads { readSum += d }
	fmt.Printf("PAGES=%d SIZE=%d READS=%d entries=%d\n", PAGES, SIZE, READS, entries)
	fmt.Printf("Load (fetch+save tx): avg=%v p95=%v p99=%v\n", loadSum/time.Duration(len(loads)), pct(loads, 0.95), pct(loads, 0.99))
	fmt.Printf("Window read (limit=20): avg=%v p95=%v p99=%v\n", readSum/time.Duration(len(reads)), pct(reads, 0.95), pct(reads, 0.99))
}
