package cacheperf

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/timeline-cache/internal/repository"
)

// HotPageService demonstrates a Redis read-through layer for the first page of
// a timeline, the window nearly every reader asks for. The sqlite store stays
// the source of truth; a page save invalidates the cached window.
type HotPageService struct {
	timeline repository.TimelineRepository
	cache    *redis.Client
	ttl      time.Duration

	pageQueries atomic.Int64
	cacheHits   atomic.Int64
}

func NewHotPageService(timeline repository.TimelineRepository, cache *redis.Client, ttl time.Duration) *HotPageService {
	return &HotPageService{timeline: timeline, cache: cache, ttl: ttl}
}

// FirstPage serves the newest window of a feed, Redis first.
func (s *HotPageService) FirstPage(ctx context.Context, pagingKey, accountKey string, size int) ([]repository.TimelineItem, error) {
	key := hotPageKey(pagingKey, accountKey, size)
	if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
		var out []repository.TimelineItem
		if uErr := json.Unmarshal(data, &out); uErr == nil {
			s.cacheHits.Add(1)
			return out, nil
		}
	}

	s.pageQueries.Add(1)
	items, err := s.timeline.Window(ctx, pagingKey, accountKey, 0, size)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(items); err == nil {
		_ = s.cache.Set(ctx, key, payload, s.ttl).Err()
	}
	return items, nil
}

// FirstPageNoCache bypasses Redis; used as the baseline in cachebench.
func (s *HotPageService) FirstPageNoCache(ctx context.Context, pagingKey, accountKey string, size int) ([]repository.TimelineItem, error) {
	s.pageQueries.Add(1)
	return s.timeline.Window(ctx, pagingKey, accountKey, 0, size)
}

// Invalidate drops every cached window of the feed.
func (s *HotPageService) Invalidate(ctx context.Context, pagingKey string) error {
	iter := s.cache.Scan(ctx, 0, "hotpage:"+pagingKey+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// WatchInvalidations drops cached windows whenever the feed's save transaction
// commits; returns a stop function.
func (s *HotPageService) WatchInvalidations(inv *repository.Invalidator, pagingKey string) func() {
	signal, cancel := inv.Subscribe(repository.TopicFeed(pagingKey))
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-signal:
				ctx, cancelCtx := context.WithTimeout(context.Background(), 2*time.Second)
				_ = s.Invalidate(ctx, pagingKey)
				cancelCtx()
			case <-done:
				return
			}
		}
	}()
	return func() {
		cancel()
		close(done)
	}
}

// Counters reports how many reads hit Redis vs the store.
func (s *HotPageService) Counters() HotPageCounters {
	return HotPageCounters{
		PageQueries: s.pageQueries.Load(),
		CacheHits:   s.cacheHits.Load(),
	}
}

// ResetCounters clears recorded counters.
func (s *HotPageService) ResetCounters() {
	s.pageQueries.Store(0)
	s.cacheHits.Store(0)
}

// HotPageCounters summarises reads during a run.
type HotPageCounters struct {
	PageQueries int64
	CacheHits   int64
}

func hotPageKey(pagingKey, accountKey string, size int) string {
	return fmt.Sprintf("hotpage:%s:%s:%d", pagingKey, accountKey, size)
}
