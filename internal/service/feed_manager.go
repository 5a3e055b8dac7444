package service

import (
	"context"
	"errors"
	"sync"

	"github.com/d60-Lab/timeline-cache/internal/datasource"
	"github.com/d60-Lab/timeline-cache/internal/repository"
)

var ErrFeedNotRegistered = errors.New("feed not registered")

// FeedManager 按 pagingKey 维护 mediator 实例；不同 feed 可并发加载
type FeedManager struct {
	mu        sync.Mutex
	timeline  repository.TimelineRepository
	cursors   repository.CursorRepository
	mediators map[string]*RemoteMediator
}

func NewFeedManager(timeline repository.TimelineRepository, cursors repository.CursorRepository) *FeedManager {
	return &FeedManager{
		timeline:  timeline,
		cursors:   cursors,
		mediators: make(map[string]*RemoteMediator),
	}
}

// Register 为一个 feed 建立 mediator；重复注册返回已有实例
func (f *FeedManager) Register(accountKey, pagingKey string, source datasource.PagingSource) *RemoteMediator {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.mediators[pagingKey]; ok {
		return m
	}
	m := NewRemoteMediator(accountKey, pagingKey, source, f.timeline, f.cursors)
	f.mediators[pagingKey] = m
	return m
}

func (f *FeedManager) Mediator(pagingKey string) (*RemoteMediator, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mediators[pagingKey]
	return m, ok
}

func (f *FeedManager) PagingKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.mediators))
	for k := range f.mediators {
		keys = append(keys, k)
	}
	return keys
}

func (f *FeedManager) Load(ctx context.Context, pagingKey string, trigger LoadTrigger, pageSize int) (LoadResult, error) {
	m, ok := f.Mediator(pagingKey)
	if !ok {
		return LoadResult{}, ErrFeedNotRegistered
	}
	return m.Load(ctx, trigger, pageSize)
}
