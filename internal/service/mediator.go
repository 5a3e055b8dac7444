package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/d60-Lab/timeline-cache/internal/datasource"
	"github.com/d60-Lab/timeline-cache/internal/model"
	"github.com/d60-Lab/timeline-cache/internal/repository"
	"github.com/d60-Lab/timeline-cache/pkg/logger"
)

// LoadTrigger 分页控件发起的三种加载
type LoadTrigger int

const (
	TriggerRefresh LoadTrigger = iota + 1
	TriggerPrepend
	TriggerAppend
)

func (t LoadTrigger) String() string {
	switch t {
	case TriggerRefresh:
		return "refresh"
	case TriggerPrepend:
		return "prepend"
	case TriggerAppend:
		return "append"
	}
	return "unknown"
}

// LoadResult 单次加载的结果；EndOfPagination 与错误互斥
type LoadResult struct {
	EndOfPagination bool
}

var ErrInvalidTrigger = errors.New("invalid load trigger")

// RemoteMediator 单个 feed 实例的加载状态机：决定抓哪个方向、用哪个游标，
// 并把抓到的页交给 TimelineRepository 事务化落库。
// 同一实例的 Load 由上层分页框架串行调用，不同 feed 的 mediator 可并发。
type RemoteMediator struct {
	accountKey string
	pagingKey  string
	source     datasource.PagingSource
	timeline   repository.TimelineRepository
	cursors    repository.CursorRepository
}

func NewRemoteMediator(accountKey, pagingKey string, source datasource.PagingSource,
	timeline repository.TimelineRepository, cursors repository.CursorRepository) *RemoteMediator {
	return &RemoteMediator{
		accountKey: accountKey,
		pagingKey:  pagingKey,
		source:     source,
		timeline:   timeline,
		cursors:    cursors,
	}
}

// Load 执行一次加载。抓取或映射失败时缓存保持原状；落库全有或全无。
func (m *RemoteMediator) Load(ctx context.Context, trigger LoadTrigger, pageSize int) (LoadResult, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	switch trigger {
	case TriggerRefresh:
		return m.refresh(ctx, pageSize)
	case TriggerPrepend:
		return m.page(ctx, trigger, pageSize)
	case TriggerAppend:
		return m.page(ctx, trigger, pageSize)
	default:
		return LoadResult{}, ErrInvalidTrigger
	}
}

func (m *RemoteMediator) refresh(ctx context.Context, pageSize int) (LoadResult, error) {
	res, err := m.source.FetchPage(ctx, datasource.PageRequest{Kind: datasource.LoadRefresh, Limit: pageSize})
	if err != nil {
		logger.Warn("refresh fetch failed",
			zap.String("paging_key", m.pagingKey), zap.Error(err))
		return LoadResult{}, err
	}
	req := m.saveRequest(res.Rows)
	req.ClearFeed = true
	req.Cursor = repository.CursorUpdate{
		Kind: repository.CursorReplace,
		Next: res.NextKey,
		Prev: res.PrevKey,
	}
	if err := m.timeline.SavePage(ctx, req); err != nil {
		return LoadResult{}, err
	}
	// 刷新从不宣告到底：总是假定前方还有数据
	return LoadResult{}, nil
}

func (m *RemoteMediator) page(ctx context.Context, trigger LoadTrigger, pageSize int) (LoadResult, error) {
	// 声明为单发的源没有增量分页：不读台账也不发网络请求
	if m.source.SingleShot() {
		return LoadResult{EndOfPagination: true}, nil
	}

	cur, err := m.cursors.Get(ctx, m.pagingKey)
	if err != nil {
		return LoadResult{}, err
	}
	var cursor *string
	kind := datasource.LoadAppend
	if trigger == TriggerPrepend {
		kind = datasource.LoadPrepend
	}
	if cur != nil {
		if trigger == TriggerPrepend {
			cursor = cur.PrevKey
		} else {
			cursor = cur.NextKey
		}
	}
	// 游标缺失即该方向已到底，终态
	if cursor == nil {
		return LoadResult{EndOfPagination: true}, nil
	}

	res, err := m.source.FetchPage(ctx, datasource.PageRequest{Kind: kind, Cursor: *cursor, Limit: pageSize})
	if err != nil {
		logger.Warn("page fetch failed",
			zap.String("paging_key", m.pagingKey),
			zap.String("trigger", trigger.String()), zap.Error(err))
		return LoadResult{}, err
	}

	req := m.saveRequest(res.Rows)
	var end bool
	if trigger == TriggerPrepend {
		req.Cursor = repository.CursorUpdate{Kind: repository.CursorPatchPrev, Prev: res.PrevKey}
		end = res.PrevKey == nil
	} else {
		req.Cursor = repository.CursorUpdate{Kind: repository.CursorPatchNext, Next: res.NextKey}
		end = res.NextKey == nil
	}
	if err := m.timeline.SavePage(ctx, req); err != nil {
		return LoadResult{}, err
	}
	return LoadResult{EndOfPagination: end}, nil
}

// saveRequest 把抓到的行摊平成一次落库请求
func (m *RemoteMediator) saveRequest(rows []datasource.Row) repository.SavePageRequest {
	req := repository.SavePageRequest{
		AccountKey: m.accountKey,
		PagingKey:  m.pagingKey,
	}
	for _, row := range rows {
		req.Statuses = append(req.Statuses, row.Status)
		req.Statuses = append(req.Statuses, row.Statuses...)
		req.Users = append(req.Users, row.Users...)
		req.References = append(req.References, row.References...)
		req.Entries = append(req.Entries, model.PagingTimeline{
			AccountKey: m.accountKey,
			StatusKey:  row.Status.StatusKey,
			PagingKey:  m.pagingKey,
			SortID:     row.SortID,
		})
	}
	return req
}
