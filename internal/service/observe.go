package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/d60-Lab/timeline-cache/internal/repository"
	"github.com/d60-Lab/timeline-cache/pkg/logger"
)

// TimelineObserver 时间线读侧的响应式入口，UI 的分页适配器观察它而非裸表
type TimelineObserver struct {
	timeline repository.TimelineRepository
	inv      *repository.Invalidator
}

func NewTimelineObserver(timeline repository.TimelineRepository, inv *repository.Invalidator) *TimelineObserver {
	return &TimelineObserver{timeline: timeline, inv: inv}
}

// Observe 先发当前窗口，此后任何写事务提交都重查再发；ctx 取消后关闭通道。
// 订阅全局主题：实体 upsert（如补全悬空引用）也要触发时间线重发。
func (o *TimelineObserver) Observe(ctx context.Context, pagingKey, accountKey string, offset, limit int) <-chan []repository.TimelineItem {
	out := make(chan []repository.TimelineItem, 1)
	signal, cancel := o.inv.Subscribe(repository.TopicStore, repository.TopicFeed(pagingKey))
	go func() {
		defer cancel()
		defer close(out)
		for {
			items, err := o.timeline.Window(ctx, pagingKey, accountKey, offset, limit)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("timeline window query failed",
						zap.String("paging_key", pagingKey), zap.Error(err))
				}
			} else {
				select {
				case out <- items:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-signal:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
