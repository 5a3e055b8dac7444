package handler

import (
	"github.com/d60-Lab/timeline-cache/internal/repository"
	"github.com/d60-Lab/timeline-cache/internal/service"
)

// Handler 聚合缓存检查接口的依赖
type Handler struct {
	timeline repository.TimelineRepository
	statuses repository.StatusRepository
	cursors  repository.CursorRepository
	feeds    *service.FeedManager
}

func NewHandler(timeline repository.TimelineRepository, statuses repository.StatusRepository,
	cursors repository.CursorRepository, feeds *service.FeedManager) *Handler {
	return &Handler{timeline: timeline, statuses: statuses, cursors: cursors, feeds: feeds}
}
