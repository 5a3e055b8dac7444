package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

// CursorUpdateKind 页面落库时对游标台账的动作
type CursorUpdateKind int

const (
	CursorReplace CursorUpdateKind = iota + 1
	CursorPatchNext
	CursorPatchPrev
)

type CursorUpdate struct {
	Kind CursorUpdateKind
	Next *string
	Prev *string
}

// SavePageRequest 一页抓取结果的落库请求。
// {游标变更, 实体 upsert, 时间线项插入} 在一个事务里全有或全无。
type SavePageRequest struct {
	AccountKey string
	PagingKey  string
	// ClearFeed 刷新语义：插入前先清空该 feed 的全部时间线项
	ClearFeed  bool
	Cursor     CursorUpdate
	Statuses   []model.Status
	Users      []model.User
	References []model.StatusReference
	Entries    []model.PagingTimeline
}

// TimelineItem 读侧重建出的富时间线项
type TimelineItem struct {
	Status     model.Status        `json:"status"`
	Author     *model.User         `json:"author"`
	References []TimelineReference `json:"references,omitempty"`
}

// TimelineReference 被引用的帖子及其作者；作者未入库时为 nil
type TimelineReference struct {
	Type   model.ReferenceType `json:"type"`
	Status model.Status        `json:"status"`
	Author *model.User         `json:"author"`
}

// TimelineRepository 时间线的写事务与连接视图读
type TimelineRepository interface {
	SavePage(ctx context.Context, req SavePageRequest) error
	// Window 按 sort_id 降序返回一窗富时间线项；status 已不存在的项被过滤
	Window(ctx context.Context, pagingKey, accountKey string, offset, limit int) ([]TimelineItem, error)
	CountEntries(ctx context.Context, pagingKey string) (int64, error)
	// ClearFeed 仅删除该 feed 的时间线项与游标，status/user 行保留
	ClearFeed(ctx context.Context, pagingKey string) error
}

type timelineRepository struct {
	db  *gorm.DB
	inv *Invalidator
}

func NewTimelineRepository(db *gorm.DB, inv *Invalidator) TimelineRepository {
	return &timelineRepository{db: db, inv: inv}
}

func (r *timelineRepository) SavePage(ctx context.Context, req SavePageRequest) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.ClearFeed {
			if err := tx.Where("paging_key = ?", req.PagingKey).
				Delete(&model.PagingTimeline{}).Error; err != nil {
				return err
			}
		}
		switch req.Cursor.Kind {
		case CursorReplace:
			if err := replaceCursor(tx, req.PagingKey, req.Cursor.Next, req.Cursor.Prev); err != nil {
				return err
			}
		case CursorPatchNext:
			if err := patchNextCursor(tx, req.PagingKey, req.Cursor.Next); err != nil {
				return err
			}
		case CursorPatchPrev:
			if err := patchPrevCursor(tx, req.PagingKey, req.Cursor.Prev); err != nil {
				return err
			}
		}
		if err := upsertUsers(tx, req.Users); err != nil {
			return err
		}
		if err := upsertStatuses(tx, req.Statuses); err != nil {
			return err
		}
		if err := upsertReferences(tx, req.References); err != nil {
			return err
		}
		return insertEntries(tx, req.Entries)
	})
	if err != nil {
		return err
	}
	topics := statusTopics(req.Statuses)
	topics = append(topics, TopicFeed(req.PagingKey))
	r.inv.Publish(topics...)
	return nil
}

func insertEntries(tx *gorm.DB, rows []model.PagingTimeline) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.New().String()
		}
	}
	// 相邻页重叠时同一 (account, status, paging) 只保留先到的位置
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *timelineRepository) Window(ctx context.Context, pagingKey, accountKey string, offset, limit int) ([]TimelineItem, error) {
	if limit <= 0 {
		limit = 20
	}
	db := r.db.WithContext(ctx)

	var entries []model.PagingTimeline
	if err := db.Where("paging_key = ? AND account_key = ?", pagingKey, accountKey).
		Order("sort_id DESC").
		Offset(offset).Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []TimelineItem{}, nil
	}

	statusKeys := make([]string, 0, len(entries))
	for _, e := range entries {
		statusKeys = append(statusKeys, e.StatusKey)
	}
	statuses, err := loadStatuses(db, statusKeys)
	if err != nil {
		return nil, err
	}

	var refs []model.StatusReference
	if err := db.Where("status_key IN ?", statusKeys).Find(&refs).Error; err != nil {
		return nil, err
	}
	refKeys := make([]string, 0, len(refs))
	for _, ref := range refs {
		refKeys = append(refKeys, ref.ReferenceStatusKey)
	}
	refStatuses, err := loadStatuses(db, refKeys)
	if err != nil {
		return nil, err
	}

	userKeys := make([]string, 0, len(statuses)+len(refStatuses))
	for _, s := range statuses {
		userKeys = append(userKeys, s.UserKey)
	}
	for _, s := range refStatuses {
		userKeys = append(userKeys, s.UserKey)
	}
	users, err := loadUsers(db, userKeys)
	if err != nil {
		return nil, err
	}

	refsByStatus := make(map[string][]model.StatusReference, len(refs))
	for _, ref := range refs {
		refsByStatus[ref.StatusKey] = append(refsByStatus[ref.StatusKey], ref)
	}

	items := make([]TimelineItem, 0, len(entries))
	for _, e := range entries {
		status, ok := statuses[e.StatusKey]
		if !ok {
			// status 行已被删：按约定过滤而非占位
			continue
		}
		item := TimelineItem{Status: status, Author: users[status.UserKey]}
		for _, ref := range refsByStatus[e.StatusKey] {
			refStatus, ok := refStatuses[ref.ReferenceStatusKey]
			if !ok {
				// 被引用的帖子尚未入库：嵌套字段悬空，后续 upsert 触达后自动补全
				continue
			}
			item.References = append(item.References, TimelineReference{
				Type:   ref.ReferenceType,
				Status: refStatus,
				Author: users[refStatus.UserKey],
			})
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *timelineRepository) CountEntries(ctx context.Context, pagingKey string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.PagingTimeline{}).
		Where("paging_key = ?", pagingKey).Count(&cnt).Error
	return cnt, err
}

func (r *timelineRepository) ClearFeed(ctx context.Context, pagingKey string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("paging_key = ?", pagingKey).
			Delete(&model.PagingTimeline{}).Error; err != nil {
			return err
		}
		return tx.Where("paging_key = ?", pagingKey).Delete(&model.PagingCursor{}).Error
	})
	if err != nil {
		return err
	}
	r.inv.Publish(TopicStore, TopicFeed(pagingKey))
	return nil
}

func loadStatuses(db *gorm.DB, keys []string) (map[string]model.Status, error) {
	out := make(map[string]model.Status, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var rows []model.Status
	if err := db.Where("status_key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.StatusKey] = row
	}
	return out, nil
}

func loadUsers(db *gorm.DB, keys []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var rows []model.User
	if err := db.Where("user_key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].UserKey] = &rows[i]
	}
	return out, nil
}
