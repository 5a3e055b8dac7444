package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

// StatusRepository 实体存储写入/点查接口
type StatusRepository interface {
	UpsertStatuses(ctx context.Context, rows []model.Status) error
	UpsertUsers(ctx context.Context, rows []model.User) error
	UpsertReferences(ctx context.Context, rows []model.StatusReference) error
	GetStatus(ctx context.Context, statusKey string) (*model.Status, error)
	GetUser(ctx context.Context, userKey string) (*model.User, error)
	// ObserveStatus 点查的响应式版本：先发当前值（可能为 nil），此后每次该 key 被
	// 写入时重查再发；ctx 取消后关闭通道
	ObserveStatus(ctx context.Context, statusKey string) <-chan *model.Status
	// UpdateStatusContent 变体守卫的读改写：存储的平台与期望不符时静默跳过。
	// 用于本地乐观更新（点赞/收藏开关）。
	UpdateStatusContent(ctx context.Context, statusKey string, platform model.PlatformType, transform func(raw json.RawMessage) (json.RawMessage, error)) error
}

type statusRepository struct {
	db  *gorm.DB
	inv *Invalidator
}

func NewStatusRepository(db *gorm.DB, inv *Invalidator) StatusRepository {
	return &statusRepository{db: db, inv: inv}
}

func (r *statusRepository) UpsertStatuses(ctx context.Context, rows []model.Status) error {
	if len(rows) == 0 {
		return nil
	}
	if err := upsertStatuses(r.db.WithContext(ctx), rows); err != nil {
		return err
	}
	r.inv.Publish(statusTopics(rows)...)
	return nil
}

func (r *statusRepository) UpsertUsers(ctx context.Context, rows []model.User) error {
	if len(rows) == 0 {
		return nil
	}
	if err := upsertUsers(r.db.WithContext(ctx), rows); err != nil {
		return err
	}
	r.inv.Publish(TopicStore)
	return nil
}

func (r *statusRepository) UpsertReferences(ctx context.Context, rows []model.StatusReference) error {
	if len(rows) == 0 {
		return nil
	}
	if err := upsertReferences(r.db.WithContext(ctx), rows); err != nil {
		return err
	}
	r.inv.Publish(TopicStore)
	return nil
}

func (r *statusRepository) GetStatus(ctx context.Context, statusKey string) (*model.Status, error) {
	var row model.Status
	err := r.db.WithContext(ctx).Where("status_key = ?", statusKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *statusRepository) GetUser(ctx context.Context, userKey string) (*model.User, error) {
	var row model.User
	err := r.db.WithContext(ctx).Where("user_key = ?", userKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *statusRepository) ObserveStatus(ctx context.Context, statusKey string) <-chan *model.Status {
	out := make(chan *model.Status, 1)
	signal, cancel := r.inv.Subscribe(TopicStatus(statusKey))
	go func() {
		defer cancel()
		defer close(out)
		for {
			row, err := r.GetStatus(ctx, statusKey)
			if err == nil {
				select {
				case out <- row:
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

func (r *statusRepository) UpdateStatusContent(ctx context.Context, statusKey string, platform model.PlatformType, transform func(raw json.RawMessage) (json.RawMessage, error)) error {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.Status
		err := tx.Where("status_key = ?", statusKey).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		// 变体不符：并发替换与变体特定操作竞争时的容错，按约定不报错
		if row.Content.Platform != platform {
			return nil
		}
		raw, err := transform(row.Content.Raw)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.Status{}).
			Where("status_key = ?", statusKey).
			Update("content", model.Payload{Platform: platform, Raw: raw}).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		r.inv.Publish(TopicStore, TopicStatus(statusKey))
	}
	return nil
}

// 共享的 upsert 原语：status/timeline 两个仓储在各自事务里复用

func upsertStatuses(tx *gorm.DB, rows []model.Status) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "status_key"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

func upsertUsers(tx *gorm.DB, rows []model.User) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_key"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

func upsertReferences(tx *gorm.DB, rows []model.StatusReference) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].ID == "" {
			rows[i].ID = uuid.New().String()
		}
	}
	// 同一条边重复出现无需更新，幂等
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func statusTopics(rows []model.Status) []string {
	topics := make([]string, 0, len(rows)+1)
	topics = append(topics, TopicStore)
	for _, row := range rows {
		topics = append(topics, TopicStatus(row.StatusKey))
	}
	return topics
}
