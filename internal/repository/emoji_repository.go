package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

// EmojiRepository 每个 host 的 emoji 目录，抓到即 upsert，读穿缓存
type EmojiRepository interface {
	Upsert(ctx context.Context, host string, content model.Payload) error
	Get(ctx context.Context, host string) (*model.Emoji, error)
}

type emojiRepository struct {
	db  *gorm.DB
	inv *Invalidator
}

func NewEmojiRepository(db *gorm.DB, inv *Invalidator) EmojiRepository {
	return &emojiRepository{db: db, inv: inv}
}

func (r *emojiRepository) Upsert(ctx context.Context, host string, content model.Payload) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "host"}},
		UpdateAll: true,
	}).Create(&model.Emoji{Host: host, Content: content}).Error
	if err != nil {
		return err
	}
	r.inv.Publish(TopicStore)
	return nil
}

func (r *emojiRepository) Get(ctx context.Context, host string) (*model.Emoji, error) {
	var row model.Emoji
	err := r.db.WithContext(ctx).Where("host = ?", host).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
