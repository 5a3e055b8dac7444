package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/timeline-cache/internal/model"
)

// CursorRepository 游标台账的读路径。写路径全部走 SavePage 事务内的
// replace/patch 原语，保证台账与时间线项永不分叉。
type CursorRepository interface {
	// Get 返回 feed 当前游标；从未抓取过的 feed 返回 nil
	Get(ctx context.Context, pagingKey string) (*model.PagingCursor, error)
}

type cursorRepository struct{ db *gorm.DB }

func NewCursorRepository(db *gorm.DB) CursorRepository { return &cursorRepository{db: db} }

func (r *cursorRepository) Get(ctx context.Context, pagingKey string) (*model.PagingCursor, error) {
	var row model.PagingCursor
	err := r.db.WithContext(ctx).Where("paging_key = ?", pagingKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// replaceCursor 整行替换：删后插，没有旧游标的 feed 也能原子转入有游标状态
func replaceCursor(tx *gorm.DB, pagingKey string, next, prev *string) error {
	if err := tx.Where("paging_key = ?", pagingKey).Delete(&model.PagingCursor{}).Error; err != nil {
		return err
	}
	return tx.Create(&model.PagingCursor{PagingKey: pagingKey, NextKey: next, PrevKey: prev}).Error
}

// patchNextCursor 只动 next_key，prev_key 保持不变
func patchNextCursor(tx *gorm.DB, pagingKey string, next *string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "paging_key"}},
		DoUpdates: clause.Assignments(map[string]any{"next_key": next}),
	}).Create(&model.PagingCursor{PagingKey: pagingKey, NextKey: next}).Error
}

// patchPrevCursor 只动 prev_key
func patchPrevCursor(tx *gorm.DB, pagingKey string, prev *string) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "paging_key"}},
		DoUpdates: clause.Assignments(map[string]any{"prev_key": prev}),
	}).Create(&model.PagingCursor{PagingKey: pagingKey, PrevKey: prev}).Error
}
