package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/timeline-cache/config"
	"github.com/d60-Lab/timeline-cache/internal/model"
)

// InitDB 打开 sqlite 并迁移缓存表
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate 建全部缓存表；测试用 :memory: 时也走这里
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Status{},
		&model.User{},
		&model.StatusReference{},
		&model.PagingTimeline{},
		&model.PagingCursor{},
		&model.Emoji{},
	)
}
