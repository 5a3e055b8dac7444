package model

import "time"

// User 归一化的作者记录；status 对 user 是弱引用，时间线淘汰不删 user
type User struct {
	UserKey      string       `gorm:"primaryKey;type:varchar(191)"`
	Name         string       `gorm:"type:varchar(255)"`
	Handle       string       `gorm:"type:varchar(255);index:idx_user_handle"`
	PlatformType PlatformType `gorm:"type:varchar(16);not null"`
	Content      Payload      `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "user" }
