package model

import "time"

// Status 归一化的帖子/通知记录，平台载荷以 tagged union 形式存 content 列
type Status struct {
	StatusKey    string       `gorm:"primaryKey;type:varchar(191)"`
	UserKey      string       `gorm:"type:varchar(191);index:idx_status_user"`
	PlatformType PlatformType `gorm:"type:varchar(16);index:idx_status_platform;not null"`
	Content      Payload      `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Status) TableName() string { return "status" }
