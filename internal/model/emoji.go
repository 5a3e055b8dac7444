package model

import "time"

// Emoji 每个 host 的自定义 emoji 目录，读穿缓存、无 TTL
type Emoji struct {
	Host      string  `gorm:"primaryKey;type:varchar(191)"`
	Content   Payload `gorm:"type:text"`
	UpdatedAt time.Time
}

func (Emoji) TableName() string { return "emoji" }
