package model

import "time"

// PagingTimeline 时间线项：把 status 绑定到某个 feed 实例的有序位置
type PagingTimeline struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	AccountKey string `gorm:"type:varchar(191);uniqueIndex:ux_timeline_entry;not null"`
	StatusKey  string `gorm:"type:varchar(191);uniqueIndex:ux_timeline_entry;index:idx_timeline_status;not null"`
	PagingKey  string `gorm:"type:varchar(255);uniqueIndex:ux_timeline_entry;index:idx_timeline_feed;not null"`
	// 复合唯一键，同一 feed 内同一 status 至多一条
	// ux_timeline_entry = (account_key, status_key, paging_key)
	SortID    int64 `gorm:"index:idx_timeline_feed;not null"`
	CreatedAt time.Time
}

func (PagingTimeline) TableName() string { return "paging_timeline" }

// PagingCursor 每个 feed 的抓取游标书签；next/prev 为 nil 表示该方向已到底
type PagingCursor struct {
	PagingKey string  `gorm:"primaryKey;type:varchar(255)"`
	NextKey   *string `gorm:"type:varchar(512)"`
	PrevKey   *string `gorm:"type:varchar(512)"`
	UpdatedAt time.Time
}

func (PagingCursor) TableName() string { return "paging_key" }
