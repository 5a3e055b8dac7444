package model

// ReferenceType 帖子之间的边类型
type ReferenceType string

const (
	ReferenceRetweet ReferenceType = "retweet"
	ReferenceQuote   ReferenceType = "quote"
	ReferenceReply   ReferenceType = "reply"
)

// StatusReference 帖子间的有向边（A 转发/引用/回复 B）
type StatusReference struct {
	ID            string        `gorm:"primaryKey;type:varchar(36)"`
	ReferenceType ReferenceType `gorm:"type:varchar(16);uniqueIndex:ux_ref_edge;not null"`
	StatusKey     string        `gorm:"type:varchar(191);uniqueIndex:ux_ref_edge;index:idx_ref_status;not null"`
	// 复合唯一键，同类型同序对最多一条边
	// ux_ref_edge = (reference_type, status_key, reference_status_key)
	ReferenceStatusKey string `gorm:"type:varchar(191);uniqueIndex:ux_ref_edge;not null"`
}

func (StatusReference) TableName() string { return "status_reference" }
