package model

import "time"

// Groupは投稿のコミュニティ。GroupNameがリアルタイム配信のチャンネル名になる。
type Group struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	GroupName string `gorm:"uniqueIndex;not null" json:"group_name"`
	OwnerID   string `gorm:"type:uuid;not null;index" json:"owner_id"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
