package model

import "time"

type Post struct {
	ID      string `gorm:"type:uuid;primaryKey" json:"id"`
	Header  string `gorm:"not null" json:"header"`
	Text    string `gorm:"type:text" json:"text"`
	UserID  string `gorm:"type:uuid;not null;index" json:"user_id"`
	GroupID string `gorm:"type:uuid;not null;index" json:"group_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// PostLikeは「誰がどの投稿にいいねしたか」の1行。
// (post_id, user_id)のuniqueで二重いいねをDBでも防ぐ。
type PostLike struct {
	PostID    string `gorm:"type:uuid;primaryKey" json:"post_id"`
	UserID    string `gorm:"type:uuid;primaryKey" json:"user_id"`
	CreatedAt time.Time
}
