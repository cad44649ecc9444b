package model

import "time"

// RefreshTokenはDBに平文を置かない（sha256ハッシュのみ保存）。
// 失効しても物理削除しない。再利用検知の証跡として残す。
type RefreshToken struct {
	ID        string     `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string     `json:"userId" gorm:"type:uuid;not null;index"`
	TokenHash string     `json:"-" gorm:"not null;uniqueIndex"`
	UserAgent string     `json:"userAgent" gorm:"not null"`
	ExpiresAt time.Time  `json:"expiresAt" gorm:"not null;index"`
	RevokedAt *time.Time `json:"revokedAt" gorm:"index"`

	// ローテーションで置き換えた後継トークンのID。
	// revoked かつ replaced_by あり のトークンが再提示されたら盗難シグナル。
	ReplacedByID string `json:"replacedById" gorm:"type:uuid;default:null"`

	CreatedAt time.Time `json:"createdAt"`
}

// Activeは今このトークンでrotateできるかどうか。
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
