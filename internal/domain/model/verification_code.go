package model

import "time"

// VerificationCodeはパスワード再設定用のワンタイムコード（6桁数字）。
type VerificationCode struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"not null;index"`
	Code      string    `gorm:"type:varchar(10);not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time
}
