package model

import "time"

// 認証まわりのセキュリティイベント。
type AuditAction string

const (
	//失効済みrefresh tokenの再提示（盗難シグナル）。
	AuditActionTokenReuseDetected AuditAction = "TOKEN_REUSE_DETECTED"
	//管理者によるセッション全失効。
	AuditActionForceLogout AuditAction = "FORCE_LOGOUT"
	//本人によるトークン失効。
	AuditActionTokenRevoked AuditAction = "TOKEN_REVOKED"
)

// 何に対する操作か
type AuditResourceType string

const (
	//ユーザーに対する操作。
	AuditResourceUser AuditResourceType = "user"

	//refresh tokenに対する操作。
	AuditResourceRefreshToken AuditResourceType = "refresh_token"
)

// 監査ログ（セキュリティイベントログ）。
// 「誰が」「何を」「どの対象に」行ったかを残す。
type AuditLog struct {
	//IDは監査ログの主キー
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//イベントの主体となったユーザーのID。
	ActorUserID string `gorm:"type:uuid;not null;index" json:"actor_user_id"`

	//Actionはイベントの種類（TOKEN_REUSE_DETECTED など）。
	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	//対象の種類（user / refresh_token）。
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	//対象のID。
	ResourceID string `gorm:"not null;index" json:"resource_id"`

	//付帯情報（UserAgentなど）をJSON文字列で保存する。
	DetailJSON string `gorm:"type:text" json:"detail_json"`

	//作成時刻
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
