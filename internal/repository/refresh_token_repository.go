package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
	"time"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// リフレッシュトークンの保存・取得・失効。
// 物理削除はしない（再利用検知の証跡に使うため）。
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	FindByID(ctx context.Context, tokenID string) (*model.RefreshToken, error)

	// RevokeAndLinkは失効と同時に後継トークンIDを記録する（ローテーション用）。
	// revoked_at IS NULL の行だけ更新する。0件ならErrRefreshTokenNotFound。
	// 同じトークンで同時にrotateされても片方しか成功しない。
	RevokeAndLink(ctx context.Context, tokenID string, revokedAt time.Time, replacedByID string) error

	// Revokeはrevoked_atをセットして無効にする。すでに無効ならErrRefreshTokenNotFound。
	Revoke(ctx context.Context, tokenID string, revokedAt time.Time) error

	// RevokeAllByUserIDは指定ユーザーの有効なトークンを全て失効する。
	// 失効した件数を返す。
	RevokeAllByUserID(ctx context.Context, userID string, revokedAt time.Time) (int64, error)
}
