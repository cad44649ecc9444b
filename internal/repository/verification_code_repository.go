package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
	"time"
)

var ErrVerificationCodeNotFound = errors.New("verification code not found")

// パスワード再設定コードの保存・照合を約束
type VerificationCodeRepository interface {
	Create(ctx context.Context, code *model.VerificationCode) error
	//有効期限内のコードをemailで1件取得する。
	FindActiveByEmail(ctx context.Context, email string, now time.Time) (*model.VerificationCode, error)
	//照合に成功したコードは消費（削除）する。
	Delete(ctx context.Context, codeID string) error
	//期限切れコードの掃除。削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
