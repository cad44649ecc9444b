package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type verificationCodeGormRepository struct {
	db *gorm.DB
}

// GORM実装
func NewVerificationCodeGormRepository(db *gorm.DB) repo.VerificationCodeRepository {
	return &verificationCodeGormRepository{db: db}
}

func (r *verificationCodeGormRepository) Create(ctx context.Context, code *model.VerificationCode) error {
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		return err
	}
	return nil
}

// 有効期限内のコードをemailで1件取得（新しい順）。
func (r *verificationCodeGormRepository) FindActiveByEmail(ctx context.Context, email string, now time.Time) (*model.VerificationCode, error) {
	var code model.VerificationCode

	err := r.db.WithContext(ctx).
		Where("email = ? AND expires_at > ?", email, now).
		Order("created_at DESC").
		First(&code).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrVerificationCodeNotFound
		}
		return nil, err
	}

	return &code, nil
}

// 照合済みコードを消費する。
func (r *verificationCodeGormRepository) Delete(ctx context.Context, codeID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", codeID).
		Delete(&model.VerificationCode{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repo.ErrVerificationCodeNotFound
	}

	return nil
}

// 期限切れコードの掃除。
func (r *verificationCodeGormRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.VerificationCode{})

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
