package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/domain/model"
	"app/internal/mail"
	"app/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// 再設定コードの有効期限
const verificationCodeTTL = 15 * time.Minute

type PasswordResetUsecase struct {
	users  repository.UserRepository
	codes  repository.VerificationCodeRepository
	sender mail.Sender
}

func NewPasswordResetUsecase(
	users repository.UserRepository,
	codes repository.VerificationCodeRepository,
	sender mail.Sender,
) *PasswordResetUsecase {
	return &PasswordResetUsecase{
		users:  users,
		codes:  codes,
		sender: sender,
	}
}

// ForgetPasswordはワンタイムコードをメールで送る。
// 有効なコードが残っていればそれを再送する（連打で増殖させない）。
func (u *PasswordResetUsecase) ForgetPassword(ctx context.Context, email string) error {
	if email == "" {
		return ErrValidation
	}

	user, err := u.users.FindByEmail(ctx, email)
	if err != nil || user == nil {
		return ErrNotFound
	}

	now := time.Now()

	code, err := u.codes.FindActiveByEmail(ctx, email, now)
	if err != nil {
		if !errors.Is(err, repository.ErrVerificationCodeNotFound) {
			return ErrInternal
		}

		plain, genErr := mail.GenerateCode(6)
		if genErr != nil {
			return ErrInternal
		}

		code = &model.VerificationCode{
			ID:        uuid.NewString(),
			Email:     email,
			Code:      plain,
			ExpiresAt: now.Add(verificationCodeTTL),
		}
		if err := u.codes.Create(ctx, code); err != nil {
			return ErrInternal
		}
	}

	body := fmt.Sprintf("Verification Code: %s , Please enter this code to verify your identity. Do not share it with anyone.", code.Code)
	if err := u.sender.Send(ctx, email, "Verification", body); err != nil {
		return ErrInternal
	}

	return nil
}

// VerifyCodeはコードを照合してパスワードを再設定する。
// 照合に成功したコードは消費する（同じコードは二度使えない）。
func (u *PasswordResetUsecase) VerifyCode(ctx context.Context, email string, code string, newPassword string, confirmedNewPassword string) error {
	if email == "" || code == "" || newPassword == "" {
		return ErrValidation
	}
	if newPassword != confirmedNewPassword {
		return ErrValidation
	}
	if len(newPassword) < 8 {
		return ErrValidation
	}

	stored, err := u.codes.FindActiveByEmail(ctx, email, time.Now())
	if err != nil || stored.Code != code {
		return ErrUnauthorized
	}

	user, err := u.users.FindByEmail(ctx, email)
	if err != nil || user == nil {
		return ErrNotFound
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return ErrInternal
	}

	user.PasswordHash = string(pwHash)
	if err := u.users.Update(ctx, user); err != nil {
		return ErrInternal
	}

	//使ったコードは消す
	_ = u.codes.Delete(ctx, stored.ID)

	return nil
}
