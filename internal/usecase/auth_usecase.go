package usecase

import (
	"app/internal/domain/model"
	"app/internal/logging"
	"app/internal/repository"
	"app/internal/token"

	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	//400 入力不足
	ErrValidation = errors.New("validation error")
	//401 認証失敗
	ErrUnauthorized = errors.New("unauthorized")
	//403　権限
	ErrForbidden = errors.New("forbidden")
	//401 失効済みtokenが再利用されてしまっている
	ErrSecurityIncident = errors.New("security incident")
	//404
	ErrNotFound = errors.New("not found")
	//競合
	ErrConflict = errors.New("conflict")
	//500
	ErrInternal = errors.New("internal error")
)

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(ctx context.Context, email string, password string) error
	ValidateLogin(ctx context.Context, email string, password string) error
	ValidateRefresh(ctx context.Context, refreshToken string, userAgent string) error
	ValidatePasswordChange(ctx context.Context, newPassword string) error
}

type UserDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	IsActive    bool   `json:"is_active"`
}

type JwtAccessTokenDTO struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// 認証系操作の統一レスポンス。
// 失敗時はAuthenticated=falseとMessageだけが入る。
type AuthResult struct {
	Authenticated bool              `json:"authenticated"`
	Message       string            `json:"message,omitempty"`
	User          *UserDTO          `json:"user,omitempty"`
	Token         *JwtAccessTokenDTO `json:"token,omitempty"`

	//refresh tokenの平文。handlerがHttpOnly cookieに詰める。JSONには出さない。
	RefreshTokenPlain string    `json:"-"`
	RefreshExpiresAt  time.Time `json:"refresh_token_expires_at,omitempty"`
}

type AuthRegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type AuthUsecase struct {
	users     repository.UserRepository
	vault     *token.Vault
	audit     repository.AuditLogRepository
	validator AuthValidator
}

func NewAuthUsecase(
	users repository.UserRepository,
	vault *token.Vault,
	audit repository.AuditLogRepository,
	validator AuthValidator,
) *AuthUsecase {
	return &AuthUsecase{
		users:     users,
		vault:     vault,
		audit:     audit,
		validator: validator,
	}
}

func (u *AuthUsecase) Register(ctx context.Context, req AuthRegisterRequest, userAgent string) (*AuthResult, error) {
	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateRegister(ctx, req.Email, req.Password); err != nil {
		return rejected("invalid input"), ErrValidation
	}

	//email重複
	if existing, err := u.users.FindByEmail(ctx, req.Email); err == nil && existing != nil {
		return rejected("email already used"), ErrConflict
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, ErrInternal
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: string(pwHash),
		Role:         model.RoleUser,
		IsActive:     true,
	}

	if err := u.users.Create(ctx, user); err != nil {
		// uniqueに当たったときはここに来る
		return rejected("email already used"), ErrConflict
	}

	return u.issueResult(ctx, user, userAgent)
}

func (u *AuthUsecase) Login(ctx context.Context, req AuthLoginRequest, userAgent string) (*AuthResult, error) {
	if err := u.validator.ValidateLogin(ctx, req.Email, req.Password); err != nil {
		return rejected("invalid input"), ErrValidation
	}

	user, err := u.users.FindByEmail(ctx, req.Email)
	if err != nil || user == nil {
		return rejected("email or password is incorrect"), ErrUnauthorized
	}

	//停止ユーザーはログイン不可
	if !user.IsActive {
		return rejected("account is inactive"), ErrForbidden
	}

	//パスワード照合（bcrypt）
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return rejected("email or password is incorrect"), ErrUnauthorized
	}

	//last_login更新
	now := time.Now()
	user.LastLoginAt = &now
	_ = u.users.Update(ctx, user)

	return u.issueResult(ctx, user, userAgent)
}

// Refreshはrefresh tokenをローテーションして新しいペアを返す。
// 呼び出し側（handler）は古いcookieを必ず新しい値で上書きすること。
func (u *AuthUsecase) Refresh(ctx context.Context, refreshTokenPlain string, userAgent string) (*AuthResult, error) {
	if err := u.validator.ValidateRefresh(ctx, refreshTokenPlain, userAgent); err != nil {
		return rejected("invalid input"), ErrValidation
	}

	user, pair, err := u.vault.Rotate(ctx, refreshTokenPlain, userAgent)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrReuseDetected):
			//盗難シグナル。チェーンはvaultが失効済み。再ログインを強制する。
			logging.Warn().Str("user_agent", userAgent).Msg("refresh token reuse detected")
			return rejected("token reuse detected, please log in again"), ErrSecurityIncident
		case errors.Is(err, token.ErrTokenNotFound),
			errors.Is(err, token.ErrTokenExpired),
			errors.Is(err, token.ErrTokenRevoked):
			return rejected("invalid refresh token"), ErrUnauthorized
		default:
			return nil, ErrInternal
		}
	}

	if !user.IsActive {
		return rejected("account is inactive"), ErrForbidden
	}

	userDTO := toUserDTO(user)
	return &AuthResult{
		Authenticated: true,
		User:          &userDTO,
		Token: &JwtAccessTokenDTO{
			AccessToken: pair.AccessToken,
			ExpiresIn:   pair.ExpiresIn,
		},
		RefreshTokenPlain: pair.RefreshPlain,
		RefreshExpiresAt:  pair.RefreshExpiresAt,
	}, nil
}

// Revokeはtokenを失効させる。直前まで有効だったらtrue。冪等。
func (u *AuthUsecase) Revoke(ctx context.Context, refreshTokenPlain string, actorUserID string) (bool, error) {
	if refreshTokenPlain == "" {
		return false, ErrValidation
	}

	active, err := u.vault.Revoke(ctx, refreshTokenPlain)
	if err != nil {
		return false, ErrInternal
	}

	if active && actorUserID != "" {
		_ = u.audit.Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionTokenRevoked,
			ResourceType: model.AuditResourceRefreshToken,
			ResourceID:   actorUserID,
			CreatedAt:    time.Now(),
		})
	}

	return active, nil
}

func (u *AuthUsecase) Me(ctx context.Context, userID string) (*UserDTO, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return nil, ErrUnauthorized
	}

	if !user.IsActive {
		return nil, ErrForbidden
	}

	dto := toUserDTO(user)
	return &dto, nil
}

// ChangePasswordは旧パスワードを確認してから更新する。
func (u *AuthUsecase) ChangePassword(ctx context.Context, userID string, oldPassword string, newPassword string) error {
	if err := u.validator.ValidatePasswordChange(ctx, newPassword); err != nil {
		return ErrValidation
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil || user == nil {
		return ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrUnauthorized
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return ErrInternal
	}

	user.PasswordHash = string(pwHash)
	if err := u.users.Update(ctx, user); err != nil {
		return ErrInternal
	}

	return nil
}

// ForceLogoutは対象ユーザーの全refresh tokenを失効させる（管理者用）。
func (u *AuthUsecase) ForceLogout(ctx context.Context, actorUserID string, targetUserID string) (int64, error) {
	if targetUserID == "" {
		return 0, ErrValidation
	}

	target, err := u.users.FindByID(ctx, targetUserID)
	if err != nil || target == nil {
		return 0, ErrNotFound
	}

	revoked, err := u.vault.RevokeAllForUser(ctx, targetUserID)
	if err != nil {
		return 0, ErrInternal
	}

	detail, _ := json.Marshal(map[string]int64{"revoked": revoked})
	_ = u.audit.Create(ctx, model.AuditLog{
		ActorUserID:  actorUserID,
		Action:       model.AuditActionForceLogout,
		ResourceType: model.AuditResourceUser,
		ResourceID:   targetUserID,
		DetailJSON:   string(detail),
		CreatedAt:    time.Now(),
	})

	return revoked, nil
}

func (u *AuthUsecase) issueResult(ctx context.Context, user *model.User, userAgent string) (*AuthResult, error) {
	pair, err := u.vault.Issue(ctx, user, userAgent)
	if err != nil {
		return nil, ErrInternal
	}

	userDTO := toUserDTO(user)
	return &AuthResult{
		Authenticated: true,
		User:          &userDTO,
		Token: &JwtAccessTokenDTO{
			AccessToken: pair.AccessToken,
			ExpiresIn:   pair.ExpiresIn,
		},
		RefreshTokenPlain: pair.RefreshPlain,
		RefreshExpiresAt:  pair.RefreshExpiresAt,
	}, nil
}

func rejected(message string) *AuthResult {
	return &AuthResult{Authenticated: false, Message: message}
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		IsActive:    u.IsActive,
	}
}
