package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/repository"
	"app/internal/token"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// =====================
// Mock: AuthValidator
// =====================

type MockAuthValidator struct {
	mock.Mock
}

func (m *MockAuthValidator) ValidateRegister(ctx context.Context, email string, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidateLogin(ctx context.Context, email string, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidateRefresh(ctx context.Context, refreshToken string, userAgent string) error {
	args := m.Called(ctx, refreshToken, userAgent)
	return args.Error(0)
}

func (m *MockAuthValidator) ValidatePasswordChange(ctx context.Context, newPassword string) error {
	args := m.Called(ctx, newPassword)
	return args.Error(0)
}

// =====================
// インメモリrepo（vaultの状態遷移ごとテストするため）
// =====================

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (m *memUserRepo) Create(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, userID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUserRepo) Update(ctx context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

type memTokenRepo struct {
	mu     sync.Mutex
	byID   map[string]*model.RefreshToken
	byHash map[string]string
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{
		byID:   make(map[string]*model.RefreshToken),
		byHash: make(map[string]string),
	}
}

func (m *memTokenRepo) Create(ctx context.Context, t *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.byID[cp.ID] = &cp
	m.byHash[cp.TokenHash] = cp.ID
	return nil
}

func (m *memTokenRepo) FindByTokenHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byHash[hash]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memTokenRepo) FindByID(ctx context.Context, tokenID string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.byID[tokenID]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	cp := *rt
	return &cp, nil
}

func (m *memTokenRepo) RevokeAndLink(ctx context.Context, tokenID string, revokedAt time.Time, replacedByID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.byID[tokenID]
	if !ok || rt.RevokedAt != nil {
		return repository.ErrRefreshTokenNotFound
	}
	t := revokedAt
	rt.RevokedAt = &t
	rt.ReplacedByID = replacedByID
	return nil
}

func (m *memTokenRepo) Revoke(ctx context.Context, tokenID string, revokedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.byID[tokenID]
	if !ok || rt.RevokedAt != nil {
		return repository.ErrRefreshTokenNotFound
	}
	t := revokedAt
	rt.RevokedAt = &t
	return nil
}

func (m *memTokenRepo) RevokeAllByUserID(ctx context.Context, userID string, revokedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, rt := range m.byID {
		if rt.UserID == userID && rt.RevokedAt == nil {
			t := revokedAt
			rt.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

type memAuditRepo struct {
	mu   sync.Mutex
	logs []model.AuditLog
}

func (m *memAuditRepo) Create(ctx context.Context, log model.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *memAuditRepo) List(ctx context.Context, filter repository.AuditLogFilter) ([]model.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AuditLog(nil), m.logs...), nil
}

func (m *memAuditRepo) actions() []model.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AuditAction, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	return out
}

type memTxManager struct {
	users  repository.UserRepository
	tokens repository.RefreshTokenRepository
	posts  repository.PostRepository
	groups repository.GroupRepository
}

func (m *memTxManager) Users() repository.UserRepository                 { return m.users }
func (m *memTxManager) RefreshTokens() repository.RefreshTokenRepository { return m.tokens }
func (m *memTxManager) Posts() repository.PostRepository                 { return m.posts }
func (m *memTxManager) Groups() repository.GroupRepository               { return m.groups }

func (m *memTxManager) WithinTx(ctx context.Context, fn func(r repository.TxRepos) error) error {
	return fn(m)
}

// =====================
// helpers
// =====================

type authFixture struct {
	uc        *AuthUsecase
	users     *memUserRepo
	tokens    *memTokenRepo
	audit     *memAuditRepo
	validator *MockAuthValidator
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	users := newMemUserRepo()
	tokens := newMemTokenRepo()
	audit := &memAuditRepo{}
	tm := &memTxManager{users: users, tokens: tokens}
	validator := new(MockAuthValidator)

	cfg := config.Config{
		JWTSecret:   "test_secret",
		JWTIssuer:   "app",
		JWTAudience: "app-client",
	}
	vault := token.NewVault(cfg, users, tokens, audit, tm)

	return &authFixture{
		uc:        NewAuthUsecase(users, vault, audit, validator),
		users:     users,
		tokens:    tokens,
		audit:     audit,
		validator: validator,
	}
}

func (f *authFixture) seedUser(t *testing.T, email string, password string) *model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	assert.NoError(t, err)

	u := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  "tester",
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		IsActive:     true,
	}
	assert.NoError(t, f.users.Create(context.Background(), u))
	return u
}

// =====================
// tests
// =====================

func TestAuthUsecase_Register_Success(t *testing.T) {
	f := newAuthFixture(t)
	f.validator.On("ValidateRegister", mock.Anything, "alice@example.com", "password123").Return(nil)

	result, err := f.uc.Register(context.Background(), AuthRegisterRequest{
		Email:       "alice@example.com",
		DisplayName: "alice",
		Password:    "password123",
	}, "test-agent")

	assert.NoError(t, err)
	assert.True(t, result.Authenticated)
	assert.NotNil(t, result.User)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.NotEmpty(t, result.Token.AccessToken)
	assert.NotEmpty(t, result.RefreshTokenPlain)

	// 平文パスワードが保存されていないこと
	stored, err := f.users.FindByEmail(context.Background(), "alice@example.com")
	assert.NoError(t, err)
	assert.NotEqual(t, "password123", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")))
}

func TestAuthUsecase_Register_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "password123")
	f.validator.On("ValidateRegister", mock.Anything, "alice@example.com", "password456").Return(nil)

	result, err := f.uc.Register(context.Background(), AuthRegisterRequest{
		Email:    "alice@example.com",
		Password: "password456",
	}, "test-agent")

	assert.ErrorIs(t, err, ErrConflict)
	assert.False(t, result.Authenticated)
}

func TestAuthUsecase_Register_ValidationError(t *testing.T) {
	f := newAuthFixture(t)
	f.validator.On("ValidateRegister", mock.Anything, "bad", "x").Return(ErrValidation)

	result, err := f.uc.Register(context.Background(), AuthRegisterRequest{
		Email:    "bad",
		Password: "x",
	}, "test-agent")

	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, result.Authenticated)
}

func TestAuthUsecase_Login_Success(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "alice@example.com", "password123")
	f.validator.On("ValidateLogin", mock.Anything, "alice@example.com", "password123").Return(nil)

	result, err := f.uc.Login(context.Background(), AuthLoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	}, "test-agent")

	assert.NoError(t, err)
	assert.True(t, result.Authenticated)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.RefreshTokenPlain)

	// last_loginが更新されていること
	stored, _ := f.users.FindByID(context.Background(), user.ID)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestAuthUsecase_Login_WrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "password123")
	f.validator.On("ValidateLogin", mock.Anything, "alice@example.com", "wrong-password").Return(nil)

	result, err := f.uc.Login(context.Background(), AuthLoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	}, "test-agent")

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, result.Authenticated)
	// メッセージからユーザーの存在有無が漏れないこと
	assert.Equal(t, "email or password is incorrect", result.Message)
}

func TestAuthUsecase_Login_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.validator.On("ValidateLogin", mock.Anything, "ghost@example.com", "password123").Return(nil)

	result, err := f.uc.Login(context.Background(), AuthLoginRequest{
		Email:    "ghost@example.com",
		Password: "password123",
	}, "test-agent")

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "email or password is incorrect", result.Message)
}

func TestAuthUsecase_Login_InactiveUser(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "alice@example.com", "password123")
	user.IsActive = false
	assert.NoError(t, f.users.Update(context.Background(), user))
	f.validator.On("ValidateLogin", mock.Anything, "alice@example.com", "password123").Return(nil)

	result, err := f.uc.Login(context.Background(), AuthLoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	}, "test-agent")

	assert.ErrorIs(t, err, ErrForbidden)
	assert.False(t, result.Authenticated)
}

func TestAuthUsecase_Refresh_Success(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "password123")
	f.validator.On("ValidateLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.validator.On("ValidateRefresh", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	login, err := f.uc.Login(context.Background(), AuthLoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	}, "test-agent")
	assert.NoError(t, err)

	refreshed, err := f.uc.Refresh(context.Background(), login.RefreshTokenPlain, "test-agent")
	assert.NoError(t, err)
	assert.True(t, refreshed.Authenticated)
	assert.NotEqual(t, login.RefreshTokenPlain, refreshed.RefreshTokenPlain)

	// 旧tokenはもう使えない（失効済み+後継あり=replay扱い）
	_, err = f.uc.Refresh(context.Background(), login.RefreshTokenPlain, "test-agent")
	assert.ErrorIs(t, err, ErrSecurityIncident)
}

func TestAuthUsecase_Refresh_ReplayRevokesCurrentToken(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "alice@example.com", "password123")
	f.validator.On("ValidateLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.validator.On("ValidateRefresh", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	login, err := f.uc.Login(context.Background(), AuthLoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	}, "test-agent")
	assert.NoError(t, err)

	refreshed, err := f.uc.Refresh(context.Background(), login.RefreshTokenPlain, "test-agent")
	assert.NoError(t, err)

	// 盗まれた旧tokenの再提示
	result, err := f.uc.Refresh(context.Background(), login.RefreshTokenPlain, "attacker-agent")
	assert.ErrorIs(t, err, ErrSecurityIncident)
	assert.Equal(t, "token reuse detected, please log in again", result.Message)

	// 巻き添えで現役tokenも使えなくなっている
	_, err = f.uc.Refresh(context.Background(), refreshed.RefreshTokenPlain, "test-agent")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// 監査ログに残っている
	assert.Contains(t, f.audit.actions(), model.AuditActionTokenReuseDetected)
}

func TestAuthUsecase_Refresh_UnknownToken(t *testing.T) {
	f := newAuthFixture(t)
	f.validator.On("ValidateRefresh", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	result, err := f.uc.Refresh(context.Background(), "no-such-token", "test-agent")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, result.Authenticated)
}

func TestAuthUsecase_Revoke_Idempotent(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "alice@example.com", "password123")
	f.validator.On("ValidateLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	login, err := f.uc.Login(context.Background(), AuthLoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	}, "test-agent")
	assert.NoError(t, err)

	active, err := f.uc.Revoke(context.Background(), login.RefreshTokenPlain, user.ID)
	assert.NoError(t, err)
	assert.True(t, active)
	assert.Contains(t, f.audit.actions(), model.AuditActionTokenRevoked)

	// 2回目はfalse
	active, err = f.uc.Revoke(context.Background(), login.RefreshTokenPlain, user.ID)
	assert.NoError(t, err)
	assert.False(t, active)

	// 空tokenはvalidationエラー
	_, err = f.uc.Revoke(context.Background(), "", user.ID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthUsecase_Me(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "alice@example.com", "password123")

	dto, err := f.uc.Me(context.Background(), user.ID)
	assert.NoError(t, err)
	assert.Equal(t, user.Email, dto.Email)

	_, err = f.uc.Me(context.Background(), "no-such-user")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.uc.Me(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthUsecase_ChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "alice@example.com", "old-password")
	f.validator.On("ValidatePasswordChange", mock.Anything, "new-password-123").Return(nil)

	// 旧パスワードが違うと拒否
	err := f.uc.ChangePassword(context.Background(), user.ID, "wrong-old", "new-password-123")
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = f.uc.ChangePassword(context.Background(), user.ID, "old-password", "new-password-123")
	assert.NoError(t, err)

	stored, _ := f.users.FindByID(context.Background(), user.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("new-password-123")))
}

func TestAuthUsecase_ForceLogout(t *testing.T) {
	f := newAuthFixture(t)
	admin := f.seedUser(t, "admin@example.com", "admin-password")
	target := f.seedUser(t, "bob@example.com", "password123")
	f.validator.On("ValidateLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.validator.On("ValidateRefresh", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	// 対象ユーザーで2セッション
	s1, err := f.uc.Login(context.Background(), AuthLoginRequest{
		Email:    "bob@example.com",
		Password: "password123",
	}, "device-1")
	assert.NoError(t, err)
	s2, err := f.uc.Login(context.Background(), AuthLoginRequest{
		Email:    "bob@example.com",
		Password: "password123",
	}, "device-2")
	assert.NoError(t, err)

	revoked, err := f.uc.ForceLogout(context.Background(), admin.ID, target.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), revoked)
	assert.Contains(t, f.audit.actions(), model.AuditActionForceLogout)

	// どちらのセッションももうrefreshできない
	_, err = f.uc.Refresh(context.Background(), s1.RefreshTokenPlain, "device-1")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.uc.Refresh(context.Background(), s2.RefreshTokenPlain, "device-2")
	assert.ErrorIs(t, err, ErrUnauthorized)

	// 存在しないユーザー
	_, err = f.uc.ForceLogout(context.Background(), admin.ID, "no-such-user")
	assert.ErrorIs(t, err, ErrNotFound)
}
