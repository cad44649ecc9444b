package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var (
	//access tokenの署名・形式が不正
	ErrInvalidAccessToken = errors.New("invalid access token")
	//access tokenの期限切れ
	ErrAccessTokenExpired = errors.New("access token expired")

	//refresh tokenが存在しない
	ErrTokenNotFound = errors.New("refresh token not found")
	//refresh tokenの期限切れ
	ErrTokenExpired = errors.New("refresh token expired")
	//refresh tokenが失効済み
	ErrTokenRevoked = errors.New("refresh token revoked")
	//ローテーション済みtokenの再提示（盗難シグナル）
	ErrReuseDetected = errors.New("refresh token reuse detected")
)

// accesstokenの有効期限
const AccessTokenTTL = 15 * time.Minute

// refreshtokenの有効期限
const RefreshTokenTTL = 30 * 24 * time.Hour

// 後継チェーンを辿る上限。DB が壊れてループしていても止まるように。
const maxChainWalk = 32

// access tokenから取り出すクレーム。
type Claims struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// 発行結果。RefreshTokenPlainはDBに残らないのでここでしか見えない。
type Pair struct {
	AccessToken      string
	ExpiresIn        int
	RefreshTokenID   string
	RefreshPlain     string
	RefreshExpiresAt time.Time
}

// Vaultはaccess tokenの署名/検証とrefresh tokenの
// 発行・ローテーション・失効を担当する。
type Vault struct {
	cfg    config.Config
	users  repository.UserRepository
	tokens repository.RefreshTokenRepository
	audit  repository.AuditLogRepository
	tm     repository.TransactionManager

	//テストで時間を差し替えるため
	now func() time.Time
}

func NewVault(
	cfg config.Config,
	users repository.UserRepository,
	tokens repository.RefreshTokenRepository,
	audit repository.AuditLogRepository,
	tm repository.TransactionManager,
) *Vault {
	return &Vault{
		cfg:    cfg,
		users:  users,
		tokens: tokens,
		audit:  audit,
		tm:     tm,
		now:    time.Now,
	}
}

// Issueはaccess/refreshのペアを新規発行する。
// 副作用はrefresh token1件の保存だけ。
func (v *Vault) Issue(ctx context.Context, user *model.User, userAgent string) (*Pair, error) {
	now := v.now()

	accessToken, expiresIn, err := v.signAccessToken(user, now)
	if err != nil {
		return nil, err
	}

	plain, hash, err := newRandomTokenAndHash()
	if err != nil {
		return nil, err
	}

	rt := &model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hash,
		UserAgent: userAgent,
		ExpiresAt: now.Add(RefreshTokenTTL),
	}

	if err := v.tokens.Create(ctx, rt); err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      accessToken,
		ExpiresIn:        expiresIn,
		RefreshTokenID:   rt.ID,
		RefreshPlain:     plain,
		RefreshExpiresAt: rt.ExpiresAt,
	}, nil
}

// ValidateAccessは署名と期限とiss/audだけで判定する。I/Oなし。
func (v *Vault) ValidateAccess(raw string) (*Claims, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(v.cfg.JWTSecret), nil
	})

	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrAccessTokenExpired
		}
		return nil, ErrInvalidAccessToken
	}
	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidAccessToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidAccessToken
	}

	if !claims.VerifyIssuer(v.cfg.JWTIssuer, true) {
		return nil, ErrInvalidAccessToken
	}
	if !claims.VerifyAudience(v.cfg.JWTAudience, true) {
		return nil, ErrInvalidAccessToken
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" || role == "" {
		return nil, ErrInvalidAccessToken
	}

	exp := time.Time{}
	if f, ok := claims["exp"].(float64); ok {
		exp = time.Unix(int64(f), 0)
	}

	return &Claims{UserID: sub, Role: role, ExpiresAt: exp}, nil
}

// Rotateは提示されたrefresh tokenを失効させて新しいペアを発行する。
// 失効済みtokenに後継がいる場合は盗難とみなして
// チェーン全体を失効させ、ErrReuseDetectedを返す。
func (v *Vault) Rotate(ctx context.Context, refreshPlain string, userAgent string) (*model.User, *Pair, error) {
	now := v.now()

	rt, err := v.tokens.FindByTokenHash(ctx, hashToken(refreshPlain))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, nil, ErrTokenNotFound
		}
		return nil, nil, err
	}

	if rt.RevokedAt != nil {
		if rt.ReplacedByID != "" {
			//replay → チェーン失効
			v.revokeChain(ctx, rt, now)
			return nil, nil, ErrReuseDetected
		}
		return nil, nil, ErrTokenRevoked
	}

	if !now.Before(rt.ExpiresAt) {
		return nil, nil, ErrTokenExpired
	}

	user, err := v.users.FindByID(ctx, rt.UserID)
	if err != nil || user == nil {
		return nil, nil, ErrTokenNotFound
	}

	//後継を先に採番してから旧tokenを失効+リンク。
	//revoked_at IS NULL条件付きUPDATEなので同時rotateは片方だけ勝つ。
	//失効と後継作成は同じTxで行う。途中でキャンセルされても半端な状態は残らない。
	newID := uuid.NewString()

	plain, hash, err := newRandomTokenAndHash()
	if err != nil {
		return nil, nil, err
	}

	newRT := &model.RefreshToken{
		ID:        newID,
		UserID:    user.ID,
		TokenHash: hash,
		UserAgent: userAgent,
		ExpiresAt: now.Add(RefreshTokenTTL),
	}

	err = v.tm.WithinTx(ctx, func(r repository.TxRepos) error {
		if err := r.RefreshTokens().RevokeAndLink(ctx, rt.ID, now, newID); err != nil {
			return err
		}
		return r.RefreshTokens().Create(ctx, newRT)
	})
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			//直前に他のrotateが勝った。負けた側はreplay扱い。
			if fresh, ferr := v.tokens.FindByID(ctx, rt.ID); ferr == nil && fresh.ReplacedByID != "" {
				v.revokeChain(ctx, fresh, now)
			}
			return nil, nil, ErrReuseDetected
		}
		return nil, nil, err
	}

	accessToken, expiresIn, err := v.signAccessToken(user, now)
	if err != nil {
		return nil, nil, err
	}

	return user, &Pair{
		AccessToken:      accessToken,
		ExpiresIn:        expiresIn,
		RefreshTokenID:   newRT.ID,
		RefreshPlain:     plain,
		RefreshExpiresAt: newRT.ExpiresAt,
	}, nil
}

// Revokeはtokenを失効させる。直前まで有効だったらtrue。
// 2回呼んでもエラーにはならない（2回目はfalse）。
func (v *Vault) Revoke(ctx context.Context, refreshPlain string) (bool, error) {
	rt, err := v.tokens.FindByTokenHash(ctx, hashToken(refreshPlain))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := v.tokens.Revoke(ctx, rt.ID, v.now()); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			//すでに失効済み
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// RevokeAllForUserは指定ユーザーの有効なtokenを全て失効する（強制ログアウト）。
func (v *Vault) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return v.tokens.RevokeAllByUserID(ctx, userID, v.now())
}

// 再提示されたtokenから後継ポインタを辿って全て失効させる。
// 失効自体がbest effort（1件失敗しても続行）。証跡は監査ログに残す。
func (v *Vault) revokeChain(ctx context.Context, start *model.RefreshToken, now time.Time) {
	nextID := start.ReplacedByID
	for i := 0; i < maxChainWalk && nextID != ""; i++ {
		rt, err := v.tokens.FindByID(ctx, nextID)
		if err != nil {
			break
		}
		if rt.RevokedAt == nil {
			_ = v.tokens.Revoke(ctx, rt.ID, now)
		}
		nextID = rt.ReplacedByID
	}

	_ = v.audit.Create(ctx, model.AuditLog{
		ActorUserID:  start.UserID,
		Action:       model.AuditActionTokenReuseDetected,
		ResourceType: model.AuditResourceRefreshToken,
		ResourceID:   start.ID,
		CreatedAt:    now,
	})
}

// jwt発行
func (v *Vault) signAccessToken(user *model.User, now time.Time) (string, int, error) {
	exp := now.Add(AccessTokenTTL)

	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"iss":  v.cfg.JWTIssuer,
		"aud":  v.cfg.JWTAudience,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := t.SignedString([]byte(v.cfg.JWTSecret))
	if err != nil {
		return "", 0, err
	}

	return signed, int(AccessTokenTTL.Seconds()), nil
}

// refresh token生成（平文 + DB保存hash）
func newRandomTokenAndHash() (plain string, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}

	plain = base64.RawURLEncoding.EncodeToString(b)
	hash = hashToken(plain)

	return plain, hash, nil
}

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
