package handler

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"os"
	"time"

	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

const refreshCookieName = "refresh"

type AuthHandler struct {
	authUC       *usecase.AuthUsecase
	resetUC      *usecase.PasswordResetUsecase
	cookieSecure bool
}

// DIコンストラクタ
func NewAuthHandler(authUC *usecase.AuthUsecase, resetUC *usecase.PasswordResetUsecase) *AuthHandler {
	return &AuthHandler{
		authUC:       authUC,
		resetUC:      resetUC,
		cookieSecure: envBool("COOKIE_SECURE", true),
	}
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True":
		return true
	case "0", "false", "FALSE", "False":
		return false
	default:
		return def
	}
}

// 認証系のルートを登録
func (h *AuthHandler) RegisterRoutes(e *echo.Echo, auth echo.MiddlewareFunc, admin echo.MiddlewareFunc, limit echo.MiddlewareFunc) {
	e.POST("/auth/register", h.Register, limit)
	e.POST("/auth/login", h.Login, limit)
	e.POST("/auth/refresh", h.Refresh, limit)
	e.POST("/auth/logout", h.Logout)
	e.POST("/auth/revoke", h.Revoke)
	e.POST("/auth/forget-password", h.ForgetPassword, limit)
	e.POST("/auth/verify-code", h.VerifyCode, limit)

	e.GET("/auth/me", h.Me, auth)
	e.POST("/auth/change-password", h.ChangePassword, auth)

	e.POST("/admin/users/:id/force-logout", h.ForceLogout, auth, admin)
}

// RegisterはPOST /auth/registerのハンドラ
func (h *AuthHandler) Register(c echo.Context) error {
	var req usecase.AuthRegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	result, err := h.authUC.Register(c.Request().Context(), req, userAgent(c))
	if err != nil {
		return h.rejectAuth(c, result, err)
	}

	h.setRefreshCookie(c, result.RefreshTokenPlain, result.RefreshExpiresAt)
	if err := h.setCsrfCookie(c, result.RefreshExpiresAt); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
	}

	return c.JSON(http.StatusOK, result)
}

// LoginはPOST /auth/login のハンドラ。
func (h *AuthHandler) Login(c echo.Context) error {
	var req usecase.AuthLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	result, err := h.authUC.Login(c.Request().Context(), req, userAgent(c))
	if err != nil {
		return h.rejectAuth(c, result, err)
	}

	h.setRefreshCookie(c, result.RefreshTokenPlain, result.RefreshExpiresAt)
	if err := h.setCsrfCookie(c, result.RefreshExpiresAt); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
	}

	return c.JSON(http.StatusOK, result)
}

// RefreshはPOST /auth/refresh のハンドラ。
// refresh tokenはHttpOnly cookieから読む。成功したら必ず新しい値で上書きする。
// 古い値はローテーションで失効済みなので、以後再利用できない。
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
	}

	result, err := h.authUC.Refresh(c.Request().Context(), cookie.Value, userAgent(c))
	if err != nil {
		//reuse検知を含む失敗は全てcookieを消して再ログインへ
		h.clearRefreshCookie(c)
		return h.rejectAuth(c, result, err)
	}

	h.setRefreshCookie(c, result.RefreshTokenPlain, result.RefreshExpiresAt)
	if err := h.setCsrfCookie(c, result.RefreshExpiresAt); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "INTERNAL"})
	}

	return c.JSON(http.StatusOK, result)
}

// LogoutはPOST /auth/logout のハンドラ。cookieのtokenを失効してcookieも消す。
func (h *AuthHandler) Logout(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "UNAUTHORIZED"})
	}

	_, err = h.authUC.Revoke(c.Request().Context(), cookie.Value, currentUserID(c))
	if err != nil {
		return writeError(c, err)
	}

	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, usecase.SuccessResponse{Message: "logout success"})
}

// RevokeはPOST /auth/revoke のハンドラ。
// bodyのtokenを優先し、なければcookieを使う。冪等（2回目はrevoked:false）。
func (h *AuthHandler) Revoke(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	_ = c.Bind(&req)

	tokenPlain := req.Token
	if tokenPlain == "" {
		if cookie, err := c.Cookie(refreshCookieName); err == nil {
			tokenPlain = cookie.Value
		}
	}
	if tokenPlain == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	active, err := h.authUC.Revoke(c.Request().Context(), tokenPlain, currentUserID(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"revoked": active})
}

// MeはGET /auth/me のハンドラ。
func (h *AuthHandler) Me(c echo.Context) error {
	dto, err := h.authUC.Me(c.Request().Context(), currentUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// ForgetPasswordはPOST /auth/forget-password のハンドラ。
func (h *AuthHandler) ForgetPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	if err := h.resetUC.ForgetPassword(c.Request().Context(), req.Email); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, usecase.SuccessResponse{
		Message: "the code is sent to your email",
	})
}

// VerifyCodeはPOST /auth/verify-code のハンドラ。
func (h *AuthHandler) VerifyCode(c echo.Context) error {
	var req struct {
		Email                string `json:"email"`
		Code                 string `json:"code"`
		NewPassword          string `json:"new_password"`
		ConfirmedNewPassword string `json:"confirmed_new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	err := h.resetUC.VerifyCode(c.Request().Context(), req.Email, req.Code, req.NewPassword, req.ConfirmedNewPassword)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, usecase.SuccessResponse{Message: "password changed"})
}

// ChangePasswordはPOST /auth/change-password のハンドラ（要ログイン）。
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_ERROR"})
	}

	err := h.authUC.ChangePassword(c.Request().Context(), currentUserID(c), req.OldPassword, req.NewPassword)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, usecase.SuccessResponse{Message: "password changed"})
}

// ForceLogoutはPOST /admin/users/:id/force-logout のハンドラ（ADMINのみ）。
func (h *AuthHandler) ForceLogout(c echo.Context) error {
	targetID := c.Param("id")

	revoked, err := h.authUC.ForceLogout(c.Request().Context(), currentUserID(c), targetID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id": targetID,
		"revoked": revoked,
	})
}

// 認証失敗はAuthResultの形（authenticated:false + message）で返す。
func (h *AuthHandler) rejectAuth(c echo.Context, result *usecase.AuthResult, err error) error {
	status := http.StatusUnauthorized
	if he, ok := usecase.AsHTTPError(err); ok {
		status = he.Status
	} else {
		switch err {
		case usecase.ErrValidation:
			status = http.StatusBadRequest
		case usecase.ErrConflict:
			status = http.StatusConflict
		case usecase.ErrForbidden:
			status = http.StatusForbidden
		case usecase.ErrUnauthorized, usecase.ErrSecurityIncident:
			status = http.StatusUnauthorized
		default:
			status = http.StatusInternalServerError
		}
	}

	if result == nil {
		return c.JSON(status, ErrorResponse{Error: "INTERNAL"})
	}
	return c.JSON(status, result)
}

// refreshtoken をCookieにセット。
func (h *AuthHandler) setRefreshCookie(c echo.Context, plainRefresh string, expires time.Time) {
	cookie := &http.Cookie{
		Name:     refreshCookieName,
		Value:    plainRefresh,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	}
	c.SetCookie(cookie)
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	cookie := &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	}
	c.SetCookie(cookie)
}

// csrftokenをCookieにセット
func (h *AuthHandler) setCsrfCookie(c echo.Context, expires time.Time) error {
	csrfToken, err := generateSecureToken(32)
	if err != nil {
		return err
	}

	cookie := &http.Cookie{
		Name:     "csrf_token",
		Value:    csrfToken,
		Path:     "/",
		HttpOnly: false,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	}
	c.SetCookie(cookie)
	return nil
}

// ランダム文字列を作る。
func generateSecureToken(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 32
	}

	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func userAgent(c echo.Context) string {
	return c.Request().Header.Get("User-Agent")
}
