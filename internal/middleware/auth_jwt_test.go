package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"app/internal/config"
	"app/internal/token"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test_secret"

func newTestVault() *token.Vault {
	cfg := config.Config{
		JWTSecret:   testSecret,
		JWTIssuer:   "app",
		JWTAudience: "app-client",
	}
	// ValidateAccessはI/Oしないのでrepoはいらない
	return token.NewVault(cfg, nil, nil, nil, nil)
}

func signTestToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	assert.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"sub":  "11111111-1111-1111-1111-111111111111",
		"role": "USER",
		"iss":  "app",
		"aud":  "app-client",
		"iat":  now.Unix(),
		"exp":  now.Add(15 * time.Minute).Unix(),
	}
}

func runAuthJWT(t *testing.T, authz string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := AuthJWT(newTestVault())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	assert.NoError(t, h(c))
	return rec, c
}

func TestAuthJWT_NoHeader(t *testing.T) {
	rec, _ := runAuthJWT(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_BadScheme(t *testing.T) {
	tok := signTestToken(t, testSecret, validClaims())
	rec, _ := runAuthJWT(t, "Basic "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_BadSignature(t *testing.T) {
	tok := signTestToken(t, "other_secret", validClaims())
	rec, _ := runAuthJWT(t, "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_Expired(t *testing.T) {
	claims := validClaims()
	claims["iat"] = time.Now().Add(-time.Hour).Unix()
	claims["exp"] = time.Now().Add(-30 * time.Minute).Unix()
	tok := signTestToken(t, testSecret, claims)

	rec, _ := runAuthJWT(t, "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_WrongAudience(t *testing.T) {
	claims := validClaims()
	claims["aud"] = "someone-else"
	tok := signTestToken(t, testSecret, claims)

	rec, _ := runAuthJWT(t, "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthJWT_Success_SetsContext(t *testing.T) {
	tok := signTestToken(t, testSecret, validClaims())
	rec, c := runAuthJWT(t, "Bearer "+tok)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", c.Get(CtxUserIDKey))
	assert.Equal(t, "USER", c.Get(CtxUserRoleKey))
}

func TestAdminRoleGuard(t *testing.T) {
	e := echo.New()

	run := func(role interface{}) int {
		req := httptest.NewRequest(http.MethodPost, "/admin/users/x/force-logout", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != nil {
			c.Set(CtxUserRoleKey, role)
		}

		h := AdminRoleGuard()(func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		})
		assert.NoError(t, h(c))
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, run(nil))
	assert.Equal(t, http.StatusForbidden, run("USER"))
	assert.Equal(t, http.StatusOK, run("ADMIN"))
}
