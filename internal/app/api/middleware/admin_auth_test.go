package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"

	"github.com/launchkit/billing/pkg/config"
)

func newAuthRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Admin: config.AdminConfig{JWTSecret: secret}}
	r := gin.New()
	r.Use(AdminAuthMiddleware(cfg))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operator_id": c.GetString("operator_id")})
	})
	return r
}

func get(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminAuthMiddleware_AcceptsSignedToken(t *testing.T) {
	r := newAuthRouter("s3cret")
	token, err := SignAdminToken("s3cret", "op-1", jwt.StandardClaims{
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
		IssuedAt:  time.Now().Unix(),
	})
	require.NoError(t, err)

	w := get(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "op-1")
}

func TestAdminAuthMiddleware_RejectsBadTokens(t *testing.T) {
	r := newAuthRouter("s3cret")

	w := get(r, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "Bearer not-a-token")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	wrong, err := SignAdminToken("other-secret", "op-1", jwt.StandardClaims{
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	w = get(r, "Bearer "+wrong)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := SignAdminToken("s3cret", "op-1", jwt.StandardClaims{
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)
	w = get(r, "Bearer "+expired)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuthMiddleware_DisabledWithoutSecret(t *testing.T) {
	r := newAuthRouter("")
	w := get(r, "")
	require.Equal(t, http.StatusOK, w.Code)
}
