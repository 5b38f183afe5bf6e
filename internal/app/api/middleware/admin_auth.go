package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/launchkit/billing/pkg/config"
	"github.com/launchkit/billing/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// AdminClaims are the claims expected on admin API tokens.
type AdminClaims struct {
	OperatorID string `json:"operator_id"`
	jwt.StandardClaims
}

// AdminAuthMiddleware guards the admin route group with a HS256 bearer token.
// Disabled (allows everything) when no admin secret is configured, so local
// development does not need tokens.
func AdminAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := cfg.Admin.JWTSecret
		if secret == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}

		claims := &AdminClaims{}
		token, err := jwt.ParseWithClaims(auth[len(bearer):], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, "invalid token"))
			c.Abort()
			return
		}

		c.Set("operator_id", claims.OperatorID)
		c.Next()
	}
}

// SignAdminToken mints a token accepted by AdminAuthMiddleware. Used by tests
// and by the ops tooling that provisions admin access.
func SignAdminToken(secret, operatorID string, claims jwt.StandardClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &AdminClaims{
		OperatorID:     operatorID,
		StandardClaims: claims,
	})
	return t.SignedString([]byte(secret))
}
