package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-live/internal/session"
)

// JWTAuth checks the bearer token of a local API request and stores the
// decoded session identity on the context.
//
// With a secret the HS256 signature and expiry are verified. Without one the
// console cannot verify tokens, so only its own token (from own) is accepted.
func JWTAuth(secret string, own session.TokenSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			if secret == "" {
				if own == nil {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				}
				mine, err := own.Token(c.Request().Context())
				if err != nil || subtle.ConstantTimeCompare([]byte(mine), []byte(raw)) != 1 {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
				}
			}
			id, err := session.Decode(raw, secret)
			if err != nil || id.Expired(time.Now()) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set(identityKey, id)
			return next(c)
		}
	}
}
