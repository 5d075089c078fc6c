package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/storefront-live/internal/session"
)

const identityKey = "identity"

// CurrentIdentity returns the identity JWTAuth stored on the request.
func CurrentIdentity(c echo.Context) (session.Identity, bool) {
	id, ok := c.Get(identityKey).(session.Identity)
	return id, ok
}

// userID is the rate limit subject: the session user, or "guest" before
// authentication.
func userID(c echo.Context) string {
	if id, ok := CurrentIdentity(c); ok && id.UserID != "" {
		return id.UserID
	}
	return "guest"
}
