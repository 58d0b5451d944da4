package middleware // contains reusable HTTP middleware functions

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the token's subject (the numeric user id) and its
// "groups" claim (the user's external directory group names) into the
// request context.  Tokens are issued by the identity layer in front
// of this service; this middleware only verifies them.  Handlers read
// the values via c.Get("user_id") (int64) and c.Get("user_groups")
// ([]string).
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Parse with HS256 and our secret; reject any other
			// signing method.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			userID, ok := subjectUserID(claims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}
			c.Set("user_id", userID)
			c.Set("user_groups", groupNames(claims))
			return next(c)
		}
	}
}

// subjectUserID extracts the numeric user id from the sub claim, which
// may arrive as a JSON number or a string.
func subjectUserID(claims jwt.MapClaims) (int64, bool) {
	switch v := claims["sub"].(type) {
	case float64:
		return int64(v), true
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// groupNames extracts the "groups" claim.  A missing or malformed
// claim degrades to no memberships, which resolves to the default
// lease quota downstream.
func groupNames(claims jwt.MapClaims) []string {
	raw, ok := claims["groups"].([]interface{})
	if !ok {
		return []string{}
	}
	groups := make([]string, 0, len(raw))
	for _, g := range raw {
		if s, ok := g.(string); ok && s != "" {
			groups = append(groups, s)
		}
	}
	return groups
}
