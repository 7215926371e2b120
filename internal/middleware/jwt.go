package middleware // middleware contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the seat-requester identity claims into the request
// context.  The provided secret must match the one used when issuing
// tokens (either by the built-in auth endpoints or by an external
// identity provider sharing it).  Handlers access the identity via
// c.Get("user_id"), c.Get("tenant_id"), c.Get("emails") and
// c.Get("roles").
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

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

			sub, _ := claims["sub"].(string)
			tid, _ := claims["tid"].(string)
			if sub == "" || tid == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token missing identity claims"})
			}
			c.Set("user_id", sub)
			c.Set("tenant_id", tid)
			c.Set("emails", claimStrings(claims["emails"]))
			c.Set("roles", claimStrings(claims["roles"]))
			if name, ok := claims["name"].(string); ok && name != "" {
				c.Set("display_name", name)
			}
			return next(c)
		}
	}
}

// claimStrings normalizes a JSON claim that may arrive as a single string
// or an array of strings.
func claimStrings(v interface{}) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
