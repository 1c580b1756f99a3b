package http

import (
	"strings"
	"ticketing/account"
	"ticketing/entity"

	"github.com/labstack/echo/v4"
)

const claimsKey = "claims"

type TokenParser interface {
	ParseToken(token string) (account.Claims, error)
}

// authenticate requires a valid bearer token and stores its claims on the
// request.
func authenticate(tokens TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				return entity.Unauthorized("missing_token", "a bearer token is required")
			}

			claims, err := tokens.ParseToken(strings.TrimSpace(token))
			if err != nil {
				return err
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// requireRole lets admins through every role check.
func requireRole(roles ...entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := claimsFrom(c).Role
			if role == entity.RoleAdmin {
				return next(c)
			}
			for _, r := range roles {
				if r == role {
					return next(c)
				}
			}
			return entity.Forbidden("this action requires the " + joinRoles(roles) + " role")
		}
	}
}

func claimsFrom(c echo.Context) account.Claims {
	claims, _ := c.Get(claimsKey).(account.Claims)
	return claims
}

func isAdmin(c echo.Context) bool {
	return claimsFrom(c).Role == entity.RoleAdmin
}

func joinRoles(roles []entity.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, " or ")
}
