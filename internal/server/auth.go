package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"cargohold/internal/core"
)

const bearerPrefix = "Bearer "

// AuthMiddleware validates the master key on every request. An empty
// masterKey disables authentication entirely; skip paths (health, metrics)
// pass through unchecked even when a key is set.
func AuthMiddleware(masterKey string, skipPaths []string) echo.MiddlewareFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if masterKey == "" {
				return next(c)
			}
			if _, ok := skip[c.Request().URL.Path]; ok {
				return next(c)
			}

			header := c.Request().Header.Get("Authorization")
			switch {
			case header == "":
				return deny(c, "missing authorization header")
			case !strings.HasPrefix(header, bearerPrefix):
				return deny(c, "invalid authorization header format, expected 'Bearer <token>'")
			case strings.TrimPrefix(header, bearerPrefix) != masterKey:
				return deny(c, "invalid master key")
			}
			return next(c)
		}
	}
}

func deny(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, core.NewAuthenticationError(msg).ToJSON())
}
