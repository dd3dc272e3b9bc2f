package httpapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// headerUserID carries the caller identity set by the upstream auth proxy.
const headerUserID = "X-User-ID"

const contextKeyUserID = "safeagree.user_id"

func (s *Server) requireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := strings.TrimSpace(c.Request().Header.Get(headerUserID))
			if raw == "" {
				return failUnauthorized(c, "Missing "+headerUserID+" header")
			}
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || userID <= 0 {
				return failUnauthorized(c, "Invalid "+headerUserID+" header")
			}
			c.Set(contextKeyUserID, userID)
			return next(c)
		}
	}
}

func userIDFrom(c echo.Context) int64 {
	userID, _ := c.Get(contextKeyUserID).(int64)
	return userID
}
