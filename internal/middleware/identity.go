package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userKey identifies the caller in rate limit keys: the principal's user id
// when JWTAuth ran, "anon" otherwise.
func userKey(c echo.Context) string {
	if p := Principal(c); p.UserID != 0 {
		return strconv.FormatUint(p.UserID, 10)
	}
	return "anon"
}
