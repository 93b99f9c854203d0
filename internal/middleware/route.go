package middleware

import "github.com/gin-gonic/gin"

const unmatchedRoute = "unmatched"

// routeOf returns the registered route template, e.g. /v1/accounts/:accountId,
// so account ids never become label values.
func routeOf(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return unmatchedRoute
}
