// Package middleware contains any custom middleware used in the app
package middleware

import (
	"bitwise74/cms-api/util"

	"github.com/gin-gonic/gin"
)

// NewRequestIDMiddleware returns a new middleware function that generates a request ID for
// each incoming request and sets it as requestID
func NewRequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := util.GenerateToken(5)
		if err != nil {
			id = "unknown"
		}

		c.Set("requestID", id)
		c.Next()
	}
}
