package middleware

import (
	"errors"
	"strings"
	"time"

	"bitwise74/cms-api/model"
	"bitwise74/cms-api/util"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const bearerPrefix = "Bearer "

// NewAuthGate resolves the request's session cookie or bearer access
// key to a user email and stores it under "user". Missing or invalid
// credentials are not an error here; handlers that need a user check
// for an empty identity and short-circuit with 401 themselves.
func NewAuthGate(db *gorm.DB) gin.HandlerFunc {
	bindIP := viper.GetBool("auth.bind_session_ip")

	return func(c *gin.Context) {
		if email := resolveUser(c, db, bindIP); email != "" {
			c.Set("user", email)
		}

		c.Next()
	}
}

func resolveUser(c *gin.Context, db *gorm.DB, bindIP bool) string {
	now := time.Now().Unix()

	if cookie, err := c.Cookie("session"); err == nil && cookie != "" {
		key := cookie
		if bindIP {
			key = util.SaltKey(cookie, c.ClientIP())
		}

		// The join makes a session worthless once its user is deleted
		var session model.Session

		err := db.
			Joins("INNER JOIN users ON users.email = sessions.email").
			Where("sessions.key = ? AND sessions.expires_at > ?", key, now).
			First(&session).
			Error
		if err == nil {
			return session.Email
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			zap.L().Error("Failed to look up session", zap.Error(err))
		}

		return ""
	}

	authorization := c.GetHeader("Authorization")
	if !strings.HasPrefix(authorization, bearerPrefix) {
		return ""
	}

	var user model.User

	err := db.
		Where("key = ?", strings.TrimPrefix(authorization, bearerPrefix)).
		First(&user).
		Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			zap.L().Error("Failed to look up access key", zap.Error(err))
		}

		return ""
	}

	return user.Email
}
