package api

import (
	"errors"
	"net/http"
	"time"

	"bitwise74/cms-api/model"
	"bitwise74/cms-api/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 3 days, in seconds
const sessionTTL = 259200

func (a *API) SessionCheck(c *gin.Context) {
	user := currentUser(c)
	if user == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{"email": user})
}

// SessionCreate exchanges a matching (email, verification) pair for a
// session cookie. Expired sessions of the same account are purged on
// the way; other live sessions stay valid.
func (a *API) SessionCreate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var body struct {
		Email        string `json:"email"`
		Verification string `json:"verification"`
	}

	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" || body.Verification == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	now := time.Now().Unix()

	var user model.User

	err := a.DB.
		Where("email = ? AND verification = ? AND verification_expires_at > ?", body.Email, body.Verification, now).
		First(&user).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.AbortWithStatus(http.StatusInternalServerError)

		zap.L().Error("Failed to check verification code", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	err = a.DB.
		Where("email = ? AND expires_at < ?", body.Email, now).
		Delete(&model.Session{}).
		Error
	if err != nil {
		zap.L().Warn("Failed to purge expired sessions", zap.Error(err), zap.String("requestID", requestID))
	}

	key := uuid.NewString()
	stored := key
	if viper.GetBool("auth.bind_session_ip") {
		stored = util.SaltKey(key, c.ClientIP())
	}

	err = a.DB.Create(&model.Session{
		Key:       stored,
		Email:     body.Email,
		ExpiresAt: now + sessionTTL,
	}).Error
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)

		zap.L().Error("Failed to create session", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie("session", key, sessionTTL, "/", "", false, true)
	c.Status(http.StatusCreated)
}

// SessionDelete logs out the presenting session only
func (a *API) SessionDelete(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	if currentUser(c) == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	cookie, err := c.Cookie("session")
	if err != nil || cookie == "" {
		// Bearer-key callers have no session to destroy
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	key := cookie
	if viper.GetBool("auth.bind_session_ip") {
		key = util.SaltKey(cookie, c.ClientIP())
	}

	err = a.DB.Where("key = ?", key).Delete(&model.Session{}).Error
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)

		zap.L().Error("Failed to delete session", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.SetCookie("session", "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}
