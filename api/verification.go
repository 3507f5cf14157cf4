package api

import (
	"errors"
	"net/http"
	"time"

	"bitwise74/cms-api/model"
	"bitwise74/cms-api/util"
	"bitwise74/cms-api/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	verificationTTL    = 300
	verificationDigits = 8
)

// VerificationIssue writes a fresh login code for an account and mails
// it. A still-live code is never replaced, so an attacker can't reset
// the window on a legitimate in-flight login. The response is 204
// whether or not the account exists.
func (a *API) VerificationIssue(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var body struct {
		Email string `json:"email"`
	}

	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	if err := validators.EmailValidator(body.Email); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	now := time.Now().Unix()

	err := a.DB.
		Model(&model.User{}).
		Where("email = ? AND verification_expires_at <= ?", body.Email, now).
		Updates(map[string]any{
			"verification":            util.NumericCode(verificationDigits),
			"verification_expires_at": now + verificationTTL,
		}).
		Error
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)

		zap.L().Error("Failed to write verification code", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	// Send whichever code is current, ours or a still-pending one
	var user model.User

	err = a.DB.Where("email = ?", body.Email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No account enumeration
			c.Status(http.StatusNoContent)
			return
		}

		c.AbortWithStatus(http.StatusInternalServerError)

		zap.L().Error("Failed to read back verification code", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	err = a.Mail.Send(user.Email, "CMS verification code", "Verification code: "+user.Verification)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)

		zap.L().Error("Failed to send verification mail", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.Status(http.StatusNoContent)
}
