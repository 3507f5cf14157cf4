// Package service holds background maintenance tasks
package service

import (
	"time"

	"bitwise74/cms-api/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionCleanup periodically deletes expired sessions. Logins already
// purge their own account's expired rows, this catches accounts that
// never log in again.
func SessionCleanup(t time.Duration, db *gorm.DB) {
	ticker := time.NewTicker(t)

	zap.L().Debug("Session cleanup attached", zap.Duration("tick_every", t))

	go func() {
		for range ticker.C {
			res := db.
				Where("expires_at < ?", time.Now().Unix()).
				Delete(&model.Session{})
			if res.Error != nil {
				zap.L().Error("Failed to cleanup expired sessions", zap.Error(res.Error))
				continue
			}

			if res.RowsAffected > 0 {
				zap.L().Debug("Cleaned up expired sessions", zap.Int64("count", res.RowsAffected))
			}
		}
	}()
}
