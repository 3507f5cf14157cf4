package model

type Session struct {
	// Random opaque key. When auth.bind_session_ip is enabled this is
	// the hash of the cookie value and the client IP, not the raw key
	Key   string `gorm:"primaryKey"`
	Email string `gorm:"index"`

	// Unix seconds
	ExpiresAt int64 `gorm:"index"`
}
