// Package model defines database models
package model

type User struct {
	// Email doubles as the user's identity everywhere else in the system
	Email string `gorm:"primaryKey" json:"email"`

	// Permanent access key, usable as a bearer token for headless clients
	Key string `gorm:"uniqueIndex;not null" json:"-"`

	// Short-lived login code and its expiry. Rewritten on each login
	// attempt once the previous code has expired
	Verification          string `json:"-"`
	VerificationExpiresAt int64  `json:"-"`

	Sessions []Session `gorm:"foreignKey:Email;references:Email" json:"-"`
}
