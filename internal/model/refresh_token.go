package model

import "time"

// RefreshToken is one opaque refresh credential. Rows are revoked, never
// deleted, so the table doubles as an audit trail. The unique token column
// plus the revoked_at IS NULL guard in the repository make rotation
// single-use even across processes.
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    uint       `gorm:"column:user_id;not null;index"`
	Token     string     `gorm:"column:token;unique;not null"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	RevokedAt *time.Time `gorm:"column:revoked_at"`
	CreatedAt time.Time  `gorm:"column:created_at"`

	User User `gorm:"foreignKey:UserID"`
}

// Expired reports whether the token's lifetime has passed.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Revoked reports whether the token has been revoked. Revocation is
// permanent; there is no un-revoke.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Valid reports whether the token can still be exchanged.
func (t *RefreshToken) Valid(now time.Time) bool {
	return !t.Expired(now) && !t.Revoked()
}
