package model

import (
	"time"

	"gorm.io/gorm"
)

// User is an account row. The password column holds a bcrypt hash and must
// never cross the authentication boundary; users are deactivated via the
// active flag rather than deleted.
type User struct {
	gorm.Model
	FirstName string     `gorm:"column:first_name"`
	LastName  string     `gorm:"column:last_name"`
	Email     string     `gorm:"column:email;unique;not null"`
	Password  string     `gorm:"column:password;not null"`
	Active    bool       `gorm:"column:active;default:true;not null"`
	LastLogin *time.Time `gorm:"column:last_login"`
}
