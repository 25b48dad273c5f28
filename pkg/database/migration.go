package database

import (
	"github.com/taskhub/auth-service/internal/model"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the authentication tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
	)
}
