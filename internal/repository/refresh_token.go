package repository

import (
	"context"
	"errors"
	"time"

	"github.com/taskhub/auth-service/internal/model"
	ctxutil "github.com/taskhub/auth-service/pkg/context"
	"github.com/taskhub/auth-service/pkg/logger"
	"gorm.io/gorm"
)

// ErrTokenRotated is returned by Rotate when the presented token was already
// revoked by a concurrent refresh. The conditional update below is the
// serialization point: of two concurrent rotations of the same token, exactly
// one sees a row updated.
var ErrTokenRotated = errors.New("refresh token already rotated")

type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Save inserts a new refresh token row. The unique constraint on the token
// column turns a (vanishingly unlikely) collision into a storage error
// instead of a silent overwrite.
func (r *RefreshTokenRepository) Save(ctx context.Context, token *model.RefreshToken) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "Save")

	result := r.db.WithContext(ctx).Create(token)
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to save refresh token").
			Uint("user_id", token.UserID).
			Err(result.Error).
			Log()
		return result.Error
	}

	return nil
}

// GetByToken looks up a refresh token by its exact opaque string.
func (r *RefreshTokenRepository) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	ctx = ctxutil.WithOperation(ctx, "repository", "GetByToken")

	var record model.RefreshToken
	result := r.db.WithContext(ctx).Where("token = ?", token).First(&record)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			logger.ErrorWithContext(ctx, "Failed to look up refresh token").
				Err(result.Error).
				Log()
		}
		return nil, result.Error
	}

	return &record, nil
}

// Rotate revokes the presented token and persists its replacement in one
// transaction. The revoke is conditional on revoked_at IS NULL; zero rows
// affected means a concurrent refresh won the race and the whole rotation
// rolls back, including the replacement insert.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, current string, replacement *model.RefreshToken) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "Rotate")

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		revoke := tx.Model(&model.RefreshToken{}).
			Where("token = ? AND revoked_at IS NULL", current).
			Update("revoked_at", now)
		if revoke.Error != nil {
			return revoke.Error
		}
		if revoke.RowsAffected == 0 {
			return ErrTokenRotated
		}

		return tx.Create(replacement).Error
	})
	if err != nil {
		if errors.Is(err, ErrTokenRotated) {
			logger.WarnWithContext(ctx, "Refresh token rotation lost race").
				Uint("user_id", replacement.UserID).
				Log()
		} else {
			logger.ErrorWithContext(ctx, "Failed to rotate refresh token").
				Uint("user_id", replacement.UserID).
				Err(err).
				Log()
		}
		return err
	}

	return nil
}

// Revoke marks a single token revoked. Idempotent: revoking an
// already-revoked token is a no-op.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "Revoke")

	result := r.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Update("revoked_at", time.Now())
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to revoke refresh token").
			Err(result.Error).
			Log()
		return result.Error
	}

	return nil
}

// RevokeAllForUser bulk-revokes every live token owned by the user. Used at
// logout.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uint) error {
	ctx = ctxutil.WithOperation(ctx, "repository", "RevokeAllForUser")

	result := r.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", time.Now())
	if result.Error != nil {
		logger.ErrorWithContext(ctx, "Failed to revoke user refresh tokens").
			Uint("user_id", userID).
			Err(result.Error).
			Log()
		return result.Error
	}

	logger.InfoWithContext(ctx, "Revoked refresh tokens for user").
		Uint("user_id", userID).
		Int64("revoked_count", result.RowsAffected).
		Log()

	return nil
}
