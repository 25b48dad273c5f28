package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/taskhub/auth-service/internal/constants"
	"github.com/taskhub/auth-service/internal/dto"
	apperrors "github.com/taskhub/auth-service/internal/errors"
	"github.com/taskhub/auth-service/internal/model"
	"github.com/taskhub/auth-service/internal/repository"
	ctxutil "github.com/taskhub/auth-service/pkg/context"
	"github.com/taskhub/auth-service/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// UserRepo is the minimal user store contract needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	UpdateLastLogin(ctx context.Context, id uint) error
}

// RefreshTokenRepo is the refresh token store contract. Rotate must revoke
// the current token and persist the replacement atomically, failing with
// repository.ErrTokenRotated when the current token was already consumed.
type RefreshTokenRepo interface {
	Save(ctx context.Context, token *model.RefreshToken) error
	GetByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	Rotate(ctx context.Context, current string, replacement *model.RefreshToken) error
	RevokeAllForUser(ctx context.Context, userID uint) error
}

// AuthService orchestrates registration, login, refresh rotation, and
// logout over the user store, the refresh token store, and the signer.
type AuthService struct {
	users      UserRepo
	tokens     RefreshTokenRepo
	jwtService *JWTService
	refreshTTL time.Duration
}

func NewAuthService(users UserRepo, tokens RefreshTokenRepo, jwtService *JWTService, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		jwtService: jwtService,
		refreshTTL: refreshTTL,
	}
}

// Register creates a new active user with a hashed password and returns the
// public projection. A duplicate email is a recoverable domain failure.
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Register")

	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.ErrorWithContext(ctx, "Failed to check email availability").
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if existing != nil {
		logger.WarnWithContext(ctx, "Registration with existing email").
			String("email", email).
			Log()
		return nil, apperrors.ErrEmailExists
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to hash password").
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	user := &model.User{
		Email:     email,
		Password:  hashedPassword,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Active:    true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		logger.ErrorWithContext(ctx, "Failed to create user").
			String("email", email).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "User registered").
		String("email", email).
		Uint("user_id", user.ID).
		Log()

	return toUserResponse(user), nil
}

// Login verifies credentials and issues an access/refresh token pair. An
// unknown email and a wrong password produce the same generic failure so the
// response never confirms whether an account exists.
func (s *AuthService) Login(ctx context.Context, email, password string) (*dto.TokenPairResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Login")

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.WarnWithContext(ctx, "Login with unknown email").
				Log()
			return nil, apperrors.ErrInvalidCredentials
		}
		logger.ErrorWithContext(ctx, "Failed to look up user for login").
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if !checkPassword(user.Password, password) {
		logger.WarnWithContext(ctx, "Login with wrong password").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.Active {
		logger.WarnWithContext(ctx, "Login attempt on deactivated account").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrAccountDeactivated
	}

	pair, refreshRecord, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Save(ctx, refreshRecord); err != nil {
		logger.ErrorWithContext(ctx, "Failed to persist refresh token").
			Uint("user_id", user.ID).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	// Best effort; a failed stamp must not fail the login
	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.WarnWithContext(ctx, "Failed to update last login").
			Uint("user_id", user.ID).
			Err(err).
			Log()
	}

	logger.InfoWithContext(ctx, "User logged in").
		Uint("user_id", user.ID).
		Log()

	return pair, nil
}

// Refresh exchanges a valid refresh token for a new pair, revoking the
// presented token. Reuse of an already-rotated token is the replay-detection
// signal and is logged distinctly, but the caller sees the same generic
// failure as any other invalid token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenPairResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "Refresh")

	record, err := s.tokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.WarnWithContext(ctx, "Refresh with unknown token").
				Log()
			return nil, apperrors.ErrInvalidRefreshToken
		}
		logger.ErrorWithContext(ctx, "Failed to look up refresh token").
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	if record.Revoked() {
		// Possible token theft: the token was already consumed once
		logger.WarnWithContext(ctx, "Refresh token reuse detected, possible replay").
			Uint("user_id", record.UserID).
			Log()
		return nil, apperrors.ErrInvalidRefreshToken
	}

	if record.Expired(time.Now()) {
		logger.WarnWithContext(ctx, "Refresh with expired token").
			Uint("user_id", record.UserID).
			Log()
		return nil, apperrors.ErrTokenExpired
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrUserInactive
		}
		logger.ErrorWithContext(ctx, "Failed to load refresh token owner").
			Uint("user_id", record.UserID).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}
	if !user.Active {
		logger.WarnWithContext(ctx, "Refresh attempt for inactive user").
			Uint("user_id", user.ID).
			Log()
		return nil, apperrors.ErrUserInactive
	}

	pair, replacement, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Rotate(ctx, refreshToken, replacement); err != nil {
		if errors.Is(err, repository.ErrTokenRotated) {
			// A concurrent refresh consumed the token first
			logger.WarnWithContext(ctx, "Refresh token rotation race lost, possible replay").
				Uint("user_id", user.ID).
				Log()
			return nil, apperrors.ErrInvalidRefreshToken
		}
		logger.ErrorWithContext(ctx, "Failed to rotate refresh token").
			Uint("user_id", user.ID).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "Token pair refreshed").
		Uint("user_id", user.ID).
		Log()

	return pair, nil
}

// Logout bulk-revokes every live refresh token for the user. Already-issued
// access tokens stay valid until natural expiry; the short access TTL bounds
// that exposure window.
func (s *AuthService) Logout(ctx context.Context, userID uint) error {
	ctx = ctxutil.WithOperation(ctx, "service", "Logout")

	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		logger.ErrorWithContext(ctx, "Failed to revoke tokens at logout").
			Uint("user_id", userID).
			Err(err).
			Log()
		return apperrors.WrapError(apperrors.ErrInternal, err)
	}

	logger.InfoWithContext(ctx, "User logged out").
		Uint("user_id", userID).
		Log()

	return nil
}

// GetCurrentUser loads the user identified by an already-validated
// principal's user-id claim. Token validation happens upstream in the JWT
// middleware.
func (s *AuthService) GetCurrentUser(ctx context.Context, userID uint) (*dto.UserResponse, error) {
	ctx = ctxutil.WithOperation(ctx, "service", "GetCurrentUser")

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		logger.ErrorWithContext(ctx, "Failed to load current user").
			Uint("user_id", userID).
			Err(err).
			Log()
		return nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	return toUserResponse(user), nil
}

// issueTokenPair mints an access token and a fresh refresh token record for
// the user. The refresh record is not persisted here; Login saves it and
// Refresh rotates it in.
func (s *AuthService) issueTokenPair(ctx context.Context, user *model.User) (*dto.TokenPairResponse, *model.RefreshToken, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to generate access token").
			Uint("user_id", user.ID).
			Err(err).
			Log()
		return nil, nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	refreshToken, err := s.jwtService.GenerateRefreshToken()
	if err != nil {
		logger.ErrorWithContext(ctx, "Failed to generate refresh token").
			Uint("user_id", user.ID).
			Err(err).
			Log()
		return nil, nil, apperrors.WrapError(apperrors.ErrInternal, err)
	}

	record := &model.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}

	pair := &dto.TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    constants.BearerScheme,
		ExpiresIn:    s.jwtService.AccessTTLSeconds(),
	}

	return pair, record, nil
}

// hashPassword hashes a password using bcrypt with a per-call random salt
func hashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// checkPassword verifies a password against its hash. Returns false on a
// malformed hash instead of propagating the error.
func checkPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

func toUserResponse(user *model.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Active:    user.Active,
		LastLogin: user.LastLogin,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
