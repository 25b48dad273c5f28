package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/auth-service/config"
	"github.com/taskhub/auth-service/internal/middleware"
	"github.com/taskhub/auth-service/internal/model"
	"github.com/taskhub/auth-service/internal/repository"
	"github.com/taskhub/auth-service/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memUserStore and memTokenStore are in-memory stands-ins for the GORM
// repositories, implementing the service contracts.
type memUserStore struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*model.User
}

func (s *memUserStore) GetByID(ctx context.Context, id uint) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *memUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memUserStore) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memUserStore) UpdateLastLogin(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[id]; ok {
		now := time.Now()
		user.LastLogin = &now
	}
	return nil
}

type memTokenStore struct {
	mu     sync.Mutex
	nextID uint
	tokens map[string]*model.RefreshToken
}

func (s *memTokenStore) Save(ctx context.Context, token *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	token.ID = s.nextID
	copied := *token
	s.tokens[token.Token] = &copied
	return nil
}

func (s *memTokenStore) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tokens[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *memTokenStore) Rotate(ctx context.Context, current string, replacement *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tokens[current]
	if !ok || record.RevokedAt != nil {
		return repository.ErrTokenRotated
	}
	now := time.Now()
	record.RevokedAt = &now
	s.nextID++
	replacement.ID = s.nextID
	copied := *replacement
	s.tokens[replacement.Token] = &copied
	return nil
}

func (s *memTokenStore) RevokeAllForUser(ctx context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, record := range s.tokens {
		if record.UserID == userID && record.RevokedAt == nil {
			record.RevokedAt = &now
		}
	}
	return nil
}

// newTestRouter assembles the real handler, middleware, and service stack
// over in-memory stores.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	if err := middleware.RegisterValidators(); err != nil {
		t.Fatalf("RegisterValidators failed: %v", err)
	}

	jwtService := service.NewJWTService(config.JWTConfig{
		Secret:    "0123456789abcdef0123456789abcdef",
		Issuer:    "auth-service-test",
		Audience:  "auth-clients",
		AccessTTL: 15 * time.Minute,
	})
	authService := service.NewAuthService(
		&memUserStore{users: make(map[uint]*model.User)},
		&memTokenStore{tokens: make(map[string]*model.RefreshToken)},
		jwtService,
		7*24*time.Hour,
	)

	authHandler := NewAuthHandler(authService)
	userHandler := NewUserHandler(authService)
	jwtMw := middleware.NewJWTMiddleware(jwtService)

	r := gin.New()
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
		auth.POST("/logout", jwtMw.RequireAuth(), authHandler.Logout)
		auth.GET("/me", jwtMw.RequireAuth(), userHandler.Me)
	}
	return r
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, router *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response body %q: %v", w.Body.String(), err)
	}
	return body
}

func registerAlice(t *testing.T, router *gin.Engine) {
	t.Helper()

	w := postJSON(t, router, "/api/auth/register", gin.H{
		"email":     "alice@example.com",
		"password":  "Secret123!",
		"firstName": "Alice",
		"lastName":  "Smith",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201 from register, got %d: %s", w.Code, w.Body.String())
	}
}

func loginAlice(t *testing.T, router *gin.Engine) (accessToken, refreshToken string) {
	t.Helper()

	w := postJSON(t, router, "/api/auth/login", gin.H{
		"email":    "alice@example.com",
		"password": "Secret123!",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from login, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	accessToken, _ = body["accessToken"].(string)
	refreshToken, _ = body["refreshToken"].(string)
	if accessToken == "" || refreshToken == "" {
		t.Fatalf("Expected token pair in login response, got %s", w.Body.String())
	}
	return accessToken, refreshToken
}

func TestRegisterEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := postJSON(t, router, "/api/auth/register", gin.H{
		"email":     "alice@example.com",
		"password":  "Secret123!",
		"firstName": "Alice",
		"lastName":  "Smith",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["success"] != true {
		t.Errorf("Expected success envelope, got %s", w.Body.String())
	}
	data, _ := body["data"].(map[string]any)
	if data == nil {
		t.Fatalf("Expected data object, got %s", w.Body.String())
	}
	if data["email"] != "alice@example.com" {
		t.Errorf("Expected email in response, got %v", data["email"])
	}
	if _, leaked := data["password"]; leaked {
		t.Error("Password must not appear in the response")
	}
}

func TestRegisterEndpoint_Validation(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name    string
		payload gin.H
	}{
		{name: "Missing email", payload: gin.H{"password": "Secret123!"}},
		{name: "Malformed email", payload: gin.H{"email": "not-an-email", "password": "Secret123!"}},
		{name: "Missing password", payload: gin.H{"email": "alice@example.com"}},
		{name: "Weak password", payload: gin.H{"email": "alice@example.com", "password": "short"}},
		{name: "Password without digits", payload: gin.H{"email": "alice@example.com", "password": "OnlyLettersHere"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, router, "/api/auth/register", tt.payload, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestRegisterEndpoint_DuplicateEmail(t *testing.T) {
	router := newTestRouter(t)
	registerAlice(t, router)

	w := postJSON(t, router, "/api/auth/register", gin.H{
		"email":    "alice@example.com",
		"password": "Other456!",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for duplicate email, got %d", w.Code)
	}

	body := decodeBody(t, w)
	if body["message"] != "email already exists" {
		t.Errorf("Expected duplicate email message, got %v", body["message"])
	}
}

func TestLoginEndpoint(t *testing.T) {
	router := newTestRouter(t)
	registerAlice(t, router)

	access, refresh := loginAlice(t, router)
	if access == "" || refresh == "" {
		t.Fatal("Expected a token pair")
	}

	w := postJSON(t, router, "/api/auth/login", gin.H{
		"email":    "alice@example.com",
		"password": "Secret123!",
	}, nil)
	body := decodeBody(t, w)
	if body["tokenType"] != "Bearer" {
		t.Errorf("Expected Bearer token type, got %v", body["tokenType"])
	}
	if body["expiresIn"] != float64(900) {
		t.Errorf("Expected expiresIn 900, got %v", body["expiresIn"])
	}
}

func TestLoginEndpoint_GenericFailure(t *testing.T) {
	router := newTestRouter(t)
	registerAlice(t, router)

	wrongPassword := postJSON(t, router, "/api/auth/login", gin.H{
		"email":    "alice@example.com",
		"password": "WrongPass1",
	}, nil)
	unknownEmail := postJSON(t, router, "/api/auth/login", gin.H{
		"email":    "nobody@example.com",
		"password": "Secret123!",
	}, nil)

	if wrongPassword.Code != http.StatusBadRequest || unknownEmail.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for both failures, got %d and %d", wrongPassword.Code, unknownEmail.Code)
	}

	// Byte-identical bodies: the response must not reveal whether the
	// account exists
	if wrongPassword.Body.String() != unknownEmail.Body.String() {
		t.Errorf("Expected identical failure bodies, got %s and %s",
			wrongPassword.Body.String(), unknownEmail.Body.String())
	}
}

func TestRefreshEndpoint_Rotation(t *testing.T) {
	router := newTestRouter(t)
	registerAlice(t, router)
	_, refresh := loginAlice(t, router)

	w := postJSON(t, router, "/api/auth/refresh", gin.H{"refreshToken": refresh}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from refresh, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	rotated, _ := body["refreshToken"].(string)
	if rotated == "" || rotated == refresh {
		t.Fatalf("Expected a new refresh token, got %q", rotated)
	}

	// Replaying the consumed token fails with the generic message
	replay := postJSON(t, router, "/api/auth/refresh", gin.H{"refreshToken": refresh}, nil)
	if replay.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 on replay, got %d", replay.Code)
	}
	replayBody := decodeBody(t, replay)
	if replayBody["message"] != "invalid refresh token" {
		t.Errorf("Expected generic invalid token message, got %v", replayBody["message"])
	}
}

func TestRefreshEndpoint_MissingToken(t *testing.T) {
	router := newTestRouter(t)

	w := postJSON(t, router, "/api/auth/refresh", gin.H{}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing refresh token, got %d", w.Code)
	}
}

func TestMeEndpoint(t *testing.T) {
	router := newTestRouter(t)
	registerAlice(t, router)
	access, _ := loginAlice(t, router)

	w := getJSON(t, router, "/api/auth/me", map[string]string{
		"Authorization": "Bearer " + access,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /me, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	data, _ := body["data"].(map[string]any)
	if data == nil || data["email"] != "alice@example.com" {
		t.Errorf("Expected current user in response, got %s", w.Body.String())
	}
}

func TestMeEndpoint_Unauthenticated(t *testing.T) {
	router := newTestRouter(t)

	w := getJSON(t, router, "/api/auth/me", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", w.Code)
	}
}

func TestLogoutEndpoint(t *testing.T) {
	router := newTestRouter(t)
	registerAlice(t, router)
	access, refresh := loginAlice(t, router)

	w := postJSON(t, router, "/api/auth/logout", gin.H{}, map[string]string{
		"Authorization": "Bearer " + access,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from logout, got %d: %s", w.Code, w.Body.String())
	}

	// Refresh tokens issued before logout are dead
	replay := postJSON(t, router, "/api/auth/refresh", gin.H{"refreshToken": refresh}, nil)
	if replay.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 refreshing after logout, got %d", replay.Code)
	}

	// The access token itself stays valid until expiry
	me := getJSON(t, router, "/api/auth/me", map[string]string{
		"Authorization": "Bearer " + access,
	})
	if me.Code != http.StatusOK {
		t.Errorf("Expected access token to remain valid after logout, got %d", me.Code)
	}
}

func TestLogoutEndpoint_Unauthenticated(t *testing.T) {
	router := newTestRouter(t)

	w := postJSON(t, router, "/api/auth/logout", gin.H{}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", w.Code)
	}
}
