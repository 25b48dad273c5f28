package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/auth-service/config"
	"github.com/taskhub/auth-service/internal/model"
	"github.com/taskhub/auth-service/internal/service"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWT() *service.JWTService {
	return service.NewJWTService(config.JWTConfig{
		Secret:    "0123456789abcdef0123456789abcdef",
		Issuer:    "auth-service-test",
		Audience:  "auth-clients",
		AccessTTL: 15 * time.Minute,
	})
}

// protectedRouter wires RequireAuth in front of a probe handler that echoes
// the authenticated user ID.
func protectedRouter(jwtService *service.JWTService) *gin.Engine {
	r := gin.New()
	mw := NewJWTMiddleware(jwtService)
	r.GET("/probe", mw.RequireAuth(), func(c *gin.Context) {
		userID, ok := UserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no user in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return r
}

func TestRequireAuth_Rejections(t *testing.T) {
	jwtService := newTestJWT()
	router := protectedRouter(jwtService)

	otherKey := service.NewJWTService(config.JWTConfig{
		Secret:    "ffffffffffffffffffffffffffffffff",
		Issuer:    "auth-service-test",
		Audience:  "auth-clients",
		AccessTTL: 15 * time.Minute,
	})
	forged, err := otherKey.GenerateAccessToken(&model.User{
		Model:  gorm.Model{ID: 7},
		Email:  "mallory@example.com",
		Active: true,
	})
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "Missing header", header: ""},
		{name: "Wrong scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "Bare token without scheme", header: "just-a-token"},
		{name: "Garbage token", header: "Bearer not-a-jwt"},
		{name: "Forged signature", header: "Bearer " + forged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", w.Code)
			}
			if body := w.Body.String(); !strings.Contains(body, "missing or invalid authorization") {
				t.Errorf("Expected generic unauthorized body, got %s", body)
			}
		})
	}
}

func TestRequireAuth_ValidToken(t *testing.T) {
	jwtService := newTestJWT()
	router := protectedRouter(jwtService)

	token, err := jwtService.GenerateAccessToken(&model.User{
		Model:     gorm.Model{ID: 42},
		Email:     "alice@example.com",
		FirstName: "Alice",
		Active:    true,
	})
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body := w.Body.String(); !strings.Contains(body, `"user_id":42`) {
		t.Errorf("Expected user_id 42 in body, got %s", body)
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if _, ok := UserIDFromContext(c); ok {
		t.Error("Expected no user ID on a bare context")
	}

	c.Set(ContextUserID, "not-a-uint")
	if _, ok := UserIDFromContext(c); ok {
		t.Error("Expected type mismatch to report absence")
	}

	c.Set(ContextUserID, uint(7))
	userID, ok := UserIDFromContext(c)
	if !ok || userID != 7 {
		t.Errorf("Expected user ID 7, got %d (ok=%v)", userID, ok)
	}
}
