package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dosada05/family-ranking/models"
	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestAuthenticateRoundTrip(t *testing.T) {
	tokenString := signToken(t, jwt.MapClaims{
		"user_id": 42,
		"role":    "player",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	var gotUserID int
	var gotRole models.UserRole
	handler := Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		gotUserID, err = GetUserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("GetUserIDFromContext: %v", err)
		}
		gotRole, err = GetUserRoleFromContext(r.Context())
		if err != nil {
			t.Errorf("GetUserRoleFromContext: %v", err)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUserID != 42 {
		t.Errorf("user id = %d, want 42", gotUserID)
	}
	if gotRole != models.RolePlayer {
		t.Errorf("role = %s, want player", gotRole)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	expired := signToken(t, jwt.MapClaims{
		"user_id": 42,
		"role":    "player",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-token"},
		{"expired token", "Bearer " + expired},
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run for an unauthenticated request")
	})
	handler := Authenticate(testSecret)(next)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	adminToken := signToken(t, jwt.MapClaims{
		"user_id": 1,
		"role":    "admin",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	playerToken := signToken(t, jwt.MapClaims{
		"user_id": 2,
		"role":    "player",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	handler := Authenticate(testSecret)(Authorize("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	run := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := run(adminToken); code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", code)
	}
	if code := run(playerToken); code != http.StatusForbidden {
		t.Errorf("player status = %d, want 403", code)
	}
}
