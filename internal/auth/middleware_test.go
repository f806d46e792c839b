package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/sungwon/newsletter/internal/storage"
)

type stubKeys map[string]storage.User

func (s stubKeys) GetUserByAPIKey(_ context.Context, key string) (storage.User, error) {
	if u, ok := s[key]; ok {
		return u, nil
	}
	return storage.User{}, errors.New("not found")
}

func serveWithAuth(t *testing.T, header string, keys APIKeyLookup, wantCalled bool) (*httptest.ResponseRecorder, uuid.UUID) {
	t.Helper()

	var got uuid.UUID
	called := false
	handler := BearerAuth(NewJWTService(testAuthConfig()), keys)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		got = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/admin/newsletters", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called != wantCalled {
		t.Errorf("handler called = %v, want %v", called, wantCalled)
	}
	return rec, got
}

func TestBearerAuth_ValidAPIKey(t *testing.T) {
	user := storage.User{UserID: uuid.New(), Username: "admin"}
	rec, got := serveWithAuth(t, "Bearer nlk_valid", stubKeys{"nlk_valid": user}, true)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got != user.UserID {
		t.Errorf("UserFromContext() = %v, want %v", got, user.UserID)
	}
}

func TestBearerAuth_ValidJWT(t *testing.T) {
	userID := uuid.New()
	token, err := NewJWTService(testAuthConfig()).GenerateAccessToken(userID, "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	rec, got := serveWithAuth(t, "Bearer "+token, stubKeys{}, true)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got != userID {
		t.Errorf("UserFromContext() = %v, want %v", got, userID)
	}
}

func TestBearerAuth_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"basic scheme", "Basic some-credentials"},
		{"empty token", "Bearer "},
		{"unknown api key", "Bearer nlk_unknown"},
		{"garbage jwt", "Bearer a.b.c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := serveWithAuth(t, tt.header, stubKeys{}, false)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
		})
	}
}

func TestUserFromContext_NoUser(t *testing.T) {
	if id := UserFromContext(context.Background()); id != uuid.Nil {
		t.Errorf("UserFromContext() = %v, want uuid.Nil", id)
	}
	if name := UsernameFromContext(context.Background()); name != "" {
		t.Errorf("UsernameFromContext() = %q, want empty", name)
	}
}
