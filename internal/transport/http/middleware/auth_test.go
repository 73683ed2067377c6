package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cpis/internal/domain/auth"
)

func TestAuthMiddlewareSetsUser(t *testing.T) {
	secret := "test-secret"
	token, err := auth.GenerateToken(secret, auth.Claims{UserID: "u1", TenantID: "t1", RoleName: auth.RoleHR}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	called := false
	handler := Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		user, ok := GetUser(r.Context())
		if !ok {
			t.Fatal("expected user in context")
		}
		if user.UserID != "u1" || user.TenantID != "t1" || user.RoleName != auth.RoleHR {
			t.Fatalf("unexpected user: %+v", user)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if !called {
		t.Fatal("expected handler to be called")
	}
}

func TestAuthMiddlewareIgnoresBadTokens(t *testing.T) {
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); ok {
			t.Fatal("did not expect user in context")
		}
	}))

	for _, header := range []string{"", "Basic abc", "Bearer not-a-token"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func TestRequirePermission(t *testing.T) {
	guarded := RequirePermission(auth.PermCPISRecompute, auth.StaticPermissions{})(noContent())

	anon := httptest.NewRecorder()
	guarded.ServeHTTP(anon, httptest.NewRequest(http.MethodPost, "/", nil))
	if anon.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", anon.Code)
	}

	employee := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(
		WithUser(context.Background(), auth.UserContext{UserID: "u1", TenantID: "t1", RoleName: auth.RoleEmployee}))
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, employee)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error.Code != "forbidden" {
		t.Fatalf("unexpected envelope: %+v", body)
	}

	hr := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(
		WithUser(context.Background(), auth.UserContext{UserID: "u2", TenantID: "t1", RoleName: auth.RoleHR}))
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, hr)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected HR to pass, got %d", rec.Code)
	}
}
