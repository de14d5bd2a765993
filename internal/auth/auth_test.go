package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()

	// No principal yet
	if _, ok := PrincipalFrom(ctx); ok {
		t.Fatal("expected no principal in empty context")
	}

	p := &Principal{
		Sub:    "user-123",
		Scopes: map[string]bool{"execsearch:read": true},
		Roles:  map[string]bool{"execsearch_admin": true},
	}

	ctx = WithPrincipal(ctx, p)
	got, ok := PrincipalFrom(ctx)
	if !ok {
		t.Fatal("expected principal in context")
	}
	if got.Sub != "user-123" {
		t.Fatalf("got sub %q, want %q", got.Sub, "user-123")
	}
}

func TestHasScope(t *testing.T) {
	p := &Principal{
		Scopes: map[string]bool{
			"execsearch:read":  true,
			"execsearch:write": true,
		},
	}

	if !p.HasScope("execsearch:read") {
		t.Error("expected HasScope(execsearch:read) = true")
	}
	if p.HasScope("execsearch:admin") {
		t.Error("expected HasScope(execsearch:admin) = false")
	}
}

func TestHasAnyScope(t *testing.T) {
	p := &Principal{
		Scopes: map[string]bool{"execsearch:read": true},
	}

	if !p.HasAnyScope("execsearch:write", "execsearch:read") {
		t.Error("expected HasAnyScope to match execsearch:read")
	}
	if p.HasAnyScope("execsearch:write", "execsearch:admin") {
		t.Error("expected HasAnyScope to return false when none match")
	}
}

func TestIsAdmin(t *testing.T) {
	admin := &Principal{Roles: map[string]bool{"execsearch_admin": true}}
	reader := &Principal{Roles: map[string]bool{"execsearch_reader": true}}

	if !admin.IsAdmin() {
		t.Error("expected admin to be admin")
	}
	if reader.IsAdmin() {
		t.Error("expected reader to not be admin")
	}
}

func TestRequireScope_Pass(t *testing.T) {
	p := &Principal{
		Scopes: map[string]bool{"execsearch:read": true},
	}

	mw := RequireScope("execsearch:read")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(WithPrincipal(req.Context(), p))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}

func TestRequireScope_Fail(t *testing.T) {
	p := &Principal{
		Scopes: map[string]bool{"execsearch:read": true},
	}

	mw := RequireScope("execsearch:write")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(WithPrincipal(req.Context(), p))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want 403", rec.Code)
	}
}

func TestRequireScope_AdminBypass(t *testing.T) {
	p := &Principal{
		Scopes: map[string]bool{},
		Roles:  map[string]bool{"execsearch_admin": true},
	}

	mw := RequireScope("execsearch:write")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(WithPrincipal(req.Context(), p))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("admin should bypass scope check, got status %d", rec.Code)
	}
}

func TestRequireScope_NoPrincipal(t *testing.T) {
	mw := RequireScope("execsearch:read")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", rec.Code)
	}
}
