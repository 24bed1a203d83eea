package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kolekta.org/internal/auth"
	"kolekta.org/internal/policy"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc123", "abc123", false},
		{"bearer abc123", "abc123", false},
		{"  Bearer   abc123  ", "abc123", false},
		{"", "", true},
		{"Basic abc123", "", true},
		{"Bearer ", "", true},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("header %q: expected error", tc.header)
			}
			continue
		}
		if err != nil {
			t.Fatalf("header %q: %v", tc.header, err)
		}
		if got != tc.want {
			t.Fatalf("header %q: got %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestWithAuthAttachesCaller(t *testing.T) {
	t.Setenv("KOLEKTA_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	api := &API{}
	var seen policy.Caller
	handler := api.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	token, err := auth.GenerateToken("mgr-1", policy.RoleManager, "org-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/collections", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if seen.ID != "mgr-1" || seen.Role != policy.RoleManager || seen.OrganizationID != "org-1" {
		t.Fatalf("caller = %+v", seen)
	}
}

func TestWithAuthRejectsGarbage(t *testing.T) {
	t.Setenv("KOLEKTA_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	api := &API{}
	handler := api.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/collections", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestWithAuthSkipsPublicPaths(t *testing.T) {
	api := &API{}
	called := false
	handler := api.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !called || rr.Code != http.StatusOK {
		t.Fatalf("public path blocked: called=%v status=%d", called, rr.Code)
	}
}
