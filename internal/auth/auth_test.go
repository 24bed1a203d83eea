package auth

import (
	"context"
	"testing"
	"time"

	"kolekta.org/internal/policy"
)

func TestGenerateAndValidate(t *testing.T) {
	t.Setenv("KOLEKTA_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("user-42", policy.RoleManager, "org-1", 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	caller, err := claims.Caller()
	if err != nil {
		t.Fatalf("Caller: %v", err)
	}
	if caller.Role != policy.RoleManager || caller.OrganizationID != "org-1" {
		t.Fatalf("unexpected caller: %+v", caller)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	t.Setenv("KOLEKTA_AUTH_SECRET", "test-secret")
	ResetSecretForTests()

	if _, err := ParseAndValidate(""); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseAndValidate("not.a.jwt"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	t.Setenv("KOLEKTA_AUTH_SECRET", "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("user-1", policy.RoleAdmin, "org-1", time.Minute); err == nil {
		t.Fatalf("expected missing secret error")
	}
}

func TestContextHelpers(t *testing.T) {
	caller := policy.Caller{ID: "user-7", Role: policy.RoleCollector, OrganizationID: "org-1"}
	ctx := ContextWithCaller(context.Background(), caller)

	got, ok := CallerFromContext(ctx)
	if !ok || got != caller {
		t.Fatalf("unexpected caller: %+v ok=%v", got, ok)
	}
	if _, ok := CallerFromContext(context.Background()); ok {
		t.Fatalf("expected no caller on fresh context")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "s3cret"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatch error")
	}
}
