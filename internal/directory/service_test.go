package directory

import (
	"context"
	"errors"
	"testing"

	"kolekta.org/internal/auth"
	"kolekta.org/internal/policy"
)

func newTestService(t *testing.T) (*Service, *Organization) {
	t.Helper()
	svc, err := NewService(NewMemory())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	org, err := svc.CreateOrganization(context.Background(), "Tontine Plateau", "Plateau", "tontine", "standard")
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	return svc, org
}

func TestCreateOrganizationNormalizesSubdomain(t *testing.T) {
	_, org := newTestService(t)
	if org.Subdomain != "plateau" {
		t.Fatalf("subdomain = %q, want plateau", org.Subdomain)
	}
	if org.Status != "active" {
		t.Fatalf("status = %q, want active", org.Status)
	}
}

func TestCreateOrganizationRejectsDuplicateSubdomain(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateOrganization(context.Background(), "Other", "PLATEAU", "", "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	svc, org := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateUserInput
	}{
		{"bad email", CreateUserInput{Email: "not-an-email", Password: "x", Role: "manager"}},
		{"empty password", CreateUserInput{Email: "a@b.test", Password: "", Role: "manager"}},
		{"unknown role", CreateUserInput{Email: "a@b.test", Password: "x", Role: "janitor"}},
		{"commission out of range", CreateUserInput{Email: "a@b.test", Password: "x", Role: "collector", CommissionRate: 1.5}},
		{"negative salary", CreateUserInput{Email: "a@b.test", Password: "x", Role: "collector", BaseSalary: -1}},
	}
	for _, tc := range cases {
		if _, err := svc.CreateUser(ctx, org.ID, tc.in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: err = %v, want ErrInvalidInput", tc.name, err)
		}
	}

	if _, err := svc.CreateUser(ctx, "missing-org", CreateUserInput{
		Email: "a@b.test", Password: "x", Role: "manager",
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing org: err = %v, want ErrNotFound", err)
	}
}

func TestCreateUserHashesPassword(t *testing.T) {
	svc, org := newTestService(t)
	user, err := svc.CreateUser(context.Background(), org.ID, CreateUserInput{
		Email:    "Manager@Plateau.Test",
		Password: "secret-pass",
		Role:     "manager",
		FullName: "Mariam Sow",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "manager@plateau.test" {
		t.Fatalf("email = %q, want lowercased", user.Email)
	}
	if user.PasswordHash == "secret-pass" || user.PasswordHash == "" {
		t.Fatal("password stored without hashing")
	}
	if err := auth.VerifyPassword(user.PasswordHash, "secret-pass"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if user.Role != policy.RoleManager || user.Status != UserStatusActive {
		t.Fatalf("role=%s status=%s", user.Role, user.Status)
	}

	found, err := svc.FindUserByEmail(context.Background(), "MANAGER@plateau.test")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if found.ID != user.ID {
		t.Fatalf("found %s, want %s", found.ID, user.ID)
	}
}

func TestAssignCollector(t *testing.T) {
	svc, org := newTestService(t)
	ctx := context.Background()

	collector, err := svc.CreateUser(ctx, org.ID, CreateUserInput{
		Email: "collector@plateau.test", Password: "x", Role: "collector",
	})
	if err != nil {
		t.Fatalf("create collector: %v", err)
	}
	manager, err := svc.CreateUser(ctx, org.ID, CreateUserInput{
		Email: "manager@plateau.test", Password: "x", Role: "manager",
	})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	client, err := svc.CreateClient(ctx, org.ID, CreateClientInput{FullName: "Aminata Diallo"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	got, err := svc.AssignCollector(ctx, client.ID, collector.ID)
	if err != nil {
		t.Fatalf("AssignCollector: %v", err)
	}
	if got.AssignedCollectorID != collector.ID {
		t.Fatalf("assigned = %s, want %s", got.AssignedCollectorID, collector.ID)
	}

	// Only users with the collector role qualify.
	if _, err := svc.AssignCollector(ctx, client.ID, manager.ID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("assign manager: err = %v, want ErrInvalidInput", err)
	}

	// A collector from another organization reads as missing.
	other, err := svc.CreateOrganization(ctx, "Other Org", "other", "", "")
	if err != nil {
		t.Fatalf("create other org: %v", err)
	}
	foreign, err := svc.CreateUser(ctx, other.ID, CreateUserInput{
		Email: "collector@other.test", Password: "x", Role: "collector",
	})
	if err != nil {
		t.Fatalf("create foreign collector: %v", err)
	}
	if _, err := svc.AssignCollector(ctx, client.ID, foreign.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("assign foreign collector: err = %v, want ErrNotFound", err)
	}

	list, err := svc.ListClientsByCollector(ctx, collector.ID)
	if err != nil {
		t.Fatalf("ListClientsByCollector: %v", err)
	}
	if len(list) != 1 || list[0].ID != client.ID {
		t.Fatalf("list = %+v", list)
	}
}

func TestCreateClientChecksCollector(t *testing.T) {
	svc, org := newTestService(t)
	_, err := svc.CreateClient(context.Background(), org.ID, CreateClientInput{
		FullName:            "Aminata Diallo",
		AssignedCollectorID: "missing-user",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
