package policy

import "testing"

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole("  Manager "); !ok || r != RoleManager {
		t.Fatalf("unexpected parse: %q ok=%v", r, ok)
	}
	if _, ok := ParseRole("superuser"); ok {
		t.Fatalf("expected unknown role to fail")
	}
}

func TestVerifyGateByRole(t *testing.T) {
	elevated := []Role{RoleAdmin, RoleOrganization, RoleManager}
	for _, role := range elevated {
		if !CanVerify(Caller{ID: "u", Role: role, OrganizationID: "org"}) {
			t.Fatalf("expected %s to verify", role)
		}
	}
	for _, role := range []Role{RoleCollector, RoleClient, RoleAuditor} {
		c := Caller{ID: "u", Role: role, OrganizationID: "org"}
		if CanVerify(c) || CanReject(c) || CanReverse(c) || CanResolve(c) {
			t.Fatalf("expected %s to be denied elevated transitions", role)
		}
	}
}

func TestCreateCollectionGate(t *testing.T) {
	if !CanCreateCollection(Caller{Role: RoleCollector}) {
		t.Fatalf("collector must be able to create collections")
	}
	if CanCreateCollection(Caller{Role: RoleClient}) {
		t.Fatalf("client must not create collections")
	}
	if CanCreateCollection(Caller{Role: RoleAuditor}) {
		t.Fatalf("auditor must not create collections")
	}
}

func TestCanReadScoping(t *testing.T) {
	scope := Scope{OrganizationID: "org-1", CollectorID: "col-1", ClientID: "cli-1"}

	if CanRead(Caller{ID: "m", Role: RoleManager, OrganizationID: "org-2"}, scope) {
		t.Fatalf("cross-tenant read must be denied")
	}
	if !CanRead(Caller{ID: "m", Role: RoleManager, OrganizationID: "org-1"}, scope) {
		t.Fatalf("manager should read anything in own org")
	}
	if !CanRead(Caller{ID: "a", Role: RoleAuditor, OrganizationID: "org-1"}, scope) {
		t.Fatalf("auditor should read anything in own org")
	}
	if !CanRead(Caller{ID: "col-1", Role: RoleCollector, OrganizationID: "org-1"}, scope) {
		t.Fatalf("owning collector should read")
	}
	if CanRead(Caller{ID: "col-2", Role: RoleCollector, OrganizationID: "org-1"}, scope) {
		t.Fatalf("other collector must not read")
	}
	if !CanRead(Caller{ID: "cli-1", Role: RoleClient, OrganizationID: "org-1"}, scope) {
		t.Fatalf("owning client should read")
	}
	if CanRead(Caller{ID: "cli-2", Role: RoleClient, OrganizationID: "org-1"}, scope) {
		t.Fatalf("other client must not read")
	}
}

func TestCanDispute(t *testing.T) {
	scope := Scope{OrganizationID: "org-1", ClientID: "cli-1"}
	if !CanDispute(Caller{ID: "cli-1", Role: RoleClient, OrganizationID: "org-1"}, scope) {
		t.Fatalf("owning client should dispute")
	}
	if CanDispute(Caller{ID: "cli-2", Role: RoleClient, OrganizationID: "org-1"}, scope) {
		t.Fatalf("other client must not dispute")
	}
	if CanDispute(Caller{ID: "m", Role: RoleManager, OrganizationID: "org-1"}, scope) {
		t.Fatalf("manager must not dispute")
	}
}
