// Package policy holds the role-and-organization scoping rules for the
// collection lifecycle. Every transition consults this table; role logic is
// never re-derived at call sites.
package policy

import (
	"errors"
	"strings"
)

// ErrUnauthorized indicates the caller may not perform the operation.
var ErrUnauthorized = errors.New("policy: unauthorized")

// Role identifies the caller's position inside an organization.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleOrganization Role = "organization"
	RoleManager      Role = "manager"
	RoleCollector    Role = "collector"
	RoleClient       Role = "client"
	RoleAuditor      Role = "auditor"
)

// ParseRole normalizes a role string. Unknown values yield ok=false.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleOrganization:
		return RoleOrganization, true
	case RoleManager:
		return RoleManager, true
	case RoleCollector:
		return RoleCollector, true
	case RoleClient:
		return RoleClient, true
	case RoleAuditor:
		return RoleAuditor, true
	default:
		return "", false
	}
}

// Caller is the authenticated identity supplied by the HTTP layer.
// The engine trusts it as given.
type Caller struct {
	ID             string
	Role           Role
	OrganizationID string
}

type capability uint8

const (
	capCreateCollection capability = 1 << iota
	capVerify
	capDispute
	capReadAll // read anything inside own organization
)

// capabilities is the single source of truth for what each role may do.
var capabilities = map[Role]capability{
	RoleAdmin:        capCreateCollection | capVerify | capReadAll,
	RoleOrganization: capCreateCollection | capVerify | capReadAll,
	RoleManager:      capCreateCollection | capVerify | capReadAll,
	RoleCollector:    capCreateCollection,
	RoleClient:       capDispute,
	RoleAuditor:      capReadAll,
}

func (c Caller) has(cap capability) bool {
	return capabilities[c.Role]&cap != 0
}

// Scope identifies the tenant and owners of a target entity.
type Scope struct {
	OrganizationID string
	CollectorID    string
	ClientID       string
}

// CanRead reports whether the caller may view an entity: same organization,
// and collectors/clients see only their own records.
func CanRead(c Caller, s Scope) bool {
	if c.OrganizationID != s.OrganizationID {
		return false
	}
	if c.has(capReadAll) {
		return true
	}
	switch c.Role {
	case RoleCollector:
		return s.CollectorID == c.ID
	case RoleClient:
		return s.ClientID == c.ID
	default:
		return false
	}
}

// CanCreateCollection reports whether the caller may record a new collection.
func CanCreateCollection(c Caller) bool {
	return c.has(capCreateCollection)
}

// CanVerify reports whether the caller may verify a pending collection.
// Reject, reverse and dispute resolution share this gate.
func CanVerify(c Caller) bool {
	return c.has(capVerify)
}

// CanReject reports whether the caller may reject a pending collection.
func CanReject(c Caller) bool { return CanVerify(c) }

// CanReverse reports whether the caller may reverse a verified collection.
func CanReverse(c Caller) bool { return CanVerify(c) }

// CanResolve reports whether the caller may resolve a dispute.
func CanResolve(c Caller) bool { return CanVerify(c) }

// CanDispute reports whether the caller may flag a verified collection:
// only the owning client. The status guard lives in the lifecycle engine.
func CanDispute(c Caller, s Scope) bool {
	return c.has(capDispute) && c.OrganizationID == s.OrganizationID && s.ClientID == c.ID
}
