package directory

import (
	"errors"
	"time"

	"kolekta.org/internal/policy"
)

var (
	ErrNotFound     = errors.New("directory: not found")
	ErrConflict     = errors.New("directory: already exists")
	ErrInvalidInput = errors.New("directory: invalid input")
)

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
	UserStatusPending  = "pending"
	UserStatusBlocked  = "blocked"

	ClientStatusActive   = "active"
	ClientStatusInactive = "inactive"
)

// Organization is the tenant boundary: no owned entity ever references
// another organization. Organizations are never deleted while they own users.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	Type      string    `json:"type,omitempty"`
	Plan      string    `json:"plan,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a human account operating inside one organization.
type User struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organization_id"`
	Email          string      `json:"email"`
	PasswordHash   string      `json:"-"`
	FullName       string      `json:"full_name,omitempty"`
	Role           policy.Role `json:"role"`
	Status         string      `json:"status"`
	BaseSalary     int64       `json:"base_salary,omitempty"`
	CommissionRate float64     `json:"commission_rate,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Client is a payer serviced by at most one assigned collector at a time.
// Balance is authoritative state in FCFA units, mutated only by the
// collection lifecycle engine at verification/reversal time.
type Client struct {
	ID                  string    `json:"id"`
	OrganizationID      string    `json:"organization_id"`
	AssignedCollectorID string    `json:"assigned_collector_id,omitempty"`
	FullName            string    `json:"full_name"`
	Phone               string    `json:"phone,omitempty"`
	Email               string    `json:"email,omitempty"`
	Address             string    `json:"address,omitempty"`
	Balance             int64     `json:"balance"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func validUserStatus(s string) bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusPending, UserStatusBlocked:
		return true
	}
	return false
}
