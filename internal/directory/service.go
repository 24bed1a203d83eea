package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kolekta.org/internal/auth"
	"kolekta.org/internal/policy"
)

// Service layers input validation and referential-integrity checks over a
// Store.
type Service struct {
	store Store
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory store is required")
	}
	return &Service{store: store}, nil
}

func (s *Service) CreateOrganization(ctx context.Context, name, subdomain, orgType, plan string) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	subdomain = strings.TrimSpace(strings.ToLower(subdomain))
	if subdomain == "" {
		return nil, fmt.Errorf("%w: subdomain is required", ErrInvalidInput)
	}
	org := &Organization{
		Name:      name,
		Subdomain: subdomain,
		Type:      strings.TrimSpace(orgType),
		Plan:      strings.TrimSpace(plan),
		Status:    "active",
	}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.GetOrganization(ctx, id)
}

func (s *Service) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	return s.store.ListOrganizations(ctx)
}

// CreateUserInput carries caller-supplied fields for a new user.
type CreateUserInput struct {
	Email          string
	Password       string
	FullName       string
	Role           string
	Status         string
	BaseSalary     int64
	CommissionRate float64
}

func (s *Service) CreateUser(ctx context.Context, organizationID string, in CreateUserInput) (*User, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	password := strings.TrimSpace(in.Password)
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	role, ok := policy.ParseRole(in.Role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	status := strings.TrimSpace(strings.ToLower(in.Status))
	if status == "" {
		status = UserStatusActive
	}
	if !validUserStatus(status) {
		return nil, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
	}
	if in.CommissionRate < 0 || in.CommissionRate > 1 {
		return nil, fmt.Errorf("%w: commission_rate must be within [0,1]", ErrInvalidInput)
	}
	if in.BaseSalary < 0 {
		return nil, fmt.Errorf("%w: base_salary must be >= 0", ErrInvalidInput)
	}

	if _, err := s.store.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		OrganizationID: organizationID,
		Email:          email,
		PasswordHash:   hash,
		FullName:       strings.TrimSpace(in.FullName),
		Role:           role,
		Status:         status,
		BaseSalary:     in.BaseSalary,
		CommissionRate: in.CommissionRate,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return s.store.FindUserByEmail(ctx, email)
}

func (s *Service) ListUsersByOrg(ctx context.Context, orgID string) ([]*User, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.ListUsersByOrg(ctx, orgID)
}

// CreateClientInput carries caller-supplied fields for a new client.
type CreateClientInput struct {
	FullName            string
	Phone               string
	Email               string
	Address             string
	AssignedCollectorID string
}

func (s *Service) CreateClient(ctx context.Context, organizationID string, in CreateClientInput) (*Client, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: full_name is required", ErrInvalidInput)
	}
	if _, err := s.store.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}
	collectorID := strings.TrimSpace(in.AssignedCollectorID)
	if collectorID != "" {
		if err := s.checkCollector(ctx, organizationID, collectorID); err != nil {
			return nil, err
		}
	}
	client := &Client{
		OrganizationID:      organizationID,
		AssignedCollectorID: collectorID,
		FullName:            fullName,
		Phone:               strings.TrimSpace(in.Phone),
		Email:               strings.TrimSpace(strings.ToLower(in.Email)),
		Address:             strings.TrimSpace(in.Address),
		Status:              ClientStatusActive,
	}
	if err := s.store.CreateClient(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *Service) GetClient(ctx context.Context, id string) (*Client, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	return s.store.GetClient(ctx, id)
}

func (s *Service) ListClientsByCollector(ctx context.Context, collectorID string) ([]*Client, error) {
	collectorID = strings.TrimSpace(collectorID)
	if collectorID == "" {
		return nil, fmt.Errorf("%w: collector_id is required", ErrInvalidInput)
	}
	return s.store.ListClientsByCollector(ctx, collectorID)
}

// AssignCollector moves a client to a collector inside the same organization.
// A client has at most one assigned collector at a time.
func (s *Service) AssignCollector(ctx context.Context, clientID, collectorID string) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	collectorID = strings.TrimSpace(collectorID)
	if clientID == "" || collectorID == "" {
		return nil, fmt.Errorf("%w: client_id and collector_id are required", ErrInvalidInput)
	}
	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if err := s.checkCollector(ctx, client.OrganizationID, collectorID); err != nil {
		return nil, err
	}
	if err := s.store.SetClientCollector(ctx, clientID, collectorID); err != nil {
		return nil, err
	}
	client.AssignedCollectorID = collectorID
	return client, nil
}

func (s *Service) checkCollector(ctx context.Context, organizationID, collectorID string) error {
	collector, err := s.store.FindUser(ctx, collectorID)
	if err != nil {
		return err
	}
	if collector.OrganizationID != organizationID {
		return fmt.Errorf("%w: collector %s", ErrNotFound, collectorID)
	}
	if collector.Role != policy.RoleCollector {
		return fmt.Errorf("%w: user %s is not a collector", ErrInvalidInput, collectorID)
	}
	return nil
}
