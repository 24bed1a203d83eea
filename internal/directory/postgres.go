package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"kolekta.org/internal/ids"
	"kolekta.org/internal/policy"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into organizations(id, name, subdomain, org_type, plan, status) values($1,$2,$3,$4,$5,$6)`,
		org.ID, org.Name, org.Subdomain, org.Type, org.Plan, org.Status,
	)
	return translateUnique(err, "subdomain")
}

func (s *PGStore) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, subdomain, org_type, plan, status, created_at, updated_at from organizations where id=$1`, id)
	var org Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Subdomain, &org.Type, &org.Plan, &org.Status, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (s *PGStore) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, subdomain, org_type, plan, status, created_at, updated_at from organizations order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Organization
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Subdomain, &org.Type, &org.Plan, &org.Status, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &org)
	}
	return res, rows.Err()
}

func (s *PGStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, organization_id, email, password_hash, full_name, role, status, base_salary, commission_rate)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		u.ID, u.OrganizationID, u.Email, u.PasswordHash, u.FullName, string(u.Role), u.Status, u.BaseSalary, u.CommissionRate,
	)
	return translateUnique(err, "email")
}

const userColumns = `id, organization_id, email, password_hash, full_name, role, status, base_salary, commission_rate, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash, &u.FullName, &role, &u.Status,
		&u.BaseSalary, &u.CommissionRate, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = policy.Role(role)
	return &u, nil
}

func (s *PGStore) FindUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *PGStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email=$1`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *PGStore) ListUsersByOrg(ctx context.Context, orgID string) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users where organization_id=$1 order by created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PGStore) CreateClient(ctx context.Context, c *Client) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into clients(id, organization_id, assigned_collector_id, full_name, phone, email, address, balance, status)
		 values($1,$2,nullif($3,''),$4,$5,$6,$7,$8,$9)`,
		c.ID, c.OrganizationID, c.AssignedCollectorID, c.FullName, c.Phone, c.Email, c.Address, c.Balance, c.Status,
	)
	return err
}

const clientColumns = `id, organization_id, coalesce(assigned_collector_id,''), full_name, phone, email, address, balance, status, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (*Client, error) {
	var c Client
	if err := row.Scan(&c.ID, &c.OrganizationID, &c.AssignedCollectorID, &c.FullName, &c.Phone, &c.Email,
		&c.Address, &c.Balance, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PGStore) GetClient(ctx context.Context, id string) (*Client, error) {
	row := s.db.QueryRowContext(ctx, `select `+clientColumns+` from clients where id=$1`, id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *PGStore) ListClientsByCollector(ctx context.Context, collectorID string) ([]*Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+clientColumns+` from clients where assigned_collector_id=$1 order by created_at`, collectorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *PGStore) SetClientCollector(ctx context.Context, clientID, collectorID string) error {
	res, err := s.db.ExecContext(ctx,
		`update clients set assigned_collector_id=$2, updated_at=now() where id=$1`, clientID, collectorID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// translateUnique maps unique-constraint violations to ErrConflict.
func translateUnique(err error, field string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key") {
		return fmt.Errorf("%w: %s", ErrConflict, field)
	}
	return err
}
