package directory

import "context"

// Store describes persistence operations for the entity directory. Balance
// mutation is deliberately absent: only the collection lifecycle engine
// writes balances, through its own storage path.
type Store interface {
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	ListOrganizations(ctx context.Context) ([]*Organization, error)

	CreateUser(ctx context.Context, u *User) error
	FindUser(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsersByOrg(ctx context.Context, orgID string) ([]*User, error)

	CreateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, id string) (*Client, error)
	ListClientsByCollector(ctx context.Context, collectorID string) ([]*Client, error)
	SetClientCollector(ctx context.Context, clientID, collectorID string) error
}
