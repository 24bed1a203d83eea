package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"kolekta.org/internal/collection"
	"kolekta.org/internal/ids"
	"kolekta.org/internal/policy"
)

// Store is the durable collection lifecycle engine. Every transition runs in
// one transaction: the collection row is locked, the status guard re-checked
// under the lock, and the client balance mutated in the same commit.
type Store struct {
	db   *sql.DB
	sink collection.Sink
}

var _ collection.Service = (*Store)(nil)

// Open connects to PostgreSQL. sink may be nil to disable event fan-out.
func Open(dsn string, sink collection.Sink) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db, sink: sink}, nil
}

// NewWithDB wraps an existing pool. Used by tests and the migration runner.
func NewWithDB(db *sql.DB, sink collection.Sink) *Store { return &Store{db: db, sink: sink} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const colColumns = `id, organization_id, collector_id, coalesce(client_id,''), amount, description,
	payment_method, latitude, longitude, receipt_number, collected_at, created_at, status, verified_at,
	rejection, dispute`

func (s *Store) Create(ctx context.Context, caller policy.Caller, in collection.CreateInput) (collection.Collection, error) {
	if !policy.CanCreateCollection(caller) {
		return collection.Collection{}, policy.ErrUnauthorized
	}

	in.ClientID = strings.TrimSpace(in.ClientID)
	internal := in.ClientID == ""
	if internal {
		if !policy.CanVerify(caller) {
			return collection.Collection{}, policy.ErrUnauthorized
		}
		if in.Amount == 0 {
			return collection.Collection{}, collection.ErrInvalidAmount
		}
	} else if in.Amount <= 0 {
		return collection.Collection{}, collection.ErrInvalidAmount
	}
	if !collection.ValidMethod(in.PaymentMethod) {
		return collection.Collection{}, collection.ErrInvalidInput
	}

	collectorID := caller.ID
	if caller.Role != policy.RoleCollector && strings.TrimSpace(in.CollectorID) != "" {
		collectorID = strings.TrimSpace(in.CollectorID)
	}

	if !internal {
		var orgID string
		err := s.db.QueryRowContext(ctx, `select organization_id from clients where id=$1`, in.ClientID).Scan(&orgID)
		if errors.Is(err, sql.ErrNoRows) {
			return collection.Collection{}, collection.ErrClientNotFound
		}
		if err != nil {
			return collection.Collection{}, storeErr(err)
		}
		// Cross-tenant references are treated as absent, not as forbidden.
		if orgID != caller.OrganizationID {
			return collection.Collection{}, collection.ErrClientNotFound
		}
	}

	collectedAt := in.CollectedAt
	if collectedAt.IsZero() {
		collectedAt = time.Now().UTC()
	}

	c := collection.Collection{
		ID:             ids.New(),
		OrganizationID: caller.OrganizationID,
		CollectorID:    collectorID,
		ClientID:       in.ClientID,
		Amount:         in.Amount,
		Description:    strings.TrimSpace(in.Description),
		PaymentMethod:  in.PaymentMethod,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		CollectedAt:    collectedAt,
		CreatedAt:      time.Now().UTC(),
		Status:         collection.StatusPending,
	}

	// The receipt number carries a unique index; regenerate on the rare
	// collision instead of failing the create.
	for attempt := 0; attempt < 5; attempt++ {
		c.ReceiptNumber = ids.NewReceipt()
		_, err := s.db.ExecContext(ctx, `
			insert into collections(id, organization_id, collector_id, client_id, amount, description,
				payment_method, latitude, longitude, receipt_number, collected_at, created_at, status)
			values ($1,$2,$3,nullif($4,''),$5,$6,$7,$8,$9,$10,$11,$12,$13)
		`, c.ID, c.OrganizationID, c.CollectorID, c.ClientID, c.Amount, c.Description,
			string(c.PaymentMethod), c.Latitude, c.Longitude, c.ReceiptNumber, c.CollectedAt, c.CreatedAt, string(c.Status))
		if err == nil {
			s.publish("collection.created", c)
			return c, nil
		}
		if !isUniqueViolation(err) {
			return collection.Collection{}, storeErr(err)
		}
	}
	return collection.Collection{}, storeErr(errors.New("receipt number space exhausted"))
}

func (s *Store) Get(ctx context.Context, caller policy.Caller, id string) (collection.Collection, error) {
	row := s.db.QueryRowContext(ctx, `select `+colColumns+` from collections where id=$1`, id)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return collection.Collection{}, collection.ErrNotFound
	}
	if err != nil {
		return collection.Collection{}, storeErr(err)
	}
	if !policy.CanRead(caller, scopeOf(c)) {
		// Hidden and missing are indistinguishable to the caller.
		return collection.Collection{}, collection.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListByClient(ctx context.Context, caller policy.Caller, clientID string, limit int) ([]collection.Collection, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+colColumns+` from collections
		where client_id=$1 and organization_id=$2
		order by created_at asc
		limit $3
	`, clientID, caller.OrganizationID, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var res []collection.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		if !policy.CanRead(caller, scopeOf(c)) {
			continue
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return res, nil
}

func (s *Store) Verify(ctx context.Context, caller policy.Caller, id string) (collection.Collection, error) {
	if !policy.CanVerify(caller) {
		return collection.Collection{}, policy.ErrUnauthorized
	}
	c, err := s.transition(ctx, caller, id, collection.EventVerify, func(ctx context.Context, tx *sql.Tx, c *collection.Collection) error {
		if c.ClientID != "" {
			if err := adjustBalance(ctx, tx, c.ClientID, c.Amount); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		c.Status = collection.StatusVerified
		c.VerifiedAt = &now
		_, err := tx.ExecContext(ctx, `update collections set status=$2, verified_at=$3 where id=$1`,
			c.ID, string(c.Status), now)
		return err
	})
	if err != nil {
		return collection.Collection{}, err
	}
	s.publish("collection.verified", c)
	return c, nil
}

func (s *Store) Reject(ctx context.Context, caller policy.Caller, id, reason string) (collection.Collection, error) {
	if !policy.CanReject(caller) {
		return collection.Collection{}, policy.ErrUnauthorized
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return collection.Collection{}, collection.ErrInvalidInput
	}
	return s.transition(ctx, caller, id, collection.EventReject, func(ctx context.Context, tx *sql.Tx, c *collection.Collection) error {
		c.Status = collection.StatusRejected
		c.Rejection = &collection.RejectionInfo{Reason: reason, ActorID: caller.ID, At: time.Now().UTC()}
		rej, err := json.Marshal(c.Rejection)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `update collections set status=$2, rejection=$3 where id=$1`,
			c.ID, string(c.Status), rej)
		return err
	})
}

func (s *Store) Dispute(ctx context.Context, caller policy.Caller, id, reason, description string) (collection.Collection, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return collection.Collection{}, collection.ErrInvalidInput
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return collection.Collection{}, storeErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	c, err := lockCollection(ctx, tx, id)
	if err != nil {
		return collection.Collection{}, err
	}
	if c.OrganizationID != caller.OrganizationID {
		return collection.Collection{}, collection.ErrNotFound
	}
	if !policy.CanDispute(caller, scopeOf(c)) {
		return collection.Collection{}, policy.ErrUnauthorized
	}
	if c.Dispute.Pending() {
		return collection.Collection{}, collection.ErrDuplicateDispute
	}
	if err := collection.Guard(c.Status, collection.EventDispute); err != nil {
		return collection.Collection{}, err
	}

	c.Status = collection.StatusDisputed
	c.Dispute = &collection.DisputeInfo{
		Reason:      reason,
		Description: strings.TrimSpace(description),
		ActorID:     caller.ID,
		RaisedAt:    time.Now().UTC(),
	}
	disp, err := json.Marshal(c.Dispute)
	if err != nil {
		return collection.Collection{}, storeErr(err)
	}
	if _, err := tx.ExecContext(ctx, `update collections set status=$2, dispute=$3 where id=$1`,
		c.ID, string(c.Status), disp); err != nil {
		return collection.Collection{}, storeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return collection.Collection{}, storeErr(err)
	}
	return c, nil
}

func (s *Store) Resolve(ctx context.Context, caller policy.Caller, id string, outcome collection.ResolutionOutcome, note string) (collection.Collection, error) {
	if !policy.CanResolve(caller) {
		return collection.Collection{}, policy.ErrUnauthorized
	}
	if outcome != collection.ResolutionUphold && outcome != collection.ResolutionReverse {
		return collection.Collection{}, collection.ErrInvalidInput
	}
	c, err := s.transition(ctx, caller, id, collection.EventResolve, func(ctx context.Context, tx *sql.Tx, c *collection.Collection) error {
		if outcome == collection.ResolutionReverse && c.ClientID != "" {
			if err := adjustBalance(ctx, tx, c.ClientID, -c.Amount); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		if outcome == collection.ResolutionUphold {
			c.Status = collection.StatusVerified
		} else {
			c.Status = collection.StatusReversed
		}
		c.Dispute.Resolution = outcome
		c.Dispute.Note = strings.TrimSpace(note)
		c.Dispute.ResolvedBy = caller.ID
		c.Dispute.ResolvedAt = &now
		disp, err := json.Marshal(c.Dispute)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `update collections set status=$2, dispute=$3 where id=$1`,
			c.ID, string(c.Status), disp)
		return err
	})
	if err != nil {
		return collection.Collection{}, err
	}
	if outcome == collection.ResolutionReverse {
		s.publish("collection.reversed", c)
	}
	return c, nil
}

func (s *Store) Reverse(ctx context.Context, caller policy.Caller, id string) (collection.Collection, error) {
	if !policy.CanReverse(caller) {
		return collection.Collection{}, policy.ErrUnauthorized
	}
	c, err := s.transition(ctx, caller, id, collection.EventReverse, func(ctx context.Context, tx *sql.Tx, c *collection.Collection) error {
		if c.ClientID != "" {
			if err := adjustBalance(ctx, tx, c.ClientID, -c.Amount); err != nil {
				return err
			}
		}
		c.Status = collection.StatusReversed
		_, err := tx.ExecContext(ctx, `update collections set status=$2 where id=$1`, c.ID, string(c.Status))
		return err
	})
	if err != nil {
		return collection.Collection{}, err
	}
	s.publish("collection.reversed", c)
	return c, nil
}

func (s *Store) Summary(ctx context.Context, caller policy.Caller, from, to time.Time) (collection.Summary, error) {
	if caller.OrganizationID == "" {
		return collection.Summary{}, policy.ErrUnauthorized
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}

	query := `
		select
			coalesce(sum(case when status='verified' then 1 else 0 end),0),
			coalesce(sum(case when status='verified' then amount else 0 end),0),
			coalesce(sum(case when status='pending' then 1 else 0 end),0),
			coalesce(sum(case when status='rejected' then 1 else 0 end),0),
			coalesce(sum(case when status='disputed' then 1 else 0 end),0),
			coalesce(sum(case when status='reversed' then 1 else 0 end),0)
		from collections
		where organization_id=$1 and created_at >= $2 and created_at < $3`
	args := []any{caller.OrganizationID, from, to}
	switch caller.Role {
	case policy.RoleCollector:
		query += ` and collector_id=$4`
		args = append(args, caller.ID)
	case policy.RoleClient:
		query += ` and client_id=$4`
		args = append(args, caller.ID)
	}

	out := collection.Summary{From: from, To: to}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&out.VerifiedCount, &out.VerifiedTotal, &out.PendingCount,
		&out.RejectedCount, &out.DisputedCount, &out.ReversedCount,
	); err != nil {
		return collection.Summary{}, storeErr(err)
	}
	if decided := out.VerifiedCount + out.RejectedCount; decided > 0 {
		out.SuccessRate = float64(out.VerifiedCount) / float64(decided)
	}
	return out, nil
}

// transition runs a lifecycle event transactionally: lock the row, re-check
// the status guard under the lock, apply the mutation, commit. A concurrent
// winner leaves later callers failing the guard with ErrInvalidTransition.
func (s *Store) transition(ctx context.Context, caller policy.Caller, id string, evt collection.Event,
	apply func(ctx context.Context, tx *sql.Tx, c *collection.Collection) error) (collection.Collection, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return collection.Collection{}, storeErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	c, err := lockCollection(ctx, tx, id)
	if err != nil {
		return collection.Collection{}, err
	}
	if c.OrganizationID != caller.OrganizationID {
		return collection.Collection{}, collection.ErrNotFound
	}
	if err := collection.Guard(c.Status, evt); err != nil {
		return collection.Collection{}, err
	}
	if err := apply(ctx, tx, &c); err != nil {
		if isCollectionErr(err) {
			return collection.Collection{}, err
		}
		return collection.Collection{}, storeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return collection.Collection{}, storeErr(err)
	}
	return c, nil
}

// publish hands the event to the sink after the transaction committed. Sink
// failures never affect the stored state.
func (s *Store) publish(eventType string, c collection.Collection) {
	if s.sink == nil {
		return
	}
	s.sink.Publish(collection.EventRecord{Type: eventType, Collection: c, At: time.Now().UTC()})
}

func lockCollection(ctx context.Context, tx *sql.Tx, id string) (collection.Collection, error) {
	row := tx.QueryRowContext(ctx, `select `+colColumns+` from collections where id=$1 for update`, id)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return collection.Collection{}, collection.ErrNotFound
	}
	if err != nil {
		return collection.Collection{}, storeErr(err)
	}
	return c, nil
}

func adjustBalance(ctx context.Context, tx *sql.Tx, clientID string, delta int64) error {
	res, err := tx.ExecContext(ctx, `
		update clients set balance = balance + $2, updated_at = now() where id=$1
	`, clientID, delta)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return collection.ErrClientNotFound
	}
	return nil
}

func scanCollection(row interface{ Scan(...any) error }) (collection.Collection, error) {
	var c collection.Collection
	var method, status string
	var verifiedAt sql.NullTime
	var rejection, dispute []byte
	if err := row.Scan(&c.ID, &c.OrganizationID, &c.CollectorID, &c.ClientID, &c.Amount, &c.Description,
		&method, &c.Latitude, &c.Longitude, &c.ReceiptNumber, &c.CollectedAt, &c.CreatedAt, &status,
		&verifiedAt, &rejection, &dispute); err != nil {
		return collection.Collection{}, err
	}
	c.PaymentMethod = collection.Method(method)
	c.Status = collection.Status(status)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		c.VerifiedAt = &t
	}
	if len(rejection) > 0 {
		c.Rejection = &collection.RejectionInfo{}
		if err := json.Unmarshal(rejection, c.Rejection); err != nil {
			return collection.Collection{}, err
		}
	}
	if len(dispute) > 0 {
		c.Dispute = &collection.DisputeInfo{}
		if err := json.Unmarshal(dispute, c.Dispute); err != nil {
			return collection.Collection{}, err
		}
	}
	return c, nil
}

func isCollectionErr(err error) bool {
	return errors.Is(err, collection.ErrClientNotFound) ||
		errors.Is(err, collection.ErrInvalidTransition) ||
		errors.Is(err, collection.ErrInvalidInput)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key")
}

func scopeOf(c collection.Collection) policy.Scope {
	return policy.Scope{
		OrganizationID: c.OrganizationID,
		CollectorID:    c.CollectorID,
		ClientID:       c.ClientID,
	}
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", collection.ErrStoreUnavailable, err)
}
