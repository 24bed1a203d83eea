package collection

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"kolekta.org/internal/ids"
	"kolekta.org/internal/policy"
)

// Service defines the collection lifecycle operations. Every transition is
// atomic: the status write and the client balance mutation happen together or
// not at all. Guard violations come back as typed, recoverable errors; the
// engine never retries on its own.
type Service interface {
	Create(ctx context.Context, caller policy.Caller, in CreateInput) (Collection, error)
	Get(ctx context.Context, caller policy.Caller, id string) (Collection, error)
	ListByClient(ctx context.Context, caller policy.Caller, clientID string, limit int) ([]Collection, error)
	Verify(ctx context.Context, caller policy.Caller, id string) (Collection, error)
	Reject(ctx context.Context, caller policy.Caller, id, reason string) (Collection, error)
	Dispute(ctx context.Context, caller policy.Caller, id, reason, description string) (Collection, error)
	Resolve(ctx context.Context, caller policy.Caller, id string, outcome ResolutionOutcome, note string) (Collection, error)
	Reverse(ctx context.Context, caller policy.Caller, id string) (Collection, error)
	Summary(ctx context.Context, caller policy.Caller, from, to time.Time) (Summary, error)
}

// ClientRef is the slice of a client record the engine needs: tenancy and
// ownership, nothing else.
type ClientRef struct {
	ID             string
	OrganizationID string
	CollectorID    string
}

// Directory resolves clients and applies balance deltas for the in-memory
// engine. AdjustClientBalance is reserved for lifecycle transitions; no other
// code path may write a balance.
type Directory interface {
	ClientRef(ctx context.Context, clientID string) (ClientRef, error)
	AdjustClientBalance(ctx context.Context, clientID string, delta int64) error
}

// EventRecord is handed to the notification sink after a successful
// transition.
type EventRecord struct {
	Type       string     `json:"type"`
	Collection Collection `json:"collection"`
	At         time.Time  `json:"at"`
}

// Sink receives lifecycle events. Publish must not block; sink failures never
// roll back a transition.
type Sink interface {
	Publish(EventRecord)
}

// InMemory implements Service with in-process concurrency safety.
// The Postgres engine in internal/store/pg is the durable twin.
type InMemory struct {
	mu       sync.Mutex
	dir      Directory
	sink     Sink
	items    map[string]*Collection
	receipts map[string]struct{}
	order    []string // creation order, for listings
}

// NewInMemory creates a fresh engine. sink may be nil.
func NewInMemory(dir Directory, sink Sink) *InMemory {
	return &InMemory{
		dir:      dir,
		sink:     sink,
		items:    make(map[string]*Collection),
		receipts: make(map[string]struct{}),
	}
}

var _ Service = (*InMemory)(nil)

func (s *InMemory) Create(ctx context.Context, caller policy.Caller, in CreateInput) (Collection, error) {
	if !policy.CanCreateCollection(caller) {
		return Collection{}, policy.ErrUnauthorized
	}

	in.ClientID = strings.TrimSpace(in.ClientID)
	internal := in.ClientID == ""
	if internal {
		// Internal deposit/withdrawal records carry a signed amount and are
		// reserved for elevated roles.
		if !policy.CanVerify(caller) {
			return Collection{}, policy.ErrUnauthorized
		}
		if in.Amount == 0 {
			return Collection{}, ErrInvalidAmount
		}
	} else if in.Amount <= 0 {
		return Collection{}, ErrInvalidAmount
	}
	if !ValidMethod(in.PaymentMethod) {
		return Collection{}, ErrInvalidInput
	}

	collectorID := caller.ID
	if caller.Role != policy.RoleCollector && strings.TrimSpace(in.CollectorID) != "" {
		collectorID = strings.TrimSpace(in.CollectorID)
	}

	if !internal {
		ref, err := s.dir.ClientRef(ctx, in.ClientID)
		if err != nil {
			if errors.Is(err, ErrClientNotFound) {
				return Collection{}, ErrClientNotFound
			}
			return Collection{}, storeErr(err)
		}
		// Cross-tenant references are treated as absent, not as forbidden,
		// so tenants cannot probe each other's client ids.
		if ref.OrganizationID != caller.OrganizationID {
			return Collection{}, ErrClientNotFound
		}
	}

	collectedAt := in.CollectedAt
	if collectedAt.IsZero() {
		collectedAt = time.Now().UTC()
	}

	s.mu.Lock()
	c := &Collection{
		ID:             ids.New(),
		OrganizationID: caller.OrganizationID,
		CollectorID:    collectorID,
		ClientID:       in.ClientID,
		Amount:         in.Amount,
		Description:    strings.TrimSpace(in.Description),
		PaymentMethod:  in.PaymentMethod,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		ReceiptNumber:  s.uniqueReceiptLocked(),
		CollectedAt:    collectedAt,
		CreatedAt:      time.Now().UTC(),
		Status:         StatusPending,
	}
	s.items[c.ID] = c
	s.receipts[c.ReceiptNumber] = struct{}{}
	s.order = append(s.order, c.ID)
	out := *c
	s.mu.Unlock()

	s.publish("collection.created", out)
	return out, nil
}

func (s *InMemory) Get(ctx context.Context, caller policy.Caller, id string) (Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok || !policy.CanRead(caller, scopeOf(c)) {
		// Hidden and missing are indistinguishable to the caller.
		return Collection{}, ErrNotFound
	}
	return *c, nil
}

func (s *InMemory) ListByClient(ctx context.Context, caller policy.Caller, clientID string, limit int) ([]Collection, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Collection
	for _, id := range s.order {
		c := s.items[id]
		if c.ClientID != clientID {
			continue
		}
		if !policy.CanRead(caller, scopeOf(c)) {
			continue
		}
		res = append(res, *c)
		if len(res) >= limit {
			break
		}
	}
	return res, nil
}

func (s *InMemory) Verify(ctx context.Context, caller policy.Caller, id string) (Collection, error) {
	if !policy.CanVerify(caller) {
		return Collection{}, policy.ErrUnauthorized
	}
	s.mu.Lock()
	c, err := s.lookupLocked(caller, id)
	if err != nil {
		s.mu.Unlock()
		return Collection{}, err
	}
	if _, err := nextStatus(c.Status, EventVerify); err != nil {
		s.mu.Unlock()
		return Collection{}, err
	}
	// Balance first: if the directory write fails the status is untouched.
	if c.ClientID != "" {
		if err := s.dir.AdjustClientBalance(ctx, c.ClientID, c.Amount); err != nil {
			s.mu.Unlock()
			return Collection{}, storeErr(err)
		}
	}
	now := time.Now().UTC()
	c.Status = StatusVerified
	c.VerifiedAt = &now
	out := *c
	s.mu.Unlock()

	s.publish("collection.verified", out)
	return out, nil
}

func (s *InMemory) Reject(ctx context.Context, caller policy.Caller, id, reason string) (Collection, error) {
	if !policy.CanReject(caller) {
		return Collection{}, policy.ErrUnauthorized
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Collection{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.lookupLocked(caller, id)
	if err != nil {
		return Collection{}, err
	}
	if _, err := nextStatus(c.Status, EventReject); err != nil {
		return Collection{}, err
	}
	c.Status = StatusRejected
	c.Rejection = &RejectionInfo{Reason: reason, ActorID: caller.ID, At: time.Now().UTC()}
	return *c, nil
}

func (s *InMemory) Dispute(ctx context.Context, caller policy.Caller, id, reason, description string) (Collection, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Collection{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[id]
	if !ok || c.OrganizationID != caller.OrganizationID {
		return Collection{}, ErrNotFound
	}
	if !policy.CanDispute(caller, scopeOf(c)) {
		return Collection{}, policy.ErrUnauthorized
	}
	if c.Dispute.Pending() {
		return Collection{}, ErrDuplicateDispute
	}
	if _, err := nextStatus(c.Status, EventDispute); err != nil {
		return Collection{}, err
	}
	c.Status = StatusDisputed
	c.Dispute = &DisputeInfo{
		Reason:      reason,
		Description: strings.TrimSpace(description),
		ActorID:     caller.ID,
		RaisedAt:    time.Now().UTC(),
	}
	// The disputed amount stays counted in the balance until resolved.
	return *c, nil
}

func (s *InMemory) Resolve(ctx context.Context, caller policy.Caller, id string, outcome ResolutionOutcome, note string) (Collection, error) {
	if !policy.CanResolve(caller) {
		return Collection{}, policy.ErrUnauthorized
	}
	if outcome != ResolutionUphold && outcome != ResolutionReverse {
		return Collection{}, ErrInvalidInput
	}
	s.mu.Lock()
	c, err := s.lookupLocked(caller, id)
	if err != nil {
		s.mu.Unlock()
		return Collection{}, err
	}
	if _, err := nextStatus(c.Status, EventResolve); err != nil {
		s.mu.Unlock()
		return Collection{}, err
	}
	if outcome == ResolutionReverse && c.ClientID != "" {
		if err := s.dir.AdjustClientBalance(ctx, c.ClientID, -c.Amount); err != nil {
			s.mu.Unlock()
			return Collection{}, storeErr(err)
		}
	}
	now := time.Now().UTC()
	if outcome == ResolutionUphold {
		c.Status = StatusVerified
	} else {
		c.Status = StatusReversed
	}
	c.Dispute.Resolution = outcome
	c.Dispute.Note = strings.TrimSpace(note)
	c.Dispute.ResolvedBy = caller.ID
	c.Dispute.ResolvedAt = &now
	out := *c
	s.mu.Unlock()

	if outcome == ResolutionReverse {
		s.publish("collection.reversed", out)
	}
	return out, nil
}

func (s *InMemory) Reverse(ctx context.Context, caller policy.Caller, id string) (Collection, error) {
	if !policy.CanReverse(caller) {
		return Collection{}, policy.ErrUnauthorized
	}
	s.mu.Lock()
	c, err := s.lookupLocked(caller, id)
	if err != nil {
		s.mu.Unlock()
		return Collection{}, err
	}
	if _, err := nextStatus(c.Status, EventReverse); err != nil {
		s.mu.Unlock()
		return Collection{}, err
	}
	if c.ClientID != "" {
		if err := s.dir.AdjustClientBalance(ctx, c.ClientID, -c.Amount); err != nil {
			s.mu.Unlock()
			return Collection{}, storeErr(err)
		}
	}
	c.Status = StatusReversed
	out := *c
	s.mu.Unlock()

	s.publish("collection.reversed", out)
	return out, nil
}

// lookupLocked resolves a collection visible to the caller. Callers must hold s.mu.
func (s *InMemory) lookupLocked(caller policy.Caller, id string) (*Collection, error) {
	c, ok := s.items[id]
	if !ok || c.OrganizationID != caller.OrganizationID {
		return nil, ErrNotFound
	}
	return c, nil
}

// uniqueReceiptLocked generates a receipt number and re-checks it against the
// issued set. Callers must hold s.mu.
func (s *InMemory) uniqueReceiptLocked() string {
	for {
		rn := ids.NewReceipt()
		if _, taken := s.receipts[rn]; !taken {
			return rn
		}
	}
}

func (s *InMemory) publish(eventType string, c Collection) {
	if s.sink == nil {
		return
	}
	s.sink.Publish(EventRecord{Type: eventType, Collection: c, At: time.Now().UTC()})
}

func scopeOf(c *Collection) policy.Scope {
	return policy.Scope{
		OrganizationID: c.OrganizationID,
		CollectorID:    c.CollectorID,
		ClientID:       c.ClientID,
	}
}
