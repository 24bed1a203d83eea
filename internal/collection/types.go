package collection

import (
	"errors"
	"fmt"
	"time"
)

// Amounts are FCFA integer units. No floats.

// Status is the lifecycle state of a collection.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
	StatusDisputed Status = "disputed"
	StatusReversed Status = "reversed"
)

// Event names a lifecycle transition.
type Event string

const (
	EventVerify  Event = "verify"
	EventReject  Event = "reject"
	EventDispute Event = "dispute"
	EventResolve Event = "resolve"
	EventReverse Event = "reverse"
)

// Method is the payment channel used by the client.
type Method string

const (
	MethodCash         Method = "cash"
	MethodMobileMoney  Method = "mobile_money"
	MethodBankTransfer Method = "bank_transfer"
	MethodCard         Method = "card"
)

// ValidMethod reports whether m is a known payment method.
func ValidMethod(m Method) bool {
	switch m {
	case MethodCash, MethodMobileMoney, MethodBankTransfer, MethodCard:
		return true
	}
	return false
}

// ResolutionOutcome decides how a dispute ends.
type ResolutionOutcome string

const (
	// ResolutionUphold confirms the collection: status returns to verified,
	// the balance stays counted.
	ResolutionUphold ResolutionOutcome = "uphold"
	// ResolutionReverse accepts the dispute: status becomes reversed and the
	// client balance is decremented by the collection amount.
	ResolutionReverse ResolutionOutcome = "reverse"
)

// RejectionInfo is recorded when a pending collection is rejected.
type RejectionInfo struct {
	Reason  string    `json:"reason"`
	ActorID string    `json:"actor_id"`
	At      time.Time `json:"at"`
}

// DisputeInfo is recorded when the owning client contests a verified
// collection. Resolution fields stay zero until the dispute is resolved.
type DisputeInfo struct {
	Reason      string            `json:"reason"`
	Description string            `json:"description,omitempty"`
	ActorID     string            `json:"actor_id"`
	RaisedAt    time.Time         `json:"raised_at"`
	Resolution  ResolutionOutcome `json:"resolution,omitempty"`
	Note        string            `json:"note,omitempty"`
	ResolvedBy  string            `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time        `json:"resolved_at,omitempty"`
}

// Pending reports whether the dispute awaits resolution.
func (d *DisputeInfo) Pending() bool {
	return d != nil && d.ResolvedAt == nil
}

// Collection is a recorded payment event. An empty ClientID marks an internal
// deposit/withdrawal record rather than a client payment; those may carry a
// signed amount and never touch a client balance.
type Collection struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	CollectorID    string         `json:"collector_id"`
	ClientID       string         `json:"client_id,omitempty"`
	Amount         int64          `json:"amount"`
	Description    string         `json:"description,omitempty"`
	PaymentMethod  Method         `json:"payment_method"`
	Latitude       *float64       `json:"latitude,omitempty"`
	Longitude      *float64       `json:"longitude,omitempty"`
	ReceiptNumber  string         `json:"receipt_number"`
	CollectedAt    time.Time      `json:"collected_at"`
	CreatedAt      time.Time      `json:"created_at"`
	Status         Status         `json:"status"`
	VerifiedAt     *time.Time     `json:"verified_at,omitempty"`
	Rejection      *RejectionInfo `json:"rejection,omitempty"`
	Dispute        *DisputeInfo   `json:"dispute,omitempty"`
}

// CreateInput carries caller-supplied fields for a new collection.
// CollectorID is ignored for collector callers (always themselves) and
// optional for elevated callers recording on a collector's behalf.
type CreateInput struct {
	ClientID      string
	CollectorID   string
	Amount        int64
	Description   string
	PaymentMethod Method
	Latitude      *float64
	Longitude     *float64
	CollectedAt   time.Time
}

// Summary aggregates verified activity over a time window. All fields are
// zero-valued for an empty window; an empty result set is never an error.
type Summary struct {
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	VerifiedCount  int64     `json:"verified_count"`
	VerifiedTotal  int64     `json:"verified_total"`
	PendingCount   int64     `json:"pending_count"`
	RejectedCount  int64     `json:"rejected_count"`
	DisputedCount  int64     `json:"disputed_count"`
	ReversedCount  int64     `json:"reversed_count"`
	SuccessRate    float64   `json:"success_rate"`
}

var (
	ErrNotFound         = errors.New("collection not found")
	ErrClientNotFound   = errors.New("client not found")
	ErrInvalidAmount    = errors.New("invalid amount (must be > 0)")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateDispute = errors.New("dispute already pending on this collection")
	// ErrInvalidTransition matches every *TransitionError via errors.Is.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrStoreUnavailable wraps persistence failures; it is the only error
	// class a caller may retry without changing input.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// TransitionError reports a lifecycle event applied in the wrong state.
type TransitionError struct {
	From  Status
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: cannot %s collection in status %q", e.Event, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// transitions is the lifecycle table. Resolve appears with its default
// target (verified); the reverse outcome is handled by the engine.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventVerify: StatusVerified,
		EventReject: StatusRejected,
	},
	StatusVerified: {
		EventDispute: StatusDisputed,
		EventReverse: StatusReversed,
	},
	StatusDisputed: {
		EventResolve: StatusVerified,
	},
}

// nextStatus returns the target state for event in state from, or a
// *TransitionError when the table does not allow it.
func nextStatus(from Status, event Event) (Status, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return "", &TransitionError{From: from, Event: event}
}

// Guard checks the lifecycle table without applying anything. Storage engines
// call it under their own locks so both engines share one table.
func Guard(from Status, event Event) error {
	_, err := nextStatus(from, event)
	return err
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
