package collection_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"kolekta.org/internal/collection"
	"kolekta.org/internal/directory"
	"kolekta.org/internal/ids"
	"kolekta.org/internal/policy"
)

type sinkRecorder struct {
	mu     sync.Mutex
	events []collection.EventRecord
}

func (r *sinkRecorder) Publish(evt collection.EventRecord) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *sinkRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

const (
	orgID      = "org-1"
	otherOrgID = "org-2"
	clientID   = "client-1"
)

var (
	manager       = policy.Caller{ID: "mgr-1", Role: policy.RoleManager, OrganizationID: orgID}
	collector     = policy.Caller{ID: "col-1", Role: policy.RoleCollector, OrganizationID: orgID}
	client        = policy.Caller{ID: clientID, Role: policy.RoleClient, OrganizationID: orgID}
	otherManager  = policy.Caller{ID: "mgr-2", Role: policy.RoleManager, OrganizationID: otherOrgID}
	auditorCaller = policy.Caller{ID: "aud-1", Role: policy.RoleAuditor, OrganizationID: orgID}
)

func newTestEngine(t *testing.T) (*collection.InMemory, *directory.Memory, *sinkRecorder) {
	t.Helper()
	dir := directory.NewMemory()
	ctx := context.Background()
	for _, c := range []*directory.Client{
		{ID: clientID, OrganizationID: orgID, AssignedCollectorID: collector.ID, FullName: "Aminata Diallo", Status: directory.ClientStatusActive},
		{ID: "client-2", OrganizationID: otherOrgID, FullName: "Foreign Client", Status: directory.ClientStatusActive},
	} {
		if err := dir.CreateClient(ctx, c); err != nil {
			t.Fatalf("CreateClient(%s): %v", c.ID, err)
		}
	}
	sink := &sinkRecorder{}
	return collection.NewInMemory(dir, sink), dir, sink
}

func mustCreate(t *testing.T, svc *collection.InMemory, caller policy.Caller, amount int64) collection.Collection {
	t.Helper()
	c, err := svc.Create(context.Background(), caller, collection.CreateInput{
		ClientID:      clientID,
		Amount:        amount,
		PaymentMethod: collection.MethodCash,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return c
}

func clientBalance(t *testing.T, dir *directory.Memory) int64 {
	t.Helper()
	c, err := dir.GetClient(context.Background(), clientID)
	if err != nil {
		t.Fatalf("GetClient: %v", err)
	}
	return c.Balance
}

func TestCreatePending(t *testing.T) {
	svc, _, sink := newTestEngine(t)

	c := mustCreate(t, svc, collector, 5000)
	if c.Status != collection.StatusPending {
		t.Fatalf("status = %s, want pending", c.Status)
	}
	if c.CollectorID != collector.ID {
		t.Fatalf("collector = %s, want %s", c.CollectorID, collector.ID)
	}
	if c.OrganizationID != orgID {
		t.Fatalf("organization = %s, want %s", c.OrganizationID, orgID)
	}
	if !strings.HasPrefix(c.ReceiptNumber, ids.ReceiptPrefix) {
		t.Fatalf("receipt %q lacks prefix %q", c.ReceiptNumber, ids.ReceiptPrefix)
	}
	if got := sink.types(); len(got) != 1 || got[0] != "collection.created" {
		t.Fatalf("events = %v, want [collection.created]", got)
	}
}

func TestCreateRejectsBadAmount(t *testing.T) {
	svc, dir, _ := newTestEngine(t)
	ctx := context.Background()

	for _, amount := range []int64{0, -5000} {
		_, err := svc.Create(ctx, collector, collection.CreateInput{
			ClientID:      clientID,
			Amount:        amount,
			PaymentMethod: collection.MethodCash,
		})
		if !errors.Is(err, collection.ErrInvalidAmount) {
			t.Fatalf("Create(amount=%d) err = %v, want ErrInvalidAmount", amount, err)
		}
	}
	// Nothing persisted, nothing counted.
	if got := clientBalance(t, dir); got != 0 {
		t.Fatalf("balance = %d after failed creates, want 0", got)
	}
	list, err := svc.ListByClient(ctx, manager, clientID, 0)
	if err != nil {
		t.Fatalf("ListByClient: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("persisted %d collections after failed creates", len(list))
	}
}

func TestCreateRejectsUnknownMethod(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	_, err := svc.Create(context.Background(), collector, collection.CreateInput{
		ClientID:      clientID,
		Amount:        1000,
		PaymentMethod: collection.Method("barter"),
	})
	if !errors.Is(err, collection.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCreateCrossTenantClientHidden(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	_, err := svc.Create(context.Background(), collector, collection.CreateInput{
		ClientID:      "client-2", // belongs to org-2
		Amount:        1000,
		PaymentMethod: collection.MethodCash,
	})
	if !errors.Is(err, collection.ErrClientNotFound) {
		t.Fatalf("err = %v, want ErrClientNotFound", err)
	}
}

func TestCreateUnknownClient(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	_, err := svc.Create(context.Background(), collector, collection.CreateInput{
		ClientID:      "nope",
		Amount:        1000,
		PaymentMethod: collection.MethodCash,
	})
	if !errors.Is(err, collection.ErrClientNotFound) {
		t.Fatalf("err = %v, want ErrClientNotFound", err)
	}
}

func TestInternalRecords(t *testing.T) {
	svc, dir, _ := newTestEngine(t)
	ctx := context.Background()

	// Collectors may not record internal movements.
	_, err := svc.Create(ctx, collector, collection.CreateInput{
		Amount:        -2000,
		PaymentMethod: collection.MethodBankTransfer,
	})
	if !errors.Is(err, policy.ErrUnauthorized) {
		t.Fatalf("collector internal create err = %v, want ErrUnauthorized", err)
	}

	// Managers may, with a signed amount.
	c, err := svc.Create(ctx, manager, collection.CreateInput{
		Amount:        -2000,
		Description:   "cash withdrawal",
		PaymentMethod: collection.MethodBankTransfer,
	})
	if err != nil {
		t.Fatalf("manager internal create: %v", err)
	}
	if c.ClientID != "" {
		t.Fatalf("internal record carries client id %q", c.ClientID)
	}

	// Zero stays invalid even for internal records.
	if _, err := svc.Create(ctx, manager, collection.CreateInput{
		Amount:        0,
		PaymentMethod: collection.MethodBankTransfer,
	}); !errors.Is(err, collection.ErrInvalidAmount) {
		t.Fatalf("zero internal create err = %v, want ErrInvalidAmount", err)
	}

	// Verifying an internal record never touches any client balance.
	if _, err := svc.Verify(ctx, manager, c.ID); err != nil {
		t.Fatalf("Verify internal: %v", err)
	}
	if got := clientBalance(t, dir); got != 0 {
		t.Fatalf("balance = %d after internal verify, want 0", got)
	}
}

func TestVerifyCreditsBalance(t *testing.T) {
	svc, dir, sink := newTestEngine(t)
	ctx := context.Background()

	c := mustCreate(t, svc, collector, 5000)
	got, err := svc.Verify(ctx, manager, c.ID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.Status != collection.StatusVerified {
		t.Fatalf("status = %s, want verified", got.Status)
	}
	if got.VerifiedAt == nil {
		t.Fatal("VerifiedAt not set")
	}
	if bal := clientBalance(t, dir); bal != 5000 {
		t.Fatalf("balance = %d, want 5000", bal)
	}
	if got := sink.types(); got[len(got)-1] != "collection.verified" {
		t.Fatalf("last event = %s, want collection.verified", got[len(got)-1])
	}
}

func TestCollectorCannotVerify(t *testing.T) {
	svc, dir, _ := newTestEngine(t)
	c := mustCreate(t, svc, collector, 5000)

	_, err := svc.Verify(context.Background(), collector, c.ID)
	if !errors.Is(err, policy.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	got, err := svc.Get(context.Background(), manager, c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != collection.StatusPending {
		t.Fatalf("status = %s after refused verify, want pending", got.Status)
	}
	if bal := clientBalance(t, dir); bal != 0 {
		t.Fatalf("balance = %d after refused verify, want 0", bal)
	}
}

func TestConcurrentVerifySingleWinner(t *testing.T) {
	svc, dir, _ := newTestEngine(t)
	c := mustCreate(t, svc, collector, 7500)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Verify(context.Background(), manager, c.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, collection.ErrInvalidTransition):
		default:
			t.Fatalf("worker %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
	if bal := clientBalance(t, dir); bal != 7500 {
		t.Fatalf("balance = %d, want 7500 (credited once)", bal)
	}
}

func TestDoubleRejectFails(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	ctx := context.Background()
	c := mustCreate(t, svc, collector, 3000)

	if _, err := svc.Reject(ctx, manager, c.ID, "receipt missing"); err != nil {
		t.Fatalf("first Reject: %v", err)
	}
	_, err := svc.Reject(ctx, manager, c.ID, "again")
	if !errors.Is(err, collection.ErrInvalidTransition) {
		t.Fatalf("second Reject err = %v, want ErrInvalidTransition", err)
	}
	var te *collection.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("err %T does not carry transition detail", err)
	}
	if te.From != collection.StatusRejected || te.Event != collection.EventReject {
		t.Fatalf("transition detail = %+v", te)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	c := mustCreate(t, svc, collector, 3000)
	_, err := svc.Reject(context.Background(), manager, c.ID, "  ")
	if !errors.Is(err, collection.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestVerifyReverseRoundTrip(t *testing.T) {
	svc, dir, _ := newTestEngine(t)
	ctx := context.Background()
	c := mustCreate(t, svc, collector, 12000)

	if _, err := svc.Verify(ctx, manager, c.ID); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	got, err := svc.Reverse(ctx, manager, c.ID)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if got.Status != collection.StatusReversed {
		t.Fatalf("status = %s, want reversed", got.Status)
	}
	if bal := clientBalance(t, dir); bal != 0 {
		t.Fatalf("balance = %d after round trip, want 0", bal)
	}
}

// TestDisputeLifecycle drives the full contested path: a 5000 FCFA cash
// payment is verified, the client contests the amount, a reversal attempt is
// refused while the dispute is open, and the dispute resolves as a reversal.
func TestDisputeLifecycle(t *testing.T) {
	svc, dir, _ := newTestEngine(t)
	ctx := context.Background()
	c := mustCreate(t, svc, collector, 5000)

	if _, err := svc.Verify(ctx, manager, c.ID); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if bal := clientBalance(t, dir); bal != 5000 {
		t.Fatalf("balance = %d after verify, want 5000", bal)
	}

	got, err := svc.Dispute(ctx, client, c.ID, "wrong amount", "I paid 4000, not 5000")
	if err != nil {
		t.Fatalf("Dispute: %v", err)
	}
	if got.Status != collection.StatusDisputed {
		t.Fatalf("status = %s, want disputed", got.Status)
	}
	// The disputed amount stays counted until resolution.
	if bal := clientBalance(t, dir); bal != 5000 {
		t.Fatalf("balance = %d while disputed, want 5000", bal)
	}

	if _, err := svc.Reverse(ctx, manager, c.ID); !errors.Is(err, collection.ErrInvalidTransition) {
		t.Fatalf("Reverse while disputed err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Dispute(ctx, client, c.ID, "still wrong", ""); !errors.Is(err, collection.ErrDuplicateDispute) {
		t.Fatalf("second Dispute err = %v, want ErrDuplicateDispute", err)
	}

	got, err = svc.Resolve(ctx, manager, c.ID, collection.ResolutionReverse, "collector confirmed overcharge")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Status != collection.StatusReversed {
		t.Fatalf("status = %s, want reversed", got.Status)
	}
	if got.Dispute == nil || got.Dispute.ResolvedAt == nil || got.Dispute.ResolvedBy != manager.ID {
		t.Fatalf("dispute resolution not recorded: %+v", got.Dispute)
	}
	if bal := clientBalance(t, dir); bal != 0 {
		t.Fatalf("balance = %d after resolved reversal, want 0", bal)
	}
}

func TestResolveUpholdKeepsBalance(t *testing.T) {
	svc, dir, _ := newTestEngine(t)
	ctx := context.Background()
	c := mustCreate(t, svc, collector, 8000)

	if _, err := svc.Verify(ctx, manager, c.ID); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if _, err := svc.Dispute(ctx, client, c.ID, "wrong amount", ""); err != nil {
		t.Fatalf("Dispute: %v", err)
	}
	got, err := svc.Resolve(ctx, manager, c.ID, collection.ResolutionUphold, "receipt matches")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Status != collection.StatusVerified {
		t.Fatalf("status = %s, want verified", got.Status)
	}
	if bal := clientBalance(t, dir); bal != 8000 {
		t.Fatalf("balance = %d, want 8000", bal)
	}

	// A resolved dispute can be raised again.
	if _, err := svc.Dispute(ctx, client, c.ID, "second thoughts", ""); err != nil {
		t.Fatalf("re-dispute after uphold: %v", err)
	}
}

func TestResolveRejectsUnknownOutcome(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	ctx := context.Background()
	c := mustCreate(t, svc, collector, 1000)
	if _, err := svc.Verify(ctx, manager, c.ID); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if _, err := svc.Dispute(ctx, client, c.ID, "wrong amount", ""); err != nil {
		t.Fatalf("Dispute: %v", err)
	}
	_, err := svc.Resolve(ctx, manager, c.ID, collection.ResolutionOutcome("split"), "")
	if !errors.Is(err, collection.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestOnlyOwningClientDisputes(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	ctx := context.Background()
	c := mustCreate(t, svc, collector, 5000)
	if _, err := svc.Verify(ctx, manager, c.ID); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	stranger := policy.Caller{ID: "client-9", Role: policy.RoleClient, OrganizationID: orgID}
	if _, err := svc.Dispute(ctx, stranger, c.ID, "not mine", ""); !errors.Is(err, policy.ErrUnauthorized) {
		t.Fatalf("stranger dispute err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.Dispute(ctx, manager, c.ID, "managerial", ""); !errors.Is(err, policy.ErrUnauthorized) {
		t.Fatalf("manager dispute err = %v, want ErrUnauthorized", err)
	}
}

// TestTransitionTable exercises every lifecycle event against every reachable
// state through the public API. Anything outside the table must fail with
// ErrInvalidTransition and leave state untouched.
func TestTransitionTable(t *testing.T) {
	ctx := context.Background()

	reach := map[collection.Status]func(t *testing.T, svc *collection.InMemory) string{
		collection.StatusPending: func(t *testing.T, svc *collection.InMemory) string {
			return mustCreate(t, svc, collector, 1000).ID
		},
		collection.StatusVerified: func(t *testing.T, svc *collection.InMemory) string {
			id := mustCreate(t, svc, collector, 1000).ID
			if _, err := svc.Verify(ctx, manager, id); err != nil {
				t.Fatalf("Verify: %v", err)
			}
			return id
		},
		collection.StatusRejected: func(t *testing.T, svc *collection.InMemory) string {
			id := mustCreate(t, svc, collector, 1000).ID
			if _, err := svc.Reject(ctx, manager, id, "no receipt"); err != nil {
				t.Fatalf("Reject: %v", err)
			}
			return id
		},
		collection.StatusDisputed: func(t *testing.T, svc *collection.InMemory) string {
			id := mustCreate(t, svc, collector, 1000).ID
			if _, err := svc.Verify(ctx, manager, id); err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if _, err := svc.Dispute(ctx, client, id, "wrong amount", ""); err != nil {
				t.Fatalf("Dispute: %v", err)
			}
			return id
		},
		collection.StatusReversed: func(t *testing.T, svc *collection.InMemory) string {
			id := mustCreate(t, svc, collector, 1000).ID
			if _, err := svc.Verify(ctx, manager, id); err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if _, err := svc.Reverse(ctx, manager, id); err != nil {
				t.Fatalf("Reverse: %v", err)
			}
			return id
		},
	}

	allowed := map[collection.Status]map[collection.Event]bool{
		collection.StatusPending:  {collection.EventVerify: true, collection.EventReject: true},
		collection.StatusVerified: {collection.EventDispute: true, collection.EventReverse: true},
		collection.StatusDisputed: {collection.EventResolve: true},
		collection.StatusRejected: {},
		collection.StatusReversed: {},
	}

	events := []collection.Event{
		collection.EventVerify,
		collection.EventReject,
		collection.EventDispute,
		collection.EventResolve,
		collection.EventReverse,
	}

	for from, setup := range reach {
		for _, evt := range events {
			t.Run(string(from)+"_"+string(evt), func(t *testing.T) {
				svc, _, _ := newTestEngine(t)
				id := setup(t, svc)

				var err error
				switch evt {
				case collection.EventVerify:
					_, err = svc.Verify(ctx, manager, id)
				case collection.EventReject:
					_, err = svc.Reject(ctx, manager, id, "reason")
				case collection.EventDispute:
					_, err = svc.Dispute(ctx, client, id, "reason", "")
				case collection.EventResolve:
					_, err = svc.Resolve(ctx, manager, id, collection.ResolutionUphold, "")
				case collection.EventReverse:
					_, err = svc.Reverse(ctx, manager, id)
				}

				if allowed[from][evt] {
					if err != nil {
						t.Fatalf("%s on %s: %v, want success", evt, from, err)
					}
					return
				}
				if !errors.Is(err, collection.ErrInvalidTransition) &&
					!errors.Is(err, collection.ErrDuplicateDispute) {
					t.Fatalf("%s on %s err = %v, want invalid transition", evt, from, err)
				}
				got, gerr := svc.Get(ctx, manager, id)
				if gerr != nil {
					t.Fatalf("Get: %v", gerr)
				}
				if got.Status != from {
					t.Fatalf("status moved %s -> %s on refused %s", from, got.Status, evt)
				}
			})
		}
	}
}

// The balance invariant: at any point a client's balance equals the sum of
// amounts of their currently-verified (or disputed-after-verify) collections.
func TestBalanceMatchesVerifiedSum(t *testing.T) {
	svc, dir, _ := newTestEngine(t)
	ctx := context.Background()

	amounts := []int64{5000, 2500, 10000, 750}
	var colIDs []string
	for _, a := range amounts {
		colIDs = append(colIDs, mustCreate(t, svc, collector, a).ID)
	}
	// Verify all but the last, reject the last.
	for _, id := range colIDs[:3] {
		if _, err := svc.Verify(ctx, manager, id); err != nil {
			t.Fatalf("Verify: %v", err)
		}
	}
	if _, err := svc.Reject(ctx, manager, colIDs[3], "duplicate entry"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if bal := clientBalance(t, dir); bal != 17500 {
		t.Fatalf("balance = %d, want 17500", bal)
	}

	// Reverse one.
	if _, err := svc.Reverse(ctx, manager, colIDs[1]); err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if bal := clientBalance(t, dir); bal != 15000 {
		t.Fatalf("balance = %d after reverse, want 15000", bal)
	}
}

func TestGetScoping(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	ctx := context.Background()
	c := mustCreate(t, svc, collector, 5000)

	// Another organization's manager sees nothing, indistinguishable from
	// a missing id.
	if _, err := svc.Get(ctx, otherManager, c.ID); !errors.Is(err, collection.ErrNotFound) {
		t.Fatalf("cross-org Get err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, manager, "missing"); !errors.Is(err, collection.ErrNotFound) {
		t.Fatalf("missing Get err = %v, want ErrNotFound", err)
	}

	// Owning collector, owning client and same-org auditor all see it.
	for _, caller := range []policy.Caller{collector, client, auditorCaller, manager} {
		if _, err := svc.Get(ctx, caller, c.ID); err != nil {
			t.Fatalf("Get as %s: %v", caller.Role, err)
		}
	}

	// An unrelated collector in the same organization does not.
	otherCollector := policy.Caller{ID: "col-9", Role: policy.RoleCollector, OrganizationID: orgID}
	if _, err := svc.Get(ctx, otherCollector, c.ID); !errors.Is(err, collection.ErrNotFound) {
		t.Fatalf("other collector Get err = %v, want ErrNotFound", err)
	}
}

func TestListByClientScoping(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		mustCreate(t, svc, collector, 1000)
	}

	list, err := svc.ListByClient(ctx, client, clientID, 0)
	if err != nil {
		t.Fatalf("ListByClient: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("client sees %d collections, want 3", len(list))
	}

	list, err = svc.ListByClient(ctx, otherManager, clientID, 0)
	if err != nil {
		t.Fatalf("ListByClient cross-org: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("cross-org manager sees %d collections, want 0", len(list))
	}

	list, err = svc.ListByClient(ctx, manager, clientID, 2)
	if err != nil {
		t.Fatalf("ListByClient limited: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("limited list returned %d, want 2", len(list))
	}
}

func TestReceiptNumbersUnique(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		c := mustCreate(t, svc, collector, 1000)
		if _, dup := seen[c.ReceiptNumber]; dup {
			t.Fatalf("duplicate receipt number %s", c.ReceiptNumber)
		}
		seen[c.ReceiptNumber] = struct{}{}
	}
}

func TestClientCannotCreate(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	_, err := svc.Create(context.Background(), client, collection.CreateInput{
		ClientID:      clientID,
		Amount:        1000,
		PaymentMethod: collection.MethodCash,
	})
	if !errors.Is(err, policy.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestElevatedCreateOnBehalf(t *testing.T) {
	svc, _, _ := newTestEngine(t)
	c, err := svc.Create(context.Background(), manager, collection.CreateInput{
		ClientID:      clientID,
		CollectorID:   collector.ID,
		Amount:        2000,
		PaymentMethod: collection.MethodMobileMoney,
		CollectedAt:   time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.CollectorID != collector.ID {
		t.Fatalf("collector = %s, want %s", c.CollectorID, collector.ID)
	}
	if !c.CollectedAt.Equal(time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("CollectedAt = %v, want supplied timestamp", c.CollectedAt)
	}
}
