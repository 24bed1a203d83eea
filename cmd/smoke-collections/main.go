package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"kolekta.org/internal/collection"
	"kolekta.org/internal/directory"
	"kolekta.org/internal/policy"
)

// Drives the full collection lifecycle against the in-memory engine and
// checks that the client balance ends where it started.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mem := directory.NewMemory()
	engine := collection.NewInMemory(mem, nil)

	client := &directory.Client{
		ID:             "smoke-client",
		OrganizationID: "smoke-org",
		FullName:       "Smoke Client",
		Status:         directory.ClientStatusActive,
	}
	if err := mem.CreateClient(ctx, client); err != nil {
		log.Fatalf("create client: %v", err)
	}

	collector := policy.Caller{ID: "smoke-collector", Role: policy.RoleCollector, OrganizationID: "smoke-org"}
	manager := policy.Caller{ID: "smoke-manager", Role: policy.RoleManager, OrganizationID: "smoke-org"}
	payer := policy.Caller{ID: "smoke-client", Role: policy.RoleClient, OrganizationID: "smoke-org"}

	col, err := engine.Create(ctx, collector, collection.CreateInput{
		ClientID:      client.ID,
		Amount:        5_000,
		PaymentMethod: collection.MethodCash,
	})
	if err != nil {
		log.Fatalf("create collection: %v", err)
	}

	if _, err := engine.Verify(ctx, manager, col.ID); err != nil {
		log.Fatalf("verify: %v", err)
	}
	got, err := mem.GetClient(ctx, client.ID)
	if err != nil {
		log.Fatalf("get client: %v", err)
	}
	if got.Balance != 5_000 {
		log.Fatalf("balance after verify: %d, want 5000", got.Balance)
	}

	if _, err := engine.Dispute(ctx, payer, col.ID, "wrong amount", "smoke"); err != nil {
		log.Fatalf("dispute: %v", err)
	}
	if _, err := engine.Reverse(ctx, manager, col.ID); err == nil {
		log.Fatal("reverse succeeded on a disputed collection")
	}
	if _, err := engine.Resolve(ctx, manager, col.ID, collection.ResolutionReverse, "smoke"); err != nil {
		log.Fatalf("resolve: %v", err)
	}

	got, err = mem.GetClient(ctx, client.ID)
	if err != nil {
		log.Fatalf("get client: %v", err)
	}
	if got.Balance != 0 {
		log.Fatalf("balance after reversal: %d, want 0", got.Balance)
	}

	fmt.Printf("✅ collections smoke test passed: receipt=%s\n", col.ReceiptNumber)
}
