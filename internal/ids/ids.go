package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ReceiptPrefix precedes every generated receipt number.
const ReceiptPrefix = "RCP-"

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewReceipt returns a candidate receipt number. The ULID suffix makes
// collisions vanishingly unlikely, but callers must still verify the result
// against the store's uniqueness constraint before persisting.
func NewReceipt() string {
	return ReceiptPrefix + New()
}
