package collection

import (
	"context"
	"time"

	"kolekta.org/internal/policy"
)

// Summary aggregates the caller's visible collections created inside
// [from, to). Only verified collections count toward VerifiedTotal and the
// success rate; an empty window yields a zero-valued Summary, never an error.
func (s *InMemory) Summary(ctx context.Context, caller policy.Caller, from, to time.Time) (Summary, error) {
	if caller.OrganizationID == "" {
		return Summary{}, policy.ErrUnauthorized
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}

	out := Summary{From: from, To: to}
	s.mu.Lock()
	for _, id := range s.order {
		c := s.items[id]
		if c.OrganizationID != caller.OrganizationID {
			continue
		}
		if !policy.CanRead(caller, scopeOf(c)) {
			continue
		}
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		tally(&out, c)
	}
	s.mu.Unlock()

	finishSummary(&out)
	return out, nil
}

func tally(out *Summary, c *Collection) {
	switch c.Status {
	case StatusVerified:
		out.VerifiedCount++
		out.VerifiedTotal += c.Amount
	case StatusPending:
		out.PendingCount++
	case StatusRejected:
		out.RejectedCount++
	case StatusDisputed:
		out.DisputedCount++
	case StatusReversed:
		out.ReversedCount++
	}
}

// finishSummary derives the success rate: verified over decided
// (verified + rejected). Zero when nothing was decided.
func finishSummary(out *Summary) {
	decided := out.VerifiedCount + out.RejectedCount
	if decided > 0 {
		out.SuccessRate = float64(out.VerifiedCount) / float64(decided)
	}
}
