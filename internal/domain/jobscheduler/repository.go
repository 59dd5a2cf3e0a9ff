package jobscheduler

import "context"

// Repository records the dispatch audit trail. Writes are keyed by
// DispatchID so a completion or failure callback lands on the row its
// send created instead of opening a new one.
type Repository interface {
	UpsertEvent(ctx context.Context, event DispatchEvent) error
}
