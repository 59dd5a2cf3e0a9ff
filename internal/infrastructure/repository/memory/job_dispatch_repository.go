package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/fantasy-contest/internal/domain/jobscheduler"
)

// JobDispatchRepository keeps the dispatch audit trail keyed by
// dispatch id, mirroring the upsert semantics of the SQL version.
type JobDispatchRepository struct {
	mu     sync.RWMutex
	events map[string]jobscheduler.DispatchEvent
}

func NewJobDispatchRepository() *JobDispatchRepository {
	return &JobDispatchRepository{
		events: make(map[string]jobscheduler.DispatchEvent),
	}
}

func (r *JobDispatchRepository) UpsertEvent(_ context.Context, event jobscheduler.DispatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.DispatchID] = event
	return nil
}

// Events returns a snapshot of every recorded dispatch.
func (r *JobDispatchRepository) Events() []jobscheduler.DispatchEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]jobscheduler.DispatchEvent, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event)
	}
	return out
}
