package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/riskibarqy/fantasy-contest/internal/domain/contest"
	"github.com/riskibarqy/fantasy-contest/internal/domain/jobscheduler"
	"github.com/riskibarqy/fantasy-contest/internal/domain/match"
)

type JobQueue interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error
}

type noopJobQueue struct{}

func (noopJobQueue) Enqueue(_ context.Context, _ string, _ any, _ time.Duration, _ string) error {
	return nil
}

func NewNoopJobQueue() JobQueue {
	return noopJobQueue{}
}

// RetryProcessor drains ledger transactions whose retry backoff has
// elapsed. Satisfied by *LedgerService.
type RetryProcessor interface {
	ProcessDueRetries(ctx context.Context, limit int) (RetrySweepResult, error)
}

type JobOrchestratorConfig struct {
	SweepInterval  time.Duration // planner cadence when nothing is close to kickoff
	LiveInterval   time.Duration // planner cadence while matches are in play
	PreKickoffLead time.Duration // wake the planner this early before the next kickoff
	RetryInterval  time.Duration // ledger retry sweep cadence
	RetryBatch     int           // transactions per retry sweep
}

type JobSweepInput struct {
	MatchID string
	Force   bool
}

type JobSweepResult struct {
	Mode             string   `json:"mode"`
	MatchCount       int      `json:"match_count"`
	LiveMatchCount   int      `json:"live_match_count"`
	QueuedCount      int      `json:"queued_count"`
	QueuedOperations []string `json:"queued_operations"`
}

// JobOrchestratorService plans the scheduler traffic that drives match
// lifecycles: a start-match dispatch at every kickoff, settle and
// cancel mop-ups for matches that ended with contests still open, and
// the self-perpetuating ledger retry sweep. Every dispatch carries a
// deduplication id so an overlapping planner run cannot double-queue
// the same work.
type JobOrchestratorService struct {
	matches      match.Repository
	contests     contest.Repository
	ledger       RetryProcessor
	queue        JobQueue
	dispatchRepo jobscheduler.Repository
	cfg          JobOrchestratorConfig
	logger       *slog.Logger
	now          func() time.Time
}

var dedupUnsafeCharRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func NewJobOrchestratorService(
	matches match.Repository,
	contests contest.Repository,
	ledger RetryProcessor,
	queue JobQueue,
	dispatchRepo jobscheduler.Repository,
	cfg JobOrchestratorConfig,
	logger *slog.Logger,
) *JobOrchestratorService {
	if queue == nil {
		queue = NewNoopJobQueue()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 15 * time.Minute
	}
	if cfg.LiveInterval <= 0 {
		cfg.LiveInterval = 5 * time.Minute
	}
	if cfg.PreKickoffLead <= 0 {
		cfg.PreKickoffLead = 15 * time.Minute
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Minute
	}
	if cfg.RetryBatch <= 0 {
		cfg.RetryBatch = 50
	}

	return &JobOrchestratorService{
		matches:      matches,
		contests:     contests,
		ledger:       ledger,
		queue:        queue,
		dispatchRepo: dispatchRepo,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// RunDispatchSweep plans dispatches for the selected matches and
// queues the next planner run.
func (s *JobOrchestratorService) RunDispatchSweep(ctx context.Context, input JobSweepInput) (JobSweepResult, error) {
	return s.run(ctx, "dispatch", input, true)
}

// RunDispatchSweepDirect plans dispatches without rescheduling itself.
// Used for manual, operator-triggered runs.
func (s *JobOrchestratorService) RunDispatchSweepDirect(ctx context.Context, input JobSweepInput) (JobSweepResult, error) {
	return s.run(ctx, "dispatch-direct", input, false)
}

// RunRetrySweep processes due ledger retries and queues the next sweep.
func (s *JobOrchestratorService) RunRetrySweep(ctx context.Context, limit int) (RetrySweepResult, error) {
	if limit <= 0 {
		limit = s.cfg.RetryBatch
	}
	result, err := s.ledger.ProcessDueRetries(ctx, limit)
	if err != nil {
		return RetrySweepResult{}, fmt.Errorf("run retry sweep: %w", err)
	}

	now := s.now().UTC()
	if err := s.enqueue(ctx, jobDispatch{
		name:    "process-retries",
		path:    "/v1/internal/jobs/process-retries",
		payload: map[string]any{"limit": limit},
		delay:   s.cfg.RetryInterval,
		bucket:  s.cfg.RetryInterval,
	}, now); err != nil {
		return result, err
	}
	return result, nil
}

// Bootstrap seeds both dispatch chains. Invoked once at startup or by
// an operator after a queue outage.
func (s *JobOrchestratorService) Bootstrap(ctx context.Context, input JobSweepInput) (JobSweepResult, error) {
	matches, err := s.pickMatches(ctx, input.MatchID)
	if err != nil {
		return JobSweepResult{}, err
	}

	now := s.now().UTC()
	result := JobSweepResult{
		Mode:             "bootstrap",
		MatchCount:       len(matches),
		QueuedOperations: make([]string, 0, 2),
	}

	if err := s.enqueue(ctx, jobDispatch{
		name:    "dispatch-sweep",
		path:    "/v1/internal/jobs/dispatch-sweep",
		matchID: strings.TrimSpace(input.MatchID),
		payload: map[string]any{"match_id": strings.TrimSpace(input.MatchID)},
	}, now); err != nil {
		return JobSweepResult{}, err
	}
	result.QueuedCount++
	result.QueuedOperations = append(result.QueuedOperations, "dispatch-sweep")

	if err := s.enqueue(ctx, jobDispatch{
		name:    "process-retries",
		path:    "/v1/internal/jobs/process-retries",
		payload: map[string]any{"limit": s.cfg.RetryBatch},
	}, now); err != nil {
		return JobSweepResult{}, err
	}
	result.QueuedCount++
	result.QueuedOperations = append(result.QueuedOperations, "process-retries")

	return result, nil
}

func (s *JobOrchestratorService) run(ctx context.Context, mode string, input JobSweepInput, enqueueNext bool) (JobSweepResult, error) {
	matches, err := s.pickMatches(ctx, input.MatchID)
	if err != nil {
		return JobSweepResult{}, err
	}

	now := s.now().UTC()
	result := JobSweepResult{
		Mode:             mode,
		MatchCount:       len(matches),
		QueuedOperations: make([]string, 0, len(matches)+1),
	}

	hasLive := false
	var nearestKickoff *time.Time

	for _, m := range matches {
		switch {
		case match.IsCancelledLikeStatus(m.Status):
			// A dead match with contests still open means refunds
			// are overdue.
			open, err := s.openContests(ctx, m.ID)
			if err != nil {
				return JobSweepResult{}, err
			}
			if len(open) == 0 {
				continue
			}
			if err := s.enqueue(ctx, jobDispatch{
				name:    "cancel-match",
				path:    "/v1/internal/jobs/cancel-match",
				matchID: m.ID,
				payload: map[string]any{"match_id": m.ID},
				bucket:  s.cfg.LiveInterval,
			}, now); err != nil {
				return JobSweepResult{}, err
			}
			result.QueuedCount++
			result.QueuedOperations = append(result.QueuedOperations, "cancel-match:"+m.ID)

		case match.IsCompletedStatus(m.Status):
			// Completion normally settles in-band. Anything still
			// open here is a crashed or failed settlement.
			open, err := s.openContests(ctx, m.ID)
			if err != nil {
				return JobSweepResult{}, err
			}
			for _, c := range open {
				if err := s.enqueue(ctx, jobDispatch{
					name:      "settle",
					path:      "/v1/internal/jobs/settle",
					matchID:   m.ID,
					contestID: c.ID,
					payload:   map[string]any{"contest_id": c.ID},
					bucket:    s.cfg.LiveInterval,
				}, now); err != nil {
					return JobSweepResult{}, err
				}
				result.QueuedCount++
				result.QueuedOperations = append(result.QueuedOperations, "settle:"+c.ID)
			}

		case match.IsLiveStatus(m.Status):
			// Performance and completion arrive from the feed, the
			// planner has nothing to queue mid-game.
			hasLive = true
			result.LiveMatchCount++

		default:
			if m.StartsAt.IsZero() {
				continue
			}
			delay := m.StartsAt.Sub(now)
			if input.Force || delay < 0 {
				delay = 0
			}
			if err := s.enqueue(ctx, jobDispatch{
				name:    "start-match",
				path:    "/v1/internal/jobs/start-match",
				matchID: m.ID,
				payload: map[string]any{"match_id": m.ID},
				delay:   delay,
			}, now); err != nil {
				return JobSweepResult{}, err
			}
			result.QueuedCount++
			result.QueuedOperations = append(result.QueuedOperations, "start-match:"+m.ID)

			if m.StartsAt.After(now) {
				if nearestKickoff == nil || m.StartsAt.Before(*nearestKickoff) {
					next := m.StartsAt
					nearestKickoff = &next
				}
			} else {
				// Kickoff passed but the status never moved, keep
				// sweeping on the live cadence until it does.
				hasLive = true
			}
		}
	}

	if enqueueNext {
		if err := s.enqueue(ctx, jobDispatch{
			name:    "dispatch-sweep",
			path:    "/v1/internal/jobs/dispatch-sweep",
			matchID: strings.TrimSpace(input.MatchID),
			payload: map[string]any{"match_id": strings.TrimSpace(input.MatchID)},
			delay:   s.nextSweepDelay(now, hasLive, nearestKickoff),
			bucket:  s.cfg.LiveInterval,
		}, now); err != nil {
			return JobSweepResult{}, err
		}
		result.QueuedCount++
		result.QueuedOperations = append(result.QueuedOperations, "dispatch-sweep")
	}

	return result, nil
}

func (s *JobOrchestratorService) pickMatches(ctx context.Context, matchID string) ([]match.Match, error) {
	matchID = strings.TrimSpace(matchID)
	if matchID == "" {
		items, err := s.matches.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list matches for jobs: %w", err)
		}
		return items, nil
	}

	m, exists, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("get match for jobs: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: match=%s", ErrNotFound, matchID)
	}

	return []match.Match{m}, nil
}

func (s *JobOrchestratorService) openContests(ctx context.Context, matchID string) ([]contest.Contest, error) {
	items, err := s.contests.ListContests(ctx, contest.Filter{
		MatchID:  matchID,
		Statuses: []contest.Status{contest.StatusUpcoming, contest.StatusLive},
	})
	if err != nil {
		return nil, fmt.Errorf("list open contests match=%s: %w", matchID, err)
	}
	return items, nil
}

// jobDispatch is one planned queue submission. The dedup bucket keeps
// repeat planner runs inside the same window collapsing onto a single
// queue entry.
type jobDispatch struct {
	name      string
	path      string
	matchID   string
	contestID string
	payload   map[string]any
	delay     time.Duration
	bucket    time.Duration
}

func (s *JobOrchestratorService) enqueue(ctx context.Context, d jobDispatch, now time.Time) error {
	ref := d.matchID
	if ref == "" {
		ref = d.contestID
	}
	if ref == "" {
		ref = "all"
	}
	dedupID := dedupKey(d.name, ref, now.Add(d.delay), d.bucket)

	payload := d.payload
	if payload == nil {
		payload = map[string]any{}
	}
	payload["dispatch_id"] = dedupID

	event := jobscheduler.DispatchEvent{
		DispatchID: dedupID,
		JobName:    d.name,
		JobPath:    d.path,
		MatchID:    d.matchID,
		ContestID:  d.contestID,
		Payload:    payload,
		OccurredAt: now.UTC(),
	}
	if err := s.queue.Enqueue(ctx, d.path, payload, d.delay, dedupID); err != nil {
		event.Status = jobscheduler.StatusFailed
		event.ErrorMessage = err.Error()
		s.recordDispatchEvent(ctx, event)
		return fmt.Errorf("enqueue %s: %w", d.name, err)
	}

	event.Status = jobscheduler.StatusSent
	s.recordDispatchEvent(ctx, event)
	return nil
}

func dedupKey(prefix, ref string, at time.Time, bucket time.Duration) string {
	if bucket <= 0 {
		bucket = time.Minute
	}
	slot := at.UTC().Truncate(bucket).Format("20060102T150405Z")
	prefix = sanitizeDedupSegment(prefix)
	ref = sanitizeDedupSegment(ref)
	return prefix + "-" + ref + "-" + slot
}

func sanitizeDedupSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return dedupUnsafeCharRegex.ReplaceAllString(value, "-")
}

func (s *JobOrchestratorService) recordDispatchEvent(ctx context.Context, event jobscheduler.DispatchEvent) {
	if s.dispatchRepo == nil || strings.TrimSpace(event.DispatchID) == "" {
		return
	}
	traceID, spanID := traceMetaFromContext(ctx)
	event.TraceID = traceID
	event.SpanID = spanID
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	if err := s.dispatchRepo.UpsertEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "record job dispatch event failed",
			"dispatch_id", event.DispatchID,
			"status", event.Status,
			"error", err,
		)
	}
}

func traceMetaFromContext(ctx context.Context) (string, string) {
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if !spanContext.IsValid() {
		return "", ""
	}
	return spanContext.TraceID().String(), spanContext.SpanID().String()
}

func (s *JobOrchestratorService) nextSweepDelay(now time.Time, hasLive bool, nearestKickoff *time.Time) time.Duration {
	minDelay := time.Minute
	if hasLive {
		return maxDuration(s.cfg.LiveInterval, minDelay)
	}

	if nearestKickoff != nil {
		wakeAt := nearestKickoff.Add(-s.cfg.PreKickoffLead)
		delay := wakeAt.Sub(now)
		if delay <= 0 {
			return maxDuration(s.cfg.LiveInterval, minDelay)
		}
		return maxDuration(delay, minDelay)
	}

	// Nothing on the calendar, no point polling aggressively.
	return maxDuration(s.cfg.SweepInterval, 6*time.Hour)
}

func maxDuration(left, right time.Duration) time.Duration {
	if left > right {
		return left
	}
	return right
}
