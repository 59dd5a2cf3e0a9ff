package contest

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

var (
	ErrContestFull        = errors.New("contest is full")
	ErrRegistrationClosed = errors.New("contest registration is closed")
	ErrDuplicateEntry     = errors.New("user already entered this contest")
	ErrInvalidStatus      = errors.New("operation not allowed for current contest status")
	ErrDataIntegrity      = errors.New("contest spot counter does not match participants")
)

type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusLive      Status = "live"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// EntryType governs whether one user may hold more than one entry.
// Either way an entry is unique per (user, team) pair.
type EntryType string

const (
	EntrySingle   EntryType = "single"
	EntryMultiple EntryType = "multiple"
)

// PrizeSlot awards one rank. Slots are ordered and ranks are contiguous
// from 1.
type PrizeSlot struct {
	Rank       int
	Prize      decimal.Decimal
	Percentage float64
}

// Stats is the aggregate recomputed on every leaderboard pass.
type Stats struct {
	AveragePoints float64
	HighestPoints float64
	LowestPoints  float64
}

// Contest is a capacity-bounded pool of paid entries over one match.
// Participants are stored separately and referenced by contest id; the
// FilledSpots counter must equal the participant count at all times.
type Contest struct {
	ID                   string
	Name                 string
	Description          string
	MatchID              string
	Sport                sport.Sport
	Status               Status
	EntryType            EntryType
	EntryFee             decimal.Decimal
	PrizePool            decimal.Decimal
	TotalSpots           int
	FilledSpots          int
	PrizeDistribution    []PrizeSlot
	Rules                sport.Rules
	RegistrationDeadline time.Time
	Stats                Stats
	CreatedBy            string
	SettledAt            *time.Time
	CancelledAt          *time.Time
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (c Contest) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("contest id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("contest name is required")
	}
	if c.MatchID == "" {
		return fmt.Errorf("contest match id is required")
	}
	if !c.Sport.Valid() {
		return fmt.Errorf("%w: %s", sport.ErrUnknownSport, c.Sport)
	}
	if c.EntryType != EntrySingle && c.EntryType != EntryMultiple {
		return fmt.Errorf("unknown entry type %s", c.EntryType)
	}
	if c.EntryFee.IsNegative() {
		return fmt.Errorf("contest entry fee must not be negative")
	}
	if c.PrizePool.IsNegative() {
		return fmt.Errorf("contest prize pool must not be negative")
	}
	if c.TotalSpots < 1 {
		return fmt.Errorf("contest must have at least one spot")
	}
	if c.FilledSpots < 0 || c.FilledSpots > c.TotalSpots {
		return fmt.Errorf("filled spots %d out of range for %d total", c.FilledSpots, c.TotalSpots)
	}
	if c.RegistrationDeadline.IsZero() {
		return fmt.Errorf("contest registration deadline is required")
	}
	if err := ValidateDistribution(c.PrizeDistribution, c.PrizePool); err != nil {
		return err
	}

	return c.Rules.Validate()
}

// ValidateDistribution checks that prize slots award unique contiguous
// ranks starting at 1 and never promise more than the pool holds.
func ValidateDistribution(slots []PrizeSlot, prizePool decimal.Decimal) error {
	total := decimal.Zero
	for i, slot := range slots {
		if slot.Rank != i+1 {
			return fmt.Errorf("prize ranks must be contiguous from 1, slot %d has rank %d", i, slot.Rank)
		}
		if slot.Prize.IsNegative() {
			return fmt.Errorf("prize for rank %d must not be negative", slot.Rank)
		}
		total = total.Add(slot.Prize)
	}
	if total.GreaterThan(prizePool) {
		return fmt.Errorf("prize distribution %s exceeds prize pool %s", total, prizePool)
	}

	return nil
}

func (c Contest) AvailableSpots() int {
	return c.TotalSpots - c.FilledSpots
}

func (c Contest) RegistrationOpen(now time.Time) bool {
	return c.Status == StatusUpcoming && now.Before(c.RegistrationDeadline)
}

// CheckIntegrity compares the persisted spot counter against the actual
// participant count. A mismatch is a data fault to surface, never to
// silently correct.
func (c Contest) CheckIntegrity(participantCount int) error {
	if c.FilledSpots != participantCount {
		return fmt.Errorf("%w: %d spots filled but %d participants", ErrDataIntegrity, c.FilledSpots, participantCount)
	}
	return nil
}

// WithAdmission claims one spot. Capacity is reported before the
// deadline so a full contest reads as full, not merely closed.
func (c Contest) WithAdmission(now time.Time) (Contest, error) {
	if c.FilledSpots >= c.TotalSpots {
		return Contest{}, fmt.Errorf("%w: %d of %d spots taken", ErrContestFull, c.FilledSpots, c.TotalSpots)
	}
	if c.Status != StatusUpcoming {
		return Contest{}, fmt.Errorf("%w: contest is %s", ErrRegistrationClosed, c.Status)
	}
	if !now.Before(c.RegistrationDeadline) {
		return Contest{}, fmt.Errorf("%w: deadline %s passed", ErrRegistrationClosed, c.RegistrationDeadline.Format(time.RFC3339))
	}

	next := c
	next.FilledSpots = c.FilledSpots + 1
	next.UpdatedAt = now
	return next, nil
}

// WithWithdrawal releases one spot.
func (c Contest) WithWithdrawal(now time.Time) (Contest, error) {
	if c.Status != StatusUpcoming {
		return Contest{}, fmt.Errorf("%w: withdraw requires upcoming, found %s", ErrInvalidStatus, c.Status)
	}
	if c.FilledSpots < 1 {
		return Contest{}, fmt.Errorf("%w: no spots to release", ErrDataIntegrity)
	}

	next := c
	next.FilledSpots = c.FilledSpots - 1
	next.UpdatedAt = now
	return next, nil
}

// Started moves an upcoming contest live once its match begins.
func (c Contest) Started(now time.Time) (Contest, error) {
	if c.Status != StatusUpcoming {
		return Contest{}, fmt.Errorf("%w: start requires upcoming, found %s", ErrInvalidStatus, c.Status)
	}

	next := c
	next.Status = StatusLive
	next.UpdatedAt = now
	return next, nil
}

// Settled freezes the contest after payouts. Settling straight from
// upcoming is allowed so a missed start transition cannot wedge payouts.
func (c Contest) Settled(now time.Time) (Contest, error) {
	if c.Status != StatusUpcoming && c.Status != StatusLive {
		return Contest{}, fmt.Errorf("%w: settle requires upcoming or live, found %s", ErrInvalidStatus, c.Status)
	}

	next := c
	next.Status = StatusCompleted
	next.SettledAt = &now
	next.UpdatedAt = now
	return next, nil
}

// Cancelled voids a contest before settlement.
func (c Contest) Cancelled(now time.Time) (Contest, error) {
	if c.Status != StatusUpcoming && c.Status != StatusLive {
		return Contest{}, fmt.Errorf("%w: cancel requires upcoming or live, found %s", ErrInvalidStatus, c.Status)
	}

	next := c
	next.Status = StatusCancelled
	next.CancelledAt = &now
	next.UpdatedAt = now
	return next, nil
}
