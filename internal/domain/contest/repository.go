package contest

import (
	"context"
	"errors"
)

// ErrVersionConflict signals that an optimistic update lost the race and
// the caller should re-read and retry.
var ErrVersionConflict = errors.New("stale contest version")

// Filter narrows ListContests. Zero-valued fields are ignored.
type Filter struct {
	MatchID  string
	Statuses []Status
	Limit    int
	Offset   int
}

// Repository persists contests and their participants. Admission,
// withdrawal, and leaderboard writes pair the contest update with the
// participant writes in one atomic unit so the spot counter can never
// drift from the participant set.
type Repository interface {
	GetContest(ctx context.Context, contestID string) (Contest, bool, error)
	CreateContest(ctx context.Context, c Contest) error
	UpdateContest(ctx context.Context, c Contest) error
	ListContests(ctx context.Context, filter Filter) ([]Contest, error)

	GetParticipant(ctx context.Context, contestID, userID, teamID string) (Participant, bool, error)
	ListParticipants(ctx context.Context, contestID string) ([]Participant, error)
	ListParticipantsByUser(ctx context.Context, contestID, userID string) ([]Participant, error)
	ListUserEntries(ctx context.Context, userID string) ([]Participant, error)
	UpdateParticipant(ctx context.Context, p Participant) error

	// AdmitParticipant writes the admitted contest and inserts the
	// participant together. Returns ErrDuplicateEntry when the
	// (user, team) pair already holds a spot.
	AdmitParticipant(ctx context.Context, c Contest, p Participant) error
	// RemoveParticipant writes the decremented contest and deletes the
	// participant together.
	RemoveParticipant(ctx context.Context, c Contest, participantID string) error
	// SaveLeaderboard writes the contest and every re-ranked participant
	// together.
	SaveLeaderboard(ctx context.Context, c Contest, participants []Participant) error
}
