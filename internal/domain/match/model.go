package match

import (
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/fantasy-contest/internal/domain/sport"
)

const (
	StatusScheduled = "SCHEDULED"
	StatusLive      = "LIVE"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
	StatusPostponed = "POSTPONED"
)

// Match represents one real-world game that rosters are built for and
// contests are attached to.
type Match struct {
	ID          string
	Sport       sport.Sport
	HomeTeam    string
	AwayTeam    string
	HomeTeamID  string
	AwayTeamID  string
	Venue       string
	StartsAt    time.Time
	Status      string
	HomeScore   *int
	AwayScore   *int
	CompletedAt *time.Time
}

func (m Match) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("match id is required")
	}
	if !m.Sport.Valid() {
		return fmt.Errorf("%w: %s", sport.ErrUnknownSport, m.Sport)
	}
	if m.HomeTeamID == "" || m.AwayTeamID == "" {
		return fmt.Errorf("match team ids are required")
	}
	if m.StartsAt.IsZero() {
		return fmt.Errorf("match start time is required")
	}
	return nil
}

// Started reports whether the game already kicked off relative to now.
// Cancelled-like games never count as started.
func (m Match) Started(now time.Time) bool {
	if IsCancelledLikeStatus(m.Status) {
		return false
	}
	if IsLiveStatus(m.Status) || IsCompletedStatus(m.Status) {
		return true
	}
	return !now.Before(m.StartsAt)
}

func NormalizeStatus(value string) string {
	status := strings.ToUpper(strings.TrimSpace(value))
	if status == "" {
		return StatusScheduled
	}
	return status
}

func IsLiveStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusLive, "IN_PLAY", "HT", "1H", "2H", "ET":
		return true
	default:
		return false
	}
}

func IsCompletedStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusCompleted, "FINISHED", "FT", "AET", "PEN":
		return true
	default:
		return false
	}
}

func IsCancelledLikeStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusCancelled, StatusPostponed, "ABANDONED":
		return true
	default:
		return false
	}
}
