package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/fantasy-contest/internal/domain/contest"
	qb "github.com/riskibarqy/fantasy-contest/internal/platform/querybuilder"
)

// participantOrder ranks winners first and keeps unranked entries in
// admission order behind them, matching what the leaderboard endpoint
// renders.
const participantOrder = "NULLIF(rank, 0) NULLS LAST"

// ContestRepository persists contests and participants. Admission,
// withdrawal, and leaderboard writes run in one database transaction so
// the filled spot counter moves together with the participant rows.
type ContestRepository struct {
	db *sqlx.DB
}

func NewContestRepository(db *sqlx.DB) *ContestRepository {
	return &ContestRepository{db: db}
}

func (r *ContestRepository) GetContest(ctx context.Context, contestID string) (contest.Contest, bool, error) {
	query, args, err := qb.Select(contestSelectColumns...).From("contests").
		Where(qb.Eq("id", contestID)).
		ToSQL()
	if err != nil {
		return contest.Contest{}, false, fmt.Errorf("build get contest query: %w", err)
	}

	var row contestTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return contest.Contest{}, false, nil
		}
		return contest.Contest{}, false, fmt.Errorf("get contest: %w", err)
	}

	c, err := contestFromRow(row)
	if err != nil {
		return contest.Contest{}, false, err
	}

	return c, true, nil
}

func (r *ContestRepository) CreateContest(ctx context.Context, c contest.Contest) error {
	row, err := contestToRow(c)
	if err != nil {
		return err
	}

	query, args, err := qb.InsertModel("contests", row, "")
	if err != nil {
		return fmt.Errorf("build insert contest query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return contest.ErrVersionConflict
		}
		return fmt.Errorf("insert contest id=%s: %w", c.ID, err)
	}

	return nil
}

func (r *ContestRepository) UpdateContest(ctx context.Context, c contest.Contest) error {
	return r.updateContest(ctx, r.db, c)
}

func (r *ContestRepository) updateContest(ctx context.Context, exec sqlExecutor, c contest.Contest) error {
	row, err := contestToRow(c)
	if err != nil {
		return err
	}

	query, args, err := qb.Update("contests").
		Set("name", row.Name).
		Set("description", row.Description).
		Set("status", row.Status).
		Set("entry_fee", row.EntryFee).
		Set("prize_pool", row.PrizePool).
		Set("total_spots", row.TotalSpots).
		Set("filled_spots", row.FilledSpots).
		Set("prize_distribution", row.PrizeDistribution).
		Set("rules", row.Rules).
		Set("registration_deadline", row.RegistrationDeadline).
		Set("stats", row.Stats).
		Set("settled_at", row.SettledAt).
		Set("cancelled_at", row.CancelledAt).
		Set("updated_at", row.UpdatedAt).
		SetExpr("version", "version + 1").
		Where(
			qb.Eq("id", c.ID),
			qb.Eq("version", c.Version),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update contest query: %w", err)
	}

	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update contest id=%s: %w", c.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contest rows affected: %w", err)
	}
	if affected == 0 {
		return contest.ErrVersionConflict
	}

	return nil
}

func (r *ContestRepository) ListContests(ctx context.Context, filter contest.Filter) ([]contest.Contest, error) {
	builder := qb.Select(contestSelectColumns...).From("contests")

	if filter.MatchID != "" {
		builder = builder.Where(qb.Eq("match_id", filter.MatchID))
	}
	if len(filter.Statuses) > 0 {
		values := make([]any, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			values = append(values, string(s))
		}
		builder = builder.Where(qb.In("status", values))
	}

	query, args, err := builder.
		OrderBy("registration_deadline", "id").
		Limit(filter.Limit).
		Offset(filter.Offset).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list contests query: %w", err)
	}

	var rows []contestTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list contests: %w", err)
	}

	out := make([]contest.Contest, 0, len(rows))
	for _, row := range rows {
		c, err := contestFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, nil
}

func (r *ContestRepository) GetParticipant(ctx context.Context, contestID, userID, teamID string) (contest.Participant, bool, error) {
	query, args, err := qb.Select(participantSelectColumns...).From("contest_participants").
		Where(
			qb.Eq("contest_id", contestID),
			qb.Eq("user_id", userID),
			qb.Eq("team_id", teamID),
		).
		ToSQL()
	if err != nil {
		return contest.Participant{}, false, fmt.Errorf("build get participant query: %w", err)
	}

	var row participantTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return contest.Participant{}, false, nil
		}
		return contest.Participant{}, false, fmt.Errorf("get participant: %w", err)
	}

	return participantFromRow(row), true, nil
}

func (r *ContestRepository) ListParticipants(ctx context.Context, contestID string) ([]contest.Participant, error) {
	return r.listParticipantsWhere(ctx, "list participants", qb.Eq("contest_id", contestID))
}

func (r *ContestRepository) ListParticipantsByUser(ctx context.Context, contestID, userID string) ([]contest.Participant, error) {
	return r.listParticipantsWhere(ctx, "list participants by user",
		qb.Eq("contest_id", contestID),
		qb.Eq("user_id", userID),
	)
}

func (r *ContestRepository) listParticipantsWhere(ctx context.Context, op string, conditions ...qb.Condition) ([]contest.Participant, error) {
	query, args, err := qb.Select(participantSelectColumns...).From("contest_participants").
		Where(conditions...).
		OrderBy(participantOrder, "entry_time", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", op, err)
	}

	var rows []participantTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return participantsFromRows(rows), nil
}

func (r *ContestRepository) ListUserEntries(ctx context.Context, userID string) ([]contest.Participant, error) {
	query, args, err := qb.Select(participantSelectColumns...).From("contest_participants").
		Where(qb.Eq("user_id", userID)).
		OrderBy("entry_time DESC", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list user entries query: %w", err)
	}

	var rows []participantTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list user entries: %w", err)
	}

	return participantsFromRows(rows), nil
}

func (r *ContestRepository) UpdateParticipant(ctx context.Context, p contest.Participant) error {
	return r.updateParticipant(ctx, r.db, p)
}

func (r *ContestRepository) updateParticipant(ctx context.Context, exec sqlExecutor, p contest.Participant) error {
	query, args, err := qb.Update("contest_participants").
		Set("points", p.Points).
		Set("rank", p.Rank).
		Set("prize", p.Prize).
		Set("is_winner", p.IsWinner).
		Set("payout_ref", p.PayoutRef).
		Set("updated_at", p.UpdatedAt).
		SetExpr("version", "version + 1").
		Where(
			qb.Eq("id", p.ID),
			qb.Eq("version", p.Version),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update participant query: %w", err)
	}

	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update participant id=%s: %w", p.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update participant rows affected: %w", err)
	}
	if affected == 0 {
		return contest.ErrVersionConflict
	}

	return nil
}

func (r *ContestRepository) AdmitParticipant(ctx context.Context, c contest.Contest, p contest.Participant) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin admit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := qb.InsertModel("contest_participants", participantToRow(p), "")
	if err != nil {
		return fmt.Errorf("build insert participant query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return contest.ErrDuplicateEntry
		}
		return fmt.Errorf("insert participant contest=%s user=%s: %w", p.ContestID, p.UserID, err)
	}

	if err := r.updateContest(ctx, tx, c); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit admit tx: %w", err)
	}
	return nil
}

func (r *ContestRepository) RemoveParticipant(ctx context.Context, c contest.Contest, participantID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin withdraw tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, "DELETE FROM contest_participants WHERE id = $1", participantID)
	if err != nil {
		return fmt.Errorf("delete participant id=%s: %w", participantID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete participant rows affected: %w", err)
	}
	if affected == 0 {
		return contest.ErrVersionConflict
	}

	if err := r.updateContest(ctx, tx, c); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit withdraw tx: %w", err)
	}
	return nil
}

func (r *ContestRepository) SaveLeaderboard(ctx context.Context, c contest.Contest, participants []contest.Participant) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin leaderboard tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := r.updateContest(ctx, tx, c); err != nil {
		return err
	}
	for _, p := range participants {
		if err := r.updateParticipant(ctx, tx, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit leaderboard tx: %w", err)
	}
	return nil
}

func participantsFromRows(rows []participantTableModel) []contest.Participant {
	out := make([]contest.Participant, 0, len(rows))
	for _, row := range rows {
		out = append(out, participantFromRow(row))
	}
	return out
}
