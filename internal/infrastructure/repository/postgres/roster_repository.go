package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/fantasy-contest/internal/domain/roster"
	qb "github.com/riskibarqy/fantasy-contest/internal/platform/querybuilder"
)

// RosterRepository persists rosters with picks embedded as JSONB. The
// one roster per (user, match) rule rides on a unique index, so a lost
// race surfaces as ErrDuplicateRoster instead of a second row.
type RosterRepository struct {
	db *sqlx.DB
}

func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

func (r *RosterRepository) Get(ctx context.Context, rosterID string) (roster.Roster, bool, error) {
	return r.getRosterBy(ctx, "get roster", qb.Eq("id", rosterID))
}

func (r *RosterRepository) GetByUserAndMatch(ctx context.Context, userID, matchID string) (roster.Roster, bool, error) {
	return r.getRosterBy(ctx, "get roster by user and match",
		qb.Eq("user_id", userID),
		qb.Eq("match_id", matchID),
	)
}

func (r *RosterRepository) getRosterBy(ctx context.Context, op string, conditions ...qb.Condition) (roster.Roster, bool, error) {
	query, args, err := qb.Select(rosterSelectColumns...).From("rosters").
		Where(conditions...).
		ToSQL()
	if err != nil {
		return roster.Roster{}, false, fmt.Errorf("build %s query: %w", op, err)
	}

	var row rosterTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return roster.Roster{}, false, nil
		}
		return roster.Roster{}, false, fmt.Errorf("%s: %w", op, err)
	}

	rr, err := rosterFromRow(row)
	if err != nil {
		return roster.Roster{}, false, err
	}

	return rr, true, nil
}

func (r *RosterRepository) Create(ctx context.Context, rr roster.Roster) error {
	row, err := rosterToRow(rr)
	if err != nil {
		return err
	}

	query, args, err := qb.InsertModel("rosters", row, "")
	if err != nil {
		return fmt.Errorf("build insert roster query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return roster.ErrDuplicateRoster
		}
		return fmt.Errorf("insert roster user=%s match=%s: %w", rr.UserID, rr.MatchID, err)
	}

	return nil
}

func (r *RosterRepository) Update(ctx context.Context, rr roster.Roster) error {
	row, err := rosterToRow(rr)
	if err != nil {
		return err
	}

	query, args, err := qb.Update("rosters").
		Set("name", row.Name).
		Set("status", row.Status).
		Set("picks", row.Picks).
		Set("total_points", row.TotalPoints).
		Set("submitted_at", row.SubmittedAt).
		Set("locked_at", row.LockedAt).
		Set("scored_at", row.ScoredAt).
		Set("updated_at", row.UpdatedAt).
		SetExpr("version", "version + 1").
		Where(
			qb.Eq("id", rr.ID),
			qb.Eq("version", rr.Version),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build update roster query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update roster id=%s: %w", rr.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update roster rows affected: %w", err)
	}
	if affected == 0 {
		return roster.ErrVersionConflict
	}

	return nil
}

func (r *RosterRepository) ListByMatch(ctx context.Context, matchID string) ([]roster.Roster, error) {
	return r.listRostersWhere(ctx, "list rosters by match", qb.Eq("match_id", matchID))
}

func (r *RosterRepository) ListByUser(ctx context.Context, userID string) ([]roster.Roster, error) {
	return r.listRostersWhere(ctx, "list rosters by user", qb.Eq("user_id", userID))
}

func (r *RosterRepository) listRostersWhere(ctx context.Context, op string, conditions ...qb.Condition) ([]roster.Roster, error) {
	query, args, err := qb.Select(rosterSelectColumns...).From("rosters").
		Where(conditions...).
		OrderBy("created_at DESC", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", op, err)
	}

	var rows []rosterTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]roster.Roster, 0, len(rows))
	for _, row := range rows {
		rr, err := rosterFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rr)
	}

	return out, nil
}
