package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/types"
)

// GoalsRepository handles treatment goal persistence
type GoalsRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewGoalsRepository creates a new treatment goals repository
func NewGoalsRepository(db *sql.DB, log *logger.Logger) *GoalsRepository {
	return &GoalsRepository{
		db:     db,
		logger: log,
	}
}

// ListByPatient retrieves a patient's treatment goals. Without filters only
// active goals are returned; IncludeAll bypasses the status filter.
func (r *GoalsRepository) ListByPatient(ctx context.Context, patientID int64, filters *types.GoalFilters) ([]*types.TreatmentGoal, error) {
	query := `
		SELECT g.id, g.patient_id, g.provider_id, g.goal_text, g.goal_category,
			g.target_date, g.status, g.progress_level,
			g.created_at, g.updated_at, g.achieved_at, g.discontinued_at,
			COALESCE(u.fname || ' ' || u.lname, '') AS provider_name
		FROM treatment_goals g
		LEFT JOIN users u ON u.id = g.provider_id
		WHERE g.patient_id = $1`

	args := []interface{}{patientID}
	argIndex := 2

	if filters == nil || !filters.IncludeAll {
		status := types.GoalStatusActive
		if filters != nil && filters.Status != "" {
			status = filters.Status
		}
		query += fmt.Sprintf(" AND g.status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}

	query += " ORDER BY g.created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to list treatment goals", err)
	}
	defer rows.Close()

	var goals []*types.TreatmentGoal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, types.NewStorageError(types.ErrCodeStorageFailure, "failed to scan treatment goal row", err)
		}
		goals = append(goals, goal)
	}

	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError(types.ErrCodeStorageFailure, "error iterating treatment goal rows", err)
	}

	return goals, nil
}

// scanGoal maps one treatment_goals row onto a TreatmentGoal
func scanGoal(row rowScanner) (*types.TreatmentGoal, error) {
	var goal types.TreatmentGoal
	var category sql.NullString
	var targetDate sql.NullTime
	var achievedAt, discontinuedAt sql.NullTime

	err := row.Scan(
		&goal.ID,
		&goal.PatientID,
		&goal.ProviderID,
		&goal.GoalText,
		&category,
		&targetDate,
		&goal.Status,
		&goal.ProgressLevel,
		&goal.CreatedAt,
		&goal.UpdatedAt,
		&achievedAt,
		&discontinuedAt,
		&goal.ProviderName,
	)
	if err != nil {
		return nil, err
	}

	goal.GoalCategory = category.String
	if targetDate.Valid {
		d := targetDate.Time.Format("2006-01-02")
		goal.TargetDate = &d
	}
	goal.AchievedAt = nullableTime(achievedAt)
	goal.DiscontinuedAt = nullableTime(discontinuedAt)

	return &goal, nil
}
