package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskboard-app/taskboard/internal/model"
)

type PlanStorage struct {
	db *sql.DB
}

func NewPlanStorage(db *sql.DB) *PlanStorage {
	return &PlanStorage{db: db}
}

func (s *PlanStorage) CreatePlan(ctx context.Context, plan *model.Plan) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plans WHERE app_acronym = ? AND name = ?`,
		plan.AppAcronym, plan.Name,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("could not check plan: %w", err)
	}
	if exists > 0 {
		return model.ErrPlanExists
	}

	const q = `INSERT INTO plans (app_acronym, name, start_date, end_date) VALUES (?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q, plan.AppAcronym, plan.Name, plan.StartDate, plan.EndDate)
	if err != nil {
		return fmt.Errorf("could not create plan: %w", err)
	}
	return nil
}

func (s *PlanStorage) GetPlan(ctx context.Context, appAcronym, name string) (*model.Plan, error) {
	const q = `SELECT app_acronym, name, start_date, end_date FROM plans WHERE app_acronym = ? AND name = ?`

	var plan model.Plan
	err := s.db.QueryRowContext(ctx, q, appAcronym, name).Scan(
		&plan.AppAcronym,
		&plan.Name,
		&plan.StartDate,
		&plan.EndDate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrPlanNotFound
		}
		return nil, fmt.Errorf("could not get plan: %w", err)
	}
	return &plan, nil
}

func (s *PlanStorage) FetchPlans(ctx context.Context, appAcronym string) ([]model.Plan, error) {
	const q = `SELECT app_acronym, name, start_date, end_date FROM plans WHERE app_acronym = ? ORDER BY name`

	rows, err := s.db.QueryContext(ctx, q, appAcronym)
	if err != nil {
		return nil, fmt.Errorf("could not fetch plans: %w", err)
	}
	defer rows.Close()

	var plans []model.Plan
	for rows.Next() {
		var plan model.Plan
		if err := rows.Scan(&plan.AppAcronym, &plan.Name, &plan.StartDate, &plan.EndDate); err != nil {
			return nil, fmt.Errorf("could not scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate plans: %w", err)
	}
	return plans, nil
}
