package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskboard-app/taskboard/internal/model"
)

type AppStorage struct {
	db *sql.DB
}

func NewAppStorage(db *sql.DB) *AppStorage {
	return &AppStorage{db: db}
}

func (s *AppStorage) CreateApp(ctx context.Context, app *model.App) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM apps WHERE acronym = ?`, app.Acronym).Scan(&exists)
	if err != nil {
		return fmt.Errorf("could not check app: %w", err)
	}
	if exists > 0 {
		return model.ErrAppExists
	}

	const q = `INSERT INTO apps (acronym, description, rnumber, start_date, end_date,
	permit_create, permit_open, permit_todo, permit_doing, permit_done)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, q,
		app.Acronym,
		app.Description,
		app.Rnumber,
		app.StartDate,
		app.EndDate,
		app.PermitCreate,
		app.PermitOpen,
		app.PermitTODOList,
		app.PermitDoing,
		app.PermitDone,
	)
	if err != nil {
		return fmt.Errorf("could not create app: %w", err)
	}
	return nil
}

func (s *AppStorage) GetAppByAcronym(ctx context.Context, acronym string) (*model.App, error) {
	const q = `SELECT acronym, description, rnumber, start_date, end_date,
	permit_create, permit_open, permit_todo, permit_doing, permit_done
	FROM apps WHERE acronym = ?`

	var app model.App
	err := s.db.QueryRowContext(ctx, q, acronym).Scan(
		&app.Acronym,
		&app.Description,
		&app.Rnumber,
		&app.StartDate,
		&app.EndDate,
		&app.PermitCreate,
		&app.PermitOpen,
		&app.PermitTODOList,
		&app.PermitDoing,
		&app.PermitDone,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrAppNotFound
		}
		return nil, fmt.Errorf("could not get app: %w", err)
	}
	return &app, nil
}

func (s *AppStorage) FetchApps(ctx context.Context) ([]model.App, error) {
	const q = `SELECT acronym, description, rnumber, start_date, end_date,
	permit_create, permit_open, permit_todo, permit_doing, permit_done
	FROM apps ORDER BY acronym`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("could not fetch apps: %w", err)
	}
	defer rows.Close()

	var apps []model.App
	for rows.Next() {
		var app model.App
		err := rows.Scan(
			&app.Acronym,
			&app.Description,
			&app.Rnumber,
			&app.StartDate,
			&app.EndDate,
			&app.PermitCreate,
			&app.PermitOpen,
			&app.PermitTODOList,
			&app.PermitDoing,
			&app.PermitDone,
		)
		if err != nil {
			return nil, fmt.Errorf("could not scan app: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate apps: %w", err)
	}
	return apps, nil
}

// UpdateApp edits dates and permit groups; acronym and rnumber are not
// editable (the counter only moves through task creation).
func (s *AppStorage) UpdateApp(ctx context.Context, app *model.App) error {
	const q = `UPDATE apps SET start_date = ?, end_date = ?,
	permit_create = ?, permit_open = ?, permit_todo = ?, permit_doing = ?, permit_done = ?
	WHERE acronym = ?`
	res, err := s.db.ExecContext(ctx, q,
		app.StartDate,
		app.EndDate,
		app.PermitCreate,
		app.PermitOpen,
		app.PermitTODOList,
		app.PermitDoing,
		app.PermitDone,
		app.Acronym,
	)
	if err != nil {
		return fmt.Errorf("could not update app: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		return model.ErrAppNotFound
	}
	return nil
}
