package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskboard-app/taskboard/internal/model"
)

type TaskStorage struct {
	db *sql.DB
}

func NewTaskStorage(db *sql.DB) *TaskStorage {
	return &TaskStorage{db: db}
}

// CreateTask allocates the task ID from the app's request counter and
// inserts the task row plus its seed notes. Counter increment and
// inserts commit in one transaction, so concurrent creates on the same
// app can neither duplicate nor skip identifiers.
func (s *TaskStorage) CreateTask(ctx context.Context, task *model.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rnumber int
	err = tx.QueryRowContext(ctx, `SELECT rnumber FROM apps WHERE acronym = ?`, task.AppAcronym).Scan(&rnumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.ErrAppNotFound
		}
		return fmt.Errorf("could not fetch app counter: %w", err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE apps SET rnumber = rnumber + 1 WHERE acronym = ?`, task.AppAcronym)
	if err != nil {
		return fmt.Errorf("could not increment app counter: %w", err)
	}
	task.ID = fmt.Sprintf("%s_%d", task.AppAcronym, rnumber+1)

	const q = `INSERT INTO tasks (id, app_acronym, name, description, plan, state, creator, owner, create_date)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		task.ID,
		task.AppAcronym,
		task.Name,
		task.Description,
		task.Plan,
		string(task.State),
		task.Creator,
		task.Owner,
		task.CreateDate,
	)
	if err != nil {
		return fmt.Errorf("could not insert task: %w", err)
	}

	if err := insertTaskNotes(ctx, tx, task.ID, task.Notes); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateTask persists state, plan and owner only if the stored row is
// still in fromState. The guard in the WHERE clause is what serializes
// concurrent transitions on the same task.
func (s *TaskStorage) UpdateTask(ctx context.Context, task *model.Task, fromState model.TaskState, notes []model.TaskNote) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	const q = `UPDATE tasks SET state = ?, plan = ?, owner = ? WHERE id = ? AND state = ?`
	res, err := tx.ExecContext(ctx, q, string(task.State), task.Plan, task.Owner, task.ID, string(fromState))
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		var actual string
		err := tx.QueryRowContext(ctx, `SELECT state FROM tasks WHERE id = ?`, task.ID).Scan(&actual)
		if err != nil {
			if err == sql.ErrNoRows {
				return model.ErrTaskNotFound
			}
			return fmt.Errorf("could not fetch task state: %w", err)
		}
		return &model.StateConflictError{TaskID: task.ID, Expected: fromState, Actual: model.TaskState(actual)}
	}

	if err := insertTaskNotes(ctx, tx, task.ID, notes); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *TaskStorage) AppendTaskNote(ctx context.Context, task *model.Task, note model.TaskNote) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE tasks SET owner = ? WHERE id = ?`, task.Owner, task.ID)
	if err != nil {
		return fmt.Errorf("could not update task owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		return model.ErrTaskNotFound
	}

	if err := insertTaskNotes(ctx, tx, task.ID, []model.TaskNote{note}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *TaskStorage) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	const q = `SELECT id, app_acronym, name, description, plan, state, creator, owner, create_date
	FROM tasks WHERE id = ?`

	var task model.Task
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&task.ID,
		&task.AppAcronym,
		&task.Name,
		&task.Description,
		&task.Plan,
		&task.State,
		&task.Creator,
		&task.Owner,
		&task.CreateDate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrTaskNotFound
		}
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	task.Notes, err = s.fetchTaskNotes(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskStorage) FilterTasks(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	query := `SELECT id, app_acronym, name, description, plan, state, creator, owner, create_date
	FROM tasks WHERE 1=1`
	args := []interface{}{}

	if filter.AppAcronym != "" {
		query += " AND app_acronym = ?"
		args = append(args, filter.AppAcronym)
	}
	if filter.State != "" {
		query += " AND state = ?"
		args = append(args, string(filter.State))
	}
	// Task IDs are "<acronym>_<n>" strings, so sorting by id would put
	// APP1_10 before APP1_2. rowid follows insertion order.
	query += " ORDER BY rowid ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not filter tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var task model.Task
		err := rows.Scan(
			&task.ID,
			&task.AppAcronym,
			&task.Name,
			&task.Description,
			&task.Plan,
			&task.State,
			&task.Creator,
			&task.Owner,
			&task.CreateDate,
		)
		if err != nil {
			return nil, fmt.Errorf("could not scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate tasks: %w", err)
	}

	for i := range tasks {
		tasks[i].Notes, err = s.fetchTaskNotes(ctx, tasks[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// fetchTaskNotes returns the audit entries newest-first.
func (s *TaskStorage) fetchTaskNotes(ctx context.Context, taskID string) ([]model.TaskNote, error) {
	const q = `SELECT seq, created_at, state, actor, body FROM task_notes WHERE task_id = ? ORDER BY seq DESC`
	rows, err := s.db.QueryContext(ctx, q, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not fetch task notes: %w", err)
	}
	defer rows.Close()

	var notes []model.TaskNote
	for rows.Next() {
		var n model.TaskNote
		if err := rows.Scan(&n.Seq, &n.CreatedAt, &n.State, &n.Actor, &n.Body); err != nil {
			return nil, fmt.Errorf("could not scan task note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate task notes: %w", err)
	}
	return notes, nil
}

// insertTaskNotes appends entries in the given write order. Notes are
// insert-only: nothing here ever updates or deletes an existing row.
func insertTaskNotes(ctx context.Context, tx *sql.Tx, taskID string, notes []model.TaskNote) error {
	if len(notes) == 0 {
		return nil
	}

	var seq int
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM task_notes WHERE task_id = ?`, taskID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("could not fetch note sequence: %w", err)
	}

	const q = `INSERT INTO task_notes (task_id, seq, created_at, state, actor, body) VALUES (?, ?, ?, ?, ?, ?)`
	for _, n := range notes {
		seq++
		_, err := tx.ExecContext(ctx, q, taskID, seq, n.CreatedAt, string(n.State), n.Actor, n.Body)
		if err != nil {
			return fmt.Errorf("could not insert task note: %w", err)
		}
	}
	return nil
}
