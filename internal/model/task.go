package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type TaskState string

const (
	TaskStateOpen   TaskState = "open"
	TaskStateTODO   TaskState = "todo"
	TaskStateDoing  TaskState = "doing"
	TaskStateDone   TaskState = "done"
	TaskStateClosed TaskState = "closed"
)

func (s TaskState) Valid() bool {
	switch s {
	case TaskStateOpen, TaskStateTODO, TaskStateDoing, TaskStateDone, TaskStateClosed:
		return true
	}
	return false
}

// Task is mutated in place through its whole life and never deleted;
// "closed" is terminal. ID, Name, Description, Creator, AppAcronym and
// CreateDate are set once at creation.
type Task struct {
	ID          string
	AppAcronym  string
	Name        string
	Description string
	Plan        string
	State       TaskState
	Creator     string
	Owner       string
	CreateDate  time.Time

	// Notes holds the audit trail, newest entry first.
	Notes []TaskNote
}

func NewTask(appAcronym, name, description, plan, creator string) *Task {
	return &Task{
		AppAcronym:  appAcronym,
		Name:        name,
		Description: description,
		Plan:        plan,
		State:       TaskStateOpen,
		Creator:     creator,
		Owner:       creator,
	}
}

// TaskNote is a single audit entry. Entries are append-only: never
// edited or removed once written.
type TaskNote struct {
	Seq       int
	CreatedAt time.Time
	State     TaskState
	Actor     string
	Body      string
}

const noteSeparator = "##########################################################"

// RenderNotes produces the legacy concatenated notes blob consumed by
// the frontend. Entries are expected newest-first and render in that
// order.
func RenderNotes(notes []TaskNote) string {
	var b strings.Builder
	for _, n := range notes {
		fmt.Fprintf(&b, "[%s, '%s'] %s %s.\n%s\n",
			n.CreatedAt.Format("2006-01-02 15:04:05"), n.State, n.Actor, n.Body, noteSeparator)
	}
	return b.String()
}

type TaskFilter struct {
	AppAcronym string
	State      TaskState
}

var ErrTaskNotFound = errors.New("task not found")

// StateConflictError reports a transition attempted against a task that
// is no longer (or never was) in the expected source state.
type StateConflictError struct {
	TaskID   string
	Expected TaskState
	Actual   TaskState
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("task %s is in state '%s', expected '%s'", e.TaskID, e.Actual, e.Expected)
}

type TaskRepository interface {
	// CreateTask allocates the task ID from the owning app's request
	// counter and inserts the task together with task.Notes in a single
	// transaction. task.Notes is given in write order.
	CreateTask(ctx context.Context, task *Task) error
	GetTaskByID(ctx context.Context, id string) (*Task, error)
	FilterTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
	// UpdateTask persists state, plan and owner guarded by fromState:
	// if the stored row is no longer in fromState nothing is written and
	// a StateConflictError is returned. notes is given in write order.
	UpdateTask(ctx context.Context, task *Task, fromState TaskState, notes []TaskNote) error
	// AppendTaskNote records a note and the owner change without
	// touching the task state.
	AppendTaskNote(ctx context.Context, task *Task, note TaskNote) error
}
