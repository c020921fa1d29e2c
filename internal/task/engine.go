// Package task implements the workflow engine: guarded state
// transitions, task creation, plan (re)assignment and the append-only
// audit trail.
package task

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/taskboard-app/taskboard/internal/model"
)

// Notifier is asked for a best-effort completion notification after a
// doing -> done transition commits. Implementations must not block.
type Notifier interface {
	TaskCompleted(app model.App, task model.Task)
}

// EmptyPermitPolicy decides what happens when an app has no group
// assigned to a gate. The original system was inconsistent here, so the
// behavior is configurable: deny (nobody qualifies) or allow (the gate
// is skipped).
type EmptyPermitPolicy string

const (
	EmptyPermitDeny  EmptyPermitPolicy = "deny"
	EmptyPermitAllow EmptyPermitPolicy = "allow"
)

func (p EmptyPermitPolicy) Valid() bool {
	return p == EmptyPermitDeny || p == EmptyPermitAllow
}

type Engine struct {
	apps  model.AppRepository
	plans model.PlanRepository
	tasks model.TaskRepository
	users model.UserRepository

	notifier    Notifier
	emptyPermit EmptyPermitPolicy

	now func() time.Time
}

func NewEngine(
	apps model.AppRepository,
	plans model.PlanRepository,
	tasks model.TaskRepository,
	users model.UserRepository,
	notifier Notifier,
	emptyPermit EmptyPermitPolicy,
) *Engine {
	return &Engine{
		apps:        apps,
		plans:       plans,
		tasks:       tasks,
		users:       users,
		notifier:    notifier,
		emptyPermit: emptyPermit,
		now:         time.Now,
	}
}

// Create inserts a new task in the open state. The task identifier is
// derived from the app's request counter; counter increment and insert
// commit together or not at all.
func (e *Engine) Create(ctx context.Context, appAcronym, name, description, plan, actor string) (string, error) {
	if name == "" {
		return "", model.Validationf("task name is required")
	}

	app, err := e.apps.GetAppByAcronym(ctx, appAcronym)
	if err != nil {
		return "", err
	}
	if err := e.permitted(ctx, actor, app.PermitCreate); err != nil {
		return "", err
	}

	if plan != "" {
		if _, err := e.plans.GetPlan(ctx, appAcronym, plan); err != nil {
			return "", err
		}
	}

	t := model.NewTask(appAcronym, name, description, plan, actor)
	t.CreateDate = e.now()
	t.Notes = []model.TaskNote{{
		CreatedAt: e.now(),
		State:     model.TaskStateOpen,
		Actor:     actor,
		Body:      "has created task",
	}}

	if err := e.tasks.CreateTask(ctx, t); err != nil {
		return "", fmt.Errorf("could not create task: %w", err)
	}
	log.Printf("INFO task %s created in app %s by %s", t.ID, appAcronym, actor)
	return t.ID, nil
}

// Transition applies one guarded workflow step. newPlan, when non-nil
// on an action that allows it, (re)assigns the plan in the same
// transaction; the plan note is written before the transition note so a
// newest-first read shows the transition entry on top.
func (e *Engine) Transition(ctx context.Context, appAcronym, taskID string, action Action, newPlan *string, actor string) error {
	tr, ok := transitions[action]
	if !ok {
		return model.Validationf("unknown action '%s'", action)
	}

	app, err := e.apps.GetAppByAcronym(ctx, appAcronym)
	if err != nil {
		return err
	}
	if err := e.permitted(ctx, actor, tr.permit(app)); err != nil {
		return err
	}

	t, err := e.getAppTask(ctx, appAcronym, taskID)
	if err != nil {
		return err
	}
	if t.State != tr.from {
		return &model.StateConflictError{TaskID: t.ID, Expected: tr.from, Actual: t.State}
	}

	// Audit entries are tagged with the pre-transition state.
	var notes []model.TaskNote
	if tr.allowPlanChange && newPlan != nil && *newPlan != t.Plan {
		note, err := e.planChange(ctx, t, *newPlan, actor)
		if err != nil {
			return err
		}
		notes = append(notes, note)
		t.Plan = *newPlan
	}
	notes = append(notes, model.TaskNote{
		CreatedAt: e.now(),
		State:     tr.from,
		Actor:     actor,
		Body:      tr.noteBody,
	})

	t.State = tr.to
	t.Owner = actor
	if err := e.tasks.UpdateTask(ctx, t, tr.from, notes); err != nil {
		return err
	}
	log.Printf("INFO task %s moved '%s' -> '%s' by %s", t.ID, tr.from, tr.to, actor)

	// Notification is best effort and must not affect the committed
	// transition.
	if action == ActionComplete && e.notifier != nil {
		e.notifier.TaskCompleted(*app, *t)
	}
	return nil
}

// AddNote records a free-text audit entry and reassigns ownership. The
// guarding group is resolved from the caller-supplied state hint, while
// the entry itself is tagged with the task's stored state; callers with
// a stale view may therefore pass a hint that no longer matches. This
// mirrors the behavior of the system being replaced.
func (e *Engine) AddNote(ctx context.Context, appAcronym, taskID, text string, stateHint model.TaskState, actor string) error {
	if text == "" {
		return model.Validationf("note text is required")
	}
	if !stateHint.Valid() {
		return model.Validationf("unknown state '%s'", stateHint)
	}

	app, err := e.apps.GetAppByAcronym(ctx, appAcronym)
	if err != nil {
		return err
	}
	group, ok := permitForState(app, stateHint)
	if !ok {
		return model.ErrNotPermitted
	}
	if err := e.permitted(ctx, actor, group); err != nil {
		return err
	}

	t, err := e.getAppTask(ctx, appAcronym, taskID)
	if err != nil {
		return err
	}

	note := model.TaskNote{
		CreatedAt: e.now(),
		State:     t.State,
		Actor:     actor,
		Body:      text,
	}
	t.Owner = actor
	return e.tasks.AppendTaskNote(ctx, t, note)
}

// UpdatePlan (re)assigns the plan outside of a transition. Only allowed
// while the task is in open or todo.
func (e *Engine) UpdatePlan(ctx context.Context, appAcronym, taskID, newPlan, actor string) error {
	app, err := e.apps.GetAppByAcronym(ctx, appAcronym)
	if err != nil {
		return err
	}

	t, err := e.getAppTask(ctx, appAcronym, taskID)
	if err != nil {
		return err
	}
	if t.State != model.TaskStateOpen && t.State != model.TaskStateTODO {
		return model.Validationf("plan can only be changed while the task is in 'open' or 'todo', task %s is in '%s'", t.ID, t.State)
	}

	group, _ := permitForState(app, t.State)
	if err := e.permitted(ctx, actor, group); err != nil {
		return err
	}

	if newPlan == t.Plan {
		return nil
	}
	note, err := e.planChange(ctx, t, newPlan, actor)
	if err != nil {
		return err
	}

	fromState := t.State
	t.Plan = newPlan
	t.Owner = actor
	return e.tasks.UpdateTask(ctx, t, fromState, []model.TaskNote{note})
}

func (e *Engine) Get(ctx context.Context, appAcronym, taskID string) (*model.Task, error) {
	return e.getAppTask(ctx, appAcronym, taskID)
}

func (e *Engine) List(ctx context.Context, appAcronym string) ([]model.Task, error) {
	if _, err := e.apps.GetAppByAcronym(ctx, appAcronym); err != nil {
		return nil, err
	}
	return e.tasks.FilterTasks(ctx, model.TaskFilter{AppAcronym: appAcronym})
}

// planChange validates the new plan value and builds the audit entry
// for it, tagged with the task's current state.
func (e *Engine) planChange(ctx context.Context, t *model.Task, newPlan, actor string) (model.TaskNote, error) {
	body := "has removed the plan"
	if newPlan != "" {
		if _, err := e.plans.GetPlan(ctx, t.AppAcronym, newPlan); err != nil {
			return model.TaskNote{}, err
		}
		body = fmt.Sprintf("has updated the plan to %s", newPlan)
	}
	return model.TaskNote{
		CreatedAt: e.now(),
		State:     t.State,
		Actor:     actor,
		Body:      body,
	}, nil
}

func (e *Engine) permitted(ctx context.Context, actor, group string) error {
	if group == "" {
		if e.emptyPermit == EmptyPermitAllow {
			return nil
		}
		return model.ErrNotPermitted
	}
	ok, err := e.users.IsMember(ctx, actor, group)
	if err != nil {
		return fmt.Errorf("could not check group membership: %w", err)
	}
	if !ok {
		return model.ErrNotPermitted
	}
	return nil
}

func (e *Engine) getAppTask(ctx context.Context, appAcronym, taskID string) (*model.Task, error) {
	t, err := e.tasks.GetTaskByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.AppAcronym != appAcronym {
		return nil, model.ErrTaskNotFound
	}
	return t, nil
}
