package task

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard-app/taskboard/internal/model"
)

type fakeAppRepo struct {
	apps map[string]*model.App
}

func (f *fakeAppRepo) CreateApp(_ context.Context, app *model.App) error {
	f.apps[app.Acronym] = app
	return nil
}

func (f *fakeAppRepo) GetAppByAcronym(_ context.Context, acronym string) (*model.App, error) {
	app, ok := f.apps[acronym]
	if !ok {
		return nil, model.ErrAppNotFound
	}
	cp := *app
	return &cp, nil
}

func (f *fakeAppRepo) FetchApps(_ context.Context) ([]model.App, error) { return nil, nil }
func (f *fakeAppRepo) UpdateApp(_ context.Context, _ *model.App) error  { return nil }

type fakePlanRepo struct {
	plans map[string]bool // "<acronym>/<name>"
}

func (f *fakePlanRepo) CreatePlan(_ context.Context, plan *model.Plan) error {
	f.plans[plan.AppAcronym+"/"+plan.Name] = true
	return nil
}

func (f *fakePlanRepo) GetPlan(_ context.Context, appAcronym, name string) (*model.Plan, error) {
	if !f.plans[appAcronym+"/"+name] {
		return nil, model.ErrPlanNotFound
	}
	return &model.Plan{AppAcronym: appAcronym, Name: name}, nil
}

func (f *fakePlanRepo) FetchPlans(_ context.Context, _ string) ([]model.Plan, error) {
	return nil, nil
}

type fakeUserRepo struct {
	members map[string]map[string]bool // group -> usernames
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, _ string) (*model.User, error) {
	return nil, model.ErrUserNotFound
}
func (f *fakeUserRepo) CreateUser(_ context.Context, _ *model.User) error     { return nil }
func (f *fakeUserRepo) CreateGroup(_ context.Context, _ string) error         { return nil }
func (f *fakeUserRepo) AddUserToGroup(_ context.Context, _, _ string) error   { return nil }
func (f *fakeUserRepo) IsMember(_ context.Context, username, group string) (bool, error) {
	return f.members[group][username], nil
}
func (f *fakeUserRepo) FetchActiveGroupMembers(_ context.Context, _ string) ([]model.User, error) {
	return nil, nil
}

// fakeTaskRepo mimics the storage contract: copies out on reads,
// state-guarded writes, append-only notes kept newest-first.
type fakeTaskRepo struct {
	apps  *fakeAppRepo
	tasks map[string]*model.Task
	seq   map[string]int
}

func newFakeTaskRepo(apps *fakeAppRepo) *fakeTaskRepo {
	return &fakeTaskRepo{apps: apps, tasks: map[string]*model.Task{}, seq: map[string]int{}}
}

func (f *fakeTaskRepo) CreateTask(_ context.Context, task *model.Task) error {
	app, ok := f.apps.apps[task.AppAcronym]
	if !ok {
		return model.ErrAppNotFound
	}
	app.Rnumber++
	task.ID = fmt.Sprintf("%s_%d", task.AppAcronym, app.Rnumber)

	cp := *task
	cp.Notes = nil
	f.tasks[cp.ID] = &cp
	f.appendNotes(&cp, task.Notes)
	return nil
}

func (f *fakeTaskRepo) GetTaskByID(_ context.Context, id string) (*model.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, model.ErrTaskNotFound
	}
	cp := *t
	cp.Notes = append([]model.TaskNote(nil), t.Notes...)
	return &cp, nil
}

func (f *fakeTaskRepo) FilterTasks(_ context.Context, filter model.TaskFilter) ([]model.Task, error) {
	var out []model.Task
	for _, t := range f.tasks {
		if filter.AppAcronym != "" && t.AppAcronym != filter.AppAcronym {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeTaskRepo) UpdateTask(_ context.Context, task *model.Task, fromState model.TaskState, notes []model.TaskNote) error {
	stored, ok := f.tasks[task.ID]
	if !ok {
		return model.ErrTaskNotFound
	}
	if stored.State != fromState {
		return &model.StateConflictError{TaskID: task.ID, Expected: fromState, Actual: stored.State}
	}
	stored.State = task.State
	stored.Plan = task.Plan
	stored.Owner = task.Owner
	f.appendNotes(stored, notes)
	return nil
}

func (f *fakeTaskRepo) AppendTaskNote(_ context.Context, task *model.Task, note model.TaskNote) error {
	stored, ok := f.tasks[task.ID]
	if !ok {
		return model.ErrTaskNotFound
	}
	stored.Owner = task.Owner
	f.appendNotes(stored, []model.TaskNote{note})
	return nil
}

func (f *fakeTaskRepo) appendNotes(t *model.Task, notes []model.TaskNote) {
	for _, n := range notes {
		f.seq[t.ID]++
		n.Seq = f.seq[t.ID]
		t.Notes = append([]model.TaskNote{n}, t.Notes...)
	}
}

type fakeNotifier struct {
	completed []string
}

func (f *fakeNotifier) TaskCompleted(_ model.App, task model.Task) {
	f.completed = append(f.completed, task.ID)
}

type fixture struct {
	engine   *Engine
	apps     *fakeAppRepo
	plans    *fakePlanRepo
	tasks    *fakeTaskRepo
	users    *fakeUserRepo
	notifier *fakeNotifier
}

func newFixture(policy EmptyPermitPolicy) *fixture {
	apps := &fakeAppRepo{apps: map[string]*model.App{
		"APP1": {
			Acronym:        "APP1",
			Rnumber:        5,
			PermitCreate:   "devs",
			PermitOpen:     "leads",
			PermitTODOList: "devs",
			PermitDoing:    "devs",
			PermitDone:     "leads",
		},
	}}
	plans := &fakePlanRepo{plans: map[string]bool{"APP1/MVP1": true, "APP1/MVP2": true}}
	users := &fakeUserRepo{members: map[string]map[string]bool{
		"devs":  {"alice": true, "bob": true},
		"leads": {"carol": true},
	}}
	tasks := newFakeTaskRepo(apps)
	notifier := &fakeNotifier{}

	e := NewEngine(apps, plans, tasks, users, notifier, policy)
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{engine: e, apps: apps, plans: plans, tasks: tasks, users: users, notifier: notifier}
}

func (fx *fixture) seedTask(t *testing.T, state model.TaskState, plan string) *model.Task {
	t.Helper()
	id, err := fx.engine.Create(context.Background(), "APP1", "build the thing", "desc", plan, "alice")
	require.NoError(t, err)
	stored := fx.tasks.tasks[id]
	stored.State = state
	return stored
}

func TestCreateAllocatesIDFromAppCounter(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)

	id, err := fx.engine.Create(context.Background(), "APP1", "build the thing", "desc", "MVP1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "APP1_6", id)
	assert.Equal(t, 6, fx.apps.apps["APP1"].Rnumber)

	stored := fx.tasks.tasks[id]
	assert.Equal(t, model.TaskStateOpen, stored.State)
	assert.Equal(t, "alice", stored.Creator)
	assert.Equal(t, "alice", stored.Owner)
	assert.Equal(t, "MVP1", stored.Plan)
	require.Len(t, stored.Notes, 1)
	assert.Equal(t, "has created task", stored.Notes[0].Body)
	assert.Equal(t, model.TaskStateOpen, stored.Notes[0].State)
}

func TestCreateRequiresName(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)

	_, err := fx.engine.Create(context.Background(), "APP1", "", "desc", "", "alice")
	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, fx.tasks.tasks)
}

func TestCreateRequiresGroupMembership(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)

	_, err := fx.engine.Create(context.Background(), "APP1", "build the thing", "desc", "", "carol")
	require.ErrorIs(t, err, model.ErrNotPermitted)
	assert.Empty(t, fx.tasks.tasks)
	assert.Equal(t, 5, fx.apps.apps["APP1"].Rnumber)
}

func TestCreateUnknownPlan(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)

	_, err := fx.engine.Create(context.Background(), "APP1", "build the thing", "desc", "NOPE", "alice")
	require.ErrorIs(t, err, model.ErrPlanNotFound)
}

func TestCreateUnknownApp(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)

	_, err := fx.engine.Create(context.Background(), "NOPE", "build the thing", "desc", "", "alice")
	require.ErrorIs(t, err, model.ErrAppNotFound)
}

func TestTransitionGraph(t *testing.T) {
	cases := []struct {
		action Action
		from   model.TaskState
		to     model.TaskState
		actor  string
	}{
		{ActionRelease, model.TaskStateOpen, model.TaskStateTODO, "carol"},
		{ActionAcknowledge, model.TaskStateTODO, model.TaskStateDoing, "alice"},
		{ActionComplete, model.TaskStateDoing, model.TaskStateDone, "alice"},
		{ActionHalt, model.TaskStateDoing, model.TaskStateTODO, "alice"},
		{ActionApprove, model.TaskStateDone, model.TaskStateClosed, "carol"},
		{ActionReject, model.TaskStateDone, model.TaskStateDoing, "carol"},
	}

	for _, tc := range cases {
		t.Run(string(tc.action), func(t *testing.T) {
			fx := newFixture(EmptyPermitDeny)
			task := fx.seedTask(t, tc.from, "")

			err := fx.engine.Transition(context.Background(), "APP1", task.ID, tc.action, nil, tc.actor)
			require.NoError(t, err)
			assert.Equal(t, tc.to, task.State)
			assert.Equal(t, tc.actor, task.Owner)
			// The transition note is tagged with the pre-transition state.
			assert.Equal(t, tc.from, task.Notes[0].State)
			assert.Equal(t, tc.actor, task.Notes[0].Actor)
		})
	}
}

func TestTransitionStateConflictLeavesTaskUnchanged(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateDoing, "MVP1")
	notesBefore := len(task.Notes)

	err := fx.engine.Transition(context.Background(), "APP1", task.ID, ActionAcknowledge, nil, "alice")

	var conflict *model.StateConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, model.TaskStateTODO, conflict.Expected)
	assert.Equal(t, model.TaskStateDoing, conflict.Actual)
	assert.Equal(t, model.TaskStateDoing, task.State)
	assert.Len(t, task.Notes, notesBefore)
}

func TestTransitionPermissionDeniedLeavesTaskUnchanged(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateTODO, "MVP1")
	notesBefore := len(task.Notes)

	// release is gated by leads; bob is only in devs.
	err := fx.engine.Transition(context.Background(), "APP1", task.ID, ActionRelease, nil, "bob")
	require.ErrorIs(t, err, model.ErrNotPermitted)

	assert.Equal(t, model.TaskStateTODO, task.State)
	assert.Equal(t, "alice", task.Owner)
	assert.Equal(t, "MVP1", task.Plan)
	assert.Len(t, task.Notes, notesBefore)
}

func TestTransitionUnknownAction(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateOpen, "")

	err := fx.engine.Transition(context.Background(), "APP1", task.ID, Action("promote"), nil, "alice")
	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestTransitionUnknownTask(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)

	err := fx.engine.Transition(context.Background(), "APP1", "APP1_99", ActionRelease, nil, "carol")
	require.ErrorIs(t, err, model.ErrTaskNotFound)
}

func TestTransitionTaskFromOtherApp(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	fx.apps.apps["APP2"] = &model.App{Acronym: "APP2", PermitOpen: "leads"}
	task := fx.seedTask(t, model.TaskStateOpen, "")

	err := fx.engine.Transition(context.Background(), "APP2", task.ID, ActionRelease, nil, "carol")
	require.ErrorIs(t, err, model.ErrTaskNotFound)
}

func TestRejectWithClearedPlan(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateDone, "MVP1")

	empty := ""
	err := fx.engine.Transition(context.Background(), "APP1", task.ID, ActionReject, &empty, "carol")
	require.NoError(t, err)

	assert.Equal(t, model.TaskStateDoing, task.State)
	assert.Equal(t, "", task.Plan)
	// Newest-first: transition note above the plan note.
	require.GreaterOrEqual(t, len(task.Notes), 2)
	assert.Equal(t, "has rejected the task and moved it back to Doing", task.Notes[0].Body)
	assert.Equal(t, "has removed the plan", task.Notes[1].Body)
}

func TestRejectWithReplacedPlan(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateDone, "MVP1")

	newPlan := "MVP2"
	err := fx.engine.Transition(context.Background(), "APP1", task.ID, ActionReject, &newPlan, "carol")
	require.NoError(t, err)

	assert.Equal(t, "MVP2", task.Plan)
	assert.Equal(t, "has updated the plan to MVP2", task.Notes[1].Body)
}

func TestRejectWithUnchangedPlanAddsNoPlanNote(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateDone, "MVP1")
	notesBefore := len(task.Notes)

	same := "MVP1"
	err := fx.engine.Transition(context.Background(), "APP1", task.ID, ActionReject, &same, "carol")
	require.NoError(t, err)
	assert.Len(t, task.Notes, notesBefore+1)
}

func TestRejectWithUnknownPlan(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateDone, "MVP1")

	bogus := "NOPE"
	err := fx.engine.Transition(context.Background(), "APP1", task.ID, ActionReject, &bogus, "carol")
	require.ErrorIs(t, err, model.ErrPlanNotFound)
	assert.Equal(t, model.TaskStateDone, task.State)
	assert.Equal(t, "MVP1", task.Plan)
}

func TestPlanIgnoredOnActionsThatDisallowIt(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateTODO, "MVP1")

	newPlan := "MVP2"
	err := fx.engine.Transition(context.Background(), "APP1", task.ID, ActionAcknowledge, &newPlan, "alice")
	require.NoError(t, err)
	assert.Equal(t, "MVP1", task.Plan)
}

func TestCompleteTriggersNotifier(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateDoing, "")

	err := fx.engine.Transition(context.Background(), "APP1", task.ID, ActionComplete, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, fx.notifier.completed)
}

func TestOtherTransitionsDoNotNotify(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateOpen, "")

	require.NoError(t, fx.engine.Transition(context.Background(), "APP1", task.ID, ActionRelease, nil, "carol"))
	require.NoError(t, fx.engine.Transition(context.Background(), "APP1", task.ID, ActionAcknowledge, nil, "alice"))
	require.NoError(t, fx.engine.Transition(context.Background(), "APP1", task.ID, ActionHalt, nil, "alice"))
	assert.Empty(t, fx.notifier.completed)
}

func TestEmptyPermitPolicy(t *testing.T) {
	t.Run("deny", func(t *testing.T) {
		fx := newFixture(EmptyPermitDeny)
		fx.apps.apps["APP1"].PermitOpen = ""
		task := fx.seedTask(t, model.TaskStateOpen, "")

		err := fx.engine.Transition(context.Background(), "APP1", task.ID, ActionRelease, nil, "carol")
		require.ErrorIs(t, err, model.ErrNotPermitted)
	})

	t.Run("allow", func(t *testing.T) {
		fx := newFixture(EmptyPermitAllow)
		fx.apps.apps["APP1"].PermitOpen = ""
		task := fx.seedTask(t, model.TaskStateOpen, "")

		err := fx.engine.Transition(context.Background(), "APP1", task.ID, ActionRelease, nil, "carol")
		require.NoError(t, err)
		assert.Equal(t, model.TaskStateTODO, task.State)
	})
}

func TestAddNote(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateDoing, "")

	err := fx.engine.AddNote(context.Background(), "APP1", task.ID, "halfway there", model.TaskStateDoing, "bob")
	require.NoError(t, err)

	assert.Equal(t, "bob", task.Owner)
	assert.Equal(t, model.TaskStateDoing, task.State)
	assert.Equal(t, "halfway there", task.Notes[0].Body)
	assert.Equal(t, "bob", task.Notes[0].Actor)
}

func TestAddNoteTaggedWithStoredStateNotHint(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateDone, "")

	// The guard group comes from the hint (doing -> devs), even though
	// the task has already moved on to done.
	err := fx.engine.AddNote(context.Background(), "APP1", task.ID, "stale view", model.TaskStateDoing, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStateDone, task.Notes[0].State)
}

func TestAddNotePermissionFromHint(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateDoing, "")

	// done is gated by leads; bob is only in devs.
	err := fx.engine.AddNote(context.Background(), "APP1", task.ID, "sneaky", model.TaskStateDone, "bob")
	require.ErrorIs(t, err, model.ErrNotPermitted)
}

func TestAddNoteRejectsClosedHint(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateClosed, "")

	err := fx.engine.AddNote(context.Background(), "APP1", task.ID, "too late", model.TaskStateClosed, "carol")
	require.ErrorIs(t, err, model.ErrNotPermitted)
}

func TestUpdatePlan(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateTODO, "MVP1")

	err := fx.engine.UpdatePlan(context.Background(), "APP1", task.ID, "MVP2", "alice")
	require.NoError(t, err)
	assert.Equal(t, "MVP2", task.Plan)
	assert.Equal(t, "has updated the plan to MVP2", task.Notes[0].Body)
}

func TestUpdatePlanOnlyInOpenOrTODO(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateDoing, "MVP1")

	err := fx.engine.UpdatePlan(context.Background(), "APP1", task.ID, "MVP2", "alice")
	var validationErr *model.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "MVP1", task.Plan)
}

func TestUpdatePlanNoopWhenUnchanged(t *testing.T) {
	fx := newFixture(EmptyPermitDeny)
	task := fx.seedTask(t, model.TaskStateTODO, "MVP1")
	notesBefore := len(task.Notes)

	err := fx.engine.UpdatePlan(context.Background(), "APP1", task.ID, "MVP1", "alice")
	require.NoError(t, err)
	assert.Len(t, task.Notes, notesBefore)
}
