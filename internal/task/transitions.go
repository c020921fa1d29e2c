package task

import "github.com/taskboard-app/taskboard/internal/model"

// Action names a guarded step along the workflow graph:
//
//	open -> todo -> doing -> done -> closed
//	          ^------' |      |
//	          |        '------' (reject)
//	          '---------------' (halt is doing->todo)
type Action string

const (
	ActionRelease     Action = "release"     // open -> todo
	ActionAcknowledge Action = "acknowledge" // todo -> doing
	ActionComplete    Action = "complete"    // doing -> done
	ActionHalt        Action = "halt"        // doing -> todo
	ActionApprove     Action = "approve"     // done -> closed
	ActionReject      Action = "reject"      // done -> doing
)

type transition struct {
	from model.TaskState
	to   model.TaskState
	// permit selects the app group field gating this action.
	permit func(*model.App) string
	// noteBody is the audit entry text, written after the actor name.
	noteBody string
	// allowPlanChange marks transitions that may carry a plan
	// (re)assignment in the same call.
	allowPlanChange bool
}

var transitions = map[Action]transition{
	ActionRelease: {
		from:            model.TaskStateOpen,
		to:              model.TaskStateTODO,
		permit:          func(a *model.App) string { return a.PermitOpen },
		noteBody:        "has released the task",
		allowPlanChange: true,
	},
	ActionAcknowledge: {
		from:     model.TaskStateTODO,
		to:       model.TaskStateDoing,
		permit:   func(a *model.App) string { return a.PermitTODOList },
		noteBody: "has acknowledged the task",
	},
	ActionComplete: {
		from:     model.TaskStateDoing,
		to:       model.TaskStateDone,
		permit:   func(a *model.App) string { return a.PermitDoing },
		noteBody: "has completed the task and sent it for review",
	},
	ActionHalt: {
		from:     model.TaskStateDoing,
		to:       model.TaskStateTODO,
		permit:   func(a *model.App) string { return a.PermitDoing },
		noteBody: "has halted the task and moved it back to To-Do",
	},
	ActionApprove: {
		from:     model.TaskStateDone,
		to:       model.TaskStateClosed,
		permit:   func(a *model.App) string { return a.PermitDone },
		noteBody: "has approved the task and closed it",
	},
	ActionReject: {
		from:            model.TaskStateDone,
		to:              model.TaskStateDoing,
		permit:          func(a *model.App) string { return a.PermitDone },
		noteBody:        "has rejected the task and moved it back to Doing",
		allowPlanChange: true,
	},
}

// permitForState selects the group gating actions on a task sitting in
// the given state. Used for note additions, which are permitted to
// whoever may act on the task where it currently is. Closed tasks take
// no further notes.
func permitForState(app *model.App, state model.TaskState) (string, bool) {
	switch state {
	case model.TaskStateOpen:
		return app.PermitOpen, true
	case model.TaskStateTODO:
		return app.PermitTODOList, true
	case model.TaskStateDoing:
		return app.PermitDoing, true
	case model.TaskStateDone:
		return app.PermitDone, true
	}
	return "", false
}
