// Package notify delivers best-effort completion notifications. A
// committed doing -> done transition hands a job to the dispatcher
// queue; a background worker resolves the audience and fans out to the
// configured channels. Nothing here ever fails or delays the transition
// that triggered it.
package notify

import (
	"context"
	"log"

	"github.com/taskboard-app/taskboard/internal/model"
)

// Result records the outcome of one delivery attempt.
type Result struct {
	Channel   string
	Recipient string
	Err       error
}

// Channel delivers one task-completion notification to an audience.
// Implementations isolate per-recipient failures and report them in the
// results rather than aborting.
type Channel interface {
	Name() string
	Notify(ctx context.Context, app model.App, task model.Task, audience []model.User) []Result
}

type job struct {
	app  model.App
	task model.Task
}

type Dispatcher struct {
	users    model.UserRepository
	channels []Channel
	queue    chan job
}

func NewDispatcher(users model.UserRepository, channels []Channel) *Dispatcher {
	return &Dispatcher{
		users:    users,
		channels: channels,
		queue:    make(chan job, 64),
	}
}

// TaskCompleted enqueues a notification job without blocking the
// caller. When the queue is full the job is dropped and logged.
func (d *Dispatcher) TaskCompleted(app model.App, task model.Task) {
	select {
	case d.queue <- job{app: app, task: task}:
	default:
		log.Printf("WARN notification queue full, dropping notification for task %s", task.ID)
	}
}

// Run processes the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-d.queue:
			d.dispatch(ctx, j)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, j job) {
	if j.app.PermitDone == "" {
		log.Printf("DEBUG app %s has no done-permit group, skipping notification for task %s", j.app.Acronym, j.task.ID)
		return
	}

	members, err := d.users.FetchActiveGroupMembers(ctx, j.app.PermitDone)
	if err != nil {
		log.Printf("ERROR could not resolve notification audience for task %s: %s", j.task.ID, err)
		return
	}
	audience := dedupeByEmail(members)
	if len(audience) == 0 {
		log.Printf("DEBUG no notification audience for task %s in group %s", j.task.ID, j.app.PermitDone)
		return
	}

	for _, ch := range d.channels {
		sent := 0
		for _, res := range ch.Notify(ctx, j.app, j.task, audience) {
			if res.Err != nil {
				log.Printf("ERROR %s notification to %s for task %s failed: %s", res.Channel, res.Recipient, j.task.ID, res.Err)
				continue
			}
			sent++
		}
		log.Printf("INFO task %s: %d notification(s) sent via %s", j.task.ID, sent, ch.Name())
	}
}

func dedupeByEmail(users []model.User) []model.User {
	seen := make(map[string]bool, len(users))
	out := users[:0]
	for _, u := range users {
		if seen[u.Email] {
			continue
		}
		seen[u.Email] = true
		out = append(out, u)
	}
	return out
}
