package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/gomail.v2"

	"github.com/taskboard-app/taskboard/internal/model"
)

const mailSendDelay = 200 * time.Millisecond

// Mailer sends one email per recipient over SMTP. A failed send is
// retried a few times with backoff; one recipient failing never stops
// delivery to the rest.
type Mailer struct {
	dialer    *gomail.Dialer
	from      string
	sendDelay time.Duration
}

func NewMailer(host string, port int, username, password, from string) *Mailer {
	return &Mailer{
		dialer:    gomail.NewDialer(host, port, username, password),
		from:      from,
		sendDelay: mailSendDelay,
	}
}

func (m *Mailer) Name() string { return "email" }

func (m *Mailer) Notify(ctx context.Context, app model.App, task model.Task, audience []model.User) []Result {
	subject := fmt.Sprintf("[%s] Task %s is %s", app.Acronym, task.ID, stateTitle(task.State))
	body := messageBody(task)

	results := make([]Result, 0, len(audience))
	for i, u := range audience {
		if i > 0 {
			// Keep a small gap between sends so a large audience does
			// not hammer the SMTP relay.
			time.Sleep(m.sendDelay)
		}
		results = append(results, Result{
			Channel:   m.Name(),
			Recipient: u.Email,
			Err:       m.send(ctx, u.Email, subject, body),
		})
	}
	return results
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	op := func() error { return m.dialer.DialAndSend(msg) }
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(op, bo)
}

func messageBody(task model.Task) string {
	plan := task.Plan
	if plan == "" {
		plan = "-"
	}
	return fmt.Sprintf(
		"Task %s is ready for review.\n\n"+
			"Name: %s\n"+
			"Description: %s\n"+
			"Plan: %s\n"+
			"State: %s\n"+
			"Creator: %s\n"+
			"Owner: %s\n"+
			"Created: %s\n",
		task.ID,
		task.Name,
		task.Description,
		plan,
		stateTitle(task.State),
		task.Creator,
		task.Owner,
		task.CreateDate.Format("2006-01-02"),
	)
}

func stateTitle(state model.TaskState) string {
	return cases.Title(language.English).String(string(state))
}
