package model

import (
	"context"
	"errors"
	"time"
)

// App owns tasks and plans. Rnumber is the running request counter used
// only to allocate task identifiers; the Permit fields name the group
// gating each workflow action, empty meaning no group is assigned.
type App struct {
	Acronym     string
	Description string
	Rnumber     int
	StartDate   time.Time
	EndDate     time.Time

	PermitCreate   string
	PermitOpen     string
	PermitTODOList string
	PermitDoing    string
	PermitDone     string
}

var (
	ErrAppNotFound = errors.New("app not found")
	ErrAppExists   = errors.New("app already exists")
)

type AppRepository interface {
	CreateApp(ctx context.Context, app *App) error
	GetAppByAcronym(ctx context.Context, acronym string) (*App, error)
	FetchApps(ctx context.Context) ([]App, error)
	// UpdateApp persists dates and permit groups. Acronym and Rnumber
	// are not editable through this path.
	UpdateApp(ctx context.Context, app *App) error
}
