package model

import (
	"context"
	"errors"
	"time"
)

// Plan is a milestone within an app, identified by (AppAcronym, Name).
type Plan struct {
	AppAcronym string
	Name       string
	StartDate  time.Time
	EndDate    time.Time
}

var (
	ErrPlanNotFound = errors.New("plan not found")
	ErrPlanExists   = errors.New("plan already exists")
)

type PlanRepository interface {
	CreatePlan(ctx context.Context, plan *Plan) error
	GetPlan(ctx context.Context, appAcronym, name string) (*Plan, error)
	FetchPlans(ctx context.Context, appAcronym string) ([]Plan, error)
}
