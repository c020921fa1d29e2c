// Package server exposes the REST API over the workflow engine.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/taskboard-app/taskboard/internal/model"
	"github.com/taskboard-app/taskboard/internal/task"
)

type Server struct {
	engine *task.Engine
	apps   model.AppRepository
	plans  model.PlanRepository
	auth   *Authenticator

	httpServer *http.Server
	addr       string
}

func New(addr string, engine *task.Engine, apps model.AppRepository, plans model.PlanRepository, auth *Authenticator) *Server {
	return &Server{
		engine: engine,
		apps:   apps,
		plans:  plans,
		auth:   auth,
		addr:   addr,
	}
}

// Handler builds the route table. Everything under /api requires a
// valid identity; /health does not.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/apps", s.handleCreateApp)
	api.HandleFunc("GET /api/apps", s.handleListApps)
	api.HandleFunc("GET /api/apps/{acronym}", s.handleGetApp)
	api.HandleFunc("PUT /api/apps/{acronym}", s.handleEditApp)

	api.HandleFunc("POST /api/apps/{acronym}/plans", s.handleCreatePlan)
	api.HandleFunc("GET /api/apps/{acronym}/plans", s.handleListPlans)

	api.HandleFunc("POST /api/apps/{acronym}/tasks", s.handleCreateTask)
	api.HandleFunc("GET /api/apps/{acronym}/tasks", s.handleListTasks)
	api.HandleFunc("GET /api/apps/{acronym}/tasks/{id}", s.handleGetTask)
	api.HandleFunc("PUT /api/apps/{acronym}/tasks/{id}/transition", s.handleTransition)
	api.HandleFunc("PUT /api/apps/{acronym}/tasks/{id}/plan", s.handleUpdateTaskPlan)
	api.HandleFunc("PUT /api/apps/{acronym}/tasks/{id}/notes", s.handleAddNote)

	mux.Handle("/api/", s.auth.Middleware(api))
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("ERROR writing response: %s", err)
	}
}

// writeError maps domain errors to the response taxonomy: validation
// and state conflicts to 400, permission failures to 403, missing
// entities to 404, everything unexpected to a generic 500.
func writeError(w http.ResponseWriter, err error) {
	var status int
	message := err.Error()

	var validationErr *model.ValidationError
	var conflictErr *model.StateConflictError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &conflictErr),
		errors.Is(err, model.ErrAppExists), errors.Is(err, model.ErrPlanExists):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotPermitted):
		status = http.StatusForbidden
	case errors.Is(err, model.ErrTaskNotFound), errors.Is(err, model.ErrAppNotFound),
		errors.Is(err, model.ErrPlanNotFound), errors.Is(err, model.ErrUserNotFound):
		status = http.StatusNotFound
	default:
		log.Printf("ERROR internal: %s", err)
		status = http.StatusInternalServerError
		message = "internal server error"
	}

	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
