package server

import (
	"encoding/json"
	"net/http"

	"github.com/taskboard-app/taskboard/internal/model"
	"github.com/taskboard-app/taskboard/internal/task"
)

type notePayload struct {
	CreatedAt string `json:"createdAt"`
	State     string `json:"state"`
	Actor     string `json:"actor"`
	Body      string `json:"body"`
}

type taskPayload struct {
	ID          string        `json:"id"`
	AppAcronym  string        `json:"appAcronym"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Plan        string        `json:"plan"`
	State       string        `json:"state"`
	Creator     string        `json:"creator"`
	Owner       string        `json:"owner"`
	CreateDate  string        `json:"createDate"`
	Notes       string        `json:"notes"`
	NoteEntries []notePayload `json:"noteEntries"`
}

func toTaskPayload(t model.Task) taskPayload {
	entries := make([]notePayload, 0, len(t.Notes))
	for _, n := range t.Notes {
		entries = append(entries, notePayload{
			CreatedAt: n.CreatedAt.Format("2006-01-02 15:04:05"),
			State:     string(n.State),
			Actor:     n.Actor,
			Body:      n.Body,
		})
	}
	return taskPayload{
		ID:          t.ID,
		AppAcronym:  t.AppAcronym,
		Name:        t.Name,
		Description: t.Description,
		Plan:        t.Plan,
		State:       string(t.State),
		Creator:     t.Creator,
		Owner:       t.Owner,
		CreateDate:  t.CreateDate.Format("2006-01-02"),
		Notes:       model.RenderNotes(t.Notes),
		NoteEntries: entries,
	}
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Plan        string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("invalid request body"))
		return
	}

	id, _ := IdentityFrom(r.Context())
	taskID, err := s.engine.Create(r.Context(), r.PathValue("acronym"), req.Name, req.Description, req.Plan, id.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "taskId": taskID})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.engine.List(r.Context(), r.PathValue("acronym"))
	if err != nil {
		writeError(w, err)
		return
	}

	payload := make([]taskPayload, 0, len(tasks))
	for _, t := range tasks {
		payload = append(payload, toTaskPayload(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tasks": payload})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Get(r.Context(), r.PathValue("acronym"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "task": toTaskPayload(*t)})
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string  `json:"action"`
		Plan   *string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("invalid request body"))
		return
	}

	id, _ := IdentityFrom(r.Context())
	err := s.engine.Transition(r.Context(), r.PathValue("acronym"), r.PathValue("id"), task.Action(req.Action), req.Plan, id.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleUpdateTaskPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("invalid request body"))
		return
	}

	id, _ := IdentityFrom(r.Context())
	err := s.engine.UpdatePlan(r.Context(), r.PathValue("acronym"), r.PathValue("id"), req.Plan, id.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("invalid request body"))
		return
	}

	id, _ := IdentityFrom(r.Context())
	err := s.engine.AddNote(r.Context(), r.PathValue("acronym"), r.PathValue("id"), req.Notes, model.TaskState(req.State), id.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
