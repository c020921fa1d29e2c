package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	"github.com/taskboard-app/taskboard/internal/model"
)

var acronymRE = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

const dateLayout = "2006-01-02"

type appPayload struct {
	Acronym        string `json:"acronym"`
	Description    string `json:"description"`
	Rnumber        int    `json:"rnumber"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	PermitCreate   string `json:"permitCreate"`
	PermitOpen     string `json:"permitOpen"`
	PermitTODOList string `json:"permitTodoList"`
	PermitDoing    string `json:"permitDoing"`
	PermitDone     string `json:"permitDone"`
}

func toAppPayload(a model.App) appPayload {
	return appPayload{
		Acronym:        a.Acronym,
		Description:    a.Description,
		Rnumber:        a.Rnumber,
		StartDate:      a.StartDate.Format(dateLayout),
		EndDate:        a.EndDate.Format(dateLayout),
		PermitCreate:   a.PermitCreate,
		PermitOpen:     a.PermitOpen,
		PermitTODOList: a.PermitTODOList,
		PermitDoing:    a.PermitDoing,
		PermitDone:     a.PermitDone,
	}
}

// parseDateRange validates both dates and their ordering.
func parseDateRange(start, end string) (time.Time, time.Time, error) {
	if start == "" {
		return time.Time{}, time.Time{}, model.Validationf("start date is required")
	}
	if end == "" {
		return time.Time{}, time.Time{}, model.Validationf("end date is required")
	}
	startDate, err := time.Parse(dateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, model.Validationf("invalid start date format, expected YYYY-MM-DD")
	}
	endDate, err := time.Parse(dateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, model.Validationf("invalid end date format, expected YYYY-MM-DD")
	}
	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, model.Validationf("end date cannot be before start date")
	}
	return startDate, endDate, nil
}

func (s *Server) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Acronym        string `json:"acronym"`
		Description    string `json:"description"`
		Rnumber        int    `json:"rnumber"`
		StartDate      string `json:"startDate"`
		EndDate        string `json:"endDate"`
		PermitCreate   string `json:"permitCreate"`
		PermitOpen     string `json:"permitOpen"`
		PermitTODOList string `json:"permitTodoList"`
		PermitDoing    string `json:"permitDoing"`
		PermitDone     string `json:"permitDone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("invalid request body"))
		return
	}

	if req.Acronym == "" {
		writeError(w, model.Validationf("app acronym is required"))
		return
	}
	if !acronymRE.MatchString(req.Acronym) {
		writeError(w, model.Validationf("app acronym can only contain alphanumeric characters and underscores"))
		return
	}
	if req.Rnumber <= 0 {
		writeError(w, model.Validationf("app rnumber must be a positive integer"))
		return
	}
	startDate, endDate, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, err)
		return
	}

	app := &model.App{
		Acronym:        req.Acronym,
		Description:    req.Description,
		Rnumber:        req.Rnumber,
		StartDate:      startDate,
		EndDate:        endDate,
		PermitCreate:   req.PermitCreate,
		PermitOpen:     req.PermitOpen,
		PermitTODOList: req.PermitTODOList,
		PermitDoing:    req.PermitDoing,
		PermitDone:     req.PermitDone,
	}
	if err := s.apps.CreateApp(r.Context(), app); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "app": toAppPayload(*app)})
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.apps.FetchApps(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	payload := make([]appPayload, 0, len(apps))
	for _, a := range apps {
		payload = append(payload, toAppPayload(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "apps": payload})
}

func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	app, err := s.apps.GetAppByAcronym(r.Context(), r.PathValue("acronym"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "app": toAppPayload(*app)})
}

func (s *Server) handleEditApp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDate      string `json:"startDate"`
		EndDate        string `json:"endDate"`
		PermitCreate   string `json:"permitCreate"`
		PermitOpen     string `json:"permitOpen"`
		PermitTODOList string `json:"permitTodoList"`
		PermitDoing    string `json:"permitDoing"`
		PermitDone     string `json:"permitDone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("invalid request body"))
		return
	}

	startDate, endDate, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, err)
		return
	}

	app, err := s.apps.GetAppByAcronym(r.Context(), r.PathValue("acronym"))
	if err != nil {
		writeError(w, err)
		return
	}

	app.StartDate = startDate
	app.EndDate = endDate
	app.PermitCreate = req.PermitCreate
	app.PermitOpen = req.PermitOpen
	app.PermitTODOList = req.PermitTODOList
	app.PermitDoing = req.PermitDoing
	app.PermitDone = req.PermitDone
	if err := s.apps.UpdateApp(r.Context(), app); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "app": toAppPayload(*app)})
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.Validationf("invalid request body"))
		return
	}

	if req.Name == "" {
		writeError(w, model.Validationf("plan name is required"))
		return
	}
	startDate, endDate, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, err)
		return
	}

	acronym := r.PathValue("acronym")
	if _, err := s.apps.GetAppByAcronym(r.Context(), acronym); err != nil {
		writeError(w, err)
		return
	}

	plan := &model.Plan{
		AppAcronym: acronym,
		Name:       req.Name,
		StartDate:  startDate,
		EndDate:    endDate,
	}
	if err := s.plans.CreatePlan(r.Context(), plan); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.FetchPlans(r.Context(), r.PathValue("acronym"))
	if err != nil {
		writeError(w, err)
		return
	}

	type planPayload struct {
		AppAcronym string `json:"appAcronym"`
		Name       string `json:"name"`
		StartDate  string `json:"startDate"`
		EndDate    string `json:"endDate"`
	}
	payload := make([]planPayload, 0, len(plans))
	for _, p := range plans {
		payload = append(payload, planPayload{
			AppAcronym: p.AppAcronym,
			Name:       p.Name,
			StartDate:  p.StartDate.Format(dateLayout),
			EndDate:    p.EndDate.Format(dateLayout),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "plans": payload})
}
