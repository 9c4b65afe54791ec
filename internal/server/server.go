// Package server exposes the HTTP API: conciergerie account and home
// management, worker registration and approval, the mission lifecycle, the
// notification queue, and the event feed.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"homecrew/internal/domain"
	"homecrew/internal/engine"
	"homecrew/internal/outbox"
	"homecrew/internal/quota"
	"homecrew/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Queue    *outbox.Queue
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"quota_exceeded"`
	Message string         `json:"message" example:"daily quota exceeded on 2026-09-01"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError is the error envelope every failure responds with.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Homecrew API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Homecrew API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerConciergeries(group, cfg.Engine)
	registerHomes(group, cfg.Engine)
	registerEmployees(group, cfg.Engine)
	registerMissions(group, cfg.Engine)
	registerQueue(group, cfg.Queue)
	registerEvents(group, cfg.Engine)
	registerMe(group)
	if cfg.Auth.DevLogin {
		registerDevAuth(group, cfg.Auth)
	}
	registerOpenAPI(router, api, basePath)
	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine results onto HTTP error codes a client can branch
// on.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var na engine.NotAllowedError
	if errors.As(err, &na) {
		return newAPIError(http.StatusForbidden, "not_on_allow_list", err.Error(), map[string]any{"employee_id": na.EmployeeID})
	}
	var qe engine.QuotaExceededError
	if errors.As(err, &qe) {
		return newAPIError(http.StatusUnprocessableEntity, "quota_exceeded", err.Error(), map[string]any{
			"day":            qe.Day.Format("2006-01-02"),
			"held_points":    qe.Load,
			"mission_points": qe.PerDay,
			"cap":            qe.Cap,
		})
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, repo.ErrMissionTaken):
		return newAPIError(http.StatusConflict, "mission_taken", err.Error(), nil)
	case errors.Is(err, engine.ErrNotOwner):
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, engine.ErrNotAssignedWorker):
		return newAPIError(http.StatusForbidden, "not_assigned", err.Error(), nil)
	case errors.Is(err, engine.ErrEmployeeNotApproved):
		return newAPIError(http.StatusForbidden, "not_approved", err.Error(), nil)
	case errors.Is(err, engine.ErrInvalidTransition):
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.Is(err, engine.ErrDuplicateMission):
		return newAPIError(http.StatusConflict, "duplicate_mission", err.Error(), nil)
	case errors.Is(err, engine.ErrHomeTitleTaken):
		return newAPIError(http.StatusConflict, "title_taken", err.Error(), nil)
	case errors.Is(err, engine.ErrHomeInUse):
		return newAPIError(http.StatusConflict, "home_in_use", err.Error(), nil)
	case errors.Is(err, engine.ErrEmailTaken):
		return newAPIError(http.StatusConflict, "email_taken", err.Error(), nil)
	case errors.Is(err, engine.ErrTooEarlyToStart):
		return newAPIError(http.StatusUnprocessableEntity, "too_early", err.Error(), nil)
	case errors.Is(err, engine.ErrBadVerificationCode):
		return newAPIError(http.StatusUnprocessableEntity, "bad_code", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") ||
		strings.Contains(lowered, "unknown") || strings.Contains(lowered, "must"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerConciergeries(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-conciergerie",
		Method:        http.MethodPost,
		Path:          "/conciergeries",
		Summary:       "Register a conciergerie",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body RegisterConciergerieRequest `json:"body"`
	}) (*struct {
		Body ConciergerieResponse `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		c, err := e.RegisterConciergerie(ctx, input.Body.Name, input.Body.Email)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConciergerieResponse `json:"body"`
		}{Body: ConciergerieResponse{Name: c.Name, Email: c.Email, CreatedAt: c.CreatedAt}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-conciergeries",
		Method:      http.MethodGet,
		Path:        "/conciergeries",
		Summary:     "List conciergeries",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ConciergerieResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListConciergeries(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := []ConciergerieResponse{}
		for _, c := range items {
			out = append(out, ConciergerieResponse{Name: c.Name, Email: c.Email, CreatedAt: c.CreatedAt})
		}
		return &struct {
			Body []ConciergerieResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerHomes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-home",
		Method:        http.MethodPost,
		Path:          "/homes",
		Summary:       "Create a home",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body HomeRequest `json:"body"`
	}) (*struct {
		Body HomeResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleConciergerie)
		if authErr != nil {
			return nil, authErr
		}
		h, err := e.CreateHome(ctx, p.ActorID, homeOptions(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HomeResponse `json:"body"`
		}{Body: homeResponse(h)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-homes",
		Method:      http.MethodGet,
		Path:        "/homes",
		Summary:     "List homes",
	}, func(ctx context.Context, input *struct {
		Conciergerie string `query:"conciergerie"`
	}) (*struct {
		Body []HomeResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		owner := input.Conciergerie
		if owner == "" && p.Role == RoleConciergerie {
			owner = p.ActorID
		}
		items, err := e.Repo.ListHomes(ctx, owner)
		if err != nil {
			return nil, handleError(err)
		}
		out := []HomeResponse{}
		for _, h := range items {
			out = append(out, homeResponse(h))
		}
		return &struct {
			Body []HomeResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-home",
		Method:      http.MethodGet,
		Path:        "/homes/{home_id}",
		Summary:     "Get a home",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		HomeID string `path:"home_id"`
	}) (*struct {
		Body HomeResponse `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		h, err := e.Repo.GetHome(ctx, input.HomeID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HomeResponse `json:"body"`
		}{Body: homeResponse(h)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-home",
		Method:      http.MethodPut,
		Path:        "/homes/{home_id}",
		Summary:     "Update a home",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		HomeID string      `path:"home_id"`
		Body   HomeRequest `json:"body"`
	}) (*struct {
		Body HomeResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleConciergerie)
		if authErr != nil {
			return nil, authErr
		}
		h, err := e.UpdateHome(ctx, p.ActorID, input.HomeID, homeOptions(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HomeResponse `json:"body"`
		}{Body: homeResponse(h)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-home",
		Method:        http.MethodDelete,
		Path:          "/homes/{home_id}",
		Summary:       "Delete a home",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		HomeID string `path:"home_id"`
	}) (*struct{}, error) {
		p, authErr := requireRole(ctx, RoleConciergerie)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteHome(ctx, p.ActorID, input.HomeID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEmployees(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-employee",
		Method:        http.MethodPost,
		Path:          "/employees",
		Summary:       "Register a worker",
		Description:   "Open signup. The returned device key is shown exactly once.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body RegisterEmployeeRequest `json:"body"`
	}) (*struct {
		Body RegisterEmployeeResponse `json:"body"`
	}, error) {
		emp, key, err := e.RegisterEmployee(ctx, engine.EmployeeRegistration{
			Name:                  input.Body.Name,
			Email:                 input.Body.Email,
			Phone:                 input.Body.Phone,
			PreferredConciergerie: input.Body.PreferredConciergerie,
			DeviceName:            input.Body.DeviceName,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RegisterEmployeeResponse `json:"body"`
		}{Body: RegisterEmployeeResponse{Employee: employeeResponse(emp), DeviceKey: key}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-employees",
		Method:      http.MethodGet,
		Path:        "/employees",
		Summary:     "List workers",
	}, func(ctx context.Context, input *struct {
		Approval string `query:"approval" enum:"pending,accepted,rejected,"`
	}) (*struct {
		Body []EmployeeResponse `json:"body"`
	}, error) {
		if _, authErr := requireRole(ctx, RoleConciergerie); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListEmployees(ctx, input.Approval)
		if err != nil {
			return nil, handleError(err)
		}
		out := []EmployeeResponse{}
		for _, emp := range items {
			out = append(out, employeeResponse(emp))
		}
		return &struct {
			Body []EmployeeResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-employee",
		Method:      http.MethodGet,
		Path:        "/employees/{employee_id}",
		Summary:     "Get a worker",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EmployeeID string `path:"employee_id"`
	}) (*struct {
		Body EmployeeResponse `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		emp, err := e.Repo.GetEmployee(ctx, input.EmployeeID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EmployeeResponse `json:"body"`
		}{Body: employeeResponse(emp)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-employee",
		Method:      http.MethodPost,
		Path:        "/employees/{employee_id}/verify",
		Summary:     "Confirm a worker's email",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		EmployeeID string                `path:"employee_id"`
		Body       VerifyEmployeeRequest `json:"body"`
	}) (*struct {
		Body EmployeeResponse `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		emp, err := e.VerifyEmployee(ctx, input.EmployeeID, input.Body.Code)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EmployeeResponse `json:"body"`
		}{Body: employeeResponse(emp)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-employee-approval",
		Method:      http.MethodPut,
		Path:        "/employees/{employee_id}/approval",
		Summary:     "Approve or reject a worker",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EmployeeID string          `path:"employee_id"`
		Body       ApprovalRequest `json:"body"`
	}) (*struct {
		Body EmployeeResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleConciergerie)
		if authErr != nil {
			return nil, authErr
		}
		emp, err := e.SetEmployeeApproval(ctx, p.ActorID, input.EmployeeID, input.Body.Approval)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EmployeeResponse `json:"body"`
		}{Body: employeeResponse(emp)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-employee-device",
		Method:        http.MethodPost,
		Path:          "/employees/{employee_id}/devices",
		Summary:       "Issue an extra device key",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EmployeeID string           `path:"employee_id"`
		Body       AddDeviceRequest `json:"body"`
	}) (*struct {
		Body AddDeviceResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if p.Role == RoleEmployee && p.ActorID != input.EmployeeID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "a worker can only manage their own devices", nil)
		}
		key, raw, err := e.AddEmployeeDevice(ctx, input.EmployeeID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AddDeviceResponse `json:"body"`
		}{Body: AddDeviceResponse{
			Device: DeviceResponse{ID: key.ID, Name: key.Name, CreatedAt: key.CreatedAt},
			Key:    raw,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-employee-devices",
		Method:      http.MethodGet,
		Path:        "/employees/{employee_id}/devices",
		Summary:     "List a worker's device keys",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EmployeeID string `path:"employee_id"`
	}) (*struct {
		Body []DeviceResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if p.Role == RoleEmployee && p.ActorID != input.EmployeeID {
			return nil, newAPIError(http.StatusForbidden, "forbidden", "a worker can only manage their own devices", nil)
		}
		keys, err := e.Repo.ListAPIKeys(ctx, input.EmployeeID)
		if err != nil {
			return nil, handleError(err)
		}
		out := []DeviceResponse{}
		for _, k := range keys {
			out = append(out, DeviceResponse{ID: k.ID, Name: k.Name, CreatedAt: k.CreatedAt})
		}
		return &struct {
			Body []DeviceResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "employee-load",
		Method:      http.MethodGet,
		Path:        "/employees/{employee_id}/load",
		Summary:     "Held points for one day",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EmployeeID string `path:"employee_id"`
		Day        string `query:"day" doc:"Day as YYYY-MM-DD, defaults to today"`
	}) (*struct {
		Body LoadResponse `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		if _, err := e.Repo.GetEmployee(ctx, input.EmployeeID); err != nil {
			return nil, handleError(err)
		}
		day := e.Now().UTC()
		if input.Day != "" {
			parsed, err := time.Parse("2006-01-02", input.Day)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid day", map[string]any{"day": input.Day})
			}
			day = parsed
		}
		points, err := e.EmployeeLoad(ctx, input.EmployeeID, day)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoadResponse `json:"body"`
		}{Body: LoadResponse{
			EmployeeID: input.EmployeeID,
			Day:        day.Format("2006-01-02"),
			Points:     points,
			Cap:        e.Config.Quota.DailyCap,
		}}, nil
	})
}

func registerMissions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-mission",
		Method:        http.MethodPost,
		Path:          "/missions",
		Summary:       "Post a mission",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateMissionRequest `json:"body"`
	}) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleConciergerie)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.CreateMission(ctx, engine.MissionCreateOptions{
			HomeID:           input.Body.HomeID,
			Tasks:            input.Body.Tasks,
			Start:            input.Body.Start,
			End:              input.Body.End,
			AllowedEmployees: input.Body.AllowedEmployees,
			Actor:            p.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-missions",
		Method:      http.MethodGet,
		Path:        "/missions",
		Summary:     "List missions",
		Description: "Workers see the unassigned pool filtered by allow-list plus their own missions; conciergeries see their own.",
	}, func(ctx context.Context, input *struct {
		Available bool   `query:"available" doc:"Only the unassigned pool"`
		HomeID    string `query:"home_id"`
	}) (*struct {
		Body []MissionResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var items []domain.Mission
		var err error
		switch {
		case input.Available:
			items, err = e.AvailableMissions(ctx, workerID(p))
		case p.Role == RoleEmployee:
			items, err = e.Repo.ListMissions(ctx, repo.MissionFilters{EmployeeID: p.ActorID})
		default:
			items, err = e.Repo.ListMissions(ctx, repo.MissionFilters{Conciergerie: p.ActorID, HomeID: input.HomeID})
		}
		if err != nil {
			return nil, handleError(err)
		}
		out := []MissionResponse{}
		for _, m := range items {
			out = append(out, missionResponse(m))
		}
		return &struct {
			Body []MissionResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-mission",
		Method:      http.MethodGet,
		Path:        "/missions/{mission_id}",
		Summary:     "Get a mission",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		MissionID string `path:"mission_id"`
	}) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		m, err := e.Repo.GetMission(ctx, input.MissionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-mission",
		Method:      http.MethodPatch,
		Path:        "/missions/{mission_id}",
		Summary:     "Edit a mission",
		Description: "Editing an accepted mission returns it to the unassigned pool.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		MissionID string             `path:"mission_id"`
		Body      EditMissionRequest `json:"body"`
	}) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		p, authErr := requireRole(ctx, RoleConciergerie)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.EditMission(ctx, engine.MissionEditOptions{
			ID:               input.MissionID,
			HomeID:           input.Body.HomeID,
			Tasks:            input.Body.Tasks,
			Start:            input.Body.Start,
			End:              input.Body.End,
			AllowedEmployees: input.Body.AllowedEmployees,
			Actor:            p.ActorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-mission",
		Method:        http.MethodDelete,
		Path:          "/missions/{mission_id}",
		Summary:       "Delete a mission",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		MissionID string `path:"mission_id"`
	}) (*struct{}, error) {
		p, authErr := requireRole(ctx, RoleConciergerie)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteMission(ctx, input.MissionID, p.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	registerTransition(api, "accept-mission", "accept", "Accept a mission",
		func(ctx context.Context, missionID string, p Principal) (domain.Mission, error) {
			if _, authErr := requireRole(ctx, RoleEmployee); authErr != nil {
				return domain.Mission{}, authErr
			}
			return e.AcceptMission(ctx, missionID, p.ActorID)
		})
	registerTransition(api, "start-mission", "start", "Start a mission",
		func(ctx context.Context, missionID string, p Principal) (domain.Mission, error) {
			if _, authErr := requireRole(ctx, RoleEmployee); authErr != nil {
				return domain.Mission{}, authErr
			}
			return e.StartMission(ctx, missionID, p.ActorID)
		})
	registerTransition(api, "complete-mission", "complete", "Complete a mission",
		func(ctx context.Context, missionID string, p Principal) (domain.Mission, error) {
			if _, authErr := requireRole(ctx, RoleEmployee); authErr != nil {
				return domain.Mission{}, authErr
			}
			return e.CompleteMission(ctx, missionID, p.ActorID)
		})
	registerTransition(api, "cancel-mission", "cancel", "Cancel a mission",
		func(ctx context.Context, missionID string, p Principal) (domain.Mission, error) {
			return e.CancelMission(ctx, missionID, p.ActorID)
		})
}

// registerTransition wires one lifecycle action; they all share the same
// request/response shape.
func registerTransition(api huma.API, opID, action, summary string,
	fn func(ctx context.Context, missionID string, p Principal) (domain.Mission, error)) {
	huma.Register(api, huma.Operation{
		OperationID: opID,
		Method:      http.MethodPost,
		Path:        "/missions/{mission_id}/" + action,
		Summary:     summary,
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		MissionID string `path:"mission_id"`
	}) (*struct {
		Body MissionResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := fn(ctx, input.MissionID, p)
		if err != nil {
			if se, ok := err.(huma.StatusError); ok {
				return nil, se
			}
			return nil, handleError(err)
		}
		return &struct {
			Body MissionResponse `json:"body"`
		}{Body: missionResponse(m)}, nil
	})
}

func registerQueue(api huma.API, q *outbox.Queue) {
	huma.Register(api, huma.Operation{
		OperationID: "list-queue-jobs",
		Method:      http.MethodGet,
		Path:        "/queue/jobs",
		Summary:     "Pending notification jobs",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []QueueJobResponse `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		jobs, err := q.Repo.ListNotificationJobs(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		out := []QueueJobResponse{}
		for _, j := range jobs {
			out = append(out, QueueJobResponse{
				ID:          j.ID,
				Kind:        j.Kind,
				CreatedAt:   j.CreatedAt,
				LastAttempt: j.LastAttempt,
				Attempts:    j.Attempts,
			})
		}
		return &struct {
			Body []QueueJobResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "run-queue",
		Method:      http.MethodPost,
		Path:        "/queue/run",
		Summary:     "Force one retry scan",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body QueueRunResponse `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		delivered, dropped, err := q.RunOnce(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body QueueRunResponse `json:"body"`
		}{Body: QueueRunResponse{Delivered: delivered, Dropped: dropped}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"home,mission,employee,"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		if _, authErr := principalFromRequest(ctx); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		var items []domain.Event
		var err error
		if input.Cursor != "" {
			cursorID, perr := strconv.ParseInt(input.Cursor, 10, 64)
			if perr != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			items, err = e.Repo.EventsAfter(ctx, limit, cursorID)
		} else {
			items, err = e.Repo.LatestEvents(ctx, limit, input.Type, input.EntityKind, input.EntityID)
		}
		if err != nil {
			return nil, handleError(err)
		}
		out := []EventResponse{}
		for _, evt := range items {
			out = append(out, eventResponse(evt))
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		p, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{ActorID: p.ActorID, Role: p.Role, Source: p.Source}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		role := input.Body.Role
		if role == "" {
			role = RoleConciergerie
		}
		token, err := signToken(authCfg.JWTSecret, actor, role, 24*time.Hour)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	openPaths := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if openPaths[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Homecrew API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func missionResponse(m domain.Mission) MissionResponse {
	pts := quota.MissionPoints(m)
	status := m.StatusOf()
	if status == "" {
		status = "unassigned"
	}
	out := MissionResponse{
		ID:               m.ID,
		HomeID:           m.HomeID,
		Conciergerie:     m.Conciergerie,
		Tasks:            nonNilSlice(m.Tasks),
		Start:            m.Start,
		End:              m.End,
		Status:           status,
		AllowedEmployees: nonNilSlice(m.AllowedEmployees),
		EstimatedHours:   m.EstimatedHours,
		TotalPoints:      pts.Total,
		PointsPerDay:     pts.PerDay,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.EmployeeID != nil {
		out.EmployeeID = *m.EmployeeID
	}
	return out
}

func homeOptions(req HomeRequest) engine.HomeOptions {
	return engine.HomeOptions{
		Title:          req.Title,
		Description:    req.Description,
		Objectives:     req.Objectives,
		Zone:           req.Zone,
		CleaningHours:  req.CleaningHours,
		GardeningHours: req.GardeningHours,
		Images:         req.Images,
	}
}

func workerID(p Principal) string {
	if p.Role == RoleEmployee {
		return p.ActorID
	}
	return ""
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}
