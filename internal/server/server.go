// Package server exposes the engine over HTTP. All entity routes live under
// the configured base path and require an authenticated owner; errors use a
// single {code, message, details} envelope.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"hingeboard/internal/domain"
	"hingeboard/internal/engine"
	"hingeboard/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"already_resolved"`
	Message string         `json:"message" example:"conditional already resolved"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Hingeboard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Hingeboard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerConditionals(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerEvents(group, cfg.Engine)

	return router, nil
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
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

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyResolved):
		return newAPIError(http.StatusConflict, "already_resolved", err.Error(), nil)
	case errors.Is(err, domain.ErrOutcomeNotFound):
		return newAPIError(http.StatusUnprocessableEntity, "outcome_not_found", err.Error(), nil)
	}
	var verr domain.ValidationError
	if errors.As(err, &verr) {
		return newAPIError(http.StatusUnprocessableEntity, verr.Code, verr.Message, nil)
	}
	var serr domain.StoreError
	if errors.As(err, &serr) {
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"op": serr.Op})
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
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
		Body struct {
			Status string `json:"status" example:"ok"`
		} `json:"body"`
	}, error) {
		resp := &struct {
			Body struct {
				Status string `json:"status" example:"ok"`
			} `json:"body"`
		}{}
		resp.Body.Status = "ok"
		return resp, nil
	})
}

func registerConditionals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-conditional",
		Method:      http.MethodPost,
		Path:        "/conditionals",
		Summary:     "Create conditional",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateConditionalRequest `json:"body"`
	}) (*struct {
		Body domain.Conditional `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateConditional(ctx, engine.ConditionalCreateOptions{
			OwnerID:               ownerID,
			Title:                 input.Body.Title,
			Description:           deref(input.Body.Description),
			ExpectedDate:          input.Body.ExpectedDate,
			Urgency:               domain.Urgency(input.Body.Urgency),
			Outcomes:              outcomeInputs(input.Body.Outcomes),
			FallbackConditionalID: input.Body.FallbackConditionalID,
			FallbackPostponeDays:  input.Body.FallbackPostponeDays,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Conditional `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-conditionals",
		Method:      http.MethodGet,
		Path:        "/conditionals",
		Summary:     "List conditionals",
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"pending,resolved,failed" required:"false"`
	}) (*struct {
		Body []domain.Conditional `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListConditionals(ctx, ownerID, repo.ConditionalFilters{Status: input.Status})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Conditional `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-conditional",
		Method:      http.MethodGet,
		Path:        "/conditionals/{conditional_id}",
		Summary:     "Get conditional with its blocked tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ConditionalID string `path:"conditional_id"`
	}) (*struct {
		Body ConditionalDetailResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.Repo.GetConditional(ctx, ownerID, input.ConditionalID)
		if err != nil {
			return nil, handleError(err)
		}
		blocked, err := e.Repo.TasksBlockedBy(ctx, ownerID, c.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if blocked == nil {
			blocked = []domain.Task{}
		}
		return &struct {
			Body ConditionalDetailResponse `json:"body"`
		}{Body: ConditionalDetailResponse{Conditional: c, BlockedTasks: blocked}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-conditional",
		Method:      http.MethodPatch,
		Path:        "/conditionals/{conditional_id}",
		Summary:     "Update pending conditional",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ConditionalID string                   `path:"conditional_id"`
		Body          UpdateConditionalRequest `json:"body"`
	}) (*struct {
		Body domain.Conditional `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var urgency *domain.Urgency
		if input.Body.Urgency != nil {
			u := domain.Urgency(*input.Body.Urgency)
			urgency = &u
		}
		c, err := e.UpdateConditional(ctx, engine.ConditionalUpdateOptions{
			OwnerID:               ownerID,
			ID:                    input.ConditionalID,
			Title:                 input.Body.Title,
			Description:           input.Body.Description,
			ExpectedDate:          input.Body.ExpectedDate,
			Urgency:               urgency,
			Outcomes:              outcomeInputs(input.Body.Outcomes),
			FallbackConditionalID: input.Body.FallbackConditionalID,
			FallbackPostponeDays:  input.Body.FallbackPostponeDays,
			ClearFallbackDays:     input.Body.ClearFallbackDays,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Conditional `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-conditional",
		Method:      http.MethodPost,
		Path:        "/conditionals/{conditional_id}/resolve",
		Summary:     "Resolve conditional",
		Description: "Applies the selected outcome to every blocked task atomically. A conditional resolves exactly once.",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ConditionalID string                    `path:"conditional_id"`
		Body          ResolveConditionalRequest `json:"body"`
	}) (*struct {
		Body ResolutionResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.OutcomeID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "outcomeId is required", nil)
		}
		res, err := e.Resolve(ctx, ownerID, input.ConditionalID, input.Body.OutcomeID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ResolutionResponse `json:"body"`
		}{Body: resolutionResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-conditional",
		Method:      http.MethodDelete,
		Path:        "/conditionals/{conditional_id}",
		Summary:     "Delete conditional and release its blocked tasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ConditionalID string `path:"conditional_id"`
	}) (*struct {
		Body DeleteConditionalResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		released, err := e.DeleteConditional(ctx, ownerID, input.ConditionalID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeleteConditionalResponse `json:"body"`
		}{Body: DeleteConditionalResponse{ReleasedTaskCount: released}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-conditional-tasks",
		Method:      http.MethodGet,
		Path:        "/conditionals/{conditional_id}/tasks",
		Summary:     "List tasks blocked by a conditional",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ConditionalID string `path:"conditional_id"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := e.Repo.GetConditional(ctx, ownerID, input.ConditionalID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.TasksBlockedBy(ctx, ownerID, input.ConditionalID)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Task{}
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-task",
		Method:      http.MethodPost,
		Path:        "/tasks",
		Summary:     "Create task",
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			OwnerID:                ownerID,
			Title:                  input.Body.Title,
			Description:            deref(input.Body.Description),
			Scope:                  domain.Scope(input.Body.Scope),
			ScopeKey:               input.Body.ScopeKey,
			Status:                 domain.TaskStatus(input.Body.Status),
			Progress:               input.Body.Progress,
			BlockedByConditionalID: deref(input.Body.BlockedByConditionalID),
			ParentTaskID:           deref(input.Body.ParentTaskID),
			ContributionPercent:    input.Body.ContributionPercent,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status" enum:"pending,in-progress,done,blocked" required:"false"`
		Scope    string `query:"scope" enum:"day,week,month,year" required:"false"`
		ScopeKey string `query:"scopeKey" required:"false"`
		ParentID string `query:"parentTaskId" required:"false"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListTasks(ctx, ownerID, repo.TaskFilters{
			Status:   input.Status,
			Scope:    input.Scope,
			ScopeKey: input.ScopeKey,
			ParentID: input.ParentID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Task{}
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Repo.GetTask(ctx, ownerID, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var scope *domain.Scope
		if input.Body.Scope != nil {
			s := domain.Scope(*input.Body.Scope)
			scope = &s
		}
		var status *domain.TaskStatus
		if input.Body.Status != nil {
			s := domain.TaskStatus(*input.Body.Status)
			status = &s
		}
		t, err := e.UpdateTask(ctx, ownerID, input.TaskID, engine.TaskUpdateOptions{
			Title:               input.Body.Title,
			Description:         input.Body.Description,
			Scope:               scope,
			ScopeKey:            input.Body.ScopeKey,
			Status:              status,
			Progress:            input.Body.Progress,
			ContributionPercent: input.Body.ContributionPercent,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct{}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTask(ctx, ownerID, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rollup-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/rollup",
		Summary:     "Recompute progress from children",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.RecomputeParentProgress(ctx, ownerID, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent activity events",
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type" required:"false"`
		EntityKind string `query:"entityKind" enum:"conditional,task" required:"false"`
		EntityID   string `query:"entityId" required:"false"`
		Limit      int    `query:"limit" required:"false" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.LatestEvents(ctx, ownerID, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Event{}
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}
