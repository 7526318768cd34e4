package server

import (
	"hingeboard/internal/domain"
	"hingeboard/internal/engine"
)

// Request payloads

type OutcomeRequest struct {
	ID           string `json:"id,omitempty"`
	Label        string `json:"label"`
	Type         string `json:"type" enum:"success,delayed,failed"`
	Action       string `json:"action" enum:"activate,postpone,switch_fallback"`
	PostponeDays *int   `json:"postponeDays,omitempty"`
}

type CreateConditionalRequest struct {
	Title                 string           `json:"title"`
	Description           *string          `json:"description,omitempty"`
	ExpectedDate          string           `json:"expectedDate"`
	Urgency               string           `json:"urgency,omitempty" enum:"low,medium,high,critical"`
	Outcomes              []OutcomeRequest `json:"outcomes"`
	FallbackConditionalID *string          `json:"fallbackConditionalId,omitempty"`
	FallbackPostponeDays  *int             `json:"fallbackPostponeDays,omitempty"`
}

type UpdateConditionalRequest struct {
	Title                 *string          `json:"title,omitempty"`
	Description           *string          `json:"description,omitempty"`
	ExpectedDate          *string          `json:"expectedDate,omitempty"`
	Urgency               *string          `json:"urgency,omitempty" enum:"low,medium,high,critical"`
	Outcomes              []OutcomeRequest `json:"outcomes,omitempty"`
	FallbackConditionalID *string          `json:"fallbackConditionalId,omitempty"`
	FallbackPostponeDays  *int             `json:"fallbackPostponeDays,omitempty"`
	ClearFallbackDays     bool             `json:"clearFallbackDays,omitempty"`
}

type ResolveConditionalRequest struct {
	OutcomeID string `json:"outcomeId"`
}

type CreateTaskRequest struct {
	Title                  string  `json:"title"`
	Description            *string `json:"description,omitempty"`
	Scope                  string  `json:"scope" enum:"day,week,month,year"`
	ScopeKey               string  `json:"scopeKey"`
	Status                 string  `json:"status,omitempty" enum:"pending,in-progress,done"`
	Progress               int     `json:"progress,omitempty"`
	BlockedByConditionalID *string `json:"blockedByConditionalId,omitempty"`
	ParentTaskID           *string `json:"parentTaskId,omitempty"`
	ContributionPercent    *int    `json:"contributionPercent,omitempty"`
}

type UpdateTaskRequest struct {
	Title               *string `json:"title,omitempty"`
	Description         *string `json:"description,omitempty"`
	Scope               *string `json:"scope,omitempty" enum:"day,week,month,year"`
	ScopeKey            *string `json:"scopeKey,omitempty"`
	Status              *string `json:"status,omitempty" enum:"pending,in-progress,done"`
	Progress            *int    `json:"progress,omitempty"`
	ContributionPercent *int    `json:"contributionPercent,omitempty"`
}

// Response payloads. Domain types already carry the wire tags; responses
// wrap them where the shape differs from the stored entity.

type ConditionalDetailResponse struct {
	domain.Conditional
	BlockedTasks []domain.Task `json:"blockedTasks"`
}

type ResolutionResponse struct {
	ConditionalID        string  `json:"conditionalId"`
	Status               string  `json:"status"`
	SelectedOutcomeID    string  `json:"selectedOutcomeId"`
	UpdatedTaskCount     int     `json:"updatedTaskCount"`
	SwitchedToFallbackID *string `json:"switchedToFallbackId,omitempty"`
}

type DeleteConditionalResponse struct {
	ReleasedTaskCount int `json:"releasedTaskCount"`
}

func resolutionResponse(res engine.ResolutionResult) ResolutionResponse {
	return ResolutionResponse{
		ConditionalID:        res.ConditionalID,
		Status:               string(res.Status),
		SelectedOutcomeID:    res.SelectedOutcomeID,
		UpdatedTaskCount:     res.UpdatedTaskCount,
		SwitchedToFallbackID: res.SwitchedToFallbackID,
	}
}

func outcomeInputs(reqs []OutcomeRequest) []engine.OutcomeInput {
	if reqs == nil {
		return nil
	}
	out := make([]engine.OutcomeInput, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, engine.OutcomeInput{
			ID:           r.ID,
			Label:        r.Label,
			Type:         domain.OutcomeType(r.Type),
			Action:       domain.OutcomeAction(r.Action),
			PostponeDays: r.PostponeDays,
		})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
