package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hingeboard/internal/domain"
	"hingeboard/internal/events"
	"hingeboard/internal/schedule"
)

// ResolutionResult reports what one resolution did, for the UI's
// "N tasks updated" confirmation.
type ResolutionResult struct {
	ConditionalID        string
	Status               domain.ConditionalStatus
	SelectedOutcomeID    string
	UpdatedTaskCount     int
	SwitchedToFallbackID *string
}

// Resolve applies the chosen outcome to a pending conditional and every task
// it blocks, in a single transaction. The terminal-state flip is guarded on
// status still being pending inside that transaction, so a concurrent
// resolution loses cleanly with ErrAlreadyResolved and no task is touched
// twice.
func (e Engine) Resolve(ctx context.Context, ownerID, conditionalID, outcomeID string) (ResolutionResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ResolutionResult{}, domain.StoreError{Op: "resolve", Err: err}
	}
	defer tx.Rollback()

	c, err := e.Repo.GetConditionalTx(ctx, tx, ownerID, conditionalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ResolutionResult{}, err
		}
		return ResolutionResult{}, domain.StoreError{Op: "load conditional", Err: err}
	}
	if c.Status.Terminal() {
		return ResolutionResult{}, domain.ErrAlreadyResolved
	}
	outcome, ok := c.Outcome(outcomeID)
	if !ok {
		return ResolutionResult{}, domain.ErrOutcomeNotFound
	}

	blocked, err := e.Repo.TasksBlockedByTx(ctx, tx, ownerID, conditionalID)
	if err != nil {
		return ResolutionResult{}, domain.StoreError{Op: "load blocked tasks", Err: err}
	}

	now := e.now().UTC()
	nowStr := now.Format(time.RFC3339)
	terminal := domain.ConditionalResolved
	if outcome.Type == domain.OutcomeFailed {
		terminal = domain.ConditionalFailed
	}
	affected, err := e.Repo.MarkResolvedTx(ctx, tx, ownerID, conditionalID, terminal, outcome.ID, nowStr, nowStr)
	if err != nil {
		return ResolutionResult{}, domain.StoreError{Op: "mark resolved", Err: err}
	}
	if affected == 0 {
		return ResolutionResult{}, domain.ErrAlreadyResolved
	}

	result := ResolutionResult{
		ConditionalID:     conditionalID,
		Status:            terminal,
		SelectedOutcomeID: outcome.ID,
	}
	switch outcome.Action {
	case domain.ActionActivate:
		for _, t := range blocked {
			t.Status = domain.TaskPending
			t.BlockedByConditionalID = nil
			t.UpdatedAt = nowStr
			if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
				return ResolutionResult{}, domain.StoreError{Op: "activate task", Err: err}
			}
			result.UpdatedTaskCount++
		}
	case domain.ActionPostpone:
		days := e.Config.DefaultPostponeDays()
		if outcome.PostponeDays != nil {
			days = *outcome.PostponeDays
		}
		for _, t := range blocked {
			// Still waiting, just later: the block pointer stays set.
			if _, err := e.postponeTask(ctx, tx, t, days, nowStr); err != nil {
				return ResolutionResult{}, err
			}
			result.UpdatedTaskCount++
		}
	case domain.ActionSwitchFallback:
		switch {
		case c.FallbackConditionalID != nil && *c.FallbackConditionalID != "":
			fallbackID := *c.FallbackConditionalID
			for _, t := range blocked {
				t.BlockedByConditionalID = &fallbackID
				t.Status = domain.TaskBlocked
				t.UpdatedAt = nowStr
				if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
					return ResolutionResult{}, domain.StoreError{Op: "redirect task to fallback", Err: err}
				}
				result.UpdatedTaskCount++
			}
			result.SwitchedToFallbackID = &fallbackID
		case c.FallbackPostponeDays != nil:
			// Terminal fallback: postpone and release, nothing left to wait on.
			for _, t := range blocked {
				shifted, err := e.postponeTask(ctx, tx, t, *c.FallbackPostponeDays, nowStr)
				if err != nil {
					return ResolutionResult{}, err
				}
				shifted.BlockedByConditionalID = nil
				shifted.Status = domain.TaskPending
				if err := e.Repo.UpdateTaskTx(ctx, tx, shifted); err != nil {
					return ResolutionResult{}, domain.StoreError{Op: "release task after fallback postpone", Err: err}
				}
				result.UpdatedTaskCount++
			}
		default:
			// No fallback path configured: the conditional terminates and
			// its tasks stay blocked on it until manual intervention.
		}
	}

	payload := events.EventPayload{
		"outcome_id":    outcome.ID,
		"action":        outcome.Action,
		"status":        terminal,
		"updated_tasks": result.UpdatedTaskCount,
	}
	if result.SwitchedToFallbackID != nil {
		payload["switched_to"] = *result.SwitchedToFallbackID
	}
	if err := e.Events.Append(ctx, tx, "conditional.resolved", ownerID, "conditional", conditionalID, payload); err != nil {
		return ResolutionResult{}, domain.StoreError{Op: "append event", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return ResolutionResult{}, domain.StoreError{Op: "commit resolution", Err: err}
	}
	return result, nil
}

// postponeTask shifts a task's scope key forward by the given day count and
// persists it. The first postponement records the pre-shift date as the
// original scheduled date; later ones leave it untouched.
func (e Engine) postponeTask(ctx context.Context, tx *sql.Tx, t domain.Task, days int, nowStr string) (domain.Task, error) {
	newKey, before, err := schedule.Shift(t.Scope, t.ScopeKey, days)
	if err != nil {
		return t, err
	}
	if t.OriginalScheduledDate == nil {
		orig := before.Format(schedule.DayLayout)
		t.OriginalScheduledDate = &orig
	}
	t.ScopeKey = newKey
	t.UpdatedAt = nowStr
	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		return t, domain.StoreError{Op: "postpone task", Err: err}
	}
	return t, nil
}

// DeleteConditional removes a conditional and releases every task blocked by
// it in the same transaction; no task is ever left pointing at a missing
// conditional. Returns the number of tasks released.
func (e Engine) DeleteConditional(ctx context.Context, ownerID, conditionalID string) (int, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.StoreError{Op: "delete conditional", Err: err}
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetConditionalTx(ctx, tx, ownerID, conditionalID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}
		return 0, domain.StoreError{Op: "load conditional", Err: err}
	}
	blocked, err := e.Repo.TasksBlockedByTx(ctx, tx, ownerID, conditionalID)
	if err != nil {
		return 0, domain.StoreError{Op: "load blocked tasks", Err: err}
	}
	nowStr := e.now().UTC().Format(time.RFC3339)
	released := 0
	for _, t := range blocked {
		t.BlockedByConditionalID = nil
		t.Status = domain.TaskPending
		t.UpdatedAt = nowStr
		if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
			return 0, domain.StoreError{Op: "release task", Err: err}
		}
		released++
	}
	if err := e.Repo.DeleteConditionalTx(ctx, tx, ownerID, conditionalID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}
		return 0, domain.StoreError{Op: "delete conditional", Err: err}
	}
	if err := e.Events.Append(ctx, tx, "conditional.deleted", ownerID, "conditional", conditionalID, events.EventPayload{
		"released_tasks": released,
	}); err != nil {
		return 0, domain.StoreError{Op: "append event", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, domain.StoreError{Op: "commit delete", Err: err}
	}
	return released, nil
}
