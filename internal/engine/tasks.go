package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"hingeboard/internal/domain"
	"hingeboard/internal/events"
	"hingeboard/internal/schedule"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	OwnerID                string
	Title                  string
	Description            string
	Scope                  domain.Scope
	ScopeKey               string
	Status                 domain.TaskStatus
	Progress               int
	BlockedByConditionalID string
	ParentTaskID           string
	ContributionPercent    *int
}

// CreateTask inserts a task. When BlockedByConditionalID is set, the
// referenced conditional must exist and be pending, and the task starts in
// the blocked status regardless of the requested one.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.OwnerID == "" {
		return domain.Task{}, domain.Validationf("owner_required", "owner id is required")
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Task{}, domain.Validationf("title_required", "task title is required")
	}
	if !opts.Scope.IsValid() {
		return domain.Task{}, domain.Validationf("invalid_scope", "unknown scope %q", opts.Scope)
	}
	if _, err := schedule.DeriveDate(opts.Scope, opts.ScopeKey); err != nil {
		return domain.Task{}, err
	}
	status := opts.Status
	if status == "" {
		status = domain.TaskPending
	}
	if !status.IsValid() {
		return domain.Task{}, domain.Validationf("invalid_status", "unknown status %q", status)
	}
	if status == domain.TaskBlocked && opts.BlockedByConditionalID == "" {
		return domain.Task{}, domain.Validationf("blocker_required", "blocked status requires a blocking conditional")
	}
	if opts.Progress < 0 || opts.Progress > 100 {
		return domain.Task{}, domain.Validationf("invalid_progress", "progress must be between 0 and 100")
	}
	if opts.ContributionPercent != nil && (*opts.ContributionPercent < 1 || *opts.ContributionPercent > 100) {
		return domain.Task{}, domain.Validationf("invalid_contribution", "contribution percent must be between 1 and 100")
	}

	if opts.BlockedByConditionalID != "" {
		c, err := e.Repo.GetConditional(ctx, opts.OwnerID, opts.BlockedByConditionalID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Task{}, domain.Validationf("blocker_not_found", "blocking conditional %s does not exist", opts.BlockedByConditionalID)
			}
			return domain.Task{}, domain.StoreError{Op: "load blocking conditional", Err: err}
		}
		if c.Status.Terminal() {
			return domain.Task{}, domain.Validationf("blocker_resolved", "conditional %s is already %s", c.ID, c.Status)
		}
		status = domain.TaskBlocked
	}
	if opts.ParentTaskID != "" {
		if _, err := e.Repo.GetTask(ctx, opts.OwnerID, opts.ParentTaskID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Task{}, domain.Validationf("parent_not_found", "parent task %s does not exist", opts.ParentTaskID)
			}
			return domain.Task{}, domain.StoreError{Op: "load parent task", Err: err}
		}
	}

	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		ID:                     uuid.New().String(),
		OwnerID:                opts.OwnerID,
		Title:                  title,
		Description:            opts.Description,
		Scope:                  opts.Scope,
		ScopeKey:               opts.ScopeKey,
		Status:                 status,
		Progress:               opts.Progress,
		BlockedByConditionalID: optionalString(opts.BlockedByConditionalID),
		ParentTaskID:           optionalString(opts.ParentTaskID),
		ContributionPercent:    opts.ContributionPercent,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, domain.StoreError{Op: "create task", Err: err}
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, domain.StoreError{Op: "insert task", Err: err}
	}
	if err := e.Events.Append(ctx, tx, "task.created", t.OwnerID, "task", t.ID, events.EventPayload{
		"title":     t.Title,
		"scope":     t.Scope,
		"scope_key": t.ScopeKey,
		"status":    t.Status,
	}); err != nil {
		return domain.Task{}, domain.StoreError{Op: "append event", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, domain.StoreError{Op: "commit task", Err: err}
	}
	return t, nil
}

// TaskUpdateOptions carries the fields of a task update; nil means leave
// unchanged.
type TaskUpdateOptions struct {
	Title               *string
	Description         *string
	Scope               *domain.Scope
	ScopeKey            *string
	Status              *domain.TaskStatus
	Progress            *int
	ContributionPercent *int
}

// UpdateTask applies a partial update. Status edits on a blocked task are
// rejected; the block is lifted by resolving or deleting the conditional,
// not by hand. Progress edits on a child roll up into the parent.
func (e Engine) UpdateTask(ctx context.Context, ownerID, id string, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Task{}, err
		}
		return domain.Task{}, domain.StoreError{Op: "load task", Err: err}
	}

	progressChanged := false
	if opts.Title != nil {
		title := strings.TrimSpace(*opts.Title)
		if title == "" {
			return domain.Task{}, domain.Validationf("title_required", "task title is required")
		}
		t.Title = title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.Scope != nil {
		if !opts.Scope.IsValid() {
			return domain.Task{}, domain.Validationf("invalid_scope", "unknown scope %q", *opts.Scope)
		}
		t.Scope = *opts.Scope
	}
	if opts.ScopeKey != nil {
		t.ScopeKey = *opts.ScopeKey
	}
	if opts.Scope != nil || opts.ScopeKey != nil {
		if _, err := schedule.DeriveDate(t.Scope, t.ScopeKey); err != nil {
			return domain.Task{}, err
		}
	}
	if opts.Status != nil {
		if !opts.Status.IsValid() {
			return domain.Task{}, domain.Validationf("invalid_status", "unknown status %q", *opts.Status)
		}
		if *opts.Status == domain.TaskBlocked {
			return domain.Task{}, domain.Validationf("status_blocked_reserved", "blocked status is managed by conditionals")
		}
		if t.Blocked() && *opts.Status != t.Status {
			return domain.Task{}, domain.Validationf("task_blocked", "task is blocked by conditional %s", *t.BlockedByConditionalID)
		}
		t.Status = *opts.Status
	}
	if opts.Progress != nil {
		if *opts.Progress < 0 || *opts.Progress > 100 {
			return domain.Task{}, domain.Validationf("invalid_progress", "progress must be between 0 and 100")
		}
		progressChanged = t.Progress != *opts.Progress
		t.Progress = *opts.Progress
	}
	if opts.ContributionPercent != nil {
		if *opts.ContributionPercent < 1 || *opts.ContributionPercent > 100 {
			return domain.Task{}, domain.Validationf("invalid_contribution", "contribution percent must be between 1 and 100")
		}
		t.ContributionPercent = opts.ContributionPercent
		progressChanged = true
	}
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, domain.StoreError{Op: "update task", Err: err}
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Task{}, err
		}
		return domain.Task{}, domain.StoreError{Op: "update task", Err: err}
	}
	if err := e.Events.Append(ctx, tx, "task.updated", t.OwnerID, "task", t.ID, events.EventPayload{
		"status":   t.Status,
		"progress": t.Progress,
	}); err != nil {
		return domain.Task{}, domain.StoreError{Op: "append event", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, domain.StoreError{Op: "commit task", Err: err}
	}

	if progressChanged && t.ParentTaskID != nil {
		if _, err := e.RecomputeParentProgress(ctx, ownerID, *t.ParentTaskID); err != nil {
			return domain.Task{}, err
		}
	}
	return t, nil
}

// DeleteTask removes a task. Children of a deleted parent keep their own
// progress and simply stop rolling up anywhere.
func (e Engine) DeleteTask(ctx context.Context, ownerID, id string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoreError{Op: "delete task", Err: err}
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteTaskTx(ctx, tx, ownerID, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return domain.StoreError{Op: "delete task", Err: err}
	}
	if err := e.Events.Append(ctx, tx, "task.deleted", ownerID, "task", id, nil); err != nil {
		return domain.StoreError{Op: "append event", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return domain.StoreError{Op: "commit delete task", Err: err}
	}
	return nil
}
