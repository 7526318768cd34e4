// Package engine implements the conditional dependency and rescheduling
// engine: conditional lifecycle, the resolution state machine, the delete
// cascade and the progress aggregator. Every mutation is one transaction
// containing the entity writes and their activity event.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"hingeboard/internal/config"
	"hingeboard/internal/domain"
	"hingeboard/internal/events"
	"hingeboard/internal/repo"
	"hingeboard/internal/schedule"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// OutcomeInput is one outcome supplied on create/update. ID is honored on
// update when it matches an outcome already stored on the conditional;
// otherwise a fresh id is stamped.
type OutcomeInput struct {
	ID           string
	Label        string
	Type         domain.OutcomeType
	Action       domain.OutcomeAction
	PostponeDays *int
}

// ConditionalCreateOptions are parameters for creating a conditional.
type ConditionalCreateOptions struct {
	OwnerID               string
	Title                 string
	Description           string
	ExpectedDate          string
	Urgency               domain.Urgency
	Outcomes              []OutcomeInput
	FallbackConditionalID *string
	FallbackPostponeDays  *int
}

func (e Engine) CreateConditional(ctx context.Context, opts ConditionalCreateOptions) (domain.Conditional, error) {
	if opts.OwnerID == "" {
		return domain.Conditional{}, domain.Validationf("owner_required", "owner is required")
	}
	if opts.Title == "" {
		return domain.Conditional{}, domain.Validationf("title_required", "title is required")
	}
	if _, err := time.Parse(schedule.DayLayout, opts.ExpectedDate); err != nil {
		return domain.Conditional{}, domain.Validationf("invalid_expected_date", "expected date %q is not YYYY-MM-DD", opts.ExpectedDate)
	}
	if opts.Urgency == "" {
		opts.Urgency = e.Config.DefaultUrgency()
	}
	if !opts.Urgency.IsValid() {
		return domain.Conditional{}, domain.Validationf("invalid_urgency", "urgency %q is not one of low, medium, high, critical", opts.Urgency)
	}
	outcomes, err := e.stampOutcomes(opts.Outcomes, nil)
	if err != nil {
		return domain.Conditional{}, err
	}
	if err := e.validateFallback(ctx, opts.OwnerID, "", outcomes, opts.FallbackConditionalID, opts.FallbackPostponeDays); err != nil {
		return domain.Conditional{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	c := domain.Conditional{
		ID:                    uuid.New().String(),
		OwnerID:               opts.OwnerID,
		Title:                 opts.Title,
		Description:           opts.Description,
		ExpectedDate:          opts.ExpectedDate,
		Urgency:               opts.Urgency,
		Status:                domain.ConditionalPending,
		Outcomes:              outcomes,
		FallbackConditionalID: opts.FallbackConditionalID,
		FallbackPostponeDays:  opts.FallbackPostponeDays,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Conditional{}, domain.StoreError{Op: "create conditional", Err: err}
	}
	defer tx.Rollback()

	if err := e.Repo.InsertConditionalTx(ctx, tx, c); err != nil {
		return domain.Conditional{}, domain.StoreError{Op: "insert conditional", Err: err}
	}
	if err := e.Events.Append(ctx, tx, "conditional.created", c.OwnerID, "conditional", c.ID, events.EventPayload{
		"title":    c.Title,
		"urgency":  c.Urgency,
		"outcomes": len(c.Outcomes),
	}); err != nil {
		return domain.Conditional{}, domain.StoreError{Op: "append event", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return domain.Conditional{}, domain.StoreError{Op: "commit create conditional", Err: err}
	}
	return c, nil
}

// ConditionalUpdateOptions encapsulates allowed pre-resolution updates. Nil
// fields are left untouched; an empty-string FallbackConditionalID clears it.
type ConditionalUpdateOptions struct {
	OwnerID               string
	ID                    string
	Title                 *string
	Description           *string
	ExpectedDate          *string
	Urgency               *domain.Urgency
	Outcomes              []OutcomeInput
	FallbackConditionalID *string
	FallbackPostponeDays  *int
	ClearFallbackDays     bool
}

func (e Engine) UpdateConditional(ctx context.Context, opts ConditionalUpdateOptions) (domain.Conditional, error) {
	c, err := e.Repo.GetConditional(ctx, opts.OwnerID, opts.ID)
	if err != nil {
		return c, err
	}
	if c.Status.Terminal() {
		return c, domain.ErrAlreadyResolved
	}
	if opts.Title != nil {
		if *opts.Title == "" {
			return c, domain.Validationf("title_required", "title is required")
		}
		c.Title = *opts.Title
	}
	if opts.Description != nil {
		c.Description = *opts.Description
	}
	if opts.ExpectedDate != nil {
		if _, err := time.Parse(schedule.DayLayout, *opts.ExpectedDate); err != nil {
			return c, domain.Validationf("invalid_expected_date", "expected date %q is not YYYY-MM-DD", *opts.ExpectedDate)
		}
		c.ExpectedDate = *opts.ExpectedDate
	}
	if opts.Urgency != nil {
		if !opts.Urgency.IsValid() {
			return c, domain.Validationf("invalid_urgency", "urgency %q is not one of low, medium, high, critical", *opts.Urgency)
		}
		c.Urgency = *opts.Urgency
	}
	if opts.Outcomes != nil {
		outcomes, err := e.stampOutcomes(opts.Outcomes, c.Outcomes)
		if err != nil {
			return c, err
		}
		c.Outcomes = outcomes
	}
	if opts.FallbackConditionalID != nil {
		if *opts.FallbackConditionalID == "" {
			c.FallbackConditionalID = nil
		} else {
			c.FallbackConditionalID = opts.FallbackConditionalID
		}
	}
	if opts.ClearFallbackDays {
		c.FallbackPostponeDays = nil
	} else if opts.FallbackPostponeDays != nil {
		c.FallbackPostponeDays = opts.FallbackPostponeDays
	}
	if err := e.validateFallback(ctx, c.OwnerID, c.ID, c.Outcomes, c.FallbackConditionalID, c.FallbackPostponeDays); err != nil {
		return c, err
	}
	c.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, domain.StoreError{Op: "update conditional", Err: err}
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateConditionalTx(ctx, tx, c); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c, err
		}
		return c, domain.StoreError{Op: "update conditional", Err: err}
	}
	if err := e.Events.Append(ctx, tx, "conditional.updated", c.OwnerID, "conditional", c.ID, events.EventPayload{
		"title": c.Title,
	}); err != nil {
		return c, domain.StoreError{Op: "append event", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return c, domain.StoreError{Op: "commit update conditional", Err: err}
	}
	return c, nil
}

// stampOutcomes materializes outcome inputs. Ids already present on the
// stored conditional survive an update so external references to unchanged
// outcomes stay valid; everything else gets a fresh id.
func (e Engine) stampOutcomes(inputs []OutcomeInput, existing []domain.Outcome) ([]domain.Outcome, error) {
	if len(inputs) == 0 {
		return nil, domain.Validationf("outcomes_required", "at least one outcome is required")
	}
	known := map[string]bool{}
	for _, o := range existing {
		known[o.ID] = true
	}
	seen := map[string]bool{}
	outcomes := make([]domain.Outcome, 0, len(inputs))
	for i, in := range inputs {
		if in.Label == "" {
			return nil, domain.Validationf("outcome_label_required", "outcome %d is missing a label", i)
		}
		if !in.Type.IsValid() {
			return nil, domain.Validationf("invalid_outcome_type", "outcome %q type %q is not one of success, delayed, failed", in.Label, in.Type)
		}
		if !in.Action.IsValid() {
			return nil, domain.Validationf("invalid_outcome_action", "outcome %q action %q is not one of activate, postpone, switch_fallback", in.Label, in.Action)
		}
		if in.PostponeDays != nil && *in.PostponeDays < 1 {
			return nil, domain.Validationf("invalid_postpone_days", "outcome %q postpone days must be >= 1", in.Label)
		}
		id := in.ID
		if id == "" || !known[id] || seen[id] {
			id = "outcome-" + uuid.New().String()
		}
		seen[id] = true
		outcomes = append(outcomes, domain.Outcome{
			ID:           id,
			Label:        in.Label,
			Type:         in.Type,
			Action:       in.Action,
			PostponeDays: in.PostponeDays,
		})
	}
	return outcomes, nil
}

// validateFallback enforces the fallback rules: a switch_fallback outcome
// needs somewhere to go, the fallback target must exist and still be
// pending, and the fallback chain must not loop back.
func (e Engine) validateFallback(ctx context.Context, ownerID, selfID string, outcomes []domain.Outcome, fallbackID *string, fallbackDays *int) error {
	hasSwitch := false
	for _, o := range outcomes {
		if o.Action == domain.ActionSwitchFallback {
			hasSwitch = true
			break
		}
	}
	if hasSwitch && e.Config != nil && e.Config.Validation.RequireFallbackPath {
		if (fallbackID == nil || *fallbackID == "") && fallbackDays == nil {
			return domain.Validationf("fallback_required", "an outcome uses switch_fallback but neither a fallback conditional nor fallback postpone days is set")
		}
	}
	if fallbackDays != nil && *fallbackDays < 1 {
		return domain.Validationf("invalid_postpone_days", "fallback postpone days must be >= 1")
	}
	if fallbackID == nil || *fallbackID == "" {
		return nil
	}
	if selfID != "" && *fallbackID == selfID {
		return domain.Validationf("fallback_cycle", "a conditional cannot be its own fallback")
	}
	fb, err := e.Repo.GetConditional(ctx, ownerID, *fallbackID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Validationf("fallback_not_found", "fallback conditional %s does not exist", *fallbackID)
		}
		return domain.StoreError{Op: "load fallback conditional", Err: err}
	}
	if fb.Status.Terminal() {
		return domain.Validationf("fallback_terminal", "fallback conditional %s is already %s", fb.ID, fb.Status)
	}
	if e.Config != nil && e.Config.Validation.DetectFallbackCycles {
		return e.ensureNoFallbackCycle(ctx, ownerID, selfID, fb)
	}
	return nil
}

// ensureNoFallbackCycle climbs the fallback chain from the target and
// rejects the edit if it leads back to the conditional being written.
func (e Engine) ensureNoFallbackCycle(ctx context.Context, ownerID, selfID string, start domain.Conditional) error {
	visited := map[string]bool{}
	cur := start
	for {
		if selfID != "" && cur.ID == selfID {
			return domain.Validationf("fallback_cycle", "fallback chain cycles back to %s", selfID)
		}
		if visited[cur.ID] {
			return domain.Validationf("fallback_cycle", "fallback chain contains a cycle at %s", cur.ID)
		}
		visited[cur.ID] = true
		if cur.FallbackConditionalID == nil || *cur.FallbackConditionalID == "" {
			return nil
		}
		next, err := e.Repo.GetConditional(ctx, ownerID, *cur.FallbackConditionalID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				// broken link, not a cycle; tolerated here
				return nil
			}
			return domain.StoreError{Op: "walk fallback chain", Err: err}
		}
		cur = next
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
