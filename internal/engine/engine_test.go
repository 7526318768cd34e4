package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"hingeboard/internal/config"
	"hingeboard/internal/db"
	"hingeboard/internal/domain"
	"hingeboard/internal/engine"
	"hingeboard/internal/migrate"
)

const testOwner = "owner-1"

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func intPtr(v int) *int       { return &v }
func strPtr(s string) *string { return &s }

func basicOutcomes() []engine.OutcomeInput {
	return []engine.OutcomeInput{
		{Label: "Approved", Type: domain.OutcomeSuccess, Action: domain.ActionActivate},
		{Label: "Delayed", Type: domain.OutcomeDelayed, Action: domain.ActionPostpone, PostponeDays: intPtr(14)},
		{Label: "Rejected", Type: domain.OutcomeFailed, Action: domain.ActionSwitchFallback},
	}
}

func (env testEnv) mustCreateConditional(t *testing.T, opts engine.ConditionalCreateOptions) domain.Conditional {
	t.Helper()
	if opts.OwnerID == "" {
		opts.OwnerID = testOwner
	}
	if opts.ExpectedDate == "" {
		opts.ExpectedDate = "2025-03-15"
	}
	if opts.Outcomes == nil {
		opts.Outcomes = []engine.OutcomeInput{
			{Label: "Yes", Type: domain.OutcomeSuccess, Action: domain.ActionActivate},
			{Label: "No", Type: domain.OutcomeFailed, Action: domain.ActionActivate},
		}
	}
	c, err := env.Engine.CreateConditional(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create conditional: %v", err)
	}
	return c
}

func (env testEnv) mustCreateTask(t *testing.T, opts engine.TaskCreateOptions) domain.Task {
	t.Helper()
	if opts.OwnerID == "" {
		opts.OwnerID = testOwner
	}
	if opts.Scope == "" {
		opts.Scope = domain.ScopeDay
	}
	if opts.ScopeKey == "" {
		opts.ScopeKey = "2025-03-10"
	}
	task, err := env.Engine.CreateTask(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestCreateConditionalDefaults(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCreateConditional(t, engine.ConditionalCreateOptions{Title: "Visa decision"})
	if c.Status != domain.ConditionalPending {
		t.Errorf("status: got %s, want pending", c.Status)
	}
	if c.Urgency != domain.UrgencyMedium {
		t.Errorf("urgency: got %s, want default medium", c.Urgency)
	}
	for _, o := range c.Outcomes {
		if o.ID == "" {
			t.Errorf("outcome %q has no id", o.Label)
		}
	}
	got, err := env.Engine.Repo.GetConditional(env.Ctx, testOwner, c.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got.Outcomes) != 2 {
		t.Errorf("stored outcomes: got %d, want 2", len(got.Outcomes))
	}
}

func TestCreateConditionalValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		opts engine.ConditionalCreateOptions
	}{
		{"missing title", engine.ConditionalCreateOptions{OwnerID: testOwner, ExpectedDate: "2025-03-15", Outcomes: basicOutcomes()}},
		{"bad date", engine.ConditionalCreateOptions{OwnerID: testOwner, Title: "x", ExpectedDate: "15/03/2025", Outcomes: basicOutcomes()}},
		{"no outcomes", engine.ConditionalCreateOptions{OwnerID: testOwner, Title: "x", ExpectedDate: "2025-03-15"}},
		{"bad urgency", engine.ConditionalCreateOptions{OwnerID: testOwner, Title: "x", ExpectedDate: "2025-03-15", Urgency: "urgent", Outcomes: basicOutcomes()}},
		{"bad outcome type", engine.ConditionalCreateOptions{OwnerID: testOwner, Title: "x", ExpectedDate: "2025-03-15", Outcomes: []engine.OutcomeInput{{Label: "x", Type: "maybe", Action: domain.ActionActivate}}}},
		{"zero postpone days", engine.ConditionalCreateOptions{OwnerID: testOwner, Title: "x", ExpectedDate: "2025-03-15", Outcomes: []engine.OutcomeInput{{Label: "x", Type: domain.OutcomeDelayed, Action: domain.ActionPostpone, PostponeDays: intPtr(0)}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.CreateConditional(env.Ctx, tc.opts)
			var verr domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSwitchFallbackRequiresFallbackPath(t *testing.T) {
	env := newTestEnv(t)
	// Default config requires a fallback conditional or postpone days when
	// any outcome switches to fallback.
	_, err := env.Engine.CreateConditional(env.Ctx, engine.ConditionalCreateOptions{
		OwnerID:      testOwner,
		Title:        "Grant decision",
		ExpectedDate: "2025-03-15",
		Outcomes:     basicOutcomes(),
	})
	var verr domain.ValidationError
	if !errors.As(err, &verr) || verr.Code != "fallback_required" {
		t.Fatalf("expected fallback_required, got %v", err)
	}

	// With fallback postpone days set it passes.
	c, err := env.Engine.CreateConditional(env.Ctx, engine.ConditionalCreateOptions{
		OwnerID:              testOwner,
		Title:                "Grant decision",
		ExpectedDate:         "2025-03-15",
		Outcomes:             basicOutcomes(),
		FallbackPostponeDays: intPtr(30),
	})
	if err != nil {
		t.Fatalf("create with fallback days: %v", err)
	}
	if c.FallbackPostponeDays == nil || *c.FallbackPostponeDays != 30 {
		t.Errorf("fallback days not stored")
	}
}

func TestFallbackTargetMustBePending(t *testing.T) {
	env := newTestEnv(t)
	target := env.mustCreateConditional(t, engine.ConditionalCreateOptions{Title: "Plan B"})
	if _, err := env.Engine.Resolve(env.Ctx, testOwner, target.ID, target.Outcomes[0].ID); err != nil {
		t.Fatalf("resolve target: %v", err)
	}
	_, err := env.Engine.CreateConditional(env.Ctx, engine.ConditionalCreateOptions{
		OwnerID:               testOwner,
		Title:                 "Plan A",
		ExpectedDate:          "2025-03-15",
		Outcomes:              basicOutcomes(),
		FallbackConditionalID: strPtr(target.ID),
	})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for resolved fallback target, got %v", err)
	}
}

func TestFallbackCycleDetection(t *testing.T) {
	env := newTestEnv(t)
	a := env.mustCreateConditional(t, engine.ConditionalCreateOptions{Title: "A"})
	b, err := env.Engine.CreateConditional(env.Ctx, engine.ConditionalCreateOptions{
		OwnerID:               testOwner,
		Title:                 "B",
		ExpectedDate:          "2025-03-15",
		Outcomes:              basicOutcomes(),
		FallbackConditionalID: strPtr(a.ID),
	})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	// Self-reference is rejected outright.
	_, err = env.Engine.UpdateConditional(env.Ctx, engine.ConditionalUpdateOptions{
		OwnerID:               testOwner,
		ID:                    a.ID,
		FallbackConditionalID: strPtr(a.ID),
	})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected self-fallback rejection, got %v", err)
	}

	// A -> B while B -> A closes a loop.
	_, err = env.Engine.UpdateConditional(env.Ctx, engine.ConditionalUpdateOptions{
		OwnerID:               testOwner,
		ID:                    a.ID,
		FallbackConditionalID: strPtr(b.ID),
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected cycle rejection, got %v", err)
	}
}

func TestUpdateConditionalPreservesOutcomeIDs(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCreateConditional(t, engine.ConditionalCreateOptions{Title: "Review"})
	keep := c.Outcomes[0]

	updated, err := env.Engine.UpdateConditional(env.Ctx, engine.ConditionalUpdateOptions{
		OwnerID: testOwner,
		ID:      c.ID,
		Outcomes: []engine.OutcomeInput{
			{ID: keep.ID, Label: "Yes, approved", Type: keep.Type, Action: keep.Action},
			{Label: "Deferred", Type: domain.OutcomeDelayed, Action: domain.ActionPostpone},
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Outcomes[0].ID != keep.ID {
		t.Errorf("known outcome id not preserved: got %s, want %s", updated.Outcomes[0].ID, keep.ID)
	}
	if updated.Outcomes[0].Label != "Yes, approved" {
		t.Errorf("label not updated")
	}
	if updated.Outcomes[1].ID == "" || updated.Outcomes[1].ID == keep.ID {
		t.Errorf("new outcome needs a fresh id, got %q", updated.Outcomes[1].ID)
	}

	// An id the conditional never had is replaced, not trusted.
	updated, err = env.Engine.UpdateConditional(env.Ctx, engine.ConditionalUpdateOptions{
		OwnerID: testOwner,
		ID:      c.ID,
		Outcomes: []engine.OutcomeInput{
			{ID: "outcome-forged", Label: "Forged", Type: domain.OutcomeSuccess, Action: domain.ActionActivate},
		},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Outcomes[0].ID == "outcome-forged" {
		t.Errorf("unknown outcome id must be re-stamped")
	}
}

func TestUpdateResolvedConditionalRejected(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCreateConditional(t, engine.ConditionalCreateOptions{Title: "Done deal"})
	if _, err := env.Engine.Resolve(env.Ctx, testOwner, c.ID, c.Outcomes[0].ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	_, err := env.Engine.UpdateConditional(env.Ctx, engine.ConditionalUpdateOptions{
		OwnerID: testOwner,
		ID:      c.ID,
		Title:   strPtr("Renamed"),
	})
	if !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestOwnerIsolation(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCreateConditional(t, engine.ConditionalCreateOptions{Title: "Mine"})
	if _, err := env.Engine.Repo.GetConditional(env.Ctx, "owner-2", c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("other owner must not see the conditional, got %v", err)
	}
	if _, err := env.Engine.Resolve(env.Ctx, "owner-2", c.ID, c.Outcomes[0].ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("other owner must not resolve, got %v", err)
	}
}

func TestCreateTaskBlockedByConditional(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCreateConditional(t, engine.ConditionalCreateOptions{Title: "Budget approval"})
	task := env.mustCreateTask(t, engine.TaskCreateOptions{
		Title:                  "Buy equipment",
		Status:                 domain.TaskPending,
		BlockedByConditionalID: c.ID,
	})
	if task.Status != domain.TaskBlocked {
		t.Errorf("status: got %s, want blocked", task.Status)
	}
	if task.BlockedByConditionalID == nil || *task.BlockedByConditionalID != c.ID {
		t.Errorf("block pointer not set")
	}
}

func TestCreateTaskRejectsMissingOrResolvedBlocker(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		OwnerID:                testOwner,
		Title:                  "Orphan",
		Scope:                  domain.ScopeDay,
		ScopeKey:               "2025-03-10",
		BlockedByConditionalID: "no-such-id",
	})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	c := env.mustCreateConditional(t, engine.ConditionalCreateOptions{Title: "Closed"})
	if _, err := env.Engine.Resolve(env.Ctx, testOwner, c.ID, c.Outcomes[0].ID); err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		OwnerID:                testOwner,
		Title:                  "Too late",
		Scope:                  domain.ScopeDay,
		ScopeKey:               "2025-03-10",
		BlockedByConditionalID: c.ID,
	})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for terminal blocker, got %v", err)
	}
}

func TestBlockedTaskStatusEditRejected(t *testing.T) {
	env := newTestEnv(t)
	c := env.mustCreateConditional(t, engine.ConditionalCreateOptions{Title: "Gate"})
	task := env.mustCreateTask(t, engine.TaskCreateOptions{Title: "Gated", BlockedByConditionalID: c.ID})

	status := domain.TaskInProgress
	_, err := env.Engine.UpdateTask(env.Ctx, testOwner, task.ID, engine.TaskUpdateOptions{Status: &status})
	var verr domain.ValidationError
	if !errors.As(err, &verr) || verr.Code != "task_blocked" {
		t.Fatalf("expected task_blocked, got %v", err)
	}

	// Other fields stay editable while blocked.
	got, err := env.Engine.UpdateTask(env.Ctx, testOwner, task.ID, engine.TaskUpdateOptions{Title: strPtr("Gated, renamed")})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got.Title != "Gated, renamed" || got.Status != domain.TaskBlocked {
		t.Errorf("rename changed the wrong fields: %+v", got)
	}
}

func TestManualBlockedStatusReserved(t *testing.T) {
	env := newTestEnv(t)
	task := env.mustCreateTask(t, engine.TaskCreateOptions{Title: "Free"})
	status := domain.TaskBlocked
	_, err := env.Engine.UpdateTask(env.Ctx, testOwner, task.ID, engine.TaskUpdateOptions{Status: &status})
	var verr domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected rejection of manual blocked status, got %v", err)
	}
}
