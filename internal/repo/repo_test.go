package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"hingeboard/internal/db"
	"hingeboard/internal/domain"
	"hingeboard/internal/migrate"
	"hingeboard/internal/repo"
)

func newTestRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, context.Background()
}

func inTx(t *testing.T, r repo.Repo, ctx context.Context, fn func(tx *sql.Tx) error) {
	t.Helper()
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func sampleConditional(id, owner, expected string) domain.Conditional {
	return domain.Conditional{
		ID:           id,
		OwnerID:      owner,
		Title:        "c-" + id,
		ExpectedDate: expected,
		Urgency:      domain.UrgencyMedium,
		Status:       domain.ConditionalPending,
		Outcomes: []domain.Outcome{
			{ID: "outcome-" + id, Label: "Yes", Type: domain.OutcomeSuccess, Action: domain.ActionActivate},
		},
		CreatedAt: "2025-03-01T00:00:00Z",
		UpdatedAt: "2025-03-01T00:00:00Z",
	}
}

func TestConditionalRoundTrip(t *testing.T) {
	r, ctx := newTestRepo(t)
	days := 14
	c := sampleConditional("c1", "o1", "2025-03-15")
	c.Description = "a decision"
	c.FallbackPostponeDays = &days
	inTx(t, r, ctx, func(tx *sql.Tx) error { return r.InsertConditionalTx(ctx, tx, c) })

	got, err := r.GetConditional(ctx, "o1", "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != c.Title || got.Description != "a decision" || got.ExpectedDate != "2025-03-15" {
		t.Errorf("fields: %+v", got)
	}
	if got.FallbackPostponeDays == nil || *got.FallbackPostponeDays != 14 {
		t.Errorf("fallback days: %v", got.FallbackPostponeDays)
	}
	if len(got.Outcomes) != 1 || got.Outcomes[0].ID != "outcome-c1" {
		t.Errorf("outcomes: %+v", got.Outcomes)
	}
	if got.SelectedOutcomeID != nil || got.ResolvedAt != nil {
		t.Errorf("unresolved conditional carries no resolution fields")
	}
}

func TestListConditionalsOrder(t *testing.T) {
	r, ctx := newTestRepo(t)
	inTx(t, r, ctx, func(tx *sql.Tx) error {
		for _, c := range []domain.Conditional{
			sampleConditional("late", "o1", "2025-04-01"),
			sampleConditional("early", "o1", "2025-03-01"),
			sampleConditional("mid", "o1", "2025-03-15"),
		} {
			if err := r.InsertConditionalTx(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})

	got, err := r.ListConditionals(ctx, "o1", repo.ConditionalFilters{})
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, c := range got {
		ids = append(ids, c.ID)
	}
	want := []string{"early", "mid", "late"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order: got %v, want %v", ids, want)
		}
	}
}

func TestMarkResolvedIsCompareAndSwap(t *testing.T) {
	r, ctx := newTestRepo(t)
	inTx(t, r, ctx, func(tx *sql.Tx) error {
		return r.InsertConditionalTx(ctx, tx, sampleConditional("c1", "o1", "2025-03-15"))
	})

	var first, second int64
	inTx(t, r, ctx, func(tx *sql.Tx) error {
		n, err := r.MarkResolvedTx(ctx, tx, "o1", "c1", domain.ConditionalResolved, "outcome-c1", "2025-03-16T00:00:00Z", "2025-03-16T00:00:00Z")
		first = n
		return err
	})
	inTx(t, r, ctx, func(tx *sql.Tx) error {
		n, err := r.MarkResolvedTx(ctx, tx, "o1", "c1", domain.ConditionalFailed, "outcome-c1", "2025-03-17T00:00:00Z", "2025-03-17T00:00:00Z")
		second = n
		return err
	})
	if first != 1 || second != 0 {
		t.Fatalf("affected rows: first=%d second=%d, want 1 then 0", first, second)
	}

	got, err := r.GetConditional(ctx, "o1", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.ConditionalResolved {
		t.Errorf("second resolve must not win, got %s", got.Status)
	}
}

func TestNotFoundPaths(t *testing.T) {
	r, ctx := newTestRepo(t)
	if _, err := r.GetConditional(ctx, "o1", "absent"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get conditional: %v", err)
	}
	if _, err := r.GetTask(ctx, "o1", "absent"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get task: %v", err)
	}
	inTx(t, r, ctx, func(tx *sql.Tx) error {
		if err := r.DeleteTaskTx(ctx, tx, "o1", "absent"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("delete task: %v", err)
		}
		return nil
	})
	inTx(t, r, ctx, func(tx *sql.Tx) error {
		if err := r.DeleteConditionalTx(ctx, tx, "o1", "absent"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("delete conditional: %v", err)
		}
		return nil
	})
}

func TestTasksBlockedByAndOwnerScoping(t *testing.T) {
	r, ctx := newTestRepo(t)
	blocker := "c1"
	inTx(t, r, ctx, func(tx *sql.Tx) error {
		tasks := []domain.Task{
			{ID: "t1", OwnerID: "o1", Title: "blocked one", Scope: domain.ScopeDay, ScopeKey: "2025-03-10", Status: domain.TaskBlocked, BlockedByConditionalID: &blocker, CreatedAt: "2025-03-01T00:00:00Z", UpdatedAt: "2025-03-01T00:00:00Z"},
			{ID: "t2", OwnerID: "o1", Title: "blocked two", Scope: domain.ScopeDay, ScopeKey: "2025-03-11", Status: domain.TaskBlocked, BlockedByConditionalID: &blocker, CreatedAt: "2025-03-01T00:00:00Z", UpdatedAt: "2025-03-01T00:00:00Z"},
			{ID: "t3", OwnerID: "o1", Title: "free", Scope: domain.ScopeDay, ScopeKey: "2025-03-10", Status: domain.TaskPending, CreatedAt: "2025-03-01T00:00:00Z", UpdatedAt: "2025-03-01T00:00:00Z"},
			{ID: "t4", OwnerID: "o2", Title: "other owner", Scope: domain.ScopeDay, ScopeKey: "2025-03-10", Status: domain.TaskBlocked, BlockedByConditionalID: &blocker, CreatedAt: "2025-03-01T00:00:00Z", UpdatedAt: "2025-03-01T00:00:00Z"},
		}
		for _, task := range tasks {
			if err := r.InsertTaskTx(ctx, tx, task); err != nil {
				return err
			}
		}
		return nil
	})

	got, err := r.TasksBlockedBy(ctx, "o1", blocker)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("blocked tasks: got %d, want 2", len(got))
	}
	for _, task := range got {
		if task.OwnerID != "o1" {
			t.Errorf("leaked task from another owner: %s", task.ID)
		}
	}
}

func TestListTasksFilters(t *testing.T) {
	r, ctx := newTestRepo(t)
	parent := "p1"
	inTx(t, r, ctx, func(tx *sql.Tx) error {
		tasks := []domain.Task{
			{ID: "p1", OwnerID: "o1", Title: "parent", Scope: domain.ScopeWeek, ScopeKey: "2025-W12", Status: domain.TaskInProgress, CreatedAt: "2025-03-01T00:00:00Z", UpdatedAt: "2025-03-01T00:00:00Z"},
			{ID: "k1", OwnerID: "o1", Title: "kid", Scope: domain.ScopeDay, ScopeKey: "2025-03-18", Status: domain.TaskPending, ParentTaskID: &parent, CreatedAt: "2025-03-01T00:00:00Z", UpdatedAt: "2025-03-01T00:00:00Z"},
			{ID: "k2", OwnerID: "o1", Title: "kid two", Scope: domain.ScopeDay, ScopeKey: "2025-03-19", Status: domain.TaskDone, ParentTaskID: &parent, CreatedAt: "2025-03-01T00:00:00Z", UpdatedAt: "2025-03-01T00:00:00Z"},
		}
		for _, task := range tasks {
			if err := r.InsertTaskTx(ctx, tx, task); err != nil {
				return err
			}
		}
		return nil
	})

	byScope, err := r.ListTasks(ctx, "o1", repo.TaskFilters{Scope: "week", ScopeKey: "2025-W12"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byScope) != 1 || byScope[0].ID != "p1" {
		t.Errorf("scope filter: %+v", byScope)
	}

	byStatus, err := r.ListTasks(ctx, "o1", repo.TaskFilters{Status: "done"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != "k2" {
		t.Errorf("status filter: %+v", byStatus)
	}

	kids, err := r.ListChildren(ctx, "o1", parent)
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) != 2 {
		t.Errorf("children: got %d, want 2", len(kids))
	}
}

func TestUpdateTaskProgressOnly(t *testing.T) {
	r, ctx := newTestRepo(t)
	inTx(t, r, ctx, func(tx *sql.Tx) error {
		return r.InsertTaskTx(ctx, tx, domain.Task{
			ID: "t1", OwnerID: "o1", Title: "keep me", Scope: domain.ScopeDay, ScopeKey: "2025-03-10",
			Status: domain.TaskInProgress, CreatedAt: "2025-03-01T00:00:00Z", UpdatedAt: "2025-03-01T00:00:00Z",
		})
	})
	inTx(t, r, ctx, func(tx *sql.Tx) error {
		return r.UpdateTaskProgressTx(ctx, tx, "o1", "t1", 65, "2025-03-02T00:00:00Z")
	})
	got, err := r.GetTask(ctx, "o1", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Progress != 65 || got.Title != "keep me" || got.Status != domain.TaskInProgress {
		t.Errorf("progress-only update touched other fields: %+v", got)
	}
}
