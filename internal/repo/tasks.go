package repo

import (
	"context"
	"database/sql"
	"strings"

	"hingeboard/internal/domain"
)

const taskColumns = `id,owner_id,title,COALESCE(description,''),scope,scope_key,status,blocked_by_conditional_id,original_scheduled_date,progress,parent_task_id,contribution_percent,created_at,updated_at`

type taskScanner interface {
	Scan(dest ...any) error
}

func scanTask(row taskScanner) (domain.Task, error) {
	var t domain.Task
	var blockedBy, originalDate, parentID sql.NullString
	var contribution sql.NullInt64
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Scope, &t.ScopeKey, &t.Status,
		&blockedBy, &originalDate, &t.Progress, &parentID, &contribution, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, domain.ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if blockedBy.Valid {
		t.BlockedByConditionalID = &blockedBy.String
	}
	if originalDate.Valid {
		t.OriginalScheduledDate = &originalDate.String
	}
	if parentID.Valid {
		t.ParentTaskID = &parentID.String
	}
	if contribution.Valid {
		c := int(contribution.Int64)
		t.ContributionPercent = &c
	}
	return t, nil
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,owner_id,title,description,scope,scope_key,status,blocked_by_conditional_id,original_scheduled_date,progress,parent_task_id,contribution_percent,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.OwnerID, t.Title, nullable(t.Description), t.Scope, t.ScopeKey, t.Status,
		nullableStringPtr(t.BlockedByConditionalID), nullableStringPtr(t.OriginalScheduledDate),
		t.Progress, nullableStringPtr(t.ParentTaskID), nullableIntPtr(t.ContributionPercent),
		t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, ownerID, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id=? AND id=?`, ownerID, id))
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, ownerID, id string) (domain.Task, error) {
	return scanTask(tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id=? AND id=?`, ownerID, id))
}

// UpdateTaskTx rewrites every mutable task field. Resolution and the delete
// cascade go through this inside their batch transaction.
func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, scope=?, scope_key=?, status=?, blocked_by_conditional_id=?, original_scheduled_date=?, progress=?, parent_task_id=?, contribution_percent=?, updated_at=? WHERE owner_id=? AND id=?`,
		t.Title, nullable(t.Description), t.Scope, t.ScopeKey, t.Status,
		nullableStringPtr(t.BlockedByConditionalID), nullableStringPtr(t.OriginalScheduledDate),
		t.Progress, nullableStringPtr(t.ParentTaskID), nullableIntPtr(t.ContributionPercent),
		t.UpdatedAt, t.OwnerID, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateTaskProgressTx writes only the progress field, for the aggregator.
func (r Repo) UpdateTaskProgressTx(ctx context.Context, tx *sql.Tx, ownerID, id string, progress int, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET progress=?, updated_at=? WHERE owner_id=? AND id=?`,
		progress, updatedAt, ownerID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTaskTx(ctx context.Context, tx *sql.Tx, ownerID, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE owner_id=? AND id=?`, ownerID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type TaskFilters struct {
	Status   string
	Scope    string
	ScopeKey string
	ParentID string
}

func (r Repo) ListTasks(ctx context.Context, ownerID string, f TaskFilters) ([]domain.Task, error) {
	clauses := []string{"owner_id=?"}
	args := []any{ownerID}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Scope != "" {
		clauses = append(clauses, "scope=?")
		args = append(args, f.Scope)
	}
	if f.ScopeKey != "" {
		clauses = append(clauses, "scope_key=?")
		args = append(args, f.ScopeKey)
	}
	if f.ParentID != "" {
		clauses = append(clauses, "parent_task_id=?")
		args = append(args, f.ParentID)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY scope_key ASC, created_at ASC, id ASC`
	return r.queryTasks(ctx, nil, query, args...)
}

// TasksBlockedBy is the equality query on blocked_by_conditional_id. Order is
// unspecified; callers sort if they need to.
func (r Repo) TasksBlockedBy(ctx context.Context, ownerID, conditionalID string) ([]domain.Task, error) {
	return r.queryTasks(ctx, nil,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id=? AND blocked_by_conditional_id=?`, ownerID, conditionalID)
}

func (r Repo) TasksBlockedByTx(ctx context.Context, tx *sql.Tx, ownerID, conditionalID string) ([]domain.Task, error) {
	return r.queryTasks(ctx, tx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id=? AND blocked_by_conditional_id=?`, ownerID, conditionalID)
}

// ListChildren returns tasks whose parent_task_id is the given task.
func (r Repo) ListChildren(ctx context.Context, ownerID, parentID string) ([]domain.Task, error) {
	return r.queryTasks(ctx, nil,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id=? AND parent_task_id=?`, ownerID, parentID)
}

func (r Repo) ListChildrenTx(ctx context.Context, tx *sql.Tx, ownerID, parentID string) ([]domain.Task, error) {
	return r.queryTasks(ctx, tx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id=? AND parent_task_id=?`, ownerID, parentID)
}

func (r Repo) queryTasks(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]domain.Task, error) {
	var rows *sql.Rows
	var err error
	if tx != nil {
		rows, err = tx.QueryContext(ctx, query, args...)
	} else {
		rows, err = r.DB.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
