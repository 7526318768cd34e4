// Package repo is the store adapter: typed access to the conditionals, tasks
// and events collections, scoped per owning user. Mutations that belong to an
// atomic batch take a *sql.Tx; the engine owns transaction boundaries.
package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"hingeboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

const conditionalColumns = `id,owner_id,title,COALESCE(description,''),expected_date,urgency,status,outcomes_json,fallback_conditional_id,fallback_postpone_days,selected_outcome_id,resolved_at,created_at,updated_at`

type conditionalScanner interface {
	Scan(dest ...any) error
}

func scanConditional(row conditionalScanner) (domain.Conditional, error) {
	var c domain.Conditional
	var outcomesJSON string
	var fallbackID, selectedOutcome, resolvedAt sql.NullString
	var fallbackDays sql.NullInt64
	err := row.Scan(&c.ID, &c.OwnerID, &c.Title, &c.Description, &c.ExpectedDate, &c.Urgency, &c.Status,
		&outcomesJSON, &fallbackID, &fallbackDays, &selectedOutcome, &resolvedAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, domain.ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(outcomesJSON), &c.Outcomes); err != nil {
		return c, fmt.Errorf("decode outcomes for conditional %s: %w", c.ID, err)
	}
	if fallbackID.Valid {
		c.FallbackConditionalID = &fallbackID.String
	}
	if fallbackDays.Valid {
		d := int(fallbackDays.Int64)
		c.FallbackPostponeDays = &d
	}
	if selectedOutcome.Valid {
		c.SelectedOutcomeID = &selectedOutcome.String
	}
	if resolvedAt.Valid {
		c.ResolvedAt = &resolvedAt.String
	}
	return c, nil
}

func encodeOutcomes(outcomes []domain.Outcome) (string, error) {
	b, err := json.Marshal(outcomes)
	if err != nil {
		return "", fmt.Errorf("encode outcomes: %w", err)
	}
	return string(b), nil
}

func (r Repo) InsertConditionalTx(ctx context.Context, tx *sql.Tx, c domain.Conditional) error {
	outcomesJSON, err := encodeOutcomes(c.Outcomes)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO conditionals(id,owner_id,title,description,expected_date,urgency,status,outcomes_json,fallback_conditional_id,fallback_postpone_days,selected_outcome_id,resolved_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.OwnerID, c.Title, nullable(c.Description), c.ExpectedDate, c.Urgency, c.Status,
		outcomesJSON, nullableStringPtr(c.FallbackConditionalID), nullableIntPtr(c.FallbackPostponeDays),
		nullableStringPtr(c.SelectedOutcomeID), nullableStringPtr(c.ResolvedAt), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetConditional(ctx context.Context, ownerID, id string) (domain.Conditional, error) {
	return scanConditional(r.DB.QueryRowContext(ctx,
		`SELECT `+conditionalColumns+` FROM conditionals WHERE owner_id=? AND id=?`, ownerID, id))
}

func (r Repo) GetConditionalTx(ctx context.Context, tx *sql.Tx, ownerID, id string) (domain.Conditional, error) {
	return scanConditional(tx.QueryRowContext(ctx,
		`SELECT `+conditionalColumns+` FROM conditionals WHERE owner_id=? AND id=?`, ownerID, id))
}

type ConditionalFilters struct {
	Status string
}

// ListConditionals returns the owner's conditionals ordered ascending by
// expected date, with creation time as the tiebreak.
func (r Repo) ListConditionals(ctx context.Context, ownerID string, f ConditionalFilters) ([]domain.Conditional, error) {
	query := `SELECT ` + conditionalColumns + ` FROM conditionals WHERE owner_id=?`
	args := []any{ownerID}
	if f.Status != "" {
		query += ` AND status=?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY expected_date ASC, created_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Conditional
	for rows.Next() {
		c, err := scanConditional(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// UpdateConditionalTx rewrites the mutable fields of a pending conditional.
func (r Repo) UpdateConditionalTx(ctx context.Context, tx *sql.Tx, c domain.Conditional) error {
	outcomesJSON, err := encodeOutcomes(c.Outcomes)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE conditionals SET title=?, description=?, expected_date=?, urgency=?, outcomes_json=?, fallback_conditional_id=?, fallback_postpone_days=?, updated_at=? WHERE owner_id=? AND id=?`,
		c.Title, nullable(c.Description), c.ExpectedDate, c.Urgency, outcomesJSON,
		nullableStringPtr(c.FallbackConditionalID), nullableIntPtr(c.FallbackPostponeDays),
		c.UpdatedAt, c.OwnerID, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkResolvedTx flips a conditional into its terminal state, guarded on
// status still being pending. Zero rows affected means another caller won
// the race (or the row vanished) and the whole batch must abort.
func (r Repo) MarkResolvedTx(ctx context.Context, tx *sql.Tx, ownerID, id string, status domain.ConditionalStatus, outcomeID, resolvedAt, updatedAt string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE conditionals SET status=?, selected_outcome_id=?, resolved_at=?, updated_at=? WHERE owner_id=? AND id=? AND status=?`,
		status, outcomeID, resolvedAt, updatedAt, ownerID, id, domain.ConditionalPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) DeleteConditionalTx(ctx context.Context, tx *sql.Tx, ownerID, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM conditionals WHERE owner_id=? AND id=?`, ownerID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
