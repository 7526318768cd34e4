package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"hingeboard/internal/domain"
	"hingeboard/internal/events"
)

// RecomputeParentProgress recalculates a parent task's progress from its
// children. Each child contributes its progress weighted by its contribution
// percent; children without one split the weight evenly. The result is
// rounded half away from zero and clamped to [0, 100]. A parent with no
// children keeps whatever progress it has. The write stops at the parent;
// multi-level rollups are driven bottom-up by the caller.
func (e Engine) RecomputeParentProgress(ctx context.Context, ownerID, parentID string) (domain.Task, error) {
	parent, err := e.Repo.GetTask(ctx, ownerID, parentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Task{}, err
		}
		return domain.Task{}, domain.StoreError{Op: "load parent task", Err: err}
	}
	children, err := e.Repo.ListChildren(ctx, ownerID, parentID)
	if err != nil {
		return domain.Task{}, domain.StoreError{Op: "load child tasks", Err: err}
	}
	if len(children) == 0 {
		return parent, nil
	}

	progress := WeightedProgress(children)
	if progress == parent.Progress {
		return parent, nil
	}

	nowStr := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, domain.StoreError{Op: "roll up progress", Err: err}
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTaskProgressTx(ctx, tx, ownerID, parentID, progress, nowStr); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Task{}, err
		}
		return domain.Task{}, domain.StoreError{Op: "roll up progress", Err: err}
	}
	if err := e.Events.Append(ctx, tx, "task.progress.rolled_up", ownerID, "task", parentID, events.EventPayload{
		"progress": progress,
		"children": len(children),
	}); err != nil {
		return domain.Task{}, domain.StoreError{Op: "append event", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, domain.StoreError{Op: "commit roll up", Err: err}
	}
	parent.Progress = progress
	parent.UpdatedAt = nowStr
	return parent, nil
}

// WeightedProgress computes the aggregate progress of a set of sibling
// tasks. Explicit contribution percents are taken as-is; siblings without
// one share an equal split of 100. The total normalizes against the sum of
// weights, so over- or under-allocated percents still land in [0, 100].
func WeightedProgress(children []domain.Task) int {
	equal := 100.0 / float64(len(children))
	var sum, weights float64
	for _, c := range children {
		w := equal
		if c.ContributionPercent != nil {
			w = float64(*c.ContributionPercent)
		}
		sum += float64(c.Progress) / 100.0 * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	p := int(math.Round(sum / weights * 100.0))
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p
}
