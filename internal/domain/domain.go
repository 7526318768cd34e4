package domain

// Urgency is display/ordering metadata on a conditional. It has no effect on
// resolution behavior.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	default:
		return false
	}
}

// ConditionalStatus: pending is the only mutable state; resolved and failed
// are terminal.
type ConditionalStatus string

const (
	ConditionalPending  ConditionalStatus = "pending"
	ConditionalResolved ConditionalStatus = "resolved"
	ConditionalFailed   ConditionalStatus = "failed"
)

func (s ConditionalStatus) Terminal() bool {
	return s == ConditionalResolved || s == ConditionalFailed
}

type OutcomeType string

const (
	OutcomeSuccess OutcomeType = "success"
	OutcomeDelayed OutcomeType = "delayed"
	OutcomeFailed  OutcomeType = "failed"
)

func (t OutcomeType) IsValid() bool {
	switch t {
	case OutcomeSuccess, OutcomeDelayed, OutcomeFailed:
		return true
	default:
		return false
	}
}

// OutcomeAction is the closed set of things a resolution can do to blocked
// tasks.
type OutcomeAction string

const (
	ActionActivate       OutcomeAction = "activate"
	ActionPostpone       OutcomeAction = "postpone"
	ActionSwitchFallback OutcomeAction = "switch_fallback"
)

func (a OutcomeAction) IsValid() bool {
	switch a {
	case ActionActivate, ActionPostpone, ActionSwitchFallback:
		return true
	default:
		return false
	}
}

// Outcome is one possible resolution of a conditional. PostponeDays only
// applies to the postpone action; nil means the configured default.
type Outcome struct {
	ID           string        `json:"id"`
	Label        string        `json:"label"`
	Type         OutcomeType   `json:"type"`
	Action       OutcomeAction `json:"action"`
	PostponeDays *int          `json:"postponeDays,omitempty"`
}

// Conditional models an uncertain future event gating one or more tasks.
// Either the conditional is pending, or it is terminal with SelectedOutcomeID
// and ResolvedAt set; no other combination is stored.
type Conditional struct {
	ID                    string            `json:"id"`
	OwnerID               string            `json:"ownerId"`
	Title                 string            `json:"title"`
	Description           string            `json:"description,omitempty"`
	ExpectedDate          string            `json:"expectedDate" format:"date"`
	Urgency               Urgency           `json:"urgency" enum:"low,medium,high,critical"`
	Status                ConditionalStatus `json:"status" enum:"pending,resolved,failed"`
	Outcomes              []Outcome         `json:"outcomes"`
	FallbackConditionalID *string           `json:"fallbackConditionalId,omitempty"`
	FallbackPostponeDays  *int              `json:"fallbackPostponeDays,omitempty"`
	SelectedOutcomeID     *string           `json:"selectedOutcomeId,omitempty"`
	ResolvedAt            *string           `json:"resolvedAt,omitempty" format:"date-time"`
	CreatedAt             string            `json:"createdAt" format:"date-time"`
	UpdatedAt             string            `json:"updatedAt" format:"date-time"`
}

// Outcome returns the outcome with the given id, if present.
func (c Conditional) Outcome(id string) (Outcome, bool) {
	for _, o := range c.Outcomes {
		if o.ID == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// Scope is the calendar granularity a task is scheduled at.
type Scope string

const (
	ScopeDay   Scope = "day"
	ScopeWeek  Scope = "week"
	ScopeMonth Scope = "month"
	ScopeYear  Scope = "year"
)

func (s Scope) IsValid() bool {
	switch s {
	case ScopeDay, ScopeWeek, ScopeMonth, ScopeYear:
		return true
	default:
		return false
	}
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskDone       TaskStatus = "done"
	TaskBlocked    TaskStatus = "blocked"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskDone, TaskBlocked:
		return true
	default:
		return false
	}
}

// Task is a schedulable work item. A task with BlockedByConditionalID set has
// status blocked; only the resolution engine or the delete cascade clears the
// pointer and changes status together.
type Task struct {
	ID                     string     `json:"id"`
	OwnerID                string     `json:"ownerId"`
	Title                  string     `json:"title"`
	Description            string     `json:"description,omitempty"`
	Scope                  Scope      `json:"scope" enum:"day,week,month,year"`
	ScopeKey               string     `json:"scopeKey"`
	Status                 TaskStatus `json:"status" enum:"pending,in-progress,done,blocked"`
	BlockedByConditionalID *string    `json:"blockedByConditionalId,omitempty"`
	OriginalScheduledDate  *string    `json:"originalScheduledDate,omitempty" format:"date"`
	Progress               int        `json:"progress" minimum:"0" maximum:"100"`
	ParentTaskID           *string    `json:"parentTaskId,omitempty"`
	ContributionPercent    *int       `json:"contributionPercent,omitempty" minimum:"0" maximum:"100"`
	CreatedAt              string     `json:"createdAt" format:"date-time"`
	UpdatedAt              string     `json:"updatedAt" format:"date-time"`
}

// Blocked reports whether the task currently waits on a conditional.
func (t Task) Blocked() bool {
	return t.BlockedByConditionalID != nil && *t.BlockedByConditionalID != ""
}

// Event is one row of the append-only activity feed. Events are written in
// the same transaction as the mutation they describe.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OwnerID    string `json:"ownerId"`
	EntityKind string `json:"entityKind"`
	EntityID   string `json:"entityId,omitempty"`
	Payload    string `json:"payloadJson"`
}
