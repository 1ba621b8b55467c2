package models

// WorkflowStatus is the lifecycle status shared by stages, tasks and steps.
// CANCELLED is only reachable for steps.
type WorkflowStatus string

const (
	StatusNotStarted WorkflowStatus = "NOT_STARTED"
	StatusInProgress WorkflowStatus = "IN_PROGRESS"
	StatusCompleted  WorkflowStatus = "COMPLETED"
	StatusBlocked    WorkflowStatus = "BLOCKED"
	StatusSkipped    WorkflowStatus = "SKIPPED"
	StatusCancelled  WorkflowStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition leaves the status.
func (s WorkflowStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusSkipped || s == StatusCancelled
}

// IsValid reports whether s is a known status.
func (s WorkflowStatus) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusBlocked, StatusSkipped, StatusCancelled:
		return true
	default:
		return false
	}
}

// TargetLevel is the granularity a workflow action addresses.
type TargetLevel string

const (
	TargetLevelWorkflow TargetLevel = "WORKFLOW"
	TargetLevelStage    TargetLevel = "STAGE"
	TargetLevelTask     TargetLevel = "TASK"
	TargetLevelStep     TargetLevel = "STEP"
)
