package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/buildflow/pkg/events"
	"github.com/google/uuid"
)

// Report is the progress of one project as seen through its events.
type Report struct {
	ProjectID            uuid.UUID     `json:"project_id"`
	StagesStarted        int           `json:"stages_started"`
	StagesCompleted      int           `json:"stages_completed"`
	TasksCompleted       int           `json:"tasks_completed"`
	StepsCompleted       int           `json:"steps_completed"`
	AssignmentsAccepted  int           `json:"assignments_accepted"`
	AverageStageDuration time.Duration `json:"average_stage_duration"`
	LastEventAt          time.Time     `json:"last_event_at,omitzero"`
}

type progress struct {
	report        Report
	timedStages   int
	totalDuration time.Duration
}

// Reports keeps per-project progress counters in memory.
type Reports struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	projects map[uuid.UUID]*progress
}

func NewReports(logger *slog.Logger) *Reports {
	return &Reports{
		logger:   logger.With("module", "reports"),
		projects: make(map[uuid.UUID]*progress),
	}
}

func (r *Reports) Register(registrar Registrar) {
	registrar.RegisterAll("reports", r.Handle)
}

func (r *Reports) Handle(ctx context.Context, event any) error {
	e, ok := event.(projectEvent)
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.projects[e.GetProjectID()]
	if !exists {
		p = &progress{report: Report{ProjectID: e.GetProjectID()}}
		r.projects[e.GetProjectID()] = p
	}

	switch ev := event.(type) {
	case *events.StageStarted:
		p.report.StagesStarted++
	case *events.StageCompleted:
		p.report.StagesCompleted++

		if ev.ActualDuration > 0 {
			p.timedStages++
			p.totalDuration += ev.ActualDuration
			p.report.AverageStageDuration = p.totalDuration / time.Duration(p.timedStages)
		}
	case *events.TaskCompleted:
		p.report.TasksCompleted++
	case *events.StepCompleted:
		p.report.StepsCompleted++
	case *events.AssignmentAccepted:
		p.report.AssignmentsAccepted++
	}

	if e.GetTimestamp().After(p.report.LastEventAt) {
		p.report.LastEventAt = e.GetTimestamp()
	}

	r.logger.DebugContext(ctx, "Report updated", "project_id", e.GetProjectID(), "event_type", e.GetType())

	return nil
}

// Snapshot returns a copy of the report of projectID. Unknown projects have an empty report.
func (r *Reports) Snapshot(projectID uuid.UUID) Report {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.projects[projectID]
	if !ok {
		return Report{ProjectID: projectID}
	}

	return p.report
}
