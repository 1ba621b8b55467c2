package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/buildflow/pkg/eventbus"
	"github.com/dukex/buildflow/pkg/events"
	"github.com/dukex/buildflow/pkg/metrics"
	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/otelhelper"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/dukex/buildflow/pkg/rules"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine runs workflow transitions. Context resolution, rule evaluation, execution and the
// state write share one transaction; the resulting event is published after commit.
type Engine struct {
	logger    *slog.Logger
	store     persistence.Persistence
	rules     *rules.Engine
	builder   *ContextBuilder
	executor  *Executor
	state     *StateManager
	publisher eventbus.EventPublisher
	validate  *validator.Validate
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	clock     func() time.Time
}

type Option func(*Engine)

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock replaces the clock used for transition timestamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

func NewEngine(
	logger *slog.Logger,
	store persistence.Persistence,
	ruleEngine *rules.Engine,
	publisher eventbus.EventPublisher,
	options ...Option,
) *Engine {
	engine := &Engine{
		logger:    logger.With("module", "workflow_engine"),
		store:     store,
		rules:     ruleEngine,
		publisher: publisher,
		validate:  models.NewValidator(),
		tracer:    otelhelper.NoopTracer(),
		metrics:   metrics.NewNop(),
		clock:     func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(engine)
	}

	engine.builder = NewContextBuilder(engine.clock)
	engine.executor = NewExecutor(engine.clock)
	engine.state = NewStateManager()

	return engine
}

// ExecuteWorkflow validates, executes and persists one transition and publishes its event.
// Publishing failures are logged and do not fail the call: the transition is committed.
func (e *Engine) ExecuteWorkflow(ctx context.Context, req models.WorkflowExecutionRequest) (*models.WorkflowExecutionResult, error) {
	started := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute", requestAttributes(req)...)
	defer span.End()

	logger := e.logger.With(
		"project_id", req.ProjectID,
		"user_id", req.UserID,
		"action", req.Action.Type,
	)

	var (
		execCtx *models.WorkflowExecutionContext
		result  *models.WorkflowExecutionResult
	)

	err := e.validateRequest(req)
	if err == nil && !e.executor.Supports(req.Action.Type) {
		err = NewUnsupportedActionError("ExecuteWorkflow", req.Action.Type)
	}

	if err == nil {
		err = e.store.Transact(ctx, func(ctx context.Context, tx persistence.Store) error {
			var err error

			execCtx, err = e.prepare(ctx, tx, req)
			if err != nil {
				return err
			}

			result, err = e.executor.Execute(execCtx)
			if err != nil {
				return err
			}

			return e.state.UpdateState(ctx, tx, execCtx, result)
		})
	}

	if err != nil {
		outcome := outcomeOf(err)
		e.metrics.ObserveTransition(string(req.Action.Type), outcome, time.Since(started))
		otelhelper.SetError(span, err, attribute.String("outcome", outcome))
		logger.InfoContext(ctx, "Workflow transition failed", "outcome", outcome, "error", err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.TargetIDKey, result.TargetID.String()))
	e.metrics.ObserveTransition(string(req.Action.Type), metrics.OutcomeSuccess, time.Since(started))
	logger.InfoContext(ctx, "Workflow transition committed",
		"target_id", result.TargetID,
		"previous_status", result.PreviousStatus,
		"new_status", result.NewStatus)

	e.publish(ctx, logger, execCtx, result)

	return result, nil
}

// CanExecuteTransition reports whether the rules allow req, without executing or writing it.
func (e *Engine) CanExecuteTransition(ctx context.Context, req models.WorkflowExecutionRequest) (rules.Verdict, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.can_execute", requestAttributes(req)...)
	defer span.End()

	err := e.validateRequest(req)
	if err != nil {
		otelhelper.SetError(span, err)

		return rules.Verdict{}, err
	}

	var verdict rules.Verdict

	err = e.store.Transact(ctx, func(ctx context.Context, tx persistence.Store) error {
		execCtx, err := e.builder.Build(ctx, tx, req)
		if err != nil {
			return err
		}

		verdict = e.rules.CanExecuteTransition(ctx, execCtx)

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return rules.Verdict{}, err
	}

	span.SetAttributes(attribute.Bool("allowed", verdict.Allowed))

	return verdict, nil
}

// prepare builds the context and applies the rules.
func (e *Engine) prepare(ctx context.Context, tx persistence.Store, req models.WorkflowExecutionRequest) (*models.WorkflowExecutionContext, error) {
	execCtx, err := e.builder.Build(ctx, tx, req)
	if err != nil {
		return nil, err
	}

	verdict := e.rules.CanExecuteTransition(ctx, execCtx)
	if !verdict.Allowed {
		e.metrics.RuleRejected(verdict.Rule)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String(otelhelper.RuleNameKey, verdict.Rule))

		return nil, NewRuleError("ExecuteWorkflow", verdict.Rule, verdict.Message)
	}

	return execCtx, nil
}

func (e *Engine) validateRequest(req models.WorkflowExecutionRequest) error {
	err := e.validate.Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		first := validationErrors[0]

		return &Error{
			Op:      "ExecuteWorkflow",
			Kind:    ErrValidation,
			Message: "invalid request: " + first.Namespace() + " failed " + first.Tag() + " validation",
			Err:     err,
		}
	}

	return &Error{Op: "ExecuteWorkflow", Kind: ErrValidation, Message: "invalid request", Err: err}
}

func (e *Engine) publish(
	ctx context.Context,
	logger *slog.Logger,
	execCtx *models.WorkflowExecutionContext,
	result *models.WorkflowExecutionResult,
) {
	event := NewEvent(execCtx, result)
	eventType := string(event.GetType())

	err := e.publisher.Publish(ctx, execCtx.Project.ID.String(), event)
	if err != nil {
		e.metrics.PublishFailed(eventType)
		logger.ErrorContext(ctx, "Failed to publish workflow event", "event_type", eventType, "error", err)

		return
	}

	e.metrics.EventPublished(eventType)
	logger.DebugContext(ctx, "Published workflow event", "event_type", eventType)
}

// NewEvent derives the domain event of a committed transition.
//
//nolint:ireturn // the event type depends on the action
func NewEvent(execCtx *models.WorkflowExecutionContext, result *models.WorkflowExecutionResult) eventbus.Event {
	projectID := execCtx.Project.ID
	userID := execCtx.User.ID

	switch result.Action {
	case models.ActionStartStage:
		return events.StageStarted{
			BaseEvent: events.NewBaseEventAt(events.StageStartedEvent, projectID, userID, result.TransitionedAt),
			StageID:   execCtx.Stage.ID,
			StageName: execCtx.Stage.Name,
			StartedAt: result.TransitionedAt,
		}
	case models.ActionCompleteStage:
		var duration time.Duration
		if execCtx.Stage.StartedAt != nil {
			duration = result.TransitionedAt.Sub(*execCtx.Stage.StartedAt)
		}

		return events.StageCompleted{
			BaseEvent:      events.NewBaseEventAt(events.StageCompletedEvent, projectID, userID, result.TransitionedAt),
			StageID:        execCtx.Stage.ID,
			StageName:      execCtx.Stage.Name,
			CompletedAt:    result.TransitionedAt,
			ActualDuration: duration,
		}
	case models.ActionCompleteTask:
		return events.TaskCompleted{
			BaseEvent:   events.NewBaseEventAt(events.TaskCompletedEvent, projectID, userID, result.TransitionedAt),
			StageID:     execCtx.Stage.ID,
			TaskID:      execCtx.Task.ID,
			TaskName:    execCtx.Task.Name,
			CompletedAt: result.TransitionedAt,
		}
	case models.ActionCompleteStep:
		return events.StepCompleted{
			BaseEvent:   events.NewBaseEventAt(events.StepCompletedEvent, projectID, userID, result.TransitionedAt),
			TaskID:      execCtx.Task.ID,
			StepID:      execCtx.Step.ID,
			StepName:    execCtx.Step.Name,
			CompletedAt: result.TransitionedAt,
		}
	default:
		return events.WorkflowTransitioned{
			BaseEvent:      events.NewBaseEventAt(events.WorkflowTransitionedEvent, projectID, userID, result.TransitionedAt),
			Action:         result.Action,
			TargetLevel:    result.TargetLevel,
			TargetID:       result.TargetID,
			PreviousStatus: result.PreviousStatus,
			NewStatus:      result.NewStatus,
		}
	}
}

func outcomeOf(err error) string {
	switch {
	case IsUnsupportedAction(err):
		return metrics.OutcomeUnsupported
	case IsValidationError(err):
		return metrics.OutcomeRejected
	case IsConflict(err):
		return metrics.OutcomeConflict
	case IsNotFound(err):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}

func requestAttributes(req models.WorkflowExecutionRequest) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(otelhelper.ProjectIDKey, req.ProjectID.String()),
		attribute.String(otelhelper.UserIDKey, req.UserID.String()),
		attribute.String(otelhelper.ActionTypeKey, string(req.Action.Type)),
	}

	if req.StageID != nil {
		attrs = append(attrs, attribute.String(otelhelper.StageIDKey, req.StageID.String()))
	}

	if req.TaskID != nil {
		attrs = append(attrs, attribute.String(otelhelper.TaskIDKey, req.TaskID.String()))
	}

	if req.StepID != nil {
		attrs = append(attrs, attribute.String(otelhelper.StepIDKey, req.StepID.String()))
	}

	return attrs
}
