package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/buildflow/pkg/events"
	"github.com/dukex/buildflow/pkg/log"
	"github.com/dukex/buildflow/pkg/metrics"
	"github.com/dukex/buildflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrDispatcherStopped = errors.New("dispatcher stopped")

// NamedHandler is an event consumer identified in logs and metrics by Name.
type NamedHandler struct {
	Name   string
	Handle EventHandler
}

type job struct {
	ctx       context.Context
	eventType events.EventType
	handler   NamedHandler
	event     any
}

// Dispatcher fans events out to a fixed set of handlers running on a bounded worker pool.
// Handler errors and panics are logged and counted, and never reach the publisher.
type Dispatcher struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	workers int

	handlers map[events.EventType][]NamedHandler
	jobs     chan job
	wg       sync.WaitGroup
	mu       sync.RWMutex
	started  bool
	stopped  bool
}

func NewDispatcher(logger *slog.Logger, m *metrics.Metrics, tracer trace.Tracer, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}

	return &Dispatcher{
		logger:   logger.With("module", "event_dispatcher"),
		metrics:  m,
		tracer:   tracer,
		workers:  workers,
		handlers: make(map[events.EventType][]NamedHandler),
		jobs:     make(chan job, workers*16),
	}
}

// Register adds a handler for eventType. Handlers must be registered before Start.
func (d *Dispatcher) Register(eventType events.EventType, name string, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], NamedHandler{Name: name, Handle: handler})
}

// RegisterAll adds handler for every workflow event type.
func (d *Dispatcher) RegisterAll(name string, handler EventHandler) {
	for _, eventType := range []events.EventType{
		events.StageStartedEvent,
		events.StageCompletedEvent,
		events.TaskCompletedEvent,
		events.StepCompletedEvent,
		events.AssignmentAcceptedEvent,
		events.WorkflowTransitionedEvent,
	} {
		d.Register(eventType, name, handler)
	}
}

// Start launches the workers and subscribes to the bus.
func (d *Dispatcher) Start(ctx context.Context, subscriber EventSubscriber) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()

		return errors.New("dispatcher already started")
	}

	d.started = true
	eventTypes := make([]events.EventType, 0, len(d.handlers))

	for eventType := range d.handlers {
		eventTypes = append(eventTypes, eventType)
	}
	d.mu.Unlock()

	for range d.workers {
		d.wg.Add(1)

		go d.work()
	}

	for _, eventType := range eventTypes {
		err := subscriber.Handle(eventType, d.enqueuer(eventType))
		if err != nil {
			return fmt.Errorf("failed to register %s handler: %w", eventType, err)
		}
	}

	d.logger.InfoContext(ctx, "Dispatcher started", "workers", d.workers, "event_types", len(eventTypes))

	return subscriber.Subscribe(ctx)
}

// Dispatch queues event for every handler registered for eventType. It blocks while the
// queue is full and returns once every handler has been queued.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType events.EventType, event any) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}

	for _, handler := range d.handlers[eventType] {
		select {
		case d.jobs <- job{ctx: context.WithoutCancel(ctx), eventType: eventType, handler: handler, event: event}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// Stop stops accepting events and waits for queued handlers to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()

		return
	}

	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) enqueuer(eventType events.EventType) EventHandler {
	return func(ctx context.Context, event any) error {
		return d.Dispatch(ctx, eventType, event)
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for j := range d.jobs {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx, span := otelhelper.StartSpan(j.ctx, d.tracer, "event.handle",
		attribute.String(otelhelper.EventTypeKey, string(j.eventType)),
		attribute.String(otelhelper.HandlerNameKey, j.handler.Name),
	)
	defer span.End()

	logger := d.logger.With("handler", j.handler.Name, "event_type", j.eventType)
	ctx = log.WithLogger(ctx, logger)

	err := d.safeHandle(ctx, j)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Event handler failed", "error", err)
	}

	d.metrics.HandlerRan(j.handler.Name, err != nil)
}

func (d *Dispatcher) safeHandle(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return j.handler.Handle(ctx, j.event)
}
