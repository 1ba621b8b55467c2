package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/buildflow/pkg/events"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultTimelineMaxLen = 10000

// streamClient is the subset of *redis.Client the timeline uses.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRange(ctx context.Context, stream, start, stop string) *redis.XMessageSliceCmd
}

// TimelineEntry is one stored workflow event.
type TimelineEntry struct {
	StreamID  string           `json:"stream_id"`
	EventID   string           `json:"event_id"`
	EventType events.EventType `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	Payload   json.RawMessage  `json:"payload"`
}

// Timeline appends every workflow event to a Redis stream per project.
type Timeline struct {
	logger *slog.Logger
	client streamClient
	maxLen int64
}

func NewTimeline(logger *slog.Logger, client streamClient) *Timeline {
	return &Timeline{
		logger: logger.With("module", "timeline"),
		client: client,
		maxLen: defaultTimelineMaxLen,
	}
}

// StreamKey is the Redis stream holding the timeline of projectID.
func StreamKey(projectID uuid.UUID) string {
	return "buildflow:timeline:" + projectID.String()
}

func (t *Timeline) Register(registrar Registrar) {
	registrar.RegisterAll("timeline", t.Handle)
}

func (t *Timeline) Handle(ctx context.Context, event any) error {
	e, ok := event.(projectEvent)
	if !ok {
		return fmt.Errorf("timeline cannot store %T", event)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", e.GetType(), err)
	}

	id, err := t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(e.GetProjectID()),
		MaxLen: t.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":   e.GetID(),
			"event_type": string(e.GetType()),
			"timestamp":  e.GetTimestamp().Format(time.RFC3339Nano),
			"payload":    string(payload),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to append %s event to timeline: %w", e.GetType(), err)
	}

	t.logger.DebugContext(ctx, "Event appended to timeline",
		"project_id", e.GetProjectID(),
		"event_type", e.GetType(),
		"stream_id", id)

	return nil
}

// Entries returns the timeline of projectID, oldest first.
func (t *Timeline) Entries(ctx context.Context, projectID uuid.UUID) ([]TimelineEntry, error) {
	messages, err := t.client.XRange(ctx, StreamKey(projectID), "-", "+").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []TimelineEntry{}, nil
		}

		return nil, fmt.Errorf("failed to read timeline of project %s: %w", projectID, err)
	}

	entries := make([]TimelineEntry, 0, len(messages))

	for _, msg := range messages {
		entry := TimelineEntry{
			StreamID:  msg.ID,
			EventID:   stringValue(msg.Values, "event_id"),
			EventType: events.EventType(stringValue(msg.Values, "event_type")),
			Payload:   json.RawMessage(stringValue(msg.Values, "payload")),
		}

		if ts := stringValue(msg.Values, "timestamp"); ts != "" {
			entry.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp in timeline entry %s: %w", msg.ID, err)
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func stringValue(values map[string]any, key string) string {
	value, _ := values[key].(string)

	return value
}
