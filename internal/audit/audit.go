// Package audit records plan history: every tier move and usage reset made
// against a profile.
//
// Logger has two implementations. ConsoleLogger writes events to zerolog only
// and is what callers get when no database is configured. SQLiteLogger keeps
// events queryable so users and operators can see how a plan changed.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/storyforge/storyforge/internal/logging"
)

// EventType names a kind of plan change.
type EventType string

const (
	EventTierChanged EventType = "tier_changed"
	EventUsageReset  EventType = "usage_reset"
)

// Event is a single plan history entry.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"event"`
	ProfileID string    `json:"profile_id"`
	Actor     string    `json:"actor,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(eventType EventType, profileID, actor, details string) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		ProfileID: profileID,
		Actor:     actor,
		Details:   details,
	}
}

// QueryFilter selects events. Zero fields match everything.
type QueryFilter struct {
	ProfileID string
	Type      EventType
	Since     *time.Time
	Limit     int
}

// Logger stores and retrieves plan history.
type Logger interface {
	Log(ctx context.Context, event Event) error
	// Query returns matching events, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Close() error
}

type actorKey struct{}

// WithActor records who is making changes through ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor, or "system".
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return "system"
}

// ConsoleLogger writes events to zerolog and keeps nothing.
type ConsoleLogger struct {
	log zerolog.Logger
}

func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{log: logging.New("audit")}
}

func (c *ConsoleLogger) Log(_ context.Context, event Event) error {
	logEvent(c.log, event)
	return nil
}

// Query always returns an empty slice; console events are not queryable.
func (c *ConsoleLogger) Query(context.Context, QueryFilter) ([]Event, error) {
	return []Event{}, nil
}

func (c *ConsoleLogger) Close() error {
	return nil
}

func logEvent(logger zerolog.Logger, event Event) {
	logger.Info().
		Str("audit_id", event.ID).
		Str("event", string(event.Type)).
		Str("profile_id", event.ProfileID).
		Str("actor", event.Actor).
		Str("details", event.Details).
		Time("timestamp", event.Timestamp).
		Msg("Plan change")
}
