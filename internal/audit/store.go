package audit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/storyforge/storyforge/internal/logging"
	"github.com/storyforge/storyforge/internal/profiles"
	"github.com/storyforge/storyforge/pkg/entitlements"
)

// RecordingStore is a profiles.Store that logs tier moves and usage resets.
// A failed audit write is logged and never fails the change itself.
type RecordingStore struct {
	profiles.Store
	logger Logger
	log    zerolog.Logger
}

// NewRecordingStore wraps store. A nil logger falls back to ConsoleLogger.
func NewRecordingStore(store profiles.Store, logger Logger) *RecordingStore {
	if logger == nil {
		logger = NewConsoleLogger()
	}
	return &RecordingStore{Store: store, logger: logger, log: logging.New("audit")}
}

// SetTier moves the profile and records the move when the tier changed. The
// previous tier comes from the same store call that wrote the new one.
func (s *RecordingStore) SetTier(ctx context.Context, id string, tier entitlements.Tier) (entitlements.Tier, error) {
	previous, err := s.Store.SetTier(ctx, id, tier)
	if err != nil {
		return "", err
	}
	if previous == tier {
		return previous, nil
	}

	direction := "upgrade"
	if !entitlements.IsAtLeast(tier, previous) {
		direction = "downgrade"
	}
	s.record(ctx, EventTierChanged, id, fmt.Sprintf("%s: %s -> %s", direction, previous, tier))
	return previous, nil
}

// ResetUsage zeroes counters and records which ones.
func (s *RecordingStore) ResetUsage(ctx context.Context, id string, capability entitlements.Capability) error {
	if err := s.Store.ResetUsage(ctx, id, capability); err != nil {
		return err
	}
	details := "all counters"
	if capability != "" {
		details = string(capability)
	}
	s.record(ctx, EventUsageReset, id, details)
	return nil
}

// History returns the plan changes for one profile, newest first.
func (s *RecordingStore) History(ctx context.Context, id string, limit int) ([]Event, error) {
	return s.logger.Query(ctx, QueryFilter{ProfileID: id, Limit: limit})
}

// Close closes the wrapped store and the logger.
func (s *RecordingStore) Close() error {
	storeErr := s.Store.Close()
	if err := s.logger.Close(); err != nil && storeErr == nil {
		return err
	}
	return storeErr
}

func (s *RecordingStore) record(ctx context.Context, eventType EventType, id, details string) {
	event := NewEvent(eventType, id, ActorFromContext(ctx), details)
	if err := s.logger.Log(ctx, event); err != nil {
		s.log.Error().Err(err).Str("event", string(eventType)).Str("profile_id", id).Msg("Failed to record plan change")
	}
}
