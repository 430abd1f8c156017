// Package profiles stores user profiles: the subscription tier each user is on
// and how much of every metered capability they have consumed.
package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/storyforge/storyforge/pkg/entitlements"
)

var (
	ErrNotFound     = errors.New("profile not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicate    = errors.New("profile already exists")
)

// Profile is a user's tier plus their metered usage.
type Profile struct {
	ID        string                            `json:"id"`
	Email     string                            `json:"email"`
	Tier      entitlements.Tier                 `json:"tier"`
	Usage     map[entitlements.Capability]int64 `json:"usage"`
	CreatedAt time.Time                         `json:"created_at"`
	UpdatedAt time.Time                         `json:"updated_at"`
}

// UsageOf returns the recorded count for capability, zero when none.
func (p *Profile) UsageOf(capability entitlements.Capability) int64 {
	if p == nil {
		return 0
	}
	return p.Usage[capability]
}

// Clone returns a deep copy so cached profiles are never shared.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.Usage = make(map[entitlements.Capability]int64, len(p.Usage))
	for k, v := range p.Usage {
		out.Usage[k] = v
	}
	return &out
}

// Store persists profiles and usage counters.
type Store interface {
	Create(ctx context.Context, email string, tier entitlements.Tier) (*Profile, error)
	Get(ctx context.Context, id string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	List(ctx context.Context) ([]*Profile, error)
	Usage(ctx context.Context, id string) (map[entitlements.Capability]int64, error)
	// SetTier moves the profile to tier and returns the tier it was on.
	SetTier(ctx context.Context, id string, tier entitlements.Tier) (entitlements.Tier, error)
	// IncrementUsage adds delta to the capability counter and returns the new
	// value. Counters never drop below zero.
	IncrementUsage(ctx context.Context, id string, capability entitlements.Capability, delta int64) (int64, error)
	// ResetUsage zeroes one counter, or every counter when capability is empty.
	ResetUsage(ctx context.Context, id string, capability entitlements.Capability) error
	Close() error
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
