// Package entitlements defines Storyforge subscription tiers, gated
// capabilities and the canonical entitlement table.
//
// Everything here is pure: the table is built once and never mutated, so every
// function and method is safe for concurrent use without coordination.
package entitlements

import (
	"fmt"
	"strings"
)

// Tier represents a subscription tier. Tiers are totally ordered; a higher tier
// is meant to grant a superset of a lower tier's capabilities.
type Tier string

const (
	TierApprentice Tier = "apprentice"
	TierWordsmith  Tier = "wordsmith"
	TierLoremaster Tier = "loremaster"
	TierLegendary  Tier = "legendary"
)

// tierOrder is the canonical ordering, lowest first.
var tierOrder = []Tier{
	TierApprentice,
	TierWordsmith,
	TierLoremaster,
	TierLegendary,
}

var tierRanks = func() map[Tier]int {
	ranks := make(map[Tier]int, len(tierOrder))
	for i, tier := range tierOrder {
		ranks[tier] = i
	}
	return ranks
}()

// Tiers returns all tiers in canonical order, lowest first.
func Tiers() []Tier {
	return append([]Tier(nil), tierOrder...)
}

// Valid reports whether t is a member of the tier enumeration.
func (t Tier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

func (t Tier) String() string {
	return string(t)
}

// TierRank returns the ordinal position of tier in the canonical ordering.
// An unknown tier is a programming error and panics with *ConfigError.
func TierRank(tier Tier) int {
	rank, ok := tierRanks[tier]
	if !ok {
		panic(unknownTier(tier))
	}
	return rank
}

// IsAtLeast reports whether a ranks at or above b.
func IsAtLeast(a, b Tier) bool {
	return TierRank(a) >= TierRank(b)
}

// NextTier returns the tier directly above t, or false at the top.
func NextTier(t Tier) (Tier, bool) {
	rank := TierRank(t)
	if rank+1 >= len(tierOrder) {
		return "", false
	}
	return tierOrder[rank+1], true
}

// ParseTier converts external input (profile rows, CLI arguments) into a Tier.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseTier(raw string) (Tier, error) {
	tier := Tier(strings.ToLower(strings.TrimSpace(raw)))
	if !tier.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, raw)
	}
	return tier, nil
}

// TierDisplayName returns a human-readable name for the tier.
func TierDisplayName(tier Tier) string {
	switch tier {
	case TierApprentice:
		return "Apprentice"
	case TierWordsmith:
		return "Wordsmith"
	case TierLoremaster:
		return "Loremaster"
	case TierLegendary:
		return "Legendary"
	default:
		return "Unknown"
	}
}
