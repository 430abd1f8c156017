package entitlements

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recoverConfigError(t *testing.T, fn func()) (cfgErr *ConfigError) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %T is not an error", r)
		require.True(t, errors.As(err, &cfgErr), "panic value %v is not a *ConfigError", err)
	}()
	fn()
	return nil
}

func TestDefaultTableIsTotal(t *testing.T) {
	table := DefaultTable()
	for _, tier := range Tiers() {
		for _, capability := range Capabilities() {
			value, ok := table.Lookup(tier, capability)
			if !ok {
				t.Errorf("missing entry for (%s, %s)", tier, capability)
				continue
			}
			if value.Kind() != KindOf(capability) {
				t.Errorf("(%s, %s) kind = %s, want %s", tier, capability, value.Kind(), KindOf(capability))
			}
		}
	}
}

func TestDefaultTableIsMonotonic(t *testing.T) {
	violations := DefaultTable().MonotonicityViolations()
	for _, v := range violations {
		t.Errorf("monotonicity violation: %s", v)
	}
}

func TestIsAtLeastReflexive(t *testing.T) {
	for _, tier := range Tiers() {
		if !IsAtLeast(tier, tier) {
			t.Errorf("IsAtLeast(%s, %s) = false, want true", tier, tier)
		}
	}
}

func TestIsAtLeastMatchesTierRank(t *testing.T) {
	for _, a := range Tiers() {
		for _, b := range Tiers() {
			want := TierRank(a) >= TierRank(b)
			if got := IsAtLeast(a, b); got != want {
				t.Errorf("IsAtLeast(%s, %s) = %v, want %v", a, b, got, want)
			}
		}
	}
}

func TestTierRankOrdering(t *testing.T) {
	assert.Less(t, TierRank(TierApprentice), TierRank(TierWordsmith))
	assert.Less(t, TierRank(TierWordsmith), TierRank(TierLoremaster))
	assert.Less(t, TierRank(TierLoremaster), TierRank(TierLegendary))
}

func TestTierRankUnknownPanics(t *testing.T) {
	cfgErr := recoverConfigError(t, func() { TierRank(Tier("mythic")) })
	assert.Equal(t, Tier("mythic"), cfgErr.Tier)
	assert.ErrorIs(t, cfgErr, ErrUnknownTier)
}

func TestUnknownLookupsPanicWithConfigError(t *testing.T) {
	tests := []struct {
		name       string
		tier       Tier
		capability Capability
		wantErr    error
	}{
		{name: "unknown_tier", tier: Tier("mythic"), capability: CapMaxSeries, wantErr: ErrUnknownTier},
		{name: "unknown_capability", tier: TierApprentice, capability: Capability("maxDragons"), wantErr: ErrUnknownCapability},
		{name: "empty_tier", tier: Tier(""), capability: CapMaxSeries, wantErr: ErrUnknownTier},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				require.NotNil(t, r)
				err, ok := r.(error)
				require.True(t, ok)
				var cfgErr *ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.ErrorIs(t, err, tt.wantErr)
			}()
			ValueFor(tt.tier, tt.capability)
		})
	}
}

func TestCanAccessMatchesTable(t *testing.T) {
	for _, tier := range Tiers() {
		for _, capability := range Capabilities() {
			value := ValueFor(tier, capability)
			got := CanAccess(tier, capability)
			if on, ok := value.Bool(); ok {
				if got != on {
					t.Errorf("CanAccess(%s, %s) = %v, want flag %v", tier, capability, got, on)
				}
				continue
			}
			limit, _ := value.Int()
			if got != (limit != 0) {
				t.Errorf("CanAccess(%s, %s) = %v, want %v for limit %d", tier, capability, got, limit != 0, limit)
			}
		}
	}
}

func TestHasReachedLimitMatchesTable(t *testing.T) {
	counts := []int64{0, 1, 4, 5, 49, 50, 199, 200, 10_000_000}
	for _, tier := range Tiers() {
		for _, capability := range Capabilities() {
			value := ValueFor(tier, capability)
			limit, isLimit := value.Int()
			for _, n := range counts {
				got := HasReachedLimit(tier, capability, n)
				if !isLimit || limit == Unlimited {
					if got {
						t.Errorf("HasReachedLimit(%s, %s, %d) = true, want false (no ceiling)", tier, capability, n)
					}
					continue
				}
				if want := n >= limit; got != want {
					t.Errorf("HasReachedLimit(%s, %s, %d) = %v, want %v", tier, capability, n, got, want)
				}
			}
		}
	}
}

func TestApprenticeMaxSeries(t *testing.T) {
	limit, ok := ValueFor(TierApprentice, CapMaxSeries).Int()
	require.True(t, ok)
	require.Equal(t, int64(1), limit)

	assert.True(t, CanAccess(TierApprentice, CapMaxSeries))
	assert.True(t, HasReachedLimit(TierApprentice, CapMaxSeries, 1))
	assert.False(t, HasReachedLimit(TierApprentice, CapMaxSeries, 0))
}

func TestLegendaryAISuggestionsUnlimited(t *testing.T) {
	require.True(t, ValueFor(TierLegendary, CapAISuggestionsLimit).IsUnlimited())

	assert.True(t, CanAccess(TierLegendary, CapAISuggestionsLimit))
	for _, n := range []int64{0, 1, 250, 10_000_000} {
		assert.False(t, HasReachedLimit(TierLegendary, CapAISuggestionsLimit, n), "n=%d", n)
	}
}

func TestApprenticeTimelineManagementDenied(t *testing.T) {
	on, ok := ValueFor(TierApprentice, CapTimelineManagement).Bool()
	require.True(t, ok)
	require.False(t, on)
	assert.False(t, CanAccess(TierApprentice, CapTimelineManagement))
}

func TestDisabledLimitIsNotAccessible(t *testing.T) {
	assert.False(t, CanAccess(TierApprentice, CapMaxTimelineEvents))
	assert.True(t, HasReachedLimit(TierApprentice, CapMaxTimelineEvents, 0))
}

func TestUpgradeMessageNamesTier(t *testing.T) {
	for _, tier := range Tiers() {
		msg := UpgradeMessage(tier)
		if !strings.Contains(msg, TierDisplayName(tier)) {
			t.Errorf("UpgradeMessage(%s) = %q, missing %q", tier, msg, TierDisplayName(tier))
		}
	}
}

func TestRemaining(t *testing.T) {
	tests := []struct {
		name       string
		tier       Tier
		capability Capability
		current    int64
		want       int64
	}{
		{name: "below_limit", tier: TierWordsmith, capability: CapMaxSeries, current: 2, want: 3},
		{name: "at_limit", tier: TierWordsmith, capability: CapMaxSeries, current: 5, want: 0},
		{name: "over_limit_clamped", tier: TierWordsmith, capability: CapMaxSeries, current: 9, want: 0},
		{name: "unlimited", tier: TierLegendary, capability: CapMaxSeries, current: 1000, want: Unlimited},
		{name: "flag_on", tier: TierLegendary, capability: CapPrioritySupport, current: 0, want: Unlimited},
		{name: "flag_off", tier: TierApprentice, capability: CapPrioritySupport, current: 0, want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultResolver().Remaining(tt.tier, tt.capability, tt.current)
			if got != tt.want {
				t.Errorf("Remaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLimitState(t *testing.T) {
	tests := []struct {
		name       string
		tier       Tier
		capability Capability
		current    int64
		want       LimitState
	}{
		{name: "ok_below_threshold", tier: TierLoremaster, capability: CapAISuggestionsLimit, current: 100, want: LimitStateOK},
		{name: "warning_at_90_percent", tier: TierLoremaster, capability: CapAISuggestionsLimit, current: 225, want: LimitStateWarning},
		{name: "enforced_at_limit", tier: TierLoremaster, capability: CapAISuggestionsLimit, current: 250, want: LimitStateEnforced},
		{name: "ok_unlimited", tier: TierLegendary, capability: CapAISuggestionsLimit, current: 1 << 40, want: LimitStateOK},
		{name: "enforced_disabled_limit", tier: TierApprentice, capability: CapMaxCollaborators, current: 0, want: LimitStateEnforced},
		{name: "enforced_flag_off", tier: TierApprentice, capability: CapExportPDF, current: 0, want: LimitStateEnforced},
		{name: "ok_flag_on", tier: TierWordsmith, capability: CapExportPDF, current: 0, want: LimitStateOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultResolver().LimitState(tt.tier, tt.capability, tt.current)
			if got != tt.want {
				t.Errorf("LimitState() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMinTierFor(t *testing.T) {
	tests := []struct {
		capability Capability
		want       Tier
	}{
		{CapMaxSeries, TierApprentice},
		{CapTimelineManagement, TierWordsmith},
		{CapMaxTimelineEvents, TierWordsmith},
		{CapWorldBuildingAdvanced, TierLoremaster},
		{CapMaxCollaborators, TierLoremaster},
		{CapPrioritySupport, TierLegendary},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.capability), func(t *testing.T) {
			got, ok := DefaultResolver().MinTierFor(tt.capability)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextTierWithMore(t *testing.T) {
	r := DefaultResolver()

	next, ok := r.NextTierWithMore(TierApprentice, CapMaxSeries)
	require.True(t, ok)
	assert.Equal(t, TierWordsmith, next)

	// Wordsmith and apprentice both have zero collaborators; loremaster is the next step up.
	next, ok = r.NextTierWithMore(TierApprentice, CapMaxCollaborators)
	require.True(t, ok)
	assert.Equal(t, TierLoremaster, next)

	_, ok = r.NextTierWithMore(TierLegendary, CapMaxSeries)
	assert.False(t, ok)
}

func TestCustomResolverUsesItsTable(t *testing.T) {
	values := map[Tier]map[Capability]Value{
		TierApprentice: copyPlan(apprenticePlan),
		TierWordsmith:  copyPlan(wordsmithPlan),
		TierLoremaster: copyPlan(loremasterPlan),
		TierLegendary:  copyPlan(legendaryPlan),
	}
	values[TierApprentice][CapMaxSeries] = Limit(3)

	table, err := NewTable(values)
	require.NoError(t, err)
	r := NewResolver(table)

	assert.False(t, r.HasReachedLimit(TierApprentice, CapMaxSeries, 2))
	assert.True(t, r.HasReachedLimit(TierApprentice, CapMaxSeries, 3))
	// The default table is untouched.
	assert.True(t, HasReachedLimit(TierApprentice, CapMaxSeries, 1))
}
