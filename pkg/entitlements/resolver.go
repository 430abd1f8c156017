package entitlements

// Resolver answers entitlement questions against a Table. It owns no mutable
// state; the zero value is not usable, construct with NewResolver.
type Resolver struct {
	table *Table
}

// NewResolver creates a resolver over table. A nil table selects DefaultTable.
func NewResolver(table *Table) *Resolver {
	if table == nil {
		table = DefaultTable()
	}
	return &Resolver{table: table}
}

var defaultResolver = NewResolver(nil)

// DefaultResolver returns the resolver over DefaultTable.
func DefaultResolver() *Resolver {
	return defaultResolver
}

// Table returns the table the resolver reads from.
func (r *Resolver) Table() *Table {
	return r.table
}

// ValueFor returns the table value for (tier, capability). The table is total,
// so a miss means the tier or capability is not a known member; that is a
// programming error and panics with *ConfigError.
func (r *Resolver) ValueFor(tier Tier, capability Capability) Value {
	value, ok := r.table.Lookup(tier, capability)
	if ok {
		return value
	}
	if !tier.Valid() {
		panic(unknownTier(tier))
	}
	if !capability.Valid() {
		panic(unknownCapability(capability))
	}
	panic(&ConfigError{Tier: tier, Capability: capability, Err: ErrInvalidValue})
}

// CanAccess reports whether tier may use capability at all. Flags are returned
// as-is; limits are accessible unless disabled (0).
func (r *Resolver) CanAccess(tier Tier, capability Capability) bool {
	value := r.ValueFor(tier, capability)
	if on, ok := value.Bool(); ok {
		return on
	}
	limit, _ := value.Int()
	return limit != 0
}

// HasReachedLimit reports whether current usage has hit the tier's ceiling for
// capability. Flags and Unlimited never reach a limit.
func (r *Resolver) HasReachedLimit(tier Tier, capability Capability, current int64) bool {
	limit, ok := r.ValueFor(tier, capability).Int()
	if !ok || limit < 0 {
		return false
	}
	return current >= limit
}

// Remaining returns how much more of capability the tier may use: Unlimited
// for no ceiling (and for flags that are on), otherwise never below zero.
func (r *Resolver) Remaining(tier Tier, capability Capability, current int64) int64 {
	value := r.ValueFor(tier, capability)
	if on, ok := value.Bool(); ok {
		if on {
			return Unlimited
		}
		return 0
	}
	limit, _ := value.Int()
	if limit == Unlimited {
		return Unlimited
	}
	if current >= limit {
		return 0
	}
	return limit - current
}

// LimitState is the over-limit UX state for a usage-limited capability.
type LimitState string

const (
	LimitStateOK       LimitState = "ok"
	LimitStateWarning  LimitState = "warning"
	LimitStateEnforced LimitState = "enforced"
)

// LimitState classifies usage against the tier's ceiling. Usage at or above
// 90% of a positive ceiling warns; reaching it (or a disabled capability)
// enforces. Flags are enforced when off and ok otherwise.
func (r *Resolver) LimitState(tier Tier, capability Capability, current int64) LimitState {
	if !r.CanAccess(tier, capability) {
		return LimitStateEnforced
	}
	limit, ok := r.ValueFor(tier, capability).Int()
	if !ok || limit == Unlimited {
		return LimitStateOK
	}
	if current >= limit {
		return LimitStateEnforced
	}
	if current*10 >= limit*9 {
		return LimitStateWarning
	}
	return LimitStateOK
}

// MinTierFor returns the lowest tier that can access capability.
func (r *Resolver) MinTierFor(capability Capability) (Tier, bool) {
	for _, tier := range tierOrder {
		if r.CanAccess(tier, capability) {
			return tier, true
		}
	}
	return "", false
}

// NextTierWithMore returns the lowest tier above tier whose ceiling for
// capability is more generous, or false when none is.
func (r *Resolver) NextTierWithMore(tier Tier, capability Capability) (Tier, bool) {
	current := r.ValueFor(tier, capability)
	for _, candidate := range tierOrder[TierRank(tier)+1:] {
		value := r.ValueFor(candidate, capability)
		if on, ok := value.Bool(); ok {
			if on && !current.flag {
				return candidate, true
			}
			continue
		}
		if value.ceiling() > current.ceiling() {
			return candidate, true
		}
	}
	return "", false
}

// ValueFor looks capability up in DefaultTable.
func ValueFor(tier Tier, capability Capability) Value {
	return defaultResolver.ValueFor(tier, capability)
}

// CanAccess checks capability against DefaultTable.
func CanAccess(tier Tier, capability Capability) bool {
	return defaultResolver.CanAccess(tier, capability)
}

// HasReachedLimit checks usage against DefaultTable.
func HasReachedLimit(tier Tier, capability Capability, current int64) bool {
	return defaultResolver.HasReachedLimit(tier, capability, current)
}
