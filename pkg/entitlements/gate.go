package entitlements

// Outcome summarizes a gate decision.
type Outcome string

const (
	OutcomeGranted      Outcome = "granted"
	OutcomeDenied       Outcome = "denied"
	OutcomeLimitReached Outcome = "limit_reached"
)

// Decision is the result of consulting the gate for one request. Denial is a
// normal outcome; callers branch on Allowed.
type Decision struct {
	Tier         Tier       `json:"tier"`
	Capability   Capability `json:"capability"`
	Accessible   bool       `json:"accessible"`
	LimitReached bool       `json:"limit_reached"`
	// Limit and Current are set when a numeric ceiling applies.
	Limit        *int64     `json:"limit,omitempty"`
	Current      *int64     `json:"current,omitempty"`
	Remaining    *int64     `json:"remaining,omitempty"`
	State        LimitState `json:"state"`
	RequiredTier Tier       `json:"required_tier,omitempty"`
	Message      string     `json:"message,omitempty"`
	UpgradeURL   string     `json:"upgrade_url,omitempty"`
}

// Allowed reports whether the protected action may proceed.
func (d Decision) Allowed() bool {
	return d.Accessible && !d.LimitReached
}

// Outcome classifies the decision.
func (d Decision) Outcome() Outcome {
	switch {
	case !d.Accessible:
		return OutcomeDenied
	case d.LimitReached:
		return OutcomeLimitReached
	default:
		return OutcomeGranted
	}
}

// Observer is notified of every decision the gate makes.
type Observer interface {
	ObserveDecision(Decision)
}

// Gate is the boundary consumer of a Resolver: it turns resolver answers into
// decisions carrying the upgrade prompt to show on denial. It does no caching
// and no retries.
type Gate struct {
	resolver   *Resolver
	upgradeURL string
	observer   Observer
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithUpgradeURL sets the base pricing URL used in denial decisions.
func WithUpgradeURL(base string) GateOption {
	return func(g *Gate) { g.upgradeURL = base }
}

// WithObserver registers an observer for every decision.
func WithObserver(o Observer) GateOption {
	return func(g *Gate) { g.observer = o }
}

// NewGate creates a gate over resolver (DefaultResolver when nil).
func NewGate(resolver *Resolver, opts ...GateOption) *Gate {
	if resolver == nil {
		resolver = DefaultResolver()
	}
	g := &Gate{resolver: resolver}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolver returns the resolver the gate consults.
func (g *Gate) Resolver() *Resolver {
	return g.resolver
}

// Check decides access to capability without considering usage.
func (g *Gate) Check(tier Tier, capability Capability) Decision {
	d := Decision{
		Tier:       tier,
		Capability: capability,
		Accessible: g.resolver.CanAccess(tier, capability),
		State:      LimitStateOK,
	}
	if !d.Accessible {
		g.deny(&d)
	}
	g.observe(d)
	return d
}

// CheckUsage decides access to capability given current usage. For flags it
// behaves like Check.
func (g *Gate) CheckUsage(tier Tier, capability Capability, current int64) Decision {
	value := g.resolver.ValueFor(tier, capability)
	limit, isLimit := value.Int()
	if !isLimit {
		return g.Check(tier, capability)
	}

	remaining := g.resolver.Remaining(tier, capability, current)
	d := Decision{
		Tier:         tier,
		Capability:   capability,
		Accessible:   g.resolver.CanAccess(tier, capability),
		LimitReached: g.resolver.HasReachedLimit(tier, capability, current),
		Limit:        &limit,
		Current:      &current,
		Remaining:    &remaining,
		State:        g.resolver.LimitState(tier, capability, current),
	}

	switch {
	case !d.Accessible:
		g.deny(&d)
	case d.LimitReached:
		next, ok := g.resolver.NextTierWithMore(tier, capability)
		if ok {
			d.RequiredTier = next
			d.UpgradeURL = UpgradeURLForCapability(g.upgradeURL, capability)
		}
		d.Message = LimitReachedMessage(capability, limit, d.RequiredTier)
	}
	g.observe(d)
	return d
}

func (g *Gate) deny(d *Decision) {
	d.State = LimitStateEnforced
	required, ok := g.resolver.MinTierFor(d.Capability)
	if !ok {
		d.Message = CapabilityDisplayName(d.Capability) + " is not available on any plan."
		return
	}
	d.RequiredTier = required
	d.Message = UpgradeMessage(required)
	d.UpgradeURL = UpgradeURLForCapability(g.upgradeURL, d.Capability)
}

func (g *Gate) observe(d Decision) {
	if g.observer != nil {
		g.observer.ObserveDecision(d)
	}
}
