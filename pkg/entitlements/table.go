package entitlements

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Unlimited is the limit sentinel meaning "no ceiling".
const Unlimited int64 = -1

// Value is a table cell: either a flag or an integer limit.
// For limits, Unlimited means no ceiling, 0 means disabled and any positive
// number is a hard ceiling on the usage count.
type Value struct {
	kind  Kind
	flag  bool
	limit int64
}

// Flag returns a boolean table value.
func Flag(on bool) Value {
	return Value{kind: KindFlag, flag: on}
}

// Limit returns an integer table value.
func Limit(n int64) Value {
	return Value{kind: KindLimit, limit: n}
}

func (v Value) Kind() Kind { return v.kind }

// Bool returns the flag value and whether v is a flag.
func (v Value) Bool() (bool, bool) {
	return v.flag, v.kind == KindFlag
}

// Int returns the limit value and whether v is a limit.
func (v Value) Int() (int64, bool) {
	return v.limit, v.kind == KindLimit
}

// IsUnlimited reports whether v is the Unlimited limit sentinel.
func (v Value) IsUnlimited() bool {
	return v.kind == KindLimit && v.limit == Unlimited
}

func (v Value) String() string {
	switch v.kind {
	case KindFlag:
		return strconv.FormatBool(v.flag)
	case KindLimit:
		if v.limit == Unlimited {
			return "unlimited"
		}
		return strconv.FormatInt(v.limit, 10)
	default:
		return "<invalid>"
	}
}

// MarshalJSON encodes flags as JSON booleans and limits as numbers (-1 for unlimited).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindFlag:
		return json.Marshal(v.flag)
	case KindLimit:
		return json.Marshal(v.limit)
	default:
		return nil, fmt.Errorf("%w: zero value", ErrInvalidValue)
	}
}

// ceiling orders limit values for comparison, treating Unlimited as the largest.
func (v Value) ceiling() int64 {
	if v.limit == Unlimited {
		return math.MaxInt64
	}
	return v.limit
}

// Table is the total mapping from (Tier, Capability) to Value.
// A Table never changes after construction.
type Table struct {
	values map[Tier]map[Capability]Value
}

// NewTable validates and copies values into a Table. Every tier must define
// every capability, each value must match its capability's kind and limits
// must be >= Unlimited. All problems are reported together.
func NewTable(values map[Tier]map[Capability]Value) (*Table, error) {
	var errs []error

	for tier := range values {
		if !tier.Valid() {
			errs = append(errs, unknownTier(tier))
		}
	}

	copied := make(map[Tier]map[Capability]Value, len(tierOrder))
	for _, tier := range tierOrder {
		row, ok := values[tier]
		if !ok {
			errs = append(errs, fmt.Errorf("tier %q: missing row", tier))
			continue
		}
		for capability := range row {
			if !capability.Valid() {
				errs = append(errs, &ConfigError{Tier: tier, Capability: capability, Err: ErrUnknownCapability})
			}
		}

		out := make(map[Capability]Value, len(capabilityOrder))
		for _, capability := range capabilityOrder {
			value, ok := row[capability]
			if !ok {
				errs = append(errs, fmt.Errorf("tier %q: missing capability %q", tier, capability))
				continue
			}
			if err := checkValue(capability, value); err != nil {
				errs = append(errs, fmt.Errorf("tier %q: %w", tier, err))
				continue
			}
			out[capability] = value
		}
		copied[tier] = out
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Table{values: copied}, nil
}

func checkValue(capability Capability, value Value) error {
	want := KindOf(capability)
	if value.kind != want {
		return fmt.Errorf("%w: capability %q is a %s, got %s", ErrInvalidValue, capability, want, value.kind)
	}
	if value.kind == KindLimit && value.limit < Unlimited {
		return fmt.Errorf("%w: capability %q limit %d below %d", ErrInvalidValue, capability, value.limit, Unlimited)
	}
	return nil
}

// Lookup returns the value for (tier, capability) and whether it exists.
func (t *Table) Lookup(tier Tier, capability Capability) (Value, bool) {
	if t == nil {
		return Value{}, false
	}
	row, ok := t.values[tier]
	if !ok {
		return Value{}, false
	}
	value, ok := row[capability]
	return value, ok
}

// Row returns a copy of every capability value for tier.
func (t *Table) Row(tier Tier) map[Capability]Value {
	row := t.values[tier]
	out := make(map[Capability]Value, len(row))
	for capability, value := range row {
		out[capability] = value
	}
	return out
}

// MonotonicityViolation records a capability that a higher tier grants less
// generously than the tier directly below it.
type MonotonicityViolation struct {
	Capability  Capability
	Lower       Tier
	Higher      Tier
	LowerValue  Value
	HigherValue Value
}

func (m MonotonicityViolation) String() string {
	return fmt.Sprintf("%s: %s=%s grants more than %s=%s",
		m.Capability, m.Lower, m.LowerValue, m.Higher, m.HigherValue)
}

// MonotonicityViolations compares adjacent tiers and reports every capability
// where the higher tier is less generous. The table is hand-authored, so this
// is a data-integrity report; NewTable does not reject such tables.
func (t *Table) MonotonicityViolations() []MonotonicityViolation {
	var out []MonotonicityViolation
	for i := 1; i < len(tierOrder); i++ {
		lower, higher := tierOrder[i-1], tierOrder[i]
		for _, capability := range capabilityOrder {
			lv, _ := t.Lookup(lower, capability)
			hv, _ := t.Lookup(higher, capability)
			var regressed bool
			switch lv.kind {
			case KindFlag:
				regressed = lv.flag && !hv.flag
			case KindLimit:
				regressed = hv.ceiling() < lv.ceiling()
			}
			if regressed {
				out = append(out, MonotonicityViolation{
					Capability:  capability,
					Lower:       lower,
					Higher:      higher,
					LowerValue:  lv,
					HigherValue: hv,
				})
			}
		}
	}
	return out
}
