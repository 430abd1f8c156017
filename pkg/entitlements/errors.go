package entitlements

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTier       = errors.New("unknown tier")
	ErrUnknownCapability = errors.New("unknown capability")
	ErrInvalidValue      = errors.New("invalid capability value")
)

// ConfigError reports a mismatch between the tier/capability enumerations and
// the entitlement table. It can only come from code or table authorship, so
// resolver lookups panic with it rather than returning it.
type ConfigError struct {
	Tier       Tier
	Capability Capability
	Err        error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Tier != "" && e.Capability != "":
		return fmt.Sprintf("entitlements: %v: tier %q capability %q", e.Err, e.Tier, e.Capability)
	case e.Capability != "":
		return fmt.Sprintf("entitlements: %v: %q", e.Err, e.Capability)
	default:
		return fmt.Sprintf("entitlements: %v: %q", e.Err, e.Tier)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func unknownTier(tier Tier) *ConfigError {
	return &ConfigError{Tier: tier, Err: ErrUnknownTier}
}

func unknownCapability(capability Capability) *ConfigError {
	return &ConfigError{Capability: capability, Err: ErrUnknownCapability}
}
