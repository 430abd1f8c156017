package entitlements

import (
	"fmt"
	"strings"
)

// Capability names a gated feature or a usage-limited resource.
type Capability string

// Kind is the value shape a capability carries in the table.
type Kind int

const (
	KindFlag Kind = iota + 1
	KindLimit
)

func (k Kind) String() string {
	switch k {
	case KindFlag:
		return "flag"
	case KindLimit:
		return "limit"
	default:
		return "unknown"
	}
}

// Usage-limited capabilities. Counts are per user unless the name says otherwise.
const (
	CapMaxSeries              Capability = "maxSeries"
	CapMaxCharactersPerSeries Capability = "maxCharactersPerSeries"
	CapMaxLocationsPerSeries  Capability = "maxLocationsPerSeries"
	CapMaxTimelineEvents      Capability = "maxTimelineEvents"
	CapAISuggestionsLimit     Capability = "aiSuggestionsLimit" // per UTC month, see ResetsMonthly
	CapMaxCollaborators       Capability = "maxCollaborators"
)

// On/off capabilities.
const (
	CapTimelineManagement    Capability = "timelineManagement"
	CapRelationshipMapping   Capability = "relationshipMapping"
	CapCustomThemes          Capability = "customThemes"
	CapExportPDF             Capability = "exportPdf"
	CapWorldBuildingAdvanced Capability = "worldBuildingAdvanced"
	CapCollaboration         Capability = "collaboration"
	CapAchievementsTracking  Capability = "achievementsTracking"
	CapPrioritySupport       Capability = "prioritySupport"
)

type capabilityInfo struct {
	kind        Kind
	displayName string
}

var capabilityOrder = []Capability{
	CapMaxSeries,
	CapMaxCharactersPerSeries,
	CapMaxLocationsPerSeries,
	CapMaxTimelineEvents,
	CapAISuggestionsLimit,
	CapMaxCollaborators,
	CapTimelineManagement,
	CapRelationshipMapping,
	CapCustomThemes,
	CapExportPDF,
	CapWorldBuildingAdvanced,
	CapCollaboration,
	CapAchievementsTracking,
	CapPrioritySupport,
}

var capabilityInfos = map[Capability]capabilityInfo{
	CapMaxSeries:              {KindLimit, "Series"},
	CapMaxCharactersPerSeries: {KindLimit, "Characters per Series"},
	CapMaxLocationsPerSeries:  {KindLimit, "Locations per Series"},
	CapMaxTimelineEvents:      {KindLimit, "Timeline Events"},
	CapAISuggestionsLimit:     {KindLimit, "AI Writing Suggestions (monthly)"},
	CapMaxCollaborators:       {KindLimit, "Collaborators"},
	CapTimelineManagement:     {KindFlag, "Timeline Management"},
	CapRelationshipMapping:    {KindFlag, "Character Relationship Mapping"},
	CapCustomThemes:           {KindFlag, "Custom Themes"},
	CapExportPDF:              {KindFlag, "PDF Export"},
	CapWorldBuildingAdvanced:  {KindFlag, "Advanced World Building"},
	CapCollaboration:          {KindFlag, "Collaboration"},
	CapAchievementsTracking:   {KindFlag, "Achievements"},
	CapPrioritySupport:        {KindFlag, "Priority Support"},
}

// Capabilities returns every capability in canonical order.
func Capabilities() []Capability {
	return append([]Capability(nil), capabilityOrder...)
}

// Valid reports whether c is a member of the capability set.
func (c Capability) Valid() bool {
	_, ok := capabilityInfos[c]
	return ok
}

func (c Capability) String() string {
	return string(c)
}

// KindOf returns the value kind of capability. Unknown capabilities panic
// with *ConfigError.
func KindOf(capability Capability) Kind {
	info, ok := capabilityInfos[capability]
	if !ok {
		panic(unknownCapability(capability))
	}
	return info.kind
}

// ParseCapability converts external input (URL segments, CLI arguments) into a
// Capability. Keys are case-sensitive.
func ParseCapability(raw string) (Capability, error) {
	capability := Capability(strings.TrimSpace(raw))
	if !capability.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCapability, raw)
	}
	return capability, nil
}

// CapabilityDisplayName returns a human-readable name for a capability.
func CapabilityDisplayName(capability Capability) string {
	if info, ok := capabilityInfos[capability]; ok {
		return info.displayName
	}
	return string(capability)
}
