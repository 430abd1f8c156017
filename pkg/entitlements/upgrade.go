package entitlements

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// DefaultUpgradeURL is used when no upgrade URL is configured.
const DefaultUpgradeURL = "https://storyforge.app/pricing?utm_source=app&utm_medium=gate&utm_campaign=upgrade"

// UpgradeMessage returns the denial text naming requiredTier.
func UpgradeMessage(requiredTier Tier) string {
	return fmt.Sprintf("Upgrade to %s to unlock this feature.", TierDisplayName(requiredTier))
}

// LimitReachedMessage returns the denial text for an exhausted ceiling. When
// next is empty there is nothing higher to upgrade to.
func LimitReachedMessage(capability Capability, limit int64, next Tier) string {
	msg := fmt.Sprintf("You have reached your limit of %d for %s.", limit, CapabilityDisplayName(capability))
	if next == "" {
		return msg
	}
	return msg + " Upgrade to " + TierDisplayName(next) + " for more."
}

// UpgradeURLForCapability appends a feature parameter to base. An empty base
// selects DefaultUpgradeURL.
func UpgradeURLForCapability(base string, capability Capability) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultUpgradeURL
	}
	if capability == "" {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "feature=" + url.QueryEscape(string(capability))
}

// UpgradeReason is an actionable upgrade prompt for a capability the tier lacks.
type UpgradeReason struct {
	Capability   Capability `json:"key"`
	RequiredTier Tier       `json:"required_tier"`
	Reason       string     `json:"reason"`
	ActionURL    string     `json:"action_url,omitempty"`
	Priority     int        `json:"-"`
}

type reasonEntry struct {
	blurb    string
	priority int
}

var upgradeReasonMatrix = map[Capability]reasonEntry{
	CapTimelineManagement:    {"plot every event of your saga on an interactive timeline", 1},
	CapMaxTimelineEvents:     {"record timeline events for your series", 2},
	CapRelationshipMapping:   {"map how your characters love, hate and betray each other", 3},
	CapWorldBuildingAdvanced: {"build magic systems, cultures and histories for your worlds", 4},
	CapCollaboration:         {"invite co-authors and beta readers into your series", 5},
	CapMaxCollaborators:      {"add collaborators to your series", 6},
	CapExportPDF:             {"export polished PDF manuscripts and series bibles", 7},
	CapCustomThemes:          {"write in a workspace themed to your story", 8},
	CapPrioritySupport:       {"get answers from our team first", 9},
}

// UpgradeReasons lists prompts for every capability tier cannot access but a
// higher tier can, most important first.
func (r *Resolver) UpgradeReasons(tier Tier, upgradeBaseURL string) []UpgradeReason {
	reasons := []UpgradeReason{}
	for _, capability := range capabilityOrder {
		if r.CanAccess(tier, capability) {
			continue
		}
		required, ok := r.MinTierFor(capability)
		if !ok || !IsAtLeast(required, tier) {
			continue
		}
		entry, ok := upgradeReasonMatrix[capability]
		if !ok {
			entry = reasonEntry{blurb: "unlock " + CapabilityDisplayName(capability), priority: 100}
		}
		reasons = append(reasons, UpgradeReason{
			Capability:   capability,
			RequiredTier: required,
			Reason:       fmt.Sprintf("Upgrade to %s to %s.", TierDisplayName(required), entry.blurb),
			ActionURL:    UpgradeURLForCapability(upgradeBaseURL, capability),
			Priority:     entry.priority,
		})
	}
	sort.SliceStable(reasons, func(i, j int) bool {
		return reasons[i].Priority < reasons[j].Priority
	})
	return reasons
}
