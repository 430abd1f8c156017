package entitlements

// Hand-authored per tier. Keep every row complete; NewTable rejects gaps.

var apprenticePlan = map[Capability]Value{
	CapMaxSeries:              Limit(1),
	CapMaxCharactersPerSeries: Limit(10),
	CapMaxLocationsPerSeries:  Limit(5),
	CapMaxTimelineEvents:      Limit(0),
	CapAISuggestionsLimit:     Limit(5),
	CapMaxCollaborators:       Limit(0),
	CapTimelineManagement:     Flag(false),
	CapRelationshipMapping:    Flag(false),
	CapCustomThemes:           Flag(false),
	CapExportPDF:              Flag(false),
	CapWorldBuildingAdvanced:  Flag(false),
	CapCollaboration:          Flag(false),
	CapAchievementsTracking:   Flag(true),
	CapPrioritySupport:        Flag(false),
}

var wordsmithPlan = map[Capability]Value{
	CapMaxSeries:              Limit(5),
	CapMaxCharactersPerSeries: Limit(50),
	CapMaxLocationsPerSeries:  Limit(25),
	CapMaxTimelineEvents:      Limit(100),
	CapAISuggestionsLimit:     Limit(50),
	CapMaxCollaborators:       Limit(0),
	CapTimelineManagement:     Flag(true),
	CapRelationshipMapping:    Flag(true),
	CapCustomThemes:           Flag(true),
	CapExportPDF:              Flag(true),
	CapWorldBuildingAdvanced:  Flag(false),
	CapCollaboration:          Flag(false),
	CapAchievementsTracking:   Flag(true),
	CapPrioritySupport:        Flag(false),
}

var loremasterPlan = map[Capability]Value{
	CapMaxSeries:              Limit(20),
	CapMaxCharactersPerSeries: Limit(200),
	CapMaxLocationsPerSeries:  Limit(100),
	CapMaxTimelineEvents:      Limit(500),
	CapAISuggestionsLimit:     Limit(250),
	CapMaxCollaborators:       Limit(3),
	CapTimelineManagement:     Flag(true),
	CapRelationshipMapping:    Flag(true),
	CapCustomThemes:           Flag(true),
	CapExportPDF:              Flag(true),
	CapWorldBuildingAdvanced:  Flag(true),
	CapCollaboration:          Flag(true),
	CapAchievementsTracking:   Flag(true),
	CapPrioritySupport:        Flag(false),
}

var legendaryPlan = map[Capability]Value{
	CapMaxSeries:              Limit(Unlimited),
	CapMaxCharactersPerSeries: Limit(Unlimited),
	CapMaxLocationsPerSeries:  Limit(Unlimited),
	CapMaxTimelineEvents:      Limit(Unlimited),
	CapAISuggestionsLimit:     Limit(Unlimited),
	CapMaxCollaborators:       Limit(Unlimited),
	CapTimelineManagement:     Flag(true),
	CapRelationshipMapping:    Flag(true),
	CapCustomThemes:           Flag(true),
	CapExportPDF:              Flag(true),
	CapWorldBuildingAdvanced:  Flag(true),
	CapCollaboration:          Flag(true),
	CapAchievementsTracking:   Flag(true),
	CapPrioritySupport:        Flag(true),
}

var defaultTable = mustTable(map[Tier]map[Capability]Value{
	TierApprentice: apprenticePlan,
	TierWordsmith:  wordsmithPlan,
	TierLoremaster: loremasterPlan,
	TierLegendary:  legendaryPlan,
})

// DefaultTable returns the built-in entitlement table. The returned table is
// shared and immutable.
func DefaultTable() *Table {
	return defaultTable
}

func mustTable(values map[Tier]map[Capability]Value) *Table {
	table, err := NewTable(values)
	if err != nil {
		panic(err)
	}
	return table
}
