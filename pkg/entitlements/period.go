package entitlements

import "time"

// Usage of these capabilities counts toward the current UTC calendar month and
// starts over on the first of the next.
var monthlyCapabilities = map[Capability]bool{
	CapAISuggestionsLimit: true,
}

// ResetsMonthly reports whether usage of capability is counted per UTC
// calendar month. Unknown capabilities panic with *ConfigError.
func ResetsMonthly(capability Capability) bool {
	if !capability.Valid() {
		panic(unknownCapability(capability))
	}
	return monthlyCapabilities[capability]
}

// UsagePeriod names the counting window that usage of capability at t falls
// in: "2006-01" for monthly capabilities and "" for counters that never reset.
func UsagePeriod(capability Capability, t time.Time) string {
	if !ResetsMonthly(capability) {
		return ""
	}
	return t.UTC().Format("2006-01")
}

// NextUsageReset returns when the window containing t ends. ok is false for
// counters that never reset.
func NextUsageReset(capability Capability, t time.Time) (reset time.Time, ok bool) {
	if !ResetsMonthly(capability) {
		return time.Time{}, false
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC), true
}
