package config

import "time"

const (
	// Suspension
	SuspendThresholdWeight    = 250
	SuspendThresholdFrequency = 5
	SuspendFrequencyWindow    = 24 * time.Hour
	SuspendLevel1Duration     = 24 * time.Hour
	SuspendLevel2Duration     = 7 * 24 * time.Hour
	SuspendLevel3Duration     = 30 * 24 * time.Hour

	// Escalation windows: a repeat offense inside these windows bumps the
	// suspension level.
	EscalationShortWindow = 7 * 24 * time.Hour
	EscalationLongWindow  = 30 * 24 * time.Hour
)

var ReportWeights = map[string]int{
	"spam":          5,
	"fake_profile":  50,
	"inappropriate": 100,
	"harassment":    250,
}
