// Package analysis scores user reports for the moderation service.
package analysis

import "spotmatch/app/internal/config"

// GetWeight returns the severity weight for a report category.
// It returns 0 if the category is not recognized.
func GetWeight(category string) int {
	return config.ReportWeights[category]
}
