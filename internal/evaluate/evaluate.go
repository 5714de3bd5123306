// Package evaluate holds the threshold predicate shared by every channel.
package evaluate

import (
	"math"

	"alertd/internal/models"
)

// Exceeds reports whether a measured value is strictly over its threshold.
// Equality does not trigger.
func Exceeds(value, threshold float64) bool {
	return value > threshold
}

// Breach evaluates a reading against the matching channel limit from cfg.
// Non-finite values never trigger.
func Breach(r models.Reading, cfg models.ThresholdConfig) bool {
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return false
	}
	return Exceeds(r.Value, cfg.Max(r.Channel))
}
