// Package units converts between milliseconds, seconds and sample counts
// for a fixed sampling rate.
package units

import "math"

// MsToSamples converts a duration in milliseconds to the nearest whole
// number of samples at rateHz.
func MsToSamples(ms, rateHz float64) int {
	return int(math.Round(ms / 1000 * rateHz))
}

// SamplesToSeconds converts a sample count to seconds at rateHz.
func SamplesToSeconds(n int, rateHz float64) float64 {
	return float64(n) / rateHz
}

// SamplesToMs converts a sample count to milliseconds at rateHz.
func SamplesToMs(n int, rateHz float64) float64 {
	return SamplesToSeconds(n, rateHz) * 1000
}

// ValidRate reports whether rateHz is a usable sampling rate.
func ValidRate(rateHz float64) bool {
	return rateHz > 0 && !math.IsInf(rateHz, 0) && !math.IsNaN(rateHz)
}
