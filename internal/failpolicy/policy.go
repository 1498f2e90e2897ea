// Package failpolicy decides when repeated failures should take a
// subscription or episode out of rotation.
//
// A failing item is only disabled once it has both failed more than the
// configured number of times and kept failing for longer than the configured
// window. Either condition alone is not enough.
package failpolicy

import "time"

// ShouldDisable reports whether failures and elapsed both strictly exceed
// their thresholds.
func ShouldDisable(consecutiveFailures, failThreshold int, elapsed, failWindow time.Duration) bool {
	return consecutiveFailures > failThreshold && elapsed > failWindow
}

// Limits holds the thresholds configured for one level (subscription or
// episode).
type Limits struct {
	Attempts int
	Window   time.Duration
}

// NewLimits builds Limits from the day-based values used in configuration.
func NewLimits(attempts, windowDays int) Limits {
	return Limits{Attempts: attempts, Window: WindowDays(windowDays)}
}

// Exceeded applies ShouldDisable with these limits.
func (l Limits) Exceeded(consecutiveFailures int, elapsed time.Duration) bool {
	return ShouldDisable(consecutiveFailures, l.Attempts, elapsed, l.Window)
}

// WindowDays converts a day count into a duration.
func WindowDays(days int) time.Duration {
	if days <= 0 {
		return 0
	}
	return time.Duration(days) * 24 * time.Hour
}

// Elapsed measures the failure window from since to now. A nil since means
// the reference point was never recorded; the window is then measured from
// the Unix epoch so only the attempt count can hold the item back.
func Elapsed(since *time.Time, now time.Time) time.Duration {
	if since == nil {
		return now.Sub(time.Unix(0, 0))
	}
	return now.Sub(*since)
}
