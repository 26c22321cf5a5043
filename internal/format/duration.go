// ABOUTME: Fixed-width rendering of durations for the time display
// ABOUTME: Converts seconds into H:MM:SS with optional hour padding
package format

import (
	"fmt"
	"math"
)

// Duration renders a non-negative number of seconds as H:MM:SS.
// Hours are padded to two digits only when full is set and hours < 10.
func Duration(total int64, full bool) string {
	if total < 0 {
		total = 0
	}

	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if full && hours < 10 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}

// Signed renders a signed duration, prefixing "-" when seconds < 0.
// The magnitude is floor(|seconds|).
func Signed(seconds float64, full bool) string {
	magnitude := int64(math.Floor(math.Abs(seconds)))
	s := Duration(magnitude, full)
	if seconds < 0 {
		return "-" + s
	}
	return s
}
