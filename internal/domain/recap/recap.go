// Package recap computes the post-session summary.
//
// Compute is pure so the summary can be built from the best locally-known
// counters before the termination request completes; it is never re-fetched.
package recap

import (
	"fmt"
	"time"

	"github.com/grandstand/cheer/internal/domain/model"
)

// Compute derives the recap from session start, the clock at termination,
// and the last known counters.
func Compute(start, now time.Time, totalTaps, callerTaps int64) model.Recap {
	return model.Recap{
		TotalTaps:     totalTaps,
		CallerTaps:    callerTaps,
		DurationLabel: durationLabel(now.Sub(start)),
	}
}

// durationLabel floors to whole minutes and renders "Xh Ym" when >= 60
// minutes, else "Ym".
func durationLabel(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
