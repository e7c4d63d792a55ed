package alert

import (
	"time"

	"github.com/firewatch-dev/firewatch/internal/reading"
)

// Rule decides whether a camera's latest reading warrants an alert.
type Rule struct {
	Window   time.Duration
	MinScore float64 // 0 means the label alone decides
}

// Triggered reports whether r is a fire reading taken within the window
// ending at now. A nil reading never triggers.
func (rl Rule) Triggered(r *reading.Reading, now time.Time) bool {
	if r == nil || !r.IsFire() {
		return false
	}
	if !r.Within(now, rl.Window) {
		return false
	}
	return r.FireScore >= rl.MinScore
}
