package timer

import (
	"fmt"
	"time"
)

// BreakWindow is the daily clock-hour interval [StartHour, EndHour) in which breaks may run.
// The zero value allows breaks at any hour. StartHour > EndHour wraps past midnight.
type BreakWindow struct {
	StartHour int
	EndHour   int
}

// Enabled reports whether the window restricts anything.
func (w BreakWindow) Enabled() bool { return w.StartHour != w.EndHour }

// Validate checks hour bounds.
func (w BreakWindow) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 {
		return fmt.Errorf("break window: start hour %d out of range [0,23]", w.StartHour)
	}
	if w.EndHour < 0 || w.EndHour > 24 {
		return fmt.Errorf("break window: end hour %d out of range [0,24]", w.EndHour)
	}
	return nil
}

// Allows reports whether a break may be open at t (t should already be in the local zone).
func (w BreakWindow) Allows(t time.Time) bool {
	if !w.Enabled() {
		return true
	}
	h := t.Hour()
	if w.StartHour < w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	return h >= w.StartHour || h < w.EndHour
}

func (w BreakWindow) String() string {
	if !w.Enabled() {
		return "any time"
	}
	return fmt.Sprintf("%02d:00-%02d:00", w.StartHour, w.EndHour)
}
