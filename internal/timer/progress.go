package timer

import (
	"fmt"
	"time"
)

// DefaultWorkTarget is the length of a full working day.
const DefaultWorkTarget = 8 * time.Hour

// Progress summarizes the day against the work target.
type Progress struct {
	WorkedSeconds    int64   `json:"workedSeconds"`
	BreakSeconds     int64   `json:"breakSeconds"`
	TargetSeconds    int64   `json:"targetSeconds"`
	RemainingSeconds int64   `json:"remainingSeconds"`
	Percent          float64 `json:"percent"`
	Complete         bool    `json:"complete"`
}

// computeProgress derives Progress. When breakReducesTarget is set, break time is
// subtracted from the target instead of being ignored.
func computeProgress(worked, brk int64, target time.Duration, breakReducesTarget bool) Progress {
	t := int64(target / time.Second)
	if breakReducesTarget {
		t -= brk
	}
	if t < 0 {
		t = 0
	}
	p := Progress{WorkedSeconds: worked, BreakSeconds: brk, TargetSeconds: t}
	if t == 0 {
		p.Percent, p.Complete = 100, true
		return p
	}
	p.Percent = float64(worked) / float64(t) * 100
	if p.Percent >= 100 {
		p.Percent, p.Complete = 100, true
	}
	if rem := t - worked; rem > 0 {
		p.RemainingSeconds = rem
	}
	return p
}

// FormatHMS renders seconds as HH:MM:SS; hours are not capped at 24.
func FormatHMS(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
