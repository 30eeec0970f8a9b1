package session

import "fmt"

// criticalThresholdSeconds is the remaining time at which the display should
// switch to its urgency treatment.
const criticalThresholdSeconds = 300

// Countdown tracks remaining exam time in whole seconds. It only moves
// through Tick, decrements by exactly one per call, and freezes at zero.
// The expiry signal is delivered exactly once, on the tick that reaches zero.
type Countdown struct {
	remaining int
	expired   bool
}

// NewCountdown starts a countdown at the given number of seconds.
func NewCountdown(seconds int) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	return &Countdown{remaining: seconds}
}

// Tick advances the countdown by one second. It returns true only on the
// transition to zero; subsequent calls are no-ops and return false.
func (c *Countdown) Tick() bool {
	if c.expired || c.remaining <= 0 {
		c.expired = true
		return false
	}
	c.remaining--
	if c.remaining == 0 {
		c.expired = true
		return true
	}
	return false
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	return c.remaining
}

// Expired reports whether the countdown has reached zero.
func (c *Countdown) Expired() bool {
	return c.expired
}

// Critical reports whether remaining time is at or under the urgency
// threshold (5 minutes). Derivable from the remaining value alone.
func (c *Countdown) Critical() bool {
	return c.remaining <= criticalThresholdSeconds
}

// Format renders the remaining time as HH:MM:SS.
func (c *Countdown) Format() string {
	return FormatSeconds(c.remaining)
}

// FormatSeconds renders a second count as HH:MM:SS.
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
