package transport

import "time"

// ReconnectPolicy is capped exponential backoff with a bounded number of
// attempts.
type ReconnectPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// Delay returns the wait before reconnect attempt number attempt (zero based)
// as min(base * 2^attempt, max). ok is false once attempts are exhausted.
func (p ReconnectPolicy) Delay(attempt int) (delay time.Duration, ok bool) {
	if attempt < 0 || attempt >= p.MaxAttempts {
		return 0, false
	}
	if p.BaseDelay <= 0 {
		return 0, true
	}
	if attempt >= 62 {
		return p.MaxDelay, true
	}
	delay = p.BaseDelay << uint(attempt)
	if delay <= 0 || delay/p.BaseDelay != 1<<uint(attempt) || (p.MaxDelay > 0 && delay > p.MaxDelay) {
		delay = p.MaxDelay
	}
	return delay, true
}
