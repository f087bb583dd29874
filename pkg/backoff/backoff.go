// Package backoff computes reconnect delays for the pod watch.
package backoff

import "time"

// Exponential doubles the delay on every consecutive failure.
// Delay(k) = min(Initial * 2^(k-1), Max) for the wait after the k-th failure.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns the wait after the given number of consecutive failures (1-indexed)
func (e *Exponential) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := e.Initial
	for i := 1; i < failures; i++ {
		d *= 2
		// Stop doubling once capped so large failure counts cannot overflow
		if e.Max > 0 && d >= e.Max {
			return e.Max
		}
	}
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}
