package timeutil

import "time"

// BackoffParam describes an exponential backoff curve: the first delay,
// the factor applied per further attempt, and the ceiling.
//
//	NewBackoffParam(5*time.Millisecond, 2.0, 200*time.Millisecond)
//	// 5ms, 10ms, 20ms, ... 200ms, 200ms
type BackoffParam struct {
	initial    time.Duration
	multiplier float64
	ceiling    time.Duration
}

func NewBackoffParam(initial time.Duration, multiplier float64, ceiling time.Duration) BackoffParam {
	return BackoffParam{
		initial:    initial,
		multiplier: multiplier,
		ceiling:    ceiling,
	}
}

func (b BackoffParam) InitialDuration() time.Duration { return b.initial }

func (b BackoffParam) Multiplier() float64 { return b.multiplier }

// MaxDuration is the delay ceiling, jitter excluded.
func (b BackoffParam) MaxDuration() time.Duration { return b.ceiling }
