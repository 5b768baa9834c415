package cache

import (
	"math/rand"
	"time"

	"github.com/rohmanhakim/dns-cache/pkg/timeutil"
)

var lockPollBackoff = timeutil.NewBackoffParam(
	50*time.Microsecond,
	2.0,
	5*time.Millisecond,
)

const lockPollJitter = 20 * time.Microsecond

// acquireWithin calls try until it succeeds or timeout elapses, sleeping
// with exponential backoff between attempts. The last attempt happens at
// or after the deadline so a lock released just in time is still taken.
func acquireWithin(try func() bool, timeout time.Duration) bool {
	if try() {
		return true
	}

	deadline := time.Now().Add(timeout)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 1; ; attempt++ {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		delay := timeutil.ExponentialBackoffDelay(attempt, lockPollJitter, *rng, lockPollBackoff)
		if delay > remaining {
			delay = remaining
		}
		time.Sleep(delay)

		if try() {
			return true
		}
	}
}
