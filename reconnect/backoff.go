// Package reconnect re-establishes links to peers that dropped offline.
// The wait between attempts doubles with every failure and is capped, so a
// peer that is gone for good costs one dial per cap interval and a peer that
// comes back is picked up quickly.
package reconnect

import "time"

// Delay computes the wait before reconnection attempt number attempt.
// Attempt zero waits base, every further attempt doubles the wait until it
// saturates at max. The progression for the same attempt counter is the same
// on every node.
func Delay(base, max time.Duration, attempt uint32) time.Duration {
	if base <= 0 {
		return 0
	}
	if max < base {
		max = base
	}
	if attempt >= 63 || base > max>>attempt {
		return max
	}
	return base << attempt
}
