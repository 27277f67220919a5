package winmsg

import "time"

// Poll evaluates cond every interval until it holds or timeout elapses.
// cond runs at least once, and once more at the deadline. The final sleep is
// clipped so Poll never overshoots the deadline by more than one check.
func Poll(now func() time.Time, sleep func(time.Duration), timeout, interval time.Duration, cond func() bool) bool {
	deadline := now().Add(timeout)

	for {
		if cond() {
			return true
		}

		remaining := deadline.Sub(now())
		if remaining <= 0 {
			return false
		}

		sleep(min(interval, remaining))
	}
}
