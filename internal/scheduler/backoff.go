package scheduler

import (
	"math/rand"
	"time"
)

// driverCacheInvalidationThreshold is the k in spec §4.E: after this many
// consecutive failures, a cached device identification is discarded and
// the next attempt re-runs Shelly.GetDeviceInfo.
const driverCacheInvalidationThreshold = 3

// backoff computes the delay before the next attempt after n consecutive
// failures: min(max, base * 2^(n-1)) plus up to 10% jitter, so that a
// fleet of devices failing in lockstep (e.g. a LAN outage) doesn't also
// retry in lockstep.
func backoff(base, max time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := base
	for i := 1; i < n; i++ {
		if d >= max {
			d = max
			break
		}
		d *= 2
	}
	if d > max {
		d = max
	}
	jitter := time.Duration(rand.Int63n(int64(d)/10 + 1))
	return d + jitter
}
