package subscription

import (
	"sync/atomic"
	"time"
)

// Throughput counts received samples between scheduler ticks.
type Throughput struct {
	count atomic.Int64
	since atomic.Int64
}

func NewThroughput(now time.Time) *Throughput {
	t := &Throughput{}
	t.since.Store(now.UnixNano())
	return t
}

func (t *Throughput) Inc() {
	t.count.Add(1)
}

// ResetAndRead returns the samples counted since the previous call and their
// rate per second, then starts a new period at now.
func (t *Throughput) ResetAndRead(now time.Time) (int64, float64) {
	n := t.count.Swap(0)
	since := time.Unix(0, t.since.Swap(now.UnixNano()))

	elapsed := now.Sub(since).Seconds()
	if elapsed <= 0 {
		return n, 0
	}
	return n, float64(n) / elapsed
}
