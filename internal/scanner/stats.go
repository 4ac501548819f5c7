package scanner

import (
	"sync/atomic"
	"time"

	"github.com/ResistanceIsUseless/proxyjudge/internal/candidate"
)

// counters are bumped by workers and read by pollers without locking
type counters struct {
	total         atomic.Int64
	scanned       atomic.Int64
	alive         atomic.Int64
	dead          atomic.Int64
	http          atomic.Int64
	socks         atomic.Int64
	transparent   atomic.Int64
	high          atomic.Int64
	elite         atomic.Int64
	activeWorkers atomic.Int64
}

func (c *counters) reset(total int) {
	c.total.Store(int64(total))
	c.scanned.Store(0)
	c.alive.Store(0)
	c.dead.Store(0)
	c.http.Store(0)
	c.socks.Store(0)
	c.transparent.Store(0)
	c.high.Store(0)
	c.elite.Store(0)
}

func (c *counters) record(cand *candidate.Candidate) {
	c.scanned.Add(1)
	if !cand.Alive {
		c.dead.Add(1)
		return
	}

	c.alive.Add(1)
	if cand.Protocol.IsSOCKS() {
		c.socks.Add(1)
	} else {
		c.http.Add(1)
	}

	switch cand.Anonymity {
	case candidate.AnonymityTransparent:
		c.transparent.Add(1)
	case candidate.AnonymityHigh:
		c.high.Add(1)
	case candidate.AnonymityElite:
		c.elite.Add(1)
	}
}

// Stats is a point-in-time view of a scan run
type Stats struct {
	RunID         string        `json:"run_id"`
	Total         int64         `json:"total"`
	Scanned       int64         `json:"scanned"`
	Alive         int64         `json:"alive"`
	Dead          int64         `json:"dead"`
	HTTP          int64         `json:"http"`
	SOCKS         int64         `json:"socks"`
	Transparent   int64         `json:"transparent"`
	High          int64         `json:"high"`
	Elite         int64         `json:"elite"`
	Anonymous     int64         `json:"anonymous"`
	ActiveWorkers int64         `json:"active_workers"`
	Paused        bool          `json:"paused"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	ETA           time.Duration `json:"eta_ns"`
}

// Remaining is the number of candidates not yet scanned
func (s Stats) Remaining() int64 {
	if left := s.Total - s.Scanned; left > 0 {
		return left
	}
	return 0
}

// Progress returns the completed fraction in [0, 1]
func (s Stats) Progress() float64 {
	if s.Total <= 0 {
		return 0
	}
	p := float64(s.Scanned) / float64(s.Total)
	if p > 1 {
		return 1
	}
	return p
}

// Done reports whether every worker has exited
func (s Stats) Done() bool {
	return s.ActiveWorkers == 0
}

// estimateETA extrapolates the remaining time from the average so far
func estimateETA(left, scanned int64, elapsed time.Duration) time.Duration {
	if scanned <= 0 || left <= 0 {
		return 0
	}
	return time.Duration(float64(left) * float64(elapsed) / float64(scanned))
}
