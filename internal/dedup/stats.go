package dedup

import "sync"

// EvictionStats accumulates the diagnostics that may be logged on
// eviction: count, span statistics, and a per-source histogram of which
// source's observation arrived first across every entry this handler has
// ever evicted.
type EvictionStats struct {
	mu        sync.Mutex
	count     int
	minSpan   float64
	maxSpan   float64
	sumSpan   float64
	perSource map[int]int
}

func newEvictionStats() *EvictionStats {
	return &EvictionStats{perSource: make(map[int]int)}
}

func (s *EvictionStats) record(evt *Event) {
	last := evt.FirstSeenAt
	leading := evt.Observations[0]
	for _, o := range evt.Observations {
		if o.ArrivalTime > last {
			last = o.ArrivalTime
		}
		if o.ArrivalTime < leading.ArrivalTime {
			leading = o
		}
	}
	span := last - evt.FirstSeenAt

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 || span < s.minSpan {
		s.minSpan = span
	}
	if span > s.maxSpan {
		s.maxSpan = span
	}
	s.sumSpan += span
	s.count++
	s.perSource[leading.SourceID]++
}

// Snapshot is a point-in-time copy of EvictionStats suitable for logging.
type Snapshot struct {
	Count     int
	MinSpan   float64
	AvgSpan   float64
	MaxSpan   float64
	PerSource map[int]int
}

func (s *EvictionStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	avg := 0.0
	if s.count > 0 {
		avg = s.sumSpan / float64(s.count)
	}
	perSource := make(map[int]int, len(s.perSource))
	for k, v := range s.perSource {
		perSource[k] = v
	}
	return Snapshot{
		Count:     s.count,
		MinSpan:   s.minSpan,
		AvgSpan:   avg,
		MaxSpan:   s.maxSpan,
		PerSource: perSource,
	}
}
