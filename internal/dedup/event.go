// Package dedup fuses the same logical event arriving from several
// mirrors into a single canonical Event: one handler per stream name,
// each keyed by a stream-specific fingerprint, first-wins delivery,
// accumulating observations on repeat sightings, evicted after a
// retention window.
package dedup

import "sort"

// Observation is one (arrival_time, source_id) pair recorded against a
// canonical Event.
type Observation struct {
	ArrivalTime float64
	SourceID    int
}

// Event is the canonical, deduplicated record for one stream entry.
// EventID's concrete type depends on the stream: string for add/rm/skn/spr
// (whatever the feed sent), int for po. Downstream consumers must
// tolerate either.
type Event struct {
	EventID      interface{}
	EventType    string
	FirstSeenAt  float64
	Payload      map[string]interface{}
	Observations []Observation
}

// SortedObservations returns a copy of e.Observations ordered by
// ArrivalTime, ascending.
func (e *Event) SortedObservations() []Observation {
	out := make([]Observation, len(e.Observations))
	copy(out, e.Observations)
	sort.Slice(out, func(i, j int) bool {
		return out[i].ArrivalTime < out[j].ArrivalTime
	})
	return out
}
