package cache

import (
	"errors"
	"fmt"
)

// Outcome is what happened to a single access.
type Outcome int

const (
	// None is the outcome before any access has been made.
	None Outcome = iota
	// Hit means the block was present.
	Hit
	// Miss means the block was installed into an empty line.
	Miss
	// MissEviction means a valid line had to be replaced.
	MissEviction
)

// Labels used on the wire by both the reference output and LastOutcome.
const (
	LabelHit          = "hit"
	LabelMiss         = "miss"
	LabelMissEviction = "miss eviction"
)

// ErrUnknownOutcome is returned for labels that name no outcome.
var ErrUnknownOutcome = errors.New("unknown access outcome")

func (o Outcome) String() string {
	switch o {
	case Hit:
		return LabelHit
	case Miss:
		return LabelMiss
	case MissEviction:
		return LabelMissEviction
	case None:
		return ""
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ParseOutcome converts a label back to an Outcome.
func ParseOutcome(label string) (Outcome, error) {
	switch label {
	case LabelHit:
		return Hit, nil
	case LabelMiss:
		return Miss, nil
	case LabelMissEviction:
		return MissEviction, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownOutcome, label)
	}
}

// Stats are the five counters every implementation reports.
type Stats struct {
	Hits              uint64 `json:"hits"`
	Misses            uint64 `json:"misses"`
	Evictions         uint64 `json:"evictions"`
	DirtyBytesInCache uint64 `json:"dirty_bytes_in_cache"`
	DirtyBytesEvicted uint64 `json:"dirty_bytes_evicted"`
}

// NumStats is the number of counters in Stats.
const NumStats = 5

// Values returns the counters in their fixed reporting order.
func (s Stats) Values() [NumStats]uint64 {
	return [NumStats]uint64{
		s.Hits,
		s.Misses,
		s.Evictions,
		s.DirtyBytesInCache,
		s.DirtyBytesEvicted,
	}
}

// StatsFromValues is the inverse of Values.
func StatsFromValues(v [NumStats]uint64) Stats {
	return Stats{
		Hits:              v[0],
		Misses:            v[1],
		Evictions:         v[2],
		DirtyBytesInCache: v[3],
		DirtyBytesEvicted: v[4],
	}
}

func (s Stats) String() string {
	v := s.Values()
	return fmt.Sprintf("[%d, %d, %d, %d, %d]", v[0], v[1], v[2], v[3], v[4])
}

// Report is the observable result of running one trace.
type Report struct {
	Stats    Stats
	Outcomes []Outcome
}

// Simulator is the surface a cache implementation exposes to be testable.
// Implementations own all of their state; two simulators never share
// counters.
type Simulator interface {
	// Read loads the byte at addr.
	Read(addr uint64) byte
	// Write stores value at addr.
	Write(addr uint64, value byte)
	// Stats returns the current counters.
	Stats() Stats
	// LastOutcome labels the most recent access. It is empty before the
	// first access.
	LastOutcome() string
}
