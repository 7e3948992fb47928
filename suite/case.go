package suite

import (
	"fmt"

	"github.com/sarchlab/cachecheck/geometry"
)

// Case is one geometry paired with one trace file.
type Case struct {
	S int `json:"s"`
	E int `json:"E"`
	B int `json:"b"`
	// Trace is the trace file name, relative to the trace directory unless
	// absolute.
	Trace string `json:"trace"`
}

// Geometry returns the cache shape of the case.
func (c Case) Geometry() geometry.Geometry {
	return geometry.Geometry{S: c.S, E: c.E, B: c.B}
}

func (c Case) String() string {
	return fmt.Sprintf("%s %s", c.Geometry(), c.Trace)
}

// DefaultCases returns the standard verification table.
func DefaultCases() []Case {
	return []Case{
		{S: 2, E: 1, B: 2, Trace: "wide.trace"},
		{S: 3, E: 2, B: 2, Trace: "load.trace"},
		{S: 1, E: 1, B: 1, Trace: "yi2.trace"},
		{S: 4, E: 2, B: 4, Trace: "yi.trace"},
		{S: 2, E: 1, B: 4, Trace: "dave.trace"},
		{S: 2, E: 1, B: 3, Trace: "trans.trace"},
		{S: 2, E: 2, B: 3, Trace: "trans.trace"},
		{S: 14, E: 1024, B: 3, Trace: "trans.trace"},
		{S: 5, E: 1, B: 5, Trace: "trans.trace"},
		{S: 5, E: 1, B: 5, Trace: "long.trace"},
	}
}
