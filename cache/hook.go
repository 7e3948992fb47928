package cache

import (
	"fmt"
	"io"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachecheck/geometry"
	"github.com/sarchlab/cachecheck/trace"
)

// HookPosAccess triggers after every access has been applied.
var HookPosAccess = &sim.HookPos{Name: "CacheAccess"}

// AccessEvent is the hook item for HookPosAccess.
type AccessEvent struct {
	// Seq counts accesses from 1.
	Seq    uint64
	Op     trace.Op
	Addr   uint64
	Fields geometry.Fields
	// Outcome of this access.
	Outcome Outcome
	// ValidBefore is the number of valid lines the addressed set held
	// before the access.
	ValidBefore int
	// Stats after the access.
	Stats Stats
}

// DebugHook prints every access with its decoded address and the counters
// after it.
type DebugHook struct {
	Output   io.Writer
	Geometry geometry.Geometry
}

// NewDebugHook creates a DebugHook writing to w.
func NewDebugHook(w io.Writer, g geometry.Geometry) *DebugHook {
	return &DebugHook{Output: w, Geometry: g}
}

// Func prints the access.
func (h *DebugHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosAccess {
		return
	}

	event, ok := ctx.Item.(AccessEvent)
	if !ok {
		return
	}

	WriteEvent(h.Output, h.Geometry, event)
}

// WriteEvent prints one access event in the debug format.
func WriteEvent(w io.Writer, g geometry.Geometry, event AccessEvent) {
	_, _ = fmt.Fprintf(w, "[%d] %s 0x%x\n", event.Seq, event.Op, event.Addr)
	_ = geometry.WriteTable(w, event.Addr, g)
	_, _ = fmt.Fprintf(w, "%s %v\n", event.Outcome, event.Stats)
}
