// Package candidate drives the cache implementation under test over a trace.
//
// Every case gets a freshly constructed simulator, built for that case's
// geometry. In-process implementations come from a Factory; executables are
// built per geometry and run as child processes by ExecRunner.
package candidate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachecheck/cache"
	"github.com/sarchlab/cachecheck/geometry"
	"github.com/sarchlab/cachecheck/trace"
)

// Errors raised while building or driving a candidate.
var (
	ErrUnknownBackend = errors.New("unknown candidate backend")
	ErrBuild          = errors.New("candidate build failed")
	ErrOutcome        = errors.New("candidate reported an unknown outcome")
)

// Factory builds a fresh simulator for one geometry.
type Factory func(g geometry.Geometry) (cache.Simulator, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"native": func(g geometry.Geometry) (cache.Simulator, error) {
			return cache.New(g)
		},
		"akita": func(g geometry.Geometry) (cache.Simulator, error) {
			return cache.NewAkita(g)
		},
	}
)

// Register makes a factory available by name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[name] = f
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownBackend, name, backendNames())
	}
	return f, nil
}

// Backends lists the registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	return backendNames()
}

func backendNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runner walks a trace through an in-process simulator.
type Runner struct {
	Factory Factory

	// Debug, if set, receives every access with its decoded address and
	// the counters after it.
	Debug io.Writer
}

// NewRunner creates a Runner for a registered backend.
func NewRunner(backend string) (*Runner, error) {
	f, err := Lookup(backend)
	if err != nil {
		return nil, err
	}
	return &Runner{Factory: f}, nil
}

// Run builds a new simulator for g and replays the trace through its read
// and write entry points, reading back the outcome label after each access.
func (r *Runner) Run(
	ctx context.Context,
	g geometry.Geometry,
	f *trace.File,
) (cache.Report, error) {
	s, err := r.Factory(g)
	if errors.Is(err, cache.ErrGeometryTooLarge) {
		return cache.Report{}, fmt.Errorf("backend cannot hold %s: %w", g, err)
	}
	if err != nil {
		return cache.Report{}, fmt.Errorf("%w for %s: %w", ErrBuild, g, err)
	}

	hooked := false
	if r.Debug != nil {
		if h, ok := s.(sim.Hookable); ok {
			h.AcceptHook(cache.NewDebugHook(r.Debug, g))
			hooked = true
		}
	}

	report := cache.Report{Outcomes: make([]cache.Outcome, 0, len(f.Accesses))}
	for i, a := range f.Accesses {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return cache.Report{}, err
			}
		}

		if a.Op == trace.Store {
			s.Write(a.Addr, 1)
		} else {
			s.Read(a.Addr)
		}

		label := s.LastOutcome()
		outcome, err := cache.ParseOutcome(label)
		if err != nil {
			return cache.Report{}, fmt.Errorf("%w at access %d (%s): %q",
				ErrOutcome, i, a, label)
		}
		report.Outcomes = append(report.Outcomes, outcome)

		if r.Debug != nil && !hooked {
			cache.WriteEvent(r.Debug, g, cache.AccessEvent{
				Seq:     uint64(i + 1),
				Op:      a.Op,
				Addr:    a.Addr,
				Fields:  g.Decode(a.Addr),
				Outcome: outcome,
				Stats:   s.Stats(),
			})
		}
	}

	report.Stats = s.Stats()

	return report, nil
}
