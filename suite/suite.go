// Package suite runs a table of cases through a reference simulator and a
// candidate, and reports whether the candidate agrees with the reference on
// every case.
package suite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/cachecheck/cache"
	"github.com/sarchlab/cachecheck/candidate"
	"github.com/sarchlab/cachecheck/compare"
	"github.com/sarchlab/cachecheck/geometry"
	"github.com/sarchlab/cachecheck/record"
	"github.com/sarchlab/cachecheck/reference"
	"github.com/sarchlab/cachecheck/trace"
)

// ReferenceRunner runs the reference simulator over a trace file.
type ReferenceRunner interface {
	Run(ctx context.Context, g geometry.Geometry, tracePath string) (cache.Report, error)
}

// CandidateRunner runs the implementation under test over a parsed trace.
// Every call must start from a fresh cache.
type CandidateRunner interface {
	Run(ctx context.Context, g geometry.Geometry, f *trace.File) (cache.Report, error)
}

// Status is the result class of one case.
type Status int

const (
	// StatusPass means both statistics and outcomes agree.
	StatusPass Status = iota
	// StatusFail means the candidate disagrees with the reference.
	StatusFail
	// StatusSkip means the trace could not be read as text.
	StatusSkip
	// StatusError means the case could not be run.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "Pass"
	case StatusFail:
		return "Fail"
	case StatusSkip:
		return "Skip"
	case StatusError:
		return "Error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Case     Case
	Status   Status
	Verdict  compare.Verdict
	Err      error
	Duration time.Duration
}

// Summary collects the results of a run, in case order.
type Summary struct {
	Results  []CaseResult
	Passed   int
	Failed   int
	Skipped  int
	Errored  int
	Duration time.Duration
}

// OK reports whether every case passed.
func (s Summary) OK() bool {
	return len(s.Results) > 0 && s.Passed == len(s.Results)
}

func (s *Summary) add(r CaseResult) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case StatusPass:
		s.Passed++
	case StatusFail:
		s.Failed++
	case StatusSkip:
		s.Skipped++
	case StatusError:
		s.Errored++
	}
}

// Suite runs the configured cases.
type Suite struct {
	Config    *Config
	Reference ReferenceRunner
	Candidate CandidateRunner

	// Recorder, if set, receives every case result.
	Recorder record.Recorder

	// Output receives the per-case report (default: os.Stdout).
	Output io.Writer

	// Logger receives diagnostics (default: stderr).
	Logger *log.Logger

	outMu sync.Mutex
}

// New creates a Suite from its parts.
func New(config *Config, ref ReferenceRunner, cand CandidateRunner) *Suite {
	return &Suite{
		Config:    config,
		Reference: ref,
		Candidate: cand,
	}
}

// NewFromConfig creates a Suite with the runners the configuration names.
func NewFromConfig(config *Config) (*Suite, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite config: %w", err)
	}

	timeout := time.Duration(config.Timeout)
	ref := reference.NewRunner(config.Reference, timeout)

	var cand CandidateRunner
	if config.Candidate == ExecCandidate {
		cand = &candidate.ExecRunner{
			Builder: candidate.NewBuilder(config.BuildCommand, "", config.BuildDir),
			Timeout: timeout,
		}
	} else {
		r, err := candidate.NewRunner(config.Candidate)
		if err != nil {
			return nil, err
		}
		cand = r
	}

	return New(config, ref, cand), nil
}

func (s *Suite) output() io.Writer {
	if s.Output == nil {
		return os.Stdout
	}
	return s.Output
}

func (s *Suite) logger() *log.Logger {
	if s.Logger == nil {
		s.Logger = log.New(os.Stderr, "cachecheck: ", 0)
	}
	return s.Logger
}

// Run runs every case and prints one line per case. Failing or erroring
// cases never stop the run. Cancelling ctx stops launching new cases; the
// cases not started report the context error.
func (s *Suite) Run(ctx context.Context) Summary {
	start := time.Now()
	cases := s.Config.Cases
	results := make([]CaseResult, len(cases))
	logger := s.logger()

	if eb, ok := s.Candidate.(*candidate.ExecRunner); ok && eb.Builder != nil && eb.Builder.Log == nil {
		eb.Builder.Log = logger.Writer()
	}

	parallel := s.Config.Parallel
	if parallel < 1 {
		parallel = 1
	}

	var g errgroup.Group
	g.SetLimit(parallel)

	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(cases); j++ {
				results[j] = CaseResult{Case: cases[j], Status: StatusError, Err: err}
			}
			break
		}

		g.Go(func() error {
			r := s.RunCase(ctx, c)
			results[i] = r
			s.report(r)
			s.record(r)
			return nil
		})
	}

	_ = g.Wait()

	if s.Recorder != nil {
		if err := s.Recorder.Flush(); err != nil {
			logger.Printf("failed to record results: %v", err)
		}
	}

	var summary Summary
	for _, r := range results {
		summary.add(r)
	}
	summary.Duration = time.Since(start)

	s.printSummary(summary)

	return summary
}

// TracePath resolves the trace file of a case.
func (s *Suite) TracePath(c Case) string {
	if filepath.IsAbs(c.Trace) {
		return c.Trace
	}
	return filepath.Join(s.Config.TraceDir, c.Trace)
}

// RunCase runs a single case: the reference first, then the candidate on a
// fresh cache, then the comparison.
func (s *Suite) RunCase(ctx context.Context, c Case) CaseResult {
	start := time.Now()
	result := s.runCase(ctx, c)
	result.Duration = time.Since(start)
	return result
}

func (s *Suite) runCase(ctx context.Context, c Case) CaseResult {
	result := CaseResult{Case: c, Status: StatusError}

	g := c.Geometry()
	if err := g.Validate(); err != nil {
		result.Err = err
		return result
	}

	path := s.TracePath(c)
	f, err := trace.Open(path)
	if errors.Is(err, trace.ErrUnreadable) {
		s.logger().Printf("skipping %s: %v", path, err)
		result.Status = StatusSkip
		result.Err = err
		return result
	}
	if err != nil {
		result.Err = err
		return result
	}

	ref, err := s.Reference.Run(ctx, g, path)
	if err != nil {
		result.Err = fmt.Errorf("reference: %w", err)
		return result
	}

	cand, err := s.Candidate.Run(ctx, g, f)
	if err != nil {
		result.Err = fmt.Errorf("candidate: %w", err)
		return result
	}

	result.Verdict = compare.Compare(ref, cand)
	if result.Verdict.Passed() {
		result.Status = StatusPass
	} else {
		result.Status = StatusFail
	}

	return result
}

func (s *Suite) report(r CaseResult) {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	w := s.output()
	_, _ = fmt.Fprintf(w, "%-5s %s (%v)\n", r.Status, r.Case, r.Duration.Round(time.Millisecond))

	switch r.Status {
	case StatusFail:
		r.Verdict.WriteReport(w)
	case StatusError, StatusSkip:
		_, _ = fmt.Fprintf(w, "  %v\n", r.Err)
	}
}

func (s *Suite) record(r CaseResult) {
	if s.Recorder == nil {
		return
	}

	if err := s.Recorder.RecordCase(ToRecord(r)); err != nil {
		s.logger().Printf("failed to record %s: %v", r.Case, err)
	}
}

// ToRecord converts a result to its history form.
func ToRecord(r CaseResult) record.CaseRecord {
	c := record.CaseRecord{
		S:             r.Case.S,
		E:             r.Case.E,
		B:             r.Case.B,
		Trace:         r.Case.Trace,
		Status:        r.Status.String(),
		StatsMatch:    r.Verdict.StatsMatch,
		OutcomesMatch: r.Verdict.OutcomesMatch,
		Divergence:    -1,
		Reference:     r.Verdict.Reference.Stats,
		Candidate:     r.Verdict.Candidate.Stats,
		Duration:      r.Duration,
	}

	if r.Verdict.Divergence != nil {
		c.Divergence = r.Verdict.Divergence.Index
	}
	if r.Err != nil {
		c.Error = r.Err.Error()
	}

	return c
}

func (s *Suite) printSummary(summary Summary) {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	_, _ = fmt.Fprintf(s.output(), "%d cases: %d passed, %d failed, %d skipped, %d errors (%v)\n",
		len(summary.Results), summary.Passed, summary.Failed, summary.Skipped, summary.Errored,
		summary.Duration.Round(time.Millisecond))
}
