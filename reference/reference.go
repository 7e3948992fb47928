// Package reference runs a golden cache simulator as a child process and
// parses its verbose report.
package reference

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sarchlab/cachecheck/cache"
	"github.com/sarchlab/cachecheck/geometry"
)

// DefaultTimeout bounds a single reference run.
const DefaultTimeout = 30 * time.Second

// Errors raised by Run. A timeout is fatal for the case; runs are never
// retried.
var (
	ErrMissingBinary  = errors.New("reference binary not found")
	ErrMissingTrace   = errors.New("trace file not found")
	ErrTimeout        = errors.New("reference run timed out")
	ErrDuplicateStats = errors.New("reference output has more than one statistics line")
)

// Runner invokes a simulator binary that speaks the reference CLI:
//
//	<binary> -v -s <s> -E <E> -b <b> -t <trace>
type Runner struct {
	// Binary is the path of the simulator executable.
	Binary string
	// Timeout bounds each run. Zero means DefaultTimeout.
	Timeout time.Duration
	// Schema describes the statistics line. The zero value means
	// SchemaV1.
	Schema StatsSchema
}

// NewRunner creates a Runner for binary.
func NewRunner(binary string, timeout time.Duration) *Runner {
	return &Runner{Binary: binary, Timeout: timeout, Schema: SchemaV1}
}

func (r *Runner) schema() StatsSchema {
	if r.Schema.Prefix == "" {
		return SchemaV1
	}
	return r.Schema
}

func (r *Runner) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

// Args returns the command-line arguments for one run.
func Args(g geometry.Geometry, tracePath string) []string {
	return []string{
		"-v",
		"-s", strconv.Itoa(g.S),
		"-E", strconv.Itoa(g.E),
		"-b", strconv.Itoa(g.B),
		"-t", tracePath,
	}
}

// Run executes the binary once over the trace at tracePath. The binary runs
// in its own directory.
func (r *Runner) Run(
	ctx context.Context,
	g geometry.Geometry,
	tracePath string,
) (cache.Report, error) {
	binary, err := filepath.Abs(r.Binary)
	if err != nil {
		return cache.Report{}, fmt.Errorf("failed to resolve reference path: %w", err)
	}
	if _, err := os.Stat(binary); err != nil {
		return cache.Report{}, fmt.Errorf("%w: %s", ErrMissingBinary, binary)
	}

	tracePath, err = filepath.Abs(tracePath)
	if err != nil {
		return cache.Report{}, fmt.Errorf("failed to resolve trace path: %w", err)
	}
	if _, err := os.Stat(tracePath); err != nil {
		return cache.Report{}, fmt.Errorf("%w: %s", ErrMissingTrace, tracePath)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, Args(g, tracePath)...)
	cmd.Dir = filepath.Dir(binary)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return cache.Report{}, fmt.Errorf("%w after %v: %s %s",
				ErrTimeout, r.timeout(), binary, g)
		}
		if ctx.Err() != nil {
			return cache.Report{}, fmt.Errorf("reference run cancelled: %w", ctx.Err())
		}
		return cache.Report{}, fmt.Errorf("reference run failed: %w: %s",
			err, strings.TrimSpace(stderr.String()))
	}

	return ParseOutput(&stdout, r.schema())
}

// ParseOutput reads a verbose report. Lines ending in "hit", "miss" or
// "miss eviction" become outcomes in order; the line starting with the
// schema prefix becomes the statistics.
func ParseOutput(r io.Reader, schema StatsSchema) (cache.Report, error) {
	var (
		report    cache.Report
		statsLine string
		found     bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		switch {
		case strings.HasSuffix(line, cache.LabelHit):
			report.Outcomes = append(report.Outcomes, cache.Hit)
		case strings.HasSuffix(line, cache.LabelMissEviction):
			report.Outcomes = append(report.Outcomes, cache.MissEviction)
		case strings.HasSuffix(line, cache.LabelMiss):
			report.Outcomes = append(report.Outcomes, cache.Miss)
		case schema.IsStatsLine(line):
			if found {
				return cache.Report{}, ErrDuplicateStats
			}
			statsLine = line
			found = true
		}
	}

	if err := scanner.Err(); err != nil {
		return cache.Report{}, fmt.Errorf("failed to read reference output: %w", err)
	}

	if !found {
		return cache.Report{}, ErrNoStats
	}

	stats, err := schema.Parse(statsLine)
	if err != nil {
		return cache.Report{}, err
	}
	report.Stats = stats

	return report, nil
}
