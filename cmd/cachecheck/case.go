package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachecheck/candidate"
	"github.com/sarchlab/cachecheck/reference"
	"github.com/sarchlab/cachecheck/suite"
)

func newCaseCmd() *cobra.Command {
	var (
		debug   bool
		backend string
		timeout time.Duration
		quiet   bool
	)

	cmd := &cobra.Command{
		Use:   "case <reference> <trace> <s> <E> <b>",
		Short: "Run a single case.",
		Long: `Run one trace with one geometry through the reference and an ` +
			`in-process candidate. With --debug every candidate access is ` +
			`printed with its decoded address and the counters after it.`,
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := parseCase(args[1:])
			if err != nil {
				return err
			}

			config := suite.DefaultConfig()
			config.Reference = args[0]
			config.TraceDir = filepath.Dir(c.Trace)
			config.Candidate = backend
			config.Timeout = suite.Duration(timeout)
			config.Cases = []suite.Case{c}

			cand, err := candidate.NewRunner(backend)
			if err != nil {
				return err
			}
			if debug {
				cand.Debug = cmd.OutOrStdout()
			}

			s := suite.New(config, reference.NewRunner(config.Reference, timeout), cand)

			return runPrepared(cmd, s, quiet)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&debug, "debug", false, "Print every candidate access")
	flags.StringVar(&backend, "candidate", "native", "In-process candidate backend")
	flags.DurationVar(&timeout, "timeout", reference.DefaultTimeout, "Timeout of the reference run")
	flags.BoolVar(&quiet, "quiet", false, "Discard diagnostics")

	return cmd
}

// parseCase reads "<trace> <s> <E> <b>".
func parseCase(args []string) (suite.Case, error) {
	var nums [3]int
	for i, name := range []string{"s", "E", "b"} {
		v, err := strconv.Atoi(args[i+1])
		if err != nil {
			return suite.Case{}, fmt.Errorf("%s must be an integer, got %q", name, args[i+1])
		}
		nums[i] = v
	}

	trace, err := filepath.Abs(args[0])
	if err != nil {
		return suite.Case{}, err
	}

	c := suite.Case{S: nums[0], E: nums[1], B: nums[2], Trace: trace}
	if err := c.Geometry().Validate(); err != nil {
		return suite.Case{}, err
	}

	return c, nil
}
