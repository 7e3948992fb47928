package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachecheck/record"
	"github.com/sarchlab/cachecheck/suite"
)

type runFlags struct {
	config     string
	envFile    string
	saveConfig string
	reference  string
	traces     string
	candidate  string
	build      string
	buildDir   string
	parallel   int
	timeout    time.Duration
	db         string
	quiet      bool
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every case of the suite.",
		Long: `Run every case of the suite and print Pass, Fail, Skip or ` +
			`Error for each. The exit code is 1 unless every case passes. ` +
			`Values come from the config file, then CACHECHECK_* ` +
			`environment variables, then flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := f.load(cmd)
			if err != nil {
				return err
			}

			if f.saveConfig != "" {
				return config.SaveConfig(f.saveConfig)
			}

			return runSuite(cmd, config, f.quiet)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.config, "config", "", "Suite configuration JSON file")
	flags.StringVar(&f.envFile, "env", ".env", "Environment file with CACHECHECK_* overrides")
	flags.StringVar(&f.saveConfig, "save-config", "",
		"Write the effective configuration to this file instead of running")
	flags.StringVar(&f.reference, "reference", "", "Reference simulator executable")
	flags.StringVar(&f.traces, "traces", "", "Directory holding the trace files")
	flags.StringVar(&f.candidate, "candidate", "", "Candidate backend: native, akita or exec")
	flags.StringVar(&f.build, "build", "",
		"Shell command that builds an executable candidate to {{.Output}}")
	flags.StringVar(&f.buildDir, "build-dir", "", "Directory for executable candidates")
	flags.IntVar(&f.parallel, "parallel", 1, "Number of cases run at the same time")
	flags.DurationVar(&f.timeout, "timeout", 30*time.Second, "Timeout of every child process")
	flags.StringVar(&f.db, "db", "", "SQLite database that keeps the run history")
	flags.BoolVar(&f.quiet, "quiet", false, "Discard diagnostics")

	return cmd
}

func (f *runFlags) load(cmd *cobra.Command) (*suite.Config, error) {
	config := suite.DefaultConfig()
	if f.config != "" {
		var err error
		config, err = suite.LoadConfig(f.config)
		if err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnv(f.envFile); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("reference") {
		config.Reference = f.reference
	}
	if flags.Changed("traces") {
		config.TraceDir = f.traces
	}
	if flags.Changed("build") {
		config.BuildCommand = []string{"sh", "-c", f.build}
		config.Candidate = suite.ExecCandidate
	}
	if flags.Changed("candidate") {
		config.Candidate = f.candidate
	}
	if flags.Changed("build-dir") {
		config.BuildDir = f.buildDir
	}
	if flags.Changed("parallel") {
		config.Parallel = f.parallel
	}
	if flags.Changed("timeout") {
		config.Timeout = suite.Duration(f.timeout)
	}
	if flags.Changed("db") {
		config.DB = f.db
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid suite config: %w", err)
	}

	return config, nil
}

func newLogger(cmd *cobra.Command, quiet bool) *log.Logger {
	var w io.Writer = cmd.ErrOrStderr()
	if quiet {
		w = io.Discard
	}
	return log.New(w, "cachecheck: ", 0)
}

func runSuite(cmd *cobra.Command, config *suite.Config, quiet bool) error {
	s, err := suite.NewFromConfig(config)
	if err != nil {
		return err
	}
	return runPrepared(cmd, s, quiet)
}

func runPrepared(cmd *cobra.Command, s *suite.Suite, quiet bool) error {
	s.Output = cmd.OutOrStdout()
	s.Logger = newLogger(cmd, quiet)

	if s.Config.DB != "" {
		rec, err := record.NewSQLiteRecorder(s.Config.DB, s.Config.Candidate)
		if err != nil {
			return err
		}
		defer func() { _ = rec.Close() }()

		s.Recorder = rec
		s.Logger.Printf("recording run %s to %s", rec.RunID(), s.Config.DB)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if !s.Run(ctx).OK() {
		return errNotPassed
	}

	return nil
}
