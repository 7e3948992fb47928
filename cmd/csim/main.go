// Package main provides csim, a set-associative cache simulator with the
// command-line interface of the reference simulator. It replays a trace and
// prints the outcome of every access and the final counters.
//
// The default geometry can be fixed at build time:
//
//	go build -ldflags "-X main.defaultS=2 -X main.defaultE=1 -X main.defaultB=3" ./cmd/csim
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/sarchlab/cachecheck/candidate"
	"github.com/sarchlab/cachecheck/geometry"
	"github.com/sarchlab/cachecheck/reference"
	"github.com/sarchlab/cachecheck/trace"
)

// Set with -ldflags -X.
var (
	defaultS       = ""
	defaultE       = ""
	defaultB       = ""
	defaultBackend = "native"
)

var errUsage = errors.New("usage")

type options struct {
	verbose bool
	g       geometry.Geometry
	trace   string
	backend string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 2
	}

	if err := simulate(opts, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

func defaultInt(s string) int {
	if s == "" {
		return -1
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return v
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("csim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.BoolVar(&opts.verbose, "v", false, "Print the outcome of every access")
	fs.IntVar(&opts.g.S, "s", defaultInt(defaultS), "Number of set index bits")
	fs.IntVar(&opts.g.E, "E", defaultInt(defaultE), "Number of lines per set")
	fs.IntVar(&opts.g.B, "b", defaultInt(defaultB), "Number of block offset bits")
	fs.StringVar(&opts.trace, "t", "", "Trace file")
	fs.StringVar(&opts.backend, "backend", defaultBackend, "Simulator backend")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: csim [-v] -s <s> -E <E> -b <b> -t <trace>\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.g.S < 0 || opts.g.E < 0 || opts.g.B < 0 || opts.trace == "" || fs.NArg() > 0 {
		fmt.Fprintf(stderr, "csim: missing required command line argument\n")
		fs.Usage()
		return opts, errUsage
	}

	return opts, nil
}

func simulate(opts options, stdout io.Writer) error {
	if err := opts.g.Validate(); err != nil {
		return err
	}

	factory, err := candidate.Lookup(opts.backend)
	if err != nil {
		return err
	}

	f, err := trace.Open(opts.trace)
	if err != nil {
		return err
	}

	sim, err := factory(opts.g)
	if err != nil {
		return err
	}

	for _, a := range f.Accesses {
		if a.Op == trace.Store {
			sim.Write(a.Addr, 1)
		} else {
			sim.Read(a.Addr)
		}

		if opts.verbose {
			fmt.Fprintf(stdout, "%s %s\n", a, sim.LastOutcome())
		}
	}

	return reference.SchemaV1.Format(stdout, sim.Stats())
}
