// Package main provides cachecheck, a differential tester that runs cache
// simulators against a reference simulator over a table of geometries and
// traces.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tebeka/atexit"
)

func main() {
	atexit.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errNotPassed):
		return 1
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}
