package candidate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/sarchlab/cachecheck/cache"
	"github.com/sarchlab/cachecheck/geometry"
	"github.com/sarchlab/cachecheck/reference"
	"github.com/sarchlab/cachecheck/trace"
)

// BuildParams are the values available to build command templates.
type BuildParams struct {
	S, E, B int
	TagBits int
	// Output is the path the command must write the executable to.
	Output string
}

// Builder compiles one executable per geometry. The command is run with
// every argument expanded as a text/template over BuildParams, for example
//
//	go build -o {{.Output}} -ldflags "-X main.defaultS={{.S}}" ./cmd/csim
//
// The command writes to a temporary file that is renamed into place only
// after it succeeds, so an interrupted build never leaves a usable partial
// artifact behind.
type Builder struct {
	Command []string
	// Dir is the working directory of the build command.
	Dir string
	// OutDir receives the artifacts.
	OutDir string
	// Log receives the build command's combined output.
	Log io.Writer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	built map[string]bool
}

// NewBuilder creates a Builder.
func NewBuilder(command []string, dir, outDir string) *Builder {
	return &Builder{Command: command, Dir: dir, OutDir: outDir}
}

// ArtifactPath is where the executable for g is placed.
func (b *Builder) ArtifactPath(g geometry.Geometry) string {
	return filepath.Join(b.OutDir, fmt.Sprintf("candidate-s%d-E%d-b%d", g.S, g.E, g.B))
}

func (b *Builder) lockFor(path string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.locks == nil {
		b.locks = make(map[string]*sync.Mutex)
		b.built = make(map[string]bool)
	}

	l, ok := b.locks[path]
	if !ok {
		l = &sync.Mutex{}
		b.locks[path] = l
	}
	return l
}

func (b *Builder) isBuilt(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.built[path]
}

func (b *Builder) markBuilt(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.built[path] = true
}

// Build compiles the executable for g, once per Builder, and returns its
// path. Previous artifacts from other runs are rebuilt and replaced.
func (b *Builder) Build(ctx context.Context, g geometry.Geometry) (string, error) {
	if len(b.Command) == 0 {
		return "", fmt.Errorf("%w: no build command", ErrBuild)
	}

	path := b.ArtifactPath(g)
	l := b.lockFor(path)
	l.Lock()
	defer l.Unlock()

	if b.isBuilt(path) {
		return path, nil
	}

	if err := os.MkdirAll(b.OutDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuild, err)
	}

	tmp, err := os.CreateTemp(b.OutDir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuild, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	args, err := b.expand(BuildParams{
		S: g.S, E: g.E, B: g.B,
		TagBits: g.TagBits(),
		Output:  tmpPath,
	})
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = b.Dir
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	if b.Log != nil {
		_, _ = b.Log.Write(out.Bytes())
	}
	if runErr != nil {
		return "", fmt.Errorf("%w for %s: %w: %s",
			ErrBuild, g, runErr, strings.TrimSpace(out.String()))
	}

	if err := os.Chmod(tmpPath, 0755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuild, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("%w: %w", ErrBuild, err)
	}

	b.markBuilt(path)

	return path, nil
}

func (b *Builder) expand(p BuildParams) ([]string, error) {
	args := make([]string, len(b.Command))
	for i, arg := range b.Command {
		tmpl, err := template.New("arg").Option("missingkey=error").Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: bad template %q: %w", ErrBuild, arg, err)
		}

		var sb strings.Builder
		if err := tmpl.Execute(&sb, p); err != nil {
			return nil, fmt.Errorf("%w: bad template %q: %w", ErrBuild, arg, err)
		}
		args[i] = sb.String()
	}
	return args, nil
}

// ExecRunner runs an executable candidate that speaks the reference CLI.
// Each case starts a new process, so no state survives between cases.
type ExecRunner struct {
	// Builder produces the executable per geometry. If nil, Binary is
	// used for every geometry.
	Builder *Builder
	Binary  string
	Timeout time.Duration
}

// Run builds the executable for g if needed and runs it over the trace.
func (r *ExecRunner) Run(
	ctx context.Context,
	g geometry.Geometry,
	f *trace.File,
) (cache.Report, error) {
	binary := r.Binary
	if r.Builder != nil {
		var err error
		binary, err = r.Builder.Build(ctx, g)
		if err != nil {
			return cache.Report{}, err
		}
	}

	if binary == "" {
		return cache.Report{}, fmt.Errorf("%w: no candidate executable", ErrBuild)
	}

	return reference.NewRunner(binary, r.Timeout).Run(ctx, g, f.Path)
}
