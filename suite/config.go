package suite

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override configuration values.
const (
	EnvReference = "CACHECHECK_REFERENCE"
	EnvTraceDir  = "CACHECHECK_TRACE_DIR"
	EnvCandidate = "CACHECHECK_CANDIDATE"
	EnvTimeout   = "CACHECHECK_TIMEOUT"
	EnvParallel  = "CACHECHECK_PARALLEL"
	EnvDB        = "CACHECHECK_DB"
)

// ExecCandidate selects an executable candidate built by BuildCommand.
const ExecCandidate = "exec"

// Duration is a time.Duration that reads and writes as a string such as
// "30s".
type Duration time.Duration

// MarshalJSON writes the duration in time.Duration syntax.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(n)
	return nil
}

// Config describes a verification run.
type Config struct {
	// Reference is the path of the reference simulator executable.
	Reference string `json:"reference"`

	// TraceDir holds the trace files named by the cases.
	TraceDir string `json:"trace_dir"`

	// Candidate is an in-process backend name, or "exec".
	Candidate string `json:"candidate"`

	// BuildCommand builds the executable candidate. Each argument is a
	// template over candidate.BuildParams.
	BuildCommand []string `json:"build_command,omitempty"`

	// BuildDir receives the executable candidates.
	BuildDir string `json:"build_dir,omitempty"`

	// Timeout bounds every child process.
	Timeout Duration `json:"timeout"`

	// Parallel is the number of cases run at the same time.
	Parallel int `json:"parallel"`

	// DB, if set, is the SQLite database that keeps the run history.
	DB string `json:"db,omitempty"`

	Cases []Case `json:"cases"`
}

// DefaultConfig returns the configuration of the standard verification run.
func DefaultConfig() *Config {
	return &Config{
		Reference: "files/cache/csim-ref",
		TraceDir:  "traces",
		Candidate: "native",
		BuildDir:  "bin",
		Timeout:   Duration(30 * time.Second),
		Parallel:  1,
		Cases:     DefaultCases(),
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse suite config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize suite config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write suite config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration can be run.
func (c *Config) Validate() error {
	if c.Reference == "" {
		return errors.New("reference must be set")
	}
	if c.TraceDir == "" {
		return errors.New("trace_dir must be set")
	}
	if c.Candidate == "" {
		return errors.New("candidate must be set")
	}
	if c.Candidate == ExecCandidate && len(c.BuildCommand) == 0 {
		return errors.New("build_command must be set for an exec candidate")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	if c.Parallel < 1 {
		return errors.New("parallel must be >= 1")
	}
	if len(c.Cases) == 0 {
		return errors.New("cases must not be empty")
	}
	for i, tc := range c.Cases {
		if tc.Trace == "" {
			return fmt.Errorf("case %d: trace must be set", i)
		}
		if err := tc.Geometry().Validate(); err != nil {
			return fmt.Errorf("case %d: %w", i, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from the environment. Variables already set in
// the process take precedence over those read from the env files. Missing
// env files are ignored.
func (c *Config) ApplyEnv(envFiles ...string) error {
	fileEnv := map[string]string{}
	for _, path := range envFiles {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}

		m, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("failed to read env file: %w", err)
		}
		for k, v := range m {
			if _, ok := fileEnv[k]; !ok {
				fileEnv[k] = v
			}
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}

	if v, ok := lookup(EnvReference); ok {
		c.Reference = v
	}
	if v, ok := lookup(EnvTraceDir); ok {
		c.TraceDir = v
	}
	if v, ok := lookup(EnvCandidate); ok {
		c.Candidate = v
	}
	if v, ok := lookup(EnvDB); ok {
		c.DB = v
	}
	if v, ok := lookup(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		c.Timeout = Duration(d)
	}
	if v, ok := lookup(EnvParallel); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvParallel, err)
		}
		c.Parallel = n
	}

	return nil
}
