// Package trace reads memory-access traces. Each line of a trace holds one
// access in the form "<op> <hex-address>,<size>", for example "L 7ff000384,4".
package trace

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Op is the kind of a memory access.
type Op byte

const (
	// Load reads from memory.
	Load Op = 'L'
	// Store writes to memory.
	Store Op = 'S'
)

func (o Op) String() string {
	switch o {
	case Load:
		return "L"
	case Store:
		return "S"
	default:
		return fmt.Sprintf("Op(%d)", byte(o))
	}
}

// Access is a single memory access.
type Access struct {
	Op   Op
	Addr uint64
	Size int
}

// String renders the access in trace-file syntax.
func (a Access) String() string {
	return fmt.Sprintf("%s %x,%d", a.Op, a.Addr, a.Size)
}

// Errors reported by the parser. A ParseError wraps exactly one of them.
var (
	ErrTokenCount  = errors.New("expected two space-separated tokens")
	ErrOperator    = errors.New("operator must be L or S")
	ErrAddressSize = errors.New("expected <address>,<size>")
	ErrAddress     = errors.New("address is not hexadecimal")
	ErrSize        = errors.New("access size must be 1, 2, 4 or 8")
)

// ErrUnreadable means the trace is not ASCII text. Callers skip such traces
// instead of treating them as malformed.
var ErrUnreadable = errors.New("trace is not ASCII text")

// ParseError locates a malformed trace line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseLine parses a single access. Leading whitespace and a trailing line
// terminator are allowed.
func ParseLine(line string) (Access, error) {
	line = strings.TrimLeft(line, " \t")
	line = strings.TrimRight(line, "\r\n")

	tokens := strings.Split(line, " ")
	if len(tokens) != 2 {
		return Access{}, ErrTokenCount
	}

	var op Op
	switch tokens[0] {
	case "L":
		op = Load
	case "S":
		op = Store
	default:
		return Access{}, ErrOperator
	}

	parts := strings.Split(tokens[1], ",")
	if len(parts) != 2 {
		return Access{}, ErrAddressSize
	}

	addr, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return Access{}, fmt.Errorf("%w: %q", ErrAddress, parts[0])
	}

	size, err := strconv.Atoi(parts[1])
	if err != nil || !validSize(size) {
		return Access{}, fmt.Errorf("%w: %q", ErrSize, parts[1])
	}

	return Access{Op: op, Addr: addr, Size: size}, nil
}

func validSize(size int) bool {
	switch size {
	case 1, 2, 4, 8:
		return true
	}
	return false
}

// Parse reads a whole trace. Every line, blank ones included, must be an
// access; a final line terminator is allowed.
func Parse(r io.Reader) ([]Access, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	if !isASCII(data) {
		return nil, ErrUnreadable
	}

	var accesses []Access
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		text := scanner.Text()
		access, err := ParseLine(text)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Text: text, Err: err}
		}
		accesses = append(accesses, access)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	return accesses, nil
}

// ReadFile parses the trace stored at path.
func ReadFile(path string) ([]Access, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer func() { _ = f.Close() }()

	accesses, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return accesses, nil
}

// File is a parsed trace together with the path it came from. In-process
// simulators consume the accesses; external ones re-read the path.
type File struct {
	Path     string
	Accesses []Access
}

// Open reads and parses the trace at path.
func Open(path string) (*File, error) {
	accesses, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &File{Path: path, Accesses: accesses}, nil
}

func isASCII(data []byte) bool {
	for _, c := range data {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
