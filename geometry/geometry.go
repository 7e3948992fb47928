// Package geometry describes the shape of a set-associative cache and splits
// 64-bit addresses into tag, index and offset fields.
package geometry

import (
	"errors"
	"fmt"
)

// AddressBits is the width of every address the cache sees.
const AddressBits = 64

// ErrInvalid is returned when a geometry cannot describe a real cache.
var ErrInvalid = errors.New("invalid cache geometry")

// Geometry holds the three parameters that fix a cache's layout.
type Geometry struct {
	// S is the number of set-index bits. The cache has 2^S sets.
	S int `json:"s"`
	// E is the number of lines per set.
	E int `json:"E"`
	// B is the number of block-offset bits. Blocks are 2^B bytes.
	B int `json:"b"`
}

// New creates a validated geometry.
func New(s, e, b int) (Geometry, error) {
	g := Geometry{S: s, E: e, B: b}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}

	return g, nil
}

// Validate checks that the fields fit in a 64-bit address and that every set
// can hold at least one line.
func (g Geometry) Validate() error {
	if g.S < 0 || g.B < 0 {
		return fmt.Errorf("%w: s=%d b=%d must not be negative", ErrInvalid, g.S, g.B)
	}
	if g.S+g.B > AddressBits {
		return fmt.Errorf("%w: s+b=%d exceeds %d address bits",
			ErrInvalid, g.S+g.B, AddressBits)
	}
	if g.E < 1 {
		return fmt.Errorf("%w: E=%d must be at least 1", ErrInvalid, g.E)
	}
	return nil
}

// TagBits returns the number of address bits left for the tag.
func (g Geometry) TagBits() int {
	return AddressBits - g.S - g.B
}

// BlockSize returns the block size in bytes. It is the unit of dirty-byte
// accounting.
func (g Geometry) BlockSize() uint64 {
	return uint64(1) << uint(g.B)
}

// NumSets returns the number of sets. It saturates at the largest uint64 when
// S is 64.
func (g Geometry) NumSets() uint64 {
	if g.S >= AddressBits {
		return ^uint64(0)
	}
	return uint64(1) << uint(g.S)
}

// Decode splits addr according to the geometry.
func (g Geometry) Decode(addr uint64) Fields {
	return Decode(addr, g.S, g.B)
}

// Encode reassembles an address from its fields.
func (g Geometry) Encode(f Fields) uint64 {
	return Encode(f.Tag, f.Index, f.Offset, g.S, g.B)
}

// String formats the geometry the way the reference CLI flags spell it.
func (g Geometry) String() string {
	return fmt.Sprintf("s=%d E=%d b=%d", g.S, g.E, g.B)
}
