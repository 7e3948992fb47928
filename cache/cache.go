// Package cache models a set-associative, write-back, write-allocate cache
// with LRU replacement and dirty-byte accounting.
package cache

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachecheck/geometry"
	"github.com/sarchlab/cachecheck/trace"
)

// MaxBackedOffsetBits bounds the block size when a backing store is attached,
// since every line then carries its data.
const MaxBackedOffsetBits = 16

// ErrGeometryTooLarge is returned when an implementation cannot hold the
// requested geometry.
var ErrGeometryTooLarge = errors.New("geometry too large for this implementation")

type options struct {
	backing BackingStore
}

// Option configures a simulator at construction time.
type Option func(*options)

// WithBackingStore attaches the next level of the memory hierarchy. Without
// one the cache runs in verification mode: no memory I/O happens and reads
// return zero.
func WithBackingStore(b BackingStore) Option {
	return func(o *options) {
		o.backing = b
	}
}

func buildOptions(g geometry.Geometry, opts []Option) (options, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.backing != nil && g.B > MaxBackedOffsetBits {
		return o, fmt.Errorf("%w: b=%d with a backing store (max %d)",
			ErrGeometryTooLarge, g.B, MaxBackedOffsetBits)
	}

	return o, nil
}

type line struct {
	tag     uint64
	valid   bool
	dirty   bool
	recency uint64
	data    []byte
}

type set struct {
	lines []line
}

func (s *set) lookup(tag uint64) *line {
	for i := range s.lines {
		if s.lines[i].valid && s.lines[i].tag == tag {
			return &s.lines[i]
		}
	}
	return nil
}

// victim returns the first invalid line, or the least recently used one.
// Equal recency keeps the lowest slot.
func (s *set) victim() *line {
	var lru *line
	for i := range s.lines {
		l := &s.lines[i]
		if !l.valid {
			return l
		}
		if lru == nil || l.recency < lru.recency {
			lru = l
		}
	}
	return lru
}

func (s *set) validCount() int {
	n := 0
	for i := range s.lines {
		if s.lines[i].valid {
			n++
		}
	}
	return n
}

// Cache is the native simulator. Sets are allocated on first use, so sparse
// traces over large geometries stay cheap.
type Cache struct {
	*sim.HookableBase

	geometry geometry.Geometry
	sets     map[uint64]*set
	clock    uint64
	seq      uint64

	stats Stats
	last  Outcome

	backing BackingStore
}

// New creates an empty cache with the given geometry.
func New(g geometry.Geometry, opts ...Option) (*Cache, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	o, err := buildOptions(g, opts)
	if err != nil {
		return nil, err
	}

	return &Cache{
		HookableBase: sim.NewHookableBase(),
		geometry:     g,
		sets:         make(map[uint64]*set),
		backing:      o.backing,
	}, nil
}

// Geometry returns the cache geometry.
func (c *Cache) Geometry() geometry.Geometry {
	return c.geometry
}

// Stats returns the counters.
func (c *Cache) Stats() Stats {
	return c.stats
}

// LastOutcome labels the most recent access.
func (c *Cache) LastOutcome() string {
	return c.last.String()
}

// Outcome returns the most recent outcome.
func (c *Cache) Outcome() Outcome {
	return c.last
}

// Read performs a load and returns the addressed byte.
func (c *Cache) Read(addr uint64) byte {
	l, offset := c.access(trace.Load, addr)
	if l.data == nil {
		return 0
	}
	return l.data[offset]
}

// Write performs a store of a single byte.
func (c *Cache) Write(addr uint64, value byte) {
	l, offset := c.access(trace.Store, addr)
	if l.data != nil {
		l.data[offset] = value
	}
}

// Access replays one trace access and returns its outcome.
func (c *Cache) Access(a trace.Access) Outcome {
	if a.Op == trace.Store {
		c.Write(a.Addr, 1)
	} else {
		c.Read(a.Addr)
	}
	return c.last
}

func (c *Cache) setFor(index uint64) *set {
	s, ok := c.sets[index]
	if !ok {
		s = &set{lines: make([]line, c.geometry.E)}
		c.sets[index] = s
	}
	return s
}

func (c *Cache) access(op trace.Op, addr uint64) (*line, uint64) {
	fields := c.geometry.Decode(addr)
	s := c.setFor(fields.Index)
	validBefore := s.validCount()
	isWrite := op == trace.Store
	blockSize := c.geometry.BlockSize()

	c.clock++

	l := s.lookup(fields.Tag)
	if l != nil {
		c.stats.Hits++
		c.last = Hit
		l.recency = c.clock
		if isWrite && !l.dirty {
			l.dirty = true
			c.stats.DirtyBytesInCache += blockSize
		}
	} else {
		l = c.handleMiss(s, fields, isWrite)
	}

	c.invokeAccessHook(op, addr, fields, validBefore)

	return l, fields.Offset
}

func (c *Cache) handleMiss(s *set, fields geometry.Fields, isWrite bool) *line {
	blockSize := c.geometry.BlockSize()
	victim := s.victim()

	c.stats.Misses++
	c.last = Miss

	if victim.valid {
		c.stats.Evictions++
		c.last = MissEviction

		if victim.dirty {
			c.stats.DirtyBytesEvicted += blockSize
			c.stats.DirtyBytesInCache -= blockSize
			c.writeBack(victim, fields.Index)
		}
	}

	victim.tag = fields.Tag
	victim.valid = true
	victim.dirty = isWrite
	victim.recency = c.clock
	c.fill(victim, fields)

	if isWrite {
		c.stats.DirtyBytesInCache += blockSize
	}

	return victim
}

func (c *Cache) blockAddr(tag, index uint64) uint64 {
	return geometry.Encode(tag, index, 0, c.geometry.S, c.geometry.B)
}

func (c *Cache) fill(l *line, fields geometry.Fields) {
	if c.backing == nil {
		return
	}

	if l.data == nil {
		l.data = make([]byte, c.geometry.BlockSize())
	}
	copy(l.data, c.backing.Read(c.blockAddr(fields.Tag, fields.Index), len(l.data)))
}

func (c *Cache) writeBack(l *line, index uint64) {
	if c.backing == nil || l.data == nil {
		return
	}
	c.backing.Write(c.blockAddr(l.tag, index), l.data)
}

func (c *Cache) invokeAccessHook(
	op trace.Op,
	addr uint64,
	fields geometry.Fields,
	validBefore int,
) {
	c.seq++
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosAccess,
		Item: AccessEvent{
			Seq:         c.seq,
			Op:          op,
			Addr:        addr,
			Fields:      fields,
			Outcome:     c.last,
			ValidBefore: validBefore,
			Stats:       c.stats,
		},
	})
}

// Flush writes every dirty line back to the backing store. Lines stay valid
// and dirty, and the counters do not change.
func (c *Cache) Flush() {
	for index, s := range c.sets {
		for i := range s.lines {
			l := &s.lines[i]
			if l.valid && l.dirty {
				c.writeBack(l, index)
			}
		}
	}
}

// Reset empties the cache and clears the counters.
func (c *Cache) Reset() {
	c.sets = make(map[uint64]*set)
	c.clock = 0
	c.seq = 0
	c.stats = Stats{}
	c.last = None
}

// ValidLines returns the number of valid lines in the set selected by index.
func (c *Cache) ValidLines(index uint64) int {
	s, ok := c.sets[index]
	if !ok {
		return 0
	}
	return s.validCount()
}

// DirtyLines counts valid dirty lines across the whole cache.
func (c *Cache) DirtyLines() int {
	n := 0
	for _, s := range c.sets {
		for i := range s.lines {
			if s.lines[i].valid && s.lines[i].dirty {
				n++
			}
		}
	}
	return n
}
