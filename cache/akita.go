package cache

import (
	"fmt"
	"log"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/cachecheck/geometry"
)

// MaxAkitaBlocks bounds the directory size of an AkitaCache. The Akita
// directory allocates every block up front.
const MaxAkitaBlocks = 1 << 20

// AkitaCache implements the same contract as Cache on top of Akita's cache
// directory and LRU victim finder.
type AkitaCache struct {
	geometry geometry.Geometry

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Data storage, indexed by (setID * E + wayID). Empty without a
	// backing store.
	dataStore [][]byte

	stats   Stats
	last    Outcome
	backing BackingStore
}

// NewAkita creates an AkitaCache. Geometries whose directory would exceed
// MaxAkitaBlocks are rejected.
func NewAkita(g geometry.Geometry, opts ...Option) (*AkitaCache, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	o, err := buildOptions(g, opts)
	if err != nil {
		return nil, err
	}

	if g.S > 20 || g.B > 30 || g.NumSets()*uint64(g.E) > MaxAkitaBlocks {
		return nil, fmt.Errorf("%w: the akita directory holds at most %d blocks, %s needs %d sets of %d",
			ErrGeometryTooLarge, MaxAkitaBlocks, g, g.NumSets(), g.E)
	}

	numSets := int(g.NumSets())
	blockSize := int(g.BlockSize())

	c := &AkitaCache{
		geometry: g,
		directory: akitacache.NewDirectory(
			numSets,
			g.E,
			blockSize,
			akitacache.NewLRUVictimFinder(),
		),
		backing: o.backing,
	}

	if c.backing != nil {
		c.dataStore = make([][]byte, numSets*g.E)
		for i := range c.dataStore {
			c.dataStore[i] = make([]byte, blockSize)
		}
	}

	return c, nil
}

// Stats returns the counters.
func (c *AkitaCache) Stats() Stats {
	return c.stats
}

// LastOutcome labels the most recent access.
func (c *AkitaCache) LastOutcome() string {
	return c.last.String()
}

func (c *AkitaCache) blockAddr(addr uint64) uint64 {
	return addr &^ geometry.Mask(c.geometry.B)
}

func (c *AkitaCache) blockData(block *akitacache.Block) []byte {
	if c.dataStore == nil {
		return nil
	}
	return c.dataStore[block.SetID*c.geometry.E+block.WayID]
}

// Read performs a load and returns the addressed byte.
func (c *AkitaCache) Read(addr uint64) byte {
	data := c.blockData(c.access(addr, false))
	if data == nil {
		return 0
	}
	return data[addr&geometry.Mask(c.geometry.B)]
}

// Write performs a store of a single byte.
func (c *AkitaCache) Write(addr uint64, value byte) {
	data := c.blockData(c.access(addr, true))
	if data != nil {
		data[addr&geometry.Mask(c.geometry.B)] = value
	}
}

func (c *AkitaCache) access(addr uint64, isWrite bool) *akitacache.Block {
	blockAddr := c.blockAddr(addr)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.last = Hit
		c.directory.Visit(block)

		if isWrite && !block.IsDirty {
			block.IsDirty = true
			c.stats.DirtyBytesInCache += c.geometry.BlockSize()
		}

		return block
	}

	return c.handleMiss(blockAddr, isWrite)
}

func (c *AkitaCache) handleMiss(blockAddr uint64, isWrite bool) *akitacache.Block {
	blockSize := c.geometry.BlockSize()

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		log.Panicf("no victim for block 0x%x", blockAddr)
	}

	c.stats.Misses++
	c.last = Miss

	if victim.IsValid {
		c.stats.Evictions++
		c.last = MissEviction

		if victim.IsDirty {
			c.stats.DirtyBytesEvicted += blockSize
			c.stats.DirtyBytesInCache -= blockSize

			if c.backing != nil {
				c.backing.Write(victim.Tag, c.blockData(victim))
			}
		}
	}

	if c.backing != nil {
		copy(c.blockData(victim), c.backing.Read(blockAddr, int(blockSize)))
	}

	// Tag stores the block-aligned address, as the directory compares it
	// against block-aligned lookups.
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = isWrite

	if isWrite {
		c.stats.DirtyBytesInCache += blockSize
	}

	c.directory.Visit(victim)

	return victim
}

// Flush writes back all dirty blocks without invalidating them.
func (c *AkitaCache) Flush() {
	if c.backing == nil {
		return
	}

	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				c.backing.Write(block.Tag, c.blockData(block))
			}
		}
	}
}

// Reset invalidates all cache lines without writeback and clears the
// counters.
func (c *AkitaCache) Reset() {
	c.directory.Reset()
	c.stats = Stats{}
	c.last = None
}
