// Package cache models a direct-mapped, write-through, no-write-allocate
// cache using the Akita cache directory for tag management.
package cache

import (
	"errors"
	"fmt"
	"math/bits"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// WordSize is the access size of the cache in bytes.
const WordSize = 4

// ErrUnalignedAccess is returned for word accesses that are not 4-byte
// aligned.
var ErrUnalignedAccess = errors.New("unaligned cache access")

// ErrOutOfRange is returned for accesses beyond the backing store.
var ErrOutOfRange = errors.New("cache access out of range")

// ErrInvalidConfig is returned for an unusable cache geometry.
var ErrInvalidConfig = errors.New("invalid cache config")

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// BlockSize in bytes (cache line size)
	BlockSize int
}

// DefaultConfig returns the default cache geometry: 4 KiB of 16-byte
// lines.
func DefaultConfig() Config {
	return Config{
		Size:      4096,
		BlockSize: 16,
	}
}

// NumLines returns the number of cache lines.
func (c Config) NumLines() int {
	if c.BlockSize <= 0 {
		return 0
	}
	return c.Size / c.BlockSize
}

// Validate checks that the geometry can be decomposed into offset, index
// and tag bits.
func (c Config) Validate() error {
	if c.BlockSize < WordSize || !isPowerOfTwo(c.BlockSize) {
		return fmt.Errorf("%w: block size %d must be a power of two >= %d",
			ErrInvalidConfig, c.BlockSize, WordSize)
	}
	if c.Size <= 0 || c.Size%c.BlockSize != 0 {
		return fmt.Errorf("%w: size %d must be a positive multiple of block size %d",
			ErrInvalidConfig, c.Size, c.BlockSize)
	}
	if !isPowerOfTwo(c.NumLines()) {
		return fmt.Errorf("%w: line count %d must be a power of two",
			ErrInvalidConfig, c.NumLines())
	}
	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the addressed line was resident.
	Hit bool
	// Data is the word read (for reads).
	Data uint32
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads     uint64
	Writes    uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// LineSnapshot is a read-only copy of one cache line.
type LineSnapshot struct {
	Index int
	Valid bool
	Tag   uint32
	Data  []byte
}

// BackingStore interface for main memory behind the cache.
type BackingStore interface {
	// Read fetches data from the backing store.
	Read(addr uint32, size int) []byte
	// Write stores data to the backing store.
	Write(addr uint32, data []byte)
	// Size returns the number of addressable bytes.
	Size() uint32
}

// Cache is a direct-mapped cache. Reads refill the whole line on a miss.
// Writes always go to the backing store and update the line only when it
// is already resident.
type Cache struct {
	config Config

	// Akita cache directory with one way per set
	directory *akitacache.DirectoryImpl

	// Data storage - indexed by set
	dataStore [][]byte

	offsetBits uint
	indexBits  uint

	stats   Statistics
	backing BackingStore
}

// New creates a new cache with the given configuration.
func New(config Config, backing BackingStore) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	numLines := config.NumLines()

	dataStore := make([][]byte, numLines)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numLines,
			1,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore:  dataStore,
		offsetBits: uint(bits.TrailingZeros(uint(config.BlockSize))),
		indexBits:  uint(bits.TrailingZeros(uint(numLines))),
		backing:    backing,
	}, nil
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// Tag returns the tag bits of addr.
func (c *Cache) Tag(addr uint32) uint32 {
	return addr >> (c.offsetBits + c.indexBits)
}

// Index returns the line index of addr.
func (c *Cache) Index(addr uint32) int {
	return int((addr >> c.offsetBits) & (1<<c.indexBits - 1))
}

func (c *Cache) blockAddr(addr uint32) uint32 {
	return addr &^ uint32(c.config.BlockSize-1)
}

func (c *Cache) offset(addr uint32) uint32 {
	return addr & uint32(c.config.BlockSize-1)
}

func (c *Cache) check(addr uint32) error {
	if addr%WordSize != 0 {
		return fmt.Errorf("%w: 0x%08x", ErrUnalignedAccess, addr)
	}
	if uint64(addr)+WordSize > uint64(c.backing.Size()) {
		return fmt.Errorf("%w: 0x%08x", ErrOutOfRange, addr)
	}
	return nil
}

// lookup returns the resident block holding addr, or nil.
func (c *Cache) lookup(addr uint32) *akitacache.Block {
	block := c.directory.Lookup(0, uint64(c.blockAddr(addr)))
	if block == nil || !block.IsValid {
		return nil
	}
	return block
}

// Read returns the word at addr, refilling its line on a miss.
func (c *Cache) Read(addr uint32) (AccessResult, error) {
	if err := c.check(addr); err != nil {
		return AccessResult{}, err
	}

	c.stats.Reads++

	block := c.lookup(addr)
	if block != nil {
		c.stats.Hits++
		c.directory.Visit(block)

		return AccessResult{
			Hit:  true,
			Data: extractWord(c.dataStore[block.SetID], c.offset(addr)),
		}, nil
	}

	c.stats.Misses++
	block = c.refill(addr)

	return AccessResult{
		Data: extractWord(c.dataStore[block.SetID], c.offset(addr)),
	}, nil
}

// refill loads the block containing addr into its line.
func (c *Cache) refill(addr uint32) *akitacache.Block {
	blockAddr := c.blockAddr(addr)

	victim := c.directory.FindVictim(uint64(blockAddr))
	if victim.IsValid {
		c.stats.Evictions++
	}

	copy(c.dataStore[victim.SetID], c.backing.Read(blockAddr, c.config.BlockSize))

	victim.Tag = uint64(blockAddr)
	victim.IsValid = true
	c.directory.Visit(victim)

	return victim
}

// Write stores value at addr in the backing store and mirrors it into the
// line if the line is resident.
func (c *Cache) Write(addr uint32, value uint32) (AccessResult, error) {
	if err := c.check(addr); err != nil {
		return AccessResult{}, err
	}

	c.stats.Writes++

	var buf [WordSize]byte
	storeWord(buf[:], 0, value)
	c.backing.Write(addr, buf[:])

	block := c.lookup(addr)
	if block == nil {
		c.stats.Misses++
		return AccessResult{}, nil
	}

	c.stats.Hits++
	c.directory.Visit(block)
	storeWord(c.dataStore[block.SetID], c.offset(addr), value)

	return AccessResult{Hit: true}, nil
}

// Reset invalidates every line. Line data is left as is; it is never read
// without a valid tag.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}

// Line returns a snapshot of the line at index.
func (c *Cache) Line(index int) LineSnapshot {
	block := c.directory.GetSets()[index].Blocks[0]

	data := make([]byte, c.config.BlockSize)
	copy(data, c.dataStore[index])

	return LineSnapshot{
		Index: index,
		Valid: block.IsValid,
		Tag:   uint32(block.Tag) >> (c.offsetBits + c.indexBits),
		Data:  data,
	}
}

// Lines returns snapshots of every line in index order.
func (c *Cache) Lines() []LineSnapshot {
	lines := make([]LineSnapshot, c.config.NumLines())
	for i := range lines {
		lines[i] = c.Line(i)
	}
	return lines
}

func extractWord(data []byte, offset uint32) uint32 {
	var result uint32
	for i := uint32(0); i < WordSize; i++ {
		result |= uint32(data[offset+i]) << (i * 8)
	}
	return result
}

func storeWord(data []byte, offset uint32, value uint32) {
	for i := uint32(0); i < WordSize; i++ {
		data[offset+i] = byte(value >> (i * 8))
	}
}
