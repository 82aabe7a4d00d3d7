package cache

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"

	"blocktree/internal/storage"
)

// LRU is the default buffer cache: a write-through LRU of block
// images keyed by block number.
type LRU struct {
	accounting
	blocks *freelru.LRU[uint64, []byte]
}

func hashBlockNum(n uint64) uint32 {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], n)
	return uint32(xxhash.Sum64(b[:]))
}

// NewLRU creates a buffer cache holding up to capacity block images
// over dev.
func NewLRU(dev storage.Device, capacity uint32) (*LRU, error) {
	blocks, err := freelru.New[uint64, []byte](capacity, hashBlockNum)
	if err != nil {
		return nil, err
	}
	return &LRU{
		accounting: newAccounting(dev),
		blocks:     blocks,
	}, nil
}

func (c *LRU) ReadBlock(n uint64, buf []byte) error {
	c.stats.Reads++
	if img, ok := c.blocks.Get(n); ok {
		c.stats.Hits++
		copy(buf, img)
		return nil
	}
	c.stats.Misses++
	if err := c.dev.ReadBlock(n, buf); err != nil {
		return err
	}
	img := make([]byte, len(buf))
	copy(img, buf)
	c.blocks.Add(n, img)
	return nil
}

func (c *LRU) WriteBlock(n uint64, buf []byte) error {
	c.stats.Writes++
	if err := c.dev.WriteBlock(n, buf); err != nil {
		return err
	}
	img := make([]byte, len(buf))
	copy(img, buf)
	c.blocks.Add(n, img)
	return nil
}

// Sync flushes the underlying device. The cache itself holds no dirty
// state.
func (c *LRU) Sync() error { return c.dev.Sync() }

// Close releases the cache and closes the device.
func (c *LRU) Close() error {
	c.blocks.Purge()
	return c.dev.Close()
}
