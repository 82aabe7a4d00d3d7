package cache

import (
	"github.com/dgraph-io/ristretto/v2"

	"blocktree/internal/storage"
)

// Ristretto is a buffer cache with an admission policy, suited to
// read-heavy index workloads where a plain LRU thrashes. Writes go
// straight through to the device; the cached copy is only ever a
// read accelerator.
type Ristretto struct {
	accounting
	blocks *ristretto.Cache[uint64, []byte]
}

// NewRistretto creates a buffer cache admitting up to maxBlocks block
// images over dev.
func NewRistretto(dev storage.Device, maxBlocks int64) (*Ristretto, error) {
	blocks, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
		NumCounters: maxBlocks * 10,
		MaxCost:     maxBlocks,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{
		accounting: newAccounting(dev),
		blocks:     blocks,
	}, nil
}

func (c *Ristretto) ReadBlock(n uint64, buf []byte) error {
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
	c.blocks.Set(n, img, 1)
	return nil
}

func (c *Ristretto) WriteBlock(n uint64, buf []byte) error {
	c.stats.Writes++
	if err := c.dev.WriteBlock(n, buf); err != nil {
		return err
	}
	// Drop any stale copy before offering the new image; admission may
	// decline the Set, and a miss then falls back to the device.
	c.blocks.Del(n)
	img := make([]byte, len(buf))
	copy(img, buf)
	c.blocks.Set(n, img, 1)
	return nil
}

func (c *Ristretto) Sync() error { return c.dev.Sync() }

func (c *Ristretto) Close() error {
	c.blocks.Close()
	return c.dev.Close()
}
