//go:build linux || darwin

package storage

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MMap is a block device over a memory-mapped file. Block reads are
// plain copies out of the mapping; Sync issues an msync.
type MMap struct {
	geometry
	f      *os.File
	data   []byte
	closed bool
}

// NewMMap opens (or creates) path, sizes it, and maps it read-write.
func NewMMap(path string, blockSize uint32, numBlocks uint64) (*MMap, error) {
	if err := validGeometry(blockSize, numBlocks); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	size := int64(blockSize) * int64(numBlocks)
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() < size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("size device: %w", err)
		}
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap device: %w", err)
	}
	return &MMap{
		geometry: geometry{blockSize: blockSize, numBlocks: numBlocks},
		f:        f,
		data:     data,
	}, nil
}

func (d *MMap) ReadBlock(n uint64, buf []byte) error {
	if d.closed {
		return ErrClosed
	}
	if err := d.check(n, buf); err != nil {
		return err
	}
	off := int64(n) * int64(d.blockSize)
	copy(buf, d.data[off:off+int64(d.blockSize)])
	return nil
}

func (d *MMap) WriteBlock(n uint64, buf []byte) error {
	if d.closed {
		return ErrClosed
	}
	if err := d.check(n, buf); err != nil {
		return err
	}
	off := int64(n) * int64(d.blockSize)
	copy(d.data[off:off+int64(d.blockSize)], buf)
	return nil
}

func (d *MMap) Sync() error {
	if d.closed {
		return ErrClosed
	}
	return unix.Msync(d.data, unix.MS_SYNC)
}

func (d *MMap) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := unix.Munmap(d.data); err != nil {
		d.f.Close()
		return err
	}
	d.data = nil
	return d.f.Close()
}
