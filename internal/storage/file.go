package storage

import (
	"fmt"
	"os"
)

// File is a block device over a regular file using positional I/O.
type File struct {
	geometry
	f      *os.File
	closed bool
}

// NewFile opens (or creates) path and sizes it to hold numBlocks
// blocks of blockSize bytes.
func NewFile(path string, blockSize uint32, numBlocks uint64) (*File, error) {
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
	return &File{
		geometry: geometry{blockSize: blockSize, numBlocks: numBlocks},
		f:        f,
	}, nil
}

func (d *File) ReadBlock(n uint64, buf []byte) error {
	if d.closed {
		return ErrClosed
	}
	if err := d.check(n, buf); err != nil {
		return err
	}
	_, err := d.f.ReadAt(buf, int64(n)*int64(d.blockSize))
	return err
}

func (d *File) WriteBlock(n uint64, buf []byte) error {
	if d.closed {
		return ErrClosed
	}
	if err := d.check(n, buf); err != nil {
		return err
	}
	_, err := d.f.WriteAt(buf, int64(n)*int64(d.blockSize))
	return err
}

func (d *File) Sync() error {
	if d.closed {
		return ErrClosed
	}
	return d.f.Sync()
}

func (d *File) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.f.Close()
}
