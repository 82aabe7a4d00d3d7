// Package storage provides fixed-geometry block devices backing the
// buffer cache: a plain file device, a memory-mapped device, and an
// in-memory device for tests.
package storage

import "errors"

var (
	ErrOutOfRange = errors.New("block number out of range")
	ErrBufferSize = errors.New("buffer does not match block size")
	ErrClosed     = errors.New("device is closed")
	ErrGeometry   = errors.New("invalid device geometry")
)

// Device is a fixed-size array of fixed-size blocks. Geometry is set
// at creation and never changes.
type Device interface {
	BlockSize() uint32
	NumBlocks() uint64

	ReadBlock(n uint64, buf []byte) error
	WriteBlock(n uint64, buf []byte) error

	Sync() error
	Close() error
}

// geometry carries the shared bounds checking for all device kinds.
type geometry struct {
	blockSize uint32
	numBlocks uint64
}

func (g geometry) BlockSize() uint32 { return g.blockSize }
func (g geometry) NumBlocks() uint64 { return g.numBlocks }

func (g geometry) check(n uint64, buf []byte) error {
	if n >= g.numBlocks {
		return ErrOutOfRange
	}
	if len(buf) != int(g.blockSize) {
		return ErrBufferSize
	}
	return nil
}

func validGeometry(blockSize uint32, numBlocks uint64) error {
	if blockSize == 0 || numBlocks == 0 {
		return ErrGeometry
	}
	return nil
}
