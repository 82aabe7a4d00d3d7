package storage

// Mem is an in-memory block device, used by tests and throwaway trees.
type Mem struct {
	geometry
	data   []byte
	closed bool
}

func NewMem(blockSize uint32, numBlocks uint64) (*Mem, error) {
	if err := validGeometry(blockSize, numBlocks); err != nil {
		return nil, err
	}
	return &Mem{
		geometry: geometry{blockSize: blockSize, numBlocks: numBlocks},
		data:     make([]byte, int64(blockSize)*int64(numBlocks)),
	}, nil
}

func (d *Mem) ReadBlock(n uint64, buf []byte) error {
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

func (d *Mem) WriteBlock(n uint64, buf []byte) error {
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

func (d *Mem) Sync() error {
	if d.closed {
		return ErrClosed
	}
	return nil
}

func (d *Mem) Close() error {
	d.closed = true
	return nil
}
