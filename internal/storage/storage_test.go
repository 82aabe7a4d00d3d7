package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(n int, b byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

// exercise runs the shared device contract against any implementation.
func exercise(t *testing.T, dev Device) {
	t.Helper()

	assert.Equal(t, uint32(64), dev.BlockSize())
	assert.Equal(t, uint64(8), dev.NumBlocks())

	// Fresh blocks read back zeroed.
	buf := make([]byte, 64)
	require.NoError(t, dev.ReadBlock(0, buf))
	assert.Equal(t, fill(64, 0), buf)

	// Write/read round-trip per block.
	require.NoError(t, dev.WriteBlock(3, fill(64, 0xab)))
	require.NoError(t, dev.WriteBlock(7, fill(64, 0xcd)))
	require.NoError(t, dev.ReadBlock(3, buf))
	assert.Equal(t, fill(64, 0xab), buf)
	require.NoError(t, dev.ReadBlock(7, buf))
	assert.Equal(t, fill(64, 0xcd), buf)

	// Neighbors are untouched.
	require.NoError(t, dev.ReadBlock(4, buf))
	assert.Equal(t, fill(64, 0), buf)

	// Bounds and buffer geometry are enforced.
	assert.ErrorIs(t, dev.ReadBlock(8, buf), ErrOutOfRange)
	assert.ErrorIs(t, dev.WriteBlock(8, buf), ErrOutOfRange)
	assert.ErrorIs(t, dev.ReadBlock(0, make([]byte, 63)), ErrBufferSize)
	assert.ErrorIs(t, dev.WriteBlock(0, make([]byte, 65)), ErrBufferSize)

	require.NoError(t, dev.Sync())
	require.NoError(t, dev.Close())
	assert.ErrorIs(t, dev.ReadBlock(0, buf), ErrClosed)
}

func TestMemDevice(t *testing.T) {
	t.Parallel()

	dev, err := NewMem(64, 8)
	require.NoError(t, err)
	exercise(t, dev)
}

func TestFileDevice(t *testing.T) {
	t.Parallel()

	dev, err := NewFile(filepath.Join(t.TempDir(), "dev.db"), 64, 8)
	require.NoError(t, err)
	exercise(t, dev)
}

func TestFileDevicePersistence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dev.db")
	dev, err := NewFile(path, 64, 8)
	require.NoError(t, err)
	require.NoError(t, dev.WriteBlock(5, fill(64, 0x42)))
	require.NoError(t, dev.Close())

	dev, err = NewFile(path, 64, 8)
	require.NoError(t, err)
	defer dev.Close()
	buf := make([]byte, 64)
	require.NoError(t, dev.ReadBlock(5, buf))
	assert.Equal(t, fill(64, 0x42), buf)
}

func TestBadGeometry(t *testing.T) {
	t.Parallel()

	_, err := NewMem(0, 8)
	assert.ErrorIs(t, err, ErrGeometry)
	_, err = NewMem(64, 0)
	assert.ErrorIs(t, err, ErrGeometry)
	_, err = NewFile(filepath.Join(t.TempDir(), "dev.db"), 0, 0)
	assert.ErrorIs(t, err, ErrGeometry)
}
