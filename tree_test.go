package blocktree

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocktree/cache"
	"blocktree/internal/base"
	"blocktree/internal/storage"
)

// setup creates a fresh tree over an in-memory device: 8-byte keys and
// values, 256-byte blocks.
func setup(t *testing.T, blocks uint64) (*Tree, *cache.LRU) {
	t.Helper()

	dev, err := storage.NewMem(256, blocks)
	require.NoError(t, err)
	bc, err := cache.NewLRU(dev, 16)
	require.NoError(t, err)
	tree := New(8, 8, bc)
	require.NoError(t, tree.Attach(0, true))
	return tree, bc
}

func testKey(i int) []byte { return []byte(fmt.Sprintf("key%05d", i)) }
func testVal(i int) []byte { return []byte(fmt.Sprintf("val%05d", i)) }

// freelistLen walks the on-device free-list chain from the superblock.
func freelistLen(t *testing.T, bc BufferCache) uint64 {
	t.Helper()

	var super base.Node
	require.NoError(t, super.Unserialize(bc, 0))
	var count uint64
	for n := super.Header().FreeList; n != 0; {
		var b base.Node
		require.NoError(t, b.Unserialize(bc, n))
		require.Equal(t, base.TypeUnallocated, b.Header().NodeType,
			"free-list references block %d of wrong type", n)
		count++
		n = b.Header().FreeList
	}
	return count
}

func TestSingleInsert(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t, 64)
	require.NoError(t, tree.Insert([]byte("aaaaaaaa"), []byte("00000000")))

	val, err := tree.Lookup([]byte("aaaaaaaa"))
	require.NoError(t, err)
	assert.Equal(t, []byte("00000000"), val)

	_, err = tree.Lookup([]byte("bbbbbbbb"))
	assert.ErrorIs(t, err, ErrNonExistent)
}

func TestDuplicateInsert(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t, 64)
	require.NoError(t, tree.Insert([]byte("aaaaaaaa"), []byte("00000000")))

	err := tree.Insert([]byte("aaaaaaaa"), []byte("99999999"))
	assert.ErrorIs(t, err, ErrConflict)

	// The stored value is untouched.
	val, err := tree.Lookup([]byte("aaaaaaaa"))
	require.NoError(t, err)
	assert.Equal(t, []byte("00000000"), val)
}

func TestUpdate(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t, 64)
	require.NoError(t, tree.Insert([]byte("aaaaaaaa"), []byte("00000000")))

	require.NoError(t, tree.Update([]byte("aaaaaaaa"), []byte("11111111")))
	val, err := tree.Lookup([]byte("aaaaaaaa"))
	require.NoError(t, err)
	assert.Equal(t, []byte("11111111"), val)

	// Update never inserts.
	err = tree.Update([]byte("zzzzzzzz"), []byte("xxxxxxxx"))
	assert.ErrorIs(t, err, ErrNonExistent)
	_, err = tree.Lookup([]byte("zzzzzzzz"))
	assert.ErrorIs(t, err, ErrNonExistent)
}

func TestEmptyTreeLookup(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t, 64)
	_, err := tree.Lookup([]byte("aaaaaaaa"))
	assert.ErrorIs(t, err, ErrNonExistent)
	require.NoError(t, tree.SanityCheck())
}

func TestDeleteUnimplemented(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t, 64)
	require.NoError(t, tree.Insert([]byte("aaaaaaaa"), []byte("00000000")))
	assert.ErrorIs(t, tree.Delete([]byte("aaaaaaaa")), ErrUnimplemented)

	// The key is still there.
	_, err := tree.Lookup([]byte("aaaaaaaa"))
	require.NoError(t, err)
}

func TestKeyValueWidths(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t, 64)
	assert.ErrorIs(t, tree.Insert([]byte("short"), []byte("00000000")), ErrKeySize)
	assert.ErrorIs(t, tree.Insert([]byte("aaaaaaaa"), []byte("long-value")), ErrValueSize)
	_, err := tree.Lookup([]byte("x"))
	assert.ErrorIs(t, err, ErrKeySize)
	assert.ErrorIs(t, tree.Update([]byte("aaaaaaaa"), []byte("v")), ErrValueSize)
	assert.ErrorIs(t, tree.Delete([]byte("v")), ErrKeySize)
}

func TestAttachValidation(t *testing.T) {
	t.Parallel()

	dev, err := storage.NewMem(256, 16)
	require.NoError(t, err)
	bc, err := cache.NewLRU(dev, 8)
	require.NoError(t, err)

	// Attaching an unformatted device fails the magic check.
	tree := New(8, 8, bc)
	assert.ErrorIs(t, tree.Attach(0, false), ErrBadMagic)

	// The superblock must live at block 0.
	assert.Panics(t, func() { _ = tree.Attach(1, true) })
}

func TestAttachChecksum(t *testing.T) {
	t.Parallel()

	dev, err := storage.NewMem(256, 16)
	require.NoError(t, err)
	bc, err := cache.NewLRU(dev, 8)
	require.NoError(t, err)

	tree := New(8, 8, bc)
	require.NoError(t, tree.Attach(0, true))
	require.NoError(t, tree.Detach())

	// Flip a header byte on the device behind the tree's back.
	buf := make([]byte, 256)
	require.NoError(t, dev.ReadBlock(0, buf))
	buf[8] ^= 0xff
	require.NoError(t, dev.WriteBlock(0, buf))

	// Remount through a cold cache so the corrupted block is read
	// from the device.
	cold, err := cache.NewLRU(dev, 8)
	require.NoError(t, err)
	fresh := New(8, 8, cold)
	assert.ErrorIs(t, fresh.Attach(0, false), ErrBadChecksum)
}

func TestPersistence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tree.db")
	dev, err := storage.NewFile(path, 256, 256)
	require.NoError(t, err)
	bc, err := cache.NewLRU(dev, 16)
	require.NoError(t, err)

	tree := New(8, 8, bc)
	require.NoError(t, tree.Attach(0, true))
	for i := 0; i < 100; i++ {
		require.NoError(t, tree.Insert(testKey(i), testVal(i)))
	}
	require.NoError(t, tree.Detach())
	require.NoError(t, dev.Close())

	// Remount through a cold cache and re-read everything.
	dev, err = storage.NewFile(path, 256, 256)
	require.NoError(t, err)
	defer dev.Close()
	bc, err = cache.NewLRU(dev, 16)
	require.NoError(t, err)

	reopened := New(8, 8, bc)
	require.NoError(t, reopened.Attach(0, false))
	for i := 0; i < 100; i++ {
		val, err := reopened.Lookup(testKey(i))
		require.NoError(t, err, "key %d", i)
		assert.Equal(t, testVal(i), val)
	}
	require.NoError(t, reopened.SanityCheck())
}

func TestFormatLayout(t *testing.T) {
	t.Parallel()

	tree, bc := setup(t, 64)

	h := tree.super.Header()
	assert.Equal(t, base.TypeSuperblock, h.NodeType)
	assert.Equal(t, uint64(1), h.RootNode)
	assert.Equal(t, uint64(2), h.FreeList)

	var root base.Node
	require.NoError(t, root.Unserialize(bc, 1))
	assert.Equal(t, base.TypeRoot, root.Header().NodeType)
	assert.Equal(t, uint64(0), root.Header().NumKeys)

	// Blocks 2..63 form the free chain, null-terminated.
	assert.Equal(t, uint64(62), freelistLen(t, bc))
	assert.Equal(t, uint64(2), bc.Stats().InUse)
}
