// Package blocktree implements a disk-backed B-tree index: a
// persistent ordered map from fixed-size binary keys to fixed-size
// binary values, stored in fixed-size blocks behind a buffer cache.
//
// The tree owns the on-block node layout, the split-on-full insert
// path, and a free-block allocator threaded through the headers of
// unallocated blocks. Access is single-threaded: callers wanting
// concurrency wrap the whole tree in a mutex.
package blocktree

import (
	"bytes"
	"fmt"

	"blocktree/internal/base"
)

// BufferCache is the block interface the tree consumes. The cache
// package provides implementations over file, mmap, and in-memory
// devices.
type BufferCache = base.BlockCache

// Tree is a disk-backed B-tree index. The zero value is not usable;
// construct with New and mount with Attach before use.
//
// While attached, the Tree holds the in-memory copy of the superblock
// and must be the only writer of block 0.
type Tree struct {
	cache      BufferCache
	superIndex uint64
	super      *base.Node
	log        Logger
	opts       Options
}

// New prepares an index over cache for keys of keysize bytes and
// values of valuesize bytes. The sizes must match the on-device tree
// when attaching without create.
func New(keysize, valuesize uint32, cache BufferCache, opts ...Option) *Tree {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Tree{
		cache: cache,
		super: base.NewNode(base.TypeSuperblock, keysize, valuesize, cache.GetBlockSize()),
		log:   o.logger,
		opts:  o,
	}
}

// Attach mounts the tree whose superblock lives at initblock (which
// must be 0). With create set, the device is rewritten first: the
// superblock at block 0, an empty root at block 1, and all remaining
// blocks chained into the free-list.
func (t *Tree) Attach(initblock uint64, create bool) error {
	if initblock != 0 {
		panic("blocktree: superblock must live at block 0")
	}
	t.superIndex = initblock

	if create {
		if err := t.format(); err != nil {
			return err
		}
	}

	if err := t.super.Unserialize(t.cache, t.superIndex); err != nil {
		return err
	}
	if err := base.ValidateMeta(t.super); err != nil {
		return err
	}
	h := t.super.Header()
	if h.NodeType != base.TypeSuperblock {
		return ErrInsane
	}
	t.log.Info("tree attached",
		"rootnode", h.RootNode,
		"freelist", h.FreeList,
		"keysize", h.KeySize,
		"valuesize", h.ValueSize,
		"blocksize", h.BlockSize,
	)
	return nil
}

// format rewrites the whole device: superblock, empty root, free-list
// chain over blocks 2..N-1.
func (t *Tree) format() error {
	bs := t.cache.GetBlockSize()
	nb := t.cache.GetNumBlocks()
	sh := t.super.Header()
	if nb < 2 {
		return fmt.Errorf("device of %d blocks cannot hold a tree: %w", nb, ErrNoSpace)
	}

	rootAt := t.superIndex + 1
	freeHead := uint64(0)
	if nb > 2 {
		freeHead = t.superIndex + 2
	}

	super := base.NewNode(base.TypeSuperblock, sh.KeySize, sh.ValueSize, bs)
	h := super.Header()
	h.RootNode = rootAt
	h.FreeList = freeHead
	t.cache.NotifyAllocateBlock(t.superIndex)
	base.StampMeta(super)
	if err := super.Serialize(t.cache, t.superIndex); err != nil {
		return err
	}

	root := base.NewNode(base.TypeRoot, sh.KeySize, sh.ValueSize, bs)
	root.Header().RootNode = rootAt
	t.cache.NotifyAllocateBlock(rootAt)
	if err := root.Serialize(t.cache, rootAt); err != nil {
		return err
	}

	for i := t.superIndex + 2; i < nb; i++ {
		free := base.NewNode(base.TypeUnallocated, sh.KeySize, sh.ValueSize, bs)
		fh := free.Header()
		fh.RootNode = rootAt
		if i+1 < nb {
			fh.FreeList = i + 1
		}
		if err := free.Serialize(t.cache, i); err != nil {
			return err
		}
	}
	t.log.Info("device formatted", "blocks", nb, "blocksize", bs)
	return nil
}

// Detach flushes the superblock. The tree must not be used afterward
// until attached again.
func (t *Tree) Detach() error {
	if err := t.writeSuper(); err != nil {
		return err
	}
	h := t.super.Header()
	t.log.Info("tree detached", "rootnode", h.RootNode, "freelist", h.FreeList)
	return nil
}

// writeSuper restamps the superblock trailer and writes block 0.
// Called whenever the root pointer or the free-list head changes.
func (t *Tree) writeSuper() error {
	base.StampMeta(t.super)
	return t.super.Serialize(t.cache, t.superIndex)
}

func (t *Tree) checkKey(key []byte) error {
	if len(key) != int(t.super.Header().KeySize) {
		return ErrKeySize
	}
	return nil
}

func (t *Tree) checkVal(val []byte) error {
	if len(val) != int(t.super.Header().ValueSize) {
		return ErrValueSize
	}
	return nil
}

// childFor routes key through an interior or root node: the child left
// of the first key that is >= key, else the last pointer. Equal keys
// route left, matching the <= invariant on left subtrees. ok is false
// when the node holds no keys at all.
func childFor(b *base.Node, key []byte) (ptr uint64, ok bool, err error) {
	h := b.Header()
	for i := uint64(0); i < h.NumKeys; i++ {
		test, err := b.GetKey(i)
		if err != nil {
			return 0, false, err
		}
		if bytes.Compare(key, test) <= 0 {
			ptr, err := b.GetPtr(i)
			return ptr, true, err
		}
	}
	if h.NumKeys > 0 {
		ptr, err := b.GetPtr(h.NumKeys)
		return ptr, true, err
	}
	return 0, false, nil
}

// lookupOrUpdate descends from node. With value nil it returns the
// stored value for key; otherwise it overwrites the stored value and
// persists the leaf.
func (t *Tree) lookupOrUpdate(node uint64, key, value []byte) ([]byte, error) {
	var b base.Node
	if err := b.Unserialize(t.cache, node); err != nil {
		return nil, err
	}
	h := b.Header()
	switch h.NodeType {
	case base.TypeRoot, base.TypeInterior:
		ptr, ok, err := childFor(&b, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Empty tree right after creation.
			return nil, ErrNonExistent
		}
		return t.lookupOrUpdate(ptr, key, value)
	case base.TypeLeaf:
		for i := uint64(0); i < h.NumKeys; i++ {
			test, err := b.GetKey(i)
			if err != nil {
				return nil, err
			}
			if bytes.Equal(test, key) {
				if value == nil {
					return b.GetVal(i)
				}
				if err := b.SetVal(i, value); err != nil {
					return nil, err
				}
				return nil, b.Serialize(t.cache, node)
			}
		}
		return nil, ErrNonExistent
	default:
		// Descent can only land on root, interior, or leaf blocks.
		return nil, ErrInsane
	}
}

// Lookup returns the value stored under key.
func (t *Tree) Lookup(key []byte) ([]byte, error) {
	if err := t.checkKey(key); err != nil {
		return nil, err
	}
	return t.lookupOrUpdate(t.super.Header().RootNode, key, nil)
}

// Update overwrites the value stored under an existing key. Inserting
// missing keys is Insert's job; Update returns ErrNonExistent.
func (t *Tree) Update(key, value []byte) error {
	if err := t.checkKey(key); err != nil {
		return err
	}
	if err := t.checkVal(value); err != nil {
		return err
	}
	_, err := t.lookupOrUpdate(t.super.Header().RootNode, key, value)
	return err
}

// Delete is not implemented. Underflow handling (merge, redistribute,
// root shrink) is absent, so removal would break the fanout
// invariants.
func (t *Tree) Delete(key []byte) error {
	if err := t.checkKey(key); err != nil {
		return err
	}
	return ErrUnimplemented
}
