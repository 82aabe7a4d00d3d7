package blocktree

import (
	"fmt"

	"blocktree/internal/base"
)

// The free-list is intrusive: superblock.FreeList holds the head block
// number, each unallocated block's FreeList header field holds the
// next, and 0 terminates. Free blocks carry no other state, so the
// allocator costs zero metadata blocks.

// allocateNode pops the free-list head. The returned block's content
// is undefined until the caller rewrites and serializes it. The
// superblock is written before the block number is handed out, so the
// on-device free-list never references a block in use.
func (t *Tree) allocateNode() (uint64, error) {
	h := t.super.Header()
	n := h.FreeList
	if n == 0 {
		t.log.Warn("allocation failed, free-list exhausted", "blocks", t.cache.GetNumBlocks())
		return 0, ErrNoSpace
	}

	var node base.Node
	if err := node.Unserialize(t.cache, n); err != nil {
		return 0, err
	}
	nh := node.Header()
	if nh.NodeType != base.TypeUnallocated {
		panic(fmt.Sprintf("blocktree: free-list references %s block %d", nh.NodeType, n))
	}

	h.FreeList = nh.FreeList
	if err := t.writeSuper(); err != nil {
		return 0, err
	}
	t.cache.NotifyAllocateBlock(n)
	return n, nil
}

// hasFreeBlocks reports whether at least want blocks remain on the
// free-list, walking at most want links. Multi-block operations
// reserve their blocks up front with this check so a mid-operation
// ErrNoSpace cannot strand a half-linked allocation.
func (t *Tree) hasFreeBlocks(want uint64) (bool, error) {
	n := t.super.Header().FreeList
	for count := uint64(0); count < want; count++ {
		if n == 0 {
			return false, nil
		}
		var node base.Node
		if err := node.Unserialize(t.cache, n); err != nil {
			return false, err
		}
		n = node.Header().FreeList
	}
	return true, nil
}

// deallocateNode retags block n as unallocated and pushes it onto the
// free-list head.
func (t *Tree) deallocateNode(n uint64) error {
	var node base.Node
	if err := node.Unserialize(t.cache, n); err != nil {
		return err
	}
	nh := node.Header()
	if nh.NodeType == base.TypeUnallocated {
		panic(fmt.Sprintf("blocktree: double deallocation of block %d", n))
	}

	h := t.super.Header()
	nh.NodeType = base.TypeUnallocated
	nh.FreeList = h.FreeList
	if err := node.Serialize(t.cache, n); err != nil {
		return err
	}
	h.FreeList = n
	if err := t.writeSuper(); err != nil {
		return err
	}
	t.cache.NotifyDeallocateBlock(n)
	return nil
}
