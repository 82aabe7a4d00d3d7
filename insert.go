package blocktree

import (
	"bytes"
	"errors"

	"blocktree/internal/base"
)

// The insert path splits on full after the descent, not on the way
// down: the recursion adds the key at the leaf, then each level of the
// unwind splits the child it descended into if that child came back
// full and takes the separator. Between completed operations every
// node therefore holds fewer keys than its capacity, which is what
// lets addKeyPtrVal assume a free slot.

// nodeFull reports whether the node at block num has reached its
// capacity.
func (t *Tree) nodeFull(num uint64) (bool, error) {
	var b base.Node
	if err := b.Unserialize(t.cache, num); err != nil {
		return false, err
	}
	h := b.Header()
	switch h.NodeType {
	case base.TypeRoot, base.TypeInterior:
		return h.NumKeys >= b.MaxInterior(), nil
	case base.TypeLeaf:
		return h.NumKeys >= b.MaxLeaf(), nil
	default:
		return false, ErrInsane
	}
}

// splitNode divides the full node at block num into two siblings and
// returns the new right sibling's block and the separator key.
//
// Leaves keep the separator in the left half (copy-up); interior
// nodes promote it, so it leaves both halves. The right sibling
// inherits the left's header, including its type.
func (t *Tree) splitNode(num uint64) (uint64, []byte, error) {
	var left base.Node
	if err := left.Unserialize(t.cache, num); err != nil {
		return 0, nil, err
	}
	right := left.Clone()

	newNum, err := t.allocateNode()
	if err != nil {
		return 0, nil, err
	}

	lh, rh := left.Header(), right.Header()
	var splitKey []byte
	if lh.NodeType == base.TypeLeaf {
		leftKeep := (lh.NumKeys + 2) / 2
		rightTake := lh.NumKeys - leftKeep
		if splitKey, err = left.GetKey(leftKeep - 1); err != nil {
			return 0, nil, err
		}
		unit := int(lh.KeySize + lh.ValueSize)
		copy(right.ResolveKeyVal(0), left.ResolveKeyVal(leftKeep)[:int(rightTake)*unit])
		lh.NumKeys, rh.NumKeys = leftKeep, rightTake
	} else {
		leftKeep := lh.NumKeys / 2
		rightTake := lh.NumKeys - leftKeep - 1
		if splitKey, err = left.GetKey(leftKeep); err != nil {
			return 0, nil, err
		}
		// rightTake key/pointer units plus the trailing pointer.
		span := int(rightTake)*int(lh.KeySize+base.PtrSize) + base.PtrSize
		copy(right.ResolvePtr(0), left.ResolvePtr(leftKeep + 1)[:span])
		lh.NumKeys, rh.NumKeys = leftKeep, rightTake
	}

	if err := left.Serialize(t.cache, num); err != nil {
		return 0, nil, err
	}
	if err := right.Serialize(t.cache, newNum); err != nil {
		return 0, nil, err
	}
	return newNum, splitKey, nil
}

// addKeyPtrVal inserts key into the node at block num, keeping the
// keys sorted. In a leaf the value goes into the matching slot; in an
// interior node child becomes the pointer right of the new key.
func (t *Tree) addKeyPtrVal(num uint64, key, value []byte, child uint64) error {
	var b base.Node
	if err := b.Unserialize(t.cache, num); err != nil {
		return err
	}
	h := b.Header()
	leaf := h.NodeType == base.TypeLeaf

	capacity := b.MaxInterior()
	if leaf {
		capacity = b.MaxLeaf()
	}
	if h.NumKeys >= capacity {
		// Only reachable after an earlier insert aborted on a full
		// device before the unwind could split this node.
		return ErrNoSpace
	}

	numkeys := h.NumKeys
	h.NumKeys++
	if numkeys == 0 {
		if err := b.SetKey(0, key); err != nil {
			return err
		}
		if leaf {
			if err := b.SetVal(0, value); err != nil {
				return err
			}
		} else if err := b.SetPtr(1, child); err != nil {
			return err
		}
		return b.Serialize(t.cache, num)
	}

	placed := false
	for i := uint64(0); i < numkeys; i++ {
		test, err := b.GetKey(i)
		if err != nil {
			return err
		}
		if bytes.Compare(key, test) >= 0 {
			continue
		}
		// First slot with a larger key: shift the tail one slot right
		// and drop the new entry at i.
		if leaf {
			unit := int(h.KeySize + h.ValueSize)
			n := int(numkeys-i) * unit
			copy(b.ResolveKeyVal(i + 1)[:n], b.ResolveKeyVal(i)[:n])
			if err := b.SetKey(i, key); err != nil {
				return err
			}
			if err := b.SetVal(i, value); err != nil {
				return err
			}
		} else {
			unit := int(h.KeySize) + base.PtrSize
			n := int(numkeys-i) * unit
			copy(b.ResolveKey(i + 1)[:n], b.ResolveKey(i)[:n])
			if err := b.SetKey(i, key); err != nil {
				return err
			}
			if err := b.SetPtr(i+1, child); err != nil {
				return err
			}
		}
		placed = true
		break
	}
	if !placed {
		if err := b.SetKey(numkeys, key); err != nil {
			return err
		}
		if leaf {
			if err := b.SetVal(numkeys, value); err != nil {
				return err
			}
		} else if err := b.SetPtr(numkeys+1, child); err != nil {
			return err
		}
	}
	return b.Serialize(t.cache, num)
}

// insertInternal descends to the leaf for key, inserts there, and on
// the way back up splits any child that came back full, adding the
// separator and the new sibling to the current node.
func (t *Tree) insertInternal(num uint64, key, value []byte) error {
	var b base.Node
	if err := b.Unserialize(t.cache, num); err != nil {
		return err
	}
	switch b.Header().NodeType {
	case base.TypeRoot, base.TypeInterior:
		ptr, ok, err := childFor(&b, key)
		if err != nil {
			return err
		}
		if !ok {
			// Interior nodes always carry at least one key once the
			// root has been seeded.
			return ErrInsane
		}
		if err := t.insertInternal(ptr, key, value); err != nil {
			return err
		}
		full, err := t.nodeFull(ptr)
		if err != nil {
			return err
		}
		if !full {
			return nil
		}
		newNode, splitKey, err := t.splitNode(ptr)
		if err != nil {
			return err
		}
		return t.addKeyPtrVal(num, splitKey, nil, newNode)
	case base.TypeLeaf:
		return t.addKeyPtrVal(num, key, value, 0)
	default:
		return ErrInsane
	}
}

// seedRoot turns the empty just-created root into a one-key interior
// over two empty leaves, with key as the separator. The incoming
// insert then descends normally.
func (t *Tree) seedRoot(root *base.Node, key []byte) error {
	sh := t.super.Header()

	// Both leaves come off the free-list together or not at all;
	// allocating only one would strand it outside the tree with no way
	// to ever free it again.
	ok, err := t.hasFreeBlocks(2)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoSpace
	}

	left, err := t.allocateNode()
	if err != nil {
		return err
	}
	right, err := t.allocateNode()
	if err != nil {
		return err
	}

	leaf := base.NewNode(base.TypeLeaf, sh.KeySize, sh.ValueSize, sh.BlockSize)
	leaf.Header().RootNode = sh.RootNode
	if err := leaf.Serialize(t.cache, left); err != nil {
		return err
	}
	if err := leaf.Serialize(t.cache, right); err != nil {
		return err
	}

	rh := root.Header()
	rh.NumKeys = 1
	if err := root.SetPtr(0, left); err != nil {
		return err
	}
	if err := root.SetKey(0, key); err != nil {
		return err
	}
	if err := root.SetPtr(1, right); err != nil {
		return err
	}
	return root.Serialize(t.cache, sh.RootNode)
}

// growRoot splits a full root: both halves are demoted to interior
// nodes and a freshly allocated root takes the separator and the two
// pointers. The superblock is rewritten last with the new root.
func (t *Tree) growRoot() error {
	h := t.super.Header()
	oldRoot := h.RootNode

	// The split sibling and the new top block must both be available
	// before the old root is touched: once the split is persisted,
	// only the new top can make the sibling reachable. Reserve both up
	// front so a full device fails here with nothing mutated.
	ok, err := t.hasFreeBlocks(2)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoSpace
	}

	newNode, splitKey, err := t.splitNode(oldRoot)
	if err != nil {
		return err
	}
	for _, num := range []uint64{oldRoot, newNode} {
		var b base.Node
		if err := b.Unserialize(t.cache, num); err != nil {
			return err
		}
		b.Header().NodeType = base.TypeInterior
		if err := b.Serialize(t.cache, num); err != nil {
			return err
		}
	}

	top, err := t.allocateNode()
	if err != nil {
		return err
	}
	root := base.NewNode(base.TypeRoot, h.KeySize, h.ValueSize, h.BlockSize)
	rh := root.Header()
	rh.RootNode = top
	rh.NumKeys = 1
	if err := root.SetKey(0, splitKey); err != nil {
		return err
	}
	if err := root.SetPtr(0, oldRoot); err != nil {
		return err
	}
	if err := root.SetPtr(1, newNode); err != nil {
		return err
	}
	if err := root.Serialize(t.cache, top); err != nil {
		return err
	}

	h.RootNode = top
	t.log.Info("root grew", "oldroot", oldRoot, "sibling", newNode, "newroot", top)
	return t.writeSuper()
}

// Insert stores a new key/value pair. Keys are unique: inserting an
// existing key fails with ErrConflict and leaves the stored value
// untouched.
func (t *Tree) Insert(key, value []byte) error {
	if err := t.checkKey(key); err != nil {
		return err
	}
	if err := t.checkVal(value); err != nil {
		return err
	}

	switch _, err := t.Lookup(key); {
	case err == nil:
		return ErrConflict
	case !errors.Is(err, ErrNonExistent):
		return err
	}

	h := t.super.Header()
	var root base.Node
	if err := root.Unserialize(t.cache, h.RootNode); err != nil {
		return err
	}
	if root.Header().NumKeys == 0 {
		if err := t.seedRoot(&root, key); err != nil {
			return err
		}
	}

	if err := t.insertInternal(h.RootNode, key, value); err != nil {
		return err
	}
	full, err := t.nodeFull(h.RootNode)
	if err != nil {
		return err
	}
	if full {
		return t.growRoot()
	}
	return nil
}
