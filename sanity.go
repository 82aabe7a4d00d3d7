package blocktree

import (
	"bytes"

	"blocktree/internal/base"
)

// SanityCheck walks the whole tree and verifies its structural
// invariants: valid node types, key counts within capacity, strictly
// increasing keys in every node, and every key inside the bounds
// implied by the separators above it. Left subtrees hold keys at or
// below their separator (leaf splits copy the separator up, so the
// bound is inclusive); right subtrees hold keys strictly above it.
func (t *Tree) SanityCheck() error {
	return t.sanityNode(t.super.Header().RootNode, nil, nil)
}

// sanityNode checks the subtree at block num against the exclusive
// lower bound and inclusive upper bound; nil means unbounded.
func (t *Tree) sanityNode(num uint64, lower, upper []byte) error {
	var b base.Node
	if err := b.Unserialize(t.cache, num); err != nil {
		return err
	}
	h := b.Header()

	var capacity uint64
	switch h.NodeType {
	case base.TypeRoot, base.TypeInterior:
		capacity = b.MaxInterior()
	case base.TypeLeaf:
		capacity = b.MaxLeaf()
	default:
		return ErrInsane
	}
	if h.NumKeys > capacity {
		return ErrInsane
	}

	var prev []byte
	for i := uint64(0); i < h.NumKeys; i++ {
		key, err := b.GetKey(i)
		if err != nil {
			return err
		}
		if prev != nil && bytes.Compare(key, prev) <= 0 {
			return ErrInsane
		}
		if lower != nil && bytes.Compare(key, lower) <= 0 {
			return ErrInsane
		}
		if upper != nil && bytes.Compare(key, upper) > 0 {
			return ErrInsane
		}
		prev = key
	}

	if h.NodeType == base.TypeLeaf || h.NumKeys == 0 {
		// A zero-key root is the freshly created empty tree.
		return nil
	}
	for i := uint64(0); i <= h.NumKeys; i++ {
		ptr, err := b.GetPtr(i)
		if err != nil {
			return err
		}
		childLower, childUpper := lower, upper
		if i > 0 {
			if childLower, err = b.GetKey(i - 1); err != nil {
				return err
			}
		}
		if i < h.NumKeys {
			if childUpper, err = b.GetKey(i); err != nil {
				return err
			}
		}
		if err := t.sanityNode(ptr, childLower, childUpper); err != nil {
			return err
		}
	}
	return nil
}
