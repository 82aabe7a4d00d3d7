package blocktree

import (
	"fmt"
	"io"

	"blocktree/internal/base"
)

// DisplayType selects the Display output format.
type DisplayType int

const (
	// DisplayDepth prints one line per node, depth first.
	DisplayDepth DisplayType = iota
	// DisplayDepthDot emits a graphviz digraph of the tree.
	DisplayDepthDot
	// DisplaySortedKeyval prints every (key,value) pair in key order.
	DisplaySortedKeyval
)

// printNode writes one node in the requested format. Keys and values
// are written as raw bytes; callers indexing binary data get what they
// stored.
func printNode(w io.Writer, num uint64, b *base.Node, dt DisplayType) error {
	h := b.Header()

	switch dt {
	case DisplayDepthDot:
		if _, err := fmt.Fprintf(w, "%d [ label=\"%d: ", num, num); err != nil {
			return err
		}
	case DisplayDepth:
		if _, err := fmt.Fprintf(w, "%d: ", num); err != nil {
			return err
		}
	}

	switch h.NodeType {
	case base.TypeRoot, base.TypeInterior:
		if dt == DisplaySortedKeyval {
			return nil
		}
		if dt == DisplayDepth {
			if _, err := io.WriteString(w, "Interior: "); err != nil {
				return err
			}
		}
		for i := uint64(0); i <= h.NumKeys; i++ {
			ptr, err := b.GetPtr(i)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "*%d ", ptr); err != nil {
				return err
			}
			if i == h.NumKeys {
				break
			}
			key, err := b.GetKey(i)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s ", key); err != nil {
				return err
			}
		}
	case base.TypeLeaf:
		if dt == DisplayDepth {
			if _, err := io.WriteString(w, "Leaf: "); err != nil {
				return err
			}
		}
		for i := uint64(0); i < h.NumKeys; i++ {
			key, err := b.GetKey(i)
			if err != nil {
				return err
			}
			val, err := b.GetVal(i)
			if err != nil {
				return err
			}
			var werr error
			switch dt {
			case DisplaySortedKeyval:
				_, werr = fmt.Fprintf(w, "(%s,%s)\n", key, val)
			default:
				_, werr = fmt.Fprintf(w, "%s %s ", key, val)
			}
			if werr != nil {
				return werr
			}
		}
	default:
		if _, err := fmt.Fprintf(w, "unsupported node type %s", h.NodeType); err != nil {
			return err
		}
	}

	if dt == DisplayDepthDot {
		if _, err := io.WriteString(w, "\" ]"); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) displayInternal(num uint64, w io.Writer, dt DisplayType) error {
	var b base.Node
	if err := b.Unserialize(t.cache, num); err != nil {
		return err
	}

	if err := printNode(w, num, &b, dt); err != nil {
		return err
	}
	if dt == DisplayDepthDot {
		if _, err := io.WriteString(w, ";"); err != nil {
			return err
		}
	}
	if dt != DisplaySortedKeyval {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}

	h := b.Header()
	switch h.NodeType {
	case base.TypeRoot, base.TypeInterior:
		if h.NumKeys == 0 {
			return nil
		}
		for i := uint64(0); i <= h.NumKeys; i++ {
			ptr, err := b.GetPtr(i)
			if err != nil {
				return err
			}
			if dt == DisplayDepthDot {
				if _, err := fmt.Fprintf(w, "%d -> %d;\n", num, ptr); err != nil {
					return err
				}
			}
			if err := t.displayInternal(ptr, w, dt); err != nil {
				return err
			}
		}
		return nil
	case base.TypeLeaf:
		return nil
	default:
		return ErrInsane
	}
}

// Display writes the tree to w in the chosen format.
func (t *Tree) Display(w io.Writer, dt DisplayType) error {
	if dt == DisplayDepthDot {
		if _, err := io.WriteString(w, "digraph tree {\n"); err != nil {
			return err
		}
	}
	if err := t.displayInternal(t.super.Header().RootNode, w, dt); err != nil {
		return err
	}
	if dt == DisplayDepthDot {
		if _, err := io.WriteString(w, "}\n"); err != nil {
			return err
		}
	}
	return nil
}
