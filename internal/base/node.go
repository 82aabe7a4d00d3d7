package base

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

const (
	// NodeHeaderSize is the fixed header at the start of every block.
	// Layout: [NodeType: 4][KeySize: 4][ValueSize: 4][BlockSize: 4]
	//         [RootNode: 8][FreeList: 8][NumKeys: 8]
	NodeHeaderSize = 40

	// PtrSize is the on-block width of a child block number.
	PtrSize = 8
)

// NodeType tags the role of a block. Every block carries exactly one.
type NodeType uint32

const (
	TypeUnallocated NodeType = iota
	TypeSuperblock
	TypeRoot
	TypeInterior
	TypeLeaf
)

func (t NodeType) String() string {
	switch t {
	case TypeUnallocated:
		return "unallocated"
	case TypeSuperblock:
		return "superblock"
	case TypeRoot:
		return "root"
	case TypeInterior:
		return "interior"
	case TypeLeaf:
		return "leaf"
	}
	return fmt.Sprintf("nodetype(%d)", uint32(t))
}

// Valid reports whether t is one of the five enumerated types.
func (t NodeType) Valid() bool {
	return t <= TypeLeaf
}

// NodeHeader is stored at the start of every block, in host byte order.
// RootNode and FreeList are only authoritative in the superblock; the
// other node types carry them harmlessly because all headers are
// uniform. In an unallocated block FreeList doubles as the next pointer
// of the free-list chain (0 terminates).
type NodeHeader struct {
	NodeType  NodeType
	KeySize   uint32
	ValueSize uint32
	BlockSize uint32
	RootNode  uint64
	FreeList  uint64
	NumKeys   uint64
}

// Node is a single block image plus typed access to its payload.
//
// INTERIOR / ROOT PAYLOAD (after the 40-byte header):
//
//	P0 | K0 P1 | K1 P2 | ... | K[n-1] Pn
//
// LEAF PAYLOAD:
//
//	K0 V0 | K1 V1 | ... | K[n-1] V[n-1]
//
// Keys are fixed KeySize bytes, values fixed ValueSize bytes, pointers
// PtrSize bytes. All slot offsets are derived from the header, so the
// same Node type serves every block role.
type Node struct {
	data []byte
}

// NewNode returns a zeroed block image with an initialized header.
func NewNode(t NodeType, keysize, valuesize, blocksize uint32) *Node {
	n := &Node{data: make([]byte, blocksize)}
	h := n.Header()
	h.NodeType = t
	h.KeySize = keysize
	h.ValueSize = valuesize
	h.BlockSize = blocksize
	return n
}

// Header overlays the NodeHeader on the first NodeHeaderSize bytes.
// Mutations through the returned pointer edit the block image directly.
func (n *Node) Header() *NodeHeader {
	return (*NodeHeader)(unsafe.Pointer(&n.data[0]))
}

// Clone returns a deep copy of the block image, header included.
func (n *Node) Clone() *Node {
	c := &Node{data: make([]byte, len(n.data))}
	copy(c.data, n.data)
	return c
}

// Unserialize reads block num through the cache and adopts it as this
// node's image.
func (n *Node) Unserialize(c BlockCache, num uint64) error {
	bs := int(c.GetBlockSize())
	if len(n.data) != bs {
		n.data = make([]byte, bs)
	}
	if err := c.ReadBlock(num, n.data); err != nil {
		return fmt.Errorf("read block %d: %w", num, err)
	}
	return nil
}

// Serialize writes the full block image back through the cache.
func (n *Node) Serialize(c BlockCache, num uint64) error {
	if err := c.WriteBlock(num, n.data); err != nil {
		return fmt.Errorf("write block %d: %w", num, err)
	}
	return nil
}

// MaxInterior is the key capacity of this block as an interior node
// (one more pointer than keys fits alongside).
func (n *Node) MaxInterior() uint64 {
	h := n.Header()
	return uint64((h.BlockSize - NodeHeaderSize - PtrSize) / (h.KeySize + PtrSize))
}

// MaxLeaf is the key/value pair capacity of this block as a leaf.
func (n *Node) MaxLeaf() uint64 {
	h := n.Header()
	return uint64((h.BlockSize - NodeHeaderSize) / (h.KeySize + h.ValueSize))
}

// keyOffset returns the byte offset of key slot i. The stride depends
// on the node's role: leaves pack key/value pairs, interior nodes pack
// a leading pointer then key/pointer pairs.
func (n *Node) keyOffset(i uint64) int {
	h := n.Header()
	if h.NodeType == TypeLeaf {
		return NodeHeaderSize + int(i)*int(h.KeySize+h.ValueSize)
	}
	return NodeHeaderSize + PtrSize + int(i)*int(h.KeySize+PtrSize)
}

func (n *Node) valOffset(i uint64) int {
	h := n.Header()
	return NodeHeaderSize + int(i)*int(h.KeySize+h.ValueSize) + int(h.KeySize)
}

func (n *Node) ptrOffset(i uint64) int {
	h := n.Header()
	return NodeHeaderSize + int(i)*int(h.KeySize+PtrSize)
}

// GetKey copies key slot i out of the block. Valid for 0 <= i < NumKeys.
func (n *Node) GetKey(i uint64) ([]byte, error) {
	h := n.Header()
	if i >= h.NumKeys {
		return nil, ErrInvalidIndex
	}
	off := n.keyOffset(i)
	key := make([]byte, h.KeySize)
	copy(key, n.data[off:])
	return key, nil
}

// SetKey writes key slot i. The slot must exist (the caller bumps
// NumKeys before filling new slots).
func (n *Node) SetKey(i uint64, key []byte) error {
	h := n.Header()
	if i >= h.NumKeys {
		return ErrInvalidIndex
	}
	if len(key) != int(h.KeySize) {
		return ErrKeySize
	}
	copy(n.data[n.keyOffset(i):], key)
	return nil
}

// GetVal copies value slot i out of a leaf. The caller is responsible
// for only using value slots on leaf blocks.
func (n *Node) GetVal(i uint64) ([]byte, error) {
	h := n.Header()
	if i >= h.NumKeys {
		return nil, ErrInvalidIndex
	}
	off := n.valOffset(i)
	val := make([]byte, h.ValueSize)
	copy(val, n.data[off:])
	return val, nil
}

// SetVal writes value slot i of a leaf.
func (n *Node) SetVal(i uint64, val []byte) error {
	h := n.Header()
	if i >= h.NumKeys {
		return ErrInvalidIndex
	}
	if len(val) != int(h.ValueSize) {
		return ErrValueSize
	}
	copy(n.data[n.valOffset(i):], val)
	return nil
}

// GetPtr reads child pointer slot i of an interior node. Interior
// nodes hold NumKeys+1 pointers, so i may equal NumKeys.
func (n *Node) GetPtr(i uint64) (uint64, error) {
	h := n.Header()
	if i > h.NumKeys {
		return 0, ErrInvalidIndex
	}
	off := n.ptrOffset(i)
	return binary.NativeEndian.Uint64(n.data[off:]), nil
}

// SetPtr writes child pointer slot i of an interior node.
func (n *Node) SetPtr(i uint64, ptr uint64) error {
	h := n.Header()
	if i > h.NumKeys {
		return ErrInvalidIndex
	}
	off := n.ptrOffset(i)
	binary.NativeEndian.PutUint64(n.data[off:], ptr)
	return nil
}

// ResolveKey returns the block image from key slot i onward. The
// shifts performed during inserts and splits run bulk copies over
// these views; copy() has move semantics, so overlapping shifts are
// safe. No range check is applied: callers stay within capacity.
func (n *Node) ResolveKey(i uint64) []byte {
	return n.data[n.keyOffset(i):]
}

// ResolveVal returns the block image from value slot i onward.
func (n *Node) ResolveVal(i uint64) []byte {
	return n.data[n.valOffset(i):]
}

// ResolvePtr returns the block image from pointer slot i onward.
func (n *Node) ResolvePtr(i uint64) []byte {
	return n.data[n.ptrOffset(i):]
}

// ResolveKeyVal returns the block image from leaf pair slot i onward.
func (n *Node) ResolveKeyVal(i uint64) []byte {
	h := n.Header()
	return n.data[NodeHeaderSize+int(i)*int(h.KeySize+h.ValueSize):]
}
