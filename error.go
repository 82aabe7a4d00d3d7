package blocktree

import (
	"errors"

	"blocktree/internal/base"
)

var (
	ErrNonExistent   = errors.New("key does not exist")
	ErrConflict      = errors.New("key already exists")
	ErrNoSpace       = errors.New("free-list is exhausted")
	ErrUnimplemented = errors.New("operation is not implemented")
	ErrInsane        = errors.New("tree violates a structural invariant")

	ErrInvalidIndex = base.ErrInvalidIndex
	ErrKeySize      = base.ErrKeySize
	ErrValueSize    = base.ErrValueSize
	ErrBadMagic     = base.ErrBadMagic
	ErrBadVersion   = base.ErrBadVersion
	ErrBadChecksum  = base.ErrBadChecksum
)
