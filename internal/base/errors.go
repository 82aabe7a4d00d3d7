package base

import "errors"

var (
	ErrInvalidIndex = errors.New("slot index out of range")
	ErrKeySize      = errors.New("key has wrong size")
	ErrValueSize    = errors.New("value has wrong size")
	ErrBlockSize    = errors.New("buffer does not match block size")
	ErrBadMagic     = errors.New("superblock magic number mismatch")
	ErrBadVersion   = errors.New("superblock format version mismatch")
	ErrBadChecksum  = errors.New("superblock checksum mismatch")
)
