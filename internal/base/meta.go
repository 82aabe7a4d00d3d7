package base

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

const (
	// MagicNumber identifies a formatted superblock ("blkt" in hex).
	MagicNumber uint32 = 0x626c6b74

	FormatVersion uint16 = 1

	// Superblock trailer layout, stored right after the header:
	// [Magic: 4][Version: 2][Pad: 2][Checksum: 8]
	metaOffset     = NodeHeaderSize
	checksumOffset = metaOffset + 8
	metaEnd        = checksumOffset + 8
)

// StampMeta writes the magic/version trailer into the superblock
// payload and refreshes the checksum over the header and trailer.
// Called before every superblock write; the payload of a superblock is
// otherwise unused.
func StampMeta(n *Node) {
	binary.NativeEndian.PutUint32(n.data[metaOffset:], MagicNumber)
	binary.NativeEndian.PutUint16(n.data[metaOffset+4:], FormatVersion)
	binary.NativeEndian.PutUint16(n.data[metaOffset+6:], 0)
	sum := xxhash.Sum64(n.data[:checksumOffset])
	binary.NativeEndian.PutUint64(n.data[checksumOffset:], sum)
}

// ValidateMeta checks the magic, version, and checksum of a superblock
// image read from the device.
func ValidateMeta(n *Node) error {
	if len(n.data) < metaEnd {
		return ErrBlockSize
	}
	if binary.NativeEndian.Uint32(n.data[metaOffset:]) != MagicNumber {
		return ErrBadMagic
	}
	if binary.NativeEndian.Uint16(n.data[metaOffset+4:]) != FormatVersion {
		return ErrBadVersion
	}
	sum := xxhash.Sum64(n.data[:checksumOffset])
	if binary.NativeEndian.Uint64(n.data[checksumOffset:]) != sum {
		return ErrBadChecksum
	}
	return nil
}
