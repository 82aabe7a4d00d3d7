//go:build !linux && !darwin

package storage

import "errors"

// NewMMap is unavailable on this platform; use NewFile instead.
func NewMMap(string, uint32, uint64) (Device, error) {
	return nil, errors.New("mmap device is not supported on this platform")
}
