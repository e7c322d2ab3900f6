// Package memory provides an in-memory block.Device fixture for this
// module's own tests. Real backing stores (host files, flash, block
// devices) are expected to live in their own adapter packages outside
// this module.
package memory

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/mikee47/DiskStorage/block"
)

// Device is a fixed-size, fixed-block-size in-memory block.Device.
type Device []byte

const blockSize = 512

var (
	// ErrBlockSize is returned when an access is not aligned to blockSize.
	ErrBlockSize = errors.New("memory: access not aligned to block size")
	// ErrOutOfBounds is returned when an access falls outside the device.
	ErrOutOfBounds = errors.New("memory: access out of bounds")
)

// New returns a zero-filled device of the given size in bytes, which must
// be a multiple of the fixed block size.
func New(size int64) (Device, error) {
	if size%blockSize != 0 {
		return nil, errors.Wrapf(ErrBlockSize, "size %d", size)
	}
	return make(Device, size), nil
}

func (d Device) check(p []byte, off int64, op string) error {
	if off%blockSize != 0 || int64(len(p))%blockSize != 0 {
		return errors.Wrapf(ErrBlockSize, "%s at %d len %d", op, off, len(p))
	}
	if off < 0 || off+int64(len(p)) > int64(len(d)) {
		return errors.Wrapf(ErrOutOfBounds, "%s at %d len %d", op, off, len(p))
	}
	return nil
}

func (d Device) BlockSize() int64 { return blockSize }

func (d Device) Size() int64 { return int64(len(d)) }

func (d Device) ReadAt(p []byte, off int64) (int, error) {
	if err := d.check(p, off, "read"); err != nil {
		return 0, err
	}
	copy(p, d[off:])
	return len(p), nil
}

func (d Device) WriteAt(p []byte, off int64) (int, error) {
	if err := d.check(p, off, "write"); err != nil {
		return 0, err
	}
	copy(d[off:], p)
	return len(p), nil
}

func (d Device) Discard(off, length int64) error {
	if err := d.check(make([]byte, length), off, "discard"); err != nil {
		return err
	}
	for i := off; i < off+length; i++ {
		d[i] = 0
	}
	return nil
}

func (d Device) Flush() error { return nil }

func (d Device) Close() error { return nil }

func (d Device) Path() string { return fmt.Sprintf("memory:%d", len(d)) }

var _ block.Device = Device(nil)
