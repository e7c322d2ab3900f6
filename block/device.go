// Package block defines the raw storage abstraction that blockdevice.Device
// wraps with a sector cache: block-aligned read, write, erase and sync
// primitives as a single interface, so that a host-file or flash-backed
// implementation is a small adapter, not a rewrite.
package block

// Device is a block-aligned random access store. ReadAt and WriteAt must be
// called with off and len(p) both multiples of BlockSize; implementations
// are free to panic or return an error otherwise, but are not required to
// support partial-block access — that is blockdevice's job.
type Device interface {
	// BlockSize returns the device's native block size in bytes.
	BlockSize() int64

	// Size returns the total addressable size of the device in bytes.
	Size() int64

	// ReadAt reads len(p) bytes starting at byte offset off.
	ReadAt(p []byte, off int64) (int, error)

	// WriteAt writes len(p) bytes starting at byte offset off.
	WriteAt(p []byte, off int64) (int, error)

	// Discard erases [off, off+length) and is specified to leave the range
	// filled with zero bytes, matching the zero-on-erase contract most
	// non-flash backing stores (host files, RAM, SD cards in block mode)
	// actually provide.
	Discard(off, length int64) error

	// Flush commits any buffering the device itself performs, independent
	// of any cache layered on top of it.
	Flush() error

	// Close releases any resources held by the device.
	Close() error

	// Path identifies the device for logging; implementations that have no
	// natural path may return a synthetic description.
	Path() string
}
