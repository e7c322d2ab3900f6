// Package blockdevice provides byte-granular read/write/erase access over
// a block.Device, translating it to aligned sector I/O through a
// write-back sectorcache.Pool. Reads and writes may start and end at any
// byte offset; only full sectors ever reach the underlying block.Device.
package blockdevice

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/mikee47/DiskStorage/block"
	"github.com/mikee47/DiskStorage/diskerr"
	"github.com/mikee47/DiskStorage/sectorcache"
)

// Stats is a snapshot of cache and I/O activity, for observability only.
// Nothing in this package ever branches on a Stats value.
type Stats struct {
	ReadHits, ReadMisses     uint64
	WriteHits, WriteMisses   uint64
	Reads, Writes, Erases    uint64
}

// Device wraps a block.Device with a direct-mapped sector cache and
// exposes byte-granular access to it.
type Device struct {
	raw         block.Device
	sectorSize  int64
	sectorCount int64
	pool        *sectorcache.Pool
	stats       Stats
}

// Option configures a Device at construction time.
type Option func(*options)

type options struct {
	bufferCount int
}

func newOptions(opts ...Option) *options {
	o := &options{bufferCount: 4}
	for _, set := range opts {
		set(o)
	}
	return o
}

// WithBufferCount sets the number of sector buffers in the cache pool
// (rounded up to a power of two). A count of 0 disables caching: every
// access goes straight to the backing block.Device.
func WithBufferCount(count int) Option {
	return func(o *options) { o.bufferCount = count }
}

// New wraps raw with a sector cache sized per opts. raw's BlockSize is
// taken as the sector size for all subsequent operations.
func New(raw block.Device, opts ...Option) (*Device, error) {
	o := newOptions(opts...)
	sectorSize := raw.BlockSize()
	if sectorSize <= 0 || raw.Size()%sectorSize != 0 {
		return nil, diskerr.BadParam
	}
	d := &Device{
		raw:         raw,
		sectorSize:  sectorSize,
		sectorCount: raw.Size() / sectorSize,
		pool:        sectorcache.New(int(sectorSize), o.bufferCount),
	}
	glog.V(1).Infof("blockdevice: opened %s, %d sectors of %d bytes, %d buffers",
		raw.Path(), d.sectorCount, d.sectorSize, d.pool.Len())
	return d, nil
}

// SectorSize returns the device's sector size in bytes.
func (d *Device) SectorSize() int64 { return d.sectorSize }

// SectorCount returns the number of sectors on the device.
func (d *Device) SectorCount() int64 { return d.sectorCount }

// Size returns the total addressable size in bytes.
func (d *Device) Size() int64 { return d.sectorCount * d.sectorSize }

// Stats returns a snapshot of cache and I/O counters.
func (d *Device) Stats() Stats { return d.stats }

// AllocateBuffers replaces the cache pool with one sized for count
// sectors, discarding any cached (and flushing any dirty) data first.
func (d *Device) AllocateBuffers(count int) error {
	if err := d.Sync(); err != nil {
		return err
	}
	d.pool = sectorcache.New(int(d.sectorSize), count)
	return nil
}

func (d *Device) readSector(sector int64, dst []byte) error {
	b, hit := d.pool.Get(sector)
	if b == nil {
		glog.V(2).Infof("blockdevice: read sector %d (unbuffered)", sector)
		n, err := d.raw.ReadAt(dst, sector*d.sectorSize)
		d.stats.Reads++
		if err != nil || int64(n) != d.sectorSize {
			glog.Errorf("blockdevice: read sector %d: %v", sector, err)
			return errors.Wrap(diskerr.ReadFailure, err.Error())
		}
		return nil
	}
	if hit {
		glog.V(2).Infof("blockdevice: read sector %d cache hit", sector)
		d.stats.ReadHits++
		copy(dst, b.Data)
		return nil
	}
	glog.V(2).Infof("blockdevice: read sector %d cache miss", sector)
	d.stats.ReadMisses++
	if err := d.flushSlot(b); err != nil {
		return err
	}
	n, err := d.raw.ReadAt(b.Data, sector*d.sectorSize)
	d.stats.Reads++
	if err != nil || int64(n) != d.sectorSize {
		glog.Errorf("blockdevice: read sector %d: %v", sector, err)
		b.Sector = -1
		return errors.Wrap(diskerr.ReadFailure, err.Error())
	}
	b.Sector = sector
	b.Dirty = false
	copy(dst, b.Data)
	return nil
}

// writeSector writes a complete, already-assembled sector's worth of data.
// Partial-sector writes are handled by Write, which reads the sector into
// a full-size buffer, overlays the caller's bytes, and calls this with the
// result — so no read-modify-write happens at this layer.
func (d *Device) writeSector(sector int64, src []byte) error {
	b, hit := d.pool.Get(sector)
	if b == nil {
		glog.V(2).Infof("blockdevice: write sector %d (unbuffered)", sector)
		n, err := d.raw.WriteAt(src, sector*d.sectorSize)
		d.stats.Writes++
		if err != nil || int64(n) != d.sectorSize {
			glog.Errorf("blockdevice: write sector %d: %v", sector, err)
			return errors.Wrap(diskerr.WriteFailure, err.Error())
		}
		return nil
	}
	if hit {
		glog.V(2).Infof("blockdevice: write sector %d cache hit", sector)
		d.stats.WriteHits++
	} else {
		glog.V(2).Infof("blockdevice: write sector %d cache miss", sector)
		d.stats.WriteMisses++
		if err := d.flushSlot(b); err != nil {
			return err
		}
		b.Sector = sector
	}
	copy(b.Data, src)
	b.Dirty = true
	return nil
}

func (d *Device) flushSlot(b *sectorcache.Buffer) error {
	if b.Sector < 0 || !b.Dirty {
		return nil
	}
	glog.V(2).Infof("blockdevice: flush sector %d", b.Sector)
	n, err := d.raw.WriteAt(b.Data, b.Sector*d.sectorSize)
	d.stats.Writes++
	if err != nil || int64(n) != d.sectorSize {
		glog.Errorf("blockdevice: flush sector %d: %v", b.Sector, err)
		return errors.Wrap(diskerr.WriteFailure, err.Error())
	}
	b.Dirty = false
	return nil
}

// forEachChunk splits [off, off+len(buf)) into per-sector chunks and calls
// fn with the sector number, the slice of buf covering that sector, and
// the byte offset within the sector the chunk starts at.
func (d *Device) forEachChunk(off int64, buf []byte, fn func(sector, sectorOff int64, chunk []byte) error) error {
	remaining := buf
	pos := off
	for len(remaining) > 0 {
		sector := pos / d.sectorSize
		sectorOff := pos % d.sectorSize
		chunkSize := d.sectorSize - sectorOff
		if chunkSize > int64(len(remaining)) {
			chunkSize = int64(len(remaining))
		}
		if err := fn(sector, sectorOff, remaining[:chunkSize]); err != nil {
			return err
		}
		remaining = remaining[chunkSize:]
		pos += chunkSize
	}
	return nil
}

func (d *Device) checkRange(off int64, length int64) error {
	if off < 0 || length < 0 || off+length > d.Size() {
		return diskerr.OutOfRange
	}
	return nil
}

// checkAlignment rejects a non-sector-aligned access when the device has
// no buffers: with nothing to stage a read-modify-write in, unbuffered
// mode can only satisfy whole, aligned sectors.
func (d *Device) checkAlignment(off int64, length int64) error {
	if d.pool.Len() == 0 && (off%d.sectorSize != 0 || length%d.sectorSize != 0) {
		return diskerr.MisAligned
	}
	return nil
}

// Read copies len(p) bytes starting at byte offset off into p. off and
// len(p) need not be sector-aligned, unless buffering has been disabled
// via AllocateBuffers(0), in which case both must be sector-aligned.
func (d *Device) Read(off int64, p []byte) error {
	if err := d.checkRange(off, int64(len(p))); err != nil {
		return err
	}
	if err := d.checkAlignment(off, int64(len(p))); err != nil {
		return err
	}
	return d.forEachChunk(off, p, func(sector, sectorOff int64, chunk []byte) error {
		if sectorOff == 0 && int64(len(chunk)) == d.sectorSize {
			return d.readSector(sector, chunk)
		}
		full := make([]byte, d.sectorSize)
		if err := d.readSector(sector, full); err != nil {
			return err
		}
		copy(chunk, full[sectorOff:sectorOff+int64(len(chunk))])
		return nil
	})
}

// Write writes len(p) bytes starting at byte offset off. off and len(p)
// need not be sector-aligned; a write that only covers part of a sector
// is satisfied by a cached read-modify-write. If buffering has been
// disabled via AllocateBuffers(0), both must be sector-aligned, since
// there is no buffer to stage the read-modify-write in.
func (d *Device) Write(off int64, p []byte) error {
	if err := d.checkRange(off, int64(len(p))); err != nil {
		return err
	}
	if err := d.checkAlignment(off, int64(len(p))); err != nil {
		return err
	}
	return d.forEachChunk(off, p, func(sector, sectorOff int64, chunk []byte) error {
		if sectorOff == 0 && int64(len(chunk)) == d.sectorSize {
			return d.writeSector(sector, chunk)
		}
		// Partial sector: read its current contents, overlay the covered
		// range, and write the whole sector back. readSector serves the
		// sector from the cache if it is already resident, and leaves it
		// resident for writeSector's lookup otherwise.
		full := make([]byte, d.sectorSize)
		if err := d.readSector(sector, full); err != nil {
			return err
		}
		copy(full[sectorOff:sectorOff+int64(len(chunk))], chunk)
		return d.writeSector(sector, full)
	})
}

// EraseRange zeroes [off, off+length). Any cached sector fully or
// partially within the range is invalidated rather than left dirty, so a
// later Sync cannot resurrect pre-erase contents.
func (d *Device) EraseRange(off, length int64) error {
	if err := d.checkRange(off, length); err != nil {
		return err
	}
	if off%d.sectorSize != 0 || length%d.sectorSize != 0 {
		return diskerr.MisAligned
	}
	if err := d.raw.Discard(off, length); err != nil {
		glog.Errorf("blockdevice: erase [%d,%d): %v", off, off+length, err)
		return errors.Wrap(diskerr.EraseFailure, err.Error())
	}
	d.stats.Erases++
	for sector := off / d.sectorSize; sector < (off+length)/d.sectorSize; sector++ {
		glog.V(2).Infof("blockdevice: invalidate sector %d", sector)
		d.pool.Invalidate(sector)
	}
	return nil
}

// Sync flushes every dirty buffer to the backing device, then calls its
// Flush so all writes are durable.
func (d *Device) Sync() error {
	for i := 0; i < d.pool.Len(); i++ {
		if err := d.flushSlot(d.pool.Slot(i)); err != nil {
			return err
		}
	}
	if err := d.raw.Flush(); err != nil {
		return errors.Wrap(diskerr.WriteFailure, err.Error())
	}
	glog.V(1).Infof("blockdevice: synced %s", d.raw.Path())
	return nil
}

// Close syncs and then closes the backing device.
func (d *Device) Close() error {
	if err := d.Sync(); err != nil {
		return err
	}
	return d.raw.Close()
}
