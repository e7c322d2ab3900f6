package format

import (
	"bytes"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mikee47/DiskStorage/blockdevice"
	"github.com/mikee47/DiskStorage/diskerr"
	"github.com/mikee47/DiskStorage/gpt"
	"github.com/mikee47/DiskStorage/mbr"
	"github.com/mikee47/DiskStorage/partition"
)

// Option configures FormatGPT.
type Option func(*options)

type options struct {
	diskGUID uuid.UUID
}

func newOptions(opts ...Option) *options {
	o := &options{}
	for _, set := range opts {
		set(o)
	}
	return o
}

// WithDiskGUID fixes the disk GUID written to both GPT headers, instead
// of the default of generating a random one.
func WithDiskGUID(g uuid.UUID) Option {
	return func(o *options) { o.diskGUID = g }
}

func ceilAlign(value, align uint64) uint64 {
	if align == 0 {
		return value
	}
	return (value + align - 1) / align * align
}

// FormatGPT writes a GUID Partition Table plus protective MBR to dev,
// sizing and placing any descriptor in table that doesn't already have a
// fixed offset via partition.Validate, then writing primary and backup
// copies of the header and entry array, and finally syncing the device.
func FormatGPT(dev *blockdevice.Device, table *partition.Table, opts ...Option) error {
	if table.Len() == 0 || table.Len() > gpt.ItemCount {
		return diskerr.BadParam
	}
	o := newOptions(opts...)
	sectorSize := uint64(dev.SectorSize())
	deviceSectors := uint64(dev.SectorCount())

	numEntrySectors := ceilAlign(uint64(gpt.ItemCount)*uint64(gpt.EntrySize), sectorSize) / sectorSize
	partAlignSectors := partition.PartitionAlign / sectorSize
	if partAlignSectors == 0 {
		partAlignSectors = 1
	}
	firstAvailableBlock := ceilAlign(2+numEntrySectors, partAlignSectors)
	backupEntrySector := deviceSectors - numEntrySectors - 1
	if backupEntrySector <= firstAvailableBlock {
		return diskerr.NoSpace
	}
	totalAvailableBlocks := backupEntrySector - firstAvailableBlock

	if err := partition.Validate(table, firstAvailableBlock, totalAvailableBlocks, sectorSize); err != nil {
		glog.Errorf("format: GPT validate failed: %v", err)
		return err
	}

	var t gpt.Table
	for i, p := range table.All() {
		var e gpt.Entry
		typeGUID := p.TypeGUID
		if typeGUID == uuid.Nil {
			typeGUID = gpt.TypeBasicData
		}
		uniqueGUID := p.UniqueGUID
		if uniqueGUID == uuid.Nil {
			uniqueGUID = uuid.New()
		}
		e.SetTypeGUID(typeGUID)
		e.SetUniqueGUID(uniqueGUID)
		e.StartingLBA = p.Offset / sectorSize
		e.EndingLBA = e.StartingLBA + p.Size/sectorSize - 1
		e.SetName(p.Name)
		t.Entries[i] = e
	}
	entryCRC := t.ComputeEntryArrayCRC32()

	diskGUID := o.diskGUID
	if diskGUID == uuid.Nil {
		diskGUID = uuid.New()
	}

	primary := gpt.Header{
		Signature:                gpt.Signature,
		Revision:                 gpt.Revision,
		HeaderSize:               gpt.HeaderSize,
		MyLBA:                    1,
		AlternateLBA:             deviceSectors - 1,
		FirstUsableLBA:           firstAvailableBlock,
		LastUsableLBA:            backupEntrySector - 1,
		PartitionEntryLBA:        2,
		NumberOfPartitionEntries: gpt.ItemCount,
		SizeOfPartitionEntry:     gpt.EntrySize,
		PartitionEntryArrayCRC32: entryCRC,
	}
	primary.SetDiskGUID(diskGUID)
	primary.HeaderCRC32 = primary.ComputeHeaderCRC32()

	backup := primary
	backup.MyLBA, backup.AlternateLBA = primary.AlternateLBA, primary.MyLBA
	backup.PartitionEntryLBA = backupEntrySector
	backup.HeaderCRC32 = backup.ComputeHeaderCRC32()

	if err := writeEntries(dev, &t, 2, sectorSize); err != nil {
		return err
	}
	if err := writeEntries(dev, &t, backupEntrySector, sectorSize); err != nil {
		return err
	}
	if err := writeHeader(dev, primary, primary.MyLBA, sectorSize); err != nil {
		return err
	}
	if err := writeHeader(dev, backup, backup.MyLBA, sectorSize); err != nil {
		return err
	}

	if err := mbr.WriteProtectiveMBR(byteWriter{dev: dev, offset: 0}, deviceSectors); err != nil {
		return errors.Wrap(diskerr.WriteFailure, err.Error())
	}

	if err := dev.Sync(); err != nil {
		return err
	}
	glog.V(1).Infof("format: wrote GPT with %d partitions", table.Len())
	return nil
}

func writeEntries(dev *blockdevice.Device, t *gpt.Table, lba, sectorSize uint64) error {
	var buf bytes.Buffer
	for i := range t.Entries {
		if _, err := t.Entries[i].WriteTo(&buf); err != nil {
			return errors.Wrap(diskerr.WriteFailure, err.Error())
		}
	}
	if err := dev.Write(int64(lba*sectorSize), buf.Bytes()); err != nil {
		return err
	}
	return nil
}

func writeHeader(dev *blockdevice.Device, h gpt.Header, lba, sectorSize uint64) error {
	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		return errors.Wrap(diskerr.WriteFailure, err.Error())
	}
	return dev.Write(int64(lba*sectorSize), buf.Bytes())
}

// byteWriter adapts blockdevice.Device.Write to io.Writer for a single
// sequential write, as mbr.WriteProtectiveMBR expects.
type byteWriter struct {
	dev    *blockdevice.Device
	offset int64
}

func (w byteWriter) Write(p []byte) (int, error) {
	if err := w.dev.Write(w.offset, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
