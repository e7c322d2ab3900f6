// Package format builds new MBR and GPT partition tables on a device from
// a caller-supplied partition.Table, writing protective structures and
// mirrored primary/backup copies where the layout calls for them.
package format

import (
	"bytes"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/mikee47/DiskStorage/blockdevice"
	"github.com/mikee47/DiskStorage/diskerr"
	"github.com/mikee47/DiskStorage/mbr"
	"github.com/mikee47/DiskStorage/partition"
)

// FormatMBR writes a classic 4-entry MBR partition table to dev, sizing
// and placing any descriptor in table that doesn't already have a fixed
// offset via partition.Validate, then syncing the device.
func FormatMBR(dev *blockdevice.Device, table *partition.Table) error {
	if table.Len() == 0 || table.Len() > 4 {
		return diskerr.BadParam
	}
	sectorSize := uint64(dev.SectorSize())
	firstAvailableBlock := partition.PartitionAlign / sectorSize
	totalAvailableBlocks := uint64(dev.SectorCount()) - firstAvailableBlock

	if err := partition.Validate(table, firstAvailableBlock, totalAvailableBlocks, sectorSize); err != nil {
		glog.Errorf("format: MBR validate failed: %v", err)
		return err
	}

	heads := uint32(8)
	deviceSectors := uint32(dev.SectorCount())
	for heads <= 255 && deviceSectors/(heads*63) > 1024 {
		heads *= 2
	}
	if heads > 255 {
		heads = 255
	}

	var m mbr.MBR
	for i, p := range table.All() {
		startLBA := uint32(p.Offset / sectorSize)
		sizeLBA := uint32(p.Size / sectorSize)
		osType := p.SysIndicator
		if osType == 0 {
			osType = mbr.SIExFAT
		}
		h0, s0, c0 := mbr.CHS(startLBA, heads)
		h1, s1, c1 := mbr.CHS(startLBA+sizeLBA-1, heads)
		m.PartitionRecord[i] = mbr.PartitionRecord{
			StartCHS:    [3]byte{h0, s0, c0},
			EndCHS:      [3]byte{h1, s1, c1},
			OSType:      osType,
			StartingLBA: startLBA,
			SizeInLBA:   sizeLBA,
		}
	}
	m.Signature = mbr.BootSignature

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return errors.Wrap(diskerr.WriteFailure, err.Error())
	}
	if err := dev.Write(0, buf.Bytes()); err != nil {
		return err
	}
	if err := dev.Sync(); err != nil {
		return err
	}
	glog.V(1).Infof("format: wrote MBR with %d partitions", table.Len())
	return nil
}
