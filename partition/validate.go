package partition

import (
	"sort"

	"github.com/mikee47/DiskStorage/diskerr"
)

// PartitionAlign is the byte alignment every partition's start and
// rounded-up size is snapped to: 1 MiB, the usual default alignment for
// flash-friendly disks. A percentage size that is clamped to the space
// remaining keeps the clamped, possibly unaligned, size.
const PartitionAlign uint64 = 1 << 20

func ceilAlign(value, align uint64) uint64 {
	return (value + align - 1) / align * align
}

// Validate resolves every percentage-sized descriptor in table to a
// concrete byte size, checks every fixed-size descriptor's declared
// offset and size for alignment and range, confirms the whole table fits
// within [firstAvailableBlock, firstAvailableBlock+totalAvailableBlocks)
// (in units of blockSize), and assigns offsets to descriptors that don't
// already have one by packing them into the lowest available gaps.
//
// On success every descriptor in table has a non-zero, aligned Offset and
// a concrete Size in bytes, and the table is sorted by Offset.
func Validate(table *Table, firstAvailableBlock, totalAvailableBlocks, blockSize uint64) error {
	if blockSize == 0 || totalAvailableBlocks == 0 {
		return diskerr.BadParam
	}
	alignBlocks := PartitionAlign / blockSize
	if alignBlocks == 0 {
		alignBlocks = 1
	}
	regionStart := firstAvailableBlock * blockSize
	regionEnd := (firstAvailableBlock + totalAvailableBlocks) * blockSize

	var usedBlocks uint64
	for _, p := range table.partitions {
		// A size of 1-100 is always a percentage of totalAvailableBlocks,
		// regardless of whether the descriptor also carries an explicit
		// offset.
		percent := p.Size >= 1 && p.Size <= 100
		if percent {
			wantBlocks := ceilAlign(totalAvailableBlocks*p.Size/100, alignBlocks)
			remaining := totalAvailableBlocks - usedBlocks
			if remaining == 0 {
				return diskerr.NoSpace
			}
			if wantBlocks > remaining {
				wantBlocks = remaining
			}
			if wantBlocks == 0 {
				return diskerr.NoSpace
			}
			p.Size = wantBlocks * blockSize
		}

		if p.Offset != 0 {
			if p.Offset%PartitionAlign != 0 {
				return diskerr.MisAligned
			}
			if p.Offset < regionStart || p.Offset > regionEnd-1 {
				return diskerr.OutOfRange
			}
		}
		// A percentage size is already aligned, or clamped to the space
		// remaining; only a byte size is rounded up here.
		blocksNeeded := (p.Size + blockSize - 1) / blockSize
		blocks := blocksNeeded
		if !percent {
			blocks = ceilAlign(blocksNeeded, alignBlocks)
		}
		if blocks == 0 {
			return diskerr.BadParam
		}
		p.Size = blocks * blockSize
		usedBlocks += blocks
	}
	if usedBlocks > totalAvailableBlocks {
		return diskerr.NoSpace
	}

	if err := place(table, regionStart, regionEnd); err != nil {
		return err
	}

	sort.Slice(table.partitions, func(i, j int) bool {
		return table.partitions[i].Offset < table.partitions[j].Offset
	})
	return nil
}

// place assigns offsets to every descriptor whose Offset is still zero,
// one at a time, always choosing the lowest-addressed gap between (or
// before/after) the already-placed descriptors that the descriptor fits
// in. It re-derives the gap list after each placement since placing one
// descriptor can split or consume a gap a later one would have used.
func place(table *Table, regionStart, regionEnd uint64) error {
	sortByOffset := func() {
		sort.SliceStable(table.partitions, func(i, j int) bool {
			return table.partitions[i].Offset < table.partitions[j].Offset
		})
	}
	sortByOffset()

	for {
		if table.Len() == 0 || table.partitions[0].Offset != 0 {
			return nil
		}
		next := table.partitions[0]

		prevEnd := regionStart
		placed := false
		for _, q := range table.partitions {
			if q.Offset == 0 {
				continue
			}
			if q.Offset-prevEnd >= next.Size {
				next.Offset = prevEnd
				placed = true
				break
			}
			prevEnd = q.Offset + q.Size
		}
		if !placed {
			if regionEnd-prevEnd >= next.Size {
				next.Offset = prevEnd
				placed = true
			}
		}
		if !placed {
			return diskerr.NoSpace
		}
		sortByOffset()
	}
}
