// Package partition defines the partition descriptor and the ordered
// table that owns a set of them, plus the validator that assigns offsets
// to not-yet-placed descriptors and checks the whole table for fit.
package partition

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"

	"github.com/mikee47/DiskStorage/mbr"
)

// SysType is the filesystem kind a partition was identified as holding,
// shared between the MBR and GPT paths.
type SysType int

const (
	Unknown SysType = iota
	FAT12
	FAT16
	FAT32
	ExFAT
)

func (t SysType) String() string {
	switch t {
	case FAT12:
		return "FAT12"
	case FAT16:
		return "FAT16"
	case FAT32:
		return "FAT32"
	case ExFAT:
		return "exFAT"
	default:
		return "unknown"
	}
}

// Partition describes one region of a disk, whether discovered by
// scanning or about to be written by formatting. Offset and Size are
// always in bytes. TypeGUID/UniqueGUID are only meaningful for
// GPT-sourced or GPT-destined partitions; SysIndicator is only meaningful
// for MBR. Validate interprets an Offset of 0 as "not yet placed" and a
// Size of 1-100 as a percentage of the available space.
type Partition struct {
	Offset       uint64
	Size         uint64
	Name         string
	SysType      SysType
	SysIndicator mbr.SystemID
	TypeGUID     uuid.UUID
	UniqueGUID   uuid.UUID
}

func (p Partition) String() string {
	return fmt.Sprintf("%s: offset=0x%x size=0x%x (%d) type=%s", p.Name, p.Offset, p.Size, p.Size, p.SysType)
}

// Table is an ordered, owning collection of partitions, the unit
// format.FormatMBR/format.FormatGPT consume from. scan.Scanner yields
// partitions one at a time; callers that want a Table Append them.
type Table struct {
	partitions []*Partition
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// Append adds p to the end of the table, taking ownership of it.
func (t *Table) Append(p *Partition) {
	t.partitions = append(t.partitions, p)
}

// Len returns the number of partitions in the table.
func (t *Table) Len() int {
	return len(t.partitions)
}

// At returns the partition at index i.
func (t *Table) At(i int) *Partition {
	return t.partitions[i]
}

// All returns the table's partitions in order. The returned slice aliases
// the table's own storage and must not be appended to.
func (t *Table) All() []*Partition {
	return t.partitions
}

func (t *Table) String() string {
	var b bytes.Buffer
	for i, p := range t.partitions {
		fmt.Fprintf(&b, "[%d] %s\n", i, p)
	}
	return b.String()
}
