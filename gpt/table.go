package gpt

import (
	"bytes"
	"fmt"
	"hash/crc32"
)

// Table is the in-memory form of one GPT header plus its full,
// fixed-length ItemCount entry array (unused slots are zero Entry
// values), as read from or about to be written to one of the two
// on-disk locations (primary or backup).
type Table struct {
	Header  Header
	Entries [ItemCount]Entry
}

// ComputeEntryArrayCRC32 returns the CRC-32 of the entire entry array,
// including zero (unused) slots — the UEFI specification's
// PartitionEntryArrayCRC32 covers NumberOfPartitionEntries *
// SizeOfPartitionEntry bytes regardless of how many entries are actually
// populated, and this implementation always writes the full ItemCount.
func (t Table) ComputeEntryArrayCRC32() uint32 {
	crc := crc32.NewIEEE()
	for i := range t.Entries {
		_, _ = t.Entries[i].WriteTo(crc)
	}
	return crc.Sum32()
}

// Valid reports whether the table's header is well-formed and its
// recorded entry array CRC matches the entries actually present.
func (t Table) Valid() bool {
	return t.Header.Valid() && t.Header.PartitionEntryArrayCRC32 == t.ComputeEntryArrayCRC32()
}

func (h Header) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "MyLBA: 0x%x, AlternateLBA: 0x%x\n", h.MyLBA, h.AlternateLBA)
	fmt.Fprintf(&b, "FirstUsableLBA: 0x%x, LastUsableLBA: 0x%x\n", h.FirstUsableLBA, h.LastUsableLBA)
	fmt.Fprintf(&b, "DiskGUID: %s\n", h.DiskGUIDValue())
	fmt.Fprintf(&b, "PartitionEntryLBA: 0x%x, NumberOfPartitionEntries: %d\n", h.PartitionEntryLBA, h.NumberOfPartitionEntries)
	return b.String()
}

func (e Entry) String() string {
	return fmt.Sprintf("Type: %s (%s), Unique: %s, LBA: [0x%x,0x%x], Name: %q",
		e.TypeGUIDValue(), TypeName(e.TypeGUIDValue()), e.UniqueGUIDValue(), e.StartingLBA, e.EndingLBA, e.NameString())
}

func (t Table) String() string {
	var b bytes.Buffer
	b.WriteString(t.Header.String())
	for i, e := range t.Entries {
		if e.IsZero() {
			continue
		}
		fmt.Fprintf(&b, "  [%d] %s\n", i, e)
	}
	return b.String()
}
