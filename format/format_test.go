package format

import (
	"testing"

	"github.com/mikee47/DiskStorage/block/memory"
	"github.com/mikee47/DiskStorage/blockdevice"
	"github.com/mikee47/DiskStorage/gpt"
	"github.com/mikee47/DiskStorage/mbr"
	"github.com/mikee47/DiskStorage/partition"
)

func newTestDevice(t *testing.T, bytes int64) *blockdevice.Device {
	t.Helper()
	raw, err := memory.New(bytes)
	if err != nil {
		t.Fatal(err)
	}
	d, err := blockdevice.New(raw, blockdevice.WithBufferCount(8))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestFormatMBRWritesBootSignatureAndEntries(t *testing.T) {
	d := newTestDevice(t, 4<<20) // 4 MiB
	table := partition.NewTable()
	table.Append(&partition.Partition{Size: 50})
	table.Append(&partition.Partition{Size: 50})

	if err := FormatMBR(d, table); err != nil {
		t.Fatal(err)
	}

	sector := make([]byte, d.SectorSize())
	if err := d.Read(0, sector); err != nil {
		t.Fatal(err)
	}
	m, err := mbr.Read(byteReader{sector})
	if err != nil {
		t.Fatal(err)
	}
	if m.Signature != mbr.BootSignature {
		t.Fatalf("boot signature = 0x%x, want 0x%x", m.Signature, mbr.BootSignature)
	}
	if m.PartitionRecord[0].Empty() || m.PartitionRecord[1].Empty() {
		t.Fatalf("expected two populated partition records, got %+v", m.PartitionRecord)
	}
	if !m.PartitionRecord[2].Empty() || !m.PartitionRecord[3].Empty() {
		t.Fatalf("expected the remaining two partition records to be empty")
	}
}

func TestFormatMBRRejectsTooManyPartitions(t *testing.T) {
	d := newTestDevice(t, 4<<20)
	table := partition.NewTable()
	for i := 0; i < 5; i++ {
		table.Append(&partition.Partition{Size: 10})
	}
	if err := FormatMBR(d, table); err == nil {
		t.Fatalf("expected an error for more than 4 MBR partitions")
	}
}

func TestFormatGPTWritesValidPrimaryAndBackup(t *testing.T) {
	d := newTestDevice(t, 10<<20) // 10 MiB
	table := partition.NewTable()
	table.Append(&partition.Partition{Size: 50, Name: "one"})
	table.Append(&partition.Partition{Size: 50, Name: "two"})

	if err := FormatGPT(d, table); err != nil {
		t.Fatal(err)
	}

	// Sector 0 must be a protective MBR.
	sector0 := make([]byte, d.SectorSize())
	if err := d.Read(0, sector0); err != nil {
		t.Fatal(err)
	}
	m, err := mbr.Read(byteReader{sector0})
	if err != nil {
		t.Fatal(err)
	}
	if m.PartitionRecord[0].OSType != mbr.GPTProtective {
		t.Fatalf("expected a protective MBR at sector 0")
	}

	// The primary header (LBA 1) and the backup header (last LBA) must both
	// verify, each pointing at the other.
	last := uint64(d.SectorCount() - 1)
	for _, c := range []struct{ my, alt uint64 }{{1, last}, {last, 1}} {
		buf := make([]byte, d.SectorSize())
		if err := d.Read(int64(c.my)*d.SectorSize(), buf); err != nil {
			t.Fatal(err)
		}
		var h gpt.Header
		if _, err := h.ReadFrom(byteReader{buf}); err != nil {
			t.Fatal(err)
		}
		if !h.Valid() {
			t.Fatalf("GPT header at LBA %d does not verify", c.my)
		}
		if h.MyLBA != c.my || h.AlternateLBA != c.alt {
			t.Fatalf("GPT header at LBA %d: MyLBA=%d AlternateLBA=%d, want %d and %d",
				c.my, h.MyLBA, h.AlternateLBA, c.my, c.alt)
		}
	}
}

type byteReader struct{ b []byte }

func (r byteReader) Read(p []byte) (int, error) {
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}
