package blockdevice

import (
	"bytes"
	"testing"

	"github.com/mikee47/DiskStorage/block/memory"
)

func newTestDevice(t *testing.T, bufferCount int) *Device {
	t.Helper()
	raw, err := memory.New(8 * 512)
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(raw, WithBufferCount(bufferCount))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestSectorSizeAndCount(t *testing.T) {
	d := newTestDevice(t, 4)
	if d.SectorSize() != 512 {
		t.Fatalf("SectorSize() = %d, want 512", d.SectorSize())
	}
	if d.SectorCount() != 8 {
		t.Fatalf("SectorCount() = %d, want 8", d.SectorCount())
	}
	if d.Size() != 8*512 {
		t.Fatalf("Size() = %d, want %d", d.Size(), 8*512)
	}
}

func TestReadWriteFullSector(t *testing.T) {
	d := newTestDevice(t, 4)
	want := bytes.Repeat([]byte{0xAB}, 512)
	if err := d.Write(512, want); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 512)
	if err := d.Read(512, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("read back different data")
	}
}

func TestPartialSectorReadModifyWrite(t *testing.T) {
	d := newTestDevice(t, 4)
	full := bytes.Repeat([]byte{0x11}, 512)
	if err := d.Write(0, full); err != nil {
		t.Fatal(err)
	}
	// Overwrite just the middle 10 bytes.
	patch := bytes.Repeat([]byte{0x22}, 10)
	if err := d.Write(100, patch); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 512)
	if err := d.Read(0, got); err != nil {
		t.Fatal(err)
	}
	for i, b := range got {
		want := byte(0x11)
		if i >= 100 && i < 110 {
			want = 0x22
		}
		if b != want {
			t.Fatalf("byte %d = 0x%x, want 0x%x", i, b, want)
		}
	}
}

func TestByteGranularCrossSectorReadWrite(t *testing.T) {
	d := newTestDevice(t, 4)
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i + 1)
	}
	off := int64(512 - 10) // straddles sectors 0 and 1
	if err := d.Write(off, data); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 20)
	if err := d.Read(off, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("cross-sector round trip mismatch: got %v, want %v", got, data)
	}
}

func TestUnbufferedDeviceStillWorks(t *testing.T) {
	d := newTestDevice(t, 0)
	want := bytes.Repeat([]byte{0x5A}, 512)
	if err := d.Write(0, want); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 512)
	if err := d.Read(0, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("unbuffered read/write round trip mismatch")
	}
}

func TestAllocateBuffersZeroRejectsMisalignedAccess(t *testing.T) {
	d := newTestDevice(t, 4)
	if err := d.AllocateBuffers(0); err != nil {
		t.Fatal(err)
	}

	// Seed sector 0 with known data so a silent pass-through would be
	// detectable.
	seed := bytes.Repeat([]byte{0x99}, 512)
	if _, err := d.raw.WriteAt(seed, 0); err != nil {
		t.Fatal(err)
	}

	if err := d.Write(123, bytes.Repeat([]byte{0x22}, 32)); err == nil {
		t.Fatalf("expected a misalignment error for an unbuffered partial write")
	}
	if err := d.Read(123, make([]byte, 32)); err == nil {
		t.Fatalf("expected a misalignment error for an unbuffered partial read")
	}

	// The medium must be untouched.
	got := make([]byte, 512)
	if _, err := d.raw.ReadAt(got, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, seed) {
		t.Fatalf("unbuffered misaligned access touched the medium")
	}
}

func TestEraseRangeZeroesAndInvalidatesCache(t *testing.T) {
	d := newTestDevice(t, 4)
	if err := d.Write(0, bytes.Repeat([]byte{0xFF}, 512)); err != nil {
		t.Fatal(err)
	}
	if err := d.EraseRange(0, 512); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 512)
	if err := d.Read(0, got); err != nil {
		t.Fatal(err)
	}
	for i, b := range got {
		if b != 0 {
			t.Fatalf("byte %d = 0x%x after erase, want 0", i, b)
		}
	}
}

func TestEraseRangeRequiresSectorAlignment(t *testing.T) {
	d := newTestDevice(t, 4)
	if err := d.EraseRange(1, 512); err == nil {
		t.Fatalf("expected a misalignment error")
	}
}

func TestOutOfRangeAccessRejected(t *testing.T) {
	d := newTestDevice(t, 4)
	if err := d.Read(d.Size()-10, make([]byte, 20)); err == nil {
		t.Fatalf("expected an out-of-range error")
	}
}

func TestSyncFlushesDirtyBuffers(t *testing.T) {
	d := newTestDevice(t, 4)
	want := bytes.Repeat([]byte{0x7E}, 512)
	if err := d.Write(0, want); err != nil {
		t.Fatal(err)
	}
	if err := d.Sync(); err != nil {
		t.Fatal(err)
	}
	stats := d.Stats()
	if stats.Writes == 0 {
		t.Fatalf("expected at least one physical write to have happened by Sync")
	}
}

func TestAllocateBuffersPreservesDataAcrossResize(t *testing.T) {
	d := newTestDevice(t, 2)
	want := bytes.Repeat([]byte{0x33}, 512)
	if err := d.Write(0, want); err != nil {
		t.Fatal(err)
	}
	if err := d.AllocateBuffers(8); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 512)
	if err := d.Read(0, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("data lost across AllocateBuffers resize")
	}
}
