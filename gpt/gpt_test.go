package gpt

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestGUIDRoundTrip(t *testing.T) {
	want := uuid.MustParse("61d3ce8a-d7c9-400b-8f00-6fdab7d52765")
	raw := EncodeGUID(want)
	got := DecodeGUID(raw)
	if got != want {
		t.Fatalf("GUID round trip: got %s, want %s", got, want)
	}
}

func TestEncodeGUIDIsMixedEndian(t *testing.T) {
	// TimeLow (first 4 bytes of the canonical form) must come back
	// byte-reversed in the on-disk encoding.
	g := uuid.MustParse("01020304-0506-0708-090a-0b0c0d0e0f10")
	raw := EncodeGUID(g)
	want := [4]byte{0x04, 0x03, 0x02, 0x01}
	if raw[0] != want[0] || raw[1] != want[1] || raw[2] != want[2] || raw[3] != want[3] {
		t.Fatalf("EncodeGUID time_low bytes = %v, want %v", raw[0:4], want)
	}
	// The last 8 bytes (clock_seq + node) are untouched.
	for i := 8; i < 16; i++ {
		if raw[i] != g[i] {
			t.Fatalf("EncodeGUID byte %d = 0x%x, want 0x%x (unchanged)", i, raw[i], g[i])
		}
	}
}

func TestHeaderCRCRoundTrip(t *testing.T) {
	var h Header
	h.Signature = Signature
	h.Revision = Revision
	h.HeaderSize = HeaderSize
	h.SizeOfPartitionEntry = EntrySize
	h.MyLBA = 1
	h.SetDiskGUID(uuid.New())
	h.HeaderCRC32 = h.ComputeHeaderCRC32()

	var buf bytes.Buffer
	if _, err := h.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	var got Header
	if _, err := got.ReadFrom(&buf); err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, h)
	}
	if !got.Valid() {
		t.Fatalf("round-tripped header should be Valid")
	}
}

func TestHeaderValidRejectsBadCRC(t *testing.T) {
	var h Header
	h.Signature = Signature
	h.Revision = Revision
	h.HeaderSize = HeaderSize
	h.SizeOfPartitionEntry = EntrySize
	h.HeaderCRC32 = 0xDEADBEEF
	if h.Valid() {
		t.Fatalf("header with wrong CRC should not be Valid")
	}
}

func TestHeaderValidAcceptsLargerHeaderSize(t *testing.T) {
	var h Header
	h.Signature = Signature
	h.Revision = Revision
	h.HeaderSize = HeaderSize + 8 // a hypothetical future extension
	h.SizeOfPartitionEntry = EntrySize
	h.HeaderCRC32 = h.ComputeHeaderCRC32()
	if !h.Valid() {
		t.Fatalf("a header_size larger than HeaderSize should still be accepted")
	}
}

func TestEntryNameRoundTripASCII(t *testing.T) {
	var e Entry
	e.SetName("data")
	if got := e.NameString(); got != "data" {
		t.Fatalf("NameString() = %q, want %q", got, "data")
	}
}

func TestEntryNameLossyDecode(t *testing.T) {
	var e Entry
	e.Name[0] = 0x0041 // 'A'
	e.Name[1] = 0x0142 // non-ASCII code unit, truncated to low byte 0x42 'B'
	e.Name[2] = 0
	if got := e.NameString(); got != "AB" {
		t.Fatalf("NameString() = %q, want %q (lossy low-byte truncation)", got, "AB")
	}
}

func TestEntryIsZero(t *testing.T) {
	var e Entry
	if !e.IsZero() {
		t.Fatalf("zero-value Entry should be IsZero")
	}
	e.SetTypeGUID(TypeBasicData)
	if e.IsZero() {
		t.Fatalf("Entry with a type GUID should not be IsZero")
	}
}

func TestEntryArrayCRCCoversZeroSlots(t *testing.T) {
	var t1, t2 Table
	t1.Entries[0].SetTypeGUID(TypeLinuxData)
	t2.Entries[0].SetTypeGUID(TypeLinuxData)
	t2.Entries[5].SetTypeGUID(TypeLinuxSwap) // differs only in an otherwise-zero slot
	if t1.ComputeEntryArrayCRC32() == t2.ComputeEntryArrayCRC32() {
		t.Fatalf("CRC must depend on every slot, including unused ones")
	}
}

func TestTypeName(t *testing.T) {
	if got := TypeName(TypeEFISystem); got != "EFI System" {
		t.Fatalf("TypeName(EFI System) = %q", got)
	}
	unknown := uuid.New()
	if got := TypeName(unknown); got != unknown.String() {
		t.Fatalf("TypeName(unknown) = %q, want the GUID string", got)
	}
}
