// Package gpt implements the GUID Partition Table on-disk layout: the
// primary and backup headers, the partition entry array, and the CRC-32
// checks that bind them together.
package gpt

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/google/uuid"
)

// HeaderSize is the fixed, defined size of a GPT header, independent of
// the sector size it is stored in.
const HeaderSize = 92

// EntrySize is the fixed size of one partition entry.
const EntrySize = 128

// ItemCount is the number of entries in a standard GPT partition array.
const ItemCount = 128

// MinEntryArraySize is the minimum size, in bytes, reserved for the
// partition entry array by the UEFI specification (128 entries * 128
// bytes), regardless of how many entries are actually in use.
const MinEntryArraySize = ItemCount * EntrySize

// Revision is the only header revision this package writes or accepts.
const Revision uint32 = 0x00010000

// Signature is the fixed 8-byte magic at the start of every GPT header.
var Signature = [8]byte{'E', 'F', 'I', ' ', 'P', 'A', 'R', 'T'}

// Header is the fixed 92-byte GPT header, exactly as laid out on disk.
// DiskGUID is stored in its raw, already mixed-endian on-disk form; use
// DecodeGUID/EncodeGUID to convert to and from a uuid.UUID.
type Header struct {
	Signature                [8]byte
	Revision                 uint32
	HeaderSize               uint32
	HeaderCRC32              uint32
	Reserved                 uint32
	MyLBA                    uint64
	AlternateLBA             uint64
	FirstUsableLBA           uint64
	LastUsableLBA            uint64
	DiskGUID                 [16]byte
	PartitionEntryLBA        uint64
	NumberOfPartitionEntries uint32
	SizeOfPartitionEntry     uint32
	PartitionEntryArrayCRC32 uint32
}

// ReadFrom decodes a Header from the first HeaderSize bytes read from r.
func (h *Header) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return int64(n), err
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, h); err != nil {
		return int64(n), err
	}
	return int64(n), nil
}

// WriteTo encodes the header as HeaderSize bytes.
func (h Header) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return 0, err
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// bytes returns the header's HeaderSize-byte on-disk encoding.
func (h Header) bytes() []byte {
	var buf bytes.Buffer
	_, _ = h.WriteTo(&buf)
	return buf.Bytes()
}

// ComputeHeaderCRC32 returns the header's own CRC-32, computed over its
// on-disk encoding with the HeaderCRC32 field itself zeroed, as required
// by the UEFI specification.
func (h Header) ComputeHeaderCRC32() uint32 {
	h.HeaderCRC32 = 0
	return crc32.ChecksumIEEE(h.bytes())
}

// Valid reports whether the header's static fields are well-formed:
// signature, revision, header size (>=, accepting future header
// extensions rather than requiring exact equality), entry size, entry
// count, and the header's own CRC.
func (h Header) Valid() bool {
	if h.Signature != Signature {
		return false
	}
	if h.Revision != Revision {
		return false
	}
	if h.HeaderSize < HeaderSize {
		return false
	}
	if h.SizeOfPartitionEntry != EntrySize {
		return false
	}
	if h.NumberOfPartitionEntries > ItemCount {
		return false
	}
	return h.HeaderCRC32 == h.ComputeHeaderCRC32()
}

// DiskGUIDValue decodes the header's DiskGUID field into a uuid.UUID.
func (h Header) DiskGUIDValue() uuid.UUID {
	return DecodeGUID(h.DiskGUID)
}

// SetDiskGUID encodes g into the header's DiskGUID field.
func (h *Header) SetDiskGUID(g uuid.UUID) {
	h.DiskGUID = EncodeGUID(g)
}
