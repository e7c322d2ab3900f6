package gpt

import (
	"bytes"
	"encoding/binary"
	"io"
	"unicode/utf16"

	"github.com/google/uuid"
)

// nameLength is the number of UTF-16 code units in a partition entry's
// name field (36 code units * 2 bytes = 72 bytes, matching the UEFI
// specification's PartitionName field).
const nameLength = 36

// Entry is one fixed 128-byte GPT partition entry. TypeGUID and
// UniqueGUID hold the raw, already mixed-endian on-disk bytes; use
// TypeGUIDValue/UniqueGUIDValue and SetTypeGUID/SetUniqueGUID to work with
// uuid.UUID values.
type Entry struct {
	TypeGUID    [16]byte
	UniqueGUID  [16]byte
	StartingLBA uint64
	EndingLBA   uint64
	Attributes  uint64
	Name        [nameLength]uint16
}

// IsZero reports whether the entry is unused: an unused slot is
// identified by a zero partition type GUID.
func (e Entry) IsZero() bool {
	return e.TypeGUID == [16]byte{}
}

// TypeGUIDValue decodes the entry's partition type GUID.
func (e Entry) TypeGUIDValue() uuid.UUID { return DecodeGUID(e.TypeGUID) }

// UniqueGUIDValue decodes the entry's unique partition GUID.
func (e Entry) UniqueGUIDValue() uuid.UUID { return DecodeGUID(e.UniqueGUID) }

// SetTypeGUID encodes g as the entry's partition type GUID.
func (e *Entry) SetTypeGUID(g uuid.UUID) { e.TypeGUID = EncodeGUID(g) }

// SetUniqueGUID encodes g as the entry's unique partition GUID.
func (e *Entry) SetUniqueGUID(g uuid.UUID) { e.UniqueGUID = EncodeGUID(g) }

// SetName encodes s as the entry's UTF-16LE name, truncating at
// nameLength code units.
func (e *Entry) SetName(s string) {
	units := utf16.Encode([]rune(s))
	if len(units) > nameLength {
		units = units[:nameLength]
	}
	e.Name = [nameLength]uint16{}
	copy(e.Name[:], units)
}

// NameString decodes the entry's name field by truncating at the first
// zero code unit, then mapping each remaining code unit to a single
// byte by keeping only its low 8 bits. This is deliberately lossy for
// non-ASCII names but round-trips exactly for the ASCII names this
// package itself writes.
func (e Entry) NameString() string {
	buf := make([]byte, 0, nameLength)
	for _, c := range e.Name {
		if c == 0 {
			break
		}
		buf = append(buf, byte(c))
	}
	return string(buf)
}

// ReadFrom decodes an Entry from the first EntrySize bytes read from r.
func (e *Entry) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, EntrySize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return int64(n), err
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, e); err != nil {
		return int64(n), err
	}
	return int64(n), nil
}

// WriteTo encodes the entry as EntrySize bytes.
func (e Entry) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, e); err != nil {
		return 0, err
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// EncodeGUID converts g to its on-disk mixed-endian byte representation:
// the first three fields (a 32-bit and two 16-bit values) are
// little-endian, the last two (an 8-byte sequence) are left as-is.
func EncodeGUID(g uuid.UUID) [16]byte {
	var out [16]byte
	binary.LittleEndian.PutUint32(out[0:4], binary.BigEndian.Uint32(g[0:4]))
	binary.LittleEndian.PutUint16(out[4:6], binary.BigEndian.Uint16(g[4:6]))
	binary.LittleEndian.PutUint16(out[6:8], binary.BigEndian.Uint16(g[6:8]))
	copy(out[8:], g[8:])
	return out
}

// DecodeGUID converts raw on-disk mixed-endian bytes to a uuid.UUID.
func DecodeGUID(raw [16]byte) uuid.UUID {
	var g uuid.UUID
	binary.BigEndian.PutUint32(g[0:4], binary.LittleEndian.Uint32(raw[0:4]))
	binary.BigEndian.PutUint16(g[4:6], binary.LittleEndian.Uint16(raw[4:6]))
	binary.BigEndian.PutUint16(g[6:8], binary.LittleEndian.Uint16(raw[6:8]))
	copy(g[8:], raw[8:])
	return g
}
