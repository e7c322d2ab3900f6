// Package scan implements the partition scanner: a state machine that
// walks a block device's MBR and, if present, GPT, yielding one
// partition.Partition at a time rather than building a partition.Table up
// front.
package scan

import (
	"bytes"
	"strconv"

	"github.com/golang/glog"

	"github.com/mikee47/DiskStorage/blockdevice"
	"github.com/mikee47/DiskStorage/diskerr"
	"github.com/mikee47/DiskStorage/fsident"
	"github.com/mikee47/DiskStorage/gpt"
	"github.com/mikee47/DiskStorage/mbr"
	"github.com/mikee47/DiskStorage/partition"
)

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

type state int

const (
	stateIdle state = iota
	stateMBR
	stateGPT
	stateDone
	stateError
)

// Scanner walks a device's partition tables, yielding one
// partition.Partition per call to Next. It builds no partition.Table:
// callers that want one build it themselves by calling Next in a loop.
// In GPT mode it keeps the primary entry array it walks in memory.
type Scanner struct {
	dev *blockdevice.Device
	st  state
	err error

	// MBR state: the entries of the table currently being walked (either
	// the boot sector's primary table, or an extended partition's EBR),
	// the base LBA those entries are relative to, and the next index to
	// yield.
	mbrEntries []mbr.PartitionRecord
	mbrBaseLBA uint64
	mbrIndex   int
	mbrCount   int // monotonic mbr<N> counter across the whole scan

	// GPT state: the primary table being walked and which entry is next.
	gptTable *gpt.Table
	gptIndex uint32
}

// New returns a Scanner over dev, ready for its first call to Next.
func New(dev *blockdevice.Device) *Scanner {
	return &Scanner{dev: dev, st: stateIdle}
}

// Err returns the error that ended the scan, or nil if the scan finished
// normally or hasn't finished.
func (s *Scanner) Err() error {
	return s.err
}

func (s *Scanner) fail(err error) (*partition.Partition, error) {
	s.st = stateError
	s.err = err
	return nil, err
}

// Next returns the next partition found on the device, or (nil, nil) once
// the scan is complete. Callers should stop calling Next as soon as it
// returns a nil partition, whether or not the error is nil.
func (s *Scanner) Next() (*partition.Partition, error) {
	for {
		switch s.st {
		case stateIdle:
			p, err := s.start()
			if err != nil {
				return s.fail(err)
			}
			if p != nil {
				return p, nil
			}
			// No superfloppy filesystem: start has switched to GPT or
			// ordinary MBR scanning, so loop into that state.
		case stateMBR:
			p, done, err := s.nextMBR()
			if err != nil {
				return s.fail(err)
			}
			if done {
				s.st = stateDone
				return nil, nil
			}
			if p != nil {
				return p, nil
			}
		case stateGPT:
			p, done, err := s.nextGPT()
			if err != nil {
				return s.fail(err)
			}
			if done {
				s.st = stateDone
				return nil, nil
			}
			if p != nil {
				return p, nil
			}
		case stateDone, stateError:
			return nil, s.err
		}
	}
}

// start reads sector 0. If it is a recognisable filesystem boot sector
// (a "superfloppy" with no partition table at all), it yields a single
// synthetic whole-device partition and ends the scan. If it is a
// protective MBR, it switches to GPT scanning. Otherwise it switches to
// ordinary MBR scanning.
func (s *Scanner) start() (*partition.Partition, error) {
	sector := make([]byte, s.dev.SectorSize())
	if err := s.dev.Read(0, sector); err != nil {
		return nil, err
	}

	if res, ok := fsident.Identify(sector); ok {
		glog.V(1).Infof("scan: superfloppy filesystem %s found, no partition table", res.Type)
		s.st = stateDone
		return &partition.Partition{
			Offset:  0,
			Size:    uint64(s.dev.Size()),
			Name:    res.Label,
			SysType: partition.SysType(res.Type),
		}, nil
	}

	m, err := mbr.Read(bytesReader(sector))
	if err == nil && m.Signature == mbr.BootSignature && m.PartitionRecord[0].OSType == mbr.GPTProtective {
		glog.V(1).Info("scan: protective MBR found, switching to GPT")
		return nil, s.beginGPT()
	}

	s.st = stateMBR
	s.mbrEntries = m.PartitionRecord[:]
	s.mbrBaseLBA = 0
	s.mbrIndex = 0
	return nil, nil
}

// nextMBR yields the next non-empty record from the current MBR/EBR
// table, recursing into an extended partition's own table (however many
// levels deep the chain goes) rather than returning it as a partition.
func (s *Scanner) nextMBR() (p *partition.Partition, done bool, err error) {
	for s.mbrIndex < len(s.mbrEntries) {
		rec := s.mbrEntries[s.mbrIndex]
		s.mbrIndex++
		if rec.Empty() {
			continue
		}
		offsetLBA := s.mbrBaseLBA + uint64(rec.StartingLBA)
		if rec.OSType == mbr.SIExtended {
			ebr, err := s.readEBR(offsetLBA)
			if err != nil {
				return nil, false, err
			}
			s.mbrEntries = ebr
			s.mbrBaseLBA = offsetLBA
			s.mbrIndex = 0
			continue
		}

		sectorSize := uint64(s.dev.SectorSize())
		offset := offsetLBA * sectorSize
		size := uint64(rec.SizeInLBA) * sectorSize
		sysType := partition.Unknown
		if buf, err := s.readSector(offset); err == nil {
			if res, ok := fsident.Identify(buf); ok {
				sysType = partition.SysType(res.Type)
			}
		}
		s.mbrCount++
		return &partition.Partition{
			Offset:       offset,
			Size:         size,
			Name:         mbrName(s.mbrCount),
			SysType:      sysType,
			SysIndicator: rec.OSType,
		}, false, nil
	}
	return nil, true, nil
}

func mbrName(n int) string {
	return "mbr" + strconv.Itoa(n)
}

func (s *Scanner) readSector(offset uint64) ([]byte, error) {
	buf := make([]byte, s.dev.SectorSize())
	if err := s.dev.Read(int64(offset), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Scanner) readEBR(lba uint64) ([]mbr.PartitionRecord, error) {
	buf, err := s.readSector(lba * uint64(s.dev.SectorSize()))
	if err != nil {
		return nil, err
	}
	m, err := mbr.Read(bytesReader(buf))
	if err != nil {
		return nil, err
	}
	return m.PartitionRecord[:], nil
}

// beginGPT reads the primary GPT header and entry array and switches
// scanning into GPT mode. It consults only the primary: a damaged
// primary is reported as an error rather than silently repaired from
// the backup.
func (s *Scanner) beginGPT() error {
	t, err := s.readGPTTable(1)
	if err != nil {
		return err
	}
	if !t.Valid() {
		glog.Errorf("scan: primary GPT header/entry array invalid")
		return diskerr.ReadFailure
	}
	s.gptTable = t
	s.gptIndex = 0
	s.st = stateGPT
	return nil
}

// readGPTTable reads the header at headerLBA and its full entry array.
func (s *Scanner) readGPTTable(headerLBA uint64) (*gpt.Table, error) {
	sectorSize := uint64(s.dev.SectorSize())
	h, err := s.readHeaderAt(headerLBA)
	if err != nil {
		return nil, err
	}
	t := &gpt.Table{Header: h}

	entryBytes := uint64(h.NumberOfPartitionEntries) * uint64(h.SizeOfPartitionEntry)
	buf := make([]byte, entryBytes)
	if err := s.dev.Read(int64(h.PartitionEntryLBA*sectorSize), buf); err != nil {
		return nil, err
	}
	r := bytesReader(buf)
	for i := uint32(0); i < h.NumberOfPartitionEntries && i < gpt.ItemCount; i++ {
		if _, err := t.Entries[i].ReadFrom(r); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (s *Scanner) readHeaderAt(lba uint64) (gpt.Header, error) {
	sectorSize := uint64(s.dev.SectorSize())
	buf := make([]byte, gpt.HeaderSize)
	if err := s.dev.Read(int64(lba*sectorSize), buf); err != nil {
		return gpt.Header{}, err
	}
	var h gpt.Header
	if _, err := h.ReadFrom(bytesReader(buf)); err != nil {
		return gpt.Header{}, err
	}
	return h, nil
}

// nextGPT yields the next non-zero entry from the GPT table.
func (s *Scanner) nextGPT() (p *partition.Partition, done bool, err error) {
	sectorSize := uint64(s.dev.SectorSize())
	for s.gptIndex < s.gptTable.Header.NumberOfPartitionEntries && s.gptIndex < gpt.ItemCount {
		e := s.gptTable.Entries[s.gptIndex]
		s.gptIndex++
		if e.IsZero() {
			continue
		}
		offset := e.StartingLBA * sectorSize
		size := (e.EndingLBA - e.StartingLBA + 1) * sectorSize
		sysType := partition.Unknown
		if buf, err := s.readSector(offset); err == nil {
			if res, ok := fsident.Identify(buf); ok {
				sysType = partition.SysType(res.Type)
			}
		}
		return &partition.Partition{
			Offset:     offset,
			Size:       size,
			Name:       e.NameString(),
			SysType:    sysType,
			TypeGUID:   e.TypeGUIDValue(),
			UniqueGUID: e.UniqueGUIDValue(),
		}, false, nil
	}
	return nil, true, nil
}
