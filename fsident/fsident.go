// Package fsident identifies the filesystem described by a candidate boot
// sector: FAT12, FAT16, FAT32 or exFAT, by the same plausibility checks
// the original scanner used, without mounting or parsing the filesystem
// itself.
package fsident

import "encoding/binary"

// Type is a recognised (or unrecognised) filesystem kind.
type Type int

const (
	Unknown Type = iota
	FAT12
	FAT16
	FAT32
	ExFAT
)

func (t Type) String() string {
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

// maxFAT12Clusters is the cluster-count boundary at or below which a FAT
// volume is FAT12 rather than FAT16, exactly the threshold the original scanner
// used.
const maxFAT12Clusters = 0xFF5

// bootSignatureOffset is the fixed location of the 0x55 0xAA marker shared by FAT and exFAT boot sectors.
const (
	bootSignatureOffset = 510
)

// Result describes what Identify found in a boot sector.
type Result struct {
	Type Type
	// Size is the filesystem's self-reported volume size in bytes, 0 if
	// the filesystem does not report one directly (FAT12/16 report it via
	// the sector/cluster counts; this is filled in by Identify).
	Size uint64
	// ClusterSize is the filesystem's cluster size in bytes.
	ClusterSize uint32
	// SectorSize is the filesystem's reported sector size in bytes.
	SectorSize uint32
	// Label is the decoded volume label, trimmed of trailing spaces, if
	// the filesystem carries one directly in its boot sector.
	Label string
}

func validBootSignature(sector []byte) bool {
	return len(sector) >= bootSignatureOffset+2 &&
		sector[bootSignatureOffset] == 0x55 && sector[bootSignatureOffset+1] == 0xAA
}

func validJumpBoot(b byte) bool {
	return b == 0xEB || b == 0xE9 || b == 0xE8
}

func trimLabel(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == ' ' {
		end--
	}
	return string(b[:end])
}

// Identify inspects the first sector of a candidate volume and reports
// the filesystem it recognises, if any. sector must be at least 512
// bytes; only the first 512 are examined, matching every boot sector
// format this package recognises.
func Identify(sector []byte) (Result, bool) {
	if len(sector) < 512 {
		return Result{}, false
	}
	if r, ok := identifyExFAT(sector); ok {
		return r, true
	}
	if !validJumpBoot(sector[0]) || !validBootSignature(sector) {
		return Result{}, false
	}
	if r, ok := identifyFAT32(sector); ok {
		return r, true
	}
	return identifyFATLegacy(sector)
}

func identifyExFAT(sector []byte) (Result, bool) {
	if string(sector[3:11]) != "EXFAT   " {
		return Result{}, false
	}
	if !validBootSignature(sector) {
		return Result{}, false
	}
	bytesPerSectorShift := sector[108]
	sectorsPerClusterShift := sector[109]
	volumeLength := binary.LittleEndian.Uint64(sector[72:80])
	sectorSize := uint32(1) << bytesPerSectorShift
	clusterSize := sectorSize << sectorsPerClusterShift
	return Result{
		Type:        ExFAT,
		Size:        volumeLength * uint64(sectorSize),
		ClusterSize: clusterSize,
		SectorSize:  sectorSize,
	}, true
}

func identifyFAT32(sector []byte) (Result, bool) {
	if string(sector[82:90]) != "FAT32   " {
		return Result{}, false
	}
	return fatResult(sector, FAT32, 71, 90)
}

// identifyFATLegacy applies the plausibility checks the original scanner
// used for pre-FAT32 volumes, which carry no reliable filesystem-type
// string in their BPB.
func identifyFATLegacy(sector []byte) (Result, bool) {
	sectorSize := binary.LittleEndian.Uint16(sector[11:13])
	secPerClus := sector[13]
	reserved := binary.LittleEndian.Uint16(sector[14:16])
	numFATs := sector[16]
	dirEntries := binary.LittleEndian.Uint16(sector[17:19])
	totalSect16 := binary.LittleEndian.Uint16(sector[19:21])
	fatLength := binary.LittleEndian.Uint16(sector[22:24])
	totalSect32 := binary.LittleEndian.Uint32(sector[32:36])

	if !validSectorSize(sectorSize) || !validSectorsPerCluster(secPerClus) || reserved == 0 {
		return Result{}, false
	}
	if numFATs != 1 && numFATs != 2 {
		return Result{}, false
	}
	if dirEntries == 0 || fatLength == 0 {
		return Result{}, false
	}
	if !(totalSect16 >= 128 || totalSect32 >= 0x10000) {
		return Result{}, false
	}

	totalSectors := uint64(totalSect16)
	if totalSectors == 0 {
		totalSectors = uint64(totalSect32)
	}
	size := totalSectors * uint64(sectorSize)
	clusterSize := uint32(sectorSize) * uint32(secPerClus)
	numClusters := size / uint64(clusterSize)

	t := FAT16
	if numClusters <= maxFAT12Clusters {
		t = FAT12
	}

	return Result{
		Type:        t,
		Size:        size,
		ClusterSize: clusterSize,
		SectorSize:  uint32(sectorSize),
		Label:       trimLabel(sector[43:54]),
	}, true
}

func validSectorSize(s uint16) bool {
	switch s {
	case 512, 1024, 2048, 4096:
		return true
	default:
		return false
	}
}

// validSectorsPerCluster reports whether b is a non-zero power of two, the
// only values a FAT boot sector's sectors-per-cluster field may hold.
func validSectorsPerCluster(b byte) bool {
	return b != 0 && b&(b-1) == 0
}

// fatResult builds a Result for a FAT32 boot sector, where labelOffset
// points at the 11-byte volume label; fsTypeOffset is unused by the
// computation but kept so callers can document which offset they
// already matched against the "FAT32   " string.
func fatResult(sector []byte, t Type, labelOffset int, _ int) (Result, bool) {
	sectorSize := binary.LittleEndian.Uint16(sector[11:13])
	secPerClus := sector[13]
	totalSect32 := binary.LittleEndian.Uint32(sector[32:36])
	fatSize32 := binary.LittleEndian.Uint32(sector[36:40])
	if !validSectorSize(sectorSize) || !validSectorsPerCluster(secPerClus) || fatSize32 == 0 {
		return Result{}, false
	}
	size := uint64(totalSect32) * uint64(sectorSize)
	clusterSize := uint32(sectorSize) * uint32(secPerClus)
	return Result{
		Type:        t,
		Size:        size,
		ClusterSize: clusterSize,
		SectorSize:  uint32(sectorSize),
		Label:       trimLabel(sector[labelOffset : labelOffset+11]),
	}, true
}
