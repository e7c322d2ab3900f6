package gpt

import "github.com/google/uuid"

// Well-known GPT partition type GUIDs, taken from the UEFI
// specification's appendix, restricted to the entries relevant to a
// portable, OS-agnostic partitioning library.
var (
	TypeUnused        = uuid.MustParse("00000000-0000-0000-0000-000000000000")
	TypeEFISystem     = uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	TypeBIOSBoot      = uuid.MustParse("21686148-6449-6E6F-744E-656564454649")
	TypeMSReserved    = uuid.MustParse("E3C9E316-0B5C-4DB8-817D-F92DF00215AE")
	TypeBasicData     = uuid.MustParse("EBD0A0A2-B9E5-4433-87C0-68B6B72699C7")
	TypeLinuxData     = uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4")
	TypeLinuxSwap     = uuid.MustParse("0657FD6D-A4AB-43C4-84E5-0933C84B4F4F")
	TypeLinuxLVM      = uuid.MustParse("E6D6D379-F507-44C2-A23C-238F2A3DF928")
	TypeLinuxRAID     = uuid.MustParse("A19D880F-08B6-4E7D-97E5-D73DE3AD17DB")
)

var typeNames = map[uuid.UUID]string{
	TypeUnused:     "unused",
	TypeEFISystem:  "EFI System",
	TypeBIOSBoot:   "BIOS boot",
	TypeMSReserved: "Microsoft reserved",
	TypeBasicData:  "Microsoft basic data",
	TypeLinuxData:  "Linux filesystem data",
	TypeLinuxSwap:  "Linux swap",
	TypeLinuxLVM:   "Linux LVM",
	TypeLinuxRAID:  "Linux RAID",
}

// TypeName returns the conventional human-readable name for a GPT
// partition type GUID, or the GUID's own string form if it isn't one of
// the well-known values above.
func TypeName(g uuid.UUID) string {
	if name, ok := typeNames[g]; ok {
		return name
	}
	return g.String()
}
