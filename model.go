// File model contains the structs which match the direct on-disk structures
// of the FAT filesystem.

package fatcore

// The supported FAT variants. FAT32 is recognized during geometry detection
// but rejected as unsupported.
const (
	FAT12 = iota
	FAT16
	FAT32
)

// Reserved cluster numbers. Cluster 0 doubles as the "root directory" handle
// for the directory entry manager and as the FREE marker inside the table.
const (
	ClusterRoot  uint32 = 0
	ClusterFree  uint32 = 0
	ClusterFirst uint32 = 2
)

// DirEntrySize is the size in bytes of a single directory record slot.
const DirEntrySize = 32

// Attribute bits of a directory record.
const (
	AttrReadOnly  byte = 0x01
	AttrHidden    byte = 0x02
	AttrSystem    byte = 0x04
	AttrVolumeID  byte = 0x08
	AttrSubdir    byte = 0x10
	AttrArchive   byte = 0x20
)

// Name field sentinels which encode the record state.
const (
	nameEmpty   byte = 0x00
	nameDeleted byte = 0xE5
)

// DirEntry is one 32 byte directory record as stored on disk.
// All multi-byte fields are little-endian.
type DirEntry struct {
	Name     [11]byte
	Attr     byte
	Reserved [10]byte
	Time     uint16
	Date     uint16
	Cluster  uint16
	Size     uint32
}

// IsEmpty reports whether this slot was never used. An empty record also
// terminates any directory scan, all following slots are unused as well.
func (e *DirEntry) IsEmpty() bool {
	return e.Name[0] == nameEmpty
}

// IsDeleted reports whether this slot holds a tombstoned, reusable record.
func (e *DirEntry) IsDeleted() bool {
	return e.Name[0] == nameDeleted
}

// IsLive reports whether this record describes a valid file or directory,
// including the volume label pseudo-entry.
func (e *DirEntry) IsLive() bool {
	return !e.IsEmpty() && !e.IsDeleted()
}

// IsVolumeLabel reports whether this record is the volume label pseudo-entry
// which is excluded from name matching and index enumeration.
func (e *DirEntry) IsVolumeLabel() bool {
	return e.Attr&AttrVolumeID == AttrVolumeID
}

// IsSubdir reports whether this record describes a directory.
func (e *DirEntry) IsSubdir() bool {
	return e.Attr&AttrSubdir == AttrSubdir
}
