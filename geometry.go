package fatcore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/aligator/gofat/checkpoint"
)

// BPB is the BIOS parameter block at the start of the boot sector.
type BPB struct {
	BSJumpBoot          [3]byte
	BSOEMName           [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   byte
	ReservedSectorCount uint16
	NumFATs             byte
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               byte
	FATSize16           uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	FATSpecificData     [54]byte
}

// Geometry holds the mount constants derived from the boot sector.
// All table and directory entry operations are expressed in terms of these
// values, the boot sector itself is never consulted again after mounting.
type Geometry struct {
	// Type is one of FAT12 or FAT16.
	Type uint8

	// SectorSize is the device sector size in bytes.
	SectorSize uint32

	// SectorsPerCluster is the number of sectors in one data cluster.
	SectorsPerCluster uint32

	// FATStart is the first sector of the (first) file allocation table.
	FATStart uint32

	// RootStart is the first sector of the fixed root directory range.
	RootStart uint32

	// DataStart is the first sector of the data region. The root directory
	// occupies [RootStart, DataStart).
	DataStart uint32

	// LastCluster is the first cluster number past the allocatable range,
	// so valid data clusters are [ClusterFirst, LastCluster).
	LastCluster uint32
}

// ClusterSize returns the size of one cluster in bytes.
func (g Geometry) ClusterSize() uint32 {
	return g.SectorSize * g.SectorsPerCluster
}

// entryMask is the width mask applied to every value stored in the table.
func (g Geometry) entryMask() uint16 {
	if g.Type == FAT12 {
		return 0x0FFF
	}
	return 0xFFFF
}

// eofCluster is the lowest table value that marks the end of a chain.
func (g Geometry) eofCluster() uint32 {
	if g.Type == FAT12 {
		return 0x0FF8
	}
	return 0xFFF8
}

// Validate checks the geometry for internal consistency.
func (g Geometry) Validate() error {
	if g.Type != FAT12 && g.Type != FAT16 {
		return checkpoint.From(ErrUnsupported)
	}
	if g.SectorSize == 0 || g.SectorSize&(g.SectorSize-1) != 0 {
		return checkpoint.Wrap(fmt.Errorf("invalid sector size %v", g.SectorSize), ErrUnsupported)
	}
	if g.SectorsPerCluster == 0 {
		return checkpoint.Wrap(fmt.Errorf("invalid sectors per cluster %v", g.SectorsPerCluster), ErrUnsupported)
	}
	if g.FATStart == 0 || g.RootStart <= g.FATStart || g.DataStart < g.RootStart {
		return checkpoint.Wrap(fmt.Errorf("invalid sector layout fat=%v root=%v data=%v", g.FATStart, g.RootStart, g.DataStart), ErrUnsupported)
	}
	if g.LastCluster <= ClusterFirst {
		return checkpoint.Wrap(fmt.Errorf("invalid cluster count, last cluster %v", g.LastCluster), ErrUnsupported)
	}
	return nil
}

// ReadGeometry reads the boot sector from the device and derives the mount
// geometry from it. The first sector is always read with an assumed size of
// 512 bytes which is enough to cover the whole BPB, the real sector size is
// then taken from the BPB itself.
func ReadGeometry(dev BlockDevice) (Geometry, error) {
	buf := make([]byte, 4096)
	if err := dev.ReadSectors(0, 1, buf); err != nil {
		return Geometry{}, err
	}

	bpb := BPB{}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &bpb); err != nil {
		return Geometry{}, checkpoint.Wrap(err, ErrUnsupported)
	}

	// Check for valid jump instructions to make sure it is really a FAT
	// boot sector.
	if !(bpb.BSJumpBoot[0] == 0xEB && bpb.BSJumpBoot[2] == 0x90) && bpb.BSJumpBoot[0] != 0xE9 {
		return Geometry{}, checkpoint.Wrap(fmt.Errorf("no valid jump instructions at the beginning"), ErrUnsupported)
	}

	// FAT only supports 512, 1024, 2048 and 4096.
	if bpb.BytesPerSector != 512 && bpb.BytesPerSector != 1024 && bpb.BytesPerSector != 2048 && bpb.BytesPerSector != 4096 {
		return Geometry{}, checkpoint.Wrap(fmt.Errorf("invalid sector size %v", bpb.BytesPerSector), ErrUnsupported)
	}

	// Sectors per cluster has to be a power of two and greater than 0.
	// Also the whole cluster size should not be more than 32K.
	if bpb.SectorsPerCluster == 0 ||
		bpb.SectorsPerCluster&(bpb.SectorsPerCluster-1) != 0 ||
		uint32(bpb.BytesPerSector)*uint32(bpb.SectorsPerCluster) > 32*1024 {
		return Geometry{}, checkpoint.Wrap(fmt.Errorf("invalid sectors per cluster %v", bpb.SectorsPerCluster), ErrUnsupported)
	}

	if bpb.ReservedSectorCount == 0 {
		return Geometry{}, checkpoint.Wrap(fmt.Errorf("invalid reserved sector count"), ErrUnsupported)
	}

	if bpb.NumFATs == 0 {
		return Geometry{}, checkpoint.Wrap(fmt.Errorf("invalid FAT count"), ErrUnsupported)
	}

	totalSectors := uint32(bpb.TotalSectors16)
	if totalSectors == 0 {
		totalSectors = bpb.TotalSectors32
	}
	if totalSectors == 0 {
		return Geometry{}, checkpoint.Wrap(fmt.Errorf("invalid total sector count"), ErrUnsupported)
	}

	if bpb.FATSize16 == 0 {
		// A zero 16 bit FAT size means the size lives in the FAT32 part of
		// the boot sector.
		return Geometry{}, checkpoint.Wrap(fmt.Errorf("FAT32 layout"), ErrUnsupported)
	}

	// Determine the FAT variant from the count of data clusters. This
	// calculation is pulled directly from the specification and is the only
	// proper way to do it.
	rootDirSectors := (uint32(bpb.RootEntryCount)*DirEntrySize + uint32(bpb.BytesPerSector) - 1) / uint32(bpb.BytesPerSector)
	fatSectors := uint32(bpb.NumFATs) * uint32(bpb.FATSize16)
	dataSectors := totalSectors - (uint32(bpb.ReservedSectorCount) + fatSectors + rootDirSectors)
	countClusters := dataSectors / uint32(bpb.SectorsPerCluster)

	var fatType uint8
	switch {
	case countClusters < 4085:
		fatType = FAT12
	case countClusters < 65525:
		fatType = FAT16
	default:
		return Geometry{}, checkpoint.Wrap(fmt.Errorf("FAT32 is not supported"), ErrUnsupported)
	}

	geo := Geometry{
		Type:              fatType,
		SectorSize:        uint32(bpb.BytesPerSector),
		SectorsPerCluster: uint32(bpb.SectorsPerCluster),
		FATStart:          uint32(bpb.ReservedSectorCount),
		RootStart:         uint32(bpb.ReservedSectorCount) + fatSectors,
		DataStart:         uint32(bpb.ReservedSectorCount) + fatSectors + rootDirSectors,
		LastCluster:       countClusters + ClusterFirst,
	}

	return geo, geo.Validate()
}
