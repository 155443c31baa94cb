package fatcore

import (
	"encoding/binary"

	"github.com/aligator/gofat/checkpoint"
)

// entryLocation computes where the table entry for cl lives: the absolute
// sector, the byte offset inside the FAT window and whether the entry
// straddles a sector boundary. Only FAT12 entries can straddle, their 12 bit
// values are packed two-per-three-bytes.
func (m *Mount) entryLocation(cl uint32) (sector, offset uint32, border bool) {
	var byteOffset uint32
	if m.geo.Type == FAT16 {
		byteOffset = cl * 2
	} else {
		byteOffset = cl * 3 / 2
		border = byteOffset%m.geo.SectorSize == m.geo.SectorSize-1
	}

	return m.geo.FATStart + byteOffset/m.geo.SectorSize, byteOffset % m.geo.SectorSize, border
}

// readEntry loads the FAT window for cl into the mount's FAT buffer.
// For a FAT12 border entry one more sector is read to complete the window.
func (m *Mount) readEntry(cl uint32) error {
	sector, _, border := m.entryLocation(cl)

	if err := m.dev.ReadSectors(sector, 1, m.fatBuf[:m.geo.SectorSize]); err != nil {
		return err
	}

	if !border {
		return nil
	}

	return m.dev.ReadSectors(sector+1, 1, m.fatBuf[m.geo.SectorSize:])
}

// writeEntry stores the FAT window for cl from the mount's FAT buffer.
func (m *Mount) writeEntry(cl uint32) error {
	sector, _, border := m.entryLocation(cl)

	if err := m.dev.WriteSectors(sector, 1, m.fatBuf[:m.geo.SectorSize]); err != nil {
		return err
	}

	if !border {
		return nil
	}

	return m.dev.WriteSectors(sector+1, 1, m.fatBuf[m.geo.SectorSize:])
}

// NextCluster returns the table value for cl, which is either the next
// cluster of its chain, ClusterFree or an end-of-chain marker.
func (m *Mount) NextCluster(cl uint32) (uint32, error) {
	if err := m.readEntry(cl); err != nil {
		return 0, err
	}

	_, offset, _ := m.entryLocation(cl)
	val := binary.LittleEndian.Uint16(m.fatBuf[offset : offset+2])

	// A FAT12 entry shares its 16 bit word with the neighbor entry. The odd
	// cluster owns the upper 12 bits, the even cluster the lower ones.
	if m.geo.Type == FAT12 {
		if cl&1 == 1 {
			val >>= 4
		} else {
			val &= 0x0FFF
		}
	}

	return uint32(val), nil
}

// SetCluster sets the table value for cl, masked to the entry width.
// For FAT12 the 4 bits belonging to the packed neighbor entry are preserved
// by read-modify-write.
func (m *Mount) SetCluster(cl, next uint32) error {
	if err := m.readEntry(cl); err != nil {
		return err
	}

	_, offset, _ := m.entryLocation(cl)

	val := uint16(next) & m.geo.entryMask()
	if m.geo.Type == FAT12 {
		tmp := binary.LittleEndian.Uint16(m.fatBuf[offset : offset+2])
		if cl&1 == 1 {
			val <<= 4
			val |= tmp & 0x000F
		} else {
			val |= tmp & 0xF000
		}
	}
	binary.LittleEndian.PutUint16(m.fatBuf[offset:offset+2], val)

	return m.writeEntry(cl)
}

// AllocCluster finds a free cluster by a first-fit scan starting just after
// scanStart, wrapping from the last valid cluster back to the first
// allocatable one. If scanStart is ClusterFree the remembered scan position
// of the mount is used instead. The found cluster becomes the new scan
// position. Returns ErrNoSpace if the whole ring holds no free cluster.
//
// The table entry of the returned cluster is still ClusterFree, callers
// link it or mark it end-of-chain themselves.
func (m *Mount) AllocCluster(scanStart uint32) (uint32, error) {
	if scanStart == ClusterFree {
		scanStart = m.freeScan
	}

	m.log.WithField("start", scanStart).Debug("alloc cluster")

	cl := scanStart + 1
	if cl >= m.geo.LastCluster {
		cl = ClusterFirst
	}
	for cl != scanStart {
		next, err := m.NextCluster(cl)
		if err != nil {
			return 0, err
		}
		if next == ClusterFree {
			m.log.WithField("cluster", cl).Debug("alloc cluster: free cluster found")
			m.freeScan = cl
			return cl, nil
		}
		cl++
		if cl >= m.geo.LastCluster {
			cl = ClusterFirst
		}
	}

	return 0, checkpoint.From(ErrNoSpace)
}

// FreeClusters walks the chain from start and sets every visited cluster,
// including the terminal one, back to ClusterFree.
//
// A failure mid-walk leaves the chain truncated: everything visited so far
// is already marked free on disk and is not rolled back.
func (m *Mount) FreeClusters(start uint32) error {
	cl := start
	if cl < ClusterFirst {
		return checkpoint.From(ErrInvalidCluster)
	}

	for !m.isEOC(cl) {
		next, err := m.NextCluster(cl)
		if err != nil {
			return err
		}
		if err := m.SetCluster(cl, ClusterFree); err != nil {
			return err
		}
		cl = next
	}

	return nil
}

// SeekCluster returns the cluster which holds the byte at offset of a file
// starting at cluster start. The chain ending before the offset is reached
// is an I/O error, the device holds a shorter chain than the caller assumed.
func (m *Mount) SeekCluster(start, offset uint32) (uint32, error) {
	if start > m.geo.LastCluster {
		return 0, checkpoint.From(ErrIO)
	}

	cl := start
	hops := offset / m.geo.ClusterSize()
	for i := uint32(0); i < hops; i++ {
		next, err := m.NextCluster(cl)
		if err != nil {
			return 0, err
		}
		if m.isEOC(next) {
			return 0, checkpoint.From(ErrIO)
		}
		cl = next
	}

	return cl, nil
}

// ExpandFile grows the chain of a file to hold size bytes and returns the
// head cluster. A head of ClusterFree means the file had no cluster yet, in
// that case a fresh head is allocated. Existing links are reused, only the
// missing tail is allocated and spliced in, terminated by an end-of-chain
// marker.
func (m *Mount) ExpandFile(head, size uint32) (uint32, error) {
	alloc := false
	clusters := (size + m.geo.ClusterSize() - 1) / m.geo.ClusterSize()

	// Allocate the first cluster if the file was previously empty.
	if head == ClusterFree {
		var err error
		head, err = m.AllocCluster(ClusterFree)
		if err != nil {
			return ClusterFree, err
		}
		alloc = true
	}
	current := head

	for i := uint32(1); i < clusters; i++ {
		next, err := m.NextCluster(current)
		if err != nil {
			return head, err
		}
		if alloc || next >= m.geo.eofCluster() {
			next, err = m.AllocCluster(current)
			if err != nil {
				return head, err
			}
			alloc = true
		}
		if alloc {
			if err := m.SetCluster(current, next); err != nil {
				return head, err
			}
		}
		current = next
	}

	if alloc {
		if err := m.SetCluster(current, m.geo.eofCluster()); err != nil {
			return head, err
		}
	}

	m.log.WithField("size", size).Debug("expand file")
	return head, nil
}

// ExpandDir grows a subdirectory chain by exactly one cluster: it walks to
// the tail of the chain containing cl, allocates a new cluster, links the
// old tail to it and marks it end-of-chain. The new cluster is returned.
//
// The root directory is a fixed sector range, not a chain, and can not be
// expanded. The directory entry manager checks for root before calling.
func (m *Mount) ExpandDir(cl uint32) (uint32, error) {
	// Find the last cluster of the chain.
	for {
		next, err := m.NextCluster(cl)
		if err != nil {
			return ClusterFree, err
		}
		if m.isEOC(next) {
			break
		}
		cl = next
	}

	next, err := m.AllocCluster(cl)
	if err != nil {
		return ClusterFree, err
	}

	if err := m.SetCluster(cl, next); err != nil {
		return ClusterFree, err
	}

	if err := m.SetCluster(next, m.geo.eofCluster()); err != nil {
		return ClusterFree, err
	}

	return next, nil
}

// FreeCount returns the number of free clusters on the volume by scanning
// the whole table, the way a statfs implementation reports free space.
func (m *Mount) FreeCount() (uint32, error) {
	var free uint32
	for cl := ClusterFirst; cl < m.geo.LastCluster; cl++ {
		next, err := m.NextCluster(cl)
		if err != nil {
			return 0, err
		}
		if next == ClusterFree {
			free++
		}
	}

	return free, nil
}
