package fatcore

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/aligator/gofat/checkpoint"
)

// InvalidSector marks a Node which has no physical backing on disk, like the
// synthesized "." and ".." records of the root directory.
const InvalidSector = ^uint32(0)

// Node pairs a directory record with the physical location it was read
// from, so a later rewrite can be written back without re-searching.
type Node struct {
	Dirent DirEntry

	// Sector and Offset locate the record on disk. Sector is InvalidSector
	// for synthesized records.
	Sector uint32
	Offset uint32
}

// Synthesized reports whether the node has no on-disk backing.
func (n *Node) Synthesized() bool {
	return n.Sector == InvalidSector
}

func decodeDirEntry(data []byte) DirEntry {
	var entry DirEntry
	// The buffer always holds a full slot, binary.Read can not fail here.
	_ = binary.Read(bytes.NewReader(data), binary.LittleEndian, &entry)
	return entry
}

func encodeDirEntry(data []byte, entry DirEntry) {
	var buf bytes.Buffer
	// A DirEntry has fixed size, binary.Write can not fail here.
	_ = binary.Write(&buf, binary.LittleEndian, &entry)
	copy(data, buf.Bytes())
}

// readDirSector loads one directory sector into the mount's scratch buffer.
func (m *Mount) readDirSector(sector uint32) error {
	return m.dev.ReadSectors(sector, 1, m.dirBuf)
}

// writeDirSector stores the mount's scratch buffer to one directory sector.
func (m *Mount) writeDirSector(sector uint32) error {
	return m.dev.WriteSectors(sector, 1, m.dirBuf)
}

// lookupDirent scans one directory sector for a record with the given
// on-disk name. An empty record terminates the whole search with
// ErrNotFound because used slots always precede the first never-used slot.
// errNextSector means the caller should go on with the next sector.
func (m *Mount) lookupDirent(sector uint32, name [11]byte, node *Node) error {
	if err := m.readDirSector(sector); err != nil {
		return err
	}

	for i := uint32(0); i < m.entriesPerSector(); i++ {
		entry := decodeDirEntry(m.dirBuf[i*DirEntrySize:])
		if entry.IsEmpty() {
			return checkpoint.From(ErrNotFound)
		}
		if !entry.IsVolumeLabel() && entry.Name == name {
			node.Dirent = entry
			node.Sector = sector
			node.Offset = i * DirEntrySize
			m.log.WithField("sector", sector).Debug("lookup dirent: found")
			return nil
		}
	}

	return errNextSector
}

// LookupNode finds the record with the given file name in the directory
// starting at cluster dir, ClusterRoot meaning the root directory. The
// returned node remembers where the record lives so it can be rewritten
// with PutNode later.
func (m *Mount) LookupNode(dir uint32, name string) (Node, error) {
	var node Node

	fatName, err := NewShortName(name)
	if err != nil {
		return node, checkpoint.Wrap(err, ErrNotFound)
	}

	m.log.WithField("cluster", dir).WithField("name", name).Debug("lookup node")

	if dir == ClusterRoot {
		// Search the entry in the fixed root directory range.
		for sector := m.geo.RootStart; sector < m.geo.DataStart; sector++ {
			err := m.lookupDirent(sector, fatName, &node)
			if !errors.Is(err, errNextSector) {
				return node, err
			}
		}
		return node, checkpoint.From(ErrNotFound)
	}

	// Search the entry in the subdirectory chain.
	cl := dir
	for !m.isEOC(cl) {
		sector := m.clusterToSector(cl)
		for i := uint32(0); i < m.geo.SectorsPerCluster; i++ {
			err := m.lookupDirent(sector+i, fatName, &node)
			if !errors.Is(err, errNextSector) {
				return node, err
			}
		}
		next, err := m.NextCluster(cl)
		if err != nil {
			return node, err
		}
		cl = next
	}

	return node, checkpoint.From(ErrNotFound)
}

// getDirent scans one directory sector for the record at the given target
// index. Only live, non-volume-label records count towards the index,
// deleted slots are skipped without incrementing it. An empty record means
// the index is out of range for the whole directory.
func (m *Mount) getDirent(sector uint32, target int, index *int, node *Node) error {
	if err := m.readDirSector(sector); err != nil {
		return err
	}

	for i := uint32(0); i < m.entriesPerSector(); i++ {
		entry := decodeDirEntry(m.dirBuf[i*DirEntrySize:])
		if entry.IsEmpty() {
			return checkpoint.From(ErrNotFound)
		}
		if entry.IsLive() && !entry.IsVolumeLabel() {
			if *index == target {
				node.Dirent = entry
				node.Sector = sector
				node.Offset = i * DirEntrySize
				m.log.WithField("index", target).Debug("get dirent: found")
				return nil
			}
			*index = *index + 1
		}
	}

	return errNextSector
}

// synthesizedDot builds the "." and ".." pseudo-records of the root
// directory which do not exist on disk.
func synthesizedDot(name string, cl uint32) Node {
	node := Node{Sector: InvalidSector}
	for i := range node.Dirent.Name {
		node.Dirent.Name[i] = ' '
	}
	copy(node.Dirent.Name[:], name)
	node.Dirent.Attr = AttrSubdir
	node.Dirent.Cluster = uint16(cl)
	return node
}

// GetNode returns the record at the given index of the directory starting
// at cluster dir, ClusterRoot meaning the root directory. For the root
// directory the indices 0 and 1 yield synthesized "." and ".." records, the
// physical records start at index 2. Returns ErrNotFound when the index is
// past the last live record.
func (m *Mount) GetNode(dir uint32, index int) (Node, error) {
	var node Node
	current := 0

	m.log.WithField("index", index).Debug("get node")

	if dir == ClusterRoot {
		if index == 0 {
			return synthesizedDot(".", dir), nil
		}
		if index == 1 {
			return synthesizedDot("..", dir), nil
		}

		for sector := m.geo.RootStart; sector < m.geo.DataStart; sector++ {
			err := m.getDirent(sector, index-2, &current, &node)
			if !errors.Is(err, errNextSector) {
				return node, err
			}
		}
		return node, checkpoint.From(ErrNotFound)
	}

	cl := dir
	for !m.isEOC(cl) {
		sector := m.clusterToSector(cl)
		for i := uint32(0); i < m.geo.SectorsPerCluster; i++ {
			err := m.getDirent(sector+i, index, &current, &node)
			if !errors.Is(err, errNextSector) {
				return node, err
			}
		}
		next, err := m.NextCluster(cl)
		if err != nil {
			return node, err
		}
		cl = next
	}

	return node, checkpoint.From(ErrNotFound)
}

// addDirent puts the node's record into the first deleted or empty slot of
// one directory sector and persists the sector. errNextSector means the
// sector is full and the caller should go on with the next one.
func (m *Mount) addDirent(sector uint32, node *Node) error {
	if err := m.readDirSector(sector); err != nil {
		return err
	}

	for i := uint32(0); i < m.entriesPerSector(); i++ {
		entry := decodeDirEntry(m.dirBuf[i*DirEntrySize:])
		if entry.IsDeleted() || entry.IsEmpty() {
			encodeDirEntry(m.dirBuf[i*DirEntrySize:i*DirEntrySize+DirEntrySize], node.Dirent)
			node.Sector = sector
			node.Offset = i * DirEntrySize
			m.log.WithField("sector", sector).Debug("add dirent: slot found")
			return m.writeDirSector(sector)
		}
	}

	return errNextSector
}

// AddNode inserts the node's record into the first reusable slot of the
// directory starting at cluster dir, ClusterRoot meaning the root
// directory. If a subdirectory has no slot left its chain is expanded by
// one zero-filled cluster and the insert is retried once there. The root
// directory is a fixed range and can not grow, a full root yields
// ErrNotFound. On success the node remembers the slot it was written to.
func (m *Mount) AddNode(dir uint32, node *Node) error {
	m.log.WithField("cluster", dir).Debug("add node")

	if dir == ClusterRoot {
		for sector := m.geo.RootStart; sector < m.geo.DataStart; sector++ {
			err := m.addDirent(sector, node)
			if !errors.Is(err, errNextSector) {
				return err
			}
		}
		return checkpoint.From(ErrNotFound)
	}

	cl := dir
	tail := dir
	for !m.isEOC(cl) {
		sector := m.clusterToSector(cl)
		for i := uint32(0); i < m.geo.SectorsPerCluster; i++ {
			err := m.addDirent(sector+i, node)
			if !errors.Is(err, errNextSector) {
				return err
			}
		}
		tail = cl
		next, err := m.NextCluster(cl)
		if err != nil {
			return err
		}
		cl = next
	}

	// No slot found, add one more cluster to the directory.
	m.log.Debug("add node: expand dir")
	next, err := m.ExpandDir(tail)
	if err != nil {
		return err
	}

	// Initialize the fresh cluster so all its slots read as empty. The
	// zeroed slots have to be on disk before any of them is reused.
	for i := range m.dirBuf {
		m.dirBuf[i] = 0
	}
	sector := m.clusterToSector(next)
	for i := uint32(0); i < m.geo.SectorsPerCluster; i++ {
		if err := m.writeDirSector(sector + i); err != nil {
			return err
		}
	}

	// Try again in the first sector of the new cluster.
	return m.addDirent(m.clusterToSector(next), node)
}

// PutNode rewrites the node's record at its remembered location: the owning
// sector is reloaded, the record bytes are overwritten and the sector is
// persisted. Used to commit mutations made to a node after it was obtained
// by LookupNode, GetNode or AddNode.
func (m *Mount) PutNode(node *Node) error {
	if node.Synthesized() {
		return checkpoint.From(ErrNotFound)
	}

	if err := m.readDirSector(node.Sector); err != nil {
		return err
	}

	encodeDirEntry(m.dirBuf[node.Offset:node.Offset+DirEntrySize], node.Dirent)

	return m.writeDirSector(node.Sector)
}
