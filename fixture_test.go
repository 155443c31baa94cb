package fatcore

import (
	"testing"

	"github.com/spf13/afero"
)

// testGeometryFAT16 is a small FAT16 volume: one FAT sector pair, a two
// sector root directory and 98 data clusters of one sector each.
func testGeometryFAT16() Geometry {
	return Geometry{
		Type:              FAT16,
		SectorSize:        512,
		SectorsPerCluster: 1,
		FATStart:          1,
		RootStart:         3,
		DataStart:         5,
		LastCluster:       100,
	}
}

// testGeometryFAT12 is a FAT12 volume with enough clusters (700) that some
// table entries straddle a sector boundary.
func testGeometryFAT12() Geometry {
	return Geometry{
		Type:              FAT12,
		SectorSize:        512,
		SectorsPerCluster: 1,
		FATStart:          1,
		RootStart:         4,
		DataStart:         6,
		LastCluster:       700,
	}
}

// newTestMount mounts a zero-filled in-memory disk image with the given
// geometry. A zeroed table means every cluster starts out free.
func newTestMount(t *testing.T, geo Geometry) *Mount {
	t.Helper()

	file, err := afero.NewMemMapFs().Create("disk.img")
	if err != nil {
		t.Fatalf("could not create image: %v", err)
	}

	totalSectors := geo.DataStart + (geo.LastCluster-ClusterFirst)*geo.SectorsPerCluster
	if err := file.Truncate(int64(totalSectors) * int64(geo.SectorSize)); err != nil {
		t.Fatalf("could not size image: %v", err)
	}

	mount, err := NewMount(NewFileDevice(file, geo.SectorSize), geo)
	if err != nil {
		t.Fatalf("could not mount image: %v", err)
	}

	return mount
}

// mustSet seeds a table entry and fails the test on error.
func mustSet(t *testing.T, m *Mount, cl, next uint32) {
	t.Helper()
	if err := m.SetCluster(cl, next); err != nil {
		t.Fatalf("could not seed cluster %v: %v", cl, err)
	}
}

// mustNext reads a table entry and fails the test on error.
func mustNext(t *testing.T, m *Mount, cl uint32) uint32 {
	t.Helper()
	next, err := m.NextCluster(cl)
	if err != nil {
		t.Fatalf("could not read cluster %v: %v", cl, err)
	}
	return next
}

// seedChain links the given clusters into a chain terminated by an
// end-of-chain marker.
func seedChain(t *testing.T, m *Mount, clusters ...uint32) {
	t.Helper()
	for i := 0; i < len(clusters)-1; i++ {
		mustSet(t, m, clusters[i], clusters[i+1])
	}
	mustSet(t, m, clusters[len(clusters)-1], m.geo.eofCluster())
}

// chainOf walks a chain from head and returns all its clusters.
// The walk is capped so a test against a broken chain fails instead of
// spinning forever.
func chainOf(t *testing.T, m *Mount, head uint32) []uint32 {
	t.Helper()
	var chain []uint32
	cl := head
	for !m.isEOC(cl) {
		chain = append(chain, cl)
		cl = mustNext(t, m, cl)
		if len(chain) > int(m.geo.LastCluster) {
			t.Fatalf("chain from %v does not terminate", head)
		}
	}
	return chain
}

// testEntry builds a live directory record.
func testEntry(t *testing.T, name string, attr byte, cluster uint16, size uint32) DirEntry {
	t.Helper()
	short, err := NewShortName(name)
	if err != nil {
		t.Fatalf("bad test entry name %q: %v", name, err)
	}
	return DirEntry{
		Name:    short,
		Attr:    attr,
		Cluster: cluster,
		Size:    size,
	}
}

// deletedEntry builds a tombstoned directory record.
func deletedEntry() DirEntry {
	var e DirEntry
	e.Name[0] = nameDeleted
	for i := 1; i < len(e.Name); i++ {
		e.Name[i] = ' '
	}
	return e
}

// writeDirSlots writes the given records into one directory sector, all
// following slots stay empty.
func writeDirSlots(t *testing.T, m *Mount, sector uint32, entries ...DirEntry) {
	t.Helper()
	buf := make([]byte, m.geo.SectorSize)
	for i, entry := range entries {
		encodeDirEntry(buf[i*DirEntrySize:(i+1)*DirEntrySize], entry)
	}
	if err := m.dev.WriteSectors(sector, 1, buf); err != nil {
		t.Fatalf("could not write directory sector %v: %v", sector, err)
	}
}

// fillDirSector fills a whole directory sector with live records so it has
// no reusable slot left.
func fillDirSector(t *testing.T, m *Mount, sector uint32, prefix string) {
	t.Helper()
	entries := make([]DirEntry, m.entriesPerSector())
	for i := range entries {
		entries[i] = testEntry(t, prefix+string(rune('A'+i%26))+string(rune('A'+i/26)), AttrArchive, 0, 0)
	}
	writeDirSlots(t, m, sector, entries...)
}
