package fatcore

import (
	"github.com/aligator/gofat/checkpoint"
	"github.com/sirupsen/logrus"
)

// Mount is the long-lived state of one mounted volume.
//
// Every table and directory entry operation reads into and writes from the
// two scratch buffers below, so at most one operation may be in flight per
// Mount at any time. The Mount does no locking itself, callers which share a
// Mount between goroutines have to hold an exclusive lock for the duration
// of any sequence of calls that must appear atomic (e.g. lookup-then-add or
// alloc-then-link).
type Mount struct {
	dev BlockDevice
	geo Geometry

	// fatBuf holds one FAT access window. It covers two sectors because a
	// FAT12 entry may straddle a sector boundary.
	fatBuf []byte

	// dirBuf holds the directory sector currently being scanned or updated.
	dirBuf []byte

	// freeScan remembers where the last successful cluster allocation ended
	// and biases the next free-cluster search.
	freeScan uint32

	log logrus.FieldLogger
}

// NewMount creates the runtime state for a volume with an already
// established geometry, typically from ReadGeometry.
func NewMount(dev BlockDevice, geo Geometry) (*Mount, error) {
	if err := geo.Validate(); err != nil {
		return nil, checkpoint.From(err)
	}

	return &Mount{
		dev:      dev,
		geo:      geo,
		fatBuf:   make([]byte, 2*geo.SectorSize),
		dirBuf:   make([]byte, geo.SectorSize),
		freeScan: ClusterFirst,
		log:      logrus.StandardLogger(),
	}, nil
}

// Geometry returns the mount geometry.
func (m *Mount) Geometry() Geometry {
	return m.geo
}

// SetLogger replaces the logger used for debug traces.
func (m *Mount) SetLogger(log logrus.FieldLogger) {
	m.log = log
}

// isEOC reports whether the given table value marks the end of a chain.
func (m *Mount) isEOC(cl uint32) bool {
	return cl >= m.geo.eofCluster()
}

// clusterToSector returns the first sector of the given data cluster.
func (m *Mount) clusterToSector(cl uint32) uint32 {
	return m.geo.DataStart + (cl-ClusterFirst)*m.geo.SectorsPerCluster
}

// entriesPerSector returns the number of directory record slots per sector.
func (m *Mount) entriesPerSector() uint32 {
	return m.geo.SectorSize / DirEntrySize
}
