package fatcore

import "errors"

// These errors may be returned by the table and directory entry operations.
// Device errors from the BlockDevice are wrapped into ErrIO but stay
// reachable through errors.Is / errors.As.
var (
	ErrNoSpace        = errors.New("no free cluster available")
	ErrNotFound       = errors.New("entry not found")
	ErrInvalidCluster = errors.New("invalid cluster number")
	ErrInvalidName    = errors.New("invalid file name")
	ErrUnsupported    = errors.New("unsupported FAT variant")
	ErrIO             = errors.New("device i/o failure")
)

// errNextSector tells a sector-by-sector directory scan to go on with the
// next sector. It never crosses the package boundary.
var errNextSector = errors.New("continue scan in next sector")
