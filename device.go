package fatcore

import (
	"fmt"

	"github.com/aligator/gofat/checkpoint"
	"github.com/spf13/afero"
)

// BlockDevice is the synchronous sector transport underneath a mount.
// Both calls transfer exactly count sectors, there are no partial transfers.
// Generated mock using mockgen:
//  mockgen -source=device.go -destination=device_mock.go -package fatcore
type BlockDevice interface {
	ReadSectors(sector, count uint32, buf []byte) error
	WriteSectors(sector, count uint32, buf []byte) error
}

// FileDevice adapts a file (e.g. a disk image opened via afero) to the
// BlockDevice interface with a fixed sector size.
type FileDevice struct {
	file       afero.File
	sectorSize uint32
}

// NewFileDevice creates a BlockDevice on top of the given file.
func NewFileDevice(file afero.File, sectorSize uint32) *FileDevice {
	return &FileDevice{
		file:       file,
		sectorSize: sectorSize,
	}
}

func (d *FileDevice) ReadSectors(sector, count uint32, buf []byte) error {
	size := int(count * d.sectorSize)
	if len(buf) < size {
		return checkpoint.Wrap(fmt.Errorf("buffer of %v bytes cannot hold %v sectors", len(buf), count), ErrIO)
	}

	_, err := d.file.ReadAt(buf[:size], int64(sector)*int64(d.sectorSize))
	if err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}

	return nil
}

func (d *FileDevice) WriteSectors(sector, count uint32, buf []byte) error {
	size := int(count * d.sectorSize)
	if len(buf) < size {
		return checkpoint.Wrap(fmt.Errorf("buffer of %v bytes cannot hold %v sectors", len(buf), count), ErrIO)
	}

	_, err := d.file.WriteAt(buf[:size], int64(sector)*int64(d.sectorSize))
	if err != nil {
		return checkpoint.Wrap(err, ErrIO)
	}

	return nil
}
