package fatcore

import (
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/spf13/afero"
)

// deviceTestsError is just an error injected through the mocked device.
var deviceTestsError = errors.New("a super error")

func newMockMount(t *testing.T, geo Geometry, dev BlockDevice) *Mount {
	t.Helper()
	mount, err := NewMount(dev, geo)
	if err != nil {
		t.Fatalf("could not mount: %v", err)
	}
	return mount
}

func TestNextClusterPropagatesDeviceError(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	mockDev := NewMockBlockDevice(mockCtrl)
	mockDev.EXPECT().
		ReadSectors(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(deviceTestsError)

	m := newMockMount(t, testGeometryFAT16(), mockDev)

	_, err := m.NextCluster(5)
	if !errors.Is(err, deviceTestsError) {
		t.Errorf("NextCluster() error = %v, want the device error", err)
	}
}

// A FAT12 entry on the last byte of a FAT sector spans two physical
// sectors, reading it has to load both into the window.
func TestNextClusterFAT12BorderLoadsTwoSectors(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	geo := testGeometryFAT12()
	mockDev := NewMockBlockDevice(mockCtrl)

	// Cluster 341: byte offset 511, so the low byte of the packed word is
	// the last byte of FAT sector 1 and the high byte is the first byte of
	// FAT sector 2.
	first := mockDev.EXPECT().
		ReadSectors(uint32(1), uint32(1), gomock.Any()).
		DoAndReturn(func(sector, count uint32, buf []byte) error {
			buf[511] = 0xAB
			return nil
		})
	mockDev.EXPECT().
		ReadSectors(uint32(2), uint32(1), gomock.Any()).
		DoAndReturn(func(sector, count uint32, buf []byte) error {
			buf[0] = 0xCD
			return nil
		}).
		After(first)

	m := newMockMount(t, geo, mockDev)

	got, err := m.NextCluster(341)
	if err != nil {
		t.Fatalf("NextCluster() error = %v", err)
	}
	// Cluster 341 is odd and owns the upper 12 bits of the word 0xCDAB.
	if got != 0xCDA {
		t.Errorf("NextCluster() = %#x, want 0xcda", got)
	}
}

func TestSetClusterFAT12BorderStoresTwoSectors(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	geo := testGeometryFAT12()
	mockDev := NewMockBlockDevice(mockCtrl)

	gomock.InOrder(
		mockDev.EXPECT().ReadSectors(uint32(1), uint32(1), gomock.Any()).Return(nil),
		mockDev.EXPECT().ReadSectors(uint32(2), uint32(1), gomock.Any()).Return(nil),
		mockDev.EXPECT().WriteSectors(uint32(1), uint32(1), gomock.Any()).Return(nil),
		mockDev.EXPECT().WriteSectors(uint32(2), uint32(1), gomock.Any()).Return(nil),
	)

	m := newMockMount(t, geo, mockDev)

	if err := m.SetCluster(341, 0x123); err != nil {
		t.Fatalf("SetCluster() error = %v", err)
	}
}

// A failure of the second sector of a border window aborts the operation.
func TestReadEntryBorderSecondSectorError(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	geo := testGeometryFAT12()
	mockDev := NewMockBlockDevice(mockCtrl)

	gomock.InOrder(
		mockDev.EXPECT().ReadSectors(uint32(1), uint32(1), gomock.Any()).Return(nil),
		mockDev.EXPECT().ReadSectors(uint32(2), uint32(1), gomock.Any()).Return(deviceTestsError),
	)

	m := newMockMount(t, geo, mockDev)

	_, err := m.NextCluster(341)
	if !errors.Is(err, deviceTestsError) {
		t.Errorf("NextCluster() error = %v, want the device error", err)
	}
}

func TestFileDevice(t *testing.T) {
	file, err := afero.NewMemMapFs().Create("disk.img")
	if err != nil {
		t.Fatalf("could not create image: %v", err)
	}
	if err := file.Truncate(4 * 512); err != nil {
		t.Fatalf("could not size image: %v", err)
	}

	dev := NewFileDevice(file, 512)

	out := make([]byte, 2*512)
	for i := range out {
		out[i] = byte(i)
	}
	if err := dev.WriteSectors(1, 2, out); err != nil {
		t.Fatalf("WriteSectors() error = %v", err)
	}

	in := make([]byte, 2*512)
	if err := dev.ReadSectors(1, 2, in); err != nil {
		t.Fatalf("ReadSectors() error = %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("byte %v = %v after round trip, want %v", i, in[i], out[i])
		}
	}

	if err := dev.ReadSectors(0, 1, make([]byte, 100)); !errors.Is(err, ErrIO) {
		t.Errorf("ReadSectors() with short buffer error = %v, want ErrIO", err)
	}
}
