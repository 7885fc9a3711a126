// Package fatvol adapts Drive-level sector I/O to github.com/soypat/fat, the
// external FAT/exFAT filesystem library this system treats as a collaborator
// whose internals are not redesigned (§1). It furnishes the library's
// block-device contract (block read/write, erase, access mode and block
// size) over one SectorDevice per mounted volume, with no physical-drive
// index involved, and translates file, directory and filesystem requests
// into the library's calls.
package fatvol

import "errors"

// errBlockDeviceNotReady and errBlockDeviceIO are returned by BlockDevice
// when the underlying sector device cannot service a request. The
// soypat/fat library only requires these methods return a non-nil error;
// it does not define sentinel errors of its own to match against.
var (
	errBlockDeviceNotReady = errors.New("fatvol: block device not ready")
	errBlockDeviceIO       = errors.New("fatvol: block device i/o error")
)

// SectorDevice is the narrow contract this package needs from the SCSI
// block layer: sector-addressed read/write, block size, and a liveness
// flag. *scsi.Block satisfies this interface structurally.
type SectorDevice interface {
	ReadSectors(buf []byte, lba uint64, count uint32) uint32
	WriteSectors(buf []byte, lba uint64, count uint32) uint32
	SectorSize() uint32
	Ok() bool
}

// Access mode values returned by BlockDevice.Mode(), matching the
// documented semantics of fat.BlockDevice.Mode(): 0 for no connection or
// prohibited access, 1 for read-only, 3 for read-write. The upstream
// interface method returns a small unexported numeric type; since no
// exported alias was available to ground against, this package returns the
// equivalent literal values (see DESIGN.md for the assumption this rests
// on).
const (
	modeNone      = 0
	modeReadOnly  = 1
	modeReadWrite = 3
)

// BlockDevice implements the fat.BlockDevice contract over a SectorDevice,
// translating the library's block-indexed calls into LBA/count sector I/O.
type BlockDevice struct {
	dev SectorDevice
}

// NewBlockDevice wraps dev for use as a fat.BlockDevice.
func NewBlockDevice(dev SectorDevice) *BlockDevice {
	return &BlockDevice{dev: dev}
}

// ReadBlocks reads len(dst)/BlockSize blocks starting at startBlock.
func (b *BlockDevice) ReadBlocks(dst []byte, startBlock int64) (int, error) {
	bs := b.dev.SectorSize()
	if bs == 0 {
		return 0, errBlockDeviceNotReady
	}
	count := uint32(len(dst)) / bs
	if count == 0 {
		return 0, nil
	}
	n := b.dev.ReadSectors(dst[:count*bs], uint64(startBlock), count)
	if n != count {
		return 0, errBlockDeviceIO
	}
	return int(n * bs), nil
}

// WriteBlocks writes len(src)/BlockSize blocks starting at startBlock.
func (b *BlockDevice) WriteBlocks(src []byte, startBlock int64) (int, error) {
	bs := b.dev.SectorSize()
	if bs == 0 {
		return 0, errBlockDeviceNotReady
	}
	count := uint32(len(src)) / bs
	if count == 0 {
		return 0, nil
	}
	n := b.dev.WriteSectors(src[:count*bs], uint64(startBlock), count)
	if n != count {
		return 0, errBlockDeviceIO
	}
	return int(n * bs), nil
}

// EraseSectors is a no-op: the block devices this system mounts (USB Mass
// Storage over BOT) have no TRIM/erase primitive in the SCSI command set
// this package implements.
func (b *BlockDevice) EraseSectors(startBlock, numBlocks int64) error {
	return nil
}

// Mode reports read-write access while the underlying SCSI context remains
// healthy, and no-access once it has faulted.
func (b *BlockDevice) Mode() uint8 {
	if !b.dev.Ok() {
		return modeNone
	}
	return modeReadWrite
}

// BlockSize exposes the sector size the library should assume for this
// device.
func (b *BlockDevice) BlockSize() uint32 {
	return b.dev.SectorSize()
}
