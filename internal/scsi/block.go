package scsi

import (
	"encoding/binary"
	"time"

	"github.com/sirupsen/logrus"
)

// Sense keys from a REQUEST SENSE response's byte 2, low nibble.
const (
	senseNoSense        = 0x00
	senseRecovered      = 0x01
	senseNotReady       = 0x02
	senseMedium         = 0x03
	senseHardware       = 0x04
	senseIllegalRequest = 0x05
	senseUnitAttention  = 0x06
	senseDataProtect    = 0x07
	senseBlank          = 0x08
	senseAborted        = 0x0B
	senseCopyAborted    = 0x0A
	senseVolumeOverflow = 0x0D
	senseMiscompare     = 0x0E
)

// notReadyRetryDelay is the sleep applied when RequestSense reports
// NOT READY, giving slow media time to spin up before a single retry.
const notReadyRetryDelay = 3 * time.Second

// maxLBA32 is the largest LBA expressible in a 10-byte CDB; a request whose
// lba+count exceeds it is promoted to the 16-byte command variants.
const maxLBA32 = 0xFFFFFFFF

// Block is the capacity-aware SCSI block layer (C4): media-ready handshake,
// capacity discovery with automatic ReadCapacity16 promotion, and
// read/write dispatch that automatically selects 10- or 16-byte CDBs.
type Block struct {
	Device *Device

	Capacity  uint64
	BlockSize uint32
	ok        bool

	log *logrus.Entry
}

// NewBlock runs the media-ready handshake and capacity discovery for dev,
// returning a Block whose Ok() reflects whether the unit is usable.
func NewBlock(dev *Device, log *logrus.Entry) *Block {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	b := &Block{Device: dev, log: log}
	b.ok = b.mediaReady() && b.discoverCapacity()
	return b
}

// Ok reports whether the block layer successfully negotiated a ready,
// capacity-known unit.
func (b *Block) Ok() bool { return b.ok }

// SectorSize reports the negotiated sector size, for callers (such as the
// FAT adapter) that need it through an interface rather than the field.
func (b *Block) SectorSize() uint32 { return b.BlockSize }

// mediaReady implements the §4.4 construction protocol steps 1-2.
func (b *Block) mediaReady() bool {
	csw, err := b.Device.TransferCommand(TestUnitReady{}, nil)
	if err == nil && csw.Status == StatusPassed {
		return true
	}

	sense := make([]byte, 18)
	rsCSW, err := b.Device.TransferCommand(NewRequestSense(), sense)
	if err != nil || rsCSW.Status != StatusPassed {
		return false
	}
	senseKey := sense[2] & 0x0F

	switch senseKey {
	case senseNoSense, senseRecovered, senseUnitAttention:
		return true
	case senseNotReady:
		time.Sleep(notReadyRetryDelay)
		csw, err := b.Device.TransferCommand(TestUnitReady{}, nil)
		return err == nil && csw.Status == StatusPassed
	case senseAborted:
		csw, err := b.Device.TransferCommand(TestUnitReady{}, nil)
		return err == nil && csw.Status == StatusPassed
	case senseMedium, senseHardware, senseIllegalRequest, senseDataProtect,
		senseBlank, senseCopyAborted, senseVolumeOverflow, senseMiscompare:
		return false
	default:
		return false
	}
}

// discoverCapacity implements §4.4 steps 3-4, including the documented
// resolution of the last_lba/capacity Open Question: this implementation
// follows the original source's `capacity = last_lba * block_size` (see
// DESIGN.md), not `(last_lba+1) * block_size`.
func (b *Block) discoverCapacity() bool {
	buf := make([]byte, 8)
	csw, err := b.Device.TransferCommand(ReadCapacity10{}, buf)
	if err != nil || csw.Status != StatusPassed {
		return false
	}
	lastLBA := binary.BigEndian.Uint32(buf[0:4])
	blockBytes := binary.BigEndian.Uint32(buf[4:8])

	var capacityLBA uint64
	if lastLBA == maxLBA32 || lastLBA == 0 {
		buf16 := make([]byte, 32)
		csw, err := b.Device.TransferCommand(NewReadCapacity16(), buf16)
		if err != nil || csw.Status != StatusPassed {
			return false
		}
		capacityLBA = binary.BigEndian.Uint64(buf16[0:8])
		blockBytes = binary.BigEndian.Uint32(buf16[8:12])
	} else {
		capacityLBA = uint64(lastLBA)
	}

	if capacityLBA == 0 || blockBytes == 0 {
		return false
	}
	b.BlockSize = blockBytes
	b.Capacity = capacityLBA * uint64(blockBytes)
	return true
}

// needs16 reports whether lba+count exceeds the 32-bit range a 10-byte CDB
// can address, per §4.4 and testable property S3.
func needs16(lba uint64, count uint32) bool {
	return lba+uint64(count) > maxLBA32
}

// ReadSectors reads count sectors starting at lba into buf, automatically
// dispatching Read16 when the address range exceeds 32 bits. It returns the
// number of sectors actually transferred; a failing CSW yields zero, which
// callers must treat as an error.
func (b *Block) ReadSectors(buf []byte, lba uint64, count uint32) uint32 {
	if !b.ok {
		return 0
	}
	var csw CSW
	var err error
	if needs16(lba, count) {
		csw, err = b.Device.TransferCommand(Read16{LBA: lba, Blocks: count, BlockSize: b.BlockSize}, buf)
	} else {
		csw, err = b.Device.TransferCommand(Read10{LBA: uint32(lba), Blocks: uint16(count), BlockSize: b.BlockSize}, buf)
	}
	if err != nil || csw.Status != StatusPassed {
		return 0
	}
	return count
}

// WriteSectors is the OUT-direction counterpart of ReadSectors.
func (b *Block) WriteSectors(buf []byte, lba uint64, count uint32) uint32 {
	if !b.ok {
		return 0
	}
	var csw CSW
	var err error
	if needs16(lba, count) {
		csw, err = b.Device.TransferCommand(Write16{LBA: lba, Blocks: count, BlockSize: b.BlockSize}, buf)
	} else {
		csw, err = b.Device.TransferCommand(Write10{LBA: uint32(lba), Blocks: uint16(count), BlockSize: b.BlockSize}, buf)
	}
	if err != nil || csw.Status != StatusPassed {
		return 0
	}
	return count
}
