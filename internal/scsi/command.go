package scsi

import "encoding/binary"

// SCSI opcodes used by the commands this package builds.
const (
	opTestUnitReady  = 0x00
	opRequestSense   = 0x03
	opReadCapacity10 = 0x25
	opRead10         = 0x28
	opWrite10        = 0x2A
	opRead16         = 0x88
	opWrite16        = 0x8A
	opServiceAction  = 0x9E
	svcReadCapacity16 = 0x10
)

// Command is the tagged-variant replacement (per SPEC_FULL §9) for the
// original's virtual command hierarchy: each kind knows how to render its
// own CDB (6, 10 or 16 bytes; EncodeCBW zero-pads it to 16), which
// direction its data phase moves, and how many bytes
// that phase transfers.
type Command interface {
	CDB() []byte
	Direction() Direction
	DataLen() uint32
}

// TestUnitReady has no data phase; §4.4 step 1 uses it for the media-ready
// handshake.
type TestUnitReady struct{}

func (TestUnitReady) CDB() []byte      { return []byte{opTestUnitReady, 0, 0, 0, 0, 0} }
func (TestUnitReady) Direction() Direction { return DirNone }
func (TestUnitReady) DataLen() uint32  { return 0 }

// RequestSense reads sense data following a failed command.
type RequestSense struct {
	AllocLen uint8
}

func NewRequestSense() RequestSense { return RequestSense{AllocLen: 18} }

func (r RequestSense) CDB() []byte {
	return []byte{opRequestSense, 0, 0, 0, r.AllocLen, 0}
}
func (RequestSense) Direction() Direction { return DirIn }
func (r RequestSense) DataLen() uint32    { return uint32(r.AllocLen) }

// ReadCapacity10 returns the last LBA and block size as 32-bit fields;
// ReadCapacity16 must be used when the 32-bit range is exhausted.
type ReadCapacity10 struct{}

func (ReadCapacity10) CDB() []byte {
	cdb := make([]byte, 10)
	cdb[0] = opReadCapacity10
	return cdb
}
func (ReadCapacity10) Direction() Direction { return DirIn }
func (ReadCapacity10) DataLen() uint32      { return 8 }

// ReadCapacity16 is the service-action-in variant used when the device
// reports the 0xFFFFFFFF/0 sentinel to ReadCapacity10.
type ReadCapacity16 struct {
	AllocLen uint32
}

func NewReadCapacity16() ReadCapacity16 { return ReadCapacity16{AllocLen: 32} }

func (r ReadCapacity16) CDB() []byte {
	cdb := make([]byte, 16)
	cdb[0] = opServiceAction
	cdb[1] = svcReadCapacity16
	binary.BigEndian.PutUint32(cdb[10:14], r.AllocLen)
	return cdb
}
func (ReadCapacity16) Direction() Direction { return DirIn }
func (r ReadCapacity16) DataLen() uint32    { return r.AllocLen }

// Read10 reads Blocks sectors of BlockSize bytes starting at LBA, LBA
// limited to 32 bits.
type Read10 struct {
	LBA       uint32
	Blocks    uint16
	BlockSize uint32
}

func (r Read10) CDB() []byte {
	cdb := make([]byte, 10)
	cdb[0] = opRead10
	binary.BigEndian.PutUint32(cdb[2:6], r.LBA)
	binary.BigEndian.PutUint16(cdb[7:9], r.Blocks)
	return cdb
}
func (Read10) Direction() Direction { return DirIn }
func (r Read10) DataLen() uint32    { return uint32(r.Blocks) * r.BlockSize }

// Write10 is the OUT-direction counterpart of Read10.
type Write10 struct {
	LBA       uint32
	Blocks    uint16
	BlockSize uint32
}

func (w Write10) CDB() []byte {
	cdb := make([]byte, 10)
	cdb[0] = opWrite10
	binary.BigEndian.PutUint32(cdb[2:6], w.LBA)
	binary.BigEndian.PutUint16(cdb[7:9], w.Blocks)
	return cdb
}
func (Write10) Direction() Direction { return DirOut }
func (w Write10) DataLen() uint32    { return uint32(w.Blocks) * w.BlockSize }

// Read16 is the 64-bit-LBA promotion of Read10, dispatched automatically by
// Block.ReadSectors when lba+count exceeds 0xFFFFFFFF.
type Read16 struct {
	LBA       uint64
	Blocks    uint32
	BlockSize uint32
}

func (r Read16) CDB() []byte {
	cdb := make([]byte, 16)
	cdb[0] = opRead16
	binary.BigEndian.PutUint64(cdb[2:10], r.LBA)
	binary.BigEndian.PutUint32(cdb[10:14], r.Blocks)
	return cdb
}
func (Read16) Direction() Direction { return DirIn }
func (r Read16) DataLen() uint32    { return r.Blocks * r.BlockSize }

// Write16 is the 64-bit-LBA promotion of Write10.
type Write16 struct {
	LBA       uint64
	Blocks    uint32
	BlockSize uint32
}

func (w Write16) CDB() []byte {
	cdb := make([]byte, 16)
	cdb[0] = opWrite16
	binary.BigEndian.PutUint64(cdb[2:10], w.LBA)
	binary.BigEndian.PutUint32(cdb[10:14], w.Blocks)
	return cdb
}
func (Write16) Direction() Direction { return DirOut }
func (w Write16) DataLen() uint32    { return w.Blocks * w.BlockSize }
