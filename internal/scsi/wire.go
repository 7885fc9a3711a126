// Package scsi implements the USB Mass Storage Bulk-Only Transport state
// machine and the SCSI transparent command set layered over it: CBW/CSW
// framing, stall and phase-error recovery, capacity negotiation, and
// automatic promotion to 16-byte CDBs for large addresses.
package scsi

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
)

// Wire-level constants from the Bulk-Only Transport and SCSI block command
// set specifications.
const (
	CBWSize      = 31
	CBWSignature = 0x43425355
	CSWSize      = 13
	CSWSignature = 0x53425355
	CommandTag   = 0xDEADBEEF

	flagDataIn  = 0x80
	flagDataOut = 0x00
)

// Direction describes which way the data phase of a command moves.
type Direction uint8

const (
	DirNone Direction = iota
	DirIn
	DirOut
)

// cbwHeader is the fixed 15-byte prefix of every Command Block Wrapper. The
// 16-byte command block follows immediately and is packed separately since
// its multi-byte operands (LBA, block counts) are big-endian while this
// header is little-endian throughout — restruct operates on one endianness
// per call, so the two halves are packed independently and concatenated.
type cbwHeader struct {
	Signature uint32
	Tag       uint32
	DataLen   uint32
	Flags     uint8
	LUN       uint8
	CBLen     uint8
}

// EncodeCBW serializes a command into the 31-byte wire image described in
// §6: 15-byte little-endian header followed by the zero-padded 16-byte CDB.
func EncodeCBW(lun uint8, dataLen uint32, dir Direction, cdb []byte) ([]byte, error) {
	if len(cdb) > 16 {
		return nil, fmt.Errorf("scsi: cdb length %d exceeds 16", len(cdb))
	}
	flags := uint8(flagDataOut)
	if dir == DirIn {
		flags = flagDataIn
	}
	header := cbwHeader{
		Signature: CBWSignature,
		Tag:       CommandTag,
		DataLen:   dataLen,
		Flags:     flags,
		LUN:       lun,
		CBLen:     uint8(len(cdb)),
	}
	headerBytes, err := restruct.Pack(binary.LittleEndian, &header)
	if err != nil {
		return nil, fmt.Errorf("scsi: pack cbw header: %w", err)
	}
	out := make([]byte, CBWSize)
	copy(out, headerBytes)
	copy(out[15:], cdb)
	return out, nil
}

// CSW is the parsed 13-byte Command Status Wrapper.
type CSW struct {
	Signature uint32
	Tag       uint32
	DataResidue uint32
	Status      uint8
}

const (
	StatusPassed     = 0
	StatusFailed     = 1
	StatusPhaseError = 2
)

// Valid reports whether a CSW's signature and tag match what every command
// in this package emits.
func (c CSW) Valid() bool {
	return c.Signature == CSWSignature && c.Tag == CommandTag
}

// DecodeCSW parses exactly CSWSize bytes into a CSW.
func DecodeCSW(buf []byte) (CSW, error) {
	if len(buf) != CSWSize {
		return CSW{}, fmt.Errorf("scsi: csw must be %d bytes, got %d", CSWSize, len(buf))
	}
	var csw CSW
	if err := restruct.Unpack(buf, binary.LittleEndian, &csw); err != nil {
		return CSW{}, fmt.Errorf("scsi: unpack csw: %w", err)
	}
	return csw, nil
}
