package scsi

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeCBWShapeInvariants(t *testing.T) {
	cmd := Read10{LBA: 0x01020304, Blocks: 8, BlockSize: 512}
	b, err := EncodeCBW(0, cmd.DataLen(), cmd.Direction(), cmd.CDB())
	require.NoError(t, err)

	require.Len(t, b, CBWSize)
	require.Equal(t, uint32(CBWSignature), binary.LittleEndian.Uint32(b[0:4]))
	require.LessOrEqual(t, b[14], uint8(16))
	require.Zero(t, b[12]&0x7F)
	require.Equal(t, uint8(0x80), b[12]&0x80, "read is an IN transfer")
}

func TestEncodeCBWOutDirectionHasClearFlag(t *testing.T) {
	cmd := Write10{LBA: 1, Blocks: 1, BlockSize: 512}
	b, err := EncodeCBW(0, cmd.DataLen(), cmd.Direction(), cmd.CDB())
	require.NoError(t, err)
	require.Zero(t, b[12]&0x80)
}

func TestRead10EncodesLBABigEndian(t *testing.T) {
	cmd := Read10{LBA: 0x01020304, Blocks: 1, BlockSize: 512}
	b, err := EncodeCBW(0, cmd.DataLen(), cmd.Direction(), cmd.CDB())
	require.NoError(t, err)
	// CBW header is 15 bytes; the CDB follows, and Read10's LBA sits at CDB
	// offset 2..6 (wire offset 17..21).
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, b[17:21])
}

func TestRead16EncodesLBABigEndian(t *testing.T) {
	cmd := Read16{LBA: 0x0102030405060708, Blocks: 1, BlockSize: 512}
	b, err := EncodeCBW(0, cmd.DataLen(), cmd.Direction(), cmd.CDB())
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}, b[17:25])
}

func TestDecodeCSWRoundTrip(t *testing.T) {
	buf := make([]byte, CSWSize)
	binary.LittleEndian.PutUint32(buf[0:4], CSWSignature)
	binary.LittleEndian.PutUint32(buf[4:8], CommandTag)
	binary.LittleEndian.PutUint32(buf[8:12], 0)
	buf[12] = StatusPassed

	csw, err := DecodeCSW(buf)
	require.NoError(t, err)
	require.True(t, csw.Valid())
	require.Equal(t, uint8(StatusPassed), csw.Status)
}

func TestDecodeCSWWrongLength(t *testing.T) {
	_, err := DecodeCSW(make([]byte, 12))
	require.Error(t, err)
}
