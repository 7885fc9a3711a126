package scsi

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

type seqResponder struct {
	steps []func(p []byte) (int, error)
	i     int
}

func (s *seqResponder) Read(p []byte) (int, error) {
	if s.i >= len(s.steps) {
		return 0, nil
	}
	fn := s.steps[s.i]
	s.i++
	return fn(p)
}

func cswStep(status uint8) func([]byte) (int, error) {
	return func(p []byte) (int, error) {
		copy(p, validCSWBytes(status))
		return CSWSize, nil
	}
}

func dataThenCSWSteps(data []byte, status uint8) []func([]byte) (int, error) {
	return []func([]byte) (int, error){
		func(p []byte) (int, error) { return copy(p, data), nil },
		cswStep(status),
	}
}

func TestBlockHappyPathMount(t *testing.T) {
	// S1: TestUnitReady passes immediately; ReadCapacity10 reports
	// last_lba=0x1FFF, block_size=512.
	capData := make([]byte, 8)
	binary.BigEndian.PutUint32(capData[0:4], 0x1FFF)
	binary.BigEndian.PutUint32(capData[4:8], 512)

	steps := []func([]byte) (int, error){cswStep(StatusPassed)}
	steps = append(steps, dataThenCSWSteps(capData, StatusPassed)...)

	in := &seqResponder{steps: steps}
	dev := NewDevice(in, &countingOut{}, &countingCtl{}, 0x81, 0x02, 0, nil)
	blk := NewBlock(dev, nil)

	require.True(t, blk.Ok())
	require.Equal(t, uint32(512), blk.BlockSize)
	require.Equal(t, uint64(0x1FFF)*512, blk.Capacity)
}

func TestBlockNotReadyThenReady(t *testing.T) {
	// S2: TestUnitReady fails, RequestSense reports NOT READY, then a
	// retried TestUnitReady succeeds.
	sense := make([]byte, 18)
	sense[2] = senseNotReady

	capData := make([]byte, 8)
	binary.BigEndian.PutUint32(capData[0:4], 0xFF)
	binary.BigEndian.PutUint32(capData[4:8], 512)

	steps := []func([]byte) (int, error){
		cswStep(StatusFailed), // first TestUnitReady fails
	}
	steps = append(steps, dataThenCSWSteps(sense, StatusPassed)...) // RequestSense
	steps = append(steps, cswStep(StatusPassed))                    // retried TestUnitReady
	steps = append(steps, dataThenCSWSteps(capData, StatusPassed)...)

	in := &seqResponder{steps: steps}
	dev := NewDevice(in, &countingOut{}, &countingCtl{}, 0x81, 0x02, 0, nil)
	blk := NewBlock(dev, nil)

	require.True(t, blk.Ok())
}

func TestBlockCapacityPromotionToReadCapacity16(t *testing.T) {
	// S3: ReadCapacity10 returns the 0xFFFFFFFF sentinel, forcing
	// ReadCapacity16.
	cap16 := make([]byte, 32)
	binary.BigEndian.PutUint64(cap16[0:8], 0x100000000)
	binary.BigEndian.PutUint32(cap16[8:12], 512)

	cap10 := make([]byte, 8)
	binary.BigEndian.PutUint32(cap10[0:4], 0xFFFFFFFF)
	binary.BigEndian.PutUint32(cap10[4:8], 512)

	steps := []func([]byte) (int, error){cswStep(StatusPassed)} // TestUnitReady
	steps = append(steps, dataThenCSWSteps(cap10, StatusPassed)...)
	steps = append(steps, dataThenCSWSteps(cap16, StatusPassed)...)

	in := &seqResponder{steps: steps}
	dev := NewDevice(in, &countingOut{}, &countingCtl{}, 0x81, 0x02, 0, nil)
	blk := NewBlock(dev, nil)

	require.True(t, blk.Ok())
	require.Equal(t, uint64(0x100000000)*512, blk.Capacity)
}

type capturingOut struct {
	last []byte
}

func (o *capturingOut) Write(p []byte) (int, error) {
	o.last = append([]byte(nil), p...)
	return len(p), nil
}

func TestReadSectorsDispatchesRead16PastThirtyTwoBits(t *testing.T) {
	out := &capturingOut{}
	in := &seqResponder{steps: []func([]byte) (int, error){
		func(p []byte) (int, error) { return len(p), nil }, // data phase, contents irrelevant
		cswStep(StatusPassed),
	}}
	dev := NewDevice(in, out, &countingCtl{}, 0x81, 0x02, 0, nil)
	blk := &Block{Device: dev, BlockSize: 512, ok: true}

	buf := make([]byte, 8*512)
	n := blk.ReadSectors(buf, 0x100000000, 8)
	require.Equal(t, uint32(8), n)
	require.Equal(t, byte(0x88), out.last[15], "CDB opcode at wire offset 15 must be Read16 (0x88)")
}

func TestNeeds16Threshold(t *testing.T) {
	require.False(t, needs16(0, 1))
	require.False(t, needs16(maxLBA32-1, 1))
	require.True(t, needs16(maxLBA32, 1))
	require.True(t, needs16(0x100000000, 8))
}
