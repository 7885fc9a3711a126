package scsi

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type scriptedIn struct {
	responses [][]byte
	errs      []error
	calls     int
}

func (s *scriptedIn) Read(p []byte) (int, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		return 0, errors.New("scriptedIn: out of responses")
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	n := copy(p, s.responses[i])
	return n, err
}

type countingOut struct {
	writes int
}

func (o *countingOut) Write(p []byte) (int, error) {
	o.writes++
	return len(p), nil
}

type countingCtl struct {
	resets int
}

func (c *countingCtl) Halted(uint8) (bool, error) { return false, nil }
func (c *countingCtl) ClearHalt(uint8) error       { return nil }
func (c *countingCtl) Reset() error                { c.resets++; return nil }

func validCSWBytes(status uint8) []byte {
	buf := make([]byte, CSWSize)
	binary.LittleEndian.PutUint32(buf[0:4], CSWSignature)
	binary.LittleEndian.PutUint32(buf[4:8], CommandTag)
	buf[12] = status
	return buf
}

func TestTransferCommandPhaseErrorRecovers(t *testing.T) {
	in := &scriptedIn{responses: [][]byte{
		validCSWBytes(StatusPhaseError),
		validCSWBytes(StatusPassed),
	}}
	out := &countingOut{}
	ctl := &countingCtl{}
	dev := NewDevice(in, out, ctl, 0x81, 0x02, 0, nil)

	csw, err := dev.TransferCommand(TestUnitReady{}, nil)
	require.NoError(t, err)
	require.Equal(t, uint8(StatusPassed), csw.Status)
	require.Equal(t, 1, ctl.resets, "phase error must trigger exactly one bulk-only reset")
	require.True(t, dev.Ok())
}

func TestTransferCommandEarlyCSWDuringDataPhase(t *testing.T) {
	// An 18-byte RequestSense read whose first chunk is a valid CSW.
	in := &scriptedIn{responses: [][]byte{
		validCSWBytes(StatusPassed),
	}}
	out := &countingOut{}
	ctl := &countingCtl{}
	dev := NewDevice(in, out, ctl, 0x81, 0x02, 0, nil)

	cmd := RequestSense{AllocLen: 18}
	buf := make([]byte, 18)
	csw, err := dev.TransferCommand(cmd, buf)
	require.NoError(t, err)
	require.True(t, csw.Valid())
	require.Equal(t, 1, in.calls, "early CSW must short-circuit without a separate status read")
	require.True(t, dev.Ok(), "an early CSW must not fault the context")
}

func TestTransferCommandExhaustsRetriesThenFaults(t *testing.T) {
	in := &scriptedIn{responses: [][]byte{
		validCSWBytes(StatusPhaseError),
		validCSWBytes(StatusPhaseError),
		validCSWBytes(StatusPhaseError),
	}}
	out := &countingOut{}
	ctl := &countingCtl{}
	dev := NewDevice(in, out, ctl, 0x81, 0x02, 0, nil)

	_, err := dev.TransferCommand(TestUnitReady{}, nil)
	require.ErrorIs(t, err, ErrTransferFailed)
	require.False(t, dev.Ok())
}

func TestTransferCommandFaultedContextShortCircuits(t *testing.T) {
	dev := NewDevice(&scriptedIn{}, &countingOut{}, &countingCtl{}, 0x81, 0x02, 0, nil)
	dev.ok = false
	_, err := dev.TransferCommand(TestUnitReady{}, nil)
	require.ErrorIs(t, err, ErrFaulted)
}
