package usbhost

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeControlPoster struct {
	calls    []uint8
	maxLUN   byte
	failOnce bool
	failed   bool
}

func (f *fakeControlPoster) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	f.calls = append(f.calls, request)
	if request == reqGetMaxLUN {
		if f.failOnce && !f.failed {
			f.failed = true
			return 0, errors.New("stalled")
		}
		data[0] = f.maxLUN
		return 1, nil
	}
	return len(data), nil
}

func TestGetMaxLUN(t *testing.T) {
	cases := []struct {
		name   string
		maxLUN byte
		fail   bool
		want   uint8
	}{
		{"single lun", 0x00, false, 1},
		{"four luns", 0x03, false, 4},
		{"implausible falls back", 0x20, false, 1},
		{"stall artifact falls back", 0xFF, false, 1},
		{"control failure falls back", 0x00, true, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dev := &fakeControlPoster{maxLUN: tc.maxLUN, failOnce: tc.fail}
			got := GetMaxLUN(dev, 0)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestBulkOnlyResetClearsBothEndpoints(t *testing.T) {
	dev := &fakeControlPoster{}
	err := BulkOnlyReset(dev, 0, 0x81, 0x02)
	require.NoError(t, err)
	require.Equal(t, []uint8{reqBulkOnlyReset, reqStdClearFeature, reqStdClearFeature}, dev.calls)
}

func TestResetControllerHalted(t *testing.T) {
	dev := &fakeControlPoster{}
	rc := &ResetController{Dev: dev, IfaceNum: 0, InAddr: 0x81, OutAddr: 0x02}
	halted, err := rc.Halted(0x81)
	require.NoError(t, err)
	require.False(t, halted)
}
