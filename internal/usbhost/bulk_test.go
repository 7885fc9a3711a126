package usbhost

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBulkReader struct {
	attempts int
	failOnce bool
	payload  []byte
}

func (f *fakeBulkReader) Read(buf []byte) (int, error) {
	f.attempts++
	if f.failOnce && f.attempts == 1 {
		return 0, errors.New("pipe error")
	}
	return copy(buf, f.payload), nil
}

type fakeBulkWriter struct {
	attempts int
	failOnce bool
}

func (f *fakeBulkWriter) Write(buf []byte) (int, error) {
	f.attempts++
	if f.failOnce && f.attempts == 1 {
		return 0, errors.New("pipe error")
	}
	return len(buf), nil
}

func TestBulkPostInRetriesAfterClearHalt(t *testing.T) {
	dev := &fakeControlPoster{}
	ep := &fakeBulkReader{failOnce: true, payload: []byte{1, 2, 3}}
	buf := make([]byte, 3)
	n, err := BulkPostIn(dev, ep, 0x81, buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 2, ep.attempts)
	require.Contains(t, dev.calls, uint8(reqStdClearFeature))
}

func TestBulkPostOutRetriesAfterClearHalt(t *testing.T) {
	dev := &fakeControlPoster{}
	ep := &fakeBulkWriter{failOnce: true}
	n, err := BulkPostOut(dev, ep, 0x02, make([]byte, 31))
	require.NoError(t, err)
	require.Equal(t, 31, n)
	require.Equal(t, 2, ep.attempts)
}
