package fatvol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeFATTimestampRoundTrip(t *testing.T) {
	want := time.Date(2024, time.March, 14, 9, 26, 30, 0, time.UTC)
	date, timeField := encodeFATTimestamp(want)
	got := decodeFATTimestamp(date, timeField)
	require.True(t, want.Equal(got))
}

func TestDecodeFATTimestampEpoch(t *testing.T) {
	got := decodeFATTimestamp(0, 0)
	require.Equal(t, 1980, got.Year())
	require.Equal(t, time.January, got.Month())
	require.Equal(t, 1, got.Day())
}
